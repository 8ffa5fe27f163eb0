package pricehistory

import (
	"time"

	"solana-trade-sentinel/internal/domain"
)

// DefaultCapacity bounds the per-token sample count of a Series.
const DefaultCapacity = 120

// Series keeps the most recent market samples per token, bounded by count.
// It feeds strategy contexts, which need more history than the crash window.
type Series struct {
	capacity int
	data     *Keyed[[]domain.MarketSample]
}

// NewSeries creates a Series. A non-positive capacity uses DefaultCapacity.
func NewSeries(capacity int) *Series {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Series{
		capacity: capacity,
		data:     NewKeyed[[]domain.MarketSample](),
	}
}

// Append records a sample, evicting the oldest once capacity is reached.
func (s *Series) Append(tokenID string, sample domain.MarketSample) {
	s.data.Update(tokenID, func() *[]domain.MarketSample {
		samples := make([]domain.MarketSample, 0, s.capacity)
		return &samples
	}, func(samples *[]domain.MarketSample) {
		cur := append(*samples, sample)
		if len(cur) > s.capacity {
			cur = append(cur[:0], cur[len(cur)-s.capacity:]...)
		}
		*samples = cur
	})
}

// Len returns the number of samples held for the token.
func (s *Series) Len(tokenID string) int {
	n := 0
	s.data.View(tokenID, func(samples *[]domain.MarketSample) {
		n = len(*samples)
	})
	return n
}

// Latest returns the most recent sample for the token.
func (s *Series) Latest(tokenID string) (domain.MarketSample, bool) {
	var latest domain.MarketSample
	found := false
	s.data.View(tokenID, func(samples *[]domain.MarketSample) {
		if n := len(*samples); n > 0 {
			latest = (*samples)[n-1]
			found = true
		}
	})
	return latest, found
}

// Context builds a fresh StrategyContext from the token's samples.
// Histories are independent copies; current values come from the latest sample.
func (s *Series) Context(tokenID string, meta domain.TokenMeta, now time.Time) domain.StrategyContext {
	ctx := domain.StrategyContext{
		TokenID:   tokenID,
		TokenMeta: meta,
		Now:       now,
	}
	s.data.View(tokenID, func(samples *[]domain.MarketSample) {
		n := len(*samples)
		ctx.PriceHistory = make([]float64, n)
		ctx.LiquidityHistory = make([]float64, n)
		ctx.VolumeHistory = make([]float64, n)
		for i, m := range *samples {
			ctx.PriceHistory[i] = m.Price
			ctx.LiquidityHistory[i] = m.Liquidity
			ctx.VolumeHistory[i] = m.Volume
		}
		if n > 0 {
			last := (*samples)[n-1]
			ctx.CurrentPrice = last.Price
			ctx.CurrentLiquidity = last.Liquidity
			ctx.CurrentVolume = last.Volume
		}
	})
	return ctx
}

// Forget drops all samples for the token.
func (s *Series) Forget(tokenID string) {
	s.data.Delete(tokenID)
}

// Tokens returns tokens with samples.
func (s *Series) Tokens() []string {
	return s.data.Keys()
}
