package strategy

import (
	"fmt"

	"solana-trade-sentinel/internal/domain"
)

// Momentum reference thresholds.
const (
	DefaultMomentumWindow       = 5
	DefaultMomentumThresholdPct = 3.0
)

// MomentumStrategy signals on the percent change across the last Window prices.
type MomentumStrategy struct {
	Window       int
	ThresholdPct float64
}

var _ Strategy = (*MomentumStrategy)(nil)

// NewMomentumStrategy creates a MomentumStrategy.
func NewMomentumStrategy(window int, thresholdPct float64) *MomentumStrategy {
	return &MomentumStrategy{Window: window, ThresholdPct: thresholdPct}
}

// Name returns the strategy identifier.
func (s *MomentumStrategy) Name() string {
	return domain.StrategyTypeMomentum
}

// Evaluate buys when the change is at least +ThresholdPct and sells when it
// is at most -ThresholdPct.
func (s *MomentumStrategy) Evaluate(sc domain.StrategyContext) domain.StrategyResult {
	if len(sc.PriceHistory) < s.Window {
		return notEnoughHistory(s.Name(), len(sc.PriceHistory), s.Window)
	}

	window := tail(sc.PriceHistory, s.Window)
	first, last := window[0], window[len(window)-1]
	if first <= 0 {
		return hold(s.Name(), "invalid reference price")
	}

	change := pctChange(first, last)
	res := domain.StrategyResult{Strategy: s.Name(), Score: score(change)}
	switch {
	case change >= s.ThresholdPct:
		res.ShouldBuy = true
		res.Reason = fmt.Sprintf("momentum +%.2f%% over %d samples", change, s.Window)
	case change <= -s.ThresholdPct:
		res.ShouldSell = true
		res.Reason = fmt.Sprintf("momentum %.2f%% over %d samples", change, s.Window)
	default:
		res.Reason = fmt.Sprintf("momentum %.2f%% within ±%.2f%%", change, s.ThresholdPct)
	}
	return res
}
