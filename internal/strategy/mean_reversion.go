package strategy

import (
	"fmt"

	"solana-trade-sentinel/internal/domain"
)

// Mean reversion reference thresholds.
const (
	DefaultMeanReversionWindow       = 20
	DefaultMeanReversionDeviationPct = 5.0
)

// MeanReversionStrategy trades deviations of the current price from the
// window mean in either direction.
type MeanReversionStrategy struct {
	Window       int
	DeviationPct float64
}

var _ Strategy = (*MeanReversionStrategy)(nil)

// NewMeanReversionStrategy creates a MeanReversionStrategy.
func NewMeanReversionStrategy(window int, deviationPct float64) *MeanReversionStrategy {
	return &MeanReversionStrategy{Window: window, DeviationPct: deviationPct}
}

// Name returns the strategy identifier.
func (s *MeanReversionStrategy) Name() string {
	return domain.StrategyTypeMeanReversion
}

// Evaluate buys below the mean and sells above it.
func (s *MeanReversionStrategy) Evaluate(sc domain.StrategyContext) domain.StrategyResult {
	if len(sc.PriceHistory) < s.Window {
		return notEnoughHistory(s.Name(), len(sc.PriceHistory), s.Window)
	}

	var sum float64
	for _, p := range tail(sc.PriceHistory, s.Window) {
		sum += p
	}
	mean := sum / float64(s.Window)
	if mean <= 0 {
		return hold(s.Name(), "invalid reference price")
	}

	deviation := pctChange(mean, sc.CurrentPrice)
	res := domain.StrategyResult{Strategy: s.Name(), Score: score(-deviation)}
	switch {
	case deviation <= -s.DeviationPct:
		res.ShouldBuy = true
		res.Reason = fmt.Sprintf("price %.2f%% below %d-sample mean", -deviation, s.Window)
	case deviation >= s.DeviationPct:
		res.ShouldSell = true
		res.Reason = fmt.Sprintf("price %.2f%% above %d-sample mean", deviation, s.Window)
	default:
		res.Reason = fmt.Sprintf("deviation %.2f%% within ±%.2f%%", deviation, s.DeviationPct)
	}
	return res
}
