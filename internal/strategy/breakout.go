package strategy

import (
	"fmt"

	"solana-trade-sentinel/internal/domain"
)

// Breakout reference thresholds.
const (
	DefaultBreakoutWindow    = 10
	DefaultBreakoutMarginPct = 2.0
)

// BreakoutStrategy buys when the current price clears the prior-window high
// by MarginPct. The prior window is the Window samples preceding the latest.
type BreakoutStrategy struct {
	Window    int
	MarginPct float64
}

var _ Strategy = (*BreakoutStrategy)(nil)

// NewBreakoutStrategy creates a BreakoutStrategy.
func NewBreakoutStrategy(window int, marginPct float64) *BreakoutStrategy {
	return &BreakoutStrategy{Window: window, MarginPct: marginPct}
}

// Name returns the strategy identifier.
func (s *BreakoutStrategy) Name() string {
	return domain.StrategyTypeBreakout
}

// Evaluate compares CurrentPrice with the prior-window high.
func (s *BreakoutStrategy) Evaluate(sc domain.StrategyContext) domain.StrategyResult {
	need := s.Window + 1
	if len(sc.PriceHistory) < need {
		return notEnoughHistory(s.Name(), len(sc.PriceHistory), need)
	}

	prior := tail(sc.PriceHistory, need)[:s.Window]
	high := prior[0]
	for _, p := range prior[1:] {
		if p > high {
			high = p
		}
	}
	if high <= 0 {
		return hold(s.Name(), "invalid reference price")
	}

	above := pctChange(high, sc.CurrentPrice)
	res := domain.StrategyResult{Strategy: s.Name(), Score: score(above)}
	if sc.CurrentPrice > high*(1+s.MarginPct/100) {
		res.ShouldBuy = true
		res.Reason = fmt.Sprintf("breakout %.2f%% above %d-sample high %.8g", above, s.Window, high)
		return res
	}
	res.Reason = fmt.Sprintf("price %.8g below breakout level %.8g", sc.CurrentPrice, high*(1+s.MarginPct/100))
	return res
}
