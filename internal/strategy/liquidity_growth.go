package strategy

import (
	"fmt"

	"solana-trade-sentinel/internal/domain"
)

// Liquidity growth reference thresholds.
const (
	DefaultLiquidityGrowthWindow       = 5
	DefaultLiquidityGrowthThresholdPct = 20.0
)

// LiquidityGrowthStrategy buys when pool liquidity grows by ThresholdPct
// across the last Window liquidity samples.
type LiquidityGrowthStrategy struct {
	Window       int
	ThresholdPct float64
}

var _ Strategy = (*LiquidityGrowthStrategy)(nil)

// NewLiquidityGrowthStrategy creates a LiquidityGrowthStrategy.
func NewLiquidityGrowthStrategy(window int, thresholdPct float64) *LiquidityGrowthStrategy {
	return &LiquidityGrowthStrategy{Window: window, ThresholdPct: thresholdPct}
}

// Name returns the strategy identifier.
func (s *LiquidityGrowthStrategy) Name() string {
	return domain.StrategyTypeLiquidityGrowth
}

// Evaluate measures growth from the first to the last sample of the window.
func (s *LiquidityGrowthStrategy) Evaluate(sc domain.StrategyContext) domain.StrategyResult {
	if len(sc.LiquidityHistory) < s.Window {
		return notEnoughHistory(s.Name(), len(sc.LiquidityHistory), s.Window)
	}

	window := tail(sc.LiquidityHistory, s.Window)
	first, last := window[0], window[len(window)-1]
	if first <= 0 {
		return hold(s.Name(), "no initial liquidity")
	}

	growth := pctChange(first, last)
	res := domain.StrategyResult{Strategy: s.Name(), Score: score(growth)}
	if growth >= s.ThresholdPct {
		res.ShouldBuy = true
		res.Reason = fmt.Sprintf("liquidity +%.2f%% over %d samples", growth, s.Window)
		return res
	}
	res.Reason = fmt.Sprintf("liquidity growth %.2f%% below %.2f%%", growth, s.ThresholdPct)
	return res
}
