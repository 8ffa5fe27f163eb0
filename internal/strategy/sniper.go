package strategy

import (
	"fmt"
	"time"

	"solana-trade-sentinel/internal/domain"
)

// Sniper reference thresholds.
const (
	DefaultSniperMaxPoolAge      = 60 * time.Second
	DefaultSniperMinLiquiditySol = 10.0
)

// SniperStrategy buys freshly launched pools that already hold a liquidity floor.
type SniperStrategy struct {
	MaxPoolAge      time.Duration
	MinLiquiditySol float64
}

var _ Strategy = (*SniperStrategy)(nil)

// NewSniperStrategy creates a SniperStrategy.
func NewSniperStrategy(maxPoolAge time.Duration, minLiquiditySol float64) *SniperStrategy {
	return &SniperStrategy{MaxPoolAge: maxPoolAge, MinLiquiditySol: minLiquiditySol}
}

// Name returns the strategy identifier.
func (s *SniperStrategy) Name() string {
	return domain.StrategyTypeSniper
}

// Evaluate requires a known pool creation time.
func (s *SniperStrategy) Evaluate(sc domain.StrategyContext) domain.StrategyResult {
	created := sc.TokenMeta.PoolCreatedAt
	if created.IsZero() {
		return hold(s.Name(), "pool age unknown")
	}

	now := sc.Now
	if now.IsZero() {
		now = time.Now()
	}
	age := now.Sub(created)
	if age < 0 {
		age = 0
	}

	if age > s.MaxPoolAge {
		return hold(s.Name(), fmt.Sprintf("pool age %s exceeds %s", age.Truncate(time.Second), s.MaxPoolAge))
	}
	if sc.CurrentLiquidity < s.MinLiquiditySol {
		return hold(s.Name(), fmt.Sprintf("liquidity %.2f SOL below %.2f SOL", sc.CurrentLiquidity, s.MinLiquiditySol))
	}

	return domain.StrategyResult{
		Strategy:  s.Name(),
		ShouldBuy: true,
		Reason:    fmt.Sprintf("new pool %s old with %.2f SOL liquidity", age.Truncate(time.Second), sc.CurrentLiquidity),
		Score:     score(sc.CurrentLiquidity),
	}
}
