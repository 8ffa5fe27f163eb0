package strategy

import (
	"fmt"
	"time"

	"solana-trade-sentinel/internal/domain"
)

// DefaultCopyTradingMaxSignalAge bounds how stale a smart-wallet buy may be.
const DefaultCopyTradingMaxSignalAge = 120 * time.Second

// CopyTradingStrategy mirrors smart-wallet activity carried in token metadata.
type CopyTradingStrategy struct {
	MaxSignalAge time.Duration
}

var _ Strategy = (*CopyTradingStrategy)(nil)

// NewCopyTradingStrategy creates a CopyTradingStrategy.
func NewCopyTradingStrategy(maxSignalAge time.Duration) *CopyTradingStrategy {
	return &CopyTradingStrategy{MaxSignalAge: maxSignalAge}
}

// Name returns the strategy identifier.
func (s *CopyTradingStrategy) Name() string {
	return domain.StrategyTypeCopyTrading
}

// Evaluate buys on a fresh smart-wallet buy and sells on a smart-wallet sell.
func (s *CopyTradingStrategy) Evaluate(sc domain.StrategyContext) domain.StrategyResult {
	sig := sc.TokenMeta.SmartWallet
	if sig == nil {
		return hold(s.Name(), "no smart wallet signal")
	}

	switch sig.Action {
	case domain.SmartWalletBuy:
		now := sc.Now
		if now.IsZero() {
			now = time.Now()
		}
		if age := now.Sub(sig.SeenAt); age > s.MaxSignalAge {
			return hold(s.Name(), fmt.Sprintf("smart wallet buy is %s old", age.Truncate(time.Second)))
		}
		return domain.StrategyResult{
			Strategy:  s.Name(),
			ShouldBuy: true,
			Reason:    fmt.Sprintf("smart wallet %s bought %.4f SOL", sig.Wallet, sig.AmountSol),
			Score:     score(sig.AmountSol),
		}
	case domain.SmartWalletSell:
		return domain.StrategyResult{
			Strategy:   s.Name(),
			ShouldSell: true,
			Reason:     fmt.Sprintf("smart wallet %s sold", sig.Wallet),
		}
	default:
		return hold(s.Name(), fmt.Sprintf("unknown smart wallet action %q", sig.Action))
	}
}
