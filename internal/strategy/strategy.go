package strategy

import (
	"fmt"

	"solana-trade-sentinel/internal/domain"
)

// Strategy produces a buy/sell/hold opinion from a market snapshot.
type Strategy interface {
	// Name returns the strategy identifier carried on every result.
	Name() string

	// Evaluate inspects the snapshot and returns an opinion.
	// Must be pure with respect to sc and never panic on short history.
	Evaluate(sc domain.StrategyContext) domain.StrategyResult
}

// hold returns a result with neither side set.
func hold(name, reason string) domain.StrategyResult {
	return domain.StrategyResult{Strategy: name, Reason: reason}
}

// notEnoughHistory is the hold returned when a window cannot be filled.
func notEnoughHistory(name string, have, need int) domain.StrategyResult {
	return hold(name, fmt.Sprintf("not enough history: have %d, need %d", have, need))
}

// tail returns the last n entries of xs. Caller guarantees len(xs) >= n.
func tail(xs []float64, n int) []float64 {
	return xs[len(xs)-n:]
}

// pctChange returns (to-from)/from in percent.
func pctChange(from, to float64) float64 {
	return (to - from) / from * 100
}

func score(v float64) *float64 {
	return &v
}
