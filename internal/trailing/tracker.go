// Package trailing tracks peak unrealized gain per open position and derives
// a trailing exit recommendation from it.
package trailing

import (
	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/pricehistory"
)

// Defaults applied when Config leaves a value unset.
const (
	DefaultActivationPct = 10.0
	DefaultStopPct       = 5.0
)

// Config holds trailing stop configuration.
type Config struct {
	ActivationPct float64 `yaml:"activation_pct" json:"activationPct"` // PnL % that arms the trailing stop
	StopPct       float64 `yaml:"stop_pct" json:"stopPct"`             // drawdown from peak, in PnL points, that exits
}

// Normalize fills unset or negative values with defaults.
func (c Config) Normalize() Config {
	if c.ActivationPct <= 0 {
		c.ActivationPct = DefaultActivationPct
	}
	if c.StopPct <= 0 {
		c.StopPct = DefaultStopPct
	}
	return c
}

// Update is the outcome of one tracker update.
type Update struct {
	State            domain.TrailingStopState
	CurrentPnlPct    float64
	DrawdownFromPeak float64
	ShouldExit       bool
}

// Tracker holds one TrailingStopState per token. State is created lazily on
// the first update; the caller discards it when the position closes.
type Tracker struct {
	cfg    Config
	states *pricehistory.Keyed[domain.TrailingStopState]
}

// NewTracker creates a Tracker.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{
		cfg:    cfg.Normalize(),
		states: pricehistory.NewKeyed[domain.TrailingStopState](),
	}
}

// Config returns the normalized configuration.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Update folds currentPnlPct into the token's state.
// HighestPnlPct never decreases and activation never reverts.
func (t *Tracker) Update(tokenID string, currentPnlPct float64) Update {
	var out Update
	t.states.Update(tokenID, func() *domain.TrailingStopState {
		return &domain.TrailingStopState{
			TokenID:               tokenID,
			HighestPnlPct:         currentPnlPct,
			TrailingStopPct:       t.cfg.StopPct,
			TrailingActivationPct: t.cfg.ActivationPct,
		}
	}, func(st *domain.TrailingStopState) {
		if currentPnlPct > st.HighestPnlPct {
			st.HighestPnlPct = currentPnlPct
		}
		if !st.TrailingActivated && st.HighestPnlPct >= st.TrailingActivationPct {
			st.TrailingActivated = true
		}

		out.CurrentPnlPct = currentPnlPct
		if st.TrailingActivated {
			out.DrawdownFromPeak = st.HighestPnlPct - currentPnlPct
			out.ShouldExit = out.DrawdownFromPeak >= st.TrailingStopPct
		}
		out.State = *st
	})
	return out
}

// State returns a copy of the token's state.
func (t *Tracker) State(tokenID string) (domain.TrailingStopState, bool) {
	var st domain.TrailingStopState
	ok := t.states.View(tokenID, func(s *domain.TrailingStopState) {
		st = *s
	})
	return st, ok
}

// Discard drops the token's state.
func (t *Tracker) Discard(tokenID string) {
	t.states.Delete(tokenID)
}

// Tokens lists tokens with tracked state.
func (t *Tracker) Tokens() []string {
	return t.states.Keys()
}
