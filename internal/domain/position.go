package domain

import "time"

// Position is an open position reported by the execution collaborator.
// The core monitors it but never trades it.
type Position struct {
	TokenID        string    `json:"tokenId"`
	PoolAddress    string    `json:"poolAddress,omitempty"`
	CreatorAddress string    `json:"creatorAddress,omitempty"`
	EntryPrice     float64   `json:"entryPrice"`
	Amount         float64   `json:"amount"`
	OpenedAt       time.Time `json:"openedAt"`
}

// PnLPct returns the unrealized PnL in percent at the given price.
// Returns 0 when the entry price is not positive.
func (p Position) PnLPct(currentPrice float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (currentPrice - p.EntryPrice) / p.EntryPrice * 100
}

// TrailingStopState is the per-position trailing stop bookkeeping.
type TrailingStopState struct {
	TokenID               string  `json:"tokenId"`
	HighestPnlPct         float64 `json:"highestPnlPct"`
	TrailingActivated     bool    `json:"trailingActivated"`
	TrailingStopPct       float64 `json:"trailingStopPct"`
	TrailingActivationPct float64 `json:"trailingActivationPct"`
}
