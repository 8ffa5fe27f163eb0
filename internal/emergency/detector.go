// Package emergency implements the post-entry emergency exit monitor.
package emergency

import (
	"context"
	"time"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/solana"
)

// Detector names.
const (
	DetectorLPRemoval   = "lp_removal"
	DetectorLargeSell   = "large_sell"
	DetectorRedCandle   = "red_candle"
	DetectorCreatorSell = "creator_sell"
)

// Input is one check request. PoolAddress and CreatorAddress may be empty.
type Input struct {
	TokenID        string
	CurrentPrice   float64
	PoolAddress    string
	CreatorAddress string
	Now            time.Time
}

// Detector inspects one risk signal. A returned error means the detector
// could not decide; the monitor treats it as not triggered.
type Detector interface {
	Name() string
	Detect(ctx context.Context, in Input) (domain.EmergencyTrigger, error)
}

// ChainReader is the on-chain subset the detectors need.
type ChainReader interface {
	GetAccountInfo(ctx context.Context, address string) (*solana.AccountInfo, error)
	GetRecentTransactions(ctx context.Context, address string, limit int) ([]solana.RecentTransaction, error)
}

// Thresholds configures the detectors.
type Thresholds struct {
	LargeSellSol      float64       `yaml:"large_sell_sol"`
	RedCandleWindow   time.Duration `yaml:"red_candle_window"`
	RedCandleDropPct  float64       `yaml:"red_candle_drop_pct"`
	CreatorSellWindow time.Duration `yaml:"creator_sell_window"`
	PriceRetention    time.Duration `yaml:"price_retention"`
}

// DefaultThresholds returns the reference detector thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LargeSellSol:      10,
		RedCandleWindow:   10 * time.Second,
		RedCandleDropPct:  60,
		CreatorSellWindow: 30 * time.Second,
		PriceRetention:    30 * time.Second,
	}
}

// Normalize fills zero values with defaults.
func (t Thresholds) Normalize() Thresholds {
	d := DefaultThresholds()
	if t.LargeSellSol <= 0 {
		t.LargeSellSol = d.LargeSellSol
	}
	if t.RedCandleWindow <= 0 {
		t.RedCandleWindow = d.RedCandleWindow
	}
	if t.RedCandleDropPct <= 0 {
		t.RedCandleDropPct = d.RedCandleDropPct
	}
	if t.CreatorSellWindow <= 0 {
		t.CreatorSellWindow = d.CreatorSellWindow
	}
	if t.PriceRetention <= 0 {
		t.PriceRetention = d.PriceRetention
	}
	if t.PriceRetention < t.RedCandleWindow {
		t.PriceRetention = t.RedCandleWindow
	}
	return t
}

func notTriggered(name string, severity domain.Severity) domain.EmergencyTrigger {
	return domain.EmergencyTrigger{Detector: name, Severity: severity}
}
