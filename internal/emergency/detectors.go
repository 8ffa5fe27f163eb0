package emergency

import (
	"context"
	"fmt"
	"math"
	"time"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/pricehistory"
	"solana-trade-sentinel/internal/solana"
)

// LPRemovalDetector fires when the pool account is gone or drained.
type LPRemovalDetector struct {
	chain ChainReader
}

var _ Detector = (*LPRemovalDetector)(nil)

// NewLPRemovalDetector creates an LPRemovalDetector.
func NewLPRemovalDetector(chain ChainReader) *LPRemovalDetector {
	return &LPRemovalDetector{chain: chain}
}

// Name returns the detector name.
func (d *LPRemovalDetector) Name() string { return DetectorLPRemoval }

// Detect reports critical when the pool account is gone or holds no lamports.
func (d *LPRemovalDetector) Detect(ctx context.Context, in Input) (domain.EmergencyTrigger, error) {
	out := notTriggered(DetectorLPRemoval, domain.SeverityCritical)
	if in.PoolAddress == "" {
		return out, nil
	}

	info, err := d.chain.GetAccountInfo(ctx, in.PoolAddress)
	if err != nil {
		return out, fmt.Errorf("pool %s: %w", in.PoolAddress, err)
	}
	switch {
	case info == nil:
		out.Triggered = true
		out.Reason = "liquidity pool account closed"
	case info.Lamports == 0:
		out.Triggered = true
		out.Reason = "liquidity pool drained"
	}
	return out, nil
}

// LargeSellDetector fires when the latest transaction touching the token
// moved more than the threshold in SOL for any account.
type LargeSellDetector struct {
	chain     ChainReader
	threshold float64
}

var _ Detector = (*LargeSellDetector)(nil)

// NewLargeSellDetector creates a LargeSellDetector. thresholdSol <= 0 uses 10 SOL.
func NewLargeSellDetector(chain ChainReader, thresholdSol float64) *LargeSellDetector {
	if thresholdSol <= 0 {
		thresholdSol = DefaultThresholds().LargeSellSol
	}
	return &LargeSellDetector{chain: chain, threshold: thresholdSol}
}

// Name returns the detector name.
func (d *LargeSellDetector) Name() string { return DetectorLargeSell }

// Detect reports high when the latest transaction moved more SOL than the threshold.
func (d *LargeSellDetector) Detect(ctx context.Context, in Input) (domain.EmergencyTrigger, error) {
	out := notTriggered(DetectorLargeSell, domain.SeverityHigh)

	txs, err := d.chain.GetRecentTransactions(ctx, in.TokenID, 1)
	if err != nil {
		return out, fmt.Errorf("recent transactions for %s: %w", in.TokenID, err)
	}
	if len(txs) == 0 {
		return out, nil
	}

	var largest float64
	for _, delta := range txs[0].BalanceDeltas {
		if sol := math.Abs(solana.LamportsToSOL(delta)); sol > largest {
			largest = sol
		}
	}
	if largest > d.threshold {
		out.Triggered = true
		out.Reason = fmt.Sprintf("large sell detected: %.2f SOL", largest)
	}
	return out, nil
}

// RedCandleDetector records prices into a shared window and fires on a
// steep peak-to-trough drop inside the recent sub-window.
type RedCandleDetector struct {
	window  *pricehistory.Window
	span    time.Duration
	dropPct float64
}

var _ Detector = (*RedCandleDetector)(nil)

// NewRedCandleDetector creates a RedCandleDetector over window.
func NewRedCandleDetector(window *pricehistory.Window, span time.Duration, dropPct float64) *RedCandleDetector {
	d := DefaultThresholds()
	if span <= 0 {
		span = d.RedCandleWindow
	}
	if dropPct <= 0 {
		dropPct = d.RedCandleDropPct
	}
	return &RedCandleDetector{window: window, span: span, dropPct: dropPct}
}

// Name returns the detector name.
func (d *RedCandleDetector) Name() string { return DetectorRedCandle }

// Detect records the current price and reports critical when the price fell
// by the drop threshold inside the span.
func (d *RedCandleDetector) Detect(_ context.Context, in Input) (domain.EmergencyTrigger, error) {
	out := notTriggered(DetectorRedCandle, domain.SeverityCritical)
	if in.CurrentPrice > 0 {
		d.window.Record(in.TokenID, in.CurrentPrice, in.Now)
	}

	points := d.window.Since(in.TokenID, in.Now.Add(-d.span))
	if len(points) < 2 {
		return out, nil
	}

	if drop := maxDrawdownPct(points); drop >= d.dropPct {
		out.Triggered = true
		out.Reason = fmt.Sprintf("red candle: %.1f%% drop in %s", drop, d.span)
	}
	return out, nil
}

// maxDrawdownPct is the largest drop from a running peak to a later price.
func maxDrawdownPct(points []domain.PricePoint) float64 {
	var peak, worst float64
	for _, p := range points {
		if p.Price > peak {
			peak = p.Price
			continue
		}
		if peak > 0 {
			if drop := (peak - p.Price) / peak * 100; drop > worst {
				worst = drop
			}
		}
	}
	return worst
}

// CreatorSellDetector fires when the token creator transacted recently.
// Any recent creator activity counts; the direction is not inspected.
type CreatorSellDetector struct {
	chain  ChainReader
	recent time.Duration
}

var _ Detector = (*CreatorSellDetector)(nil)

// NewCreatorSellDetector creates a CreatorSellDetector.
func NewCreatorSellDetector(chain ChainReader, recent time.Duration) *CreatorSellDetector {
	if recent <= 0 {
		recent = DefaultThresholds().CreatorSellWindow
	}
	return &CreatorSellDetector{chain: chain, recent: recent}
}

// Name returns the detector name.
func (d *CreatorSellDetector) Name() string { return DetectorCreatorSell }

// Detect reports high when the creator transacted within the recent window.
func (d *CreatorSellDetector) Detect(ctx context.Context, in Input) (domain.EmergencyTrigger, error) {
	out := notTriggered(DetectorCreatorSell, domain.SeverityHigh)
	if in.CreatorAddress == "" {
		return out, nil
	}

	txs, err := d.chain.GetRecentTransactions(ctx, in.CreatorAddress, 1)
	if err != nil {
		return out, fmt.Errorf("recent transactions for creator %s: %w", in.CreatorAddress, err)
	}
	if len(txs) == 0 || txs[0].BlockTime.IsZero() {
		return out, nil
	}

	if age := in.Now.Sub(txs[0].BlockTime); age <= d.recent {
		out.Triggered = true
		out.Reason = fmt.Sprintf("creator activity %s ago", age.Truncate(time.Second))
	}
	return out, nil
}
