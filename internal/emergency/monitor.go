package emergency

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/observability"
	"solana-trade-sentinel/internal/pricehistory"
)

// Decision is the aggregated outcome of one check.
type Decision struct {
	ShouldExit     bool                      `json:"shouldExit"`
	Triggers       []domain.EmergencyTrigger `json:"triggers"`
	CriticalReason string                    `json:"criticalReason,omitempty"`
	Severity       domain.Severity           `json:"severity,omitempty"` // set when ShouldExit
}

// Triggered returns only the triggers that fired.
func (d Decision) Triggered() []domain.EmergencyTrigger {
	var out []domain.EmergencyTrigger
	for _, t := range d.Triggers {
		if t.Triggered {
			out = append(out, t)
		}
	}
	return out
}

// forgetter is implemented by detectors that keep per-token state.
type forgetter interface {
	Forget(tokenID string)
}

// Forget drops the token's price samples.
func (d *RedCandleDetector) Forget(tokenID string) {
	d.window.Forget(tokenID)
}

// Monitor runs all detectors for a position and decides whether to exit.
type Monitor struct {
	detectors []Detector
	now       func() time.Time
	logger    zerolog.Logger
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock overrides the time source used for Input.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// DefaultDetectors returns the four reference detectors.
// window is shared by the red candle detector and must outlive the monitor.
func DefaultDetectors(chain ChainReader, window *pricehistory.Window, th Thresholds) []Detector {
	th = th.Normalize()
	return []Detector{
		NewLPRemovalDetector(chain),
		NewLargeSellDetector(chain, th.LargeSellSol),
		NewRedCandleDetector(window, th.RedCandleWindow, th.RedCandleDropPct),
		NewCreatorSellDetector(chain, th.CreatorSellWindow),
	}
}

// NewMonitor creates a Monitor over detectors.
func NewMonitor(logger zerolog.Logger, detectors []Detector, opts ...Option) *Monitor {
	m := &Monitor{
		detectors: detectors,
		now:       time.Now,
		logger:    logger.With().Str("component", "emergency-monitor").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CheckAllTriggers runs every detector concurrently and aggregates.
// poolAddress and creatorAddress may be empty.
func (m *Monitor) CheckAllTriggers(ctx context.Context, tokenID string, currentPrice float64, poolAddress, creatorAddress string) Decision {
	return m.Check(ctx, Input{
		TokenID:        tokenID,
		CurrentPrice:   currentPrice,
		PoolAddress:    poolAddress,
		CreatorAddress: creatorAddress,
		Now:            m.now(),
	})
}

// Check runs every detector against in. A zero in.Now is filled from the clock.
func (m *Monitor) Check(ctx context.Context, in Input) Decision {
	if in.Now.IsZero() {
		in.Now = m.now()
	}

	triggers := make([]domain.EmergencyTrigger, len(m.detectors))
	var wg sync.WaitGroup
	for i, d := range m.detectors {
		wg.Add(1)
		go func(i int, d Detector) {
			defer wg.Done()
			triggers[i] = m.detect(ctx, d, in)
		}(i, d)
	}
	wg.Wait()

	decision := decide(triggers)
	if decision.ShouldExit {
		m.logger.Debug().
			Str("token", in.TokenID).
			Str("reason", decision.CriticalReason).
			Str("severity", string(decision.Severity)).
			Msg("exit decision")
	}
	return decision
}

// detect runs one detector, converting errors and panics to not triggered.
func (m *Monitor) detect(ctx context.Context, d Detector, in Input) (out domain.EmergencyTrigger) {
	name := d.Name()
	defer func() {
		if r := recover(); r != nil {
			observability.RecordDetectorError(name)
			m.logger.Error().
				Str("detector", name).
				Str("token", in.TokenID).
				Str("panic", fmt.Sprint(r)).
				Msg("detector panicked")
			out = domain.EmergencyTrigger{Detector: name, Severity: domain.SeverityMedium}
		}
	}()

	trigger, err := d.Detect(ctx, in)
	trigger.Detector = name
	if err != nil {
		observability.RecordDetectorError(name)
		m.logger.Warn().Err(err).
			Str("detector", name).
			Str("token", in.TokenID).
			Msg("detector failed")
		trigger.Triggered = false
		trigger.Reason = ""
		return trigger
	}
	if trigger.Triggered {
		observability.RecordDetectorTrigger(name, string(trigger.Severity))
	}
	return trigger
}

// decide applies the exit policy: any critical, or at least two highs.
func decide(triggers []domain.EmergencyTrigger) Decision {
	var critical, high []string
	for _, t := range triggers {
		if !t.Triggered {
			continue
		}
		switch t.Severity {
		case domain.SeverityCritical:
			critical = append(critical, t.Reason)
		case domain.SeverityHigh:
			high = append(high, t.Reason)
		}
	}

	d := Decision{Triggers: triggers}
	switch {
	case len(critical) > 0:
		d.ShouldExit = true
		d.Severity = domain.SeverityCritical
		d.CriticalReason = strings.Join(critical, "; ")
	case len(high) >= 2:
		d.ShouldExit = true
		d.Severity = domain.SeverityHigh
		d.CriticalReason = strings.Join(high, " + ")
	}
	return d
}

// Forget drops per-token detector state once a position closes.
func (m *Monitor) Forget(tokenID string) {
	for _, d := range m.detectors {
		if f, ok := d.(forgetter); ok {
			f.Forget(tokenID)
		}
	}
}
