// Package scheduler drives the periodic signal and position sweeps.
//
// Two loops run on fixed intervals. The signal sweep prices the watchlist,
// evaluates strategies, validates buy signals and fires price alerts. The
// position sweep prices open positions and runs the emergency monitor and
// trailing stop for each of them. A sweep still running when its next tick
// fires is skipped. Stop bumps a generation counter so results of a cycle
// that straddles Stop are discarded instead of published.
package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/emergency"
	"solana-trade-sentinel/internal/events"
	"solana-trade-sentinel/internal/observability"
	"solana-trade-sentinel/internal/pricefeed"
	"solana-trade-sentinel/internal/pricehistory"
	"solana-trade-sentinel/internal/strategy"
	"solana-trade-sentinel/internal/trailing"
)

// Sweep names used in logs and metrics.
const (
	SweepSignals   = "signals"
	SweepPositions = "positions"
)

var (
	// ErrSweepRunning is returned when a sweep is requested while the previous one is in flight.
	ErrSweepRunning = errors.New("sweep already running")
	// ErrAlreadyStarted is returned by Start on a running scheduler.
	ErrAlreadyStarted = errors.New("scheduler already started")
	// ErrUnknownPosition is returned by CheckNow for a token without an open position.
	ErrUnknownPosition = errors.New("no open position for token")
	// ErrNoPrice is returned when the price source has no quote for a token.
	ErrNoPrice = errors.New("no price for token")
)

// PositionSource lists open positions. Owned by the execution collaborator.
type PositionSource interface {
	OpenPositions(ctx context.Context) ([]domain.Position, error)
}

// Validator admits or rejects a proposed buy.
type Validator interface {
	Validate(ctx context.Context, tokenID, poolID string, cfg domain.ValidationConfig, knownLiquidity *float64) domain.ValidationResult
}

// EmergencyChecker runs the crash/rug detectors for one position.
type EmergencyChecker interface {
	Check(ctx context.Context, in emergency.Input) emergency.Decision
	Forget(tokenID string)
}

// Config tunes the scheduler.
type Config struct {
	SignalInterval   time.Duration
	PositionInterval time.Duration
	Concurrency      int                     // parallel evaluations per sweep
	Validation       domain.ValidationConfig // applied to buy signals
}

func (c Config) withDefaults() Config {
	if c.SignalInterval <= 0 {
		c.SignalInterval = 5 * time.Second
	}
	if c.PositionInterval <= 0 {
		c.PositionInterval = 2 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	return c
}

// Options contains the collaborators of a Scheduler.
type Options struct {
	Config    Config
	Prices    pricefeed.Fetcher
	Positions PositionSource
	Series    *pricehistory.Series
	Engine    *strategy.Engine
	Validator Validator
	Monitor   EmergencyChecker
	Trailing  *trailing.Tracker
	Publisher events.Publisher
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Scheduler owns the sweep loops.
type Scheduler struct {
	cfg       Config
	prices    pricefeed.Fetcher
	positions PositionSource
	series    *pricehistory.Series
	engine    *strategy.Engine
	validator Validator
	monitor   EmergencyChecker
	trailing  *trailing.Tracker
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time

	generation      atomic.Uint64
	signalsRunning  atomic.Bool
	positionRunning atomic.Bool

	// applyMu makes the stale check and the apply phase of a sweep atomic
	// with respect to the generation bump in Stop.
	applyMu sync.Mutex

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	mu               sync.RWMutex
	watchlist        map[string]domain.TokenMeta
	alerts           map[string]PriceAlert
	open             map[string]domain.Position
	signals          map[string]SignalSnapshot
	lastSignalSweep  time.Time
	lastPositionScan time.Time
	observers        []func(context.Context, []domain.Position)
}

// New creates a Scheduler. It does not start the loops.
func New(opts Options) *Scheduler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	series := opts.Series
	if series == nil {
		series = pricehistory.NewSeries(0)
	}
	return &Scheduler{
		cfg:       opts.Config.withDefaults(),
		prices:    opts.Prices,
		positions: opts.Positions,
		series:    series,
		engine:    opts.Engine,
		validator: opts.Validator,
		monitor:   opts.Monitor,
		trailing:  opts.Trailing,
		publisher: opts.Publisher,
		logger:    opts.Logger.With().Str("component", "scheduler").Logger(),
		now:       now,
		watchlist: make(map[string]domain.TokenMeta),
		alerts:    make(map[string]PriceAlert),
		open:      make(map[string]domain.Position),
		signals:   make(map[string]SignalSnapshot),
	}
}

// ObservePositions registers fn to receive the open positions after every
// position sweep. Used by PoolWatcher.
func (s *Scheduler) ObservePositions(fn func(context.Context, []domain.Position)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Start launches both sweep loops. They run until Stop or until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go s.loop(runCtx, SweepSignals, s.cfg.SignalInterval, s.RunSignalSweep)
	go s.loop(runCtx, SweepPositions, s.cfg.PositionInterval, s.RunPositionSweep)

	s.logger.Info().
		Dur("signal_interval", s.cfg.SignalInterval).
		Dur("position_interval", s.cfg.PositionInterval).
		Int("concurrency", s.cfg.Concurrency).
		Msg("scheduler started")
	return nil
}

// Stop cancels in-flight sweeps and waits for the loops to exit. Results of
// a cycle that was running are discarded; a cycle already applying its
// results finishes first. Start may be called again.
func (s *Scheduler) Stop() {
	s.lifecycleMu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.lifecycleMu.Unlock()
	if cancel == nil {
		return
	}

	s.applyMu.Lock()
	s.generation.Add(1)
	s.applyMu.Unlock()
	cancel()
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// Running reports whether the loops are active.
func (s *Scheduler) Running() bool {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, sweep func(context.Context) error) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// An overrunning sweep makes the next tick skip.
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				if err := sweep(ctx); err != nil && !errors.Is(err, ErrSweepRunning) && ctx.Err() == nil {
					s.logger.Warn().Err(err).Str("sweep", name).Msg("sweep failed")
				}
			}()
		}
	}
}

// begin marks a sweep as running and returns the generation it belongs to.
func (s *Scheduler) begin(name string, running *atomic.Bool) (uint64, bool) {
	if !running.CompareAndSwap(false, true) {
		observability.RecordSweepSkipped(name)
		s.logger.Debug().Str("sweep", name).Msg("previous sweep still running, skipping")
		return 0, false
	}
	return s.generation.Load(), true
}

// stale reports whether Stop ran since gen was taken, counting n discarded results.
func (s *Scheduler) stale(name string, gen uint64, n int) bool {
	if s.generation.Load() == gen {
		return false
	}
	observability.RecordResultsDiscarded(name, n)
	s.logger.Debug().Str("sweep", name).Int("results", n).Msg("scheduler stopped mid-sweep, discarding results")
	return true
}

// stamp dates e with the sweep time and orders it within its sweep.
func stamp(e domain.DecisionEvent, at time.Time, seq int) domain.DecisionEvent {
	e.OccurredAt = at
	e.Seq = seq
	return e
}

func newCorrelationID() string {
	return uuid.NewString()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running           bool      `json:"running"`
	Generation        uint64    `json:"generation"`
	Watchlist         int       `json:"watchlist"`
	OpenPositions     int       `json:"openPositions"`
	Alerts            int       `json:"alerts"`
	LastSignalSweep   time.Time `json:"lastSignalSweep"`
	LastPositionSweep time.Time `json:"lastPositionSweep"`
}

// Status returns the current Status.
func (s *Scheduler) Status() Status {
	running := s.Running()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Running:           running,
		Generation:        s.generation.Load(),
		Watchlist:         len(s.watchlist),
		OpenPositions:     len(s.open),
		Alerts:            len(s.alerts),
		LastSignalSweep:   s.lastSignalSweep,
		LastPositionSweep: s.lastPositionScan,
	}
}
