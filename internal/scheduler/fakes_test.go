package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/emergency"
	"solana-trade-sentinel/internal/pricefeed"
	"solana-trade-sentinel/internal/strategy"
	"solana-trade-sentinel/internal/trailing"
)

type fakePrices struct {
	mu      sync.Mutex
	quotes  map[string]pricefeed.Quote
	err     error
	calls   int
	entered chan struct{} // signalled on every call when set
	release chan struct{} // blocks calls until closed when set
}

func newFakePrices() *fakePrices {
	return &fakePrices{quotes: make(map[string]pricefeed.Quote)}
}

func (f *fakePrices) set(token string, price float64) {
	f.mu.Lock()
	f.quotes[token] = pricefeed.Quote{Price: price, Liquidity: 50, Volume24h: 1000}
	f.mu.Unlock()
}

func (f *fakePrices) FetchPrices(_ context.Context, ids []string) (map[string]pricefeed.Quote, error) {
	f.mu.Lock()
	f.calls++
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]pricefeed.Quote, len(ids))
	for _, id := range ids {
		if q, ok := f.quotes[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

type fakePositions struct {
	mu        sync.Mutex
	positions []domain.Position
	err       error
}

func (f *fakePositions) set(ps ...domain.Position) {
	f.mu.Lock()
	f.positions = ps
	f.mu.Unlock()
}

func (f *fakePositions) OpenPositions(context.Context) ([]domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Position(nil), f.positions...), f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.DecisionEvent
}

func (p *recordingPublisher) Publish(e domain.DecisionEvent) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *recordingPublisher) ofType(t domain.EventType) []domain.DecisionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.DecisionEvent
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type validateCall struct {
	token, pool string
	liquidity   *float64
}

type fakeValidator struct {
	mu     sync.Mutex
	result domain.ValidationResult
	calls  []validateCall
}

func (f *fakeValidator) Validate(_ context.Context, tokenID, poolID string, _ domain.ValidationConfig, knownLiquidity *float64) domain.ValidationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, validateCall{token: tokenID, pool: poolID, liquidity: knownLiquidity})
	return f.result
}

type fakeMonitor struct {
	mu        sync.Mutex
	decisions map[string]emergency.Decision
	checked   []emergency.Input
	forgotten []string
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{decisions: make(map[string]emergency.Decision)}
}

func (f *fakeMonitor) Check(_ context.Context, in emergency.Input) emergency.Decision {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, in)
	return f.decisions[in.TokenID]
}

func (f *fakeMonitor) Forget(tokenID string) {
	f.mu.Lock()
	f.forgotten = append(f.forgotten, tokenID)
	f.mu.Unlock()
}

func (f *fakeMonitor) forgottenTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.forgotten...)
}

// fixedStrategy always returns the same opinion.
type fixedStrategy struct {
	name string
	buy  bool
	sell bool
}

func (s fixedStrategy) Name() string { return s.name }

func (s fixedStrategy) Evaluate(domain.StrategyContext) domain.StrategyResult {
	return domain.StrategyResult{Strategy: s.name, ShouldBuy: s.buy, ShouldSell: s.sell, Reason: "fixed"}
}

type harness struct {
	sched     *Scheduler
	prices    *fakePrices
	positions *fakePositions
	validator *fakeValidator
	monitor   *fakeMonitor
	tracker   *trailing.Tracker
	pub       *recordingPublisher
}

func newHarness(strategies ...strategy.Strategy) *harness {
	h := &harness{
		prices:    newFakePrices(),
		positions: &fakePositions{},
		validator: &fakeValidator{result: domain.ValidationResult{Approved: true}},
		monitor:   newFakeMonitor(),
		tracker:   trailing.NewTracker(trailing.Config{ActivationPct: 10, StopPct: 5}),
		pub:       &recordingPublisher{},
	}
	engine := strategy.NewEngine(zerolog.Nop())
	for _, s := range strategies {
		engine.Register(s)
	}
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h.sched = New(Options{
		Config: Config{
			SignalInterval:   time.Hour,
			PositionInterval: time.Hour,
			Concurrency:      4,
		},
		Prices:    h.prices,
		Positions: h.positions,
		Engine:    engine,
		Validator: h.validator,
		Monitor:   h.monitor,
		Trailing:  h.tracker,
		Publisher: h.pub,
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return clock },
	})
	return h
}
