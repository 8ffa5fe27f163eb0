package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/events"
	"solana-trade-sentinel/internal/observability"
	"solana-trade-sentinel/internal/pricefeed"
	"solana-trade-sentinel/internal/strategy"
)

// Alert directions.
const (
	AlertAbove = "above"
	AlertBelow = "below"
)

// ErrInvalidAlert is returned for an alert without token, direction or a positive target.
var ErrInvalidAlert = errors.New("invalid price alert")

// PriceAlert fires once when the token's price crosses Target in Direction.
type PriceAlert struct {
	ID        string    `json:"id"`
	TokenID   string    `json:"tokenId"`
	Direction string    `json:"direction"`
	Target    float64   `json:"target"`
	CreatedAt time.Time `json:"createdAt"`
}

func (a PriceAlert) crossed(price float64) bool {
	if a.Direction == AlertAbove {
		return price >= a.Target
	}
	return price <= a.Target
}

// SignalSnapshot is the latest strategy output for a token.
type SignalSnapshot struct {
	TokenID    string                   `json:"tokenId"`
	Price      float64                  `json:"price"`
	Results    []domain.StrategyResult  `json:"results"`
	Best       *domain.StrategyResult   `json:"best,omitempty"`
	Validation *domain.ValidationResult `json:"validation,omitempty"`
	At         time.Time                `json:"at"`
}

// Watch adds or replaces a token on the entry watchlist.
func (s *Scheduler) Watch(tokenID string, meta domain.TokenMeta) {
	s.mu.Lock()
	if prev, ok := s.watchlist[tokenID]; ok && meta.SmartWallet == nil {
		meta.SmartWallet = prev.SmartWallet
	}
	s.watchlist[tokenID] = meta
	n := len(s.watchlist)
	s.mu.Unlock()
	observability.SetTrackedTokens("watchlist", n)
}

// Unwatch removes a token from the watchlist and drops its history.
func (s *Scheduler) Unwatch(tokenID string) bool {
	s.mu.Lock()
	_, ok := s.watchlist[tokenID]
	delete(s.watchlist, tokenID)
	delete(s.signals, tokenID)
	n := len(s.watchlist)
	s.mu.Unlock()
	if ok {
		s.series.Forget(tokenID)
	}
	observability.SetTrackedTokens("watchlist", n)
	return ok
}

// Watchlist returns the watched tokens in id order.
func (s *Scheduler) Watchlist() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.watchlist)
}

// RecordSmartWallet attaches the latest tracked-wallet trade to a watched
// token. It returns false when the token is not watched.
func (s *Scheduler) RecordSmartWallet(tokenID string, sig domain.SmartWalletSignal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.watchlist[tokenID]
	if !ok {
		return false
	}
	meta.SmartWallet = &sig
	s.watchlist[tokenID] = meta
	return true
}

// AddAlert registers a one-shot price alert.
func (s *Scheduler) AddAlert(a PriceAlert) (PriceAlert, error) {
	if a.TokenID == "" {
		return PriceAlert{}, fmt.Errorf("%w: token id is required", ErrInvalidAlert)
	}
	if a.Direction != AlertAbove && a.Direction != AlertBelow {
		return PriceAlert{}, fmt.Errorf("%w: direction must be %q or %q", ErrInvalidAlert, AlertAbove, AlertBelow)
	}
	if !(a.Target > 0) {
		return PriceAlert{}, fmt.Errorf("%w: target must be positive", ErrInvalidAlert)
	}
	if a.ID == "" {
		a.ID = newCorrelationID()
	}
	a.CreatedAt = s.now()

	s.mu.Lock()
	s.alerts[a.ID] = a
	s.mu.Unlock()
	return a, nil
}

// Alerts returns pending alerts.
func (s *Scheduler) Alerts() []PriceAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PriceAlert, 0, len(s.alerts))
	for _, id := range sortedKeys(s.alerts) {
		out = append(out, s.alerts[id])
	}
	return out
}

// Signals returns the latest snapshot for a token.
func (s *Scheduler) Signals(tokenID string) (SignalSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.signals[tokenID]
	return snap, ok
}

type tokenOutcome struct {
	snapshot SignalSnapshot
	strategy string // strategy behind a validated buy
}

// RunSignalSweep runs one signal sweep. It returns ErrSweepRunning when the
// previous one has not finished.
func (s *Scheduler) RunSignalSweep(ctx context.Context) error {
	gen, ok := s.begin(SweepSignals, &s.signalsRunning)
	if !ok {
		return ErrSweepRunning
	}
	defer s.signalsRunning.Store(false)

	start := time.Now()
	defer func() {
		observability.RecordSweep(SweepSignals, time.Since(start).Seconds())
	}()

	s.mu.RLock()
	watch := make(map[string]domain.TokenMeta, len(s.watchlist))
	for k, v := range s.watchlist {
		watch[k] = v
	}
	tokenSet := make(map[string]struct{}, len(s.watchlist)+len(s.alerts))
	for k := range s.watchlist {
		tokenSet[k] = struct{}{}
	}
	for _, a := range s.alerts {
		tokenSet[a.TokenID] = struct{}{}
	}
	s.mu.RUnlock()

	if len(tokenSet) == 0 {
		return nil
	}

	quotes, err := s.prices.FetchPrices(ctx, sortedKeys(tokenSet))
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}
	if s.stale(SweepSignals, gen, len(quotes)) {
		return nil
	}

	now := s.now()
	correlationID := newCorrelationID()

	tokens := sortedKeys(watch)
	for _, token := range tokens {
		q, ok := quotes[token]
		if !ok {
			continue
		}
		s.series.Append(token, domain.MarketSample{
			Price:     q.Price,
			Liquidity: q.Liquidity,
			Volume:    q.Volume24h,
			Timestamp: now,
		})
	}

	outcomes := make([]*tokenOutcome, len(tokens))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, token := range tokens {
		q, ok := quotes[token]
		if !ok {
			continue
		}
		i, token, meta := i, token, watch[token]
		g.Go(func() error {
			outcomes[i] = s.evaluateToken(gctx, token, meta, q, now)
			return nil
		})
	}
	_ = g.Wait()

	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	if s.stale(SweepSignals, gen, len(tokens)) {
		return nil
	}

	for _, out := range outcomes {
		if out == nil {
			continue
		}
		s.publishSignals(out, correlationID, now)
	}
	s.fireAlerts(quotes, now)

	s.mu.Lock()
	s.lastSignalSweep = now
	s.mu.Unlock()
	return nil
}

// evaluateToken runs the engine and, for a buy, the validation pipeline.
func (s *Scheduler) evaluateToken(ctx context.Context, token string, meta domain.TokenMeta, q pricefeed.Quote, now time.Time) *tokenOutcome {
	sc := s.series.Context(token, meta, now)
	results := s.engine.EvaluateAll(sc)

	out := &tokenOutcome{snapshot: SignalSnapshot{
		TokenID: token,
		Price:   q.Price,
		Results: results,
		At:      now,
	}}

	best, ok := strategy.Aggregate(results)
	if !ok {
		return out
	}
	out.snapshot.Best = &best
	if !best.ShouldBuy || s.validator == nil {
		return out
	}

	var liquidity *float64
	if q.Liquidity > 0 {
		l := q.Liquidity
		liquidity = &l
	}
	v := s.validator.Validate(ctx, token, meta.PoolAddress, s.cfg.Validation, liquidity)
	out.snapshot.Validation = &v
	out.strategy = best.Strategy
	return out
}

// publishSignals publishes one token's outcome. Events are numbered by
// result index so same-named strategies get distinct ids.
func (s *Scheduler) publishSignals(out *tokenOutcome, correlationID string, now time.Time) {
	snap := out.snapshot
	for i, r := range snap.Results {
		if r.IsHold() {
			continue
		}
		observability.RecordSignal(r.Strategy, r.Side())
		s.publish(stamp(events.SignalGenerated(snap.TokenID, correlationID, r, snap.Price), now, i))
	}
	if snap.Validation != nil {
		s.publish(stamp(events.TradeDecision(snap.TokenID, correlationID, out.strategy, *snap.Validation), now, len(snap.Results)))
		if !snap.Validation.Approved {
			s.logger.Info().
				Str("token", snap.TokenID).
				Str("strategy", out.strategy).
				Strs("failed", snap.Validation.FailedFilters).
				Msg("buy signal rejected")
		}
	}

	s.mu.Lock()
	if _, watched := s.watchlist[snap.TokenID]; watched {
		s.signals[snap.TokenID] = snap
	}
	s.mu.Unlock()
}

// fireAlerts publishes and removes every alert whose target was crossed.
func (s *Scheduler) fireAlerts(quotes map[string]pricefeed.Quote, now time.Time) {
	var fired []PriceAlert
	s.mu.Lock()
	for _, id := range sortedKeys(s.alerts) {
		a := s.alerts[id]
		q, ok := quotes[a.TokenID]
		if !ok || !a.crossed(q.Price) {
			continue
		}
		delete(s.alerts, id)
		fired = append(fired, a)
	}
	s.mu.Unlock()

	for _, a := range fired {
		price := quotes[a.TokenID].Price
		observability.RecordPriceAlert()
		s.logger.Info().
			Str("token", a.TokenID).
			Str("alert", a.ID).
			Str("direction", a.Direction).
			Float64("target", a.Target).
			Float64("price", price).
			Msg("price alert fired")
		s.publish(stamp(events.PriceAlert(a.TokenID, a.ID, a.Direction, a.Target, price), now, 0))
	}
}

func (s *Scheduler) publish(e domain.DecisionEvent) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(e)
}
