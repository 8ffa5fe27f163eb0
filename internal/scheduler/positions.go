package scheduler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/emergency"
	"solana-trade-sentinel/internal/events"
	"solana-trade-sentinel/internal/observability"
)

type positionOutcome struct {
	position domain.Position
	price    float64
	decision emergency.Decision
}

// OpenPositions returns the positions seen by the last position sweep.
func (s *Scheduler) OpenPositions() []domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Position, 0, len(s.open))
	for _, token := range sortedKeys(s.open) {
		out = append(out, s.open[token])
	}
	return out
}

// RunPositionSweep runs one position sweep. It returns ErrSweepRunning when
// the previous one has not finished.
func (s *Scheduler) RunPositionSweep(ctx context.Context) error {
	gen, ok := s.begin(SweepPositions, &s.positionRunning)
	if !ok {
		return ErrSweepRunning
	}
	defer s.positionRunning.Store(false)

	start := time.Now()
	defer func() {
		observability.RecordSweep(SweepPositions, time.Since(start).Seconds())
	}()

	positions, err := s.positions.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("list open positions: %w", err)
	}
	if s.stale(SweepPositions, gen, len(positions)) {
		return nil
	}

	open := make(map[string]domain.Position, len(positions))
	for _, p := range positions {
		open[p.TokenID] = p
	}
	s.forgetClosed(open)

	s.mu.Lock()
	s.open = open
	observers := append([]func(context.Context, []domain.Position){}, s.observers...)
	s.mu.Unlock()
	observability.SetTrackedTokens("positions", len(open))

	for _, fn := range observers {
		fn(ctx, positions)
	}
	if len(open) == 0 {
		return nil
	}

	tokens := sortedKeys(open)
	quotes, err := s.prices.FetchPrices(ctx, tokens)
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}

	now := s.now()
	outcomes := make([]*positionOutcome, len(tokens))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, token := range tokens {
		q, ok := quotes[token]
		if !ok {
			s.logger.Debug().Str("token", token).Msg("no price for open position")
			continue
		}
		i, pos, price := i, open[token], q.Price
		g.Go(func() error {
			outcomes[i] = &positionOutcome{
				position: pos,
				price:    price,
				decision: s.checkEmergency(gctx, pos, price, now),
			}
			return nil
		})
	}
	_ = g.Wait()

	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	if s.stale(SweepPositions, gen, len(tokens)) {
		return nil
	}

	correlationID := newCorrelationID()
	for _, out := range outcomes {
		if out == nil {
			continue
		}
		s.applyPosition(out, correlationID, now)
	}

	s.mu.Lock()
	s.lastPositionScan = now
	s.mu.Unlock()
	return nil
}

// CheckNow runs the emergency monitor for one open position outside the
// sweep cycle and publishes an exit when warranted.
func (s *Scheduler) CheckNow(ctx context.Context, tokenID string) (emergency.Decision, error) {
	gen := s.generation.Load()

	s.mu.RLock()
	pos, ok := s.open[tokenID]
	s.mu.RUnlock()
	if !ok {
		return emergency.Decision{}, ErrUnknownPosition
	}

	quotes, err := s.prices.FetchPrices(ctx, []string{tokenID})
	if err != nil {
		return emergency.Decision{}, fmt.Errorf("fetch price: %w", err)
	}
	q, ok := quotes[tokenID]
	if !ok {
		return emergency.Decision{}, ErrNoPrice
	}

	now := s.now()
	d := s.checkEmergency(ctx, pos, q.Price, now)

	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	if s.stale(SweepPositions, gen, 1) {
		return d, nil
	}
	if d.ShouldExit {
		s.publishExit(pos.TokenID, newCorrelationID(), d, now)
	}
	return d, nil
}

func (s *Scheduler) checkEmergency(ctx context.Context, pos domain.Position, price float64, now time.Time) emergency.Decision {
	if s.monitor == nil {
		return emergency.Decision{}
	}
	return s.monitor.Check(ctx, emergency.Input{
		TokenID:        pos.TokenID,
		CurrentPrice:   price,
		PoolAddress:    pos.PoolAddress,
		CreatorAddress: pos.CreatorAddress,
		Now:            now,
	})
}

// applyPosition publishes the emergency decision and advances the trailing stop.
func (s *Scheduler) applyPosition(out *positionOutcome, correlationID string, now time.Time) {
	token := out.position.TokenID
	if out.decision.ShouldExit {
		s.publishExit(token, correlationID, out.decision, now)
	}

	if s.trailing == nil {
		return
	}
	pnl := out.position.PnLPct(out.price)
	upd := s.trailing.Update(token, pnl)
	observability.RecordTrailingUpdate(upd.ShouldExit)
	s.publish(stamp(events.TrailingUpdate(token, correlationID, upd.State, upd.CurrentPnlPct, upd.DrawdownFromPeak, upd.ShouldExit), now, 1))
	if upd.ShouldExit {
		s.logger.Info().
			Str("token", token).
			Float64("highest_pnl_pct", upd.State.HighestPnlPct).
			Float64("current_pnl_pct", upd.CurrentPnlPct).
			Float64("drawdown", upd.DrawdownFromPeak).
			Msg("trailing stop hit")
	}
}

func (s *Scheduler) publishExit(token, correlationID string, d emergency.Decision, now time.Time) {
	triggered := d.Triggered()
	detectors := make([]string, 0, len(triggered))
	for _, t := range triggered {
		detectors = append(detectors, t.Detector)
	}
	observability.RecordEmergencyExit()
	s.logger.Warn().
		Str("token", token).
		Str("severity", string(d.Severity)).
		Str("reason", d.CriticalReason).
		Strs("detectors", detectors).
		Msg("emergency exit")
	s.publish(stamp(events.EmergencyExit(token, correlationID, d.CriticalReason, d.Severity, detectors), now, 0))
}

// forgetClosed drops trailing state and price windows of positions no longer open.
func (s *Scheduler) forgetClosed(open map[string]domain.Position) {
	closed := make(map[string]struct{})
	s.mu.RLock()
	for token := range s.open {
		if _, ok := open[token]; !ok {
			closed[token] = struct{}{}
		}
	}
	s.mu.RUnlock()
	if s.trailing != nil {
		for _, token := range s.trailing.Tokens() {
			if _, ok := open[token]; !ok {
				closed[token] = struct{}{}
			}
		}
	}

	for token := range closed {
		if s.trailing != nil {
			s.trailing.Discard(token)
		}
		if s.monitor != nil {
			s.monitor.Forget(token)
		}
		s.logger.Debug().Str("token", token).Msg("position closed, state discarded")
	}
}
