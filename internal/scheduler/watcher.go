package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/emergency"
	"solana-trade-sentinel/internal/solana"
)

// AccountSubscriber streams account changes.
type AccountSubscriber interface {
	SubscribeAccount(ctx context.Context, address string) (<-chan solana.AccountNotification, error)
	UnsubscribeAccount(ctx context.Context, address string) error
}

// ImmediateChecker runs an out-of-cycle emergency check.
type ImmediateChecker interface {
	CheckNow(ctx context.Context, tokenID string) (emergency.Decision, error)
}

// PoolWatcher subscribes to the pool accounts of open positions and requests
// an immediate emergency check when a pool is drained.
type PoolWatcher struct {
	subs    AccountSubscriber
	checker ImmediateChecker
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	watched map[string]string // pool -> token
	wg      sync.WaitGroup
}

// NewPoolWatcher creates a PoolWatcher. Register Sync with
// Scheduler.ObservePositions to keep it in step with open positions.
func NewPoolWatcher(subs AccountSubscriber, checker ImmediateChecker, logger zerolog.Logger) *PoolWatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &PoolWatcher{
		subs:    subs,
		checker: checker,
		logger:  logger.With().Str("component", "pool-watcher").Logger(),
		ctx:     ctx,
		cancel:  cancel,
		watched: make(map[string]string),
	}
}

// Sync subscribes to pools of new positions and unsubscribes from pools
// whose position closed.
func (w *PoolWatcher) Sync(ctx context.Context, positions []domain.Position) {
	want := make(map[string]string, len(positions))
	for _, p := range positions {
		if p.PoolAddress != "" {
			want[p.PoolAddress] = p.TokenID
		}
	}

	w.mu.Lock()
	var added, removed []string
	for pool := range want {
		if _, ok := w.watched[pool]; !ok {
			added = append(added, pool)
		}
	}
	for pool := range w.watched {
		if _, ok := want[pool]; !ok {
			removed = append(removed, pool)
			delete(w.watched, pool)
		}
	}
	w.mu.Unlock()

	for _, pool := range removed {
		if err := w.subs.UnsubscribeAccount(ctx, pool); err != nil {
			w.logger.Warn().Err(err).Str("pool", pool).Msg("unsubscribe failed")
		}
	}

	for _, pool := range added {
		token := want[pool]
		ch, err := w.subs.SubscribeAccount(ctx, pool)
		if err != nil {
			w.logger.Warn().Err(err).Str("pool", pool).Str("token", token).Msg("subscribe failed, will retry next sweep")
			continue
		}
		w.mu.Lock()
		w.watched[pool] = token
		w.mu.Unlock()

		w.wg.Add(1)
		go w.watch(pool, token, ch)
		w.logger.Debug().Str("pool", pool).Str("token", token).Msg("watching pool")
	}
}

// Watched returns the number of pools with a live subscription.
func (w *PoolWatcher) Watched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

func (w *PoolWatcher) watch(pool, token string, ch <-chan solana.AccountNotification) {
	defer w.wg.Done()
	for n := range ch {
		if n.Lamports != 0 {
			continue
		}
		w.logger.Warn().Str("pool", pool).Str("token", token).Int64("slot", n.Slot).Msg("pool drained, checking position")
		d, err := w.checker.CheckNow(w.ctx, token)
		switch {
		case errors.Is(err, ErrUnknownPosition):
			return
		case err != nil:
			w.logger.Warn().Err(err).Str("token", token).Msg("immediate check failed")
		case d.ShouldExit:
			w.logger.Info().Str("token", token).Str("reason", d.CriticalReason).Msg("immediate check requested exit")
		}
	}
}

// Close unsubscribes every pool and waits for the watch goroutines.
func (w *PoolWatcher) Close(ctx context.Context) error {
	w.cancel()

	w.mu.Lock()
	pools := make([]string, 0, len(w.watched))
	for pool := range w.watched {
		pools = append(pools, pool)
	}
	w.watched = make(map[string]string)
	w.mu.Unlock()

	var firstErr error
	for _, pool := range pools {
		if err := w.subs.UnsubscribeAccount(ctx, pool); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.wg.Wait()
	return firstErr
}
