package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-trade-sentinel/internal/domain"
)

func TestSignalSweep_BuyApproved(t *testing.T) {
	h := newHarness(fixedStrategy{name: "always-buy", buy: true}, fixedStrategy{name: "idle"})
	h.sched.Watch("tok", domain.TokenMeta{PoolAddress: "pool"})
	h.prices.set("tok", 1.5)

	require.NoError(t, h.sched.RunSignalSweep(context.Background()))

	signals := h.pub.ofType(domain.EventSignalGenerated)
	require.Len(t, signals, 1, "hold results are not published")
	assert.Equal(t, "always-buy", signals[0].Payload["strategy"])
	assert.Equal(t, 1.5, signals[0].Payload["price"])

	approved := h.pub.ofType(domain.EventTradeApproved)
	require.Len(t, approved, 1)
	assert.Equal(t, signals[0].CorrelationID, approved[0].CorrelationID)
	assert.NotEmpty(t, approved[0].CorrelationID)

	require.Len(t, h.validator.calls, 1)
	call := h.validator.calls[0]
	assert.Equal(t, "pool", call.pool)
	require.NotNil(t, call.liquidity)
	assert.Equal(t, 50.0, *call.liquidity)

	snap, ok := h.sched.Signals("tok")
	require.True(t, ok)
	require.NotNil(t, snap.Best)
	assert.Equal(t, "always-buy", snap.Best.Strategy)
	require.NotNil(t, snap.Validation)
	assert.True(t, snap.Validation.Approved)
	assert.Len(t, snap.Results, 2)
}

func TestSignalSweep_BuyRejected(t *testing.T) {
	h := newHarness(fixedStrategy{name: "always-buy", buy: true})
	h.validator.result = domain.ValidationResult{
		FailedFilters: []string{domain.FilterLiquidity},
		Reason:        "insufficient liquidity",
	}
	h.sched.Watch("tok", domain.TokenMeta{})
	h.prices.set("tok", 1)

	require.NoError(t, h.sched.RunSignalSweep(context.Background()))

	rejected := h.pub.ofType(domain.EventTradeRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, []string{domain.FilterLiquidity}, rejected[0].Payload["reasons"])
	assert.Empty(t, h.pub.ofType(domain.EventTradeApproved))
}

func TestSignalSweep_SellIsNotValidated(t *testing.T) {
	h := newHarness(fixedStrategy{name: "always-sell", sell: true})
	h.sched.Watch("tok", domain.TokenMeta{})
	h.prices.set("tok", 1)

	require.NoError(t, h.sched.RunSignalSweep(context.Background()))

	assert.Len(t, h.pub.ofType(domain.EventSignalGenerated), 1)
	assert.Empty(t, h.validator.calls)
}

func TestSignalSweep_MissingQuoteSkipsToken(t *testing.T) {
	h := newHarness(fixedStrategy{name: "always-buy", buy: true})
	h.sched.Watch("priced", domain.TokenMeta{})
	h.sched.Watch("unpriced", domain.TokenMeta{})
	h.prices.set("priced", 1)

	require.NoError(t, h.sched.RunSignalSweep(context.Background()))

	signals := h.pub.ofType(domain.EventSignalGenerated)
	require.Len(t, signals, 1)
	assert.Equal(t, "priced", signals[0].TokenID)
	_, ok := h.sched.Signals("unpriced")
	assert.False(t, ok)
}

func TestSignalSweep_AppendsHistory(t *testing.T) {
	h := newHarness()
	h.sched.Watch("tok", domain.TokenMeta{})
	h.prices.set("tok", 1)

	for i := 0; i < 3; i++ {
		require.NoError(t, h.sched.RunSignalSweep(context.Background()))
	}
	assert.Equal(t, 3, h.sched.series.Len("tok"))

	assert.True(t, h.sched.Unwatch("tok"))
	assert.Zero(t, h.sched.series.Len("tok"))
	assert.False(t, h.sched.Unwatch("tok"))
}

func TestSignalSweep_FetchError(t *testing.T) {
	h := newHarness(fixedStrategy{name: "always-buy", buy: true})
	h.sched.Watch("tok", domain.TokenMeta{})
	h.prices.err = errors.New("price api down")

	err := h.sched.RunSignalSweep(context.Background())
	require.Error(t, err)
	assert.Zero(t, h.pub.count())
}

func TestSignalSweep_EmptyWatchlistDoesNotFetch(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.sched.RunSignalSweep(context.Background()))
	assert.Zero(t, h.prices.calls)
}

func TestSignalSweep_SkipsWhileRunning(t *testing.T) {
	h := newHarness()
	h.sched.Watch("tok", domain.TokenMeta{})
	h.prices.set("tok", 1)
	h.prices.entered = make(chan struct{}, 1)
	h.prices.release = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.sched.RunSignalSweep(context.Background()) }()
	<-h.prices.entered

	assert.ErrorIs(t, h.sched.RunSignalSweep(context.Background()), ErrSweepRunning)

	close(h.prices.release)
	require.NoError(t, <-done)
}

func TestSignalSweep_DiscardedAfterStop(t *testing.T) {
	h := newHarness(fixedStrategy{name: "always-buy", buy: true})
	h.sched.Watch("tok", domain.TokenMeta{})
	h.prices.set("tok", 1)
	h.prices.entered = make(chan struct{}, 1)
	h.prices.release = make(chan struct{})

	require.NoError(t, h.sched.Start(context.Background()))

	done := make(chan error, 1)
	go func() { done <- h.sched.RunSignalSweep(context.Background()) }()
	<-h.prices.entered

	h.sched.Stop()
	close(h.prices.release)
	require.NoError(t, <-done)

	assert.Zero(t, h.pub.count(), "results of a cycle straddling Stop are dropped")
	_, ok := h.sched.Signals("tok")
	assert.False(t, ok)
}

func TestPriceAlerts_FireOnce(t *testing.T) {
	h := newHarness()
	above, err := h.sched.AddAlert(PriceAlert{TokenID: "tok", Direction: AlertAbove, Target: 1.5})
	require.NoError(t, err)
	assert.NotEmpty(t, above.ID)
	_, err = h.sched.AddAlert(PriceAlert{TokenID: "tok", Direction: AlertBelow, Target: 0.5})
	require.NoError(t, err)

	h.prices.set("tok", 1.0)
	require.NoError(t, h.sched.RunSignalSweep(context.Background()))
	assert.Empty(t, h.pub.ofType(domain.EventPriceAlert))
	assert.Len(t, h.sched.Alerts(), 2)

	h.prices.set("tok", 1.5)
	require.NoError(t, h.sched.RunSignalSweep(context.Background()))
	fired := h.pub.ofType(domain.EventPriceAlert)
	require.Len(t, fired, 1)
	assert.Equal(t, above.ID, fired[0].Payload["alertId"])
	assert.Equal(t, AlertAbove, fired[0].Payload["direction"])

	require.NoError(t, h.sched.RunSignalSweep(context.Background()))
	assert.Len(t, h.pub.ofType(domain.EventPriceAlert), 1)
	assert.Len(t, h.sched.Alerts(), 1)
}

func TestAddAlert_Invalid(t *testing.T) {
	h := newHarness()
	for _, a := range []PriceAlert{
		{Direction: AlertAbove, Target: 1},
		{TokenID: "tok", Direction: "sideways", Target: 1},
		{TokenID: "tok", Direction: AlertBelow, Target: 0},
		{TokenID: "tok", Direction: AlertBelow, Target: -2},
	} {
		_, err := h.sched.AddAlert(a)
		assert.ErrorIs(t, err, ErrInvalidAlert)
	}
	assert.Empty(t, h.sched.Alerts())
}

func TestRecordSmartWallet(t *testing.T) {
	h := newHarness()
	sig := domain.SmartWalletSignal{Wallet: "w", Action: domain.SmartWalletBuy, AmountSol: 3, SeenAt: time.Now()}
	assert.False(t, h.sched.RecordSmartWallet("tok", sig))

	h.sched.Watch("tok", domain.TokenMeta{Symbol: "TOK"})
	assert.True(t, h.sched.RecordSmartWallet("tok", sig))

	// re-watching keeps the signal
	h.sched.Watch("tok", domain.TokenMeta{Symbol: "TOK2"})
	h.sched.mu.RLock()
	meta := h.sched.watchlist["tok"]
	h.sched.mu.RUnlock()
	require.NotNil(t, meta.SmartWallet)
	assert.Equal(t, "w", meta.SmartWallet.Wallet)
	assert.Equal(t, "TOK2", meta.Symbol)
}

func TestStartStop(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	require.NoError(t, h.sched.Start(ctx))
	assert.True(t, h.sched.Running())
	assert.ErrorIs(t, h.sched.Start(ctx), ErrAlreadyStarted)

	h.sched.Stop()
	assert.False(t, h.sched.Running())
	h.sched.Stop()

	require.NoError(t, h.sched.Start(ctx))
	h.sched.Stop()
	assert.Equal(t, uint64(2), h.sched.Status().Generation)
}

func TestLoop_RunsSweeps(t *testing.T) {
	h := newHarness(fixedStrategy{name: "always-sell", sell: true})
	h.sched.cfg.SignalInterval = 10 * time.Millisecond
	h.sched.Watch("tok", domain.TokenMeta{})
	h.prices.set("tok", 1)

	require.NoError(t, h.sched.Start(context.Background()))
	assert.Eventually(t, func() bool {
		return len(h.pub.ofType(domain.EventSignalGenerated)) >= 2
	}, 2*time.Second, 10*time.Millisecond)
	h.sched.Stop()

	st := h.sched.Status()
	assert.False(t, st.Running)
	assert.Equal(t, 1, st.Watchlist)
	assert.False(t, st.LastSignalSweep.IsZero())
}

func TestSignalSweep_EventsStampedPerSweep(t *testing.T) {
	h := newHarness(fixedStrategy{name: "dup", buy: true}, fixedStrategy{name: "dup", buy: true})
	h.sched.Watch("tok", domain.TokenMeta{PoolAddress: "pool"})
	h.prices.set("tok", 1)

	require.NoError(t, h.sched.RunSignalSweep(context.Background()))

	signals := h.pub.ofType(domain.EventSignalGenerated)
	require.Len(t, signals, 2)
	assert.ElementsMatch(t, []int{0, 1}, []int{signals[0].Seq, signals[1].Seq}, "same-named strategies are told apart")
	for _, e := range signals {
		assert.Equal(t, h.sched.now(), e.OccurredAt)
	}

	approved := h.pub.ofType(domain.EventTradeApproved)
	require.Len(t, approved, 1)
	assert.Equal(t, 2, approved[0].Seq)
	assert.Equal(t, h.sched.now(), approved[0].OccurredAt)
}
