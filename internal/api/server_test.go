package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/events"
	"solana-trade-sentinel/internal/pricefeed"
	"solana-trade-sentinel/internal/scheduler"
	"solana-trade-sentinel/internal/sizing"
	"solana-trade-sentinel/internal/storage/memory"
	"solana-trade-sentinel/internal/trailing"
)

type fakeValidator struct {
	gotCfg       domain.ValidationConfig
	gotLiquidity *float64
}

func (f *fakeValidator) Validate(_ context.Context, tokenID, _ string, cfg domain.ValidationConfig, knownLiquidity *float64) domain.ValidationResult {
	f.gotCfg = cfg
	f.gotLiquidity = knownLiquidity
	if tokenID == "" {
		return domain.ValidationResult{FailedFilters: []string{domain.FilterInvalidInput}, Reason: "token id is required"}
	}
	return domain.ValidationResult{Approved: true, PassedFilters: []string{domain.FilterLiquidity}}
}

// snapshotScheduler serves a fixed signal snapshot on top of a real scheduler.
type snapshotScheduler struct {
	*scheduler.Scheduler
	snap scheduler.SignalSnapshot
}

func (s *snapshotScheduler) Signals(tokenID string) (scheduler.SignalSnapshot, bool) {
	if tokenID != s.snap.TokenID {
		return scheduler.SignalSnapshot{}, false
	}
	return s.snap, true
}

type staticStats []events.SinkStats

func (s staticStats) Stats() []events.SinkStats { return s }

type fixture struct {
	srv       *Server
	validator *fakeValidator
	sched     *snapshotScheduler
	tracker   *trailing.Tracker
	journal   *memory.DecisionEventStore
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		validator: &fakeValidator{},
		sched: &snapshotScheduler{
			Scheduler: scheduler.New(scheduler.Options{Logger: zerolog.Nop()}),
			snap: scheduler.SignalSnapshot{
				TokenID: "tok",
				Price:   1.25,
				Results: []domain.StrategyResult{{Strategy: "momentum", ShouldBuy: true, Reason: "up 5%"}},
			},
		},
		tracker: trailing.NewTracker(trailing.Config{}),
		journal: memory.NewDecisionEventStore(),
	}
	f.srv = New(Options{
		Config:    cfg,
		Validator: f.validator,
		Sizer:     sizing.NewCalculator(0),
		Scheduler: f.sched,
		Trailing:  f.tracker,
		Journal:   f.journal,
		Sinks:     staticStats{{Name: "log", Written: 3}},
		Logger:    zerolog.Nop(),
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func addr(seed byte) string {
	b := make([]byte, 32)
	for i := range b {
		b[i] = seed
	}
	return base58.Encode(b)
}

func TestHealthAndRequestID(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStatus(t *testing.T) {
	f := newFixture(t, Config{})
	f.sched.Watch("tok", domain.TokenMeta{})

	rec := f.do(t, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Scheduler scheduler.Status   `json:"scheduler"`
		Sinks     []events.SinkStats `json:"sinks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Scheduler.Watchlist)
	assert.False(t, body.Scheduler.Running)
	require.Len(t, body.Sinks, 1)
	assert.Equal(t, uint64(3), body.Sinks[0].Written)
}

func TestValidate(t *testing.T) {
	defaults := domain.ValidationConfig{MinLiquiditySol: 5}
	f := newFixture(t, Config{DefaultValidation: defaults})

	liq := 7.5
	rec := f.do(t, http.MethodPost, "/v1/validate", validateRequest{TokenID: "tok", LiquiditySol: &liq})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[domain.ValidationResult](t, rec)
	assert.True(t, res.Approved)
	assert.Equal(t, defaults, f.validator.gotCfg)
	require.NotNil(t, f.validator.gotLiquidity)
	assert.Equal(t, 7.5, *f.validator.gotLiquidity)

	custom := domain.ValidationConfig{MinLiquiditySol: 50, RequireLPLocked: true}
	rec = f.do(t, http.MethodPost, "/v1/validate", validateRequest{TokenID: "tok", Config: &custom})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, custom, f.validator.gotCfg)

	rec = f.do(t, http.MethodPost, "/v1/validate", validateRequest{})
	require.Equal(t, http.StatusOK, rec.Code, "rejections are results, not HTTP errors")
	assert.False(t, decode[domain.ValidationResult](t, rec).Approved)
}

func TestValidate_PartialConfigOverlaysDefaults(t *testing.T) {
	defaults := domain.ValidationConfig{MinLiquiditySol: 5, MaxBuyTaxPct: 10, MaxSellTaxPct: 10}
	f := newFixture(t, Config{DefaultValidation: defaults})

	body := `{"tokenId":"tok","poolId":"pool","config":{"maxBuyTaxPct":0}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/validate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ValidationConfig{MinLiquiditySol: 5, MaxBuyTaxPct: 0, MaxSellTaxPct: 10}, f.validator.gotCfg)
}

func TestValidate_BadBody(t *testing.T) {
	f := newFixture(t, Config{})
	req := httptest.NewRequest(http.MethodPost, "/v1/validate", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRisk(t *testing.T) {
	f := newFixture(t, Config{})

	pct := 1.0
	rec := f.do(t, http.MethodPost, "/v1/risk", riskRequest{Balance: 10, RiskPercent: &pct})
	require.Equal(t, http.StatusOK, rec.Code)
	calc := decode[domain.RiskCalculation](t, rec)
	assert.InDelta(t, 0.1, calc.RiskAmount, 1e-12)
	assert.InDelta(t, 0.25, calc.Recommendation.Moderate, 1e-12)

	rec = f.do(t, http.MethodPost, "/v1/risk", riskRequest{Balance: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignals(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(t, http.MethodGet, "/v1/signals/tok", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[scheduler.SignalSnapshot](t, rec)
	assert.Equal(t, 1.25, snap.Price)
	require.Len(t, snap.Results, 1)
	assert.True(t, snap.Results[0].ShouldBuy)

	rec = f.do(t, http.MethodGet, "/v1/signals/other", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrailing(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.do(t, http.MethodGet, "/v1/trailing/tok", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.tracker.Update("tok", 12)
	rec = f.do(t, http.MethodGet, "/v1/trailing/tok", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[domain.TrailingStopState](t, rec)
	assert.Equal(t, 12.0, st.HighestPnlPct)
	assert.True(t, st.TrailingActivated)
}

func TestAlerts(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(t, http.MethodPost, "/v1/alerts", alertRequest{TokenID: "tok", Direction: "above", Target: 2})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[scheduler.PriceAlert](t, rec)
	assert.NotEmpty(t, created.ID)

	rec = f.do(t, http.MethodPost, "/v1/alerts", alertRequest{TokenID: "tok", Direction: "up", Target: 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Alerts []scheduler.PriceAlert `json:"alerts"`
	}](t, rec)
	require.Len(t, list.Alerts, 1)
	assert.Equal(t, created.ID, list.Alerts[0].ID)
}

func TestWatchlist(t *testing.T) {
	f := newFixture(t, Config{})
	token, pool := addr(7), addr(8)

	rec := f.do(t, http.MethodPost, "/v1/watchlist", watchRequest{TokenID: token, PoolAddress: pool, Symbol: "TOK"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/watchlist", watchRequest{TokenID: "not-base58!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/watchlist", watchRequest{TokenID: token, PoolAddress: "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/watchlist", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{token}, decode[map[string][]string](t, rec)["tokens"])

	rec = f.do(t, http.MethodPost, "/v1/watchlist/"+token+"/smart-wallet", smartWalletRequest{Wallet: "w", Action: "buy", AmountSol: 2})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodPost, "/v1/watchlist/"+token+"/smart-wallet", smartWalletRequest{Wallet: "w", Action: "hodl"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, "/v1/watchlist/"+token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/v1/watchlist/"+token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/watchlist/"+token+"/smart-wallet", smartWalletRequest{Wallet: "w", Action: "buy"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPositions(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.do(t, http.MethodGet, "/v1/positions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"positions":[]}`, rec.Body.String())
}

type staticPrices map[string]float64

func (p staticPrices) FetchPrices(_ context.Context, ids []string) (map[string]pricefeed.Quote, error) {
	out := make(map[string]pricefeed.Quote, len(ids))
	for _, id := range ids {
		if price, ok := p[id]; ok {
			out[id] = pricefeed.Quote{Price: price}
		}
	}
	return out, nil
}

func TestPositionIngress_FeedsPositionSweep(t *testing.T) {
	token, pool := addr(9), addr(10)
	book := memory.NewPositionBook()
	tracker := trailing.NewTracker(trailing.Config{ActivationPct: 10, StopPct: 5})
	sched := scheduler.New(scheduler.Options{
		Prices:    staticPrices{token: 1.5},
		Positions: book,
		Trailing:  tracker,
		Logger:    zerolog.Nop(),
	})
	srv := New(Options{
		Validator: &fakeValidator{},
		Sizer:     sizing.NewCalculator(0),
		Scheduler: sched,
		Trailing:  tracker,
		Positions: book,
		Logger:    zerolog.Nop(),
	})
	f := &fixture{srv: srv}
	ctx := context.Background()

	rec := f.do(t, http.MethodPost, "/v1/positions", domain.Position{TokenID: token, PoolAddress: pool, EntryPrice: 1, Amount: 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.False(t, decode[domain.Position](t, rec).OpenedAt.IsZero())

	require.NoError(t, sched.RunPositionSweep(ctx))
	open := sched.OpenPositions()
	require.Len(t, open, 1)
	assert.Equal(t, pool, open[0].PoolAddress)
	state, ok := tracker.State(token)
	require.True(t, ok, "sweep monitors the posted position")
	assert.InDelta(t, 50.0, state.HighestPnlPct, 1e-9)

	rec = f.do(t, http.MethodGet, "/v1/trailing/"+token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/v1/positions/"+token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/v1/positions/"+token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, sched.RunPositionSweep(ctx))
	assert.Empty(t, sched.OpenPositions())
	_, ok = tracker.State(token)
	assert.False(t, ok, "closed position drops its trailing state")
}

func TestPositionIngress_RejectsBadInput(t *testing.T) {
	book := memory.NewPositionBook()
	srv := New(Options{
		Validator: &fakeValidator{},
		Sizer:     sizing.NewCalculator(0),
		Scheduler: scheduler.New(scheduler.Options{Logger: zerolog.Nop()}),
		Trailing:  trailing.NewTracker(trailing.Config{}),
		Positions: book,
		Logger:    zerolog.Nop(),
	})
	f := &fixture{srv: srv}

	rec := f.do(t, http.MethodPost, "/v1/positions", domain.Position{TokenID: "bad!", EntryPrice: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPost, "/v1/positions", domain.Position{TokenID: addr(3), PoolAddress: "short", EntryPrice: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPost, "/v1/positions", domain.Position{TokenID: addr(3)})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "entry price is required")

	open, err := book.OpenPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestPositionIngress_DisabledWithoutBook(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.do(t, http.MethodPost, "/v1/positions", domain.Position{TokenID: addr(3), EntryPrice: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTokenEvents(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, typ := range []domain.EventType{domain.EventSignalGenerated, domain.EventTradeApproved} {
		require.NoError(t, f.journal.Insert(ctx, &domain.DecisionEvent{
			ID: string(typ), Type: typ, TokenID: "tok", OccurredAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	rec := f.do(t, http.MethodGet, "/v1/events/tok?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Events []domain.DecisionEvent `json:"events"`
	}](t, rec)
	require.Len(t, body.Events, 1)
	assert.Equal(t, domain.EventTradeApproved, body.Events[0].Type)

	rec = f.do(t, http.MethodGet, "/v1/events/tok?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, Config{RateLimit: 0.001, Burst: 1})

	rec := f.do(t, http.MethodGet, "/v1/alerts", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, "/v1/alerts", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health is not rate limited")
}
