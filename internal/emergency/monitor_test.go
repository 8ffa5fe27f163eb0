package emergency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/pricehistory"
	"solana-trade-sentinel/internal/solana"
	"solana-trade-sentinel/internal/solana/stub"
)

type fakeDetector struct {
	name     string
	trigger  domain.EmergencyTrigger
	err      error
	panicMsg string
	delay    time.Duration
}

func (f *fakeDetector) Name() string { return f.name }

func (f *fakeDetector) Detect(_ context.Context, _ Input) (domain.EmergencyTrigger, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.trigger, f.err
}

func fired(name string, sev domain.Severity, reason string) *fakeDetector {
	return &fakeDetector{
		name:    name,
		trigger: domain.EmergencyTrigger{Triggered: true, Severity: sev, Reason: reason},
	}
}

func quiet(name string) *fakeDetector {
	return &fakeDetector{name: name, trigger: domain.EmergencyTrigger{Severity: domain.SeverityHigh}}
}

func TestMonitor_SingleHighDoesNotExit(t *testing.T) {
	m := NewMonitor(zerolog.Nop(), []Detector{
		fired("a", domain.SeverityHigh, "large sell"),
		quiet("b"),
	})

	d := m.CheckAllTriggers(context.Background(), token, 1, "", "")

	assert.False(t, d.ShouldExit)
	assert.Empty(t, d.CriticalReason)
	assert.Len(t, d.Triggered(), 1)
}

func TestMonitor_TwoHighsExit(t *testing.T) {
	m := NewMonitor(zerolog.Nop(), []Detector{
		fired("a", domain.SeverityHigh, "large sell"),
		quiet("b"),
		fired("c", domain.SeverityHigh, "creator sold"),
	})

	d := m.CheckAllTriggers(context.Background(), token, 1, "", "")

	assert.True(t, d.ShouldExit)
	assert.Equal(t, "large sell + creator sold", d.CriticalReason)
	assert.Equal(t, domain.SeverityHigh, d.Severity)
}

func TestMonitor_CriticalExits(t *testing.T) {
	m := NewMonitor(zerolog.Nop(), []Detector{
		fired("a", domain.SeverityHigh, "large sell"),
		fired("b", domain.SeverityCritical, "pool drained"),
	})

	d := m.CheckAllTriggers(context.Background(), token, 1, "", "")

	assert.True(t, d.ShouldExit)
	assert.Equal(t, "pool drained", d.CriticalReason)
	assert.Equal(t, domain.SeverityCritical, d.Severity)
}

func TestMonitor_TriggersKeepDetectorOrder(t *testing.T) {
	slow := quiet("slow")
	slow.delay = 20 * time.Millisecond
	m := NewMonitor(zerolog.Nop(), []Detector{slow, quiet("fast")})

	d := m.CheckAllTriggers(context.Background(), token, 1, "", "")

	require.Len(t, d.Triggers, 2)
	assert.Equal(t, "slow", d.Triggers[0].Detector)
	assert.Equal(t, "fast", d.Triggers[1].Detector)
}

func TestMonitor_FailuresAreContained(t *testing.T) {
	failing := fired("err", domain.SeverityCritical, "should be ignored")
	failing.err = errors.New("rpc down")
	m := NewMonitor(zerolog.Nop(), []Detector{
		failing,
		&fakeDetector{name: "panics", panicMsg: "bad data"},
		fired("ok", domain.SeverityHigh, "large sell"),
	})

	var d Decision
	require.NotPanics(t, func() {
		d = m.CheckAllTriggers(context.Background(), token, 1, "", "")
	})

	assert.False(t, d.ShouldExit)
	require.Len(t, d.Triggers, 3)
	assert.False(t, d.Triggers[0].Triggered)
	assert.False(t, d.Triggers[1].Triggered)
	assert.Equal(t, "panics", d.Triggers[1].Detector)
	assert.True(t, d.Triggers[2].Triggered)
}

func TestMonitor_DefaultDetectors(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetLamports(pool, 0)
	window := pricehistory.NewWindow(30 * time.Second)

	now := base
	m := NewMonitor(zerolog.Nop(), DefaultDetectors(rpc, window, Thresholds{}),
		WithClock(func() time.Time { return now }))

	d := m.CheckAllTriggers(context.Background(), token, 1, pool, "")
	assert.True(t, d.ShouldExit)
	assert.Equal(t, "liquidity pool drained", d.CriticalReason)
	require.Len(t, d.Triggers, 4)
	assert.Equal(t, DetectorLPRemoval, d.Triggers[0].Detector)
	assert.Len(t, window.Points(token), 1)

	m.Forget(token)
	assert.Empty(t, window.Points(token))

	rpc.SetLamports(pool, 50*solana.LamportsPerSOL)
	d = m.CheckAllTriggers(context.Background(), token, 1, pool, "")
	assert.False(t, d.ShouldExit)
}

func TestThresholdsNormalize(t *testing.T) {
	th := Thresholds{RedCandleWindow: time.Minute}.Normalize()
	assert.Equal(t, 10.0, th.LargeSellSol)
	assert.Equal(t, time.Minute, th.PriceRetention)
	assert.Equal(t, 60.0, th.RedCandleDropPct)
}
