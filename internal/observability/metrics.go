// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Strategy metrics
	SignalsGenerated *prometheus.CounterVec

	// Validation metrics
	ValidationsTotal   *prometheus.CounterVec
	FiltersFailed      *prometheus.CounterVec
	RiskDataFallbacks  prometheus.Counter
	ValidationDuration prometheus.Histogram

	// Monitor metrics
	DetectorTriggers *prometheus.CounterVec
	DetectorErrors   *prometheus.CounterVec
	EmergencyExits   prometheus.Counter
	TrailingUpdates  prometheus.Counter
	TrailingExits    prometheus.Counter
	PriceAlerts      prometheus.Counter

	// Scheduler metrics
	SweepDuration    *prometheus.HistogramVec
	SweepsSkipped    *prometheus.CounterVec
	ResultsDiscarded *prometheus.CounterVec
	TrackedTokens    *prometheus.GaugeVec

	// Event metrics
	EventsPublished *prometheus.CounterVec
	EventsDropped   *prometheus.CounterVec
	SinkErrors      *prometheus.CounterVec

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "trade_sentinel"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		SignalsGenerated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "signals_generated_total",
			Help:      "Strategy signals by strategy and side",
		}, []string{"strategy", "side"}),

		ValidationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "runs_total",
			Help:      "Validation runs by outcome",
		}, []string{"outcome"}),
		FiltersFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "filters_failed_total",
			Help:      "Failed validation filters by name",
		}, []string{"filter"}),
		RiskDataFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "risk_data_fallbacks_total",
			Help:      "Validations that used fallback tax/honeypot values",
		}),
		ValidationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "duration_seconds",
			Help:      "Validation pipeline duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		DetectorTriggers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "detector_triggers_total",
			Help:      "Emergency detector triggers by detector and severity",
		}, []string{"detector", "severity"}),
		DetectorErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "detector_errors_total",
			Help:      "Emergency detector failures by detector",
		}, []string{"detector"}),
		EmergencyExits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "emergency_exits_total",
			Help:      "Emergency exit decisions",
		}),
		TrailingUpdates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "trailing_updates_total",
			Help:      "Trailing stop updates",
		}),
		TrailingExits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "trailing_exits_total",
			Help:      "Trailing stop exit recommendations",
		}),
		PriceAlerts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "price_alerts_total",
			Help:      "Price alerts fired",
		}),

		SweepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "sweep_duration_seconds",
			Help:      "Sweep duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sweep"}),
		SweepsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "sweeps_skipped_total",
			Help:      "Sweeps skipped because the previous cycle was still running",
		}, []string{"sweep"}),
		ResultsDiscarded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "results_discarded_total",
			Help:      "Sweep results dropped after cancellation",
		}, []string{"sweep"}),
		TrackedTokens: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tracked_tokens",
			Help:      "Tokens tracked by kind",
		}, []string{"kind"}),

		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Events accepted by sink queues",
		}, []string{"sink", "type"}),
		EventsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Events dropped because a sink queue was full",
		}, []string{"sink"}),
		SinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "sink_errors_total",
			Help:      "Sink delivery failures",
		}, []string{"sink"}),

		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Solana RPC call failures",
		}, []string{"method"}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordSignal counts a non-hold strategy signal.
func RecordSignal(strategy, side string) {
	DefaultMetrics.SignalsGenerated.WithLabelValues(strategy, side).Inc()
}

// RecordValidation records a validation outcome and its failed filters.
func RecordValidation(approved bool, failedFilters []string, fallback bool, seconds float64) {
	outcome := "rejected"
	if approved {
		outcome = "approved"
	}
	DefaultMetrics.ValidationsTotal.WithLabelValues(outcome).Inc()
	for _, f := range failedFilters {
		DefaultMetrics.FiltersFailed.WithLabelValues(f).Inc()
	}
	if fallback {
		DefaultMetrics.RiskDataFallbacks.Inc()
	}
	DefaultMetrics.ValidationDuration.Observe(seconds)
}

// RecordDetectorTrigger counts a triggered emergency detector.
func RecordDetectorTrigger(detector, severity string) {
	DefaultMetrics.DetectorTriggers.WithLabelValues(detector, severity).Inc()
}

// RecordDetectorError counts a detector failure.
func RecordDetectorError(detector string) {
	DefaultMetrics.DetectorErrors.WithLabelValues(detector).Inc()
}

// RecordEmergencyExit counts a published emergency exit.
func RecordEmergencyExit() {
	DefaultMetrics.EmergencyExits.Inc()
}

// RecordTrailingUpdate counts a trailing update and, if set, an exit.
func RecordTrailingUpdate(exit bool) {
	DefaultMetrics.TrailingUpdates.Inc()
	if exit {
		DefaultMetrics.TrailingExits.Inc()
	}
}

// RecordPriceAlert counts a fired price alert.
func RecordPriceAlert() {
	DefaultMetrics.PriceAlerts.Inc()
}

// RecordSweep records a sweep's duration.
func RecordSweep(sweep string, seconds float64) {
	DefaultMetrics.SweepDuration.WithLabelValues(sweep).Observe(seconds)
}

// RecordSweepSkipped counts a skipped sweep tick.
func RecordSweepSkipped(sweep string) {
	DefaultMetrics.SweepsSkipped.WithLabelValues(sweep).Inc()
}

// RecordResultsDiscarded counts results dropped after cancellation.
func RecordResultsDiscarded(sweep string, n int) {
	DefaultMetrics.ResultsDiscarded.WithLabelValues(sweep).Add(float64(n))
}

// SetTrackedTokens sets the tracked token gauge.
func SetTrackedTokens(kind string, n int) {
	DefaultMetrics.TrackedTokens.WithLabelValues(kind).Set(float64(n))
}

// RecordEventPublished counts an event accepted by a sink queue.
func RecordEventPublished(sink, eventType string) {
	DefaultMetrics.EventsPublished.WithLabelValues(sink, eventType).Inc()
}

// RecordEventDropped counts an event dropped by a full sink queue.
func RecordEventDropped(sink string) {
	DefaultMetrics.EventsDropped.WithLabelValues(sink).Inc()
}

// RecordSinkError counts a sink delivery failure.
func RecordSinkError(sink string) {
	DefaultMetrics.SinkErrors.WithLabelValues(sink).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
