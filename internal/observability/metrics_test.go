package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_IsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.ValidationsTotal.WithLabelValues("approved").Inc()
	m.FiltersFailed.WithLabelValues("liquidity").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationsTotal.WithLabelValues("approved")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FiltersFailed.WithLabelValues("liquidity")))
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.FiltersFailed.WithLabelValues("honeypot"))
	RecordValidation(false, []string{"honeypot"}, true, 0.01)
	after := testutil.ToFloat64(DefaultMetrics.FiltersFailed.WithLabelValues("honeypot"))
	assert.Equal(t, before+1, after)

	RecordEventDropped("kafka")
	RecordDetectorTrigger("lp_removal", "critical")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "trade_sentinel_events_dropped_total"))
}
