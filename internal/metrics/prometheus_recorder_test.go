package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveLoadDuration("var", 3*time.Millisecond, true)
	pr.IncCommit("var", ResultSuccess)
	pr.IncCommit("var", ResultStale)
	pr.IncPublish("INFO")
	pr.IncHandlerFailure("INFO")
	pr.SetSubscribers("INFO", 2)
	pr.IncWatchEvent("native")
	pr.SetConnectionStatus("CONNECTED")
	pr.IncReconnectAttempt()
	pr.IncNotification(ResultDuplicate)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)

	assert.InDelta(t, 1, testutil.ToFloat64(pr.commits.WithLabelValues("var", "stale")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(pr.subscribers.WithLabelValues("INFO")), 0)
}

func TestConnectionStatusGaugeIsExclusive(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.SetConnectionStatus("CONNECTING")
	pr.SetConnectionStatus("ERROR")

	assert.InDelta(t, 0, testutil.ToFloat64(pr.connectionStatus.WithLabelValues("CONNECTING")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.connectionStatus.WithLabelValues("ERROR")), 0)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.IncPublish("INFO")
		pr.SetConnectionStatus("CONNECTED")
	})
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncPublish("ARRAY")

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "nasstate_pubsub_publishes_total"))
}
