package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nasstate"

// connectionStatuses lists every relay status so the gauge always reports all of them.
var connectionStatuses = []string{"DISCONNECTED", "CONNECTING", "CONNECTED", "RECONNECTING", "ERROR"}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	loadDuration     *prom.HistogramVec
	commits          *prom.CounterVec
	publishes        *prom.CounterVec
	handlerFailures  *prom.CounterVec
	subscribers      *prom.GaugeVec
	watchEvents      *prom.CounterVec
	connectionStatus *prom.GaugeVec
	reconnects       prom.Counter
	notifications    *prom.CounterVec

	statusMu sync.Mutex
}

// NewPrometheusRecorder constructs and registers the metrics on reg. A nil reg
// gets a fresh private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		loadDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "state_load_duration_seconds",
			Help:      "Duration of state file reads and decodes",
			Buckets:   prom.DefBuckets,
		}, []string{"key", "result"}),
		commits: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "store_commits_total",
			Help:      "Store commits by key and outcome",
		}, []string{"key", "result"}),
		publishes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "pubsub_publishes_total",
			Help:      "Messages published per channel",
		}, []string{"channel"}),
		handlerFailures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "pubsub_handler_failures_total",
			Help:      "Subscriber handlers that returned an error or panicked",
		}, []string{"channel"}),
		subscribers: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "pubsub_subscribers",
			Help:      "Live subscribers per channel",
		}, []string{"channel"}),
		watchEvents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "watch_events_total",
			Help:      "Debounced file change callbacks by watch mode",
		}, []string{"mode"}),
		connectionStatus: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_connection_status",
			Help:      "Current relay connection status (1 for the active status)",
		}, []string{"status"}),
		reconnects: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "relay_reconnect_attempts_total",
			Help:      "Relay reconnect attempts",
		}),
		notifications: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification files by outcome",
		}, []string{"result"}),
	}
	reg.MustRegister(pr.loadDuration, pr.commits, pr.publishes, pr.handlerFailures, pr.subscribers,
		pr.watchEvents, pr.connectionStatus, pr.reconnects, pr.notifications)
	return pr
}

func (p *PrometheusRecorder) ObserveLoadDuration(key string, d time.Duration, success bool) {
	if p == nil {
		return
	}
	result := string(ResultSuccess)
	if !success {
		result = string(ResultFailed)
	}
	p.loadDuration.WithLabelValues(key, result).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCommit(key string, result ResultLabel) {
	if p == nil {
		return
	}
	p.commits.WithLabelValues(key, string(result)).Inc()
}

func (p *PrometheusRecorder) IncPublish(channel string) {
	if p == nil {
		return
	}
	p.publishes.WithLabelValues(channel).Inc()
}

func (p *PrometheusRecorder) IncHandlerFailure(channel string) {
	if p == nil {
		return
	}
	p.handlerFailures.WithLabelValues(channel).Inc()
}

func (p *PrometheusRecorder) SetSubscribers(channel string, n int) {
	if p == nil {
		return
	}
	p.subscribers.WithLabelValues(channel).Set(float64(n))
}

func (p *PrometheusRecorder) IncWatchEvent(mode string) {
	if p == nil {
		return
	}
	p.watchEvents.WithLabelValues(mode).Inc()
}

func (p *PrometheusRecorder) SetConnectionStatus(status string) {
	if p == nil {
		return
	}
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	for _, s := range connectionStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		p.connectionStatus.WithLabelValues(s).Set(v)
	}
}

func (p *PrometheusRecorder) IncReconnectAttempt() {
	if p == nil {
		return
	}
	p.reconnects.Inc()
}

func (p *PrometheusRecorder) IncNotification(result ResultLabel) {
	if p == nil {
		return
	}
	p.notifications.WithLabelValues(string(result)).Inc()
}

// HTTPHandler returns an http.Handler that serves the metrics of reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
