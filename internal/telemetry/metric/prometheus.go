package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsNamespace prefixes every exported series.
const metricsNamespace = "soketi"

// Registry holds all application metrics, backed by a dedicated
// prometheus registry so the metrics endpoint exposes only our own
// series.
//
// Registry implements the adapter metrics hooks; pass it to the
// horizontal adapter and the cluster engine reports itself.
type Registry struct {
	prom *prometheus.Registry

	// Cluster engine metrics
	RequestsSent      *prometheus.CounterVec
	RequestsReceived  *prometheus.CounterVec
	ResponsesReceived *prometheus.CounterVec
	RequestsTimedOut  *prometheus.CounterVec
	ResolveTime       *prometheus.HistogramVec

	// HTTP API metrics
	HTTPCallsReceived *prometheus.CounterVec
}

// NewRegistry creates a metrics registry with every series registered.
func NewRegistry() *Registry {
	r := &Registry{
		prom: prometheus.NewRegistry(),
	}

	r.RequestsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "horizontal_adapter",
		Name:      "sent_requests_total",
		Help:      "Cluster queries broadcast by this node",
	}, []string{"app_id", "kind"})

	r.RequestsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "horizontal_adapter",
		Name:      "received_requests_total",
		Help:      "Cluster queries received from other nodes",
	}, []string{"app_id", "kind"})

	r.ResponsesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "horizontal_adapter",
		Name:      "received_responses_total",
		Help:      "Responses received for queries sent by this node",
	}, []string{"app_id"})

	r.RequestsTimedOut = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "horizontal_adapter",
		Name:      "uncomplete_requests_total",
		Help:      "Cluster queries that expired before every node answered",
	}, []string{"app_id", "kind"})

	r.ResolveTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "horizontal_adapter",
		Name:      "resolve_time_seconds",
		Help:      "Time to gather all responses for a cluster query",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"app_id", "kind"})

	r.HTTPCallsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "http_calls_received_total",
		Help:      "HTTP API requests served",
	}, []string{"handler", "method", "code"})

	r.prom.MustRegister(
		r.RequestsSent,
		r.RequestsReceived,
		r.ResponsesReceived,
		r.RequestsTimedOut,
		r.ResolveTime,
		r.HTTPCallsReceived,
	)

	return r
}

// MustRegister attaches additional collectors, such as the namespace
// collector, to the same endpoint.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.prom.MustRegister(cs...)
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{})
}

// InstrumentHandler counts requests served by a named route.
func (r *Registry) InstrumentHandler(name string, next http.Handler) http.Handler {
	vec := r.HTTPCallsReceived.MustCurryWith(prometheus.Labels{"handler": name})
	return promhttp.InstrumentHandlerCounter(vec, next)
}

// ============================================================================
// Adapter hooks
// ============================================================================

// RequestSent counts a cluster query broadcast by this node.
func (r *Registry) RequestSent(appID, kind string) {
	r.RequestsSent.WithLabelValues(appID, kind).Inc()
}

// RequestReceived counts a cluster query received from a peer.
func (r *Registry) RequestReceived(appID, kind string) {
	r.RequestsReceived.WithLabelValues(appID, kind).Inc()
}

// ResponseReceived counts a response to one of our queries.
func (r *Registry) ResponseReceived(appID string) {
	r.ResponsesReceived.WithLabelValues(appID).Inc()
}

// RequestResolved records the gather latency of a completed query.
func (r *Registry) RequestResolved(appID, kind string, elapsed time.Duration) {
	r.ResolveTime.WithLabelValues(appID, kind).Observe(elapsed.Seconds())
}

// RequestTimedOut counts a query that expired with missing responses.
func (r *Registry) RequestTimedOut(appID, kind string) {
	r.RequestsTimedOut.WithLabelValues(appID, kind).Inc()
}
