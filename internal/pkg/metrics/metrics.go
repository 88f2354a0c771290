// internal/pkg/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"segmentbook-service/internal/pkg/querycache"
)

const namespace = "segmentbook"

// Metrics owns a private registry so that servers and tests never collide on
// the global one.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	wsConnections prometheus.Gauge
	changes       *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	cacheEvents   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Open websocket connections.",
		}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "changes_total",
			Help:      "Row changes received from the database feed.",
		}, []string{"table", "event"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "deliveries_total",
			Help:      "Change events delivered to subscriptions.",
		}, []string{"table"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query_cache",
			Name:      "events_total",
			Help:      "Query cache events by operation.",
		}, []string{"operation", "event"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.wsConnections,
		m.changes,
		m.deliveries,
		m.cacheEvents,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ConnectionOpened() { m.wsConnections.Inc() }
func (m *Metrics) ConnectionClosed() { m.wsConnections.Dec() }

func (m *Metrics) ChangeReceived(table, event string) {
	m.changes.WithLabelValues(table, event).Inc()
}

func (m *Metrics) ChangeDelivered(table string, n int) {
	if n > 0 {
		m.deliveries.WithLabelValues(table).Add(float64(n))
	}
}

// CacheObserver reports query cache activity into this registry.
func (m *Metrics) CacheObserver() querycache.Observer {
	return cacheObserver{m.cacheEvents}
}

type cacheObserver struct {
	events *prometheus.CounterVec
}

func (o cacheObserver) Hit(op string)        { o.events.WithLabelValues(op, "hit").Inc() }
func (o cacheObserver) Miss(op string)       { o.events.WithLabelValues(op, "miss").Inc() }
func (o cacheObserver) Fetch(op string)      { o.events.WithLabelValues(op, "fetch").Inc() }
func (o cacheObserver) Superseded(op string) { o.events.WithLabelValues(op, "superseded").Inc() }
func (o cacheObserver) FetchError(op string) { o.events.WithLabelValues(op, "fetch_error").Inc() }
