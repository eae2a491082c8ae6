package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "snipflow"

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	GateDecisionsTotal *prometheus.CounterVec
	UsageEventsTotal   *prometheus.CounterVec
	SubscriptionsSwept prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		GateDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_decisions_total",
				Help:      "Authentication, entitlement, quota and rate limit decisions",
			},
			[]string{"check", "outcome"},
		),
		UsageEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_events_total",
				Help:      "Usage events by write outcome",
			},
			[]string{"outcome"},
		),
		SubscriptionsSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subscriptions_expired_total",
				Help:      "Subscriptions marked expired by the sweeper",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GateDecisionsTotal,
		m.UsageEventsTotal,
		m.SubscriptionsSwept,
	)
	return m
}

// ObserveDecision counts one gate decision.
func (m *Metrics) ObserveDecision(check, outcome string) {
	m.GateDecisionsTotal.WithLabelValues(check, outcome).Inc()
}

func (m *Metrics) UsageRecorded(n int) { m.UsageEventsTotal.WithLabelValues("recorded").Add(float64(n)) }
func (m *Metrics) UsageDropped(n int)  { m.UsageEventsTotal.WithLabelValues("dropped").Add(float64(n)) }
func (m *Metrics) UsageFailed(n int)   { m.UsageEventsTotal.WithLabelValues("failed").Add(float64(n)) }

// UsageMirrorFailed counts persisted events the Redis window missed.
func (m *Metrics) UsageMirrorFailed(n int) {
	m.UsageEventsTotal.WithLabelValues("mirror_failed").Add(float64(n))
}

// ObserveSwept counts subscriptions expired by one sweep.
func (m *Metrics) ObserveSwept(n int64) {
	m.SubscriptionsSwept.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency labelled by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
