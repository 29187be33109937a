package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the Critiq server
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Auth flow metrics
	SignupsTotal        *prometheus.CounterVec
	TokenExchangesTotal *prometheus.CounterVec
	AuthzDeniedTotal    *prometheus.CounterVec

	// Mail dispatch metrics
	MailDispatchTotal    *prometheus.CounterVec
	MailDispatchDuration prometheus.Histogram

	// Store metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "critiq_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "critiq_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		SignupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "critiq_signups_total",
				Help: "Total number of signup requests",
			},
			[]string{"status"},
		),
		TokenExchangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "critiq_token_exchanges_total",
				Help: "Total number of confirmation-code exchanges",
			},
			[]string{"status"},
		),
		AuthzDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "critiq_authz_denied_total",
				Help: "Total number of denied authorization checks",
			},
			[]string{"resource", "action"},
		),

		MailDispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "critiq_mail_dispatch_total",
				Help: "Total number of confirmation mail dispatch attempts",
			},
			[]string{"status"},
		),
		MailDispatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "critiq_mail_dispatch_duration_seconds",
				Help:    "Confirmation mail dispatch duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "critiq_cache_hits_total",
				Help: "Total number of catalog cache hits",
			},
			[]string{"resource"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "critiq_cache_misses_total",
				Help: "Total number of catalog cache misses",
			},
			[]string{"resource"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SignupsTotal,
		m.TokenExchangesTotal,
		m.AuthzDeniedTotal,
		m.MailDispatchTotal,
		m.MailDispatchDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// Handler returns the /metrics endpoint handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware instruments an HTTP handler with request count and duration
// metrics. The path label is the mux route template, not the raw URL, so
// cardinality stays bounded.
func (m *Metrics) Middleware(routeTemplate func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := routeTemplate(r)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
