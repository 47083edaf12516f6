package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Billing metrics
	InvoicesCreatedTotal   prometheus.Counter
	StatusChangesTotal     *prometheus.CounterVec
	SuccessorsCreatedTotal prometheus.Counter
	SuccessorWarningsTotal prometheus.Counter
	OverdueSweptTotal      prometheus.Counter

	// Summary metrics
	SummaryRefreshesTotal *prometheus.CounterVec
	SummaryExportsTotal   *prometheus.CounterVec
	CacheHitsTotal        *prometheus.CounterVec
	CacheMissesTotal      *prometheus.CounterVec

	// Messaging metrics
	EventsPublishedTotal *prometheus.CounterVec
	EventsConsumedTotal  *prometheus.CounterVec

	// Database metrics
	DBConnectionsOpen prometheus.Gauge
	DBConnectionsIdle prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturamento_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "faturamento_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		InvoicesCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "faturamento_invoices_created_total",
				Help: "Total number of invoices created through the API",
			},
		),
		StatusChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturamento_invoice_status_changes_total",
				Help: "Total number of invoice status changes",
			},
			[]string{"from", "to"},
		),
		SuccessorsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "faturamento_successors_created_total",
				Help: "Total number of follow-up invoices generated",
			},
		),
		SuccessorWarningsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "faturamento_successor_warnings_total",
				Help: "Total number of payments whose follow-up invoice could not be generated",
			},
		),
		OverdueSweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "faturamento_overdue_swept_total",
				Help: "Total number of invoices moved to overdue",
			},
		),

		SummaryRefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturamento_summary_refreshes_total",
				Help: "Total number of monthly summary refreshes",
			},
			[]string{"status"},
		),
		SummaryExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturamento_summary_exports_total",
				Help: "Total number of monthly summary exports",
			},
			[]string{"status"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturamento_cache_hits_total",
				Help: "Total number of summary cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturamento_cache_misses_total",
				Help: "Total number of summary cache misses",
			},
			[]string{"cache_type"},
		),

		EventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturamento_events_published_total",
				Help: "Total number of billing events published",
			},
			[]string{"type", "status"},
		),
		EventsConsumedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturamento_events_consumed_total",
				Help: "Total number of billing events handled by the worker",
			},
			[]string{"type", "status"},
		),

		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "faturamento_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "faturamento_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.InvoicesCreatedTotal,
		m.StatusChangesTotal,
		m.SuccessorsCreatedTotal,
		m.SuccessorWarningsTotal,
		m.OverdueSweptTotal,
		m.SummaryRefreshesTotal,
		m.SummaryExportsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.EventsPublishedTotal,
		m.EventsConsumedTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsIdle,
	)

	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) InvoiceCreated() {
	if m == nil {
		return
	}
	m.InvoicesCreatedTotal.Inc()
}

func (m *Metrics) StatusChanged(from, to string) {
	if m == nil {
		return
	}
	m.StatusChangesTotal.WithLabelValues(from, to).Inc()
}

func (m *Metrics) SuccessorCreated() {
	if m == nil {
		return
	}
	m.SuccessorsCreatedTotal.Inc()
}

func (m *Metrics) SuccessorFailed() {
	if m == nil {
		return
	}
	m.SuccessorWarningsTotal.Inc()
}

func (m *Metrics) OverdueSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.OverdueSweptTotal.Add(float64(n))
}

func (m *Metrics) SummaryRefreshed(err error) {
	if m == nil {
		return
	}
	m.SummaryRefreshesTotal.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) SummaryExported(err error) {
	if m == nil {
		return
	}
	m.SummaryExportsTotal.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) CacheLookup(cacheType string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cacheType).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cacheType).Inc()
}

func (m *Metrics) EventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	m.EventsPublishedTotal.WithLabelValues(eventType, outcome(err)).Inc()
}

func (m *Metrics) EventConsumed(eventType string, err error) {
	if m == nil {
		return
	}
	m.EventsConsumedTotal.WithLabelValues(eventType, outcome(err)).Inc()
}

// RecordDBStats copies the pool statistics into the database gauges.
func (m *Metrics) RecordDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeLabel uses the mux path template so ids do not explode label cardinality.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
