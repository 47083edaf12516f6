package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if metrics.HTTPRequestsTotal == nil || metrics.SummaryRefreshesTotal == nil || metrics.EventsPublishedTotal == nil {
		t.Error("metric vectors should be initialized")
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.InvoiceCreated()
	m.StatusChanged("pending", "paid")
	m.SuccessorCreated()
	m.SuccessorFailed()
	m.OverdueSwept(3)
	m.SummaryRefreshed(nil)
	m.SummaryExported(errors.New("x"))
	m.CacheLookup("memory", true)
	m.EventPublished("invoice.created", nil)
	m.EventConsumed("invoice.created", nil)
}

func TestDomainCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.InvoiceCreated()
	m.InvoiceCreated()
	m.OverdueSwept(4)
	m.OverdueSwept(0)
	m.SummaryRefreshed(nil)
	m.SummaryRefreshed(errors.New("boom"))
	m.CacheLookup("redis", false)

	if got := testutil.ToFloat64(m.InvoicesCreatedTotal); got != 2 {
		t.Errorf("invoices created = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.OverdueSweptTotal); got != 4 {
		t.Errorf("overdue swept = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.SummaryRefreshesTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("failed refreshes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("redis")); got != 1 {
		t.Errorf("cache misses = %v, want 1", got)
	}
}

func TestHTTPMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	r := mux.NewRouter()
	r.Use(HTTPMetricsMiddleware(m))
	r.HandleFunc("/api/invoices/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", Handler(registry))

	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/invoices/"+id, nil))
	}

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/invoices/{id}", "404"))
	if got != 2 {
		t.Errorf("requests for route = %v, want 2", got)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "faturamento_http_requests_total") {
		t.Error("metrics endpoint should expose the request counter")
	}
}
