package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	applog "faturamento/internal/log"
	"faturamento/internal/middleware/ratelimit"
	"faturamento/internal/middleware/security"
	"faturamento/internal/middleware/trace"
	"faturamento/internal/observability"
	"faturamento/internal/services"
)

func init() {
	// Amounts travel as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Services are the domain services the API exposes.
type Services struct {
	Clients   *services.ClientService
	Invoices  *services.InvoiceService
	Sweeper   *services.Sweeper
	Summaries *services.SummaryService
	Dashboard *services.DashboardService
}

// Options tune the server's middleware. The zero value is usable.
type Options struct {
	RateLimitRPM int
	Metrics      *observability.Metrics
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   *applog.Logger
	// Ready reports whether dependencies are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	limiter      *ratelimit.Limiter
	detector     *security.Detector
	ready        func(ctx context.Context) error
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		detector: security.NewDetector(),
		ready:    opts.Ready,
		started:  time.Now(),
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(handleNotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	if opts.Gatherer != nil {
		router.Handle("/metrics", observability.Handler(opts.Gatherer)).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	api.Use(
		s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited),
		observability.HTTPMetricsMiddleware(opts.Metrics),
	)
	NewClientHandlers(svc.Clients, svc.Invoices).RegisterRoutes(api)
	NewInvoiceHandlers(svc.Invoices, svc.Sweeper).RegisterRoutes(api)
	NewReportHandlers(svc.Summaries, svc.Dashboard).RegisterRoutes(api)

	// Outermost first: headers, probe detection, trace, request logger.
	var handler http.Handler = router
	handler = applog.Middleware(logger, trace.GetRequestID)(handler)
	handler = trace.NewMiddleware(s.detector.ExtractClientIP).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown drains in-flight requests and releases the limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "route not found"})
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).
		WarnContext(r.Context(), "Rate limit exceeded", applog.FieldClientIP, s.detector.ExtractClientIP(r))
	writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, try again later"})
}
