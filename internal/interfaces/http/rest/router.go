// Package rest exposes the ledger over HTTP for operators and dashboards.
package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/infrastructure/observability"
)

// Router creates and configures the HTTP router
type Router struct {
	ledgers     *LedgerHandler
	metrics     *observability.Collector
	serviceName string
	timeout     time.Duration
	logger      *zap.Logger
	startedAt   time.Time
}

// NewRouter creates a new router instance
func NewRouter(ledgers *LedgerHandler, metrics *observability.Collector, serviceName string, timeout time.Duration, logger *zap.Logger) *Router {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Router{
		ledgers:     ledgers,
		metrics:     metrics,
		serviceName: serviceName,
		timeout:     timeout,
		logger:      logger,
		startedAt:   time.Now(),
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(rt.logger))
	router.Use(observability.TracingMiddleware(rt.serviceName))
	router.Use(observability.MetricsMiddleware(rt.metrics))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-Trace-ID"},
		MaxAge:         300,
	}))

	router.Get("/health", rt.health)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(rt.metrics.GetRegistry(), promhttp.HandlerOpts{}))

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(rt.timeout))
		r.Get("/ledger/{sourceRecordId}", rt.ledgers.GetLedger)
		r.Post("/sync/preview", rt.ledgers.Preview)
	})

	return router
}

// HealthResponse represents the health check response structure.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(rt.startedAt).Round(time.Second).String(),
	})
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("HTTP Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestID", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
