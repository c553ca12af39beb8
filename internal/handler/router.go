package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/auth"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/observability"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/port"
)

var tracer = otel.Tracer("handler")

const healthCheckTimeout = 2 * time.Second

// HealthCheck is one dependency reported by /healthz.
type HealthCheck struct {
	Name   string
	Pinger port.Pinger
}

// Deps are the collaborators served by the router. Any of them may be nil;
// the matching routes then report the service as unavailable.
type Deps struct {
	Finder    ProductFinder
	History   port.HistoryReader
	Validator *auth.TokenValidator
	Checks    []HealthCheck
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps Deps, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(deps.Checks))
	r.Get("/readyz", readyzHandler(deps.Finder))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(OptionalAuth(deps.Validator, logger))
			r.Post("/products/chat", productChatHandler(deps.Finder, deps.History, logger))
		})

		r.Get("/metrics/pipeline", pipelineMetricsHandler(metrics))
	})

	return r
}

func healthzHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}
		for _, c := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			start := time.Now()
			err := c.Pinger.Ping(ctx)
			cancel()

			status := "healthy"
			if err != nil {
				status = "unhealthy"
			}
			services = append(services, domain.ServiceHealth{
				Name: c.Name, Status: status, LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "degraded"
				break
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler(finder ProductFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if finder == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func pipelineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetPipelineSnapshot())
	}
}
