// Package httptransport assembles the inbound HTTP surface: gateway events,
// administrator configuration and operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"warden/internal/dispatch"
	moderationHandler "warden/internal/moderation/handler"
	"warden/internal/platform/metrics"
	"warden/internal/platform/middleware"
	settingsHandler "warden/internal/settings/handler"
	verificationHandler "warden/internal/verification/handler"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/httputil"
	"warden/pkg/platform/middleware/admin"
	"warden/pkg/platform/middleware/request"
	"warden/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config carries everything the router needs besides the dispatcher.
type Config struct {
	AdminToken string
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Checks   map[string]HealthCheck
}

// NewRouter wires every route onto a chi router.
func NewRouter(d dispatch.Runner, cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recover(logger))
	r.Use(request.Logger(logger))
	r.Use(requesttime.Middleware)
	r.Use(middleware.Latency(cfg.Metrics))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.ErrorResponse{Error: "method_not_allowed"})
	})

	r.Get("/healthz", healthz(cfg.Checks, logger))
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	verificationHandler.New(d, logger).Register(r)
	moderationHandler.New(d, logger).Register(r)

	r.Group(func(admins chi.Router) {
		admins.Use(admin.RequireAdminToken(cfg.AdminToken, logger))
		settingsHandler.New(d, logger).Register(admins)
	})
	return r
}

func healthz(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				status[name] = "unavailable"
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		httputil.WriteJSON(w, code, status)
	}
}
