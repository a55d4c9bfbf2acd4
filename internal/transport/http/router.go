// Package httptransport assembles the HTTP surface: middleware chain, the
// domain handlers and the operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"poolshare/internal/platform/metrics"
	"poolshare/pkg/platform/httputil"
	"poolshare/pkg/platform/middleware/admin"
	"poolshare/pkg/platform/middleware/auth"
	"poolshare/pkg/platform/middleware/metadata"
	"poolshare/pkg/platform/middleware/ratelimit"
	"poolshare/pkg/platform/middleware/request"
	"poolshare/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by every domain handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Config carries what the router needs beyond the domain handlers.
type Config struct {
	Logger     *slog.Logger
	Validator  auth.JWTValidator
	AdminToken string
	// Limiter is optional; nil disables rate limiting.
	Limiter *ratelimit.Limiter
	// Tokens is optional; nil leaves /admin/tokens unrouted.
	Tokens *AuthHandler
	// Metrics is optional; nil disables request metrics.
	Metrics *metrics.Metrics
	Checks  map[string]HealthCheck
}

// NewRouter wires the public endpoints. Domain routes all sit behind bearer
// authentication; /healthz and /metrics do not.
func NewRouter(cfg Config, domains ...Registrar) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(request.Recovery(logger))
	r.Use(request.Logger(logger))
	r.Use(metadata.ClientMetadata)
	r.Use(cfg.Metrics.Middleware)
	if cfg.Limiter != nil {
		r.Use(cfg.Limiter.Middleware)
	}

	r.Get("/healthz", healthHandler(cfg.Checks))
	r.Handle("/metrics", promhttp.Handler())

	if cfg.Tokens != nil {
		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdminToken(cfg.AdminToken, logger))
			cfg.Tokens.Register(r)
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(cfg.Validator, logger))
		for _, d := range domains {
			d.Register(r)
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(names) > 0 {
			resp.Checks = make(map[string]string, len(names))
		}
		for _, name := range names {
			if err := checks[name](r.Context()); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
