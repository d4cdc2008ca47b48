package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/daiyabarus/FAC/internal/config"
	apierrors "github.com/daiyabarus/FAC/internal/errors"
	"github.com/daiyabarus/FAC/internal/infrastructure"
	"github.com/daiyabarus/FAC/internal/kpi"
	"github.com/daiyabarus/FAC/internal/middleware"
	"github.com/daiyabarus/FAC/internal/operations"
	"github.com/daiyabarus/FAC/internal/websocket"
)

// RouterDeps carries everything the router wires together. Metrics and
// MetricsHandler are optional; without them the middleware and the
// /metrics endpoint are simply not mounted.
type RouterDeps struct {
	Config         *config.Config
	Registry       *kpi.Registry
	Manager        *operations.Manager
	Hub            *websocket.Hub
	Metrics        *infrastructure.EngineMetrics
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// NewRouter assembles the report server's HTTP surface.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	if deps.Config.Server.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(
			deps.Config.Server.RateLimit.RPS,
			deps.Config.Server.RateLimit.Burst,
			logger,
		)
		r.Use(limiter.Handler)
	}
	if deps.Metrics != nil {
		r.Use(middleware.HTTPMetrics(deps.Metrics))
	}

	health := NewHealthHandler(deps.Registry)
	runs := NewRunsHandler(deps.Manager, logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health.HealthCheck)
		r.Mount("/runs", runs.Routes())
	})

	r.Get("/ws", NewWSHandler(deps.Hub, logger).Serve)

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Render(w, r, apierrors.ErrNotFound)
	})

	return r
}
