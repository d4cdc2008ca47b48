package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/daiyabarus/FAC/internal/config"
	"github.com/daiyabarus/FAC/internal/infrastructure"
	"github.com/daiyabarus/FAC/internal/kpi"
	"github.com/daiyabarus/FAC/internal/operations"
	transport "github.com/daiyabarus/FAC/internal/transport/http"
	ws "github.com/daiyabarus/FAC/internal/websocket"
)

// Application wires the report server together: configuration, logging,
// telemetry, the KPI registry, the run manager, the websocket hub, and
// the HTTP server on top.
type Application struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *kpi.Registry
	Hub      *ws.Hub
	Manager  *operations.Manager
	Metrics  *infrastructure.EngineMetrics
	OTel     *infrastructure.OTelProviders
	Server   *http.Server
}

// NewApplication builds the full dependency graph. Configuration or KPI
// document problems are fatal here; a server with a broken registry has
// nothing to serve.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	providers, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	reg, err := LoadRegistry(cfg.Engine)
	if err != nil {
		return nil, err
	}
	logger.Info("kpi registry loaded",
		slog.String("file", cfg.Engine.KPIFile),
		slog.Int("kpis", reg.Len()),
	)

	metrics, err := infrastructure.NewEngineMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("initialize metrics: %w", err)
	}

	ws.Upgrader.ReadBufferSize = cfg.WebSocket.ReadBufferSize
	ws.Upgrader.WriteBufferSize = cfg.WebSocket.WriteBufferSize

	hub := ws.NewHub(logger)
	hub.Start()

	manager := operations.NewManager(cfg, reg,
		operations.WithLogger(logger),
		operations.WithPublisher(hub),
		operations.WithMetrics(metrics),
	)

	router := transport.NewRouter(transport.RouterDeps{
		Config:         cfg,
		Registry:       reg,
		Manager:        manager,
		Hub:            hub,
		Metrics:        metrics,
		MetricsHandler: providers.PrometheusHTTP,
		Logger:         logger,
	})

	return &Application{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Hub:      hub,
		Manager:  manager,
		Metrics:  metrics,
		OTel:     providers,
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
	}, nil
}

// LoadRegistry reads the KPI document and optional band overrides and
// loads them into a registry.
func LoadRegistry(cfg config.EngineConfig) (*kpi.Registry, error) {
	doc, err := config.LoadKPIDocument(cfg.KPIFile)
	if err != nil {
		return nil, err
	}
	overrides, err := config.LoadBandOverrides(cfg.BandsFile)
	if err != nil {
		return nil, err
	}
	reg, err := kpi.Load(doc, overrides)
	if err != nil {
		return nil, fmt.Errorf("load kpi registry: %w", err)
	}
	return reg, nil
}

// Run serves until interrupted, then shuts down gracefully.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("server listening",
			slog.String("addr", a.Server.Addr),
			slog.Int("port", a.Config.Server.Port),
		)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.Stop(context.Background())
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received")
	}

	return a.Stop(context.Background())
}

// Stop drains the HTTP server, the active run, and the telemetry
// providers in that order.
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := a.Manager.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	a.Hub.Stop()
	if err := a.OTel.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	a.Logger.Info("shutdown complete")
	return nil
}
