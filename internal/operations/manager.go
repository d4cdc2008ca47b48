package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daiyabarus/FAC/internal/config"
	"github.com/daiyabarus/FAC/internal/exporter"
	"github.com/daiyabarus/FAC/internal/importer"
	"github.com/daiyabarus/FAC/internal/kpi"
	"github.com/daiyabarus/FAC/pkg/contracts/events"
)

var (
	// ErrRunInProgress is returned when a run is requested while another
	// run has not reached a terminal state. Runs share the data and
	// output directories, so only one may execute at a time.
	ErrRunInProgress = errors.New("a run is already in progress")

	// ErrRunNotFound is returned for an unknown run id.
	ErrRunNotFound = errors.New("run not found")
)

// Manager owns report runs: it starts them, tracks their state, and
// streams their events to the publisher. All state access is serialized
// through the manager's mutex; callers only ever see copies.
type Manager struct {
	cfg       *config.Config
	reg       *kpi.Registry
	importer  *importer.Importer
	publisher Publisher
	metrics   kpi.Metrics
	logger    *slog.Logger

	mu      sync.Mutex
	runs    map[string]*runEntry
	order   []string
	active  string
	stopped bool
}

type runEntry struct {
	state    RunState
	progress *ProgressTracker
	cancel   context.CancelFunc
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPublisher routes run events to the given publisher. Without one
// the manager runs silently, as the CLI does.
func WithPublisher(p Publisher) ManagerOption {
	return func(m *Manager) {
		if p != nil {
			m.publisher = p
		}
	}
}

// WithMetrics routes engine counters to the given implementation.
func WithMetrics(metrics kpi.Metrics) ManagerOption {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a run manager over the given registry.
func NewManager(cfg *config.Config, reg *kpi.Registry, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:       cfg,
		reg:       reg,
		publisher: noopPublisher{},
		logger:    slog.Default(),
		runs:      make(map[string]*runEntry),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.importer = importer.New(m.logger)
	return m
}

// Start launches a new run and returns its id. At most one run may be
// active; a second request fails with ErrRunInProgress.
func (m *Manager) Start(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return "", errors.New("manager is shutting down")
	}
	if m.active != "" && !m.runs[m.active].state.Status.Done() {
		return "", ErrRunInProgress
	}

	id := uuid.NewString()

	// The run outlives the request that started it.
	runCtx, cancel := context.WithTimeout(context.Background(), m.cfg.Server.RunTimeout)

	entry := &runEntry{
		state: RunState{
			ID:        id,
			Status:    StatusPending,
			StartedAt: time.Now().UTC(),
		},
		progress: NewProgressTracker(),
		cancel:   cancel,
	}
	m.runs[id] = entry
	m.order = append(m.order, id)
	m.active = id

	go m.execute(runCtx, id, entry)

	m.logger.InfoContext(ctx, "run accepted", slog.String("run_id", id))
	return id, nil
}

// Get returns a copy of the run state, with a progress snapshot while
// the run executes.
func (m *Manager) Get(id string) (RunState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.runs[id]
	if !ok {
		return RunState{}, ErrRunNotFound
	}
	state := entry.state
	if !state.Status.Done() {
		p := entry.progress.Snapshot()
		state.Progress = &p
	}
	return state, nil
}

// List returns every run, newest first, without reports attached.
func (m *Manager) List() []RunState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RunState, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		state := m.runs[m.order[i]].state
		state.Report = nil
		state.Diagnostics = nil
		out = append(out, state)
	}
	return out
}

// Cancel aborts an in-flight run. Cancelling a finished run is a no-op.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.runs[id]
	if !ok {
		return ErrRunNotFound
	}
	if !entry.state.Status.Done() {
		entry.cancel()
	}
	return nil
}

// Shutdown cancels the active run and waits for it to reach a terminal
// state, bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.stopped = true
	active := m.active
	if active != "" {
		m.runs[active].cancel()
	}
	m.mu.Unlock()

	if active == "" {
		return nil
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("shutdown wait: %w", ctx.Err())
		case <-ticker.C:
			state, err := m.Get(active)
			if err != nil || state.Status.Done() {
				return nil
			}
		}
	}
}

// execute runs the whole import, evaluate, export cycle for one run.
func (m *Manager) execute(ctx context.Context, id string, entry *runEntry) {
	defer entry.cancel()

	logger := m.logger.With(slog.String("run_id", id))
	m.setStatus(id, StatusRunning, nil)

	start := time.Now()
	err := m.run(ctx, id, entry, logger)
	elapsed := time.Since(start)

	if rec, ok := m.metrics.(runRecorder); ok {
		rec.RunCompleted(ctx, elapsed.Seconds(), err == nil)
	}

	switch {
	case err == nil:
		m.setStatus(id, StatusCompleted, nil)
		logger.InfoContext(ctx, "run completed", slog.Duration("duration", elapsed))
	case errors.Is(err, context.Canceled):
		m.setStatus(id, StatusCancelled, err)
		logger.WarnContext(ctx, "run cancelled", slog.Duration("duration", elapsed))
	default:
		m.setStatus(id, StatusFailed, err)
		logger.ErrorContext(ctx, "run failed",
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Manager) run(ctx context.Context, id string, entry *runEntry, logger *slog.Logger) error {
	sink := fanoutSink{sinks: []kpi.EventSink{
		newRunSink(id, m.publisher),
		entry.progress,
	}}

	records, err := m.importer.ReadDir(m.cfg.Paths.DataDir)
	if err != nil {
		return fmt.Errorf("import data: %w", err)
	}

	opts := []kpi.Option{
		kpi.WithLogger(logger),
		kpi.WithEventSink(sink),
		kpi.WithConcurrency(m.cfg.Engine.Concurrency),
	}
	if m.metrics != nil {
		opts = append(opts, kpi.WithMetrics(m.metrics))
	}

	report, diags, err := kpi.NewPipeline(m.reg, opts...).Run(ctx, records)
	if err != nil {
		return err
	}

	excelPath, csvPath, err := m.export(report, id, logger)
	if err != nil {
		return err
	}

	m.mu.Lock()
	entry.state.Report = report
	entry.state.Diagnostics = diags
	entry.state.ExcelPath = excelPath
	entry.state.CSVPath = csvPath
	m.mu.Unlock()
	return nil
}

func (m *Manager) export(report *kpi.Report, id string, logger *slog.Logger) (string, string, error) {
	base := fmt.Sprintf("fac-report-%s-%s", time.Now().UTC().Format("20060102-150405"), shortID(id))
	excelPath := filepath.Join(m.cfg.Paths.OutputDir, base+".xlsx")
	csvPath := filepath.Join(m.cfg.Paths.OutputDir, base+".csv")

	if err := exporter.NewExcelWriter(m.reg, logger).Write(report, excelPath); err != nil {
		return "", "", fmt.Errorf("write excel report: %w", err)
	}
	if err := exporter.NewCSVWriter(m.reg, logger).Write(report, csvPath); err != nil {
		return "", "", fmt.Errorf("write csv report: %w", err)
	}
	return excelPath, csvPath, nil
}

// setStatus transitions a run and publishes the change.
func (m *Manager) setStatus(id string, status RunStatus, cause error) {
	m.mu.Lock()
	entry, ok := m.runs[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	entry.state.Status = status
	if cause != nil {
		entry.state.Error = cause.Error()
	}
	if status.Done() {
		now := time.Now().UTC()
		entry.state.CompletedAt = &now
		if m.active == id {
			m.active = ""
		}
	}
	m.mu.Unlock()

	payload := events.RunStatusPayload{Status: string(status)}
	if cause != nil {
		payload.Error = cause.Error()
	}
	m.publisher.Publish(events.New(events.EventRunStatus, id, payload))
}

// runRecorder is the optional run-level counter the OpenTelemetry
// metrics implementation provides on top of the engine counters.
type runRecorder interface {
	RunCompleted(ctx context.Context, seconds float64, success bool)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
