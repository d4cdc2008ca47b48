package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/daiyabarus/FAC/internal/errors"
	"github.com/daiyabarus/FAC/internal/operations"
)

// RunsHandler exposes the run lifecycle: start, poll, report, download,
// cancel.
type RunsHandler struct {
	manager *operations.Manager
	logger  *slog.Logger
}

// NewRunsHandler creates a runs handler.
func NewRunsHandler(manager *operations.Manager, logger *slog.Logger) *RunsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunsHandler{
		manager: manager,
		logger:  logger.With(slog.String("handler", "runs")),
	}
}

// Routes returns the chi router for run endpoints.
func (h *RunsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Start)
	r.Get("/", h.List)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Cancel)
		r.Get("/report", h.Report)
		r.Get("/download/{format}", h.Download)
	})
	return r
}

// startResponse is the accepted-run reply.
type startResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Start handles POST /api/runs.
func (h *RunsHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := h.manager.Start(ctx)
	if err != nil {
		if errors.Is(err, operations.ErrRunInProgress) {
			render.Render(w, r, apierrors.ErrRunInProgress)
			return
		}
		h.logger.ErrorContext(ctx, "failed to start run", slog.String("error", err.Error()))
		render.Render(w, r, apierrors.FromEngine(err))
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, startResponse{ID: id, Status: string(operations.StatusPending)})
}

// List handles GET /api/runs.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.manager.List())
}

// Get handles GET /api/runs/{id}. The report payload is left to the
// report endpoint; this one stays small enough to poll.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	state, err := h.manager.Get(id)
	if err != nil {
		render.Render(w, r, apierrors.RunNotFoundError(id))
		return
	}
	state.Report = nil
	state.Diagnostics = nil
	render.JSON(w, r, state)
}

// Cancel handles DELETE /api/runs/{id}.
func (h *RunsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.manager.Cancel(id); err != nil {
		render.Render(w, r, apierrors.RunNotFoundError(id))
		return
	}
	render.NoContent(w, r)
}

// reportResponse carries the aggregated report plus the normalization
// diagnostics gathered during the run.
type reportResponse struct {
	ID          string      `json:"id"`
	Report      interface{} `json:"report"`
	Diagnostics interface{} `json:"diagnostics,omitempty"`
}

// Report handles GET /api/runs/{id}/report.
func (h *RunsHandler) Report(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	state, err := h.manager.Get(id)
	if err != nil {
		render.Render(w, r, apierrors.RunNotFoundError(id))
		return
	}
	if state.Report == nil {
		render.Render(w, r, apierrors.NewWithDetails(http.StatusNotFound,
			"REPORT_NOT_AVAILABLE", "run has not produced a report", string(state.Status)))
		return
	}
	render.JSON(w, r, reportResponse{
		ID:          state.ID,
		Report:      state.Report,
		Diagnostics: state.Diagnostics,
	})
}

// Download handles GET /api/runs/{id}/download/{format}, serving the
// exported workbook or CSV from the output directory.
func (h *RunsHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	state, err := h.manager.Get(id)
	if err != nil {
		render.Render(w, r, apierrors.RunNotFoundError(id))
		return
	}

	var path, contentType string
	switch strings.ToLower(chi.URLParam(r, "format")) {
	case "xlsx", "excel":
		path = state.ExcelPath
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "csv":
		path = state.CSVPath
		contentType = "text/csv"
	default:
		render.Render(w, r, apierrors.InvalidRequestWithError(
			errors.New("format must be xlsx or csv")))
		return
	}

	if path == "" {
		render.Render(w, r, apierrors.NewWithDetails(http.StatusNotFound,
			"REPORT_NOT_AVAILABLE", "run has not produced a report", string(state.Status)))
		return
	}

	w.Header().Set("Content-Type", contentType)
	http.ServeFile(w, r, path)
}
