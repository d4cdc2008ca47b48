package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/daiyabarus/FAC/internal/infrastructure"
	"github.com/daiyabarus/FAC/internal/kpi"
)

// HealthHandler answers liveness and version probes.
type HealthHandler struct {
	reg     *kpi.Registry
	started time.Time
}

// NewHealthHandler creates a health handler over the loaded registry.
func NewHealthHandler(reg *kpi.Registry) *HealthHandler {
	return &HealthHandler{reg: reg, started: time.Now().UTC()}
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	KPIs    int    `json:"kpis"`
}

// HealthCheck handles GET /api/health.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, healthResponse{
		Status:  "ok",
		Service: infrastructure.ServiceName,
		Version: infrastructure.ServiceVersion,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		KPIs:    h.reg.Len(),
	})
}
