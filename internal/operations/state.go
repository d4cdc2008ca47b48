package operations

import (
	"time"

	"github.com/daiyabarus/FAC/internal/kpi"
)

// RunStatus is the lifecycle state of one report run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// RunState is the tracked state of one run. The manager owns mutation;
// callers receive copies.
type RunState struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	// Progress is populated on status reads while the run executes.
	Progress *Progress `json:"progress,omitempty"`

	// Populated on completion.
	Report      *kpi.Report      `json:"report,omitempty"`
	Diagnostics []kpi.Diagnostic `json:"diagnostics,omitempty"`
	ExcelPath   string           `json:"excel_path,omitempty"`
	CSVPath     string           `json:"csv_path,omitempty"`
}

// Done reports whether the run reached a terminal state.
func (s RunStatus) Done() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Duration returns the wall time of the run so far, or total when done.
func (r *RunState) Duration() time.Duration {
	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}
