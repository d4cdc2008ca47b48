package operations

import (
	"sync"

	"github.com/daiyabarus/FAC/internal/kpi"
)

// Progress is a point-in-time snapshot of a running pipeline.
type Progress struct {
	Stage      string  `json:"stage"`
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Skipped    int     `json:"skipped"`
	Flags      int     `json:"flags"`
}

// ProgressTracker accumulates engine events into a snapshot the status
// endpoint can poll, complementing the pushed event stream.
type ProgressTracker struct {
	mu sync.Mutex
	p  Progress
}

// NewProgressTracker creates an empty tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{}
}

// Snapshot returns a copy of the current progress.
func (t *ProgressTracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.p
}

func (t *ProgressTracker) StageStarted(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Stage = stage
	t.p.Current = 0
	t.p.Total = 0
	t.p.Percentage = 0
}

func (t *ProgressTracker) Progress(stage string, done, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Stage = stage
	t.p.Current = done
	t.p.Total = total
	if total > 0 {
		t.p.Percentage = float64(done) / float64(total) * 100
	}
}

func (t *ProgressTracker) RecordSkipped(int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Skipped++
}

func (t *ProgressTracker) FlagRaised(kpi.GroupKey, string, kpi.Flag) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Flags++
}

var _ kpi.EventSink = (*ProgressTracker)(nil)

// fanoutSink forwards every event to each sink in order.
type fanoutSink struct {
	sinks []kpi.EventSink
}

func (f fanoutSink) StageStarted(stage string) {
	for _, s := range f.sinks {
		s.StageStarted(stage)
	}
}

func (f fanoutSink) Progress(stage string, done, total int) {
	for _, s := range f.sinks {
		s.Progress(stage, done, total)
	}
}

func (f fanoutSink) RecordSkipped(index int, err error) {
	for _, s := range f.sinks {
		s.RecordSkipped(index, err)
	}
}

func (f fanoutSink) FlagRaised(key kpi.GroupKey, kpiID string, flag kpi.Flag) {
	for _, s := range f.sinks {
		s.FlagRaised(key, kpiID, flag)
	}
}
