// Package events contains the event contract pushed over WebSocket to
// report UI clients while a run executes.
package events

import "time"

// EventType enumerates the run event kinds.
type EventType string

const (
	EventRunStatus     EventType = "run:status"
	EventStageStarted  EventType = "run:stage"
	EventProgress      EventType = "run:progress"
	EventRecordSkipped EventType = "run:record_skipped"
	EventFlagRaised    EventType = "run:flag"
)

// Event is the envelope for every pushed message.
type Event struct {
	Type      EventType   `json:"type"`
	RunID     string      `json:"run_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// RunStatusPayload reports a run state transition.
type RunStatusPayload struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// StagePayload names the pipeline stage that just started.
type StagePayload struct {
	Stage string `json:"stage"`
}

// ProgressPayload reports stage progress.
type ProgressPayload struct {
	Stage      string  `json:"stage"`
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// RecordSkippedPayload reports one malformed input record.
type RecordSkippedPayload struct {
	Record int    `json:"record"`
	Reason string `json:"reason"`
}

// FlagPayload reports one validation flag as it is raised.
type FlagPayload struct {
	Group    string   `json:"group"`
	Period   string   `json:"period"`
	KPI      string   `json:"kpi"`
	Kind     string   `json:"kind"`
	Severity string   `json:"severity"`
	Detail   string   `json:"detail"`
	KPIRefs  []string `json:"kpi_refs,omitempty"`
}

// New builds an event with the current timestamp.
func New(eventType EventType, runID string, payload interface{}) Event {
	return Event{
		Type:      eventType,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
