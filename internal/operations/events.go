package operations

import (
	"github.com/daiyabarus/FAC/internal/kpi"
	"github.com/daiyabarus/FAC/pkg/contracts/events"
)

// Publisher fans run events out to subscribers. The websocket hub
// implements it for the server; the CLI runs without one.
type Publisher interface {
	Publish(event events.Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(events.Event) {}

// runSink bridges engine progress events onto the publisher. It must be
// safe for concurrent use; groups are evaluated in parallel.
type runSink struct {
	runID     string
	publisher Publisher
}

func newRunSink(runID string, publisher Publisher) *runSink {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &runSink{runID: runID, publisher: publisher}
}

func (s *runSink) StageStarted(stage string) {
	s.publisher.Publish(events.New(events.EventStageStarted, s.runID, events.StagePayload{
		Stage: stage,
	}))
}

func (s *runSink) Progress(stage string, done, total int) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(done) / float64(total) * 100
	}
	s.publisher.Publish(events.New(events.EventProgress, s.runID, events.ProgressPayload{
		Stage:      stage,
		Current:    done,
		Total:      total,
		Percentage: percentage,
	}))
}

func (s *runSink) RecordSkipped(index int, err error) {
	s.publisher.Publish(events.New(events.EventRecordSkipped, s.runID, events.RecordSkippedPayload{
		Record: index,
		Reason: err.Error(),
	}))
}

func (s *runSink) FlagRaised(key kpi.GroupKey, kpiID string, flag kpi.Flag) {
	s.publisher.Publish(events.New(events.EventFlagRaised, s.runID, events.FlagPayload{
		Group:    key.Group,
		Period:   key.Period,
		KPI:      kpiID,
		Kind:     string(flag.Kind),
		Severity: string(flag.Severity),
		Detail:   flag.Detail,
		KPIRefs:  flag.KPIRefs,
	}))
}

var _ kpi.EventSink = (*runSink)(nil)
