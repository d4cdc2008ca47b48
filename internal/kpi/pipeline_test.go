package kpi

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink records pipeline events; groups run concurrently, so every
// method locks.
type captureSink struct {
	mu      sync.Mutex
	stages  []string
	skipped []int
	flags   map[FlagKind]int
}

func newCaptureSink() *captureSink {
	return &captureSink{flags: make(map[FlagKind]int)}
}

func (s *captureSink) StageStarted(stage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, stage)
}

func (s *captureSink) Progress(string, int, int) {}

func (s *captureSink) RecordSkipped(index int, _ error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped = append(s.skipped, index)
}

func (s *captureSink) FlagRaised(_ GroupKey, _ string, flag Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[flag.Kind]++
}

func pipelineRecords() []RawRecord {
	return []RawRecord{
		{
			"region": "A", "period": "Sep-25",
			"revenue": "100", "cost": "80", "drop_rate": "1.2",
			"lte_total": "60", "gsm_total": "30", "grand_total": "90",
		},
		{
			"region": "A", "period": "Oct-25",
			"revenue": "100", "cost": "50", "drop_rate": "0.4",
			"lte_total": "70", "gsm_total": "25", "grand_total": "95",
		},
		{
			"region": "B", "period": "Sep-25",
			"revenue": "200", "cost": "120", "drop_rate": "6",
			"lte_total": "10", "gsm_total": "5", "grand_total": "15",
		},
	}
}

func findResult(t *testing.T, report *Report, key GroupKey, kpi string) Result {
	t.Helper()
	for _, g := range report.Groups {
		if g.Key != key {
			continue
		}
		for _, r := range g.Results {
			if r.KPI == kpi {
				return r
			}
		}
	}
	t.Fatalf("no result for %s in %s", kpi, key)
	return Result{}
}

func TestPipelineRun(t *testing.T) {
	reg, err := Load(testDocument(), nil)
	require.NoError(t, err)

	sink := newCaptureSink()
	p := NewPipeline(reg, WithEventSink(sink), WithConcurrency(2))

	report, diags, err := p.Run(context.Background(), pipelineRecords())
	require.NoError(t, err)
	assert.Empty(t, diags)
	require.Len(t, report.Groups, 3)

	margin := findResult(t, report, GroupKey{Group: "A", Period: "Sep-25"}, "margin")
	require.True(t, margin.Value.Valid)
	assert.InDelta(t, 0.2, margin.Value.Float, 1e-12)
	assert.Equal(t, "warn", margin.Tier)
	require.True(t, margin.DistanceValid)
	assert.InDelta(t, -0.1, margin.Distance, 1e-12)

	dropB := findResult(t, report, GroupKey{Group: "B", Period: "Sep-25"}, "drop_rate")
	assert.Equal(t, "fail", dropB.Tier)

	assert.Equal(t, 3, report.Summary.Records)
	assert.Zero(t, report.Summary.Skipped)
	assert.Contains(t, sink.stages, "normalize")
	assert.Contains(t, sink.stages, "evaluate")
}

func TestPipelineMissingInputDegrades(t *testing.T) {
	reg, err := Load(testDocument(), nil)
	require.NoError(t, err)

	records := pipelineRecords()
	delete(records[0], "cost")

	p := NewPipeline(reg)
	report, _, err := p.Run(context.Background(), records)
	require.NoError(t, err)

	margin := findResult(t, report, GroupKey{Group: "A", Period: "Sep-25"}, "margin")
	assert.False(t, margin.Value.Valid)
	assert.Empty(t, margin.Tier)
	require.True(t, margin.HasFlag(FlagMissingData))
	for _, f := range margin.Flags {
		if f.Kind == FlagMissingData {
			assert.Contains(t, f.Detail, "cost")
		}
	}
}

func TestPipelineSkipsMalformedRecords(t *testing.T) {
	reg, err := Load(testDocument(), nil)
	require.NoError(t, err)

	records := append(pipelineRecords(), RawRecord{
		"revenue": "100", "cost": "80", // no region, no period
	})

	sink := newCaptureSink()
	p := NewPipeline(reg, WithEventSink(sink))

	report, _, err := p.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Summary.Records)
	assert.Equal(t, 1, report.Summary.Skipped)
	assert.Equal(t, []int{3}, sink.skipped)
	// The good records still produced a full report.
	assert.Len(t, report.Groups, 3)
}

func TestPipelineUnexpectedGapAcrossPeriods(t *testing.T) {
	reg, err := Load(testDocument(), nil)
	require.NoError(t, err)

	records := pipelineRecords()
	// Present in Sep-25, gone in Oct-25.
	delete(records[1], "drop_rate")

	p := NewPipeline(reg)
	report, _, err := p.Run(context.Background(), records)
	require.NoError(t, err)

	oct := findResult(t, report, GroupKey{Group: "A", Period: "Oct-25"}, "drop_rate")
	assert.False(t, oct.Value.Valid)
	assert.True(t, oct.HasFlag(FlagUnexpectedGap))
}

func TestPipelineDerivationDrift(t *testing.T) {
	reg, err := Load(testDocument(), nil)
	require.NoError(t, err)

	records := pipelineRecords()
	records[0]["grand_total"] = "120" // components sum to 90, tolerance 5

	sink := newCaptureSink()
	p := NewPipeline(reg, WithEventSink(sink))

	report, _, err := p.Run(context.Background(), records)
	require.NoError(t, err)

	total := findResult(t, report, GroupKey{Group: "A", Period: "Sep-25"}, "grand_total")
	require.True(t, total.HasFlag(FlagInconsistentDerivation))
	// The reported value is the computed one, untouched by validation.
	assert.Equal(t, Number(120), total.Value)
	assert.Equal(t, 1, sink.flags[FlagInconsistentDerivation])
}

func TestPipelineDuplicateRecords(t *testing.T) {
	reg, err := Load(testDocument(), nil)
	require.NoError(t, err)

	records := pipelineRecords()
	dup := RawRecord{
		"region": "A", "period": "Sep-25",
		"revenue": "100", "cost": "40", "drop_rate": "1.2",
		"lte_total": "60", "gsm_total": "30", "grand_total": "90",
	}
	records = append(records, dup)

	p := NewPipeline(reg)
	report, _, err := p.Run(context.Background(), records)
	require.NoError(t, err)

	margin := findResult(t, report, GroupKey{Group: "A", Period: "Sep-25"}, "margin")
	// Later record wins: (100-40)/100.
	require.True(t, margin.Value.Valid)
	assert.InDelta(t, 0.6, margin.Value.Float, 1e-12)
	assert.True(t, margin.HasFlag(FlagDuplicateSuppressed))
}

func TestPipelineCancelledContext(t *testing.T) {
	reg, err := Load(testDocument(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(reg)
	_, _, err = p.Run(ctx, pipelineRecords())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipelineBadValueBecomesDiagnostic(t *testing.T) {
	reg, err := Load(testDocument(), nil)
	require.NoError(t, err)

	records := pipelineRecords()
	records[2]["revenue"] = "n/a"

	p := NewPipeline(reg)
	report, diags, err := p.Run(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, diags, 1)
	assert.Equal(t, 2, diags[0].Record)
	assert.Equal(t, "revenue", diags[0].Field)

	margin := findResult(t, report, GroupKey{Group: "B", Period: "Sep-25"}, "margin")
	assert.False(t, margin.Value.Valid)
	assert.True(t, margin.HasFlag(FlagMissingData))
}
