package kpi

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "fac.engine"

// EventSink receives record-level and validation-level progress events
// for the UI surface. Implementations must be safe for concurrent use;
// groups are evaluated in parallel.
type EventSink interface {
	StageStarted(stage string)
	Progress(stage string, done, total int)
	RecordSkipped(index int, err error)
	FlagRaised(key GroupKey, kpi string, flag Flag)
}

// Metrics counts engine work. The infrastructure package provides an
// OpenTelemetry-backed implementation; tests use the no-op.
type Metrics interface {
	RecordsNormalized(ctx context.Context, n int)
	RecordsSkipped(ctx context.Context, n int)
	ResultsComputed(ctx context.Context, n int)
	FlagRaised(ctx context.Context, kind FlagKind)
}

type noopSink struct{}

func (noopSink) StageStarted(string)               {}
func (noopSink) Progress(string, int, int)         {}
func (noopSink) RecordSkipped(int, error)          {}
func (noopSink) FlagRaised(GroupKey, string, Flag) {}

type noopMetrics struct{}

func (noopMetrics) RecordsNormalized(context.Context, int) {}
func (noopMetrics) RecordsSkipped(context.Context, int)    {}
func (noopMetrics) ResultsComputed(context.Context, int)   {}
func (noopMetrics) FlagRaised(context.Context, FlagKind)   {}

// Pipeline runs the full engine: Normalizer, Calculator, Evaluator,
// Validator, Aggregator. Groups are independent units of work; the only
// shared state crossing group boundaries is the read-only registry, so
// the evaluation stage fans out across groups. The final merge and
// aggregation run single-threaded after every worker returns.
type Pipeline struct {
	reg         *Registry
	logger      *slog.Logger
	tracer      trace.Tracer
	sink        EventSink
	metrics     Metrics
	concurrency int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithEventSink routes progress events to the given sink.
func WithEventSink(sink EventSink) Option {
	return func(p *Pipeline) { p.sink = sink }
}

// WithMetrics routes engine counters to the given metrics implementation.
func WithMetrics(m Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithConcurrency bounds the number of groups evaluated in parallel.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// NewPipeline creates a pipeline over the given registry.
func NewPipeline(reg *Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		reg:         reg,
		logger:      slog.Default(),
		tracer:      otel.Tracer(tracerName),
		sink:        noopSink{},
		metrics:     noopMetrics{},
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one load-and-report cycle over the raw records. Malformed
// records are skipped and reported through the sink; per-value failures
// degrade to missing plus a flag. Only configuration-class errors (or
// context cancellation) abort the run, in which case no partial report is
// returned.
func (p *Pipeline) Run(ctx context.Context, records []RawRecord) (*Report, []Diagnostic, error) {
	start := time.Now()
	p.logger.InfoContext(ctx, "starting kpi pipeline",
		"records", len(records),
		"kpis", p.reg.Len(),
	)

	rows, skipped, diags, err := p.normalize(ctx, records)
	if err != nil {
		return nil, nil, err
	}

	results, err := p.evaluate(ctx, rows)
	if err != nil {
		return nil, nil, err
	}

	ctx, span := p.tracer.Start(ctx, "engine.aggregate",
		trace.WithAttributes(attribute.Int("results", len(results))))
	report, err := Aggregate(results, p.reg)
	span.End()
	if err != nil {
		return nil, nil, err
	}
	report.Summary.Records = len(records)
	report.Summary.Skipped = skipped

	p.logger.InfoContext(ctx, "kpi pipeline completed",
		"duration", time.Since(start),
		"groups", len(report.Groups),
		"skipped_records", skipped,
	)
	return report, diags, nil
}

// normalize converts every raw record, grouping the resulting rows by
// group name. Records without a determinable key are counted and skipped.
func (p *Pipeline) normalize(ctx context.Context, records []RawRecord) (map[string][]NormalizedRow, int, []Diagnostic, error) {
	ctx, span := p.tracer.Start(ctx, "engine.normalize",
		trace.WithAttributes(attribute.Int("records", len(records))))
	defer span.End()

	p.sink.StageStarted("normalize")
	normalizer := NewNormalizer(p.reg.Schema(), p.logger)

	rows := make(map[string][]NormalizedRow)
	skipped := 0
	for i, raw := range records {
		if err := ctx.Err(); err != nil {
			return nil, 0, nil, fmt.Errorf("normalize cancelled: %w", err)
		}
		row, err := normalizer.Normalize(i, raw)
		if err != nil {
			// The record is unusable but the run continues.
			skipped++
			p.sink.RecordSkipped(i, err)
			p.logger.WarnContext(ctx, "skipping malformed record", "record", i, "error", err)
			continue
		}
		rows[row.Key.Group] = append(rows[row.Key.Group], row)
		if (i+1)%100 == 0 || i+1 == len(records) {
			p.sink.Progress("normalize", i+1, len(records))
		}
	}

	p.metrics.RecordsNormalized(ctx, len(records)-skipped)
	p.metrics.RecordsSkipped(ctx, skipped)
	return rows, skipped, normalizer.Diagnostics(), nil
}

// evaluate fans the compute/classify/validate stages out across groups.
// Each group is processed by exactly one worker; an abandoned group is
// dropped whole, never half-written into the shared result set.
func (p *Pipeline) evaluate(ctx context.Context, rowsByGroup map[string][]NormalizedRow) ([]Result, error) {
	ctx, span := p.tracer.Start(ctx, "engine.evaluate",
		trace.WithAttributes(attribute.Int("groups", len(rowsByGroup))))
	defer span.End()

	p.sink.StageStarted("evaluate")

	groups := make([]string, 0, len(rowsByGroup))
	for g := range rowsByGroup {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	perGroup := make([][]Result, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, name := range groups {
		g.Go(func() error {
			results, err := p.evaluateGroup(gctx, name, rowsByGroup[name])
			if err != nil {
				return err
			}
			perGroup[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("evaluate groups: %w", err)
	}

	// Single-threaded merge once all workers are done.
	var results []Result
	for i, groupResults := range perGroup {
		results = append(results, groupResults...)
		p.sink.Progress("evaluate", i+1, len(groups))
	}
	p.metrics.ResultsComputed(ctx, len(results))
	return results, nil
}

// evaluateGroup runs compute, classify, and validate over one group's
// rows, period by period in chronological order so the gap check can see
// the immediately prior period.
func (p *Pipeline) evaluateGroup(ctx context.Context, group string, rows []NormalizedRow) ([]Result, error) {
	byPeriod := make(map[string][]NormalizedRow)
	for _, row := range rows {
		byPeriod[row.Key.Period] = append(byPeriod[row.Key.Period], row)
	}
	periods := make([]string, 0, len(byPeriod))
	for period := range byPeriod {
		periods = append(periods, period)
	}
	sort.Slice(periods, func(i, j int) bool { return PeriodBefore(periods[i], periods[j]) })

	validator := NewValidator(p.reg, p.logger)
	defs := p.reg.All()

	var out []Result
	var prior []Result
	for _, period := range periods {
		// Cooperative cancellation between pipeline stages, at period
		// granularity within a group.
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("group %q abandoned: %w", group, err)
		}

		key := GroupKey{Group: group, Period: period}
		var periodResults []Result
		for _, row := range byPeriod[period] {
			computed := Compute(row, defs)
			for _, c := range computed {
				result, err := p.buildResult(ctx, key, row, c)
				if err != nil {
					return nil, err
				}
				periodResults = append(periodResults, result)
			}
		}

		periodResults = validator.Validate(periodResults, prior)
		for _, r := range periodResults {
			for _, f := range r.Flags {
				p.sink.FlagRaised(key, r.KPI, f)
				p.metrics.FlagRaised(ctx, f.Kind)
			}
		}

		out = append(out, periodResults...)
		prior = periodResults
	}
	return out, nil
}

// buildResult classifies one computation and attaches the flags the spec
// ties to missing or failed values.
func (p *Pipeline) buildResult(ctx context.Context, key GroupKey, row NormalizedRow, c Computation) (Result, error) {
	result := Result{KPI: c.Def.ID, Key: key, Value: c.Value}

	classification, err := Classify(c.Def, c.Value)
	if err != nil {
		// BandConfigError means Load was bypassed; abort the run.
		return Result{}, err
	}
	if classification.Valid {
		result.Tier = classification.Tier
		result.Distance = classification.Distance
		result.DistanceValid = true
	}

	switch {
	case c.Err != nil:
		result.Flags = append(result.Flags, Flag{
			Kind:     FlagComputationError,
			Severity: SeverityWarning,
			Detail:   c.Err.Error(),
		})
	case !c.Value.Valid:
		result.Flags = append(result.Flags, Flag{
			Kind:     FlagMissingData,
			Severity: SeverityWarning,
			Detail:   missingDetail(c.Def, row),
		})
	}
	return result, nil
}

// missingDetail names the absent fields so the report can say why a
// value is unavailable.
func missingDetail(def Definition, row NormalizedRow) string {
	refs := make(map[string]struct{})
	def.Formula.Fields(refs)

	var missing []string
	for name := range refs {
		if f, ok := row.Fields[name]; !ok || f.Kind != FieldNumber {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	if len(missing) == 0 {
		return "required input missing"
	}
	return fmt.Sprintf("missing input field(s): %s", strings.Join(missing, ", "))
}
