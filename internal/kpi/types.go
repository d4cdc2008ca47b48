package kpi

import (
	"fmt"
	"time"
)

// Direction controls how band thresholds are walked during classification.
type Direction int

const (
	// Ascending bands list thresholds low to high; higher values are better.
	Ascending Direction = iota
	// Descending bands list thresholds high to low; lower values are better.
	Descending
)

// String returns the string representation of the direction
func (d Direction) String() string {
	switch d {
	case Ascending:
		return "ascending"
	case Descending:
		return "descending"
	default:
		return "unknown"
	}
}

// Band is one classification bucket: a boundary threshold and the tier
// label assigned to values on the worse side of it.
type Band struct {
	Threshold float64 `json:"threshold"`
	Tier      string  `json:"tier"`
}

// Definition describes a single KPI: how to derive its value and how to
// judge it. Definitions are immutable once loaded into a Registry.
type Definition struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	Formula   Expr      `json:"-"`
	Source    string    `json:"formula"` // formula text as configured
	Baseline  *float64  `json:"baseline,omitempty"`
	Bands     []Band    `json:"bands"`
	Direction Direction `json:"direction"`
	// Tolerance is the allowed absolute deviation between this KPI's value
	// and the sum of its component KPIs' values.
	Tolerance  float64  `json:"tolerance"`
	Components []string `json:"components,omitempty"`
	SanityMin  *float64 `json:"sanity_min,omitempty"`
	SanityMax  *float64 `json:"sanity_max,omitempty"`
	// Precision is applied at the export boundary only; the engine keeps
	// full float64 precision so consistency checks stay accurate.
	Precision int `json:"precision"`
}

// Value is a computed KPI value or the explicit missing marker.
// A separate Valid bit is used instead of NaN so missing survives
// JSON round-trips and comparisons stay explicit.
type Value struct {
	Float float64 `json:"float"`
	Valid bool    `json:"valid"`
}

// Number wraps a float64 in a valid Value.
func Number(f float64) Value {
	return Value{Float: f, Valid: true}
}

// Missing is the explicit marker for an unavailable value.
var Missing = Value{}

// String returns the value for logs and diagnostics.
func (v Value) String() string {
	if !v.Valid {
		return "missing"
	}
	return fmt.Sprintf("%g", v.Float)
}

// FieldKind enumerates the typed field representations a normalized row
// can carry.
type FieldKind int

const (
	FieldMissing FieldKind = iota
	FieldNumber
	FieldText
	FieldDate
)

// Field is one typed cell of a normalized row.
type Field struct {
	Kind   FieldKind
	Number float64
	Text   string
	Date   time.Time
}

// NumberField builds a numeric field.
func NumberField(f float64) Field { return Field{Kind: FieldNumber, Number: f} }

// TextField builds a text field.
func TextField(s string) Field { return Field{Kind: FieldText, Text: s} }

// DateField builds a date field.
func DateField(t time.Time) Field { return Field{Kind: FieldDate, Date: t} }

// MissingField is the typed missing marker for a single field.
var MissingField = Field{Kind: FieldMissing}

// GroupKey identifies one reporting unit: a group (e.g. cluster or
// region) and a reporting period (e.g. "Sep-25" or "Q1").
type GroupKey struct {
	Group  string `json:"group"`
	Period string `json:"period"`
}

// String returns the key in group/period form.
func (k GroupKey) String() string {
	return k.Group + "/" + k.Period
}

// periodTime parses a month-tag period such as "Sep-25". The original
// acceptance reports carry months in this form.
func periodTime(period string) (time.Time, bool) {
	t, err := time.Parse("Jan-06", period)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// PeriodBefore reports whether period a orders before period b.
// Month-tag periods order chronologically; unparseable periods order
// lexicographically after all parseable ones.
func PeriodBefore(a, b string) bool {
	ta, okA := periodTime(a)
	tb, okB := periodTime(b)
	switch {
	case okA && okB:
		return ta.Before(tb)
	case okA:
		return true
	case okB:
		return false
	default:
		return a < b
	}
}

// NormalizedRow is the uniform internal representation of one raw record:
// typed fields plus the group/period key. Rows are immutable after
// normalization.
type NormalizedRow struct {
	Key    GroupKey
	Fields map[string]Field
}

// FlagKind is the closed enumeration of validation flag kinds.
type FlagKind string

const (
	FlagMissingData            FlagKind = "missing_data"
	FlagComputationError       FlagKind = "computation_error"
	FlagInconsistentDerivation FlagKind = "inconsistent_derivation"
	FlagUnexpectedGap          FlagKind = "unexpected_gap"
	FlagOutOfRange             FlagKind = "out_of_range"
	FlagDuplicateSuppressed    FlagKind = "duplicate_suppressed"
)

// Severity grades a validation flag.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Flag is a structured validation finding attached to a result. Flags are
// append-only; validation never alters a result's value.
type Flag struct {
	Kind     FlagKind `json:"kind"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail"`
	// KPIRefs lists the IDs of any other KPIs involved in the finding,
	// e.g. the components of an inconsistent derivation.
	KPIRefs []string `json:"kpi_refs,omitempty"`
}

// Result is the evaluated outcome for one KPI in one group/period.
type Result struct {
	KPI   string   `json:"kpi"`
	Key   GroupKey `json:"key"`
	Value Value    `json:"value"`
	// Tier is empty when the value is missing.
	Tier string `json:"tier,omitempty"`
	// Distance is the signed gap to the nearest band boundary, valid only
	// when the value was classified.
	Distance      float64 `json:"distance"`
	DistanceValid bool    `json:"distance_valid"`
	Flags         []Flag  `json:"flags,omitempty"`
}

// HasFlag reports whether the result carries a flag of the given kind.
func (r Result) HasFlag(kind FlagKind) bool {
	for _, f := range r.Flags {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

// GroupReport is one reporting unit's ordered slice of the final report.
type GroupReport struct {
	Key     GroupKey `json:"key"`
	Results []Result `json:"results"`
}

// Summary aggregates counts over the whole report for the renderer.
type Summary struct {
	TierCounts     map[string]int   `json:"tier_counts"`
	SeverityCounts map[Severity]int `json:"severity_counts"`
	Groups         []GroupKey       `json:"groups"`
	Records        int              `json:"records"`
	Skipped        int              `json:"skipped"`
}

// Report is the aggregated, ordered result model handed to the renderer.
// It is read-only for consumers; nothing mutates it after aggregation.
type Report struct {
	Groups  []GroupReport `json:"groups"`
	Summary Summary       `json:"summary"`
}

// Round truncates v to the definition's configured precision. Export code
// calls this at the display boundary; the engine never does.
func (d Definition) Round(v float64) float64 {
	scale := 1.0
	for i := 0; i < d.Precision; i++ {
		scale *= 10
	}
	return float64(int64(v*scale+copysignHalf(v))) / scale
}

func copysignHalf(v float64) float64 {
	if v < 0 {
		return -0.5
	}
	return 0.5
}
