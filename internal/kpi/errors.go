package kpi

import "fmt"

// ConfigError reports an invalid KPI configuration: duplicate IDs,
// non-monotonic band thresholds, or formulas referencing undeclared
// fields. It is fatal; nothing is processed after it.
type ConfigError struct {
	KPI    string
	Reason string
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.KPI == "" {
		return fmt.Sprintf("kpi config: %s", e.Reason)
	}
	return fmt.Sprintf("kpi config %q: %s", e.KPI, e.Reason)
}

// NotFoundError reports a lookup of a KPI ID absent from the registry.
type NotFoundError struct {
	KPI string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("kpi %q not registered", e.KPI)
}

// MalformedRecordError reports a raw record whose group/period key could
// not be determined. The record is skipped; processing continues.
type MalformedRecordError struct {
	Index  int
	Reason string
}

// Error implements the error interface
func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("record %d: %s", e.Index, e.Reason)
}

// BandConfigError reports a definition with no bands reaching the
// evaluator. Load rejects such definitions, so hitting this means the
// registry was bypassed. It is fatal.
type BandConfigError struct {
	KPI string
}

// Error implements the error interface
func (e *BandConfigError) Error() string {
	return fmt.Sprintf("kpi %q has no bands", e.KPI)
}

// computationError carries a formula evaluation failure such as division
// by zero. The pipeline converts it into a missing value plus a
// FlagComputationError flag; it never escapes Run.
type computationError struct {
	KPI    string
	Reason string
}

// Error implements the error interface
func (e *computationError) Error() string {
	return fmt.Sprintf("compute %q: %s", e.KPI, e.Reason)
}
