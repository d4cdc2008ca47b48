package kpi

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// Validator runs the cross-KPI consistency checks for one group/period at
// a time. It only ever appends flags; a result's value is never removed
// or altered, so the computed numbers stay auditable.
type Validator struct {
	reg    *Registry
	logger *slog.Logger
}

// NewValidator creates a validator over the given registry.
func NewValidator(reg *Registry, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{reg: reg, logger: logger}
}

// Validate checks one group/period's results. prior holds the same
// group's results for the immediately preceding period, or nil when there
// is none; it feeds the gap check only. The returned slice is the input
// slice with flags appended.
func (v *Validator) Validate(results []Result, prior []Result) []Result {
	byID := make(map[string]*Result, len(results))
	for i := range results {
		byID[results[i].KPI] = &results[i]
	}
	priorByID := make(map[string]Value, len(prior))
	for _, r := range prior {
		priorByID[r.KPI] = r.Value
	}

	for i := range results {
		r := &results[i]
		def, err := v.reg.Get(r.KPI)
		if err != nil {
			// Results always originate from registry definitions; an
			// unknown ID here is a programming error worth surfacing.
			v.logger.Error("result references unregistered kpi", slog.String("kpi", r.KPI))
			continue
		}

		v.checkDerivation(r, def, byID)
		v.checkGap(r, priorByID)
		v.checkSanityRange(r, def)
	}

	return results
}

// checkDerivation recomputes a derived KPI from its component KPIs'
// results (not from raw fields) and flags drift beyond the tolerance.
// Comparing results catches inconsistencies introduced by independent
// computation paths.
func (v *Validator) checkDerivation(r *Result, def Definition, byID map[string]*Result) {
	if len(def.Components) == 0 || !r.Value.Valid {
		return
	}

	sum := 0.0
	for _, comp := range def.Components {
		cr, ok := byID[comp]
		if !ok || !cr.Value.Valid {
			// A missing component already carries its own flags; the
			// derivation cannot be recomputed without it.
			return
		}
		sum += cr.Value.Float
	}

	if diff := math.Abs(r.Value.Float - sum); diff > def.Tolerance {
		r.Flags = append(r.Flags, Flag{
			Kind:     FlagInconsistentDerivation,
			Severity: SeverityWarning,
			Detail: fmt.Sprintf("value %g differs from component sum %g by %g (tolerance %g, components %s)",
				r.Value.Float, sum, diff, def.Tolerance, strings.Join(def.Components, "+")),
			KPIRefs: append([]string(nil), def.Components...),
		})
	}
}

// checkGap flags a KPI that was present in the prior period but is
// missing now. Informational only: a gap is suspicious, not fatal.
func (v *Validator) checkGap(r *Result, priorByID map[string]Value) {
	if r.Value.Valid {
		return
	}
	if prev, ok := priorByID[r.KPI]; ok && prev.Valid {
		r.Flags = append(r.Flags, Flag{
			Kind:     FlagUnexpectedGap,
			Severity: SeverityInfo,
			Detail:   fmt.Sprintf("present in prior period (%g), missing now", prev.Float),
		})
	}
}

// checkSanityRange flags values outside the KPI's configured hard range.
func (v *Validator) checkSanityRange(r *Result, def Definition) {
	if !r.Value.Valid {
		return
	}
	if def.SanityMin != nil && r.Value.Float < *def.SanityMin {
		r.Flags = append(r.Flags, Flag{
			Kind:     FlagOutOfRange,
			Severity: SeverityError,
			Detail:   fmt.Sprintf("value %g below sanity minimum %g", r.Value.Float, *def.SanityMin),
		})
	}
	if def.SanityMax != nil && r.Value.Float > *def.SanityMax {
		r.Flags = append(r.Flags, Flag{
			Kind:     FlagOutOfRange,
			Severity: SeverityError,
			Detail:   fmt.Sprintf("value %g above sanity maximum %g", r.Value.Float, *def.SanityMax),
		})
	}
}
