package kpi

// Computation pairs a definition with the value derived from one row.
// Err is set when formula evaluation failed arithmetically (for example
// division by zero); the value is missing in that case and the caller
// records a FlagComputationError flag.
type Computation struct {
	Def   Definition
	Value Value
	Err   error
}

// Compute derives every registered KPI's value from one normalized row.
// The calculator retains full float64 precision; rounding to a KPI's
// configured precision happens only at the export boundary so that the
// cross-KPI consistency checks compare what was actually computed.
//
// Missing propagates: if any field a formula needs is absent, the result
// is missing with no error. No partial computation is ever attempted.
func Compute(row NormalizedRow, defs []Definition) []Computation {
	out := make([]Computation, 0, len(defs))
	for _, def := range defs {
		value, err := def.Formula.Eval(row)
		if err != nil {
			out = append(out, Computation{Def: def, Value: Missing, Err: &computationError{KPI: def.ID, Reason: err.Error()}})
			continue
		}
		out = append(out, Computation{Def: def, Value: value})
	}
	return out
}
