package exporter

import (
	"fmt"
	"strings"

	"github.com/daiyabarus/FAC/internal/kpi"
)

// formatValue renders a result value at the definition's configured
// precision. This is the only place values are rounded; the engine keeps
// full precision throughout.
func formatValue(def kpi.Definition, v kpi.Value) string {
	if !v.Valid {
		return "missing"
	}
	return fmt.Sprintf("%.*f", def.Precision, def.Round(v.Float))
}

// formatBaseline renders the optional baseline.
func formatBaseline(def kpi.Definition) string {
	if def.Baseline == nil {
		return ""
	}
	return fmt.Sprintf("%.*f", def.Precision, *def.Baseline)
}

// formatDistance renders the signed distance to the nearest band
// boundary, or blank when the value was never classified.
func formatDistance(r kpi.Result, def kpi.Definition) string {
	if !r.DistanceValid {
		return ""
	}
	return fmt.Sprintf("%+.*f", def.Precision, def.Round(r.Distance))
}

// formatFlags renders the flag list as "kind(severity): detail" entries
// joined with semicolons.
func formatFlags(flags []kpi.Flag) string {
	if len(flags) == 0 {
		return ""
	}
	parts := make([]string, len(flags))
	for i, f := range flags {
		parts[i] = fmt.Sprintf("%s(%s): %s", f.Kind, f.Severity, f.Detail)
	}
	return strings.Join(parts, "; ")
}
