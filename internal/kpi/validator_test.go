package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validatorFixture(t *testing.T) *Validator {
	t.Helper()
	reg, err := Load(testDocument(), nil)
	require.NoError(t, err)
	return NewValidator(reg, nil)
}

func result(kpi string, v Value) Result {
	return Result{KPI: kpi, Key: GroupKey{Group: "A", Period: "Sep-25"}, Value: v}
}

func TestValidateInconsistentDerivation(t *testing.T) {
	v := validatorFixture(t)

	// grand_total claims 100 while its components sum to 90; tolerance
	// is 5, so the drift must be flagged.
	results := v.Validate([]Result{
		result("grand_total", Number(100)),
		result("lte_total", Number(60)),
		result("gsm_total", Number(30)),
	}, nil)

	total := results[0]
	require.True(t, total.HasFlag(FlagInconsistentDerivation))
	for _, f := range total.Flags {
		if f.Kind != FlagInconsistentDerivation {
			continue
		}
		assert.Equal(t, SeverityWarning, f.Severity)
		assert.ElementsMatch(t, []string{"lte_total", "gsm_total"}, f.KPIRefs)
	}
	// The value itself is untouched: validation appends flags only.
	assert.Equal(t, Number(100), total.Value)
}

func TestValidateDerivationWithinTolerance(t *testing.T) {
	v := validatorFixture(t)

	results := v.Validate([]Result{
		result("grand_total", Number(93)),
		result("lte_total", Number(60)),
		result("gsm_total", Number(30)),
	}, nil)

	assert.False(t, results[0].HasFlag(FlagInconsistentDerivation))
}

func TestValidateDerivationSkippedWhenComponentMissing(t *testing.T) {
	v := validatorFixture(t)

	results := v.Validate([]Result{
		result("grand_total", Number(100)),
		result("lte_total", Number(60)),
		result("gsm_total", Missing),
	}, nil)

	assert.False(t, results[0].HasFlag(FlagInconsistentDerivation))
}

func TestValidateUnexpectedGap(t *testing.T) {
	v := validatorFixture(t)

	prior := []Result{result("margin", Number(0.25))}
	results := v.Validate([]Result{result("margin", Missing)}, prior)

	require.True(t, results[0].HasFlag(FlagUnexpectedGap))
	for _, f := range results[0].Flags {
		if f.Kind == FlagUnexpectedGap {
			// Informational, never fatal.
			assert.Equal(t, SeverityInfo, f.Severity)
		}
	}
}

func TestValidateNoGapWithoutPriorPresence(t *testing.T) {
	v := validatorFixture(t)

	t.Run("no prior period", func(t *testing.T) {
		results := v.Validate([]Result{result("margin", Missing)}, nil)
		assert.False(t, results[0].HasFlag(FlagUnexpectedGap))
	})

	t.Run("missing in prior period too", func(t *testing.T) {
		prior := []Result{result("margin", Missing)}
		results := v.Validate([]Result{result("margin", Missing)}, prior)
		assert.False(t, results[0].HasFlag(FlagUnexpectedGap))
	})
}

func TestValidateOutOfRange(t *testing.T) {
	v := validatorFixture(t)

	tests := []struct {
		name  string
		value float64
		want  bool
	}{
		{"within range", 0.5, false},
		{"below sanity minimum", -1.5, true},
		{"above sanity maximum", 1.5, true},
		{"exactly at bound", 1.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := v.Validate([]Result{result("margin", Number(tt.value))}, nil)
			assert.Equal(t, tt.want, results[0].HasFlag(FlagOutOfRange))
			if tt.want {
				for _, f := range results[0].Flags {
					if f.Kind == FlagOutOfRange {
						assert.Equal(t, SeverityError, f.Severity)
					}
				}
			}
			// Out-of-range values are reported, never clamped.
			assert.Equal(t, Number(tt.value), results[0].Value)
		})
	}
}
