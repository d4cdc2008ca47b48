package kpi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ascendingDef() Definition {
	return Definition{
		ID:        "margin",
		Direction: Ascending,
		Bands: []Band{
			{Threshold: 0, Tier: "fail"},
			{Threshold: 0.3, Tier: "warn"},
			{Threshold: 1, Tier: "pass"},
		},
	}
}

func descendingDef() Definition {
	return Definition{
		ID:        "drop_rate",
		Direction: Descending,
		Bands: []Band{
			{Threshold: 5, Tier: "fail"},
			{Threshold: 2, Tier: "warn"},
			{Threshold: 0.5, Tier: "pass"},
		},
	}
}

func TestClassifyAscending(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		wantTier string
	}{
		{"below first boundary", -0.5, "fail"},
		{"between boundaries", 0.2, "warn"},
		{"near top", 0.9, "pass"},
		{"beyond final boundary keeps final tier", 1.5, "pass"},
		// Ties resolve to the stricter tier: a value exactly on a
		// boundary never rounds in the reporter's favor.
		{"tie at first boundary", 0, "fail"},
		{"tie at middle boundary", 0.3, "warn"},
		{"tie at final boundary", 1, "pass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(ascendingDef(), Number(tt.value))
			require.NoError(t, err)
			require.True(t, got.Valid)
			assert.Equal(t, tt.wantTier, got.Tier)
		})
	}
}

func TestClassifyDescending(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		wantTier string
	}{
		{"above first boundary", 7, "fail"},
		{"between boundaries", 3, "warn"},
		{"low value", 1, "pass"},
		{"below final boundary keeps final tier", 0.1, "pass"},
		{"tie at first boundary", 5, "fail"},
		{"tie at middle boundary", 2, "warn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(descendingDef(), Number(tt.value))
			require.NoError(t, err)
			require.True(t, got.Valid)
			assert.Equal(t, tt.wantTier, got.Tier)
		})
	}
}

func TestClassifyMissingValue(t *testing.T) {
	got, err := Classify(ascendingDef(), Missing)
	require.NoError(t, err)
	assert.False(t, got.Valid)
	assert.Empty(t, got.Tier)
}

func TestClassifyNoBands(t *testing.T) {
	def := Definition{ID: "broken"}
	_, err := Classify(def, Number(1))
	require.Error(t, err)
	var bandErr *BandConfigError
	assert.True(t, errors.As(err, &bandErr))
	assert.Equal(t, "broken", bandErr.KPI)
}

func TestClassifyDistance(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{"just under middle boundary", 0.25, -0.05},
		{"just over middle boundary", 0.35, 0.05},
		{"beyond final boundary", 1.2, 0.2},
		{"below first boundary", -0.1, -0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(ascendingDef(), Number(tt.value))
			require.NoError(t, err)
			require.True(t, got.Valid)
			assert.InDelta(t, tt.want, got.Distance, 1e-12)
		})
	}
}
