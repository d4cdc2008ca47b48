package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateOrdering(t *testing.T) {
	reg, err := Load(testDocument(), nil)
	require.NoError(t, err)

	// Deliberately shuffled: groups out of order, periods out of order,
	// KPIs out of configuration order.
	results := []Result{
		{KPI: "drop_rate", Key: GroupKey{Group: "B", Period: "Sep-25"}, Value: Number(1), Tier: "warn"},
		{KPI: "margin", Key: GroupKey{Group: "A", Period: "Oct-25"}, Value: Number(0.4), Tier: "warn"},
		{KPI: "margin", Key: GroupKey{Group: "A", Period: "Sep-25"}, Value: Number(0.2), Tier: "warn"},
		{KPI: "margin", Key: GroupKey{Group: "B", Period: "Sep-25"}, Value: Number(0.5), Tier: "warn"},
	}

	report, err := Aggregate(results, reg)
	require.NoError(t, err)
	require.Len(t, report.Groups, 3)

	keys := make([]GroupKey, 0, len(report.Groups))
	for _, g := range report.Groups {
		keys = append(keys, g.Key)
	}
	assert.Equal(t, []GroupKey{
		{Group: "A", Period: "Sep-25"},
		{Group: "A", Period: "Oct-25"},
		{Group: "B", Period: "Sep-25"},
	}, keys)

	// Within a group, KPIs come back in configuration order.
	b := report.Groups[2]
	require.Len(t, b.Results, 2)
	assert.Equal(t, "margin", b.Results[0].KPI)
	assert.Equal(t, "drop_rate", b.Results[1].KPI)
}

func TestAggregateDuplicateSuppression(t *testing.T) {
	reg, err := Load(testDocument(), nil)
	require.NoError(t, err)

	key := GroupKey{Group: "A", Period: "Sep-25"}
	results := []Result{
		{KPI: "margin", Key: key, Value: Number(0.2), Tier: "warn"},
		{KPI: "margin", Key: key, Value: Number(0.6), Tier: "warn"},
	}

	report, err := Aggregate(results, reg)
	require.NoError(t, err)
	require.Len(t, report.Groups, 1)
	require.Len(t, report.Groups[0].Results, 1)

	// Later record wins and carries the audit flag.
	survivor := report.Groups[0].Results[0]
	assert.Equal(t, Number(0.6), survivor.Value)
	assert.True(t, survivor.HasFlag(FlagDuplicateSuppressed))
}

func TestAggregateIdempotent(t *testing.T) {
	reg, err := Load(testDocument(), nil)
	require.NoError(t, err)

	key := GroupKey{Group: "A", Period: "Sep-25"}
	results := []Result{
		{KPI: "margin", Key: key, Value: Number(0.2), Tier: "warn"},
		{KPI: "margin", Key: key, Value: Number(0.6), Tier: "warn"},
	}

	first, err := Aggregate(results, reg)
	require.NoError(t, err)

	var flattened []Result
	for _, g := range first.Groups {
		flattened = append(flattened, g.Results...)
	}
	second, err := Aggregate(flattened, reg)
	require.NoError(t, err)

	assert.Equal(t, first.Groups, second.Groups)
	assert.Equal(t, first.Summary.TierCounts, second.Summary.TierCounts)
	assert.Equal(t, first.Summary.SeverityCounts, second.Summary.SeverityCounts)
}

func TestAggregateUnknownKPI(t *testing.T) {
	reg, err := Load(testDocument(), nil)
	require.NoError(t, err)

	_, err = Aggregate([]Result{
		{KPI: "availability", Key: GroupKey{Group: "A", Period: "Sep-25"}},
	}, reg)
	require.Error(t, err)
	assert.ErrorContains(t, err, "availability")
}

func TestAggregateSummary(t *testing.T) {
	reg, err := Load(testDocument(), nil)
	require.NoError(t, err)

	results := []Result{
		{
			KPI: "margin", Key: GroupKey{Group: "A", Period: "Sep-25"},
			Value: Number(0.2), Tier: "warn",
			Flags: []Flag{{Kind: FlagOutOfRange, Severity: SeverityError}},
		},
		{
			KPI: "margin", Key: GroupKey{Group: "B", Period: "Sep-25"},
			Value: Missing,
			Flags: []Flag{{Kind: FlagMissingData, Severity: SeverityWarning}},
		},
		{
			KPI: "drop_rate", Key: GroupKey{Group: "B", Period: "Sep-25"},
			Value: Number(0.3), Tier: "pass",
		},
	}

	report, err := Aggregate(results, reg)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"warn": 1, "pass": 1}, report.Summary.TierCounts)
	assert.Equal(t, 1, report.Summary.SeverityCounts[SeverityError])
	assert.Equal(t, 1, report.Summary.SeverityCounts[SeverityWarning])
	assert.Equal(t, []GroupKey{
		{Group: "A", Period: "Sep-25"},
		{Group: "B", Period: "Sep-25"},
	}, report.Summary.Groups)
}
