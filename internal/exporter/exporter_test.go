package exporter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/daiyabarus/FAC/internal/kpi"
)

func float(f float64) *float64 { return &f }

func testRegistry(t *testing.T) *kpi.Registry {
	t.Helper()
	reg, err := kpi.Load(kpi.Document{
		Fields: []kpi.FieldSpec{
			{Name: "revenue", Type: "number"},
			{Name: "cost", Type: "number"},
		},
		GroupField:  "region",
		PeriodField: "period",
		KPIs: []kpi.DefinitionSpec{
			{
				ID:        "margin",
				Name:      "Margin",
				Unit:      "%",
				Formula:   "(revenue - cost) / revenue",
				Baseline:  float(0.3),
				Direction: "ascending",
				Bands: []kpi.BandSpec{
					{Threshold: 0, Tier: "fail"},
					{Threshold: 0.3, Tier: "warn"},
					{Threshold: 1, Tier: "pass"},
				},
				Precision: 2,
			},
		},
	}, nil)
	require.NoError(t, err)
	return reg
}

func testReport() *kpi.Report {
	return &kpi.Report{
		Groups: []kpi.GroupReport{
			{
				Key: kpi.GroupKey{Group: "A", Period: "Sep-25"},
				Results: []kpi.Result{
					{
						KPI:           "margin",
						Key:           kpi.GroupKey{Group: "A", Period: "Sep-25"},
						Value:         kpi.Number(2.0 / 3.0),
						Tier:          "warn",
						Distance:      0.3667,
						DistanceValid: true,
					},
				},
			},
			{
				Key: kpi.GroupKey{Group: "B", Period: "Sep-25"},
				Results: []kpi.Result{
					{
						KPI:   "margin",
						Key:   kpi.GroupKey{Group: "B", Period: "Sep-25"},
						Value: kpi.Missing,
						Flags: []kpi.Flag{{
							Kind:     kpi.FlagMissingData,
							Severity: kpi.SeverityWarning,
							Detail:   "missing input field(s): cost",
						}},
					},
				},
			},
		},
		Summary: kpi.Summary{
			TierCounts:     map[string]int{"warn": 1},
			SeverityCounts: map[kpi.Severity]int{kpi.SeverityWarning: 1},
			Groups: []kpi.GroupKey{
				{Group: "A", Period: "Sep-25"},
				{Group: "B", Period: "Sep-25"},
			},
			Records: 2,
		},
	}
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	w := NewCSVWriter(testRegistry(t), nil)
	require.NoError(t, w.Write(testReport(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// BOM first, then the header row.
	require.True(t, strings.HasPrefix(string(data), "\xef\xbb\xbf"))

	reader := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\xef\xbb\xbf")))
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, resultHeaders, rows[0])
	// Values rounded to the configured 2 digits at this boundary only.
	assert.Equal(t, []string{"A", "Sep-25", "margin", "Margin", "%", "0.67", "0.30", "warn", "+0.37", ""}, rows[1])
	assert.Equal(t, "missing", rows[2][5])
	assert.Empty(t, rows[2][7])
	assert.Contains(t, rows[2][9], "missing_data(warning)")
}

func TestExcelWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	w := NewExcelWriter(testRegistry(t), nil)
	require.NoError(t, w.Write(testReport(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "Summary")
	assert.Contains(t, sheets, "A Sep-25")
	assert.Contains(t, sheets, "B Sep-25")
	assert.NotContains(t, sheets, "Sheet1")

	rows, err := f.GetRows("A Sep-25")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "margin", rows[1][0])
	assert.Equal(t, "0.67", rows[1][3])
	assert.Equal(t, "warn", rows[1][5])

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	assert.Equal(t, []string{"Records", "2"}, summary[0][:2])
}

func TestSheetName(t *testing.T) {
	tests := []struct {
		name string
		key  kpi.GroupKey
		want string
	}{
		{"plain", kpi.GroupKey{Group: "North", Period: "Sep-25"}, "North Sep-25"},
		{"forbidden characters", kpi.GroupKey{Group: "A/B", Period: "Q1?"}, "A-B Q1"},
		{
			"truncated to 31",
			kpi.GroupKey{Group: strings.Repeat("x", 40), Period: "Sep-25"},
			strings.Repeat("x", 31),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sheetName(tt.key))
		})
	}
}
