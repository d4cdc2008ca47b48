package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daiyabarus/FAC/internal/kpi"
)

const kpiYAML = `
fields:
  - name: revenue
    type: number
  - name: cost
    type: number
group_field: region
period_field: period
kpis:
  - id: margin
    name: Margin
    unit: "%"
    formula: (revenue - cost) / revenue
    direction: ascending
    baseline: 0.3
    bands:
      - threshold: 0
        tier: fail
      - threshold: 0.3
        tier: warn
      - threshold: 1
        tier: pass
    precision: 2
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadKPIDocument(t *testing.T) {
	path := writeTemp(t, "kpis.yaml", kpiYAML)

	doc, err := LoadKPIDocument(path)
	require.NoError(t, err)

	assert.Equal(t, "region", doc.GroupField)
	assert.Equal(t, "period", doc.PeriodField)
	require.Len(t, doc.KPIs, 1)
	assert.Equal(t, "margin", doc.KPIs[0].ID)
	assert.Equal(t, "(revenue - cost) / revenue", doc.KPIs[0].Formula)
	require.NotNil(t, doc.KPIs[0].Baseline)
	assert.Equal(t, 0.3, *doc.KPIs[0].Baseline)
	require.Len(t, doc.KPIs[0].Bands, 3)

	// The document round-trips into a registry.
	_, err = kpi.Load(doc, nil)
	require.NoError(t, err)
}

func TestLoadKPIDocumentMissingFile(t *testing.T) {
	_, err := LoadKPIDocument(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadKPIDocumentInvalidYAML(t *testing.T) {
	path := writeTemp(t, "kpis.yaml", "kpis: [broken")
	_, err := LoadKPIDocument(path)
	assert.Error(t, err)
}

func TestLoadBandOverrides(t *testing.T) {
	path := writeTemp(t, "bands.yaml", `
bands:
  margin:
    - threshold: 0.1
      tier: fail
    - threshold: 0.6
      tier: pass
`)

	overrides, err := LoadBandOverrides(path)
	require.NoError(t, err)
	require.Len(t, overrides["margin"], 2)
	assert.Equal(t, kpi.BandSpec{Threshold: 0.1, Tier: "fail"}, overrides["margin"][0])
}

func TestLoadBandOverridesEmptyPath(t *testing.T) {
	overrides, err := LoadBandOverrides("")
	require.NoError(t, err)
	assert.Nil(t, overrides)
}
