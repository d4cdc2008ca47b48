package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/daiyabarus/FAC/internal/kpi"
)

// LoadKPIDocument reads a KPI definition file into the document form the
// engine's registry loads. Structural validation (formulas, bands,
// components) happens in kpi.Load, not here.
func LoadKPIDocument(path string) (kpi.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return kpi.Document{}, fmt.Errorf("failed to read kpi file %s: %w", path, err)
	}

	var doc kpi.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return kpi.Document{}, fmt.Errorf("failed to parse kpi file %s: %w", path, err)
	}
	return doc, nil
}

// bandOverrideFile is the on-disk shape of an external band mapping:
// KPI id to replacement band list.
type bandOverrideFile struct {
	Bands map[string][]kpi.BandSpec `yaml:"bands"`
}

// LoadBandOverrides reads an optional external band mapping. An empty
// path means no overrides.
func LoadBandOverrides(path string) (map[string][]kpi.BandSpec, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bands file %s: %w", path, err)
	}

	var file bandOverrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse bands file %s: %w", path, err)
	}
	return file.Bands, nil
}
