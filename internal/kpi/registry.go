package kpi

import (
	"fmt"
	"strings"
)

// FieldSpec declares one input field and its expected type.
type FieldSpec struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"` // number, string, date
}

// BandSpec is the configuration form of a band boundary.
type BandSpec struct {
	Threshold float64 `yaml:"threshold" json:"threshold"`
	Tier      string  `yaml:"tier" json:"tier"`
}

// DefinitionSpec is the configuration form of a KPI definition.
type DefinitionSpec struct {
	ID         string     `yaml:"id" json:"id"`
	Name       string     `yaml:"name" json:"name"`
	Unit       string     `yaml:"unit" json:"unit"`
	Formula    string     `yaml:"formula" json:"formula"`
	Baseline   *float64   `yaml:"baseline" json:"baseline,omitempty"`
	Direction  string     `yaml:"direction" json:"direction"`
	Bands      []BandSpec `yaml:"bands" json:"bands"`
	Tolerance  float64    `yaml:"tolerance" json:"tolerance"`
	Components []string   `yaml:"components" json:"components,omitempty"`
	SanityMin  *float64   `yaml:"sanity_min" json:"sanity_min,omitempty"`
	SanityMax  *float64   `yaml:"sanity_max" json:"sanity_max,omitempty"`
	Precision  int        `yaml:"precision" json:"precision"`
}

// Document is the parsed KPI configuration handed to Load. The config
// package reads it from YAML; the engine never touches files itself.
type Document struct {
	Fields      []FieldSpec      `yaml:"fields" json:"fields"`
	GroupField  string           `yaml:"group_field" json:"group_field"`
	PeriodField string           `yaml:"period_field" json:"period_field"`
	KPIs        []DefinitionSpec `yaml:"kpis" json:"kpis"`
}

// Schema carries the normalizer hints derived from a Document: expected
// type per field plus the fields that form the group/period key.
type Schema struct {
	Types       map[string]FieldKind
	GroupField  string
	PeriodField string
}

// Registry holds the loaded KPI definitions. It is immutable after Load
// and safe for concurrent readers; an instance is passed explicitly into
// every component that needs it.
type Registry struct {
	defs   []Definition
	byID   map[string]*Definition
	schema Schema
}

// Load builds a Registry from a parsed configuration document. The
// optional bandOverrides map replaces a KPI's inline bands with an
// externally injected band mapping of the same shape. Load fails with
// *ConfigError on duplicate IDs, unparseable formulas, references to
// undeclared fields, unknown components, or non-monotonic bands.
func Load(doc Document, bandOverrides map[string][]BandSpec) (*Registry, error) {
	schema, err := buildSchema(doc)
	if err != nil {
		return nil, err
	}

	reg := &Registry{
		byID:   make(map[string]*Definition, len(doc.KPIs)),
		schema: schema,
	}

	for _, spec := range doc.KPIs {
		if spec.ID == "" {
			return nil, &ConfigError{Reason: "definition without id"}
		}
		if _, dup := reg.byID[spec.ID]; dup {
			return nil, &ConfigError{KPI: spec.ID, Reason: "duplicate id"}
		}

		def, err := buildDefinition(spec, schema, bandOverrides[spec.ID])
		if err != nil {
			return nil, err
		}

		reg.defs = append(reg.defs, def)
		reg.byID[def.ID] = &reg.defs[len(reg.defs)-1]
	}

	// Components can only be resolved once every definition is registered.
	for _, def := range reg.defs {
		for _, comp := range def.Components {
			if _, ok := reg.byID[comp]; !ok {
				return nil, &ConfigError{KPI: def.ID, Reason: fmt.Sprintf("unknown component %q", comp)}
			}
		}
	}

	return reg, nil
}

// Get returns the definition for the given KPI ID.
func (r *Registry) Get(id string) (Definition, error) {
	def, ok := r.byID[id]
	if !ok {
		return Definition{}, &NotFoundError{KPI: id}
	}
	return *def, nil
}

// All returns every definition in configuration order. The slice is a
// copy; callers cannot mutate the registry through it.
func (r *Registry) All() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Schema returns the normalizer hints derived from the configuration.
func (r *Registry) Schema() Schema {
	return r.schema
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int { return len(r.defs) }

func buildSchema(doc Document) (Schema, error) {
	schema := Schema{
		Types:       make(map[string]FieldKind, len(doc.Fields)),
		GroupField:  doc.GroupField,
		PeriodField: doc.PeriodField,
	}
	if schema.GroupField == "" || schema.PeriodField == "" {
		return Schema{}, &ConfigError{Reason: "group_field and period_field are required"}
	}
	for _, f := range doc.Fields {
		if f.Name == "" {
			return Schema{}, &ConfigError{Reason: "field without name"}
		}
		if _, dup := schema.Types[f.Name]; dup {
			return Schema{}, &ConfigError{Reason: fmt.Sprintf("duplicate field %q", f.Name)}
		}
		kind, err := parseFieldType(f.Type)
		if err != nil {
			return Schema{}, &ConfigError{Reason: fmt.Sprintf("field %q: %v", f.Name, err)}
		}
		schema.Types[f.Name] = kind
	}
	// The key fields are always addressable as text even when undeclared.
	if _, ok := schema.Types[schema.GroupField]; !ok {
		schema.Types[schema.GroupField] = FieldText
	}
	if _, ok := schema.Types[schema.PeriodField]; !ok {
		schema.Types[schema.PeriodField] = FieldText
	}
	return schema, nil
}

func buildDefinition(spec DefinitionSpec, schema Schema, override []BandSpec) (Definition, error) {
	expr, err := ParseFormula(spec.Formula)
	if err != nil {
		return Definition{}, &ConfigError{KPI: spec.ID, Reason: err.Error()}
	}

	refs := make(map[string]struct{})
	expr.Fields(refs)
	for name := range refs {
		if _, ok := schema.Types[name]; !ok {
			return Definition{}, &ConfigError{KPI: spec.ID, Reason: fmt.Sprintf("formula references undeclared field %q", name)}
		}
	}

	dir, err := parseDirection(spec.Direction)
	if err != nil {
		return Definition{}, &ConfigError{KPI: spec.ID, Reason: err.Error()}
	}

	bandSpecs := spec.Bands
	if len(override) > 0 {
		bandSpecs = override
	}
	bands, err := buildBands(bandSpecs, dir)
	if err != nil {
		return Definition{}, &ConfigError{KPI: spec.ID, Reason: err.Error()}
	}

	if spec.Tolerance < 0 {
		return Definition{}, &ConfigError{KPI: spec.ID, Reason: "negative tolerance"}
	}
	if spec.SanityMin != nil && spec.SanityMax != nil && *spec.SanityMin > *spec.SanityMax {
		return Definition{}, &ConfigError{KPI: spec.ID, Reason: "sanity_min above sanity_max"}
	}
	if spec.Precision < 0 {
		return Definition{}, &ConfigError{KPI: spec.ID, Reason: "negative precision"}
	}

	return Definition{
		ID:         spec.ID,
		Name:       spec.Name,
		Unit:       spec.Unit,
		Formula:    expr,
		Source:     spec.Formula,
		Baseline:   spec.Baseline,
		Bands:      bands,
		Direction:  dir,
		Tolerance:  spec.Tolerance,
		Components: append([]string(nil), spec.Components...),
		SanityMin:  spec.SanityMin,
		SanityMax:  spec.SanityMax,
		Precision:  spec.Precision,
	}, nil
}

func buildBands(specs []BandSpec, dir Direction) ([]Band, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no bands configured")
	}
	bands := make([]Band, len(specs))
	for i, b := range specs {
		if b.Tier == "" {
			return nil, fmt.Errorf("band %d without tier", i)
		}
		bands[i] = Band{Threshold: b.Threshold, Tier: b.Tier}
	}
	// Thresholds must be strictly monotonic in the configured direction.
	// A violation is rejected here, never silently reordered.
	for i := 1; i < len(bands); i++ {
		prev, cur := bands[i-1].Threshold, bands[i].Threshold
		if dir == Ascending && cur <= prev {
			return nil, fmt.Errorf("bands not strictly ascending at index %d (%g after %g)", i, cur, prev)
		}
		if dir == Descending && cur >= prev {
			return nil, fmt.Errorf("bands not strictly descending at index %d (%g after %g)", i, cur, prev)
		}
	}
	return bands, nil
}

func parseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ascending", "asc":
		return Ascending, nil
	case "descending", "desc":
		return Descending, nil
	default:
		return Ascending, fmt.Errorf("unknown direction %q", s)
	}
}

func parseFieldType(s string) (FieldKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "number", "float", "numeric":
		return FieldNumber, nil
	case "string", "text":
		return FieldText, nil
	case "date":
		return FieldDate, nil
	default:
		return FieldMissing, fmt.Errorf("unknown field type %q", s)
	}
}
