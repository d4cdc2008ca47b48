package kpi

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// RawRecord is one loaded record: raw field values keyed by field name.
// The engine does not know or care what file format it came from.
type RawRecord map[string]string

// Diagnostic is one per-record normalization note. Diagnostics are for
// the caller's log surface; downstream stages never read them.
type Diagnostic struct {
	Record int    `json:"record"`
	Field  string `json:"field,omitempty"`
	Detail string `json:"detail"`
}

// Normalizer converts raw records into typed, unit-consistent rows. A
// field that fails coercion becomes the missing marker rather than
// failing the record; only an undeterminable group/period key rejects the
// whole record.
type Normalizer struct {
	schema Schema
	logger *slog.Logger
	diags  []Diagnostic
}

// NewNormalizer creates a normalizer for the given schema hints.
func NewNormalizer(schema Schema, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{schema: schema, logger: logger}
}

// dateLayouts are tried in order when coercing date fields. NMS exports
// in the wild carry all three.
var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", "02/01/2006"}

// Normalize converts one raw record into a NormalizedRow. index is the
// record's position in the source, used in diagnostics. It fails only
// with *MalformedRecordError, when the group/period key cannot be
// determined.
func (n *Normalizer) Normalize(index int, raw RawRecord) (NormalizedRow, error) {
	group := strings.TrimSpace(raw[n.schema.GroupField])
	period := strings.TrimSpace(raw[n.schema.PeriodField])
	if group == "" {
		return NormalizedRow{}, &MalformedRecordError{Index: index, Reason: fmt.Sprintf("missing group field %q", n.schema.GroupField)}
	}
	if period == "" {
		return NormalizedRow{}, &MalformedRecordError{Index: index, Reason: fmt.Sprintf("missing period field %q", n.schema.PeriodField)}
	}

	row := NormalizedRow{
		Key:    GroupKey{Group: group, Period: period},
		Fields: make(map[string]Field, len(n.schema.Types)),
	}

	for name, kind := range n.schema.Types {
		rawValue, present := raw[name]
		if !present || strings.TrimSpace(rawValue) == "" {
			row.Fields[name] = MissingField
			continue
		}
		field, err := coerce(rawValue, kind)
		if err != nil {
			// One bad cell never discards the row.
			row.Fields[name] = MissingField
			n.diags = append(n.diags, Diagnostic{Record: index, Field: name, Detail: err.Error()})
			n.logger.Debug("field coercion failed",
				slog.Int("record", index),
				slog.String("field", name),
				slog.String("raw", rawValue),
			)
			continue
		}
		row.Fields[name] = field
	}

	return row, nil
}

// Diagnostics returns the accumulated per-record notes.
func (n *Normalizer) Diagnostics() []Diagnostic {
	return n.diags
}

func coerce(raw string, kind FieldKind) (Field, error) {
	s := strings.TrimSpace(raw)
	switch kind {
	case FieldNumber:
		// Exports frequently carry thousands separators.
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
		if err != nil {
			return MissingField, fmt.Errorf("not a number: %q", raw)
		}
		return NumberField(f), nil
	case FieldDate:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return DateField(t), nil
			}
		}
		return MissingField, fmt.Errorf("not a date: %q", raw)
	case FieldText:
		return TextField(s), nil
	default:
		return MissingField, fmt.Errorf("unsupported field kind %d", kind)
	}
}
