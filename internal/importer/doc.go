// Package importer reads raw NMS measurement exports (CSV and xlsx)
// into field-name keyed records. Column mapping is header-driven: the
// first row names the fields, and the engine's configured schema decides
// which of them matter and how they are typed. The importer itself does
// no coercion; every cell stays a string until normalization.
package importer
