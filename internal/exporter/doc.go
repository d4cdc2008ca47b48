// Package exporter renders the aggregated report model to files: an
// xlsx workbook with a summary sheet and one worksheet per group/period,
// and a flat CSV with a row per (group/period, KPI).
//
// This is the display boundary: values are rounded to each KPI's
// configured precision here and nowhere else. The engine's report model
// is read-only input; exporting never mutates it.
package exporter
