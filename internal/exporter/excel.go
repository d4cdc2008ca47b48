package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/daiyabarus/FAC/internal/kpi"
)

const summarySheet = "Summary"

// ExcelWriter exports the aggregated report as an xlsx workbook: one
// worksheet per group/period plus a summary sheet. Plain cells only.
type ExcelWriter struct {
	reg    *kpi.Registry
	logger *slog.Logger
}

// NewExcelWriter creates an Excel writer over the given registry.
func NewExcelWriter(reg *kpi.Registry, logger *slog.Logger) *ExcelWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelWriter{reg: reg, logger: logger}
}

// Write renders the report workbook to path.
func (w *ExcelWriter) Write(report *kpi.Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := w.writeSummary(f, report); err != nil {
		return err
	}
	for _, group := range report.Groups {
		if err := w.writeGroup(f, group); err != nil {
			return err
		}
	}

	// Drop excelize's default sheet and land on the summary.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}
	index, err := f.GetSheetIndex(summarySheet)
	if err != nil {
		return fmt.Errorf("failed to locate summary sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	w.logger.Info("wrote xlsx report",
		slog.String("path", path),
		slog.Int("groups", len(report.Groups)),
	)
	return nil
}

func (w *ExcelWriter) writeSummary(f *excelize.File, report *kpi.Report) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Records", report.Summary.Records},
		{"Skipped", report.Summary.Skipped},
		{"Groups", len(report.Summary.Groups)},
		{},
		{"Tier", "Count"},
	}
	for _, tier := range sortedKeys(report.Summary.TierCounts) {
		rows = append(rows, []interface{}{tier, report.Summary.TierCounts[tier]})
	}
	rows = append(rows, []interface{}{}, []interface{}{"Severity", "Count"})
	for _, sev := range []kpi.Severity{kpi.SeverityInfo, kpi.SeverityWarning, kpi.SeverityError} {
		if n := report.Summary.SeverityCounts[sev]; n > 0 {
			rows = append(rows, []interface{}{string(sev), n})
		}
	}

	return writeRows(f, summarySheet, rows)
}

func (w *ExcelWriter) writeGroup(f *excelize.File, group kpi.GroupReport) error {
	sheet := sheetName(group.Key)
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	rows := [][]interface{}{
		{"KPI", "Name", "Unit", "Value", "Baseline", "Tier", "Distance", "Flags"},
	}
	for _, r := range group.Results {
		def, err := w.reg.Get(r.KPI)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		rows = append(rows, []interface{}{
			def.ID,
			def.Name,
			def.Unit,
			formatValue(def, r.Value),
			formatBaseline(def),
			r.Tier,
			formatDistance(r, def),
			formatFlags(r.Flags),
		})
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	return nil
}

// sheetName builds a worksheet name from the group key, honoring the
// 31-character xlsx limit.
func sheetName(key kpi.GroupKey) string {
	name := key.Group + " " + key.Period
	// Characters xlsx forbids in sheet names.
	replacer := strings.NewReplacer("/", "-", "\\", "-", "?", "", "*", "", "[", "(", "]", ")", ":", "-")
	name = replacer.Replace(name)
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
