package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/daiyabarus/FAC/internal/kpi"
)

// resultHeaders is the column set of the flat CSV export.
var resultHeaders = []string{
	"group", "period", "kpi", "name", "unit",
	"value", "baseline", "tier", "distance", "flags",
}

// CSVWriter exports the aggregated report as one flat CSV: a row per
// (group/period, KPI) in report order.
type CSVWriter struct {
	reg    *kpi.Registry
	logger *slog.Logger
}

// NewCSVWriter creates a CSV writer over the given registry.
func NewCSVWriter(reg *kpi.Registry, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{reg: reg, logger: logger}
}

// Write renders the report to path. The file starts with a UTF-8 BOM so
// Excel opens it correctly.
func (w *CSVWriter) Write(report *kpi.Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	// BOM helps Excel recognize UTF-8.
	if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(resultHeaders); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	rows := 0
	for _, group := range report.Groups {
		for _, r := range group.Results {
			def, err := w.reg.Get(r.KPI)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			record := []string{
				group.Key.Group,
				group.Key.Period,
				def.ID,
				def.Name,
				def.Unit,
				formatValue(def, r.Value),
				formatBaseline(def),
				r.Tier,
				formatDistance(r, def),
				formatFlags(r.Flags),
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
			rows++
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	w.logger.Info("wrote csv report",
		slog.String("path", path),
		slog.Int("rows", rows),
	)
	return nil
}
