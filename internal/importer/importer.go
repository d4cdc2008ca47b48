package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/daiyabarus/FAC/internal/kpi"
)

// utf8BOM is stripped from the first CSV header cell when present.
// Exports from Windows NMS tools routinely carry it.
const utf8BOM = "\uFEFF"

// Importer reads raw measurement exports into the field-name keyed
// records the engine normalizes. Column mapping is header-driven; the
// engine's schema decides which columns matter and how to type them.
type Importer struct {
	logger *slog.Logger
}

// New creates an importer.
func New(logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{logger: logger}
}

// ReadDir loads every .csv and .xlsx file under dir, in file-name order,
// and concatenates their records. Unknown extensions are ignored.
func (im *Importer) ReadDir(dir string) ([]kpi.RawRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".csv", ".xlsx":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, fmt.Errorf("no .csv or .xlsx files in %s", dir)
	}

	var records []kpi.RawRecord
	for _, name := range names {
		path := filepath.Join(dir, name)
		fileRecords, err := im.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to import %s: %w", name, err)
		}
		im.logger.Info("imported data file",
			slog.String("file", name),
			slog.Int("records", len(fileRecords)),
		)
		records = append(records, fileRecords...)
	}
	return records, nil
}

// ReadFile loads one export file, dispatching on extension.
func (im *Importer) ReadFile(path string) ([]kpi.RawRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return im.readCSV(path)
	case ".xlsx":
		return im.readXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported file type %s", filepath.Ext(path))
	}
}

func (im *Importer) readCSV(path string) ([]kpi.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	// Exports sometimes have ragged trailing columns.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], utf8BOM)
	columns := headerColumns(header)
	if len(columns) == 0 {
		return nil, fmt.Errorf("header row has no named columns")
	}

	var records []kpi.RawRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		records = append(records, rowRecord(columns, row))
	}
	return records, nil
}

func (im *Importer) readXLSX(path string) ([]kpi.RawRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	// First sheet with a usable header wins; exports carry the data in
	// their sole or first sheet.
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) < 2 {
			continue
		}
		columns := headerColumns(rows[0])
		if len(columns) == 0 {
			continue
		}

		im.logger.Debug("reading worksheet",
			slog.String("sheet", sheet),
			slog.Int("rows", len(rows)-1),
		)

		records := make([]kpi.RawRecord, 0, len(rows)-1)
		for _, row := range rows[1:] {
			if emptyRow(row) {
				continue
			}
			records = append(records, rowRecord(columns, row))
		}
		return records, nil
	}
	return nil, fmt.Errorf("no sheet with a header row found")
}

// headerColumns maps column index to trimmed header name, skipping
// unnamed columns.
func headerColumns(header []string) map[int]string {
	columns := make(map[int]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name != "" {
			columns[i] = name
		}
	}
	return columns
}

func rowRecord(columns map[int]string, row []string) kpi.RawRecord {
	record := make(kpi.RawRecord, len(columns))
	for i, name := range columns {
		if i < len(row) {
			record[name] = row[i]
		}
	}
	return record
}

func emptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
