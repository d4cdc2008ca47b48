package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/daiyabarus/FAC/internal/app"
	"github.com/daiyabarus/FAC/internal/config"
	"github.com/daiyabarus/FAC/internal/exporter"
	"github.com/daiyabarus/FAC/internal/importer"
	"github.com/daiyabarus/FAC/internal/infrastructure"
	"github.com/daiyabarus/FAC/internal/kpi"
)

func main() {
	dataDir := flag.String("data", "", "directory with .csv/.xlsx measurement exports (defaults to paths.data_dir)")
	outDir := flag.String("out", "", "directory for the generated reports (defaults to paths.output_dir)")
	kpiFile := flag.String("kpis", "", "KPI definition file (defaults to engine.kpi_file)")
	bandsFile := flag.String("bands", "", "optional band override file")
	concurrency := flag.Int("concurrency", 0, "parallel group evaluations (defaults to engine.concurrency)")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall run timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Paths.DataDir = *dataDir
	}
	if *outDir != "" {
		cfg.Paths.OutputDir = *outDir
	}
	if *kpiFile != "" {
		cfg.Engine.KPIFile = *kpiFile
	}
	if *bandsFile != "" {
		cfg.Engine.BandsFile = *bandsFile
	}
	if *concurrency > 0 {
		cfg.Engine.Concurrency = *concurrency
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	if err := cfg.EnsureDirectories(); err != nil {
		logger.Error("failed to create directories", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger, *timeout); err != nil {
		logger.Error("report run failed", "error", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	reg, err := app.LoadRegistry(cfg.Engine)
	if err != nil {
		return err
	}
	logger.Info("kpi registry loaded",
		slog.String("file", cfg.Engine.KPIFile),
		slog.Int("kpis", reg.Len()),
	)

	records, err := importer.New(logger).ReadDir(cfg.Paths.DataDir)
	if err != nil {
		return err
	}

	pipeline := kpi.NewPipeline(reg,
		kpi.WithLogger(logger),
		kpi.WithConcurrency(cfg.Engine.Concurrency),
	)
	report, diags, err := pipeline.Run(ctx, records)
	if err != nil {
		return err
	}

	base := fmt.Sprintf("fac-report-%s", time.Now().UTC().Format("20060102-150405"))
	excelPath := filepath.Join(cfg.Paths.OutputDir, base+".xlsx")
	csvPath := filepath.Join(cfg.Paths.OutputDir, base+".csv")

	if err := exporter.NewExcelWriter(reg, logger).Write(report, excelPath); err != nil {
		return err
	}
	if err := exporter.NewCSVWriter(reg, logger).Write(report, csvPath); err != nil {
		return err
	}

	printSummary(report, diags, excelPath, csvPath)
	return nil
}

func printSummary(report *kpi.Report, diags []kpi.Diagnostic, excelPath, csvPath string) {
	fmt.Printf("Records processed: %d (skipped %d)\n", report.Summary.Records, report.Summary.Skipped)
	fmt.Printf("Group/period sections: %d\n", len(report.Groups))

	if len(report.Summary.TierCounts) > 0 {
		tiers := make([]string, 0, len(report.Summary.TierCounts))
		for tier := range report.Summary.TierCounts {
			tiers = append(tiers, tier)
		}
		sort.Strings(tiers)
		fmt.Println("Tier counts:")
		for _, tier := range tiers {
			fmt.Printf("  %-10s %d\n", tier, report.Summary.TierCounts[tier])
		}
	}

	if len(report.Summary.SeverityCounts) > 0 {
		fmt.Println("Flags:")
		for _, severity := range []kpi.Severity{kpi.SeverityInfo, kpi.SeverityWarning, kpi.SeverityError} {
			if n := report.Summary.SeverityCounts[severity]; n > 0 {
				fmt.Printf("  %-10s %d\n", severity, n)
			}
		}
	}

	if len(diags) > 0 {
		fmt.Printf("Value diagnostics: %d (see the log for details)\n", len(diags))
	}

	fmt.Printf("Excel report: %s\n", excelPath)
	fmt.Printf("CSV report:   %s\n", csvPath)
}
