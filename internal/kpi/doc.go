// Package kpi implements the FAC KPI calculation and validation engine.
//
// The engine maps heterogeneous raw records into normalized rows,
// derives every configured KPI, classifies each value against its band
// configuration, runs cross-KPI consistency checks, and packages an
// ordered, validated report model for the renderer.
//
// # Architecture
//
// One file per pipeline stage:
//
//   - types.go: values, rows, results, flags, and the report model
//   - registry.go: configuration loading and lookup
//   - formula.go: expression trees and the formula parser
//   - normalizer.go: raw record to typed row conversion
//   - calculator.go: per-row KPI derivation with missing propagation
//   - bands.go: band/threshold classification with strict tie-break
//   - validator.go: cross-KPI consistency checks (flags, append-only)
//   - aggregator.go: ordering, deduplication, and summary counts
//   - pipeline.go: orchestration, fan-out across groups, events, metrics
//
// # Usage
//
//	reg, err := kpi.Load(doc, nil)
//	if err != nil {
//	    log.Fatal(err) // *kpi.ConfigError: bad definitions abort the run
//	}
//
//	pipeline := kpi.NewPipeline(reg,
//	    kpi.WithLogger(logger),
//	    kpi.WithConcurrency(cfg.Engine.Concurrency),
//	)
//	report, diags, err := pipeline.Run(ctx, records)
//
// # Error handling
//
// Structural errors (*ConfigError, *BandConfigError) abort the whole run
// and nothing partial is reported. A record whose group/period key cannot
// be determined is skipped with *MalformedRecordError and the run
// continues. Formula failures and missing inputs degrade to the missing
// value marker plus a flag on the result, so one bad input never blocks
// the rest of the report.
package kpi
