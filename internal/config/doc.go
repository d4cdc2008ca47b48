// Package config provides centralized configuration management for the
// FAC reporting system: application settings and the KPI definition
// documents handed to the engine's registry.
//
// # Configuration Sources
//
// Application configuration is loaded from the following sources in
// order of precedence:
//
//	1. Environment variables (highest priority)
//	2. config.yaml / configs/config.yaml
//	3. Default values (lowest priority)
//
// All environment variables follow the pattern FAC_* for namespacing:
//
//	FAC_SERVER_PORT=8080
//	FAC_ENGINE_KPI_FILE=configs/kpis.yaml
//	FAC_PATHS_DATA_DIR=data
//	FAC_LOGGING_LEVEL=info
//
// The loaded struct is validated with go-playground/validator; an
// invalid configuration aborts startup before any run begins.
//
// # KPI Definitions
//
// KPI definitions live in their own YAML document (fields, group/period
// key, definitions with formulas and bands). LoadKPIDocument parses the
// file shape only; kpi.Load owns structural validation so the engine
// rejects a bad document the same way regardless of where it came from.
// LoadBandOverrides reads an optional second file that replaces band
// boundaries per KPI id without touching the main document.
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	doc, err := config.LoadKPIDocument(cfg.Engine.KPIFile)
package config
