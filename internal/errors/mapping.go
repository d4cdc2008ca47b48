package errors

import (
	"errors"
	"net/http"

	"github.com/daiyabarus/FAC/internal/kpi"
)

// FromEngine maps an engine error to its API representation. Config
// errors are the caller's fault (unprocessable configuration); unknown
// KPI lookups are not-found; everything else is an internal failure.
func FromEngine(err error) *APIError {
	if err == nil {
		return nil
	}

	var cfgErr *kpi.ConfigError
	if errors.As(err, &cfgErr) {
		return KPIConfigError(cfgErr)
	}
	var bandErr *kpi.BandConfigError
	if errors.As(err, &bandErr) {
		return KPIConfigError(bandErr)
	}
	var nfErr *kpi.NotFoundError
	if errors.As(err, &nfErr) {
		return NewWithDetails(http.StatusNotFound, "NOT_FOUND", nfErr.Error(), nfErr.KPI)
	}
	return RunFailedError(err)
}
