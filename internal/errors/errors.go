// Package errors provides the structured API error responses rendered by
// the HTTP surface, and the mapping from engine error types to them.
package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined error types for common scenarios
var (
	// 400 Bad Request
	ErrInvalidRequest = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")

	// 404 Not Found
	ErrNotFound    = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrRunNotFound = New(http.StatusNotFound, "RUN_NOT_FOUND", "Run not found")

	// 409 Conflict
	ErrRunInProgress = New(http.StatusConflict, "RUN_IN_PROGRESS", "A run is already in progress")

	// 422 Unprocessable Entity
	ErrKPIConfig = New(http.StatusUnprocessableEntity, "KPI_CONFIG_INVALID", "KPI configuration is invalid")

	// 429 Too Many Requests
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")

	// 500 Internal Server Error
	ErrInternalServer   = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	ErrRunFailed        = New(http.StatusInternalServerError, "RUN_FAILED", "Run execution failed")
	ErrFileSystem       = New(http.StatusInternalServerError, "FILESYSTEM_ERROR", "File system error")
	ErrWebSocketUpgrade = New(http.StatusInternalServerError, "WEBSOCKET_UPGRADE_FAILED", "WebSocket upgrade failed")
)

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// RunNotFoundError creates a not found error naming the run id
func RunNotFoundError(id string) *APIError {
	return NewWithDetails(http.StatusNotFound, "RUN_NOT_FOUND", fmt.Sprintf("run %s not found", id), id)
}

// KPIConfigError creates a configuration error with the load failure
func KPIConfigError(err error) *APIError {
	return NewWithDetails(http.StatusUnprocessableEntity, "KPI_CONFIG_INVALID", "KPI configuration is invalid", err.Error())
}

// RunFailedError creates a run execution error with details
func RunFailedError(err error) *APIError {
	return NewWithDetails(http.StatusInternalServerError, "RUN_FAILED", "Run execution failed", err.Error())
}
