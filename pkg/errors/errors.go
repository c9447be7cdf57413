// Package errors provides the error taxonomy of the check/fix pipeline.
//
// Tool failures (KindToolExecution) are local to one scanner or fixer and are
// logged by the engine. Precondition failures (no scan report, no backup,
// snapshot I/O) are returned to the caller.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// Base Error Types
// =============================================================================

// Error is the base error type for all pipeline errors.
type Error struct {
	// Kind indicates the category of error
	Kind Kind

	// Op is the operation being performed (e.g., "pipeline.Fix")
	Op string

	// Message is a human-readable description
	Message string

	// Err is the underlying error
	Err error
}

// Kind represents the kind/category of error.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindToolExecution
	KindNoScanReport
	KindNoBackup
	KindIO
	KindUnavailable
	KindRateLimit
	KindTimeout
	KindNetwork
	KindServer
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindToolExecution:
		return "tool_execution"
	case KindNoScanReport:
		return "no_scan_report"
	case KindNoBackup:
		return "no_backup"
	case KindIO:
		return "io"
	case KindUnavailable:
		return "unavailable"
	case KindRateLimit:
		return "rate_limit"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// =============================================================================
// API Error
// =============================================================================

// APIError represents an error response from a remote HTTP API (AI fixer endpoint).
type APIError struct {
	// StatusCode is the HTTP status code
	StatusCode int `json:"status_code"`

	// Code is an API-specific error code
	Code string `json:"code"`

	// Message is the error message from the API
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	code := e.Code
	if code == "" {
		code = fmt.Sprintf("%d", e.StatusCode)
	}
	return fmt.Sprintf("[%s] %s: %s", code, http.StatusText(e.StatusCode), e.Message)
}

// =============================================================================
// Constructors
// =============================================================================

// E constructs an Error from the given arguments.
// Arguments can be: Kind, string (Op or Message), error.
func E(args ...interface{}) error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Kind:
			e.Kind = a
		case string:
			if e.Op == "" {
				e.Op = a
			} else {
				e.Message = a
			}
		case error:
			e.Err = a
		}
	}
	return e
}

// ToolExecution reports that an external tool could not run or failed.
func ToolExecution(op, tool string, err error) error {
	return &Error{Kind: KindToolExecution, Op: op, Message: tool + " failed", Err: err}
}

// IO reports a filesystem failure.
func IO(op, message string, err error) error {
	return &Error{Kind: KindIO, Op: op, Message: message, Err: err}
}

// InvalidInput reports a bad argument or configuration value.
func InvalidInput(op, message string) error {
	return &Error{Kind: KindInvalidInput, Op: op, Message: message}
}

// Wrap wraps an error with additional context, keeping its Kind.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: GetKind(err), Op: op, Err: err}
}

// =============================================================================
// Error Checkers
// =============================================================================

// GetKind returns the Kind of the error, or KindUnknown.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsAPIError checks if err is an APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsToolExecution checks if the error is a per-tool failure.
func IsToolExecution(err error) bool {
	return GetKind(err) == KindToolExecution
}

// IsRateLimitError checks if the error is a rate limit error.
func IsRateLimitError(err error) bool {
	if GetKind(err) == KindRateLimit {
		return true
	}
	if apiErr, ok := IsAPIError(err); ok {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// IsRetryable checks if the error is retryable.
func IsRetryable(err error) bool {
	switch GetKind(err) {
	case KindRateLimit, KindNetwork, KindTimeout:
		return true
	}
	if apiErr, ok := IsAPIError(err); ok {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		// Retry on 5xx errors (except 501 Not Implemented)
		return apiErr.StatusCode >= 500 && apiErr.StatusCode != 501
	}
	return false
}

// =============================================================================
// Common Errors
// =============================================================================

var (
	// ErrNoScanReport is returned by Fix when Scan has not run.
	ErrNoScanReport = &Error{Kind: KindNoScanReport, Message: "no scan report available, run scan first"}

	// ErrNoBackup is returned by Rollback when no snapshot exists.
	ErrNoBackup = &Error{Kind: KindNoBackup, Message: "no backup available to rollback"}

	// ErrMissingAPIKey is returned when the AI fixer has no API key.
	ErrMissingAPIKey = &Error{Kind: KindInvalidInput, Message: "API key is required"}
)
