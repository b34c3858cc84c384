// Package errors provides domain-specific error types and sentinel errors
// for improved error handling across the application.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrCacheExpired indicates cached data has exceeded TTL.
	ErrCacheExpired = errors.New("cache expired")

	// ErrRateLimitExceeded indicates rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrEmptyOrErrorPage indicates the portal answered with a body too
	// short to be a document, or with its plain-text error page.
	ErrEmptyOrErrorPage = errors.New("empty or error page")
)

// FormatError represents malformed input: a bad period label, a
// non-numeric cedula, a header row with the wrong shape. Never retried.
type FormatError struct {
	Field  string
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format error on %s (value=%q): %s", e.Field, e.Value, e.Reason)
}

// NewFormatError creates a new format error.
func NewFormatError(field, value, reason string) *FormatError {
	return &FormatError{
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// TransportError represents a network-level failure: DNS, connect, TLS,
// read timeout. Always retryable.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (url=%s): %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new transport error.
func NewTransportError(url string, err error) *TransportError {
	return &TransportError{URL: url, Err: err}
}

// HTTPError represents a non-2xx portal response. Codes below 500 are
// permanent; 5xx codes are retryable.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error (url=%s, status=%d)", e.URL, e.StatusCode)
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(url string, statusCode int) *HTTPError {
	return &HTTPError{URL: url, StatusCode: statusCode}
}

// ParseError represents a document that yielded no usable content: no
// recognizable tables, or an assembly that produced zero records.
// Recorded as a per-(cedula, period) failure, never retried.
type ParseError struct {
	Cedula string
	Period string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error (cedula=%s, period=%s): %s", e.Cedula, e.Period, e.Reason)
}

// NewParseError creates a new parse error.
func NewParseError(cedula, period, reason string) *ParseError {
	return &ParseError{
		Cedula: cedula,
		Period: period,
		Reason: reason,
	}
}

// DependencyError represents a failure in an external collaborator,
// the spreadsheet transport above all. During preparation it aborts the
// run; during flush it is recorded and the remaining flushes proceed.
type DependencyError struct {
	Op     string
	Target string
	Err    error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency error (op=%s, target=%s): %v", e.Op, e.Target, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// NewDependencyError creates a new dependency error.
func NewDependencyError(op, target string, err error) *DependencyError {
	return &DependencyError{Op: op, Target: target, Err: err}
}

// IsNotFound checks if an error is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable reports whether the fetch layer may retry after err:
// transport failures and 5xx responses only.
func IsRetryable(err error) bool {
	var transport *TransportError
	if errors.As(err, &transport) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	return false
}
