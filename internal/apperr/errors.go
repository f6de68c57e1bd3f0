// Package apperr defines the error kinds shared by the HTTP-facing packages
// and their mapping to status codes.
package apperr

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Missing builds the ValidationError for an absent required field.
func Missing(field string) ValidationError {
	return ValidationError{Field: field, Message: fmt.Sprintf("missing '%s'", field)}
}

// NotFoundError reports that a referenced entity is absent from its store.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// IntegrityError describes a broken hash link found during verification.
type IntegrityError struct {
	Key    string
	Count  int
	Reason string
}

func (e IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed at %s after %d entries: %s", e.Key, e.Count, e.Reason)
}

// DependencyError wraps a failure of an external system the request relied on.
type DependencyError struct {
	Dependency string
	Err        error
}

func (e DependencyError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Dependency, e.Err)
}

func (e DependencyError) Unwrap() error {
	return e.Err
}

// ConflictError reports a lost compare-and-swap on a pointer cell.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string {
	return e.Reason
}

// UnauthorizedError reports rejected credentials.
type UnauthorizedError struct {
	Reason string
}

func (e UnauthorizedError) Error() string {
	return e.Reason
}

// AuditError reports that a mutation was stored but its audit entry was not.
// Repeating the request would repeat the mutation, so it is never retryable.
type AuditError struct {
	Action string
	Err    error
}

func (e AuditError) Error() string {
	return fmt.Sprintf("change stored but audit %s failed: %v", e.Action, e.Err)
}

func (e AuditError) Unwrap() error {
	return e.Err
}

// RateLimitError is returned when a caller exceeds its request window.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e RateLimitError) Error() string {
	return "rate limited"
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	var (
		validation ValidationError
		notFound   NotFoundError
		conflict   ConflictError
		limited    RateLimitError
		denied     UnauthorizedError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &denied):
		return http.StatusUnauthorized
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &limited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the machine-readable code used in JSON error bodies.
func Code(err error) string {
	switch Status(err) {
	case http.StatusBadRequest:
		return "VALIDATION_ERROR"
	case http.StatusUnauthorized:
		return "AUTH_FAILED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	}
	var dep DependencyError
	if errors.As(err, &dep) {
		return "DEPENDENCY_ERROR"
	}
	return "INTERNAL_ERROR"
}

// Retryable reports whether the client may retry the same request unchanged.
func Retryable(err error) bool {
	var audit AuditError
	if errors.As(err, &audit) {
		return false
	}
	switch Status(err) {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusConflict:
		return true
	}
	return false
}

// RetryAfter returns the Retry-After header value, in whole seconds, for a
// rate-limit error.
func RetryAfter(err error) (string, bool) {
	var limited RateLimitError
	if !errors.As(err, &limited) {
		return "", false
	}
	secs := int(math.Ceil(limited.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs), true
}
