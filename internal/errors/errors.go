// Package errors provides the consolidated error definitions for skylog.
//
// It defines sentinel errors for all error conditions, category checking
// functions, and error wrapping utilities. Conditions the pipeline recovers
// from locally (field coercion degradation, missing optional statistic
// fields, unknown log/session lookups on reads) deliberately have no
// sentinels here: they are not errors.
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Ingestion errors
	ErrEmptyInput = errors.New("no records to ingest")

	// Not found errors
	ErrNotFound        = errors.New("not found")
	ErrLogNotFound     = errors.New("log not found")
	ErrSessionNotFound = errors.New("session not found")

	// Validation errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInvalidQuery  = errors.New("invalid query")
	ErrMissingField  = errors.New("missing required field")

	// Store errors
	ErrDatabase = errors.New("database error")
	ErrClosed   = errors.New("store is closed")
	ErrTimeout  = errors.New("timeout")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrLogNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidQuery) ||
		errors.Is(err, ErrMissingField)
}

// IsRetriable returns true if the error is potentially retriable. A failed
// ingestion transaction is retriable as a whole: the rollback leaves no
// partial rows for the log.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrDatabase) ||
		errors.Is(err, ErrTimeout)
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewNotFound creates a not-found error with context.
func NewNotFound(entityType, identifier string) error {
	return fmt.Errorf("%s '%s': %w", entityType, identifier, ErrNotFound)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewDatabase wraps a store-level failure so callers can classify it with
// IsRetriable without inspecting driver error strings.
func NewDatabase(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %v: %w", op, err, ErrDatabase)
}
