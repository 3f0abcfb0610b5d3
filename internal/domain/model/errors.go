package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds shared across the core. Callers use errors.Is.
var (
	// ErrInvalidInput rejects a request before any I/O.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSourceUnavailable reports that an upstream adapter failed.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrNormalizationAmbiguous marks a country that could not be mapped with confidence.
	ErrNormalizationAmbiguous = errors.New("country normalization ambiguous")
)

// InvalidInput builds an ErrInvalidInput error for a named field.
func InvalidInput(field, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInput, field, reason)
}

// ErrorCategory classifies adapter failures.
type ErrorCategory string

const (
	ErrorTimeout  ErrorCategory = "timeout"
	ErrorBadData  ErrorCategory = "bad_data"
	ErrorOutage   ErrorCategory = "outage"
	ErrorInternal ErrorCategory = "internal"
)

// SourceError wraps an adapter failure with its source and category.
type SourceError struct {
	Source     SourceID
	Category   ErrorCategory
	Underlying error
}

func (e *SourceError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("source %s [%s]: %v", e.Source, e.Category, e.Underlying)
	}
	return fmt.Sprintf("source %s [%s]", e.Source, e.Category)
}

func (e *SourceError) Unwrap() error { return e.Underlying }

// Is makes every SourceError match ErrSourceUnavailable.
func (e *SourceError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// NewSourceError wraps err for source with the given category.
func NewSourceError(source SourceID, category ErrorCategory, err error) *SourceError {
	return &SourceError{Source: source, Category: category, Underlying: err}
}

// CategoryOf extracts the category of a SourceError, or ErrorInternal.
func CategoryOf(err error) ErrorCategory {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Category
	}
	return ErrorInternal
}
