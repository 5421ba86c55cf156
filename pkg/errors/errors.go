package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Generic error types

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")

	// ErrRateLimitExceeded indicates the caller exceeded the request rate
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Clustering errors

var (
	// ErrInputShape indicates a feature vector with missing, unknown or non-numeric fields,
	// or a length that does not match the fitted scaler
	ErrInputShape = errors.New("input shape mismatch")

	// ErrArtifactMismatch indicates scaler, partition model and cluster profiles
	// that were not produced by the same training run
	ErrArtifactMismatch = errors.New("artifact mismatch")

	// ErrDegenerateCluster indicates a cluster lost all its members during fitting.
	// K-means recovers from it by re-seeding; it is never returned to callers.
	ErrDegenerateCluster = errors.New("degenerate cluster")

	// ErrInsufficientData indicates fewer training rows than requested clusters
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrNoModel indicates no trained bundle has been published yet
	ErrNoModel = errors.New("no trained model available")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewArtifactMismatch reports an inconsistent trained bundle
func NewArtifactMismatch(format string, args ...interface{}) *DomainError {
	return NewDomainError("artifact_mismatch", fmt.Sprintf(format, args...), ErrArtifactMismatch)
}

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// InputShapeError collects every field problem found in one feature vector
type InputShapeError struct {
	Problems []*ValidationError
}

// Error implements the error interface
func (e *InputShapeError) Error() string {
	if len(e.Problems) == 0 {
		return ErrInputShape.Error()
	}
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Field, p.Message))
	}
	return fmt.Sprintf("%s: %s", ErrInputShape.Error(), strings.Join(parts, "; "))
}

// Unwrap makes errors.Is(err, ErrInputShape) hold
func (e *InputShapeError) Unwrap() error {
	return ErrInputShape
}

// Add records a field problem
func (e *InputShapeError) Add(field, message string, value interface{}) {
	e.Problems = append(e.Problems, NewValidationError(field, message, value))
}

// ToError returns nil when no problems were recorded
func (e *InputShapeError) ToError() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// NewInputShapeError creates an input shape error with a single problem
func NewInputShapeError(field, message string, value interface{}) *InputShapeError {
	e := &InputShapeError{}
	e.Add(field, message, value)
	return e
}

// MultiError wraps multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors (%d): %v", len(m.Errors), m.Errors[0])
}

// Unwrap exposes the collected errors to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the list
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// ToError returns the MultiError as an error, or nil if no errors
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
