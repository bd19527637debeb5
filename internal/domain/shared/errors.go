// Package shared contains the error vocabulary used across the domain, application
// and infrastructure layers. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Validation errors
	ErrValidation    = errors.New("validation error")
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyValue    = errors.New("value cannot be empty")
	ErrInvalidFormat = errors.New("invalid format")

	// State errors
	ErrInvalidState = errors.New("invalid state")
	ErrClosed       = errors.New("closed")

	// Delivery errors
	ErrDelivery = errors.New("delivery error")
	ErrTimeout  = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "caliper", "sensor", "scenario"
	Op      string // Operation that failed, e.g., "Complete", "Send"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Caliper entity errors
var (
	ErrUnknownResponseKind = NewDomainError("caliper", "BuildResponse", ErrInvalidInput, "unknown response kind")
	ErrMissingResponse     = NewDomainError("caliper", "BuildResponse", ErrEmptyValue, "response has no values")
	ErrAttemptCompleted    = NewDomainError("caliper", "Complete", ErrInvalidState, "attempt already completed")
)

// Sensor errors
var (
	ErrSensorClosed   = NewDomainError("sensor", "Send", ErrClosed, "sensor is closed")
	ErrNoEvents       = NewDomainError("sensor", "Send", ErrEmptyValue, "no events to send")
	ErrHandlerFailed  = NewDomainError("sensor", "Dispatch", ErrDelivery, "envelope handler failed")
	ErrUnknownEncoder = NewDomainError("sensor", "NewEncoder", ErrInvalidInput, "unknown output format")
)

// Scenario errors
var (
	ErrNoAssessmentItems = NewDomainError("scenario", "Validate", ErrValidation, "assessment has no items")
	ErrStepFailed        = NewDomainError("scenario", "Execute", ErrDelivery, "scenario step failed")
)

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsInvalidFormat checks if the error reports malformed input such as a bad timestamp.
func IsInvalidFormat(err error) bool {
	return errors.Is(err, ErrInvalidFormat)
}

// IsDelivery checks if the error happened while handing events to a sensor.
func IsDelivery(err error) bool {
	return errors.Is(err, ErrDelivery) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrClosed)
}
