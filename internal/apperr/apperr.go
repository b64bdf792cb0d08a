// Package apperr defines the typed errors surfaced by the booking core.
package apperr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Code is the machine-readable category of an error.
type Code string

const (
	CodeValidation      Code = "validation_error"
	CodeStateTransition Code = "state_transition_error"
	CodeProvider        Code = "provider_error"
	CodeEnrichment      Code = "enrichment_error"
	CodeCountMismatch   Code = "count_mismatch"
	CodeExpired         Code = "offer_expired"
	CodeNotFound        Code = "not_found"
	CodeConflict        Code = "conflict"
	CodeInternal        Code = "internal_error"
)

// Coded is implemented by every error of this package.
type Coded interface {
	error
	ErrorCode() Code
}

// CodeOf returns the category of err, or CodeInternal when err is not coded.
func CodeOf(err error) Code {
	var coded Coded
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return CodeInternal
}

// FieldError names an invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Message
}

// ValidationError rejects malformed or inconsistent input. It is never retried.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) ErrorCode() Code { return CodeValidation }

// StateTransitionError is an illegal stage change. It indicates a logic fault in the caller.
type StateTransitionError struct {
	From string
	To   string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("illegal stage transition %s -> %s", e.From, e.To)
}

func (e *StateTransitionError) ErrorCode() Code { return CodeStateTransition }

// ProviderError is a rejection from the inventory provider.
type ProviderError struct {
	Status  int
	Code    string
	Type    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error %d (%s/%s): %s", e.Status, e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("provider error %d: %s", e.Status, e.Message)
}

func (e *ProviderError) ErrorCode() Code { return CodeProvider }

// EnrichmentError is a failed detail fetch for one offer. It is always recovered locally.
type EnrichmentError struct {
	OfferID string
	Err     error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrich offer %s: %v", e.OfferID, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }

func (e *EnrichmentError) ErrorCode() Code { return CodeEnrichment }

// CountMismatchError is raised when submitted passengers do not match the offer's slots.
type CountMismatchError struct {
	Expected int
	Got      int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("passenger count mismatch: offer has %d passenger slots, got %d", e.Expected, e.Got)
}

func (e *CountMismatchError) ErrorCode() Code { return CodeCountMismatch }

// ExpiryError is raised when an offer expired before it could be paid. The caller must refresh.
type ExpiryError struct {
	OfferID   string
	ExpiredAt time.Time
}

func (e *ExpiryError) Error() string {
	return fmt.Sprintf("offer %s expired at %s", e.OfferID, e.ExpiredAt.Format(time.RFC3339))
}

func (e *ExpiryError) ErrorCode() Code { return CodeExpired }

// NotFoundError is a missing session, offer or booking.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) ErrorCode() Code { return CodeNotFound }

// Is lets errors.Is(err, ErrNotFound) match any NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ErrNotFound matches every NotFoundError.
var ErrNotFound = errors.New("not found")

// ConflictError is a request that is well-formed but not applicable to the current state,
// such as paying an order that is already paid.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) ErrorCode() Code { return CodeConflict }

// Conflictf builds a ConflictError.
func Conflictf(format string, args ...any) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}
