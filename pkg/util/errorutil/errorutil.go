package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Engine error taxonomy. Everything except ErrPersistenceUnavailable is non-fatal
// for a sweep and only affects the complaint it was raised for.
var (
	ErrUnknownCategory         = errors.New("unknown complaint category")
	ErrNoEligibleStaff         = errors.New("no eligible staff")
	ErrConcurrentWriteConflict = errors.New("concurrent write conflict")
	ErrPersistenceUnavailable  = errors.New("persistence unavailable")
	ErrNotificationFailure     = errors.New("notification failure")
	ErrSweepInProgress         = errors.New("sweep already in progress")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrDuplicate               = errors.New("already exists")
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// sentinelCodes maps engine sentinels onto response codes.
var sentinelCodes = []struct {
	err    error
	code   string
	status int
}{
	{ErrUnknownCategory, "UNKNOWN_CATEGORY", http.StatusUnprocessableEntity},
	{ErrNoEligibleStaff, "NO_ELIGIBLE_STAFF", http.StatusConflict},
	{ErrConcurrentWriteConflict, "CONCURRENT_WRITE_CONFLICT", http.StatusConflict},
	{ErrSweepInProgress, "SWEEP_IN_PROGRESS", http.StatusConflict},
	{ErrInvalidTransition, "INVALID_TRANSITION", http.StatusConflict},
	{ErrDuplicate, "DUPLICATE", http.StatusConflict},
	{ErrPersistenceUnavailable, "PERSISTENCE_UNAVAILABLE", http.StatusServiceUnavailable},
	{ErrNotificationFailure, "NOTIFICATION_FAILURE", http.StatusBadGateway},
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &DomainError{
			Code:       "NOT_FOUND",
			Message:    "resource not found",
			HTTPStatus: http.StatusNotFound,
			Err:        err,
		}
	}
	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			return &DomainError{Code: s.code, Message: s.err.Error(), HTTPStatus: s.status, Err: err}
		}
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts err into a DomainError while keeping the error interface.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
