package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain Const errors
var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnknownCategory     = errors.New("unknown reminder category")
	ErrInvalidClock        = errors.New("invalid clock time")
	ErrInvalidTimezone     = errors.New("invalid timezone")
	ErrIncompleteTimes     = errors.New("event time set is incomplete")
	ErrProviderUnavailable = errors.New("timetable provider unavailable")
	ErrLockHeld            = errors.New("reminder lock already held")
	ErrNoTransport         = errors.New("no transport configured for channel")
	ErrProviderError       = errors.New("external provider error")
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (e ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", e.Errors[0].Error())
}

func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// ProviderError is returned by transports and the timetable provider when the
// remote side answers with a non-success status.
type ProviderError struct {
	StatusCode int
	Message    string
	Retryable  bool
}

func (e ProviderError) Error() string {
	return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
}

func (e ProviderError) Unwrap() error {
	return ErrProviderError
}

// IsPermanent reports whether the recipient endpoint is gone for good and
// should be deactivated.
func (e ProviderError) IsPermanent() bool {
	return e.StatusCode == http.StatusGone
}

func NewProviderError(statusCode int, message string, retryable bool) ProviderError {
	return ProviderError{
		StatusCode: statusCode,
		Message:    message,
		Retryable:  retryable,
	}
}

// IsPermanentFailure reports whether err carries a 410 from the transport.
func IsPermanentFailure(err error) bool {
	var providerErr ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.IsPermanent()
	}
	return false
}

// IsRetryable reports whether err is a provider error worth retrying.
func IsRetryable(err error) bool {
	var providerErr ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}
	return false
}
