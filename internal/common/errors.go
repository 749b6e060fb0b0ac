package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInternal          = errors.New("internal error")
	ErrDatabase          = errors.New("database error")
	ErrValidation        = errors.New("validation failed")
	ErrOracleUnavailable = errors.New("oracle unavailable")
	ErrOracleRateLimited = errors.New("oracle rate limited")
	ErrAllOraclesFailed  = errors.New("all oracles failed")
	ErrTimeout           = errors.New("deadline exceeded")
	ErrLeaseMismatch     = errors.New("job lease does not own this job")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrOverloaded        = errors.New("service overloaded")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// OracleError is a failed call to a named generation oracle.
// Kind is ErrOracleUnavailable or ErrOracleRateLimited.
type OracleError struct {
	Oracle string
	Kind   error
	Cause  error
}

func (e *OracleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("oracle %q: %v: %v", e.Oracle, e.Kind, e.Cause)
	}
	return fmt.Sprintf("oracle %q: %v", e.Oracle, e.Kind)
}

func (e *OracleError) Is(target error) bool {
	return target == e.Kind
}

func (e *OracleError) Unwrap() error {
	return e.Cause
}

// NewOracleUnavailable wraps cause as a transient oracle failure.
func NewOracleUnavailable(oracle string, cause error) *OracleError {
	return &OracleError{Oracle: oracle, Kind: ErrOracleUnavailable, Cause: cause}
}

func NewOracleRateLimited(oracle string, cause error) *OracleError {
	return &OracleError{Oracle: oracle, Kind: ErrOracleRateLimited, Cause: cause}
}

// AllOraclesFailedError is returned when every oracle of a fan-out or a fallback chain failed.
type AllOraclesFailedError struct {
	Failures map[string]error
	Order    []string
}

func (e *AllOraclesFailedError) Error() string {
	parts := make([]string, 0, len(e.Order))
	for _, name := range e.Order {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Failures[name]))
	}
	if len(parts) == 0 {
		return ErrAllOraclesFailed.Error() + ": no oracles configured"
	}
	return ErrAllOraclesFailed.Error() + ": " + strings.Join(parts, "; ")
}

func (e *AllOraclesFailedError) Is(target error) bool {
	return target == ErrAllOraclesFailed
}

// TimeoutError reports that Op exceeded Limit.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("%s: %v (limit %s)", e.Op, ErrTimeout, e.Limit)
	}
	return fmt.Sprintf("%s: %v", e.Op, ErrTimeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// HTTPStatus maps an error onto the status code the API answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrOracleRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrOracleUnavailable), errors.Is(err, ErrAllOraclesFailed):
		return http.StatusBadGateway
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrOverloaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
