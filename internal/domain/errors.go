package domain

import "errors"

// Common errors used throughout the application.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrRateLimited        = errors.New("rate limited")
)

// Error codes for standardized API error responses.
const (
	ErrCodeValidation         = "validation_error"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeForbidden          = "forbidden"
	ErrCodeNotFound           = "not_found"
	ErrCodeConflict           = "conflict"
	ErrCodePreconditionFailed = "precondition_failed"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeInternal           = "internal"
)

// StandardError represents a standardized error response from the API.
type StandardError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// StandardErrorResponse wraps a StandardError for JSON responses.
type StandardErrorResponse struct {
	Error StandardError `json:"error"`
}

// PreconditionError reports an If-Match mismatch together with the
// resource's current ETag.
type PreconditionError struct {
	CurrentETag string
}

func (e *PreconditionError) Error() string {
	return "resource has been modified"
}

// Is lets errors.Is(err, ErrPreconditionFailed) match.
func (e *PreconditionError) Is(target error) bool {
	return target == ErrPreconditionFailed
}
