package validation

import (
	"errors"
	"strconv"

	"github.com/bcnelson/seo-insights/internal/domain"
)

// ValidationError describes one rejected field. Field uses the JSON path
// of the input, e.g. "queryIds[2]".
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every rejected field of one input. It matches
// domain.ErrInvalidInput under errors.Is.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	default:
		return e[0].Error() + " (and " + strconv.Itoa(len(e)-1) + " more errors)"
	}
}

func (e ValidationErrors) Is(target error) bool {
	return target == domain.ErrInvalidInput
}

// Add records a rejected field.
func (e *ValidationErrors) Add(field, value, message string) {
	*e = append(*e, &ValidationError{Field: field, Value: value, Message: message})
}

// HasErrors reports whether any field was rejected.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// ErrOrNil returns e as an error, or nil when it is empty, so callers can
// return the collection directly.
func (e ValidationErrors) ErrOrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// AsValidationErrors extracts a ValidationErrors value from err.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var errs ValidationErrors
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}
