// Package validation checks request payloads and domain values.
// Struct tags are evaluated with go-playground/validator; failures are reported
// as ValidationErrors so handlers can return them field by field.
package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names rather than Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// Struct validates v against its `validate` tags.
// It returns nil or a ValidationErrors value.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	var errs ValidationErrors
	for _, fe := range fieldErrs {
		errs.Add(fieldPath(fe), fmt.Sprint(fe.Value()), message(fe))
	}
	return errs
}

// fieldPath strips the top-level struct name from the namespace,
// e.g. "CreateGroupRequest.queryIds[2]" becomes "queryIds[2]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// NormalizeGroupName trims a group name and checks it is non-empty and
// within the length limit.
func NormalizeGroupName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("%w: group name cannot be empty", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(trimmed) > domain.MaxGroupNameLength {
		return "", fmt.Errorf("%w: group name must be at most %d characters", domain.ErrInvalidInput, domain.MaxGroupNameLength)
	}
	return trimmed, nil
}

// DedupeIDs removes empty and repeated ids, keeping first occurrences.
func DedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ValidateQuery checks the counters of an imported query record.
func ValidateQuery(q *domain.Query) error {
	var errs ValidationErrors
	if q == nil {
		errs.Add("query", "", "query is required")
		return errs
	}
	if strings.TrimSpace(q.ID) == "" {
		errs.Add("id", q.ID, "id is required")
	}
	if strings.TrimSpace(q.QueryText) == "" {
		errs.Add("queryText", q.QueryText, "queryText is required")
	}
	if q.Impressions < 0 {
		errs.Add("impressions", fmt.Sprint(q.Impressions), "must be >= 0")
	}
	if q.Clicks < 0 {
		errs.Add("clicks", fmt.Sprint(q.Clicks), "must be >= 0")
	}
	if q.Clicks > q.Impressions {
		errs.Add("clicks", fmt.Sprint(q.Clicks), "must not exceed impressions")
	}
	if q.AvgPosition <= 0 || math.IsNaN(q.AvgPosition) || math.IsInf(q.AvgPosition, 0) {
		errs.Add("avgPosition", fmt.Sprint(q.AvgPosition), "must be a finite number > 0")
	}
	return errs.ErrOrNil()
}
