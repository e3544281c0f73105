package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/selection"
	"github.com/bcnelson/seo-insights/internal/validation"
)

// formatPercent renders a ratio as a percentage with two decimals.
func formatPercent(ratio float64) string {
	return fmt.Sprintf("%.2f%%", ratio*100)
}

// formatPosition renders an average position with one decimal.
func formatPosition(pos float64) string {
	return strconv.FormatFloat(pos, 'f', 1, 64)
}

// formatNumber renders n with thousands separators.
func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// errorMessage turns a service error into text fit for a flash message.
func errorMessage(err error) string {
	if errs, ok := validation.AsValidationErrors(err); ok {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Message)
		}
		return strings.Join(msgs, "; ")
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "Not found."
	case errors.Is(err, domain.ErrAlreadyExists):
		return "A group with this name already exists."
	case errors.Is(err, domain.ErrPreconditionFailed):
		return "This group was changed elsewhere. Reload the page and try again."
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, domain.ErrInvalidToken):
		return "This reset link is invalid or has expired."
	case errors.Is(err, domain.ErrForbidden):
		return "You are not allowed to do that."
	default:
		return "Something went wrong. Please try again."
	}
}

// errorStatus maps a service error to an HTTP status for fragment responses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPreconditionFailed):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// flashFromQuery reads ?error= and ?notice= into a flash message.
func flashFromQuery(r *http.Request) *FlashMessage {
	if msg := r.URL.Query().Get("error"); msg != "" {
		return &FlashMessage{Type: "error", Message: msg}
	}
	if msg := r.URL.Query().Get("notice"); msg != "" {
		return &FlashMessage{Type: "success", Message: msg}
	}
	return nil
}

// selectionFromForm rebuilds a selection over visible from the posted
// "selected" checkboxes and applies the posted action.
func selectionFromForm(r *http.Request, visible []string) *selection.Set {
	set := selection.NewSet(visible)
	set.Select(r.Form["selected"]...)
	switch r.FormValue("action") {
	case "toggle_all":
		set.ToggleHeader()
	case "select_all":
		set.SelectAll()
	case "clear":
		set.Clear()
	}
	return set
}

func queryIDs(queries []*domain.Query) []string {
	ids := make([]string, len(queries))
	for i, q := range queries {
		ids[i] = q.ID
	}
	return ids
}
