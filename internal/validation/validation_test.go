package validation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/bcnelson/seo-insights/internal/domain"
)

func TestNormalizeGroupName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain name", "Brand queries", "Brand queries", false},
		{"trims whitespace", "  Brand  ", "Brand", false},
		{"empty", "", "", true},
		{"only spaces", "   ", "", true},
		{"max length", strings.Repeat("a", 255), strings.Repeat("a", 255), false},
		{"too long", strings.Repeat("a", 256), "", true},
		{"multibyte counted as runes", strings.Repeat("é", 255), strings.Repeat("é", 255), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeGroupName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeGroupName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeGroupName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDedupeIDs(t *testing.T) {
	got := DedupeIDs([]string{"a", " b ", "", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("DedupeIDs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DedupeIDs[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   domain.Query
		wantErr bool
	}{
		{"valid", domain.Query{ID: "q1", QueryText: "shoes", Impressions: 10, Clicks: 2, AvgPosition: 3.2}, false},
		{"zero impressions", domain.Query{ID: "q1", QueryText: "shoes", AvgPosition: 1}, false},
		{"missing id", domain.Query{QueryText: "shoes", AvgPosition: 1}, true},
		{"missing text", domain.Query{ID: "q1", AvgPosition: 1}, true},
		{"clicks exceed impressions", domain.Query{ID: "q1", QueryText: "x", Impressions: 1, Clicks: 2, AvgPosition: 1}, true},
		{"negative impressions", domain.Query{ID: "q1", QueryText: "x", Impressions: -1, AvgPosition: 1}, true},
		{"zero position", domain.Query{ID: "q1", QueryText: "x"}, true},
		{"NaN position", domain.Query{ID: "q1", QueryText: "x", AvgPosition: math.NaN()}, true},
		{"infinite position", domain.Query{ID: "q1", QueryText: "x", AvgPosition: math.Inf(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuery(&tt.query)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateQuery() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := ValidateQuery(nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("ValidateQuery(nil) = %v, want ErrInvalidInput", err)
	}
}

func TestStruct_ReportsJSONFieldNames(t *testing.T) {
	err := Struct(&domain.CreateGroupRequest{Name: ""})
	if err == nil {
		t.Fatal("expected validation error")
	}

	errs, ok := AsValidationErrors(err)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Error("expected validation errors to match ErrInvalidInput")
	}

	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.Field] = true
	}
	if !fields["name"] {
		t.Errorf("expected error for field name, got %v", errs)
	}
	if !fields["queryIds"] {
		t.Errorf("expected error for field queryIds, got %v", errs)
	}
}

func TestStruct_Valid(t *testing.T) {
	err := Struct(&domain.RegisterRequest{Email: "qa@example.com", Password: "longenough"})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStruct_Email(t *testing.T) {
	err := Struct(&domain.LoginRequest{Email: "not-an-email", Password: "x"})
	errs, ok := AsValidationErrors(err)
	if !ok || len(errs) != 1 || errs[0].Field != "email" {
		t.Errorf("expected single email error, got %v", err)
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	if err := errs.ErrOrNil(); err != nil {
		t.Fatalf("empty collection: ErrOrNil() = %v, want nil", err)
	}

	errs.Add("name", "", "name is required")
	if got := errs.Error(); got != "name: name is required" {
		t.Errorf("Error() = %q", got)
	}
	errs.Add("queryIds", "", "at least one query is required")
	if got := errs.Error(); got != "name: name is required (and 1 more errors)" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := fmt.Errorf("creating group: %w", errs.ErrOrNil())
	if !errors.Is(wrapped, domain.ErrInvalidInput) {
		t.Error("expected wrapped errors to match ErrInvalidInput")
	}
	got, ok := AsValidationErrors(wrapped)
	if !ok || len(got) != 2 {
		t.Errorf("AsValidationErrors = %v, %v", got, ok)
	}
}
