// Package report defines the clinical report document model and its
// ingestion validation rules.
package report

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Document is an immutable clinical report accepted for processing.
// It is created per request and discarded after producing output.
type Document struct {
	Text         string
	ReportType   string
	LanguageHint string
}

// ValidationError signals that input was rejected before any processing.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("report: invalid %s: %s", e.Field, e.Reason)
}

// Validator checks incoming documents against the configured constraints.
type Validator struct {
	maxChars      int
	acceptedTypes map[string]struct{}
}

// NewValidator builds a validator for the given max length and report type set.
func NewValidator(maxChars int, acceptedTypes []string) *Validator {
	set := make(map[string]struct{}, len(acceptedTypes))
	for _, t := range acceptedTypes {
		set[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return &Validator{maxChars: maxChars, acceptedTypes: set}
}

// Validate returns a normalized Document or a *ValidationError.
func (v *Validator) Validate(text, reportType, languageHint string) (Document, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < 3 {
		return Document{}, &ValidationError{Field: "text", Reason: "too short (minimum 3 characters)"}
	}
	if n := utf8.RuneCountInString(text); n > v.maxChars {
		return Document{}, &ValidationError{
			Field:  "text",
			Reason: fmt.Sprintf("too long (%d chars, max %d)", n, v.maxChars),
		}
	}

	rt := strings.ToLower(strings.TrimSpace(reportType))
	if _, ok := v.acceptedTypes[rt]; !ok {
		return Document{}, &ValidationError{
			Field:  "report_type",
			Reason: fmt.Sprintf("unsupported report type %q", reportType),
		}
	}

	return Document{Text: text, ReportType: rt, LanguageHint: languageHint}, nil
}

// TooLong reports whether the validation error is the over-length case,
// which maps to a distinct HTTP status at the API boundary.
func (e *ValidationError) TooLong() bool {
	return e.Field == "text" && strings.HasPrefix(e.Reason, "too long")
}
