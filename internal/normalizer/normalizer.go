// Package normalizer maps raw source rows onto the canonical code/description
// schema and enforces its row-level invariants.
package normalizer

import (
	"errors"
	"fmt"

	"medcodex/internal/codex"
	"medcodex/internal/models"
	"medcodex/pkg/textutil"
)

// Normalization failure reasons.
var (
	ErrEmptyCode        = errors.New("code is empty after trimming")
	ErrEmptyDescription = errors.New("description is empty after trimming")
	ErrNoCodeColumn     = errors.New("no code column found in record")
)

// FailureError reports a row that could not be normalized, carrying the raw
// record for the reject file.
type FailureError struct {
	Reason error
	Record *models.RawRecord
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("normalization failed at line %d: %v", e.Record.Line, e.Reason)
}

func (e *FailureError) Unwrap() error {
	return e.Reason
}

// Rule is the resolved field-selection rule for one source: the codex
// profile merged with any per-source config overrides.
type Rule struct {
	Profile     *codex.Profile
	CodeColumns []string          // overrides Profile.CodeColumns when set
	DescColumns []string          // overrides Profile.DescColumns when set
	Filters     map[string]string // column -> required value; mismatches are filtered, not rejected
}

func (r *Rule) codeColumns() []string {
	if len(r.CodeColumns) > 0 {
		return r.CodeColumns
	}

	return r.Profile.CodeColumns
}

func (r *Rule) descColumns() []string {
	if len(r.DescColumns) > 0 {
		return r.DescColumns
	}

	return r.Profile.DescColumns
}

// Matches reports whether the raw record passes the rule's filters.
// Comparison trims both sides; a filter on a missing column never matches.
func (r *Rule) Matches(rec *models.RawRecord) bool {
	for column, want := range r.Filters {
		got, ok := rec.Lookup(column)
		if !ok || textutil.Clean(got) != want {
			return false
		}
	}

	return true
}

// Normalize maps a raw record to a canonical record using the rule's field
// selection. The code is trimmed (and upper-cased for case-insensitive
// codexes); the description is trimmed with internal whitespace collapsed.
// An empty result for either field returns a *FailureError.
func Normalize(rec *models.RawRecord, rule *Rule) (models.CanonicalRecord, error) {
	profile := rule.Profile

	code, ok := rec.Lookup(rule.codeColumns()...)
	if !ok {
		return models.CanonicalRecord{}, &FailureError{Reason: ErrNoCodeColumn, Record: rec}
	}

	if profile.CaseInsensitive {
		code = textutil.CleanUpper(code)
	} else {
		code = textutil.Clean(code)
	}

	if profile.PrepareCode != nil {
		code = profile.PrepareCode(code)
	}

	if code == "" {
		return models.CanonicalRecord{}, &FailureError{Reason: ErrEmptyCode, Record: rec}
	}

	desc := describe(rec, rule)
	if desc == "" {
		return models.CanonicalRecord{}, &FailureError{Reason: ErrEmptyDescription, Record: rec}
	}

	return models.CanonicalRecord{Code: code, Description: desc}, nil
}

func describe(rec *models.RawRecord, rule *Rule) string {
	// Explicit config columns win over a profile-composed description.
	if len(rule.DescColumns) > 0 {
		if desc, ok := rec.Lookup(rule.DescColumns...); ok {
			return textutil.Clean(desc)
		}

		return ""
	}

	if rule.Profile.Describe != nil {
		if desc, ok := rule.Profile.Describe(rec); ok {
			return textutil.Clean(desc)
		}

		return ""
	}

	if desc, ok := rec.Lookup(rule.descColumns()...); ok {
		return textutil.Clean(desc)
	}

	return ""
}
