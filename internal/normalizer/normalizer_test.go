package normalizer

import (
	"errors"
	"testing"

	"medcodex/internal/codex"
	"medcodex/internal/models"
)

func mustProfile(t *testing.T, id string) *codex.Profile {
	t.Helper()

	p, err := codex.Get(id)
	if err != nil {
		t.Fatalf("codex.Get(%s) failed: %v", id, err)
	}

	return p
}

func rawRecord(fields map[string]string) *models.RawRecord {
	rec := models.NewRawRecord(1, "")
	for col, val := range fields {
		rec.Set(col, val)
	}

	return rec
}

func TestNormalize_TrimsAndCollapses(t *testing.T) {
	rule := &Rule{Profile: mustProfile(t, codex.ICD10CM)}

	rec := rawRecord(map[string]string{
		"Code":        "  a00 ",
		"Description": "  Cholera,   unspecified \t infection ",
	})

	got, err := Normalize(rec, rule)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if got.Code != "A00" {
		t.Errorf("Code = %q, want trimmed upper-cased A00", got.Code)
	}

	if got.Description != "Cholera, unspecified infection" {
		t.Errorf("Description = %q, want collapsed whitespace", got.Description)
	}
}

func TestNormalize_CaseSensitiveCodexKeepsCase(t *testing.T) {
	rule := &Rule{Profile: mustProfile(t, codex.SNOMED)}

	rec := rawRecord(map[string]string{
		"conceptId": "73211009",
		"term":      "Diabetes mellitus",
	})

	got, err := Normalize(rec, rule)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if got.Code != "73211009" {
		t.Errorf("Code = %q", got.Code)
	}
}

func TestNormalize_EmptyCode(t *testing.T) {
	rule := &Rule{Profile: mustProfile(t, codex.ICD10CM)}

	rec := rawRecord(map[string]string{"Code": "   ", "Description": "Cholera"})

	_, err := Normalize(rec, rule)
	if !errors.Is(err, ErrEmptyCode) {
		t.Fatalf("expected ErrEmptyCode, got %v", err)
	}

	var failure *FailureError
	if !errors.As(err, &failure) {
		t.Fatal("expected *FailureError")
	}

	if failure.Record != rec {
		t.Error("failure should carry the offending raw record")
	}
}

func TestNormalize_EmptyDescription(t *testing.T) {
	rule := &Rule{Profile: mustProfile(t, codex.ICD10CM)}

	rec := rawRecord(map[string]string{"Code": "A00", "Description": " \t "})

	_, err := Normalize(rec, rule)
	if !errors.Is(err, ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
}

func TestNormalize_MissingCodeColumn(t *testing.T) {
	rule := &Rule{Profile: mustProfile(t, codex.ICD10CM)}

	rec := rawRecord(map[string]string{"Identifier": "A00", "Description": "Cholera"})

	_, err := Normalize(rec, rule)
	if !errors.Is(err, ErrNoCodeColumn) {
		t.Fatalf("expected ErrNoCodeColumn, got %v", err)
	}
}

func TestNormalize_ColumnOverrides(t *testing.T) {
	rule := &Rule{
		Profile:     mustProfile(t, codex.Generic),
		CodeColumns: []string{"Identifier"},
		DescColumns: []string{"Label"},
	}

	rec := rawRecord(map[string]string{"Identifier": "X1", "Label": "Something"})

	got, err := Normalize(rec, rule)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if got.Code != "X1" || got.Description != "Something" {
		t.Errorf("got %+v", got)
	}
}

func TestNormalize_NPIComposedDescription(t *testing.T) {
	rule := &Rule{Profile: mustProfile(t, codex.NPI)}

	rec := rawRecord(map[string]string{
		"NPI":                             " 1234-567-893 ",
		"Provider Last Name (Legal Name)": "Smith",
		"Provider First Name":             "Jane",
	})

	got, err := Normalize(rec, rule)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if got.Code != "1234567893" {
		t.Errorf("Code = %q, want punctuation stripped", got.Code)
	}

	if got.Description != "Smith, Jane" {
		t.Errorf("Description = %q", got.Description)
	}
}

func TestRule_Matches(t *testing.T) {
	rule := &Rule{
		Profile: mustProfile(t, codex.SNOMED),
		Filters: map[string]string{"active": "1"},
	}

	active := rawRecord(map[string]string{"conceptId": "73211009", "term": "DM", "active": " 1 "})
	inactive := rawRecord(map[string]string{"conceptId": "73211009", "term": "DM", "active": "0"})
	missing := rawRecord(map[string]string{"conceptId": "73211009", "term": "DM"})

	if !rule.Matches(active) {
		t.Error("active row should match")
	}

	if rule.Matches(inactive) {
		t.Error("inactive row should be filtered")
	}

	if rule.Matches(missing) {
		t.Error("row without the filter column should be filtered")
	}
}
