// Package codex defines the built-in registry profiles: per-codex code
// patterns, candidate column names, and identifier checks.
package codex

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"medcodex/internal/models"
)

// ErrUnknownCodex is returned when a source names a codex with no profile.
var ErrUnknownCodex = errors.New("unknown codex")

// Built-in codex identifiers.
const (
	ICD10CM  = "icd10cm"
	ICD10WHO = "icd10who"
	HCPCS    = "hcpcs"
	LOINC    = "loinc"
	NPI      = "npi"
	RxNorm   = "rxnorm"
	SNOMED   = "snomed"
	Generic  = "generic"
)

// Profile describes how one codex's raw rows map onto the canonical schema
// and which shape a valid code must have.
type Profile struct {
	ID   string
	Name string

	// Candidate columns for code and description selection, tried in order,
	// matched case-insensitively against the source header.
	CodeColumns []string
	DescColumns []string

	// Pattern is the code shape check; nil disables pattern validation.
	Pattern *regexp.Regexp

	// CaseInsensitive codes are upper-cased during normalization. Numeric
	// registries (NPI, RxNorm, SNOMED) are left untouched.
	CaseInsensitive bool

	// MaxCodeLen guards against parser offset errors silently concatenating
	// fields. Zero means no limit.
	MaxCodeLen int

	// PrepareCode optionally rewrites the code before validation
	// (NPI strips punctuation and spaces around the ten digits).
	PrepareCode func(string) string

	// CheckCode optionally applies an identifier check beyond the pattern
	// (NPI Luhn check digit).
	CheckCode func(string) error

	// Describe optionally builds the description from several raw columns
	// instead of a single candidate lookup (NPI provider names).
	Describe func(*models.RawRecord) (string, bool)
}

var profiles = map[string]*Profile{
	ICD10CM: {
		ID:              ICD10CM,
		Name:            "ICD-10-CM",
		CodeColumns:     []string{"Code", "code"},
		DescColumns:     []string{"Long Description", "Description", "Short Description", "desc"},
		Pattern:         regexp.MustCompile(`^[A-Z][0-9]{2}(\.[0-9A-Z]{1,4})?$`),
		CaseInsensitive: true,
		MaxCodeLen:      8,
	},
	ICD10WHO: {
		ID:              ICD10WHO,
		Name:            "ICD-10 WHO",
		CodeColumns:     []string{"Code"},
		DescColumns:     []string{"Description"},
		Pattern:         regexp.MustCompile(`^[A-Z][0-9][0-9](\.[0-9A-Z]{1,4})?$`),
		CaseInsensitive: true,
		MaxCodeLen:      8,
	},
	HCPCS: {
		ID:              HCPCS,
		Name:            "HCPCS Level II",
		CodeColumns:     []string{"HCPCS", "Code", "code"},
		DescColumns:     []string{"Long Description", "Description", "Short Description", "desc"},
		Pattern:         regexp.MustCompile(`^[A-V][0-9]{4}$`),
		CaseInsensitive: true,
		MaxCodeLen:      5,
	},
	LOINC: {
		ID:              LOINC,
		Name:            "LOINC",
		CodeColumns:     []string{"LOINC_NUM", "LoincNum", "code"},
		DescColumns:     []string{"LONG_COMMON_NAME", "ShortName", "Component", "Description"},
		Pattern:         regexp.MustCompile(`^[0-9]{1,5}-[0-9]$`),
		CaseInsensitive: true,
		MaxCodeLen:      7,
	},
	NPI: {
		ID:          NPI,
		Name:        "NPI Registry",
		CodeColumns: []string{"NPI", "npi"},
		DescColumns: nil,
		Pattern:     regexp.MustCompile(`^[0-9]{10}$`),
		MaxCodeLen:  10,
		PrepareCode: stripNonDigits,
		CheckCode:   CheckNPI,
		Describe:    describeProvider,
	},
	RxNorm: {
		ID:          RxNorm,
		Name:        "RxNorm",
		CodeColumns: []string{"RXCUI", "rxcui", "RXCUI_ID", "code"},
		DescColumns: []string{"STR", "String", "Name", "Description"},
		Pattern:     regexp.MustCompile(`^[0-9]+$`),
		MaxCodeLen:  8,
	},
	SNOMED: {
		ID:          SNOMED,
		Name:        "SNOMED CT",
		CodeColumns: []string{"conceptId", "Concept ID", "id", "code", "sctid"},
		DescColumns: []string{"FSN", "Fully Specified Name", "term", "Preferred Term", "PT", "Description"},
		Pattern:     regexp.MustCompile(`^[0-9]{6,18}$`),
		MaxCodeLen:  18,
	},
	Generic: {
		ID:          Generic,
		Name:        "Generic",
		CodeColumns: []string{"Code", "code"},
		DescColumns: []string{"Description", "description", "desc"},
		MaxCodeLen:  64,
	},
}

// Get returns the profile for a codex ID.
func Get(id string) (*Profile, error) {
	p, ok := profiles[strings.ToLower(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodex, id)
	}

	return p, nil
}

// IDs returns the IDs of all built-in profiles.
func IDs() []string {
	ids := make([]string, 0, len(profiles))
	for id := range profiles {
		ids = append(ids, id)
	}

	return ids
}

func stripNonDigits(s string) string {
	var b strings.Builder

	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// Provider name columns across NPPES file revisions.
var (
	providerOrgColumns = []string{
		"Provider Organization Name (Legal Business Name)",
		"Provider Organization Name",
		"Organization Name",
		"Org Name",
	}
	providerLastColumns   = []string{"Provider Last Name (Legal Name)", "Last Name", "Provider Last Name"}
	providerFirstColumns  = []string{"Provider First Name", "First Name"}
	providerMiddleColumns = []string{"Provider Middle Name", "Middle Name"}
	providerCredColumns   = []string{"Provider Credential Text", "Credential", "Credentials"}
)

// describeProvider builds an NPI description from the organization name, or
// "Last, First Middle Credential" for individual providers.
func describeProvider(rec *models.RawRecord) (string, bool) {
	if org, ok := rec.Lookup(providerOrgColumns...); ok && strings.TrimSpace(org) != "" {
		return strings.TrimSpace(org), true
	}

	last, _ := rec.Lookup(providerLastColumns...)
	first, _ := rec.Lookup(providerFirstColumns...)
	middle, _ := rec.Lookup(providerMiddleColumns...)
	cred, _ := rec.Lookup(providerCredColumns...)

	last = strings.TrimSpace(last)
	first = strings.TrimSpace(first)
	middle = strings.TrimSpace(middle)
	cred = strings.TrimSpace(cred)

	name := first
	if middle != "" {
		name += " " + middle
	}

	if last != "" && name != "" {
		name = last + ", " + name
	} else if last != "" {
		name = last
	}

	if cred != "" && name != "" {
		name += " " + cred
	}

	if name == "" {
		return "", false
	}

	return name, true
}
