package normalizer

import (
	"errors"
	"fmt"

	"medcodex/internal/codex"
	"medcodex/internal/models"
)

// Validation errors.
var (
	ErrCodeTooLong    = errors.New("code exceeds maximum length")
	ErrCodePattern    = errors.New("code does not match codex pattern")
	ErrCodeCheckdigit = errors.New("code failed identifier check")
)

// Validator checks canonical records against per-source invariants. It holds
// no cross-record state; duplicate handling lives in the Deduplicator so the
// precedence policy stays in one place.
type Validator struct {
	profile       *codex.Profile
	maxCodeLen    int
	checkPatterns bool
}

// NewValidator creates a validator for a codex profile. maxCodeLen overrides
// the profile's limit when positive; checkPatterns enables the codex code
// pattern and identifier checks.
func NewValidator(profile *codex.Profile, maxCodeLen int, checkPatterns bool) *Validator {
	if maxCodeLen <= 0 {
		maxCodeLen = profile.MaxCodeLen
	}

	return &Validator{
		profile:       profile,
		maxCodeLen:    maxCodeLen,
		checkPatterns: checkPatterns,
	}
}

// Validate accepts or rejects one canonical record. Checks run in a fixed
// order: empty code, empty description, code length, then the codex pattern
// and identifier check. The length check guards against fixed-width offset
// errors silently concatenating fields.
func (v *Validator) Validate(rec models.CanonicalRecord) error {
	if rec.Code == "" {
		return ErrEmptyCode
	}

	if rec.Description == "" {
		return ErrEmptyDescription
	}

	if v.maxCodeLen > 0 && len(rec.Code) > v.maxCodeLen {
		return fmt.Errorf("%w: %d > %d", ErrCodeTooLong, len(rec.Code), v.maxCodeLen)
	}

	if !v.checkPatterns {
		return nil
	}

	if v.profile.Pattern != nil && !v.profile.Pattern.MatchString(rec.Code) {
		return fmt.Errorf("%w (%s): %q", ErrCodePattern, v.profile.ID, rec.Code)
	}

	if v.profile.CheckCode != nil {
		if err := v.profile.CheckCode(rec.Code); err != nil {
			return fmt.Errorf("%w: %v", ErrCodeCheckdigit, err)
		}
	}

	return nil
}
