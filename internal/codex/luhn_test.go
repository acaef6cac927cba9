package codex

import (
	"errors"
	"testing"
)

func TestCheckNPI(t *testing.T) {
	tests := []struct {
		npi  string
		want error
	}{
		// 1234567893: Luhn over 80840123456789 yields check digit 3.
		{"1234567893", nil},
		{"1234567890", ErrLuhnCheckDigit},
		{"1234567899", ErrLuhnCheckDigit},
		{"123456789", ErrNotTenDigits},
		{"12345678931", ErrNotTenDigits},
		{"12345678ab", ErrNotTenDigits},
		{"", ErrNotTenDigits},
	}

	for _, tt := range tests {
		err := CheckNPI(tt.npi)
		if tt.want == nil {
			if err != nil {
				t.Errorf("CheckNPI(%q) = %v, want nil", tt.npi, err)
			}

			continue
		}

		if !errors.Is(err, tt.want) {
			t.Errorf("CheckNPI(%q) = %v, want %v", tt.npi, err, tt.want)
		}
	}
}

func TestLuhnCheckDigit(t *testing.T) {
	// Classic Luhn example: 7992739871 takes check digit 3.
	if got := luhnCheckDigit("7992739871"); got != 3 {
		t.Errorf("luhnCheckDigit = %d, want 3", got)
	}
}
