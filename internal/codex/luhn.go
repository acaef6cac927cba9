package codex

import "errors"

// NPI validation errors.
var (
	ErrNotTenDigits  = errors.New("npi must be exactly ten digits")
	ErrLuhnCheckDigit = errors.New("npi check digit mismatch")
)

// npiPrefix is the card-issuer prefix prepended before the Luhn computation,
// per the CMS NPI check digit standard.
const npiPrefix = "80840"

// CheckNPI verifies a ten-digit NPI's Luhn check digit.
func CheckNPI(npi string) error {
	if len(npi) != 10 {
		return ErrNotTenDigits
	}

	for _, r := range npi {
		if r < '0' || r > '9' {
			return ErrNotTenDigits
		}
	}

	base := npiPrefix + npi[:9]
	check := int(npi[9] - '0')

	if luhnCheckDigit(base) != check {
		return ErrLuhnCheckDigit
	}

	return nil
}

// luhnCheckDigit computes the Luhn check digit for a string of digits.
func luhnCheckDigit(digits string) int {
	total := 0
	parity := (len(digits) + 1) % 2

	for i := 0; i < len(digits); i++ {
		d := int(digits[i] - '0')
		if i%2 == parity {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}

		total += d
	}

	return (10 - total%10) % 10
}
