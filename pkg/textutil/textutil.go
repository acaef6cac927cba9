// Package textutil provides text cleanup helpers shared by the pipeline stages.
package textutil

import "strings"

// Clean trims leading/trailing whitespace and collapses internal whitespace
// runs to a single space.
func Clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CleanUpper applies Clean and upper-cases the result.
func CleanUpper(s string) string {
	return strings.ToUpper(Clean(s))
}

// Digits returns only the decimal digits of s, in order.
func Digits(s string) string {
	var b strings.Builder

	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// Truncate shortens s to maxLen runes, appending an ellipsis when truncated.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	return string(runes[:maxLen]) + "..."
}
