// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "BR"

// Normalize reduces a raw phone string to canonical "+digits" form. All
// characters other than digits are dropped and a single leading "+" is
// re-applied. Already-normalized input passes through unchanged. An input
// with no digits normalizes to the empty string.
func Normalize(input string) string {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "+" + b.String()
}

// DigitCount returns the number of digit characters in a raw phone string.
func DigitCount(input string) int {
	n := 0
	for _, r := range input {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// NormalizeE164 formats a phone number to E.164. If parsing fails, it falls
// back to Normalize on the raw input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return Normalize(trimmed)
	}

	if !phonenumbers.IsValidNumber(number) {
		return Normalize(trimmed)
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// NinthDigitVariant returns the Brazilian mobile alternate form of a
// normalized number. WhatsApp identities sometimes omit the mobile ninth
// digit, so a stored "+55" number with 12 digits total has an equivalent
// 13-digit form with '9' inserted after the area code. Returns "" when no
// variant applies.
func NinthDigitVariant(normalized string) string {
	digits := strings.TrimPrefix(normalized, "+")
	if !strings.HasPrefix(digits, "55") || len(digits) != 12 {
		return ""
	}
	// 55 + 2-digit area code + 8-digit subscriber: insert the ninth digit.
	return "+" + digits[:4] + "9" + digits[4:]
}
