// Package phone provides phone number utilities.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Digits strips everything but ASCII digits. Mapping keys use this form.
func Digits(input string) string {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ForBackend formats a number the way the backend stores it: E.164 without
// the leading '+'. Numbers that cannot be parsed as valid (no international
// prefix and no region) fall back to their digits.
func ForBackend(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	number, err := phonenumbers.Parse(trimmed, strings.ToUpper(region))
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return Digits(trimmed)
	}
	return strings.TrimPrefix(phonenumbers.Format(number, phonenumbers.E164), "+")
}
