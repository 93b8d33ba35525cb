// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// defaultRegion is the parsing fallback for numbers without a country prefix.
// The marketplace launched in Argentina; urgent requests carry local numbers.
const defaultRegion = "AR"

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns
// the trimmed input so a bad contact number never blocks request creation.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}
