package parse

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// e164Pattern matches a normalized international number: "+", a non-zero
// leading digit, then 7-14 more digits.
var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

var nonDigits = regexp.MustCompile(`\D`)

// IsValidPhoneNumber reports whether s is already in normalized E.164 form.
func IsValidPhoneNumber(s string) bool {
	return e164Pattern.MatchString(s)
}

// NormalizePhoneNumber converts a raw phone string (messaging JIDs,
// formatted numbers, 00-prefixed international dialing) into E.164 form.
func NormalizePhoneNumber(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", eris.New("parse: empty phone number")
	}

	// Messaging identifiers carry a domain suffix, e.g. "79123456789@s.whatsapp.net".
	if at := strings.IndexByte(s, '@'); at >= 0 {
		s = s[:at]
	}

	hadPlus := strings.HasPrefix(s, "+")
	digits := nonDigits.ReplaceAllString(s, "")
	if digits == "" {
		return "", eris.Errorf("parse: no digits in phone number %q", raw)
	}

	// "00" international dialing prefix only counts when the raw string was
	// not already explicitly "+"-prefixed.
	if !hadPlus && strings.HasPrefix(digits, "00") {
		digits = digits[2:]
	}

	normalized := "+" + digits
	if !e164Pattern.MatchString(normalized) {
		return "", eris.Errorf("parse: phone number %q does not normalize to E.164", raw)
	}
	return normalized, nil
}

// PhoneDigits strips everything but digits, for loose comparisons such as
// "does this display name just repeat the phone number".
func PhoneDigits(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}
