package util

import (
	"regexp"
	"strings"
)

var (
	nonDialable = regexp.MustCompile(`[^\d\+]+`)
	e164        = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
)

// NormalizeRecipient strips separators and normalizes the international
// prefix so "00 49 170..." and "+49170..." compare equal.
func NormalizeRecipient(raw string) string {
	s := nonDialable.ReplaceAllString(strings.TrimSpace(raw), "")
	if strings.HasPrefix(s, "00") {
		s = "+" + s[2:]
	}
	return s
}

// ValidE164 reports whether s is a plausible E.164 number.
func ValidE164(s string) bool {
	return e164.MatchString(s)
}
