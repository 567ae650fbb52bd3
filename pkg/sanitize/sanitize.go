package sanitize

import (
	"regexp"
	"unicode/utf8"
)

// Plain email address, case-insensitive.
var reEmail = regexp.MustCompile(`(?i)[A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,}`)

// Common phone shapes: +44 20 7946 0958, (020) 7946-0958, 07700900123.
// Only digits, spaces, dashes, dots, brackets and a leading plus; at least 9 digits.
var rePhone = regexp.MustCompile(`\+?\(?\d[\d\s\-.()]{7,}\d`)

// RedactPII masks email addresses and phone numbers in free text.
func RedactPII(s string) string {
	if s == "" {
		return s
	}
	s = reEmail.ReplaceAllString(s, "[redacted email]")
	s = rePhone.ReplaceAllString(s, "[redacted phone]")
	return s
}

// Summary shortens s to at most max runes, cutting at a word boundary when
// one is available, and appends an ellipsis.
func Summary(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	i := max
	for i > 0 && r[i] != ' ' {
		i--
	}
	if i <= 0 {
		i = max
	}
	return string(r[:i]) + "…"
}
