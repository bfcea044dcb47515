package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsSeparator reports whether r splits words in a place name.
func IsSeparator(r rune) bool {
	switch r {
	case ' ', '_', '-', '.', '/', ',':
		return true
	}
	return false
}

// EqualFold reports whether two runes are equal under simple case folding.
func EqualFold(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}

// IsValidInput checks if input can be looked up at all.
// Place names may carry digits and punctuation ("10 Downing St", "St. Ives"),
// so only empty input, input without any letter or digit and input with
// control characters are rejected.
func IsValidInput(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}

	hasAlnum := false
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			hasAlnum = true
		}
	}
	return hasAlnum
}

// IsRepetitive reports whether s is one rune repeated at least three times,
// like "aaa".
func IsRepetitive(s string) bool {
	if utf8.RuneCountInString(s) <= 2 {
		return false
	}
	first, _ := utf8.DecodeRuneInString(s)
	for _, r := range s {
		if r != first {
			return false
		}
	}
	return true
}
