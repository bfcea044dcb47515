package utils

import (
	"strings"
	"unicode/utf8"
)

// NormalizeInput lower-cases s, trims it and collapses runs of whitespace
// into single spaces.
func NormalizeInput(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// WordStarts returns the rune offset of every word in s, where words are
// split on separators.
func WordStarts(s string) []int {
	var starts []int
	prevSep := true
	i := 0
	for _, r := range s {
		if IsSeparator(r) {
			prevSep = true
		} else {
			if prevSep {
				starts = append(starts, i)
			}
			prevSep = false
		}
		i++
	}
	return starts
}

// TruncateRunes returns the first n runes of s. A non-positive n, or one past
// the end, leaves s unchanged.
func TruncateRunes(s string, n int) string {
	if n <= 0 || n >= utf8.RuneCountInString(s) {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// SkipRunes drops the first n runes of s.
func SkipRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[pos:]
		}
		i++
	}
	return ""
}
