package index

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bastiangx/placeserve/internal/utils"
)

// MaxCorrectionDistance is the largest edit distance a correction may have.
const MaxCorrectionDistance = 2

// FuzzyMatcher corrects mistyped prefixes against the indexed keys.
//
// Input is treated as a prefix still being typed, so it is compared against
// key prefixes of about the same length rather than whole keys; on a tie the
// longer prefix is kept.
// Preference: closest distance > highest rank > shortest key.
type FuzzyMatcher struct {
	keys    []string
	keyRank map[string]int
}

// NewFuzzyMatcher creates a matcher over keys and their ranks.
func NewFuzzyMatcher(keys map[string]int) *FuzzyMatcher {
	fm := &FuzzyMatcher{keyRank: make(map[string]int, len(keys))}
	for k, r := range keys {
		fm.Add(k, r)
	}
	return fm
}

// Add registers key, keeping the highest rank seen for it.
func (fm *FuzzyMatcher) Add(key string, rank int) {
	if old, ok := fm.keyRank[key]; ok {
		if rank > old {
			fm.keyRank[key] = rank
		}
		return
	}
	fm.keyRank[key] = rank
	fm.keys = append(fm.keys, key)
}

// Len returns the number of keys.
func (fm *FuzzyMatcher) Len() int {
	return len(fm.keys)
}

// Match is a candidate correction.
type Match struct {
	Key      string
	Prefix   string
	Distance int
	Rank     int
}

// SuggestCorrection returns the most likely intended prefix for input. The
// bool is false when input is too short, already a prefix of some key, or has
// no candidate within MaxCorrectionDistance.
func (fm *FuzzyMatcher) SuggestCorrection(input string) (string, bool) {
	input = strings.ToLower(input)
	if utf8.RuneCountInString(input) < 2 || utils.IsRepetitive(input) {
		return input, false
	}

	matches := fm.findMatches(input)
	if len(matches) == 0 || matches[0].Distance == 0 {
		return input, false
	}
	return matches[0].Prefix, true
}

// findMatches scores every key sharing input's first rune, best first.
func (fm *FuzzyMatcher) findMatches(input string) []Match {
	pattern := []rune(input)
	var matches []Match
	for _, key := range fm.keys {
		candidate := []rune(key)
		if len(candidate) == 0 || !utils.EqualFold(candidate[0], pattern[0]) {
			continue
		}

		best, bestLen := MaxCorrectionDistance+1, 0
		for l := len(pattern) - 1; l <= len(pattern)+1; l++ {
			if l < 1 || l > len(candidate) {
				continue
			}
			if d := levenshteinDistance(pattern, candidate[:l]); d <= best {
				best, bestLen = d, l
			}
		}
		if best > MaxCorrectionDistance {
			continue
		}

		matches = append(matches, Match{
			Key:      key,
			Prefix:   string(candidate[:bestLen]),
			Distance: best,
			Rank:     fm.keyRank[key],
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Rank != b.Rank {
			return a.Rank > b.Rank
		}
		if len(a.Key) != len(b.Key) {
			return len(a.Key) < len(b.Key)
		}
		return a.Key < b.Key
	})
	return matches
}

// levenshteinDistance counts single-rune insertions, deletions and
// substitutions between a and b.
func levenshteinDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
