package index

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// preference: `closest distance > highest rank > shortest key`
func TestFuzzyMatcher(t *testing.T) {
	keys := map[string]int{
		"wellington":   90,
		"wellsford":    30,
		"whanganui":    40,
		"whangarei":    50,
		"hamilton":     70,
		"hastings":     60,
		"napier":       55,
		"nelson":       45,
		"new plymouth": 35,
		"auckland":     100,
	}
	matcher := NewFuzzyMatcher(keys)
	assert.Equal(t, len(keys), matcher.Len())

	testCases := []struct {
		input          string
		expectedOutput string
		corrected      bool
		description    string
	}{
		{"wellington", "wellington", false, "Exact key"},
		{"Wellington", "wellington", false, "Case insensitive"},
		{"wel", "wel", false, "Already a prefix"},
		{"welingt", "wellingt", true, "Missing letter mid prefix"},
		{"hamiltn", "hamilton", true, "Ties keep the longer prefix"},
		{"hastngs", "hastings", true, "Missing vowel"},
		{"aukland", "auckland", true, "Missing consonant"},
		{"whangr", "whangar", true, "Higher rank wins a distance tie"},
		{"new plymuth", "new plymouth", true, "Multi word key"},
		{"w", "w", false, "Too short to correct"},
		{"wwww", "wwww", false, "Repetitive input"},
		{"gamilton", "gamilton", false, "Different first letter"},
		{"hxxxlton", "hxxxlton", false, "Beyond MaxCorrectionDistance"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			result, corrected := matcher.SuggestCorrection(tc.input)
			assert.Equal(t, tc.expectedOutput, result, "input %q", tc.input)
			assert.Equal(t, tc.corrected, corrected, "input %q", tc.input)
		})
	}
}

func TestFuzzyMatcher_Empty(t *testing.T) {
	matcher := NewFuzzyMatcher(nil)
	result, corrected := matcher.SuggestCorrection("test")

	assert.Equal(t, "test", result)
	assert.False(t, corrected)
}

func TestFuzzyMatcher_DistanceBeatsRank(t *testing.T) {
	matcher := NewFuzzyMatcher(map[string]int{
		"napier": 10,
		"nabiez": 1000,
	})

	result, corrected := matcher.SuggestCorrection("napiex")
	assert.True(t, corrected)
	assert.Equal(t, "napier", result)
}

func TestFuzzyMatcher_AddKeepsHighestRank(t *testing.T) {
	matcher := NewFuzzyMatcher(nil)
	matcher.Add("whangarei", 10)
	matcher.Add("whanganui", 40)
	matcher.Add("whangarei", 50)
	matcher.Add("whangarei", 20)

	assert.Equal(t, 2, matcher.Len())
	result, _ := matcher.SuggestCorrection("whangr")
	assert.Equal(t, "whangar", result)
}

func TestLevenshteinDistance(t *testing.T) {
	testCases := []struct {
		a        string
		b        string
		expected int
	}{
		{"", "", 0},
		{"a", "", 1},
		{"", "a", 1},
		{"kitten", "sitting", 3},
		{"saturday", "sunday", 3},
		{"book", "back", 2},
		{"book", "books", 1},
		{"ōtaki", "otaki", 1},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%s→%s", tc.a, tc.b), func(t *testing.T) {
			assert.Equal(t, tc.expected, levenshteinDistance([]rune(tc.a), []rune(tc.b)))
		})
	}
}

func BenchmarkSuggestCorrection(b *testing.B) {
	keys := make(map[string]int, 1000)
	for i := 0; i < 1000; i++ {
		keys[fmt.Sprintf("place%d", i)] = i
	}
	matcher := NewFuzzyMatcher(keys)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		inputs := []string{"plce123", "place1", "placee2", "pllace3", "plaec4"}
		matcher.SuggestCorrection(inputs[i%len(inputs)])
	}
}
