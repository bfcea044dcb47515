// Package index is the local place provider: a patricia trie over place names
// and every word suffix of them, with a typo-tolerant fallback.
package index

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/bastiangx/placeserve/pkg/places"
	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/tchap/go-patricia/v2/patricia"
)

// ErrInvalidPlace is returned for places without an id or a name, or with an
// id that is already indexed.
var ErrInvalidPlace = errors.New("invalid place")

// Place is one indexed location.
type Place struct {
	ID      string   `toml:"id" msgpack:"id"`
	Name    string   `toml:"name" msgpack:"n"`
	Region  string   `toml:"region,omitempty" msgpack:"r,omitempty"`
	Country string   `toml:"country,omitempty" msgpack:"c,omitempty"`
	Types   []string `toml:"types,omitempty" msgpack:"ty,omitempty"`
	Rank    int      `toml:"rank,omitempty" msgpack:"rk,omitempty"`
}

// Options bound lookups.
type Options struct {
	// MinPrefix and MaxPrefix bound the input length in runes.
	MinPrefix int
	MaxPrefix int
	// DefaultLimit applies when a request has no limit; MaxLimit caps any limit.
	DefaultLimit int
	MaxLimit     int
	// Fuzzy enables the correction retry when a lookup has no results.
	Fuzzy bool
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		MinPrefix:    1,
		MaxPrefix:    60,
		DefaultLimit: 5,
		MaxLimit:     20,
		Fuzzy:        true,
	}
}

func (o Options) sanitized() Options {
	def := DefaultOptions()
	o.MinPrefix = utils.OrDefault(o.MinPrefix, def.MinPrefix)
	o.MaxPrefix = utils.OrDefault(o.MaxPrefix, def.MaxPrefix)
	if o.MaxPrefix < o.MinPrefix {
		o.MaxPrefix = o.MinPrefix
	}
	o.MaxLimit = utils.OrDefault(o.MaxLimit, def.MaxLimit)
	o.DefaultLimit = utils.ClampInt(utils.OrDefault(o.DefaultLimit, def.DefaultLimit), 1, o.MaxLimit)
	return o
}

// entry points a trie key back at a place; offset is the rune offset of the
// key inside the lower-cased place name.
type entry struct {
	id     string
	offset int
}

// Index is safe for concurrent lookups and additions.
type Index struct {
	mu     sync.RWMutex
	opts   Options
	trie   *patricia.Trie
	places map[string]Place
	fuzzy  *FuzzyMatcher
	keys   int
}

// New creates an empty index. Non-positive numeric options fall back to their
// defaults.
func New(opts Options) *Index {
	return &Index{
		opts:   opts.sanitized(),
		trie:   patricia.NewTrie(),
		places: make(map[string]Place),
		fuzzy:  NewFuzzyMatcher(nil),
	}
}

// Options returns the active options.
func (ix *Index) Options() Options {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.opts
}

// SetOptions replaces the options for later lookups.
func (ix *Index) SetOptions(opts Options) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.opts = opts.sanitized()
}

// Add indexes p under its full name and under every word suffix of it, so
// "Lower Hutt" is found by both "low" and "hut".
func (ix *Index) Add(p Place) error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.Wrap(ErrInvalidPlace, "missing id")
	}
	if strings.TrimSpace(p.Name) == "" {
		return errors.Wrapf(ErrInvalidPlace, "place %s has no name", p.ID)
	}

	if len(p.Types) > 0 {
		types := make([]string, 0, len(p.Types))
		for _, t := range p.Types {
			types = append(types, strings.ToLower(strings.TrimSpace(t)))
		}
		p.Types = types
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, exists := ix.places[p.ID]; exists {
		return errors.Wrapf(ErrInvalidPlace, "duplicate id %s", p.ID)
	}
	ix.places[p.ID] = p

	lower := strings.ToLower(p.Name)
	for _, start := range utils.WordStarts(lower) {
		key := utils.NormalizeInput(utils.SkipRunes(lower, start))
		if key == "" {
			continue
		}

		var entries []entry
		if item := ix.trie.Get(patricia.Prefix(key)); item != nil {
			entries = item.([]entry)
		} else {
			ix.keys++
		}
		ix.trie.Set(patricia.Prefix(key), append(entries, entry{id: p.ID, offset: start}))
		ix.fuzzy.Add(key, p.Rank)
	}

	return nil
}

// AddAll adds every place, stopping at the first invalid one.
func (ix *Index) AddAll(ps []Place) error {
	for _, p := range ps {
		if err := ix.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of indexed places.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.places)
}

// Get returns the place with the given id.
func (ix *Index) Get(id string) (Place, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	p, ok := ix.places[id]
	return p, ok
}

// Stats reports index sizes.
func (ix *Index) Stats() map[string]int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	fuzzy := 0
	if ix.opts.Fuzzy {
		fuzzy = 1
	}
	return map[string]int{
		"places": len(ix.places),
		"keys":   ix.keys,
		"fuzzy":  fuzzy,
	}
}

// NewAutocompleteService returns the index itself; it needs no client setup.
func (ix *Index) NewAutocompleteService() places.Service {
	return ix
}

// GetPlacePredictions answers req from the index. It never fails: invalid
// input yields INVALID_REQUEST, no hits ZERO_RESULTS and a canceled context
// UNKNOWN_ERROR.
func (ix *Index) GetPlacePredictions(ctx context.Context, req places.Request) ([]places.Prediction, string) {
	if ctx.Err() != nil {
		return nil, places.StatusUnknownError
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	query := utils.NormalizeInput(utils.TruncateRunes(req.Input, req.Offset))
	n := utf8.RuneCountInString(query)
	if !utils.IsValidInput(query) || n < ix.opts.MinPrefix || n > ix.opts.MaxPrefix {
		log.Debugf("rejecting input %q (%d runes)", req.Input, n)
		return nil, places.StatusInvalidRequest
	}

	limit := utils.ClampInt(utils.OrDefault(req.Limit, ix.opts.DefaultLimit), 1, ix.opts.MaxLimit)

	preds := ix.lookup(query, req.RequestOptions, limit)
	if len(preds) == 0 && ix.opts.Fuzzy {
		if corrected, ok := ix.fuzzy.SuggestCorrection(query); ok {
			log.Debugf("no places for %q, retrying as %q", query, corrected)
			preds = ix.lookup(corrected, req.RequestOptions, limit)
		}
	}

	if len(preds) == 0 {
		return nil, places.StatusZeroResults
	}
	return preds, places.StatusOK
}

type hit struct {
	place  Place
	offset int
}

func (ix *Index) lookup(query string, opts places.RequestOptions, limit int) []places.Prediction {
	var hits []hit
	// a place reached through several keys keeps its leftmost match
	pos := make(map[string]int)

	err := ix.trie.VisitSubtree(patricia.Prefix(query), func(_ patricia.Prefix, item patricia.Item) error {
		for _, e := range item.([]entry) {
			if i, seen := pos[e.id]; seen {
				if e.offset < hits[i].offset {
					hits[i].offset = e.offset
				}
				continue
			}
			p := ix.places[e.id]
			if !matchesFilters(p, opts) {
				continue
			}
			pos[e.id] = len(hits)
			hits = append(hits, hit{place: p, offset: e.offset})
		}
		return nil
	})
	if err != nil {
		log.Errorf("Error visiting trie subtree: %v", err)
		return nil
	}

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i].place, hits[j].place
		if a.Rank != b.Rank {
			return a.Rank > b.Rank
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	qlen := utf8.RuneCountInString(query)
	preds := make([]places.Prediction, 0, len(hits))
	for _, h := range hits {
		preds = append(preds, toPrediction(h.place, h.offset, qlen))
	}
	return preds
}

func matchesFilters(p Place, opts places.RequestOptions) bool {
	if opts.Country != "" && !strings.EqualFold(p.Country, opts.Country) {
		return false
	}
	if len(opts.Types) == 0 {
		return true
	}
	for _, want := range opts.Types {
		for _, have := range p.Types {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

func toPrediction(p Place, offset, qlen int) places.Prediction {
	var secondary []string
	for _, s := range []string{p.Region, p.Country} {
		if s != "" {
			secondary = append(secondary, s)
		}
	}
	secondaryText := strings.Join(secondary, ", ")

	description := p.Name
	if secondaryText != "" {
		description += ", " + secondaryText
	}

	length := min(qlen, utf8.RuneCountInString(p.Name)-offset)

	return places.Prediction{
		PlaceID:           p.ID,
		Description:       description,
		MainText:          p.Name,
		SecondaryText:     secondaryText,
		Types:             append([]string(nil), p.Types...),
		MatchedSubstrings: []places.Substring{{Offset: offset, Length: length}},
	}
}
