package utils

// SeenFilter drops keys that were already seen. It is not safe for
// concurrent use; build one per lookup.
type SeenFilter struct {
	seen map[string]struct{}
}

// NewSeenFilter creates a filter that already excludes the given keys.
func NewSeenFilter(exclude ...string) *SeenFilter {
	seen := make(map[string]struct{}, len(exclude))
	for _, k := range exclude {
		seen[k] = struct{}{}
	}
	return &SeenFilter{seen: seen}
}

// ShouldInclude reports whether key is new, marking it seen.
func (f *SeenFilter) ShouldInclude(key string) bool {
	if _, ok := f.seen[key]; ok {
		return false
	}
	f.seen[key] = struct{}{}
	return true
}

// Len returns the number of keys seen so far.
func (f *SeenFilter) Len() int {
	return len(f.seen)
}
