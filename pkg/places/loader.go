package places

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Loader hands a places library to the adapters waiting for it.
//
// Adapters register a one-shot callback under their own key. Load stores the
// library and fires each registered callback exactly once; a callback that is
// deregistered first is never fired.
type Loader struct {
	mu      sync.Mutex
	library Library
	pending map[string]func(Library)
}

// NewLoader creates a loader with no library.
func NewLoader() *Loader {
	return &Loader{
		pending: make(map[string]func(Library)),
	}
}

// NewLoadedLoader creates a loader that already holds lib.
func NewLoadedLoader(lib Library) *Loader {
	l := NewLoader()
	l.library = lib
	return l
}

// Library returns the loaded library, or nil.
func (l *Loader) Library() Library {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.library
}

// Loaded reports whether Load has been called with a non-nil library.
func (l *Loader) Loaded() bool {
	return l.Library() != nil
}

// Load stores lib and fires every pending callback once, outside the lock.
// Loading nil is ignored.
func (l *Loader) Load(lib Library) {
	if lib == nil {
		return
	}

	l.mu.Lock()
	l.library = lib
	callbacks := l.pending
	l.pending = make(map[string]func(Library))
	l.mu.Unlock()

	log.Debugf("places library loaded, notifying %d waiting adapters", len(callbacks))
	for _, fn := range callbacks {
		fn(lib)
	}
}

// OnLoad registers fn under key. If a library is already loaded fn runs right
// away and nothing stays registered. Registering a key twice replaces the
// earlier callback. The returned func deregisters fn and is safe to call more
// than once.
func (l *Loader) OnLoad(key string, fn func(Library)) (deregister func()) {
	l.mu.Lock()
	lib := l.library
	if lib == nil {
		l.pending[key] = fn
	}
	l.mu.Unlock()

	if lib != nil {
		fn(lib)
		return func() {}
	}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.pending, key)
	}
}

// Pending returns the number of callbacks waiting for a library.
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}
