package autocomplete

import (
	"sync"
	"time"

	"github.com/bastiangx/placeserve/internal/logger"
	"github.com/bastiangx/placeserve/pkg/debounce"
	"github.com/charmbracelet/log"
)

// Option configures a Controller at construction time.
type Option func(*settings)

type settings struct {
	debounce     time.Duration
	defaultValue string
	log          *log.Logger
}

// WithDebounce sets the quiescence window before a fetch fires.
// Negative values are treated as zero.
func WithDebounce(d time.Duration) Option {
	return func(s *settings) {
		s.debounce = d
	}
}

// WithDefaultValue sets the initial input value.
func WithDefaultValue(v string) Option {
	return func(s *settings) {
		s.defaultValue = v
	}
}

// WithLogger replaces the controller's logger.
func WithLogger(l *log.Logger) Option {
	return func(s *settings) {
		s.log = l
	}
}

// Controller tracks an input value and the suggestions fetched for it.
type Controller[S any] struct {
	mu          sync.Mutex
	value       string
	suggestions Suggestions[S]

	ready       Readiness
	fetch       FetchFunc[S]
	predictions *debounce.Debouncer[string]

	listenersMu sync.Mutex
	listeners   map[uint64]func(Snapshot[S])
	nextID      uint64

	log *log.Logger
}

// New creates a controller around fetch. The debouncer and fetch function are
// fixed for the controller's lifetime. A nil ready is treated as AlwaysReady.
func New[S any](fetch FetchFunc[S], ready Readiness, opts ...Option) *Controller[S] {
	s := settings{
		debounce:     DefaultDebounce,
		defaultValue: DefaultValue,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.log == nil {
		s.log = logger.New("autocomplete")
	}
	if ready == nil {
		ready = AlwaysReady
	}

	c := &Controller[S]{
		value:       s.defaultValue,
		suggestions: emptySuggestions[S](),
		ready:       ready,
		fetch:       fetch,
		listeners:   make(map[uint64]func(Snapshot[S])),
		log:         s.log,
	}
	c.predictions = debounce.New(s.debounce, c.runFetch)

	return c
}

// Ready returns the provider's readiness verbatim.
func (c *Controller[S]) Ready() bool {
	return c.ready.Ready()
}

// Value returns the current input value.
func (c *Controller[S]) Value() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Suggestions returns a copy of the current suggestion state.
func (c *Controller[S]) Suggestions() Suggestions[S] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suggestionsLocked()
}

// Snapshot returns readiness, value and suggestions together.
func (c *Controller[S]) Snapshot() Snapshot[S] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SetValue sets the input value. With shouldFetch, a non-empty text schedules
// a debounced fetch, and an empty text clears suggestions right away and drops
// any fetch still waiting on the debounce window. Without shouldFetch only the
// value changes.
func (c *Controller[S]) SetValue(text string, shouldFetch bool) {
	c.mu.Lock()
	c.value = text
	if shouldFetch && text == "" {
		c.predictions.Cancel()
		c.suggestions = emptySuggestions[S]()
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	if shouldFetch && text != "" {
		c.log.Debug("scheduling fetch", "value", text, "wait", c.predictions.Wait())
		c.predictions.Call(text)
	}
}

// ClearSuggestions resets suggestions to the empty state. It does not cancel a
// fetch that is already running; that fetch still overwrites the state when it
// returns.
func (c *Controller[S]) ClearSuggestions() {
	c.mu.Lock()
	c.suggestions = emptySuggestions[S]()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// Subscribe registers fn to receive a snapshot after every state change.
// Calls happen outside the controller's lock, possibly from timer goroutines.
func (c *Controller[S]) Subscribe(fn func(Snapshot[S])) (unsubscribe func()) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		delete(c.listeners, id)
	}
}

// Close stops scheduling fetches and drops every subscriber. A fetch that is
// already running still updates the state.
func (c *Controller[S]) Close() {
	c.predictions.Stop()

	c.listenersMu.Lock()
	c.listeners = make(map[uint64]func(Snapshot[S]))
	c.listenersMu.Unlock()
}

// runFetch is the debounced body: mark loading, fetch, replace the state.
func (c *Controller[S]) runFetch(value string) {
	c.mu.Lock()
	// keep the previous status and data while loading
	c.suggestions.Loading = true
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	start := time.Now()
	resp := c.fetch(value)
	data := resp.Data
	if data == nil {
		data = []S{}
	}
	c.log.Debug("fetch resolved", "value", value, "status", resp.Status, "count", len(data), "took", time.Since(start))

	c.mu.Lock()
	c.suggestions = Suggestions[S]{Loading: false, Status: resp.Status, Data: data}
	snap = c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

func (c *Controller[S]) suggestionsLocked() Suggestions[S] {
	data := make([]S, len(c.suggestions.Data))
	copy(data, c.suggestions.Data)
	return Suggestions[S]{
		Loading: c.suggestions.Loading,
		Status:  c.suggestions.Status,
		Data:    data,
	}
}

func (c *Controller[S]) snapshotLocked() Snapshot[S] {
	return Snapshot[S]{
		Ready:       c.ready.Ready(),
		Value:       c.value,
		Suggestions: c.suggestionsLocked(),
	}
}

func (c *Controller[S]) publish(snap Snapshot[S]) {
	c.listenersMu.Lock()
	fns := make([]func(Snapshot[S]), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
