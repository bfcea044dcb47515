/*
Package autocomplete binds free-text input to a debounced suggestion lookup.

A Controller owns the current input value and the suggestion state a
presentation layer renders. Every SetValue updates the value right away and
schedules one trailing fetch through the caller supplied FetchFunc; the result
lands in the controller's state and is pushed to subscribers.

	ctl := autocomplete.New(fetch, ready, autocomplete.WithDebounce(150*time.Millisecond))
	unsubscribe := ctl.Subscribe(func(s autocomplete.Snapshot[Place]) { render(s) })
	defer unsubscribe()

	ctl.SetValue("Welli", true)

# Suggestion state

Suggestions start out as {Loading: false, Status: "", Data: []}. When a
debounced fetch fires, Loading flips to true while the previous Status and
Data are held over, so a UI can dim stale results instead of flashing an empty
list. When the fetch returns, the state is replaced wholesale with
{Loading: false, Status, Data}.

A failed lookup is not an error here: providers encode failures in Status and
the controller stores whatever they return. A nil Data is stored as an empty
slice.

# Ordering

Fetches are never canceled and carry no generation stamp. A slow fetch for an
older value can resolve after a newer one and overwrite its result; the last
fetch to resolve wins. ClearSuggestions behaves the same way: a fetch already
in flight still lands afterwards.
*/
package autocomplete

import "time"

const (
	// DefaultDebounce is the quiescence window used when none is configured.
	DefaultDebounce = 200 * time.Millisecond
	// DefaultValue is the initial input value used when none is configured.
	DefaultValue = ""
)

// Suggestions is the lookup state exposed to the presentation layer.
// Data is never nil.
type Suggestions[S any] struct {
	Loading bool
	Status  string
	Data    []S
}

// Response is what a FetchFunc resolves to. Data may be nil.
type Response[S any] struct {
	Data   []S
	Status string
}

// FetchFunc looks up suggestions for input. It must always return; provider
// failures are reported through Response.Status.
type FetchFunc[S any] func(input string) Response[S]

// Readiness reports whether the provider behind a FetchFunc is initialized.
type Readiness interface {
	Ready() bool
}

// ReadyFunc adapts a plain function to Readiness.
type ReadyFunc func() bool

// Ready calls f.
func (f ReadyFunc) Ready() bool {
	return f()
}

// AlwaysReady is a Readiness for providers that need no initialization.
var AlwaysReady Readiness = ReadyFunc(func() bool { return true })

// Snapshot is a consistent view of a controller, delivered to subscribers.
type Snapshot[S any] struct {
	Ready       bool
	Value       string
	Suggestions Suggestions[S]
}

func emptySuggestions[S any]() Suggestions[S] {
	return Suggestions[S]{Loading: false, Status: "", Data: []S{}}
}
