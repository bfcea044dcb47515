package places

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/bastiangx/placeserve/internal/logger"
	"github.com/bastiangx/placeserve/pkg/autocomplete"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLibrary gives the adapter its own library, taking precedence over the
// loader's.
func WithLibrary(lib Library) AdapterOption {
	return func(a *Adapter) {
		a.library = lib
	}
}

// WithLoader sets the loader the adapter falls back to, and waits on when
// deferred loading is enabled.
func WithLoader(l *Loader) AdapterOption {
	return func(a *Adapter) {
		a.loader = l
	}
}

// WithRequestOptions sets the options merged into every request.
func WithRequestOptions(opts RequestOptions) AdapterOption {
	return func(a *Adapter) {
		a.requestOptions = opts
	}
}

// WithDeferredLoad makes an adapter with no library available wait for the
// loader instead of giving up during construction.
func WithDeferredLoad() AdapterOption {
	return func(a *Adapter) {
		a.deferred = true
	}
}

// WithAdapterLogger replaces the adapter's logger.
func WithAdapterLogger(l *log.Logger) AdapterOption {
	return func(a *Adapter) {
		a.log = l
	}
}

// Adapter lazily builds a Service from a Library and exposes it as an
// autocomplete fetch function plus a readiness flag.
type Adapter struct {
	id       string
	library  Library
	loader   *Loader
	deferred bool

	ready   atomic.Bool
	mu      sync.RWMutex
	service Service
	// requestOptions is read on every fetch so updates apply to the next one
	requestOptions RequestOptions

	deregister func()
	log        *log.Logger
}

// NewAdapter creates an adapter and starts its initialization.
//
// With no library of its own and nothing loaded yet, a deferred adapter
// registers with the loader and becomes ready once a library arrives. In every
// other case it initializes immediately, staying not ready if there is no
// library at all.
func NewAdapter(opts ...AdapterOption) *Adapter {
	a := &Adapter{
		id:         uuid.NewString(),
		deregister: func() {},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.loader == nil {
		a.loader = NewLoader()
	}
	if a.log == nil {
		a.log = logger.New("places")
	}

	if a.library == nil && !a.loader.Loaded() && a.deferred {
		a.log.Debug("waiting for places library", "adapter", a.id)
		a.deregister = a.loader.OnLoad(a.id, a.initWith)
	} else {
		a.init()
	}

	return a
}

// ID returns the key the adapter registers with its loader.
func (a *Adapter) ID() string {
	return a.id
}

// Ready reports whether the service has been built.
func (a *Adapter) Ready() bool {
	return a.ready.Load()
}

// RequestOptions returns the options merged into the next request.
func (a *Adapter) RequestOptions() RequestOptions {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.requestOptions
}

// SetRequestOptions replaces the options used by later fetches.
func (a *Adapter) SetRequestOptions(opts RequestOptions) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requestOptions = opts
}

// FetchPredictions looks up input with the current request options. Before
// the adapter is ready it returns StatusNotReady without touching any service.
func (a *Adapter) FetchPredictions(input string) autocomplete.Response[Prediction] {
	a.mu.RLock()
	svc := a.service
	req := Request{RequestOptions: a.requestOptions, Input: input}
	a.mu.RUnlock()

	if svc == nil || !a.Ready() {
		a.log.Warn("fetch before places service is ready", "input", input)
		return autocomplete.Response[Prediction]{Status: StatusNotReady}
	}

	data, status := svc.GetPlacePredictions(context.Background(), req)
	return autocomplete.Response[Prediction]{Data: data, Status: status}
}

// Close drops the adapter's registration with its loader, if still pending.
func (a *Adapter) Close() {
	a.deregister()
}

func (a *Adapter) init() {
	lib := a.library
	if lib == nil {
		lib = a.loader.Library()
	}
	if lib == nil {
		a.log.Error(ErrLibraryNotLoaded)
		return
	}
	a.initWith(lib)
}

func (a *Adapter) initWith(lib Library) {
	// an explicit library still wins over whatever the loader delivered
	if a.library != nil {
		lib = a.library
	}
	svc := lib.NewAutocompleteService()

	a.mu.Lock()
	a.service = svc
	a.mu.Unlock()
	a.ready.Store(true)

	a.log.Debug("places service ready", "adapter", a.id)
}
