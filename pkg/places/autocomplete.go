package places

import (
	"github.com/bastiangx/placeserve/pkg/autocomplete"
)

// Autocomplete is an autocomplete controller for predictions, fed by an Adapter.
type Autocomplete struct {
	*autocomplete.Controller[Prediction]
	adapter *Adapter
}

// New builds an adapter from adapterOpts and a controller on top of it.
func New(adapterOpts []AdapterOption, controllerOpts ...autocomplete.Option) *Autocomplete {
	adapter := NewAdapter(adapterOpts...)
	return &Autocomplete{
		Controller: autocomplete.New(adapter.FetchPredictions, adapter, controllerOpts...),
		adapter:    adapter,
	}
}

// Adapter returns the adapter behind the controller.
func (a *Autocomplete) Adapter() *Adapter {
	return a.adapter
}

// Close tears down the controller and releases the adapter's loader
// registration.
func (a *Autocomplete) Close() {
	a.Controller.Close()
	a.adapter.Close()
}
