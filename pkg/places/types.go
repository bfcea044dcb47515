// Package places defines the place-suggestion provider contract and the adapter
// that lazily initializes a provider client for an autocomplete controller.
package places

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Status codes reported by a Service. Failures are always encoded here, never
// as Go errors.
const (
	StatusOK             = "OK"
	StatusZeroResults    = "ZERO_RESULTS"
	StatusInvalidRequest = "INVALID_REQUEST"
	StatusOverQueryLimit = "OVER_QUERY_LIMIT"
	StatusNotReady       = "NOT_READY"
	StatusUnknownError   = "UNKNOWN_ERROR"
)

// ErrLibraryNotLoaded is logged when an adapter initializes without any
// places library to build its service from.
var ErrLibraryNotLoaded = errors.New("places library must be loaded before the adapter can serve predictions")

// Substring marks a matched range in Prediction.MainText.
type Substring struct {
	Offset int `msgpack:"o" json:"offset"`
	Length int `msgpack:"l" json:"length"`
}

// Prediction is one candidate place for an input.
type Prediction struct {
	PlaceID           string      `msgpack:"id" json:"place_id"`
	Description       string      `msgpack:"d" json:"description"`
	MainText          string      `msgpack:"m" json:"main_text"`
	SecondaryText     string      `msgpack:"sd,omitempty" json:"secondary_text,omitempty"`
	Types             []string    `msgpack:"ty,omitempty" json:"types,omitempty"`
	MatchedSubstrings []Substring `msgpack:"ms,omitempty" json:"matched_substrings,omitempty"`
}

// RequestOptions are the per-adapter lookup options merged into every request.
type RequestOptions struct {
	// Types restricts results to places carrying at least one of these types.
	Types []string
	// Country restricts results to one country code, case-insensitive.
	Country string
	// Limit caps the number of predictions; zero uses the provider default.
	Limit int
	// Offset is the number of input characters the provider should use.
	// Zero, or an offset past the end, uses the whole input.
	Offset int
}

// Request is a single lookup.
type Request struct {
	RequestOptions
	Input string
}

// Service answers prediction requests. Implementations must always return;
// a nil slice is allowed for any non-OK status.
type Service interface {
	GetPlacePredictions(ctx context.Context, req Request) ([]Prediction, string)
}

// Library constructs services. It stands for a provider client library that
// may only become available some time after start-up.
type Library interface {
	NewAutocompleteService() Service
}

// LibraryFunc adapts a constructor function to Library.
type LibraryFunc func() Service

// NewAutocompleteService calls f.
func (f LibraryFunc) NewAutocompleteService() Service {
	return f()
}
