/*
Package server implements msgpack IPC for place predictions.

The server exposes a places.Service over a byte stream, normally stdin/stdout,
so editors and other processes can use the local index without linking it.

# IPC

Clients write one msgpack map per request and read one map per response. On
start the server writes a ready message with an empty id:

	{"id": "", "st": "ready"}

Prediction requests use this structure; only "p" is required:

	{"id": "req_001", "op": "predict", "p": "wel", "l": 5, "cc": "nz", "ty": ["locality"]}

The server answers with the provider status, the predictions and the time
taken in microseconds:

	{"id": "req_001", "st": "OK", "s": [{"id": "0109", "d": "Wellington, Wellington, NZ", ...}], "c": 1, "t": 145}

Failures never close the stream; they are reported through "st" and "e":

	{"id": "req_002", "st": "OVER_QUERY_LIMIT", "c": 0, "t": 3, "e": "rate limit exceeded"}

The "health" op answers OK, and "stats" adds request counters and the
provider's own figures under "x".
*/
package server

import "github.com/bastiangx/placeserve/pkg/places"

// Ops understood by the server. An empty op is a prediction.
const (
	OpPredict = "predict"
	OpHealth  = "health"
	OpStats   = "stats"
)

// StatusReady is sent once when the server starts.
const StatusReady = "ready"

// PredictionRequest is one client message.
type PredictionRequest struct {
	ID      string   `msgpack:"id"`
	Op      string   `msgpack:"op,omitempty"`
	Input   string   `msgpack:"p,omitempty"`
	Limit   int      `msgpack:"l,omitempty"`
	Offset  int      `msgpack:"o,omitempty"`
	Types   []string `msgpack:"ty,omitempty"`
	Country string   `msgpack:"cc,omitempty"`
}

// PredictionResponse answers one request.
type PredictionResponse struct {
	ID          string              `msgpack:"id"`
	Status      string              `msgpack:"st"`
	Predictions []places.Prediction `msgpack:"s,omitempty"`
	Count       int                 `msgpack:"c"`
	TimeTaken   int64               `msgpack:"t"`
	Error       string              `msgpack:"e,omitempty"`
	Stats       map[string]int      `msgpack:"x,omitempty"`
}

// StatsProvider is implemented by services that can describe themselves.
type StatsProvider interface {
	Stats() map[string]int
}
