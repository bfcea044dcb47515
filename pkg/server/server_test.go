package server

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/bastiangx/placeserve/pkg/config"
	"github.com/bastiangx/placeserve/pkg/index"
	"github.com/bastiangx/placeserve/pkg/places"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type pipeClient struct {
	w    *io.PipeWriter
	enc  *msgpack.Encoder
	dec  *msgpack.Decoder
	done chan error
}

func newIndex(t *testing.T) *index.Index {
	t.Helper()
	ix := index.New(index.DefaultOptions())
	require.NoError(t, ix.AddAll([]index.Place{
		{ID: "0109", Name: "Wellington", Region: "Wellington", Country: "NZ", Rank: 90},
		{ID: "0200", Name: "Wellington Airport", Region: "Wellington", Country: "NZ", Types: []string{"airport"}, Rank: 40},
		{ID: "0300", Name: "Wellington", Region: "New South Wales", Country: "AU", Rank: 20},
	}))
	return ix
}

func startServer(t *testing.T, svc places.Service, cfg *config.Config) (*Server, *pipeClient) {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	srv := NewServerWithIO(svc, cfg, reqR, respW)
	c := &pipeClient{
		w:    reqW,
		enc:  msgpack.NewEncoder(reqW),
		dec:  msgpack.NewDecoder(respR),
		done: make(chan error, 1),
	}
	go func() {
		err := srv.Serve(context.Background())
		reqR.Close()
		respW.Close()
		c.done <- err
	}()
	t.Cleanup(func() { reqW.Close() })

	var ready PredictionResponse
	require.NoError(t, c.dec.Decode(&ready))
	require.Equal(t, StatusReady, ready.Status)
	require.Empty(t, ready.ID)
	return srv, c
}

func (c *pipeClient) roundTrip(t *testing.T, req PredictionRequest) PredictionResponse {
	t.Helper()
	require.NoError(t, c.enc.Encode(req))
	var resp PredictionResponse
	require.NoError(t, c.dec.Decode(&resp))
	return resp
}

func (c *pipeClient) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-c.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
		return nil
	}
}

func ids(preds []places.Prediction) []string {
	var out []string
	for _, p := range preds {
		out = append(out, p.PlaceID)
	}
	return out
}

func TestServe_Predict(t *testing.T) {
	_, c := startServer(t, newIndex(t), config.DefaultConfig())

	resp := c.roundTrip(t, PredictionRequest{ID: "req_001", Input: "wel"})
	assert.Equal(t, "req_001", resp.ID)
	assert.Equal(t, places.StatusOK, resp.Status)
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, []string{"0109", "0200", "0300"}, ids(resp.Predictions))
	assert.Equal(t, "Wellington, Wellington, NZ", resp.Predictions[0].Description)
	assert.GreaterOrEqual(t, resp.TimeTaken, int64(0))

	resp = c.roundTrip(t, PredictionRequest{ID: "req_002", Op: OpPredict, Input: "wel", Country: "au"})
	assert.Equal(t, []string{"0300"}, ids(resp.Predictions))

	resp = c.roundTrip(t, PredictionRequest{ID: "req_003", Input: "wel", Types: []string{"airport"}, Limit: 1})
	assert.Equal(t, []string{"0200"}, ids(resp.Predictions))

	resp = c.roundTrip(t, PredictionRequest{ID: "req_004", Input: "xyz"})
	assert.Equal(t, places.StatusZeroResults, resp.Status)
	assert.Zero(t, resp.Count)
	assert.Empty(t, resp.Predictions)
}

func TestServe_HealthAndUnknownOp(t *testing.T) {
	_, c := startServer(t, newIndex(t), config.DefaultConfig())

	resp := c.roundTrip(t, PredictionRequest{ID: "h", Op: OpHealth})
	assert.Equal(t, places.StatusOK, resp.Status)

	resp = c.roundTrip(t, PredictionRequest{ID: "x", Op: "bogus"})
	assert.Equal(t, places.StatusInvalidRequest, resp.Status)
	assert.Contains(t, resp.Error, "unknown op")
}

func TestServe_InputTooLong(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.MaxPrefix = 5
	srv, c := startServer(t, newIndex(t), cfg)

	resp := c.roundTrip(t, PredictionRequest{ID: "long", Input: "wellington"})
	assert.Equal(t, places.StatusInvalidRequest, resp.Status)
	assert.Contains(t, resp.Error, "maximum length of 5")

	srv.ApplyConfig(config.DefaultConfig())
	resp = c.roundTrip(t, PredictionRequest{ID: "long", Input: "wellington"})
	assert.Equal(t, places.StatusOK, resp.Status)
}

func TestServe_RateLimit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.RateLimit = 0.001
	cfg.Server.Burst = 1
	srv, c := startServer(t, newIndex(t), cfg)

	resp := c.roundTrip(t, PredictionRequest{ID: "1", Input: "wel"})
	assert.Equal(t, places.StatusOK, resp.Status)

	resp = c.roundTrip(t, PredictionRequest{ID: "2", Input: "wel"})
	assert.Equal(t, places.StatusOverQueryLimit, resp.Status)
	assert.NotEmpty(t, resp.Error)

	// health checks are never limited
	resp = c.roundTrip(t, PredictionRequest{ID: "3", Op: OpHealth})
	assert.Equal(t, places.StatusOK, resp.Status)

	resp = c.roundTrip(t, PredictionRequest{ID: "4", Op: OpStats})
	assert.Equal(t, places.StatusOK, resp.Status)
	assert.Equal(t, 4, resp.Stats["requests"])
	assert.Equal(t, 1, resp.Stats["rejected"])
	assert.Equal(t, 3, resp.Stats["places"])

	cfg.Server.RateLimit = 0
	srv.ApplyConfig(cfg)
	resp = c.roundTrip(t, PredictionRequest{ID: "5", Input: "wel"})
	assert.Equal(t, places.StatusOK, resp.Status)
}

func TestServe_BurstIsAvailableAtStart(t *testing.T) {
	cfg := config.DefaultConfig()
	_, c := startServer(t, newIndex(t), cfg)

	for i := 0; i < cfg.Server.Burst; i++ {
		resp := c.roundTrip(t, PredictionRequest{ID: fmt.Sprintf("req_%d", i), Input: "wel"})
		require.Equal(t, places.StatusOK, resp.Status, "request %d", i)
	}
}

func TestServe_ApplyConfigRefillsBurst(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.RateLimit = 0
	srv, c := startServer(t, newIndex(t), cfg)

	for i := 0; i < 5; i++ {
		resp := c.roundTrip(t, PredictionRequest{ID: fmt.Sprintf("unlimited_%d", i), Input: "wel"})
		require.Equal(t, places.StatusOK, resp.Status)
	}

	cfg.Server.RateLimit = 0.001
	cfg.Server.Burst = 3
	srv.ApplyConfig(cfg)

	for i := 0; i < 3; i++ {
		resp := c.roundTrip(t, PredictionRequest{ID: fmt.Sprintf("limited_%d", i), Input: "wel"})
		require.Equal(t, places.StatusOK, resp.Status, "request %d", i)
	}
	resp := c.roundTrip(t, PredictionRequest{ID: "limited_3", Input: "wel"})
	assert.Equal(t, places.StatusOverQueryLimit, resp.Status)

	// reapplying the same limits keeps the drained bucket
	srv.ApplyConfig(cfg)
	resp = c.roundTrip(t, PredictionRequest{ID: "limited_4", Input: "wel"})
	assert.Equal(t, places.StatusOverQueryLimit, resp.Status)
}

func TestServe_EOFIsClean(t *testing.T) {
	_, c := startServer(t, newIndex(t), nil)

	require.NoError(t, c.w.Close())
	assert.NoError(t, c.wait(t))
}

func TestServe_MalformedRequest(t *testing.T) {
	_, c := startServer(t, newIndex(t), config.DefaultConfig())

	// the server stops reading mid-value, so the write cannot block the test
	go func() { _ = c.enc.Encode("not a request") }()

	var resp PredictionResponse
	require.NoError(t, c.dec.Decode(&resp))
	assert.Equal(t, places.StatusInvalidRequest, resp.Status)
	assert.Error(t, c.wait(t))
}
