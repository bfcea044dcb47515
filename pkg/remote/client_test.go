package remote

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/bastiangx/placeserve/internal/logger"
	"github.com/bastiangx/placeserve/pkg/autocomplete"
	"github.com/bastiangx/placeserve/pkg/config"
	"github.com/bastiangx/placeserve/pkg/index"
	"github.com/bastiangx/placeserve/pkg/places"
	"github.com/bastiangx/placeserve/pkg/server"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// pipes connects a client to a server goroutine serving a small index.
func pipes(t *testing.T, cfg *config.Config) (*Client, *server.Server) {
	t.Helper()
	ix := index.New(index.DefaultOptions())
	require.NoError(t, ix.AddAll([]index.Place{
		{ID: "0109", Name: "Wellington", Region: "Wellington", Country: "NZ", Rank: 90},
		{ID: "0400", Name: "Auckland", Region: "Auckland", Country: "NZ", Rank: 100},
	}))

	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	srv := server.NewServerWithIO(ix, cfg, reqR, respW)
	go func() {
		_ = srv.Serve(context.Background())
		respW.Close()
	}()

	c, err := Dial(context.Background(), respR, reqW, closerFunc(reqW.Close))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, srv
}

func TestClient_RoundTrip(t *testing.T) {
	c, _ := pipes(t, config.DefaultConfig())
	ctx := context.Background()

	preds, status := c.GetPlacePredictions(ctx, places.Request{Input: "wel"})
	assert.Equal(t, places.StatusOK, status)
	require.Len(t, preds, 1)
	assert.Equal(t, "0109", preds[0].PlaceID)
	assert.Equal(t, "Wellington, NZ", preds[0].SecondaryText)
	assert.Equal(t, []places.Substring{{Offset: 0, Length: 3}}, preds[0].MatchedSubstrings)

	preds, status = c.GetPlacePredictions(ctx, places.Request{
		Input:          "auckland",
		RequestOptions: places.RequestOptions{Offset: 2, Country: "nz"},
	})
	assert.Equal(t, places.StatusOK, status)
	require.Len(t, preds, 1)
	assert.Equal(t, "0400", preds[0].PlaceID)

	preds, status = c.GetPlacePredictions(ctx, places.Request{Input: "wel", RequestOptions: places.RequestOptions{Country: "au"}})
	assert.Empty(t, preds)
	assert.Equal(t, places.StatusZeroResults, status)
}

func TestClient_HealthAndStats(t *testing.T) {
	c, _ := pipes(t, config.DefaultConfig())
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats["places"])
	assert.Equal(t, 2, stats["requests"])
}

func TestClient_ServerStatusesPassThrough(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.RateLimit = 0.001
	cfg.Server.Burst = 1
	c, _ := pipes(t, cfg)
	ctx := context.Background()

	_, status := c.GetPlacePredictions(ctx, places.Request{Input: "wel"})
	assert.Equal(t, places.StatusOK, status)

	preds, status := c.GetPlacePredictions(ctx, places.Request{Input: "wel"})
	assert.Nil(t, preds)
	assert.Equal(t, places.StatusOverQueryLimit, status)
}

func TestClient_Closed(t *testing.T) {
	c, _ := pipes(t, config.DefaultConfig())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	preds, status := c.GetPlacePredictions(context.Background(), places.Request{Input: "wel"})
	assert.Nil(t, preds)
	assert.Equal(t, places.StatusUnknownError, status)
	assert.True(t, errors.Is(c.Health(context.Background()), ErrClosed))
}

func TestClient_CanceledContext(t *testing.T) {
	c, _ := pipes(t, config.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, status := c.GetPlacePredictions(ctx, places.Request{Input: "wel"})
	assert.Equal(t, places.StatusUnknownError, status)

	// the stream is still usable afterwards
	_, status = c.GetPlacePredictions(context.Background(), places.Request{Input: "wel"})
	assert.Equal(t, places.StatusOK, status)
}

func TestDial_RejectsNonReadyGreeting(t *testing.T) {
	respR, respW := io.Pipe()
	go func() {
		_ = msgpack.NewEncoder(respW).Encode(server.PredictionResponse{Status: places.StatusOK})
	}()

	closed := false
	_, err := Dial(context.Background(), respR, io.Discard, closerFunc(func() error {
		closed = true
		return nil
	}))
	assert.Error(t, err)
	assert.True(t, closed)
}

func TestDial_Timeout(t *testing.T) {
	respR, respW := io.Pipe()
	defer respW.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Dial(ctx, respR, io.Discard, closerFunc(respR.Close))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClient_AsDeferredLibrary(t *testing.T) {
	c, _ := pipes(t, config.DefaultConfig())
	loader := places.NewLoader()

	ac := places.New(
		[]places.AdapterOption{places.WithLoader(loader), places.WithDeferredLoad(), places.WithAdapterLogger(logger.Discard())},
		autocomplete.WithDebounce(0),
		autocomplete.WithLogger(logger.Discard()),
	)
	defer ac.Close()
	require.False(t, ac.Ready())

	loader.Load(c)
	require.True(t, ac.Ready())

	ac.SetValue("auck", true)
	require.Eventually(t, func() bool {
		s := ac.Suggestions()
		return !s.Loading && s.Status == places.StatusOK && len(s.Data) == 1 && s.Data[0].PlaceID == "0400"
	}, 2*time.Second, 5*time.Millisecond)
}
