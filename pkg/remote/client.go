// Package remote talks to a placeserve IPC server and exposes it as a places
// library, so a controller can run against a separate server process.
package remote

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/bastiangx/placeserve/internal/logger"
	"github.com/bastiangx/placeserve/pkg/places"
	"github.com/bastiangx/placeserve/pkg/server"
	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrClosed is returned by calls on a closed client.
var ErrClosed = errors.New("remote client is closed")

// Client runs one request at a time against a server stream.
type Client struct {
	mu     sync.Mutex
	enc    *msgpack.Encoder
	dec    *msgpack.Decoder
	closer io.Closer
	closed bool
	seq    uint64

	log *log.Logger
}

// Dial waits for the server's ready message on r and returns a client that
// writes requests to w. closer is called by Close, or when ctx ends before
// the server is ready.
func Dial(ctx context.Context, r io.Reader, w io.Writer, closer io.Closer) (*Client, error) {
	c := &Client{
		enc:    msgpack.NewEncoder(w),
		dec:    msgpack.NewDecoder(r),
		closer: closer,
		log:    logger.New("remote"),
	}

	ready := make(chan error, 1)
	go func() {
		var resp server.PredictionResponse
		if err := c.dec.Decode(&resp); err != nil {
			ready <- errors.Wrap(err, "failed to read ready message")
			return
		}
		if resp.Status != server.StatusReady {
			ready <- errors.Newf("expected ready message, got status %q", resp.Status)
			return
		}
		ready <- nil
	}()

	select {
	case err := <-ready:
		if err != nil {
			c.closeQuietly()
			return nil, err
		}
	case <-ctx.Done():
		c.closeQuietly()
		return nil, errors.Wrap(ctx.Err(), "server did not become ready")
	}

	c.log.Debug("connected to server")
	return c, nil
}

// Spawn starts bin as a server process and dials its stdin/stdout. The
// process's stderr is passed through. Closing the client ends the process.
func Spawn(ctx context.Context, bin string, args ...string) (*Client, error) {
	cmd := exec.Command(bin, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start %s", bin)
	}
	log.Debugf("spawned server %s (pid %d)", bin, cmd.Process.Pid)

	return Dial(ctx, stdout, stdin, &process{cmd: cmd, stdin: stdin})
}

// NewAutocompleteService returns the client itself.
func (c *Client) NewAutocompleteService() places.Service {
	return c
}

// GetPlacePredictions performs one round trip. Transport failures and a
// closed client are reported as UNKNOWN_ERROR.
func (c *Client) GetPlacePredictions(ctx context.Context, req places.Request) ([]places.Prediction, string) {
	resp, err := c.roundTrip(ctx, server.PredictionRequest{
		Op:      server.OpPredict,
		Input:   req.Input,
		Limit:   req.Limit,
		Offset:  req.Offset,
		Types:   req.Types,
		Country: req.Country,
	})
	if err != nil {
		c.log.Error("prediction request failed", "input", req.Input, "err", err)
		return nil, places.StatusUnknownError
	}
	if resp.Error != "" {
		c.log.Debug("server reported", "status", resp.Status, "error", resp.Error)
	}
	return resp.Predictions, resp.Status
}

// Health checks that the server answers.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.roundTrip(ctx, server.PredictionRequest{Op: server.OpHealth})
	if err != nil {
		return err
	}
	if resp.Status != places.StatusOK {
		return errors.Newf("server unhealthy: %s", resp.Status)
	}
	return nil
}

// Stats fetches the server's counters.
func (c *Client) Stats(ctx context.Context) (map[string]int, error) {
	resp, err := c.roundTrip(ctx, server.PredictionRequest{Op: server.OpStats})
	if err != nil {
		return nil, err
	}
	return resp.Stats, nil
}

// Close releases the stream. Later calls fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

func (c *Client) roundTrip(ctx context.Context, req server.PredictionRequest) (server.PredictionResponse, error) {
	var resp server.PredictionResponse
	if err := ctx.Err(); err != nil {
		return resp, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return resp, ErrClosed
	}

	c.seq++
	req.ID = "req_" + strconv.FormatUint(c.seq, 10)

	if err := c.enc.Encode(req); err != nil {
		return resp, errors.Wrap(err, "failed to send request")
	}
	if err := c.dec.Decode(&resp); err != nil {
		return resp, errors.Wrap(err, "failed to read response")
	}
	if resp.ID != req.ID {
		return resp, errors.Newf("response id %q does not match request %q", resp.ID, req.ID)
	}
	return resp, nil
}

func (c *Client) closeQuietly() {
	if err := c.Close(); err != nil {
		c.log.Debug("closing stream", "err", err)
	}
}

// processExitTimeout is how long a spawned server gets to exit after its
// stdin is closed before it is killed.
const processExitTimeout = 2 * time.Second

// process ends a spawned server by closing its stdin and waiting for it.
type process struct {
	cmd   *exec.Cmd
	stdin io.Closer
}

func (p *process) Close() error {
	if err := p.stdin.Close(); err != nil {
		log.Debugf("closing server stdin: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return errors.Wrap(err, "server exited with error")
		}
		return nil
	case <-time.After(processExitTimeout):
		if err := p.cmd.Process.Kill(); err != nil {
			return errors.Wrap(err, "failed to kill server")
		}
		<-done
		return errors.New("server did not exit and was killed")
	}
}
