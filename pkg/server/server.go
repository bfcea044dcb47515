package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/bastiangx/placeserve/internal/logger"
	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/bastiangx/placeserve/pkg/config"
	"github.com/bastiangx/placeserve/pkg/places"
	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/time/rate"
)

// Server handles the IPC for place predictions
type Server struct {
	service places.Service
	reader  io.Reader
	writer  *bufio.Writer

	mu        sync.RWMutex
	maxPrefix int
	limiter   *rate.Limiter

	requests atomic.Int64
	rejected atomic.Int64

	log *log.Logger
}

// NewServer creates a prediction server using stdin/stdout for IPC
func NewServer(service places.Service, cfg *config.Config) *Server {
	return NewServerWithIO(service, cfg, os.Stdin, os.Stdout)
}

// NewServerWithIO creates a prediction server over the given stream.
func NewServerWithIO(service places.Service, cfg *config.Config, r io.Reader, w io.Writer) *Server {
	s := &Server{
		service: service,
		reader:  r,
		writer:  bufio.NewWriter(w),
		log:     logger.New("server"),
	}
	s.ApplyConfig(cfg)
	return s
}

// ApplyConfig swaps the input length bound and the rate limit. It is safe to
// call while Serve is running.
func (s *Server) ApplyConfig(cfg *config.Config) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	limit := rate.Inf
	if cfg.Server.RateLimit > 0 {
		limit = rate.Limit(cfg.Server.RateLimit)
	}
	burst := max(cfg.Server.Burst, 1)

	s.mu.Lock()
	// only a new limiter starts with a full bucket
	if s.limiter == nil || s.limiter.Limit() != limit || s.limiter.Burst() != burst {
		s.limiter = rate.NewLimiter(limit, burst)
	}
	s.maxPrefix = utils.OrDefault(cfg.Provider.MaxPrefix, config.DefaultConfig().Provider.MaxPrefix)
	s.mu.Unlock()

	s.log.Debug("server config applied", "rate", cfg.Server.RateLimit, "burst", cfg.Server.Burst, "maxPrefix", cfg.Provider.MaxPrefix)
}

// Serve writes the ready message and answers requests until the stream ends,
// which is not an error. ctx is checked between requests. A request that
// cannot be decoded is answered with INVALID_REQUEST and ends Serve, since the
// stream position can no longer be trusted.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Debug("Starting Server.")

	if err := s.send(PredictionResponse{Status: StatusReady}); err != nil {
		return err
	}

	dec := msgpack.NewDecoder(s.reader)
	for {
		if ctx.Err() != nil {
			return nil
		}

		var req PredictionRequest
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Debug("client disconnected")
				return nil
			}
			s.log.Error("decoding request", "err", err)
			_ = s.send(PredictionResponse{Status: places.StatusInvalidRequest, Error: "malformed request"})
			return errors.Wrap(err, "failed to decode request")
		}

		if err := s.send(s.handle(ctx, req)); err != nil {
			return err
		}
	}
}

// Stats returns the request counters merged with the service's own stats.
func (s *Server) Stats() map[string]int {
	stats := map[string]int{
		"requests": int(s.requests.Load()),
		"rejected": int(s.rejected.Load()),
	}
	if sp, ok := s.service.(StatsProvider); ok {
		for k, v := range sp.Stats() {
			stats[k] = v
		}
	}
	return stats
}

func (s *Server) handle(ctx context.Context, req PredictionRequest) PredictionResponse {
	start := time.Now()
	s.requests.Add(1)

	resp := PredictionResponse{ID: req.ID}
	switch req.Op {
	case "", OpPredict:
		s.handlePredict(ctx, req, &resp)
	case OpHealth:
		resp.Status = places.StatusOK
	case OpStats:
		resp.Status = places.StatusOK
		resp.Stats = s.Stats()
	default:
		resp.Status = places.StatusInvalidRequest
		resp.Error = fmt.Sprintf("unknown op: %s", req.Op)
	}

	resp.TimeTaken = time.Since(start).Microseconds()
	return resp
}

func (s *Server) handlePredict(ctx context.Context, req PredictionRequest, resp *PredictionResponse) {
	s.mu.RLock()
	limiter := s.limiter
	maxPrefix := s.maxPrefix
	s.mu.RUnlock()

	if !limiter.Allow() {
		s.rejected.Add(1)
		resp.Status = places.StatusOverQueryLimit
		resp.Error = "rate limit exceeded"
		s.log.Warn("rate limit exceeded", "id", req.ID)
		return
	}

	if n := utf8.RuneCountInString(req.Input); n > maxPrefix {
		resp.Status = places.StatusInvalidRequest
		resp.Error = fmt.Sprintf("input exceeds maximum length of %d characters", maxPrefix)
		s.log.Debug("input too long", "id", req.ID, "len", n)
		return
	}

	preds, status := s.service.GetPlacePredictions(ctx, places.Request{
		RequestOptions: places.RequestOptions{
			Types:   req.Types,
			Country: req.Country,
			Limit:   req.Limit,
			Offset:  req.Offset,
		},
		Input: req.Input,
	})
	resp.Status = status
	resp.Predictions = preds
	resp.Count = len(preds)
}

// send encodes resp and flushes it so the client sees it immediately.
func (s *Server) send(resp PredictionResponse) error {
	data, err := msgpack.Marshal(resp)
	if err != nil {
		s.log.Error("marshaling response", "err", err)
		return errors.Wrap(err, "failed to encode response")
	}
	if _, err := s.writer.Write(data); err != nil {
		return errors.Wrap(err, "failed to write response")
	}
	if err := s.writer.Flush(); err != nil {
		return errors.Wrap(err, "failed to flush response")
	}
	return nil
}
