// Package leadgen drives headless-browser searches against Google Maps and
// turns the result feed into lead records. The orchestration talks to the
// page through the Session interface; the rod-backed implementation lives in
// internal/browser and tests script their own.
package leadgen

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mapforge/mapleads/idgen"
	"github.com/mapforge/mapleads/leadgen/internal/extract"
)

// Service runs searches. One search at a time: a run owns a live browser
// session and the result feed is stateful.
type Service struct {
	cfg     *Config
	browser Browser
	ex      *extract.Extractor
	limiter *rate.Limiter
	logger  *slog.Logger
	newID   idgen.Generator

	mu      sync.Mutex
	running bool
}

// Option customises a Service.
type Option func(*Service)

// WithIDGenerator overrides the run ID generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Service) { s.newID = gen }
}

// New creates a Service on top of a Browser.
func New(cfg *Config, browser Browser, logger *slog.Logger, opts ...Option) *Service {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		cfg:     cfg,
		browser: browser,
		ex:      extract.New(cfg.Chains, cfg.CaptureDetails),
		limiter: rate.NewLimiter(rate.Every(cfg.CardInterval), 1),
		logger:  logger,
		newID:   idgen.Prefixed("run_", idgen.UUIDv7()),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Running reports whether a search is currently in progress.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Service) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Service) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// sleep waits d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
