// Package strategy is the operation layer shared by the MCP server and the CLI.
//
// Every operation loads one snapshot from the store, validates it, computes, and saves
// only when it mutates state. Analyses never write.
package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"strategy-mcp/internal/correlation"
	"strategy-mcp/internal/forecast"
	"strategy-mcp/internal/portfolio"
	"strategy-mcp/internal/rules"
	"strategy-mcp/internal/store"

	"github.com/rs/zerolog/log"
)

// DefaultConfidenceLevel is used for forecast intervals when none is configured.
const DefaultConfidenceLevel = 80.0

// Service runs strategy operations against a snapshot store.
type Service struct {
	store    store.Store
	rules    *rules.Rules
	corr     *correlation.Engine
	forecast *forecast.Engine
	level    float64
	now      func() time.Time

	// mu serialises load-modify-save cycles within this process.
	mu sync.Mutex

	cacheMu   sync.Mutex
	cacheKey  string
	cacheCorr []correlation.ProgressCorrelation
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithConfidenceLevel sets the percentile level of forecast intervals.
func WithConfidenceLevel(level float64) Option {
	return func(s *Service) { s.level = level }
}

// NewService wires the engines around st. A nil rule set means the embedded defaults.
func NewService(st store.Store, r *rules.Rules, opts ...Option) *Service {
	if r == nil {
		r = rules.Default()
	}
	s := &Service{
		store:    st,
		rules:    r,
		corr:     correlation.NewEngine(r),
		forecast: forecast.NewEngine(r),
		level:    DefaultConfidenceLevel,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rules returns the active rule set.
func (s *Service) Rules() *rules.Rules {
	return s.rules
}

// Snapshot loads and validates the stored portfolio.
func (s *Service) Snapshot(ctx context.Context) (*portfolio.Snapshot, error) {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("stored snapshot is invalid: %w", err)
	}
	return snap, nil
}

// mutate applies fn to a freshly loaded snapshot and saves it when fn succeeds.
func (s *Service) mutate(ctx context.Context, op string, fn func(snap *portfolio.Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	if err := fn(snap); err != nil {
		return err
	}
	if err := snap.Validate(); err != nil {
		return err
	}
	if err := s.store.Save(ctx, snap); err != nil {
		return fmt.Errorf("%s: save snapshot: %w", op, err)
	}
	log.Debug().Str("operation", op).Msg("Snapshot updated")
	return nil
}

// correlations returns all pairwise correlations of snap, reusing the last result
// while the snapshot content is unchanged.
func (s *Service) correlations(snap *portfolio.Snapshot) ([]correlation.ProgressCorrelation, string, error) {
	key, err := snap.Fingerprint()
	if err != nil {
		return nil, "", err
	}

	s.cacheMu.Lock()
	if key == s.cacheKey && s.cacheCorr != nil {
		cached := s.cacheCorr
		s.cacheMu.Unlock()
		log.Debug().Str("fingerprint", key[:12]).Msg("Correlation cache hit")
		return cached, key, nil
	}
	s.cacheMu.Unlock()

	all, err := s.corr.ComputeAll(snap.Milestones, snap.Goals)
	if err != nil {
		return nil, "", err
	}
	if all == nil {
		all = []correlation.ProgressCorrelation{}
	}

	s.cacheMu.Lock()
	s.cacheKey, s.cacheCorr = key, all
	s.cacheMu.Unlock()
	return all, key, nil
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

// Now returns the service clock in UTC.
func (s *Service) Now() time.Time {
	return s.timestamp()
}
