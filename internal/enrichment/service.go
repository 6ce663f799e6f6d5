package enrichment

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/citywander/citywander/internal/featureflags"
	"github.com/citywander/citywander/internal/poi"
)

// Provider defines the interface for place summary providers.
type Provider interface {
	// Summary fetches a short description for a named place.
	Summary(ctx context.Context, name, city string) (string, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the enrichment service.
type ServiceConfig struct {
	// Provider is the summary provider.
	Provider Provider

	// FeatureFlags is the feature flag service (optional).
	// If provided, the background phase can be disabled via feature flag.
	FeatureFlags *featureflags.Service

	// Logger for service operations.
	Logger zerolog.Logger

	// LookupTimeout bounds each provider lookup (default: 3 seconds).
	LookupTimeout time.Duration

	// MaxConcurrentLookups bounds the blocking-phase fan-out (default: 3).
	MaxConcurrentLookups int
}

// Service enriches POIs with descriptions. Results accumulate in a
// process-wide map keyed by POI id; the background phase never touches a
// route that has already been returned.
type Service struct {
	provider      Provider
	featureFlags  *featureflags.Service
	logger        zerolog.Logger
	lookupTimeout time.Duration
	maxConcurrent int

	mu           sync.RWMutex
	descriptions map[string]string

	queued    atomic.Int64
	completed atomic.Int64
	wg        sync.WaitGroup
}

// NewService creates a new enrichment service.
func NewService(cfg ServiceConfig) *Service {
	lookupTimeout := cfg.LookupTimeout
	if lookupTimeout == 0 {
		lookupTimeout = 3 * time.Second
	}

	maxConcurrent := cfg.MaxConcurrentLookups
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}

	return &Service{
		provider:      cfg.Provider,
		featureFlags:  cfg.FeatureFlags,
		logger:        cfg.Logger,
		lookupTimeout: lookupTimeout,
		maxConcurrent: maxConcurrent,
		descriptions:  make(map[string]string),
	}
}

// EnrichRoute blocks until every given POI has been looked up, and returns
// the descriptions found, keyed by POI id. Lookup failures are non-fatal;
// a failed POI simply has no entry in the result.
func (s *Service) EnrichRoute(ctx context.Context, pois []poi.POI) map[string]string {
	result := make(map[string]string, len(pois))
	pending := make([]poi.POI, 0, len(pois))

	s.mu.RLock()
	for _, p := range pois {
		if desc, ok := s.descriptions[p.ID]; ok {
			result[p.ID] = desc
			continue
		}
		if p.Description != "" {
			result[p.ID] = p.Description
			continue
		}
		pending = append(pending, p)
	}
	s.mu.RUnlock()

	if len(pending) == 0 {
		return result
	}

	type lookup struct {
		id   string
		desc string
	}

	sem := make(chan struct{}, s.maxConcurrent)
	found := make(chan lookup, len(pending))

	var wg sync.WaitGroup
	for _, p := range pending {
		wg.Add(1)
		go func(p poi.POI) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			desc, err := s.lookup(ctx, p)
			if err != nil {
				s.logger.Debug().Err(err).Str("poi", p.Name).Msg("route enrichment lookup failed")
				return
			}
			found <- lookup{id: p.ID, desc: desc}
		}(p)
	}
	wg.Wait()
	close(found)

	s.mu.Lock()
	for l := range found {
		s.descriptions[l.id] = l.desc
		result[l.id] = l.desc
	}
	s.mu.Unlock()

	return result
}

// EnrichRemaining starts a detached background pass over the given POIs and
// returns immediately. Cancelling the caller's context does not stop the
// pass; results land in the description map for later reads.
func (s *Service) EnrichRemaining(ctx context.Context, pois []poi.POI) {
	if s.isBackgroundDisabled(ctx) {
		s.logger.Debug().Msg("background enrichment disabled by feature flag")
		return
	}

	pending := make([]poi.POI, 0, len(pois))
	s.mu.RLock()
	for _, p := range pois {
		if _, ok := s.descriptions[p.ID]; ok {
			continue
		}
		pending = append(pending, p)
	}
	s.mu.RUnlock()

	if len(pending) == 0 {
		return
	}

	s.queued.Add(int64(len(pending)))
	s.wg.Add(1)

	detached := context.WithoutCancel(ctx)
	go func() {
		defer s.wg.Done()

		for _, p := range pending {
			desc, err := s.lookup(detached, p)
			s.completed.Add(1)
			if err != nil {
				s.logger.Debug().Err(err).Str("poi", p.Name).Msg("background enrichment lookup failed")
				continue
			}

			s.mu.Lock()
			s.descriptions[p.ID] = desc
			s.mu.Unlock()
		}

		s.logger.Debug().Int("pois", len(pending)).Msg("background enrichment pass finished")
	}()
}

// Description returns the enriched description for a POI id, if any.
func (s *Service) Description(poiID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	desc, ok := s.descriptions[poiID]
	return desc, ok
}

// Progress reports background enrichment counters.
func (s *Service) Progress() Progress {
	return Progress{
		Queued:    s.queued.Load(),
		Completed: s.completed.Load(),
	}
}

// Wait blocks until all background passes started so far have finished.
// Used by batch jobs that must not exit with work in flight.
func (s *Service) Wait() {
	s.wg.Wait()
}

// lookup fetches one summary with the configured timeout.
func (s *Service) lookup(ctx context.Context, p poi.POI) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()
	return s.provider.Summary(ctx, p.Name, p.City)
}

func (s *Service) isBackgroundDisabled(ctx context.Context) bool {
	if s.featureFlags == nil {
		return false
	}
	return s.featureFlags.IsBackgroundEnrichmentDisabled(ctx)
}
