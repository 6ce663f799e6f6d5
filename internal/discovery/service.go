package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/citywander/citywander/internal/featureflags"
	"github.com/citywander/citywander/internal/geo"
	"github.com/citywander/citywander/internal/poi"
)

// Provider defines the interface for place search providers.
type Provider interface {
	// PlacesByCategory fetches places of one category within a radius around
	// a center point.
	PlacesByCategory(ctx context.Context, category poi.Category, center geo.Coordinate, radiusMeters float64, limit int) ([]poi.POI, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the discovery service.
type ServiceConfig struct {
	// Provider is the place search provider.
	Provider Provider

	// FeatureFlags is the feature flag service (optional).
	// If provided, discovery can be restricted to cached results.
	FeatureFlags *featureflags.Service

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long to cache discovery results (default: 24 hours).
	// The POI landscape of a city changes slowly.
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving stale results on provider errors
	// (default: 72 hours).
	StaleIfErrorTTL time.Duration

	// MaxConcurrentSearches bounds the per-category fan-out (default: 4).
	MaxConcurrentSearches int

	// PerCategoryLimit caps results per category search (default: 20).
	PerCategoryLimit int
}

// Service provides POI discovery with per-category fan-out and caching.
type Service struct {
	provider        Provider
	featureFlags    *featureflags.Service
	logger          zerolog.Logger
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration
	maxConcurrent   int
	perCategory     int

	mu    sync.RWMutex
	cache map[string]*cachedDiscovery
}

type cachedDiscovery struct {
	pois      []poi.POI
	fetchedAt time.Time
	expiresAt time.Time
}

// NewService creates a new discovery service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 72 * time.Hour
	}

	maxConcurrent := cfg.MaxConcurrentSearches
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	perCategory := cfg.PerCategoryLimit
	if perCategory <= 0 {
		perCategory = 20
	}

	return &Service{
		provider:        cfg.Provider,
		featureFlags:    cfg.FeatureFlags,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
		maxConcurrent:   maxConcurrent,
		perCategory:     perCategory,
		cache:           make(map[string]*cachedDiscovery),
	}
}

// Discover returns candidate POIs around the center, deduplicated across
// categories and sorted by name. Partial provider failures are tolerated;
// the call fails only when every category search fails.
func (s *Service) Discover(ctx context.Context, city string, center geo.Coordinate, radiusMeters float64) ([]poi.POI, error) {
	if !center.Valid() {
		return nil, ErrInvalidCoordinates
	}
	if radiusMeters <= 0 {
		return nil, ErrInvalidRadius
	}

	key := s.cacheKey(city, center, radiusMeters)

	s.mu.RLock()
	if cached, ok := s.cache[key]; ok && time.Now().Before(cached.expiresAt) {
		s.mu.RUnlock()
		return cached.pois, nil
	}
	s.mu.RUnlock()

	return s.fetch(ctx, city, center, radiusMeters, key)
}

// fetch fans out one search per category and merges the results.
func (s *Service) fetch(ctx context.Context, city string, center geo.Coordinate, radiusMeters float64, key string) ([]poi.POI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check cache
	if cached, ok := s.cache[key]; ok && time.Now().Before(cached.expiresAt) {
		return cached.pois, nil
	}

	if s.featureFlags != nil && s.featureFlags.IsCachedOnlyDiscovery(ctx) {
		if cached, ok := s.cache[key]; ok && time.Now().Before(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Debug().Str("city", city).Msg("cached-only discovery, serving stale results")
			return cached.pois, nil
		}
		return nil, ErrProviderUnavailable
	}

	s.logger.Debug().
		Str("city", city).
		Float64("radius_m", radiusMeters).
		Str("provider", s.provider.Name()).
		Msg("discovering places")

	categories := poi.AllCategories()

	type categoryResult struct {
		category poi.Category
		pois     []poi.POI
		err      error
	}

	sem := make(chan struct{}, s.maxConcurrent)
	results := make(chan categoryResult, len(categories))

	var wg sync.WaitGroup
	for _, cat := range categories {
		wg.Add(1)
		go func(cat poi.Category) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			found, err := s.provider.PlacesByCategory(ctx, cat, center, radiusMeters, s.perCategory)
			results <- categoryResult{category: cat, pois: found, err: err}
		}(cat)
	}
	wg.Wait()
	close(results)

	merged := make([]poi.POI, 0, len(categories)*s.perCategory)
	seen := make(map[string]struct{})
	failures := 0

	for res := range results {
		if res.err != nil {
			failures++
			s.logger.Warn().Err(res.err).
				Str("category", string(res.category)).
				Msg("category search failed")
			continue
		}
		for _, p := range res.pois {
			if !p.Valid() {
				continue
			}
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			merged = append(merged, p)
		}
	}

	if failures == len(categories) {
		// Check for stale data
		if cached, ok := s.cache[key]; ok {
			if time.Now().Before(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
				s.logger.Warn().
					Time("fetched_at", cached.fetchedAt).
					Msg("serving stale discovery results due to provider errors")
				return cached.pois, nil
			}
		}
		return nil, ErrProviderUnavailable
	}

	// Name order keeps the pool deterministic regardless of which category
	// search finished first.
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Name != merged[j].Name {
			return merged[i].Name < merged[j].Name
		}
		return merged[i].ID < merged[j].ID
	})

	now := time.Now()
	s.cache[key] = &cachedDiscovery{
		pois:      merged,
		fetchedAt: now,
		expiresAt: now.Add(s.cacheTTL),
	}

	s.logger.Debug().
		Int("places", len(merged)).
		Int("failed_categories", failures).
		Msg("discovery complete")

	return merged, nil
}

// cacheKey generates a cache key for a discovery area.
// Centers are rounded to a ~1km grid so nearby starts share an entry.
func (s *Service) cacheKey(city string, center geo.Coordinate, radiusMeters float64) string {
	gridLat := float64(int(center.Lat*100)) / 100
	gridLon := float64(int(center.Lon*100)) / 100
	return fmt.Sprintf("%s:%.2f:%.2f:%.0f", city, gridLat, gridLon, radiusMeters)
}

// InvalidateCache clears all cached discovery results.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cachedDiscovery)
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	fresh := 0
	for _, c := range s.cache {
		if now.Before(c.expiresAt) {
			fresh++
		}
	}

	return CacheStats{
		Entries:      len(s.cache),
		FreshEntries: fresh,
		Provider:     s.provider.Name(),
	}
}
