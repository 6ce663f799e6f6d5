// Package distance provides walking distance/duration lookups memoized per
// planning session.
package distance

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/citywander/citywander/internal/geo"
)

// Sentinel errors for distance lookups.
var (
	// ErrProviderUnavailable indicates the distance provider is down or the
	// circuit breaker is open.
	ErrProviderUnavailable = errors.New("distance provider unavailable")
	// ErrNoRouteFound indicates no walkable route exists between the points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the provider quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates coordinates outside the WGS84 range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Mode is the transport mode distances are computed for. Cache entries for
// one mode are never served for another.
type Mode string

const (
	// ModeWalking is the pedestrian profile.
	ModeWalking Mode = "foot-walking"
)

// Result is a travel distance and duration between two points.
type Result struct {
	Meters   float64
	Duration time.Duration
}

// Provider defines the interface for distance providers.
type Provider interface {
	// Distance returns travel distance and duration between two points.
	Distance(ctx context.Context, from, to geo.Coordinate, mode Mode) (Result, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// SharedStore is an optional cross-session cache tier consulted between the
// in-memory map and the provider. Implementations must isolate modes.
type SharedStore interface {
	Get(ctx context.Context, key string) (Result, bool, error)
	Set(ctx context.Context, key string, res Result) error
}

// CacheConfig holds configuration for a session distance cache.
type CacheConfig struct {
	// Provider resolves cache misses.
	Provider Provider

	// Shared is an optional cross-session tier (nil disables it).
	Shared SharedStore

	// Logger for cache operations.
	Logger zerolog.Logger
}

// Cache memoizes pairwise distance lookups for one planning session.
// Walking distances are treated as symmetric: a lookup for (a,b) also
// satisfies (b,a). Entries never expire within the session; the cache is
// discarded with it. Provider failures are returned to the caller and never
// stored.
type Cache struct {
	provider Provider
	shared   SharedStore
	logger   zerolog.Logger

	mu       sync.Mutex
	entries  map[string]Result
	inflight map[string]chan struct{}

	hits   int64
	misses int64
}

// NewCache creates a session distance cache.
func NewCache(cfg CacheConfig) *Cache {
	return &Cache{
		provider: cfg.Provider,
		shared:   cfg.Shared,
		logger:   cfg.Logger,
		entries:  make(map[string]Result),
		inflight: make(map[string]chan struct{}),
	}
}

// Distance returns the travel distance and duration between two points,
// resolving misses through the shared tier and then the provider. Concurrent
// lookups for the same pair share one provider call.
func (c *Cache) Distance(ctx context.Context, a, b geo.Coordinate, mode Mode) (Result, error) {
	if !a.Valid() || !b.Valid() {
		return Result{}, ErrInvalidCoordinates
	}

	key := cacheKey(a, b, mode)

	for {
		c.mu.Lock()
		if res, ok := c.entries[key]; ok {
			c.hits++
			c.mu.Unlock()
			return res, nil
		}

		if done, ok := c.inflight[key]; ok {
			// Another goroutine is resolving this pair; wait and re-check.
			c.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return Result{}, ctx.Err()
			}
		}

		done := make(chan struct{})
		c.inflight[key] = done
		c.misses++
		c.mu.Unlock()

		res, err := c.resolve(ctx, a, b, mode, key)

		c.mu.Lock()
		delete(c.inflight, key)
		if err == nil {
			c.entries[key] = res
		}
		c.mu.Unlock()
		close(done)

		return res, err
	}
}

// resolve fetches a pair from the shared tier or the provider.
func (c *Cache) resolve(ctx context.Context, a, b geo.Coordinate, mode Mode, key string) (Result, error) {
	if c.shared != nil {
		res, ok, err := c.shared.Get(ctx, key)
		if err != nil {
			// The shared tier is best effort; fall through to the provider.
			c.logger.Warn().Err(err).Str("key", key).Msg("shared distance tier read failed")
		} else if ok {
			return res, nil
		}
	}

	res, err := c.provider.Distance(ctx, a, b, mode)
	if err != nil {
		return Result{}, err
	}

	if c.shared != nil {
		if err := c.shared.Set(ctx, key, res); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("shared distance tier write failed")
		}
	}

	return res, nil
}

// Prewarm resolves all pairs among the given points with bounded
// concurrency, so that later synchronous optimizer lookups hit the cache.
// Individual failures are returned as the first error encountered; already
// cached pairs are skipped.
func (c *Cache) Prewarm(ctx context.Context, points []geo.Coordinate, mode Mode, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 3
	}

	type pair struct{ a, b geo.Coordinate }
	var pairs []pair
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			pairs = append(pairs, pair{points[i], points[j]})
		}
	}

	pairCh := make(chan pair, len(pairs))
	errCh := make(chan error, len(pairs))

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range pairCh {
				if ctx.Err() != nil {
					return
				}
				if _, err := c.Distance(ctx, p.a, p.b, mode); err != nil {
					errCh <- err
				}
			}
		}()
	}

	for _, p := range pairs {
		pairCh <- p
	}
	close(pairCh)
	wg.Wait()
	close(errCh)

	if err := ctx.Err(); err != nil {
		return err
	}
	for err := range errCh {
		return err
	}
	return nil
}

// Stats reports cache effectiveness for the session.
type Stats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// Stats returns current cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

// cacheKey builds a symmetric key from the rounded coordinates and mode.
// The coordinate pair is canonically ordered so (a,b) and (b,a) share an
// entry.
func cacheKey(a, b geo.Coordinate, mode Mode) string {
	ka, kb := a.Key(), b.Key()
	if kb < ka {
		ka, kb = kb, ka
	}
	var sb strings.Builder
	sb.WriteString(string(mode))
	sb.WriteByte('|')
	sb.WriteString(ka)
	sb.WriteByte('|')
	sb.WriteString(kb)
	return sb.String()
}
