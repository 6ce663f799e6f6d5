package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/citywander/citywander/internal/discovery"
	"github.com/citywander/citywander/internal/distance"
	"github.com/citywander/citywander/internal/enrichment"
	"github.com/citywander/citywander/internal/geo"
	"github.com/citywander/citywander/internal/poi"
)

// PrewarmJob warms the caches the planner depends on: the place discovery
// cache, the shared distance tier and the description store.
type PrewarmJob struct {
	config PrewarmConfig
	logger zerolog.Logger

	// Services (optional, nil if not configured)
	places    *discovery.Service
	distances distance.Provider
	shared    distance.SharedStore
	enricher  *enrichment.Service

	selector *poi.Selector

	// Metrics
	metrics *PrewarmMetrics
}

// PrewarmMetrics tracks prewarm job statistics.
type PrewarmMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalPrewarms     int64
	SuccessfulPrewarm int64
	FailedPrewarms    int64
	PlaceWarmups      int64
	DistanceWarmups   int64
	EnrichmentBatches int64

	// Timings
	LastPrewarmAt       time.Time
	LastPrewarmDuration time.Duration
	TotalDuration       time.Duration

	// Volume stats
	POIsDiscovered int64
	PairsWarmed    int64
}

// PrewarmJobConfig holds configuration for creating a PrewarmJob.
type PrewarmJobConfig struct {
	Config           PrewarmConfig
	Logger           zerolog.Logger
	DiscoveryService *discovery.Service
	DistanceProvider distance.Provider
	SharedDistances  distance.SharedStore
	Enricher         *enrichment.Service
}

// NewPrewarmJob creates a new prewarm job processor.
func NewPrewarmJob(cfg PrewarmJobConfig) *PrewarmJob {
	config := cfg.Config
	if len(config.Targets) == 0 {
		config = DefaultPrewarmConfig()
	}

	return &PrewarmJob{
		config:    config,
		logger:    cfg.Logger,
		places:    cfg.DiscoveryService,
		distances: cfg.DistanceProvider,
		shared:    cfg.SharedDistances,
		enricher:  cfg.Enricher,
		selector:  poi.NewSelector(poi.SelectorConfig{Logger: cfg.Logger}),
		metrics:   &PrewarmMetrics{},
	}
}

// PrewarmResult contains the result of a prewarm run.
type PrewarmResult struct {
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	TotalPoints    int
	Successful     int
	Failed         int
	Errors         []PrewarmError
	POIsDiscovered int
	PairsWarmed    int
}

// PrewarmError represents an error during a prewarm stage.
type PrewarmError struct {
	Stage string
	City  string
	Point Point
	Error string
}

// anchor is one unit of work: a city plus a point within it.
type anchor struct {
	city  string
	point Point
}

// Run executes the prewarm job for all configured targets.
func (j *PrewarmJob) Run(ctx context.Context) *PrewarmResult {
	startTime := time.Now()
	result := &PrewarmResult{
		StartTime:   startTime,
		TotalPoints: j.config.TotalPoints(),
	}

	j.logger.Info().
		Int("total_points", result.TotalPoints).
		Int("concurrency", j.config.Concurrency).
		Msg("starting cache prewarm job")

	// Flatten targets into per-anchor work items
	var anchors []anchor
	for _, target := range j.config.Targets {
		for _, p := range target.Points {
			anchors = append(anchors, anchor{city: target.Name, point: p})
		}
	}

	// Create work channels
	anchorsChan := make(chan anchor, len(anchors))
	resultsChan := make(chan anchorResult, len(anchors))

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			j.prewarmWorker(ctx, workerID, anchorsChan, resultsChan)
		}(i)
	}

	// Send anchors to workers
	for _, a := range anchors {
		anchorsChan <- a
	}
	close(anchorsChan)

	// Wait for workers to complete
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	// Collect results
	for ar := range resultsChan {
		if ar.success {
			result.Successful++
		} else {
			result.Failed++
		}
		result.POIsDiscovered += ar.poisDiscovered
		result.PairsWarmed += ar.pairsWarmed
		result.Errors = append(result.Errors, ar.errors...)
	}

	// Description enrichment runs detached; a batch job must not exit with
	// lookups still in flight.
	if j.config.WarmDescriptions && j.enricher != nil {
		j.enricher.Wait()
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	// Update metrics
	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("pois_discovered", result.POIsDiscovered).
		Int("pairs_warmed", result.PairsWarmed).
		Msg("cache prewarm job completed")

	return result
}

type anchorResult struct {
	anchor         anchor
	success        bool
	poisDiscovered int
	pairsWarmed    int
	errors         []PrewarmError
}

func (j *PrewarmJob) prewarmWorker(ctx context.Context, _ int, anchors <-chan anchor, results chan<- anchorResult) {
	for a := range anchors {
		select {
		case <-ctx.Done():
			return
		default:
			result := j.warmAnchor(ctx, a)
			results <- result
		}
	}
}

func (j *PrewarmJob) warmAnchor(ctx context.Context, a anchor) anchorResult {
	result := anchorResult{
		anchor:  a,
		success: true,
	}

	// Create timeout context for this anchor
	anchorCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	center := geo.Coordinate{Lat: a.point.Lat, Lon: a.point.Lon}

	// Warm place discovery
	var pool []poi.POI
	if j.config.WarmPlaces && j.places != nil {
		discovered, err := j.places.Discover(anchorCtx, a.city, center, j.config.RadiusMeters)
		if err != nil {
			result.errors = append(result.errors, PrewarmError{
				Stage: "discovery",
				City:  a.city,
				Point: a.point,
				Error: err.Error(),
			})
			result.success = false
			return result
		}
		pool = discovered
		result.poisDiscovered = len(pool)
		atomic.AddInt64(&j.metrics.PlaceWarmups, 1)
	}

	if len(pool) == 0 {
		return result
	}

	// The distance matrix and the description store only need the places a
	// tour is actually likely to use.
	selected, err := j.selector.Select(pool, poi.SelectionRequest{
		Start:              center,
		City:               a.city,
		DesiredCount:       j.config.TopPOIs,
		SearchRadiusMeters: j.config.RadiusMeters,
	})
	if err != nil {
		if !errors.Is(err, poi.ErrNoCandidates) {
			result.errors = append(result.errors, PrewarmError{
				Stage: "selection",
				City:  a.city,
				Point: a.point,
				Error: err.Error(),
			})
			result.success = false
		}
		return result
	}

	// Warm the shared distance tier
	if j.config.WarmDistances && j.distances != nil {
		points := make([]geo.Coordinate, 0, len(selected)+1)
		points = append(points, center)
		for _, s := range selected {
			points = append(points, s.POI.Coordinate)
		}

		// A throwaway session cache; the warmed pairs land in the shared tier.
		cache := distance.NewCache(distance.CacheConfig{
			Provider: j.distances,
			Shared:   j.shared,
			Logger:   j.logger,
		})
		if err := cache.Prewarm(anchorCtx, points, distance.ModeWalking, 2); err != nil {
			result.errors = append(result.errors, PrewarmError{
				Stage: "distances",
				City:  a.city,
				Point: a.point,
				Error: err.Error(),
			})
			result.success = false
		} else {
			result.pairsWarmed = cache.Stats().Entries
			atomic.AddInt64(&j.metrics.DistanceWarmups, 1)
		}
	}

	// Queue description enrichment; the service dedupes and runs detached
	if j.config.WarmDescriptions && j.enricher != nil {
		pois := make([]poi.POI, 0, len(selected))
		for _, s := range selected {
			pois = append(pois, s.POI)
		}
		j.enricher.EnrichRemaining(anchorCtx, pois)
		atomic.AddInt64(&j.metrics.EnrichmentBatches, 1)
	}

	return result
}

func (j *PrewarmJob) updateMetrics(result *PrewarmResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalPrewarms++
	j.metrics.SuccessfulPrewarm += int64(result.Successful)
	j.metrics.FailedPrewarms += int64(result.Failed)
	j.metrics.LastPrewarmAt = result.EndTime
	j.metrics.LastPrewarmDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
	j.metrics.POIsDiscovered += int64(result.POIsDiscovered)
	j.metrics.PairsWarmed += int64(result.PairsWarmed)
}

// GetMetrics returns a copy of the current metrics.
func (j *PrewarmJob) GetMetrics() PrewarmMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return PrewarmMetrics{
		TotalPrewarms:       j.metrics.TotalPrewarms,
		SuccessfulPrewarm:   j.metrics.SuccessfulPrewarm,
		FailedPrewarms:      j.metrics.FailedPrewarms,
		PlaceWarmups:        j.metrics.PlaceWarmups,
		DistanceWarmups:     j.metrics.DistanceWarmups,
		EnrichmentBatches:   j.metrics.EnrichmentBatches,
		LastPrewarmAt:       j.metrics.LastPrewarmAt,
		LastPrewarmDuration: j.metrics.LastPrewarmDuration,
		TotalDuration:       j.metrics.TotalDuration,
		POIsDiscovered:      j.metrics.POIsDiscovered,
		PairsWarmed:         j.metrics.PairsWarmed,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *PrewarmJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_prewarms":        m.TotalPrewarms,
		"successful_prewarms":   m.SuccessfulPrewarm,
		"failed_prewarms":       m.FailedPrewarms,
		"place_warmups":         m.PlaceWarmups,
		"distance_warmups":      m.DistanceWarmups,
		"enrichment_batches":    m.EnrichmentBatches,
		"last_prewarm_at":       m.LastPrewarmAt,
		"last_prewarm_duration": m.LastPrewarmDuration.String(),
		"total_duration":        m.TotalDuration.String(),
		"pois_discovered":       m.POIsDiscovered,
		"pairs_warmed":          m.PairsWarmed,
	}
}
