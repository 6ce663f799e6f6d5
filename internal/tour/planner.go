package tour

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/citywander/citywander/internal/distance"
	"github.com/citywander/citywander/internal/featureflags"
	"github.com/citywander/citywander/internal/geo"
	"github.com/citywander/citywander/internal/poi"
)

// POISource supplies candidate POIs for a city around a center point.
// In production this is the discovery service.
type POISource interface {
	Discover(ctx context.Context, city string, center geo.Coordinate, radiusMeters float64) ([]poi.POI, error)
}

// Enricher supplies user-facing content for POIs. EnrichRoute blocks until
// the in-route POIs are enriched (failures are non-fatal and yield an empty
// map entry); EnrichRemaining starts detached background enrichment of the
// rest and must never block.
type Enricher interface {
	EnrichRoute(ctx context.Context, pois []poi.POI) map[string]string
	EnrichRemaining(ctx context.Context, pois []poi.POI)
}

// PlannerConfig holds the collaborators for a planner. The planner owns one
// distance cache per planning session and passes it explicitly into the
// optimizer, validator and editor: no shared global state.
type PlannerConfig struct {
	// Provider resolves distance cache misses (required).
	Provider distance.Provider

	// Shared is an optional cross-session distance tier.
	Shared distance.SharedStore

	// POIs supplies discovery candidates for automatic mode (required for
	// automatic planning).
	POIs POISource

	// Enricher is optional; nil skips enrichment entirely.
	Enricher Enricher

	// FeatureFlags is the feature flag service (optional).
	// If provided, the shared distance tier can be bypassed at runtime.
	FeatureFlags *featureflags.Service

	// Mode is the transport mode (default: walking).
	Mode distance.Mode

	// SearchRadiusMeters is the discovery/scoring radius (default:
	// poi.DefaultSearchRadiusMeters).
	SearchRadiusMeters float64

	// PrewarmConcurrency bounds concurrent distance lookups when warming a
	// session cache (default: 3).
	PrewarmConcurrency int

	// TwoOptMaxPasses is forwarded to the optimizer.
	TwoOptMaxPasses int

	// Logger for planning operations.
	Logger zerolog.Logger
}

// Planner composes selection, optimization and validation for automatic
// mode, and optimization plus validation only for manual mode.
type Planner struct {
	cfg      PlannerConfig
	selector *poi.Selector
	logger   zerolog.Logger
}

// NewPlanner creates a planner.
func NewPlanner(cfg PlannerConfig) *Planner {
	if cfg.Mode == "" {
		cfg.Mode = distance.ModeWalking
	}
	if cfg.SearchRadiusMeters <= 0 {
		cfg.SearchRadiusMeters = poi.DefaultSearchRadiusMeters
	}
	if cfg.PrewarmConcurrency <= 0 {
		cfg.PrewarmConcurrency = 3
	}
	return &Planner{
		cfg:      cfg,
		selector: poi.NewSelector(poi.SelectorConfig{Logger: cfg.Logger}),
		logger:   cfg.Logger,
	}
}

// AutoPlanRequest is the planning request surface for automatic mode.
type AutoPlanRequest struct {
	Start       geo.Coordinate
	StartName   string
	City        string
	Constraints Constraints

	// ExcludedPOIIDs removes already-used places from selection.
	ExcludedPOIIDs map[string]struct{}

	// Pool optionally bypasses discovery with a caller-supplied candidate
	// pool (used in tests and by curated flows).
	Pool []poi.POI
}

// ManualPlanRequest is the planning request surface for manual mode: the
// user already chose every POI.
type ManualPlanRequest struct {
	Start       geo.Coordinate
	StartName   string
	Constraints Constraints
	POIs        []poi.POI
}

// PlanResult is a finished plan: the validated route, optimization metrics
// and Phase-1 enrichment keyed by POI id.
type PlanResult struct {
	Route    *Route
	Metrics  OptimizationMetrics
	Enriched map[string]string
}

// session bundles the per-request engine instances around one distance
// cache. The cache is discarded with the session.
type session struct {
	cache     *distance.Cache
	optimizer *Optimizer
	validator *Validator
}

func (p *Planner) newSession(ctx context.Context) *session {
	shared := p.cfg.Shared
	if shared != nil && p.cfg.FeatureFlags != nil && p.cfg.FeatureFlags.IsSharedDistanceTierDisabled(ctx) {
		p.logger.Debug().Msg("shared distance tier disabled by feature flag")
		shared = nil
	}

	cache := distance.NewCache(distance.CacheConfig{
		Provider: p.cfg.Provider,
		Shared:   shared,
		Logger:   p.logger,
	})
	return &session{
		cache: cache,
		optimizer: NewOptimizer(OptimizerConfig{
			Distances:       cache,
			Mode:            p.cfg.Mode,
			TwoOptMaxPasses: p.cfg.TwoOptMaxPasses,
			Logger:          p.logger,
		}),
		validator: NewValidator(ValidatorConfig{
			SearchRadiusMeters: p.cfg.SearchRadiusMeters,
			Logger:             p.logger,
		}),
	}
}

// NewEditor creates a single-stop editor bound to a fresh session cache,
// for editing a previously returned route.
func (p *Planner) NewEditor(ctx context.Context) *Editor {
	sess := p.newSession(ctx)
	return NewEditor(EditorConfig{
		Distances: sess.cache,
		Optimizer: sess.optimizer,
		Mode:      p.cfg.Mode,
		Logger:    p.logger,
	})
}

// PlanAutomatic runs the full pipeline: discovery, selection, optimization
// and validation with iterative degradation. Recoverable failures are
// retried once with a relaxed constraint (wider radius for an empty pool, a
// 25% higher walking-time ceiling for an over-constrained route); if the
// relaxed attempt also fails the original error surfaces.
func (p *Planner) PlanAutomatic(ctx context.Context, req AutoPlanRequest) (*PlanResult, error) {
	if err := req.Constraints.Validate(); err != nil {
		return nil, err
	}
	if !req.Start.Valid() {
		return nil, errors.Join(ErrInvalidRequest, distance.ErrInvalidCoordinates)
	}

	result, err := p.planAutomaticOnce(ctx, req, p.cfg.SearchRadiusMeters)
	if err == nil {
		return result, nil
	}

	switch {
	case errors.Is(err, poi.ErrNoCandidates):
		p.logger.Info().Str("city", req.City).Msg("no candidates, retrying with wider search radius")
		relaxed, retryErr := p.planAutomaticOnce(ctx, req, p.cfg.SearchRadiusMeters*1.5)
		if retryErr != nil {
			return nil, err
		}
		return relaxed, nil

	case errors.Is(err, ErrRouteTooConstrained) && req.Constraints.MaxWalkingTime != nil:
		relaxedCons := req.Constraints
		raised := *req.Constraints.MaxWalkingTime + *req.Constraints.MaxWalkingTime/4
		relaxedCons.MaxWalkingTime = &raised
		relaxedReq := req
		relaxedReq.Constraints = relaxedCons

		p.logger.Info().
			Dur("raised_ceiling", raised).
			Msg("route too constrained, retrying with relaxed walking time")
		relaxed, retryErr := p.planAutomaticOnce(ctx, relaxedReq, p.cfg.SearchRadiusMeters)
		if retryErr != nil {
			return nil, err
		}
		return relaxed, nil
	}

	return nil, err
}

func (p *Planner) planAutomaticOnce(ctx context.Context, req AutoPlanRequest, radius float64) (*PlanResult, error) {
	pool := req.Pool
	if pool == nil {
		if p.cfg.POIs == nil {
			return nil, poi.ErrNoCandidates
		}
		discovered, err := p.cfg.POIs.Discover(ctx, req.City, req.Start, radius)
		if err != nil {
			return nil, err
		}
		pool = discovered
	}

	selReq := poi.SelectionRequest{
		Start:              req.Start,
		City:               req.City,
		SearchRadiusMeters: radius,
		ExcludedIDs:        req.ExcludedPOIIDs,
	}
	if req.Constraints.MaxStops != nil {
		selReq.DesiredCount = *req.Constraints.MaxStops
	}
	if req.Constraints.MinPOIDistanceMeters != nil {
		selReq.MinPOIDistanceMeters = *req.Constraints.MinPOIDistanceMeters
	}

	selected, err := p.selector.Select(pool, selReq)
	if err != nil {
		return nil, err
	}

	chosen := make([]poi.POI, 0, len(selected))
	for _, s := range selected {
		chosen = append(chosen, s.POI)
	}

	result, err := p.buildAndValidate(ctx, req.Start, req.StartName, req.Constraints, chosen)
	if err != nil {
		return nil, err
	}

	p.enrich(ctx, result, pool)
	return result, nil
}

// PlanManual optimizes and validates a user-selected POI set. Selection and
// scoring are skipped entirely; the shared optimizer/validator path makes
// manual mode a strict subset of the automatic pipeline.
func (p *Planner) PlanManual(ctx context.Context, req ManualPlanRequest) (*PlanResult, error) {
	if err := req.Constraints.Validate(); err != nil {
		return nil, err
	}
	if !req.Start.Valid() {
		return nil, errors.Join(ErrInvalidRequest, distance.ErrInvalidCoordinates)
	}
	if len(req.POIs) == 0 {
		return nil, poi.ErrNoCandidates
	}

	result, err := p.buildAndValidate(ctx, req.Start, req.StartName, req.Constraints, req.POIs)
	if err != nil {
		return nil, err
	}

	p.enrich(ctx, result, req.POIs)
	return result, nil
}

// buildAndValidate is the shared optimize/validate/degrade loop. It removes
// one stop per iteration, never re-adds a removed stop, and therefore
// terminates in at most the initial stop count iterations.
func (p *Planner) buildAndValidate(ctx context.Context, start geo.Coordinate, startName string, cons Constraints, pois []poi.POI) (*PlanResult, error) {
	sess := p.newSession(ctx)

	startName = defaultName(startName, "Start")
	startWP := MarkerWaypoint(KindStart, startName, start)
	end := p.endWaypoint(start, startName, cons)

	stops := make([]Waypoint, 0, len(pois))
	for _, cand := range pois {
		stops = append(stops, StopWaypoint(cand))
	}

	// Warm all pairwise distances with bounded concurrency so the
	// sequential 2-opt passes run against a hot cache.
	points := make([]geo.Coordinate, 0, len(stops)+2)
	points = append(points, start)
	for _, s := range stops {
		points = append(points, s.Coordinate)
	}
	if end != nil {
		points = append(points, end.Coordinate)
	}
	if err := sess.cache.Prewarm(ctx, points, p.cfg.Mode, p.cfg.PrewarmConcurrency); err != nil {
		return nil, err
	}

	originalSeq := append([]Waypoint{startWP}, stops...)
	if end != nil {
		originalSeq = append(originalSeq, *end)
	}
	originalDistance, err := routeDistance(ctx, sess.cache, p.cfg.Mode, originalSeq)
	if err != nil {
		return nil, err
	}

	var optimizationTime time.Duration
	for {
		if err := ctx.Err(); err != nil {
			// Cancellation abandons the session; no partial route
			// surfaces and the cache is discarded with it.
			return nil, err
		}

		seq, took, err := sess.optimizer.timedOptimize(ctx, startWP, stops, end)
		if err != nil {
			return nil, err
		}
		optimizationTime += took

		route, err := BuildRoute(ctx, sess.cache, p.cfg.Mode, seq)
		if err != nil {
			return nil, err
		}

		verdict := sess.validator.Validate(route, cons, start)
		if verdict.Accepted {
			metrics := OptimizationMetrics{
				OriginalDistanceMeters:  originalDistance,
				OptimizedDistanceMeters: route.TotalDistanceMeters,
				OptimizationTime:        optimizationTime,
			}
			metrics.computeImprovement()

			stats := sess.cache.Stats()
			p.logger.Info().
				Int("stops", route.NumberOfStops()).
				Float64("distance_m", route.TotalDistanceMeters).
				Dur("travel_time", route.TotalTravelTime).
				Int("cache_entries", stats.Entries).
				Int64("cache_hits", stats.Hits).
				Msg("route accepted")

			return &PlanResult{Route: route, Metrics: metrics}, nil
		}

		if verdict.DropIndex < 0 || route.NumberOfStops() <= 1 {
			return nil, ErrRouteTooConstrained
		}

		stops = removeStop(stops, verdict.DropPOIID)
	}
}

// enrich runs Phase 1 (blocking, in-route POIs only) and kicks off Phase 2
// (detached, remaining pool) when an enricher is configured. Phase 2 must
// never reorder or mutate the returned route; its results land in the
// enricher's side map.
func (p *Planner) enrich(ctx context.Context, result *PlanResult, pool []poi.POI) {
	if p.cfg.Enricher == nil {
		return
	}

	inRoute := make(map[string]struct{}, len(result.Route.Waypoints))
	routePOIs := make([]poi.POI, 0, len(result.Route.Waypoints))
	for _, w := range result.Route.Waypoints {
		if w.Kind != KindStop {
			continue
		}
		inRoute[w.POIID] = struct{}{}
		routePOIs = append(routePOIs, w.asPOI())
	}

	result.Enriched = p.cfg.Enricher.EnrichRoute(ctx, routePOIs)

	// Apply Phase-1 descriptions onto the returned route; misses keep the
	// base POI data unchanged.
	for i := range result.Route.Waypoints {
		w := &result.Route.Waypoints[i]
		if w.Kind != KindStop {
			continue
		}
		if desc, ok := result.Enriched[w.POIID]; ok && desc != "" {
			w.Description = desc
		}
	}

	remaining := make([]poi.POI, 0, len(pool))
	for _, cand := range pool {
		if _, used := inRoute[cand.ID]; !used {
			remaining = append(remaining, cand)
		}
	}
	if len(remaining) > 0 {
		p.cfg.Enricher.EnrichRemaining(ctx, remaining)
	}
}

// endWaypoint resolves the fixed end marker for the constraints, or nil for
// the free endpoint mode.
func (p *Planner) endWaypoint(start geo.Coordinate, startName string, cons Constraints) *Waypoint {
	switch cons.Endpoint {
	case EndpointRoundTrip:
		end := MarkerWaypoint(KindEnd, startName, start)
		return &end
	case EndpointCustom:
		end := MarkerWaypoint(KindEnd, "Destination", *cons.CustomEndpoint)
		return &end
	default:
		return nil
	}
}

func removeStop(stops []Waypoint, poiID string) []Waypoint {
	out := make([]Waypoint, 0, len(stops))
	for _, s := range stops {
		if s.POIID == poiID {
			continue
		}
		out = append(out, s)
	}
	return out
}

func defaultName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
