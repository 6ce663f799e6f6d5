package tour

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/citywander/citywander/internal/distance"
	"github.com/citywander/citywander/internal/geo"
	"github.com/citywander/citywander/internal/poi"
)

// Editor defaults.
const (
	// DefaultAlternativeRadiusMeters bounds how far from the original stop
	// alternatives may lie.
	DefaultAlternativeRadiusMeters = 500.0

	// DefaultMaxAlternatives caps the alternative list.
	DefaultMaxAlternatives = 20

	// DefaultSpliceThresholdMeters separates cheap local splices from full
	// re-optimization. A replacement at or beyond this distance from the
	// original can invalidate the whole ordering.
	DefaultSpliceThresholdMeters = 1500.0
)

// EditorConfig holds configuration for the single-stop editor.
type EditorConfig struct {
	// Distances resolves travel metrics (required).
	Distances DistanceSource

	// Optimizer re-runs full optimization for distant replacements
	// (required).
	Optimizer *Optimizer

	// Mode is the transport mode (default: walking).
	Mode distance.Mode

	// AlternativeRadiusMeters overrides DefaultAlternativeRadiusMeters.
	AlternativeRadiusMeters float64

	// MaxAlternatives overrides DefaultMaxAlternatives.
	MaxAlternatives int

	// SpliceThresholdMeters overrides DefaultSpliceThresholdMeters.
	SpliceThresholdMeters float64

	// Logger for editor operations.
	Logger zerolog.Logger
}

// Editor replaces a single stop in a finished route. Edits never mutate the
// input route; they produce a new Route value.
type Editor struct {
	distances       DistanceSource
	optimizer       *Optimizer
	mode            distance.Mode
	radius          float64
	maxAlternatives int
	threshold       float64
	logger          zerolog.Logger
}

// NewEditor creates a single-stop editor.
func NewEditor(cfg EditorConfig) *Editor {
	mode := cfg.Mode
	if mode == "" {
		mode = distance.ModeWalking
	}
	radius := cfg.AlternativeRadiusMeters
	if radius <= 0 {
		radius = DefaultAlternativeRadiusMeters
	}
	maxAlts := cfg.MaxAlternatives
	if maxAlts <= 0 {
		maxAlts = DefaultMaxAlternatives
	}
	threshold := cfg.SpliceThresholdMeters
	if threshold <= 0 {
		threshold = DefaultSpliceThresholdMeters
	}
	return &Editor{
		distances:       cfg.Distances,
		optimizer:       cfg.Optimizer,
		mode:            mode,
		radius:          radius,
		maxAlternatives: maxAlts,
		threshold:       threshold,
		logger:          cfg.Logger,
	}
}

// EditResult is the outcome of a single-stop replacement.
type EditResult struct {
	// Route is the resulting route. When Changed is false it is the input
	// route unchanged.
	Route *Route

	// Changed reports whether a replacement was applied.
	Changed bool

	// Replacement is the POI that was spliced in, when Changed.
	Replacement *poi.POI

	// FullReoptimization reports whether the distant-replacement path was
	// taken instead of a local splice.
	FullReoptimization bool
}

// Alternatives filters and ranks replacement candidates for the stop at
// index: in-radius of the original, not already in the route, same-category
// and metadata-rich candidates first, then nearest first, capped.
func (e *Editor) Alternatives(route *Route, index int, pool []poi.POI) ([]poi.POI, error) {
	if err := checkStopIndex(route, index); err != nil {
		return nil, err
	}
	original := route.Waypoints[index]

	inRoute := make(map[string]struct{}, len(route.Waypoints))
	for _, w := range route.Waypoints {
		if w.POIID != "" {
			inRoute[w.POIID] = struct{}{}
		}
	}

	type ranked struct {
		p    poi.POI
		dist float64
	}
	candidates := make([]ranked, 0, len(pool))
	for _, p := range pool {
		if _, used := inRoute[p.ID]; used {
			continue
		}
		d := geo.Haversine(original.Coordinate, p.Coordinate)
		if d > e.radius {
			continue
		}
		candidates = append(candidates, ranked{p: p, dist: d})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		aSame := a.p.Category == original.Category
		bSame := b.p.Category == original.Category
		if aSame != bSame {
			return aSame
		}
		if a.p.RichnessScore() != b.p.RichnessScore() {
			return a.p.RichnessScore() > b.p.RichnessScore()
		}
		return a.dist < b.dist
	})

	if len(candidates) > e.maxAlternatives {
		candidates = candidates[:e.maxAlternatives]
	}

	result := make([]poi.POI, 0, len(candidates))
	for _, c := range candidates {
		result = append(result, c.p)
	}
	return result, nil
}

// Replace substitutes the stop at index with the first viable alternative
// from the pool. An empty alternative list leaves the route unchanged,
// never an error.
func (e *Editor) Replace(ctx context.Context, route *Route, index int, pool []poi.POI) (*EditResult, error) {
	alternatives, err := e.Alternatives(route, index, pool)
	if err != nil {
		return nil, err
	}
	if len(alternatives) == 0 {
		e.logger.Debug().Int("index", index).Msg("no alternatives in radius, route unchanged")
		return &EditResult{Route: route, Changed: false}, nil
	}
	return e.ReplaceWith(ctx, route, index, alternatives[0])
}

// ReplaceWith substitutes the stop at index with a specific replacement POI.
// A replacement close to the original is spliced locally, recomputing only
// the two adjacent legs; a distant one triggers full re-optimization of the
// intermediate stops with start and end pinned.
func (e *Editor) ReplaceWith(ctx context.Context, route *Route, index int, replacement poi.POI) (*EditResult, error) {
	if err := checkStopIndex(route, index); err != nil {
		return nil, err
	}

	original := route.Waypoints[index]
	displacement := geo.Haversine(original.Coordinate, replacement.Coordinate)

	if displacement < e.threshold {
		newRoute, err := e.splice(ctx, route, index, replacement)
		if err != nil {
			return nil, err
		}
		e.logger.Debug().
			Str("original", original.Name).
			Str("replacement", replacement.Name).
			Float64("displacement_m", displacement).
			Msg("applied local splice")
		return &EditResult{Route: newRoute, Changed: true, Replacement: &replacement}, nil
	}

	newRoute, err := e.reoptimize(ctx, route, index, replacement)
	if err != nil {
		return nil, err
	}
	e.logger.Debug().
		Str("original", original.Name).
		Str("replacement", replacement.Name).
		Float64("displacement_m", displacement).
		Msg("replacement beyond splice threshold, re-optimized route")
	return &EditResult{
		Route:              newRoute,
		Changed:            true,
		Replacement:        &replacement,
		FullReoptimization: true,
	}, nil
}

// splice swaps the waypoint at index and recomputes only the two adjacent
// legs. All other legs and waypoints are carried over untouched.
func (e *Editor) splice(ctx context.Context, route *Route, index int, replacement poi.POI) (*Route, error) {
	waypoints := make([]Waypoint, len(route.Waypoints))
	copy(waypoints, route.Waypoints)
	waypoints[index] = StopWaypoint(replacement)

	legs := make([]Leg, len(route.Legs))
	copy(legs, route.Legs)

	inbound, err := e.distances.Distance(ctx, waypoints[index-1].Coordinate, waypoints[index].Coordinate, e.mode)
	if err != nil {
		return nil, err
	}
	legs[index-1] = Leg{Meters: inbound.Meters, Duration: inbound.Duration}

	// On a free-endpoint route the last stop is the terminal waypoint and has
	// no outbound leg; only the inbound leg changes.
	if index < len(waypoints)-1 {
		outbound, err := e.distances.Distance(ctx, waypoints[index].Coordinate, waypoints[index+1].Coordinate, e.mode)
		if err != nil {
			return nil, err
		}
		legs[index] = Leg{Meters: outbound.Meters, Duration: outbound.Duration}
	}

	newRoute := &Route{
		ID:        route.ID,
		Waypoints: waypoints,
		Legs:      legs,
	}
	for _, l := range legs {
		newRoute.TotalDistanceMeters += l.Meters
		newRoute.TotalTravelTime += l.Duration
	}
	for _, w := range waypoints {
		if w.Kind == KindStop {
			newRoute.TotalVisitTime += w.VisitDuration
		}
	}
	return newRoute, nil
}

// reoptimize rebuilds the intermediate stop set with the replacement
// substituted and re-runs the optimizer with start and end pinned.
func (e *Editor) reoptimize(ctx context.Context, route *Route, index int, replacement poi.POI) (*Route, error) {
	start := route.Waypoints[0]
	last := route.Waypoints[len(route.Waypoints)-1]

	stops := make([]Waypoint, 0, len(route.Waypoints))
	for i, w := range route.Waypoints {
		if w.Kind != KindStop {
			continue
		}
		if i == index {
			stops = append(stops, StopWaypoint(replacement))
		} else {
			stops = append(stops, w)
		}
	}

	var end *Waypoint
	if last.Kind == KindEnd {
		end = &last
	}

	seq, err := e.optimizer.Optimize(ctx, start, stops, end)
	if err != nil {
		return nil, err
	}

	newRoute, err := BuildRoute(ctx, e.distances, e.mode, seq)
	if err != nil {
		return nil, err
	}
	newRoute.ID = route.ID
	return newRoute, nil
}

// checkStopIndex rejects indexes that do not point at an intermediate stop.
func checkStopIndex(route *Route, index int) error {
	if index < 0 || index >= len(route.Waypoints) {
		return fmt.Errorf("%w: waypoint index %d out of range", ErrInvalidRequest, index)
	}
	if route.Waypoints[index].Kind != KindStop {
		return fmt.Errorf("%w: waypoint %d is not a replaceable stop", ErrInvalidRequest, index)
	}
	return nil
}
