package tour

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/citywander/citywander/internal/distance"
	"github.com/citywander/citywander/internal/geo"
)

// DistanceSource resolves travel distance and duration between two points.
// In production this is the session distance cache.
type DistanceSource interface {
	Distance(ctx context.Context, a, b geo.Coordinate, mode distance.Mode) (distance.Result, error)
}

// DefaultTwoOptMaxPasses caps 2-opt improvement passes so worst-case cost
// stays bounded on large stop counts.
const DefaultTwoOptMaxPasses = 30

// improvementEps is the minimum distance reduction accepted as an
// improvement, guarding against float noise oscillation.
const improvementEps = 1e-9

// OptimizerConfig holds configuration for the tour optimizer.
type OptimizerConfig struct {
	// Distances resolves pairwise travel metrics (required).
	Distances DistanceSource

	// Mode is the transport mode (default: walking).
	Mode distance.Mode

	// TwoOptMaxPasses caps local search passes (default:
	// DefaultTwoOptMaxPasses).
	TwoOptMaxPasses int

	// Logger for optimizer operations.
	Logger zerolog.Logger
}

// Optimizer orders a fixed POI set between a fixed start and a fixed or
// free end using nearest-neighbor construction followed by 2-opt local
// search. Given the same inputs and cache contents the ordering is
// deterministic: ties break on waypoint name, never randomly.
type Optimizer struct {
	distances DistanceSource
	mode      distance.Mode
	maxPasses int
	logger    zerolog.Logger
}

// NewOptimizer creates a tour optimizer.
func NewOptimizer(cfg OptimizerConfig) *Optimizer {
	mode := cfg.Mode
	if mode == "" {
		mode = distance.ModeWalking
	}
	maxPasses := cfg.TwoOptMaxPasses
	if maxPasses <= 0 {
		maxPasses = DefaultTwoOptMaxPasses
	}
	return &Optimizer{
		distances: cfg.Distances,
		mode:      mode,
		maxPasses: maxPasses,
		logger:    cfg.Logger,
	}
}

// Optimize orders stops between start and end. A nil end means the free
// endpoint mode: the tour simply finishes at the last placed stop. With
// fewer than one stop the degenerate [start, end] (or [start]) sequence is
// returned directly.
func (o *Optimizer) Optimize(ctx context.Context, start Waypoint, stops []Waypoint, end *Waypoint) ([]Waypoint, error) {
	if len(stops) == 0 {
		seq := []Waypoint{start}
		if end != nil {
			seq = append(seq, *end)
		}
		return seq, nil
	}

	seq, err := o.construct(ctx, start, stops, end)
	if err != nil {
		return nil, err
	}

	seq, err = o.twoOpt(ctx, seq, end != nil)
	if err != nil {
		return nil, err
	}

	return seq, nil
}

// construct performs nearest-neighbor construction: repeatedly append the
// unvisited stop closest to the current last waypoint. A fixed end is
// appended last without being subject to nearest selection.
func (o *Optimizer) construct(ctx context.Context, start Waypoint, stops []Waypoint, end *Waypoint) ([]Waypoint, error) {
	remaining := make([]Waypoint, len(stops))
	copy(remaining, stops)

	seq := make([]Waypoint, 0, len(stops)+2)
	seq = append(seq, start)
	current := start

	for len(remaining) > 0 {
		bestIdx := -1
		var bestDist float64

		for i, cand := range remaining {
			res, err := o.distances.Distance(ctx, current.Coordinate, cand.Coordinate, o.mode)
			if err != nil {
				return nil, err
			}
			// Lexicographic name tie-break keeps the ordering deterministic.
			if bestIdx < 0 || res.Meters < bestDist ||
				(res.Meters == bestDist && cand.Name < remaining[bestIdx].Name) {
				bestIdx = i
				bestDist = res.Meters
			}
		}

		current = remaining[bestIdx]
		seq = append(seq, current)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	if end != nil {
		seq = append(seq, *end)
	}
	return seq, nil
}

// twoOpt runs first-improvement 2-opt on the sequence. Position 0 is always
// pinned; the final position is pinned as well when the end is fixed.
// Reversing seq[i..j] replaces edges (i-1,i) and (j,j+1) with (i-1,j) and
// (i,j+1); with a free endpoint j may be the last index and the second edge
// vanishes.
func (o *Optimizer) twoOpt(ctx context.Context, seq []Waypoint, fixedEnd bool) ([]Waypoint, error) {
	if len(seq) < 4 {
		return seq, nil
	}

	out := make([]Waypoint, len(seq))
	copy(out, seq)

	lastMutable := len(out) - 1
	if fixedEnd {
		lastMutable = len(out) - 2
	}

	for pass := 0; pass < o.maxPasses; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		improved := false

		for i := 1; i <= lastMutable-1 && !improved; i++ {
			for j := i + 1; j <= lastMutable && !improved; j++ {
				delta, err := o.reversalDelta(ctx, out, i, j)
				if err != nil {
					return nil, err
				}
				if delta < -improvementEps {
					reverse(out, i, j)
					improved = true
				}
			}
		}

		if !improved {
			break
		}
	}

	return out, nil
}

// reversalDelta computes the total-distance change from reversing
// out[i..j].
func (o *Optimizer) reversalDelta(ctx context.Context, out []Waypoint, i, j int) (float64, error) {
	a := out[i-1]
	b := out[i]
	c := out[j]

	ab, err := o.distances.Distance(ctx, a.Coordinate, b.Coordinate, o.mode)
	if err != nil {
		return 0, err
	}
	ac, err := o.distances.Distance(ctx, a.Coordinate, c.Coordinate, o.mode)
	if err != nil {
		return 0, err
	}

	delta := ac.Meters - ab.Meters

	// With a successor edge the reversal also swaps (c,d) for (b,d).
	if j+1 < len(out) {
		d := out[j+1]
		cd, err := o.distances.Distance(ctx, c.Coordinate, d.Coordinate, o.mode)
		if err != nil {
			return 0, err
		}
		bd, err := o.distances.Distance(ctx, b.Coordinate, d.Coordinate, o.mode)
		if err != nil {
			return 0, err
		}
		delta += bd.Meters - cd.Meters
	}

	return delta, nil
}

func reverse(seq []Waypoint, i, j int) {
	for i < j {
		seq[i], seq[j] = seq[j], seq[i]
		i++
		j--
	}
}

// BuildRoute assembles a Route value from an ordered waypoint sequence,
// resolving every leg through the distance source and computing aggregate
// totals.
func BuildRoute(ctx context.Context, src DistanceSource, mode distance.Mode, seq []Waypoint) (*Route, error) {
	route := &Route{
		ID:        "rt_" + uuid.New().String()[:22],
		Waypoints: seq,
		Legs:      make([]Leg, 0, len(seq)-1),
	}

	for i := 0; i+1 < len(seq); i++ {
		res, err := src.Distance(ctx, seq[i].Coordinate, seq[i+1].Coordinate, mode)
		if err != nil {
			return nil, err
		}
		route.Legs = append(route.Legs, Leg{Meters: res.Meters, Duration: res.Duration})
		route.TotalDistanceMeters += res.Meters
		route.TotalTravelTime += res.Duration
	}

	for _, w := range seq {
		if w.Kind == KindStop {
			route.TotalVisitTime += w.VisitDuration
		}
	}

	return route, nil
}

// routeDistance sums pairwise distances over a waypoint sequence without
// assembling a full route. Used for optimization metrics.
func routeDistance(ctx context.Context, src DistanceSource, mode distance.Mode, seq []Waypoint) (float64, error) {
	var total float64
	for i := 0; i+1 < len(seq); i++ {
		res, err := src.Distance(ctx, seq[i].Coordinate, seq[i+1].Coordinate, mode)
		if err != nil {
			return 0, err
		}
		total += res.Meters
	}
	return total, nil
}

// timedOptimize wraps Optimize and reports wall-clock duration.
func (o *Optimizer) timedOptimize(ctx context.Context, start Waypoint, stops []Waypoint, end *Waypoint) ([]Waypoint, time.Duration, error) {
	began := time.Now()
	seq, err := o.Optimize(ctx, start, stops, end)
	return seq, time.Since(began), err
}
