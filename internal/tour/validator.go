package tour

import (
	"github.com/rs/zerolog"

	"github.com/citywander/citywander/internal/geo"
	"github.com/citywander/citywander/internal/poi"
)

// Verdict is the outcome of validating a candidate route.
type Verdict struct {
	// Accepted is true when the route satisfies all constraints.
	Accepted bool

	// DropIndex is the waypoint index to remove before re-optimizing when
	// the route is rejected. Always an intermediate stop.
	DropIndex int

	// DropPOIID identifies the stop marked for removal.
	DropPOIID string
}

// ValidatorConfig holds configuration for the constraint validator.
type ValidatorConfig struct {
	// SearchRadiusMeters is the radius used when recomputing selection
	// scores (default: poi.DefaultSearchRadiusMeters).
	SearchRadiusMeters float64

	// Logger for validation operations.
	Logger zerolog.Logger
}

// Validator checks a candidate route against the walking-time and distance
// ceilings. On violation it marks the lowest-scored intermediate stop for
// removal; the planner loop removes it, re-optimizes and re-validates.
// The validator never grows the candidate set.
type Validator struct {
	searchRadius float64
	logger       zerolog.Logger
}

// NewValidator creates a constraint validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	radius := cfg.SearchRadiusMeters
	if radius <= 0 {
		radius = poi.DefaultSearchRadiusMeters
	}
	return &Validator{searchRadius: radius, logger: cfg.Logger}
}

// Validate checks the route against the constraints. Total travel time is
// checked against MaxWalkingTime and total distance against
// MaxTotalDistanceMeters; either violation rejects the route.
func (v *Validator) Validate(route *Route, cons Constraints, start geo.Coordinate) Verdict {
	overTime := cons.MaxWalkingTime != nil && route.TotalTravelTime > *cons.MaxWalkingTime
	overDistance := cons.MaxTotalDistanceMeters != nil && route.TotalDistanceMeters > *cons.MaxTotalDistanceMeters

	if !overTime && !overDistance {
		return Verdict{Accepted: true}
	}

	idx := v.lowestScoredStop(route, start)
	if idx < 0 {
		// No removable stop left; the planner translates this into
		// ErrRouteTooConstrained.
		return Verdict{Accepted: false, DropIndex: -1}
	}

	v.logger.Debug().
		Bool("over_time", overTime).
		Bool("over_distance", overDistance).
		Str("drop_poi", route.Waypoints[idx].POIID).
		Str("drop_name", route.Waypoints[idx].Name).
		Msg("route rejected, degrading lowest-scored stop")

	return Verdict{
		Accepted:  false,
		DropIndex: idx,
		DropPOIID: route.Waypoints[idx].POIID,
	}
}

// lowestScoredStop picks the intermediate waypoint with the lowest
// recomputed selection score. Ties break toward the stop farther from the
// start, then lexicographically by name, so degradation is deterministic.
func (v *Validator) lowestScoredStop(route *Route, start geo.Coordinate) int {
	best := -1
	var bestScore, bestDist float64

	for i, w := range route.Waypoints {
		if w.Kind != KindStop {
			continue
		}

		p := w.asPOI()
		score := poi.Score(&p, start, v.searchRadius)
		dist := geo.Haversine(start, w.Coordinate)

		if best < 0 {
			best, bestScore, bestDist = i, score, dist
			continue
		}

		switch {
		case score < bestScore:
			best, bestScore, bestDist = i, score, dist
		case score == bestScore && dist > bestDist:
			best, bestScore, bestDist = i, score, dist
		case score == bestScore && dist == bestDist && w.Name < route.Waypoints[best].Name:
			best, bestScore, bestDist = i, score, dist
		}
	}

	return best
}
