// Package tour provides the route generation and optimization engine:
// candidate ordering, constraint validation with iterative degradation,
// single-stop editing and the planning orchestration around them.
package tour

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/citywander/citywander/internal/geo"
	"github.com/citywander/citywander/internal/poi"
)

// Engine errors.
var (
	// ErrRouteTooConstrained indicates the validator exhausted degradation
	// options without satisfying the constraints.
	ErrRouteTooConstrained = errors.New("route cannot satisfy the given constraints")
	// ErrInvalidRequest indicates malformed planning constraints.
	ErrInvalidRequest = errors.New("invalid planning request")
	// ErrNoChange indicates a single-stop edit had no alternative to apply.
	ErrNoChange = errors.New("no change applied")
)

// EndpointMode selects how a tour terminates.
type EndpointMode string

const (
	// EndpointRoundTrip ends the tour back at the start.
	EndpointRoundTrip EndpointMode = "roundtrip"
	// EndpointFree ends the tour at whichever stop the optimizer places last.
	EndpointFree EndpointMode = "free"
	// EndpointCustom ends the tour at a fixed caller-provided coordinate.
	EndpointCustom EndpointMode = "custom"
)

// Valid reports whether the endpoint mode is one of the supported values.
func (m EndpointMode) Valid() bool {
	switch m {
	case EndpointRoundTrip, EndpointFree, EndpointCustom:
		return true
	}
	return false
}

// Constraints is the immutable configuration for one planning request.
// Nil pointer fields mean "unbounded" / "open end" / "no minimum".
type Constraints struct {
	// MaxStops bounds the number of intermediate stops.
	MaxStops *int

	// MaxWalkingTime bounds total travel (not visit) time.
	MaxWalkingTime *time.Duration

	// MinPOIDistanceMeters is the minimum distance between any two selected
	// POIs.
	MinPOIDistanceMeters *float64

	// MaxTotalDistanceMeters is a total-distance ceiling kept for callers
	// that budget by distance instead of time.
	MaxTotalDistanceMeters *float64

	// Endpoint selects the termination mode.
	Endpoint EndpointMode

	// CustomEndpoint is required when Endpoint is EndpointCustom.
	CustomEndpoint *geo.Coordinate
}

// Validate checks the constraints for internal consistency.
func (c *Constraints) Validate() error {
	if c.MaxStops != nil && *c.MaxStops < 1 {
		return fmt.Errorf("%w: maximum stops must be at least 1", ErrInvalidRequest)
	}
	if c.MaxWalkingTime != nil && *c.MaxWalkingTime <= 0 {
		return fmt.Errorf("%w: maximum walking time must be positive", ErrInvalidRequest)
	}
	if c.MinPOIDistanceMeters != nil && *c.MinPOIDistanceMeters < 0 {
		return fmt.Errorf("%w: minimum POI distance must not be negative", ErrInvalidRequest)
	}
	if c.MaxTotalDistanceMeters != nil && *c.MaxTotalDistanceMeters <= 0 {
		return fmt.Errorf("%w: maximum total distance must be positive", ErrInvalidRequest)
	}
	if !c.Endpoint.Valid() {
		return fmt.Errorf("%w: unknown endpoint mode %q", ErrInvalidRequest, c.Endpoint)
	}
	if c.Endpoint == EndpointCustom {
		if c.CustomEndpoint == nil {
			return fmt.Errorf("%w: custom endpoint mode requires an endpoint coordinate", ErrInvalidRequest)
		}
		if !c.CustomEndpoint.Valid() {
			return fmt.Errorf("%w: custom endpoint coordinate out of range", ErrInvalidRequest)
		}
	}
	return nil
}

// WaypointKind distinguishes route markers from visitable stops.
type WaypointKind string

const (
	KindStart WaypointKind = "start"
	KindStop  WaypointKind = "stop"
	KindEnd   WaypointKind = "end"
)

// Waypoint is a POI (or a start/end marker) placed into a route.
// Start and end waypoints carry no visit duration.
type Waypoint struct {
	Kind          WaypointKind
	POIID         string
	Name          string
	Coordinate    geo.Coordinate
	Category      poi.Category
	VisitDuration time.Duration
	Description   string
	Contact       poi.Contact
	OpeningHours  string
}

// StopWaypoint builds a visitable waypoint from a POI. The visit duration is
// the category constant.
func StopWaypoint(p poi.POI) Waypoint {
	return Waypoint{
		Kind:          KindStop,
		POIID:         p.ID,
		Name:          p.Name,
		Coordinate:    p.Coordinate,
		Category:      p.Category,
		VisitDuration: p.Category.VisitDuration(),
		Description:   p.Description,
		Contact:       p.Contact,
		OpeningHours:  p.OpeningHours,
	}
}

// MarkerWaypoint builds a start or end marker.
func MarkerWaypoint(kind WaypointKind, name string, coord geo.Coordinate) Waypoint {
	return Waypoint{
		Kind:       kind,
		Name:       name,
		Coordinate: coord,
	}
}

// asPOI reconstructs the POI fields needed for score recomputation during
// validation.
func (w *Waypoint) asPOI() poi.POI {
	return poi.POI{
		ID:           w.POIID,
		Name:         w.Name,
		Coordinate:   w.Coordinate,
		Category:     w.Category,
		Description:  w.Description,
		Contact:      w.Contact,
		OpeningHours: w.OpeningHours,
	}
}

// Leg is the travel segment between two consecutive waypoints.
type Leg struct {
	Meters   float64
	Duration time.Duration
}

// Route is an ordered waypoint sequence with per-leg travel metrics.
// Routes are immutable values: edits produce a new Route rather than
// mutating in place.
type Route struct {
	ID        string
	Waypoints []Waypoint
	Legs      []Leg

	TotalDistanceMeters float64
	TotalTravelTime     time.Duration
	TotalVisitTime      time.Duration
}

// TotalExperienceTime is travel plus visit time.
func (r *Route) TotalExperienceTime() time.Duration {
	return r.TotalTravelTime + r.TotalVisitTime
}

// NumberOfStops counts the visitable stops, excluding start and end markers.
func (r *Route) NumberOfStops() int {
	n := 0
	for _, w := range r.Waypoints {
		if w.Kind == KindStop {
			n++
		}
	}
	return n
}

// distanceTolerance is the floating point tolerance for the leg-sum
// invariant.
const distanceTolerance = 1e-6

// CheckInvariants verifies the structural route invariants:
// len(legs) == len(waypoints)-1 and sum(leg distances) == total distance.
func (r *Route) CheckInvariants() error {
	if len(r.Waypoints) < 2 {
		return fmt.Errorf("route must have at least start and end, got %d waypoints", len(r.Waypoints))
	}
	if len(r.Legs) != len(r.Waypoints)-1 {
		return fmt.Errorf("leg count %d does not match waypoint count %d", len(r.Legs), len(r.Waypoints))
	}

	var sum float64
	for _, l := range r.Legs {
		sum += l.Meters
	}
	if math.Abs(sum-r.TotalDistanceMeters) > distanceTolerance {
		return fmt.Errorf("leg distance sum %f does not match total %f", sum, r.TotalDistanceMeters)
	}
	return nil
}

// OptimizationMetrics reports how much the optimizer improved a candidate
// ordering.
type OptimizationMetrics struct {
	// OriginalDistanceMeters is the total distance of the input ordering.
	OriginalDistanceMeters float64
	// OptimizedDistanceMeters is the total distance after optimization.
	OptimizedDistanceMeters float64
	// ImprovementPercent is the relative reduction, never negative.
	ImprovementPercent float64
	// OptimizationTime is the wall-clock optimization duration.
	OptimizationTime time.Duration
}

// computeImprovement fills ImprovementPercent from the two distances.
func (m *OptimizationMetrics) computeImprovement() {
	if m.OriginalDistanceMeters <= 0 {
		m.ImprovementPercent = 0
		return
	}
	pct := (m.OriginalDistanceMeters - m.OptimizedDistanceMeters) / m.OriginalDistanceMeters * 100
	if pct < 0 {
		pct = 0
	}
	m.ImprovementPercent = pct
}
