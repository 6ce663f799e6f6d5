package tour

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/citywander/citywander/internal/distance"
	"github.com/citywander/citywander/internal/geo"
	"github.com/citywander/citywander/internal/poi"
)

// testWalkSpeed is the synthetic walking speed for test distances, m/s.
const testWalkSpeed = 1.4

// haversineSource is a deterministic distance source/provider for tests:
// great-circle distance at a fixed walking speed. It satisfies both
// DistanceSource and distance.Provider.
type haversineSource struct {
	callCount atomic.Int32
	err       error
}

func (h *haversineSource) Distance(ctx context.Context, a, b geo.Coordinate, mode distance.Mode) (distance.Result, error) {
	h.callCount.Add(1)
	if h.err != nil {
		return distance.Result{}, h.err
	}

	meters := geo.Haversine(a, b)
	return distance.Result{
		Meters:   meters,
		Duration: time.Duration(meters / testWalkSpeed * float64(time.Second)),
	}, nil
}

func (h *haversineSource) Name() string { return "haversine-test" }

// newSessionCache wraps the haversine source in a real session cache, the
// way the planner wires it in production.
func newSessionCache(src *haversineSource) *distance.Cache {
	return distance.NewCache(distance.CacheConfig{Provider: src})
}

// Munich city-center fixtures used across the engine tests.
var (
	startMarienplatz = geo.Coordinate{Lat: 48.1374, Lon: 11.5755}

	poiFrauenkirche    = mkPOI("Frauenkirche", poi.CategoryLandmark, 48.1386, 11.5736)
	poiResidenz        = mkPOI("Residenz", poi.CategoryAttraction, 48.1413, 11.5793)
	poiHofgarten       = mkPOI("Hofgarten", poi.CategoryPark, 48.1428, 11.5797)
	poiStadtmuseum     = mkPOI("Stadtmuseum", poi.CategoryMuseum, 48.1351, 11.5734)
	poiAsamkirche      = mkPOI("Asamkirche", poi.CategoryReligious, 48.1350, 11.5697)
	poiViktualienmarkt = mkPOI("Viktualienmarkt", poi.CategoryAttraction, 48.1353, 11.5764)
)

func mkPOI(name string, cat poi.Category, lat, lon float64) poi.POI {
	coord := geo.Coordinate{Lat: lat, Lon: lon}
	return poi.POI{
		ID:         poi.StableID("", name, coord),
		Name:       name,
		Coordinate: coord,
		Category:   cat,
		City:       "München",
	}
}

func stopsOf(pois ...poi.POI) []Waypoint {
	stops := make([]Waypoint, 0, len(pois))
	for _, p := range pois {
		stops = append(stops, StopWaypoint(p))
	}
	return stops
}

func waypointNames(seq []Waypoint) []string {
	names := make([]string, 0, len(seq))
	for _, w := range seq {
		names = append(names, w.Name)
	}
	return names
}

func allFixturePOIs() []poi.POI {
	return []poi.POI{
		poiFrauenkirche,
		poiResidenz,
		poiHofgarten,
		poiStadtmuseum,
		poiAsamkirche,
		poiViktualienmarkt,
	}
}

// planTestRoute optimizes and builds a route over the given POIs, sharing
// one session cache with the caller for follow-up edits.
func planTestRoute(t *testing.T, pois []poi.POI, roundTrip bool) (*Route, *distance.Cache) {
	t.Helper()

	cache := newSessionCache(&haversineSource{})
	opt := NewOptimizer(OptimizerConfig{Distances: cache})

	start := MarkerWaypoint(KindStart, "Start", startMarienplatz)
	var end *Waypoint
	if roundTrip {
		e := MarkerWaypoint(KindEnd, "Start", startMarienplatz)
		end = &e
	}

	seq, err := opt.Optimize(context.Background(), start, stopsOf(pois...), end)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	route, err := BuildRoute(context.Background(), cache, distance.ModeWalking, seq)
	if err != nil {
		t.Fatalf("build route: %v", err)
	}
	return route, cache
}

func stopIndexOf(t *testing.T, route *Route, name string) int {
	t.Helper()
	for i, w := range route.Waypoints {
		if w.Kind == KindStop && w.Name == name {
			return i
		}
	}
	t.Fatalf("stop %q not in route %v", name, waypointNames(route.Waypoints))
	return -1
}

func intPtr(v int) *int                         { return &v }
func durPtr(v time.Duration) *time.Duration     { return &v }
func floatPtr(v float64) *float64               { return &v }
func coordPtr(c geo.Coordinate) *geo.Coordinate { return &c }
