package tour

import (
	"context"
	"errors"
	"testing"

	"github.com/citywander/citywander/internal/distance"
	"github.com/citywander/citywander/internal/poi"
)

func newTestEditor(cache *distance.Cache) *Editor {
	return NewEditor(EditorConfig{
		Distances: cache,
		Optimizer: NewOptimizer(OptimizerConfig{Distances: cache}),
	})
}

// Candidates around Viktualienmarkt used by the editor tests.
var (
	altSchrannenhalle = richPOI("Schrannenhalle", poi.CategoryAttraction, 48.1349, 11.5770)
	altStadtcafe      = mkPOI("Stadtcafe Galerie", poi.CategoryGallery, 48.1356, 11.5758)
	altOlympiapark    = mkPOI("Olympiapark", poi.CategoryAttraction, 48.1553, 11.5764)
	altNymphenburg    = mkPOI("Schloss Nymphenburg", poi.CategoryAttraction, 48.1583, 11.5033)
)

func richPOI(name string, cat poi.Category, lat, lon float64) poi.POI {
	p := mkPOI(name, cat, lat, lon)
	p.Contact.Website = "https://example.org/" + p.ID
	return p
}

func TestAlternatives_FiltersAndRanks(t *testing.T) {
	route, cache := planTestRoute(t, []poi.POI{poiViktualienmarkt, poiFrauenkirche}, true)
	e := newTestEditor(cache)
	idx := stopIndexOf(t, route, "Viktualienmarkt")

	pool := []poi.POI{
		altStadtcafe,      // in radius, different category
		poiFrauenkirche,   // already in the route
		altOlympiapark,    // 2km away, outside the radius
		altSchrannenhalle, // in radius, same category, richer metadata
	}

	alts, err := e.Alternatives(route, idx, pool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(alts) != 2 {
		t.Fatalf("expected 2 alternatives, got %d: %v", len(alts), alts)
	}
	if alts[0].Name != altSchrannenhalle.Name {
		t.Errorf("same-category candidate must rank first, got %q", alts[0].Name)
	}
	if alts[1].Name != altStadtcafe.Name {
		t.Errorf("expected %q second, got %q", altStadtcafe.Name, alts[1].Name)
	}
}

func TestAlternatives_CapsList(t *testing.T) {
	route, cache := planTestRoute(t, []poi.POI{poiViktualienmarkt}, true)
	e := NewEditor(EditorConfig{
		Distances:       cache,
		Optimizer:       NewOptimizer(OptimizerConfig{Distances: cache}),
		MaxAlternatives: 2,
	})
	idx := stopIndexOf(t, route, "Viktualienmarkt")

	pool := []poi.POI{
		altSchrannenhalle,
		altStadtcafe,
		mkPOI("Heiliggeistkirche", poi.CategoryReligious, 48.1358, 11.5768),
	}

	alts, err := e.Alternatives(route, idx, pool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alts) != 2 {
		t.Errorf("expected capped list of 2, got %d", len(alts))
	}
}

func TestReplace_NoAlternativesLeavesRouteUnchanged(t *testing.T) {
	route, cache := planTestRoute(t, []poi.POI{poiViktualienmarkt, poiFrauenkirche}, true)
	e := newTestEditor(cache)
	idx := stopIndexOf(t, route, "Viktualienmarkt")

	res, err := e.Replace(context.Background(), route, idx, []poi.POI{altOlympiapark})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Changed {
		t.Error("no in-radius alternative must leave the route unchanged")
	}
	if res.Route != route {
		t.Error("unchanged result must return the input route")
	}
}

func TestReplaceWith_LocalSpliceOnlyTouchesAdjacentLegs(t *testing.T) {
	route, cache := planTestRoute(t,
		[]poi.POI{poiFrauenkirche, poiResidenz, poiHofgarten, poiViktualienmarkt}, true)
	e := newTestEditor(cache)
	idx := stopIndexOf(t, route, "Viktualienmarkt")

	res, err := e.ReplaceWith(context.Background(), route, idx, altSchrannenhalle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed || res.FullReoptimization {
		t.Fatalf("expected a local splice, got changed=%v full=%v", res.Changed, res.FullReoptimization)
	}
	if res.Route.ID != route.ID {
		t.Error("splice must keep the route id")
	}
	if res.Route.Waypoints[idx].Name != altSchrannenhalle.Name {
		t.Errorf("expected replacement at index %d, got %q", idx, res.Route.Waypoints[idx].Name)
	}

	for i, w := range route.Waypoints {
		if i == idx {
			continue
		}
		if res.Route.Waypoints[i] != w {
			t.Errorf("waypoint %d changed during splice: %q -> %q", i, w.Name, res.Route.Waypoints[i].Name)
		}
	}
	for i, l := range route.Legs {
		touched := i == idx-1 || i == idx
		if touched && res.Route.Legs[i] == l {
			t.Errorf("adjacent leg %d should have been recomputed", i)
		}
		if !touched && res.Route.Legs[i] != l {
			t.Errorf("leg %d changed during splice: %+v -> %+v", i, l, res.Route.Legs[i])
		}
	}

	if err := res.Route.CheckInvariants(); err != nil {
		t.Errorf("spliced route invariants violated: %v", err)
	}
	if route.Waypoints[idx].Name != "Viktualienmarkt" {
		t.Error("input route must not be mutated")
	}
}

func TestReplaceWith_SplicesTerminalStopOfFreeRoute(t *testing.T) {
	// A free-endpoint route ends at a stop, so the terminal waypoint is a
	// valid replacement target with no outbound leg.
	route, cache := planTestRoute(t,
		[]poi.POI{poiFrauenkirche, poiResidenz, poiHofgarten}, false)
	e := newTestEditor(cache)

	idx := len(route.Waypoints) - 1
	if route.Waypoints[idx].Kind != KindStop {
		t.Fatalf("free-endpoint route must end at a stop, got %q", route.Waypoints[idx].Kind)
	}
	if route.Waypoints[idx].Name != "Hofgarten" {
		t.Fatalf("expected Hofgarten as terminal stop, got %v", waypointNames(route.Waypoints))
	}

	nearby := mkPOI("Englischer Garten Süd", poi.CategoryPark, 48.1445, 11.5819)
	res, err := e.ReplaceWith(context.Background(), route, idx, nearby)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed || res.FullReoptimization {
		t.Fatalf("expected a local splice, got changed=%v full=%v", res.Changed, res.FullReoptimization)
	}
	if got := res.Route.Waypoints[idx].Name; got != nearby.Name {
		t.Errorf("expected replacement at terminal index, got %q", got)
	}
	if len(res.Route.Legs) != len(res.Route.Waypoints)-1 {
		t.Fatalf("leg count out of step: %d legs for %d waypoints",
			len(res.Route.Legs), len(res.Route.Waypoints))
	}

	for i, l := range route.Legs {
		if i == idx-1 {
			if res.Route.Legs[i] == l {
				t.Errorf("inbound leg %d should have been recomputed", i)
			}
			continue
		}
		if res.Route.Legs[i] != l {
			t.Errorf("leg %d changed during splice: %+v -> %+v", i, l, res.Route.Legs[i])
		}
	}

	if err := res.Route.CheckInvariants(); err != nil {
		t.Errorf("spliced route invariants violated: %v", err)
	}
}

func TestReplaceWith_DistantReplacementReoptimizes(t *testing.T) {
	route, cache := planTestRoute(t,
		[]poi.POI{poiFrauenkirche, poiResidenz, poiHofgarten, poiViktualienmarkt}, true)
	e := newTestEditor(cache)
	idx := stopIndexOf(t, route, "Viktualienmarkt")

	res, err := e.ReplaceWith(context.Background(), route, idx, altNymphenburg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed || !res.FullReoptimization {
		t.Fatalf("expected full re-optimization, got changed=%v full=%v", res.Changed, res.FullReoptimization)
	}
	if res.Route.ID != route.ID {
		t.Error("re-optimization must keep the route id")
	}
	if res.Route.NumberOfStops() != route.NumberOfStops() {
		t.Errorf("stop count changed: %d -> %d", route.NumberOfStops(), res.Route.NumberOfStops())
	}

	names := waypointNames(res.Route.Waypoints)
	var sawReplacement bool
	for _, n := range names {
		if n == "Viktualienmarkt" {
			t.Error("original stop still present after replacement")
		}
		if n == altNymphenburg.Name {
			sawReplacement = true
		}
	}
	if !sawReplacement {
		t.Errorf("replacement missing from %v", names)
	}

	if res.Route.Waypoints[0].Kind != KindStart {
		t.Error("start must stay pinned")
	}
	if res.Route.Waypoints[len(res.Route.Waypoints)-1].Kind != KindEnd {
		t.Error("end must stay pinned")
	}
	if err := res.Route.CheckInvariants(); err != nil {
		t.Errorf("re-optimized route invariants violated: %v", err)
	}
}

func TestReplaceWith_RejectsNonStopIndexes(t *testing.T) {
	route, cache := planTestRoute(t, []poi.POI{poiViktualienmarkt, poiFrauenkirche}, true)
	e := newTestEditor(cache)

	for _, idx := range []int{0, len(route.Waypoints) - 1, -1, len(route.Waypoints)} {
		_, err := e.ReplaceWith(context.Background(), route, idx, altSchrannenhalle)
		if !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("index %d: expected ErrInvalidRequest, got %v", idx, err)
		}
	}
}
