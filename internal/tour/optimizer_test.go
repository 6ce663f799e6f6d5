package tour

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/citywander/citywander/internal/distance"
)

func newTestOptimizer(src DistanceSource) *Optimizer {
	return NewOptimizer(OptimizerConfig{Distances: src})
}

func TestOptimize_NoStopsReturnsDegenerateRoute(t *testing.T) {
	opt := newTestOptimizer(newSessionCache(&haversineSource{}))

	start := MarkerWaypoint(KindStart, "Start", startMarienplatz)
	end := MarkerWaypoint(KindEnd, "Start", startMarienplatz)

	seq, err := opt.Optimize(context.Background(), start, nil, &end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seq) != 2 {
		t.Fatalf("expected degenerate [start, end], got %d waypoints", len(seq))
	}
	if seq[0].Kind != KindStart || seq[1].Kind != KindEnd {
		t.Errorf("unexpected sequence %v", waypointNames(seq))
	}
}

func TestOptimize_GeographicChainOrder(t *testing.T) {
	opt := newTestOptimizer(newSessionCache(&haversineSource{}))

	start := MarkerWaypoint(KindStart, "Start", startMarienplatz)
	// Construction greedily starts with Frauenkirche (closest to the
	// start), which zig-zags south again for Viktualienmarkt; the 2-opt
	// reversal straightens the chain into south-to-north order.
	stops := stopsOf(poiHofgarten, poiViktualienmarkt, poiFrauenkirche)

	seq, err := opt.Optimize(context.Background(), start, stops, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := waypointNames(seq)
	want := []string{"Start", "Viktualienmarkt", "Frauenkirche", "Hofgarten"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected order: got %v, want %v", got, want)
	}
}

func TestOptimize_FixedEndStaysLast(t *testing.T) {
	opt := newTestOptimizer(newSessionCache(&haversineSource{}))

	start := MarkerWaypoint(KindStart, "Start", startMarienplatz)
	end := MarkerWaypoint(KindEnd, "Start", startMarienplatz)
	stops := stopsOf(poiFrauenkirche, poiHofgarten, poiResidenz, poiStadtmuseum)

	seq, err := opt.Optimize(context.Background(), start, stops, &end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if seq[0].Kind != KindStart {
		t.Error("start must stay at position 0")
	}
	if seq[len(seq)-1].Kind != KindEnd {
		t.Error("fixed end must stay at the last position")
	}
	if len(seq) != len(stops)+2 {
		t.Errorf("expected %d waypoints, got %d", len(stops)+2, len(seq))
	}
}

func TestOptimize_Deterministic(t *testing.T) {
	stops := stopsOf(poiFrauenkirche, poiHofgarten, poiResidenz, poiStadtmuseum, poiAsamkirche)
	start := MarkerWaypoint(KindStart, "Start", startMarienplatz)
	end := MarkerWaypoint(KindEnd, "Start", startMarienplatz)

	var first []string
	for run := 0; run < 3; run++ {
		opt := newTestOptimizer(newSessionCache(&haversineSource{}))
		seq, err := opt.Optimize(context.Background(), start, stops, &end)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		names := waypointNames(seq)
		if first == nil {
			first = names
			continue
		}
		if !reflect.DeepEqual(first, names) {
			t.Fatalf("run %d produced different order: %v vs %v", run, names, first)
		}
	}
}

func TestOptimize_TwoOptNonRegression(t *testing.T) {
	// Build a deliberately bad construction case: nearest-neighbor from the
	// start zig-zags between two clusters; 2-opt must not make it worse.
	src := &haversineSource{}
	cache := newSessionCache(src)
	opt := newTestOptimizer(cache)

	start := MarkerWaypoint(KindStart, "Start", startMarienplatz)
	end := MarkerWaypoint(KindEnd, "Start", startMarienplatz)
	stops := stopsOf(poiFrauenkirche, poiHofgarten, poiResidenz, poiStadtmuseum, poiAsamkirche, poiViktualienmarkt)

	ctx := context.Background()

	constructed, err := opt.construct(ctx, start, stops, &end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	constructedDist, err := routeDistance(ctx, cache, distance.ModeWalking, constructed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	improved, err := opt.twoOpt(ctx, constructed, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	improvedDist, err := routeDistance(ctx, cache, distance.ModeWalking, improved)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if improvedDist > constructedDist+1e-9 {
		t.Errorf("2-opt regressed: %f -> %f", constructedDist, improvedDist)
	}
	if improved[0].Kind != KindStart || improved[len(improved)-1].Kind != KindEnd {
		t.Error("2-opt must not move pinned start/end")
	}
}

func TestOptimize_TwoOptSkipsShortRoutes(t *testing.T) {
	src := &haversineSource{}
	opt := newTestOptimizer(newSessionCache(src))

	start := MarkerWaypoint(KindStart, "Start", startMarienplatz)
	stops := stopsOf(poiFrauenkirche)

	seq, err := opt.Optimize(context.Background(), start, stops, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seq) != 2 {
		t.Fatalf("expected 2 waypoints, got %d", len(seq))
	}
}

func TestOptimize_ProviderErrorPropagates(t *testing.T) {
	src := &haversineSource{err: distance.ErrProviderUnavailable}
	opt := newTestOptimizer(newSessionCache(src))

	start := MarkerWaypoint(KindStart, "Start", startMarienplatz)
	stops := stopsOf(poiFrauenkirche, poiHofgarten)

	_, err := opt.Optimize(context.Background(), start, stops, nil)
	if !errors.Is(err, distance.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestBuildRoute_Invariants(t *testing.T) {
	src := &haversineSource{}
	cache := newSessionCache(src)
	opt := newTestOptimizer(cache)

	start := MarkerWaypoint(KindStart, "Start", startMarienplatz)
	end := MarkerWaypoint(KindEnd, "Start", startMarienplatz)
	stops := stopsOf(poiFrauenkirche, poiHofgarten, poiResidenz)

	seq, err := opt.Optimize(context.Background(), start, stops, &end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	route, err := BuildRoute(context.Background(), cache, distance.ModeWalking, seq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := route.CheckInvariants(); err != nil {
		t.Errorf("route invariants violated: %v", err)
	}
	if route.NumberOfStops() != 3 {
		t.Errorf("expected 3 stops, got %d", route.NumberOfStops())
	}
	if route.TotalVisitTime == 0 {
		t.Error("expected non-zero visit time")
	}
	if route.TotalExperienceTime() != route.TotalTravelTime+route.TotalVisitTime {
		t.Error("experience time must be travel plus visit")
	}
	if route.ID == "" {
		t.Error("route must carry an id")
	}
}
