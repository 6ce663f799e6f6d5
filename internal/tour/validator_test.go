package tour

import (
	"testing"
	"time"

	"github.com/citywander/citywander/internal/geo"
	"github.com/citywander/citywander/internal/poi"
)

func TestValidate_AcceptsWithinConstraints(t *testing.T) {
	route, _ := planTestRoute(t, allFixturePOIs(), true)
	v := NewValidator(ValidatorConfig{})

	cons := Constraints{
		MaxWalkingTime: durPtr(2 * time.Hour),
		Endpoint:       EndpointRoundTrip,
	}

	verdict := v.Validate(route, cons, startMarienplatz)
	if !verdict.Accepted {
		t.Fatalf("expected acceptance, got drop of %q", verdict.DropPOIID)
	}
}

func TestValidate_UnboundedConstraintsAlwaysAccept(t *testing.T) {
	route, _ := planTestRoute(t, allFixturePOIs(), true)
	v := NewValidator(ValidatorConfig{})

	verdict := v.Validate(route, Constraints{Endpoint: EndpointRoundTrip}, startMarienplatz)
	if !verdict.Accepted {
		t.Fatal("unbounded constraints must accept any route")
	}
}

func TestValidate_OverTimeDropsLowestScoredStop(t *testing.T) {
	route, _ := planTestRoute(t, allFixturePOIs(), true)
	v := NewValidator(ValidatorConfig{})

	cons := Constraints{
		MaxWalkingTime: durPtr(time.Minute),
		Endpoint:       EndpointRoundTrip,
	}

	verdict := v.Validate(route, cons, startMarienplatz)
	if verdict.Accepted {
		t.Fatal("expected rejection over the walking-time ceiling")
	}
	// Hofgarten is the park farthest from the start: lowest category weight
	// and weakest proximity, so it degrades first.
	if verdict.DropPOIID != poiHofgarten.ID {
		t.Errorf("expected %q to degrade first, got %q",
			poiHofgarten.Name, route.Waypoints[verdict.DropIndex].Name)
	}
	if route.Waypoints[verdict.DropIndex].Kind != KindStop {
		t.Error("drop index must point at an intermediate stop")
	}
}

func TestValidate_OverDistanceCeiling(t *testing.T) {
	route, _ := planTestRoute(t, allFixturePOIs(), true)
	v := NewValidator(ValidatorConfig{})

	cons := Constraints{
		MaxTotalDistanceMeters: floatPtr(10),
		Endpoint:               EndpointRoundTrip,
	}

	verdict := v.Validate(route, cons, startMarienplatz)
	if verdict.Accepted {
		t.Fatal("expected rejection over the distance ceiling")
	}
	if verdict.DropIndex < 0 {
		t.Fatal("expected a removable stop")
	}
}

func TestValidate_NoRemovableStop(t *testing.T) {
	route := &Route{
		Waypoints: []Waypoint{
			MarkerWaypoint(KindStart, "Start", startMarienplatz),
			MarkerWaypoint(KindEnd, "Start", startMarienplatz),
		},
		Legs:            []Leg{{}},
		TotalTravelTime: time.Hour,
	}
	v := NewValidator(ValidatorConfig{})

	cons := Constraints{
		MaxWalkingTime: durPtr(time.Minute),
		Endpoint:       EndpointRoundTrip,
	}

	verdict := v.Validate(route, cons, startMarienplatz)
	if verdict.Accepted {
		t.Fatal("expected rejection")
	}
	if verdict.DropIndex != -1 {
		t.Errorf("expected drop index -1 with no removable stops, got %d", verdict.DropIndex)
	}
}

func TestValidate_TieBreaksByName(t *testing.T) {
	// Two parks equidistant from the start score identically; the
	// lexicographically smaller name degrades so the outcome never depends
	// on waypoint order.
	alpha := mkPOI("Alpha Park", poi.CategoryPark, 48.1474, 11.5755)
	beta := mkPOI("Beta Park", poi.CategoryPark, 48.1274, 11.5755)

	route := &Route{
		Waypoints: []Waypoint{
			MarkerWaypoint(KindStart, "Start", startMarienplatz),
			StopWaypoint(beta),
			StopWaypoint(alpha),
			MarkerWaypoint(KindEnd, "Start", startMarienplatz),
		},
		Legs:            []Leg{{}, {}, {}},
		TotalTravelTime: time.Hour,
	}
	v := NewValidator(ValidatorConfig{})

	cons := Constraints{
		MaxWalkingTime: durPtr(time.Minute),
		Endpoint:       EndpointRoundTrip,
	}

	verdict := v.Validate(route, cons, startMarienplatz)
	if verdict.Accepted {
		t.Fatal("expected rejection")
	}
	if verdict.DropPOIID != alpha.ID {
		t.Errorf("expected %q to degrade on the name tie-break, got %q",
			alpha.Name, route.Waypoints[verdict.DropIndex].Name)
	}

	distAlpha := geo.Haversine(startMarienplatz, alpha.Coordinate)
	distBeta := geo.Haversine(startMarienplatz, beta.Coordinate)
	if distAlpha != distBeta {
		t.Fatalf("fixture drift: tie-break test needs equidistant stops, got %f vs %f", distAlpha, distBeta)
	}
}
