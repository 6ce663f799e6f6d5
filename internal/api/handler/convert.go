package handler

import (
	"fmt"
	"time"

	"github.com/citywander/citywander/internal/api/models"
	"github.com/citywander/citywander/internal/geo"
	"github.com/citywander/citywander/internal/poi"
	"github.com/citywander/citywander/internal/tour"
	"github.com/citywander/citywander/pkg/polyline"
)

// toDomainConstraints maps the API constraint payload onto engine
// constraints. Unknown endpoint modes surface through Constraints.Validate.
func toDomainConstraints(c models.TourConstraints) tour.Constraints {
	out := tour.Constraints{
		MaxStops:               c.MaxStops,
		MinPOIDistanceMeters:   c.MinPoiDistanceMeters,
		MaxTotalDistanceMeters: c.MaxTotalDistanceMeters,
	}

	if c.MaxWalkingTimeMinutes != nil {
		d := time.Duration(*c.MaxWalkingTimeMinutes) * time.Minute
		out.MaxWalkingTime = &d
	}

	switch c.Endpoint {
	case models.EndpointModeRoundTrip:
		out.Endpoint = tour.EndpointRoundTrip
	case models.EndpointModeFree:
		out.Endpoint = tour.EndpointFree
	case models.EndpointModeCustom:
		out.Endpoint = tour.EndpointCustom
	default:
		out.Endpoint = tour.EndpointMode(c.Endpoint)
	}

	if c.CustomEndpoint != nil {
		out.CustomEndpoint = &geo.Coordinate{Lat: c.CustomEndpoint.Lat, Lon: c.CustomEndpoint.Lon}
	}

	return out
}

// toAPITour converts an engine route into the API payload. The encoded
// polyline is attached only when geometry is requested.
func toAPITour(route *tour.Route, withGeometry bool) models.Tour {
	out := models.Tour{
		ID:                     route.ID,
		Waypoints:              make([]models.TourWaypoint, 0, len(route.Waypoints)),
		Legs:                   make([]models.TourLeg, 0, len(route.Legs)),
		TotalDistanceMeters:    route.TotalDistanceMeters,
		TotalWalkingSeconds:    int(route.TotalTravelTime.Seconds()),
		TotalVisitSeconds:      int(route.TotalVisitTime.Seconds()),
		TotalExperienceSeconds: int(route.TotalExperienceTime().Seconds()),
	}

	for _, w := range route.Waypoints {
		out.Waypoints = append(out.Waypoints, toAPIWaypoint(w))
	}
	for _, l := range route.Legs {
		out.Legs = append(out.Legs, models.TourLeg{
			DistanceMeters:  l.Meters,
			DurationSeconds: int(l.Duration.Seconds()),
		})
	}

	if withGeometry {
		coords := make([]polyline.Coordinate, 0, len(route.Waypoints))
		for _, w := range route.Waypoints {
			coords = append(coords, polyline.Coordinate{Lat: w.Coordinate.Lat, Lon: w.Coordinate.Lon})
		}
		encoded := polyline.Encode(coords)
		out.GeometryPolyline = &encoded
	}

	return out
}

func toAPIWaypoint(w tour.Waypoint) models.TourWaypoint {
	out := models.TourWaypoint{
		Name:  w.Name,
		Point: models.Point{Lat: w.Coordinate.Lat, Lon: w.Coordinate.Lon},
	}

	switch w.Kind {
	case tour.KindStart:
		out.Kind = models.WaypointKindStart
	case tour.KindEnd:
		out.Kind = models.WaypointKindEnd
	case tour.KindStop:
		out.Kind = models.WaypointKindStop
		out.PoiID = optString(w.POIID)
		category := string(w.Category)
		out.Category = &category
		visit := int(w.VisitDuration.Minutes())
		out.VisitDurationMinutes = &visit
		out.Description = optString(w.Description)
		out.Website = optString(w.Contact.Website)
		out.Phone = optString(w.Contact.Phone)
		out.OpeningHours = optString(w.OpeningHours)
	}

	return out
}

// toDomainRoute reconstructs an engine route from a tour payload sent back
// by a client for editing. Totals are recomputed from the legs so a payload
// with rounded totals still satisfies the route invariants.
func toDomainRoute(t models.Tour) (*tour.Route, error) {
	if len(t.Waypoints) < 2 {
		return nil, fmt.Errorf("%w: tour must have at least start and end waypoints", tour.ErrInvalidRequest)
	}
	if len(t.Legs) != len(t.Waypoints)-1 {
		return nil, fmt.Errorf("%w: tour must have one leg per waypoint pair", tour.ErrInvalidRequest)
	}

	route := &tour.Route{
		ID:        t.ID,
		Waypoints: make([]tour.Waypoint, 0, len(t.Waypoints)),
		Legs:      make([]tour.Leg, 0, len(t.Legs)),
	}

	for _, w := range t.Waypoints {
		coord := geo.Coordinate{Lat: w.Point.Lat, Lon: w.Point.Lon}
		if !coord.Valid() {
			return nil, fmt.Errorf("%w: waypoint coordinate out of range", tour.ErrInvalidRequest)
		}

		switch w.Kind {
		case models.WaypointKindStart:
			route.Waypoints = append(route.Waypoints, tour.MarkerWaypoint(tour.KindStart, w.Name, coord))
		case models.WaypointKindEnd:
			route.Waypoints = append(route.Waypoints, tour.MarkerWaypoint(tour.KindEnd, w.Name, coord))
		case models.WaypointKindStop:
			if w.PoiID == nil || *w.PoiID == "" {
				return nil, fmt.Errorf("%w: stop waypoints must carry a place id", tour.ErrInvalidRequest)
			}
			p := poi.POI{
				ID:         *w.PoiID,
				Name:       w.Name,
				Coordinate: coord,
			}
			if w.Category != nil {
				p.Category = poi.Category(*w.Category)
			}
			if w.Description != nil {
				p.Description = *w.Description
			}
			if w.Website != nil {
				p.Contact.Website = *w.Website
			}
			if w.Phone != nil {
				p.Contact.Phone = *w.Phone
			}
			if w.OpeningHours != nil {
				p.OpeningHours = *w.OpeningHours
			}
			route.Waypoints = append(route.Waypoints, tour.StopWaypoint(p))
		default:
			return nil, fmt.Errorf("%w: unknown waypoint kind %q", tour.ErrInvalidRequest, w.Kind)
		}
	}

	for _, l := range t.Legs {
		leg := tour.Leg{
			Meters:   l.DistanceMeters,
			Duration: time.Duration(l.DurationSeconds) * time.Second,
		}
		route.Legs = append(route.Legs, leg)
		route.TotalDistanceMeters += leg.Meters
		route.TotalTravelTime += leg.Duration
	}
	for _, w := range route.Waypoints {
		if w.Kind == tour.KindStop {
			route.TotalVisitTime += w.VisitDuration
		}
	}

	return route, nil
}

// toAPIMetrics converts optimization metrics for the response payload.
func toAPIMetrics(m tour.OptimizationMetrics) models.TourMetrics {
	return models.TourMetrics{
		OriginalDistanceMeters:  m.OriginalDistanceMeters,
		OptimizedDistanceMeters: m.OptimizedDistanceMeters,
		ImprovementPercent:      m.ImprovementPercent,
		OptimizationMillis:      m.OptimizationTime.Milliseconds(),
	}
}

// toAPIPlace converts a discovered POI into the API payload.
func toAPIPlace(p poi.POI) models.Place {
	return models.Place{
		ID:           p.ID,
		Name:         p.Name,
		Point:        models.Point{Lat: p.Coordinate.Lat, Lon: p.Coordinate.Lon},
		Category:     string(p.Category),
		City:         p.City,
		Address:      optString(p.Address),
		Description:  optString(p.Description),
		Website:      optString(p.Contact.Website),
		Phone:        optString(p.Contact.Phone),
		OpeningHours: optString(p.OpeningHours),
	}
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
