package models

// TourConstraints carries the planning constraints for a tour request.
// Nil fields mean unbounded.
type TourConstraints struct {
	MaxStops               *int         `json:"maxStops,omitempty" validate:"omitempty,gte=1"`
	MaxWalkingTimeMinutes  *int         `json:"maxWalkingTimeMinutes,omitempty" validate:"omitempty,gte=1"`
	MinPoiDistanceMeters   *float64     `json:"minPoiDistanceMeters,omitempty" validate:"omitempty,gte=0"`
	MaxTotalDistanceMeters *float64     `json:"maxTotalDistanceMeters,omitempty" validate:"omitempty,gt=0"`
	Endpoint               EndpointMode `json:"endpoint" validate:"required,oneof=ROUNDTRIP FREE CUSTOM"`
	CustomEndpoint         *Point       `json:"customEndpoint,omitempty"`
}

// TourPlanRequest is the request body for automatic tour planning.
type TourPlanRequest struct {
	Start          Point           `json:"start" validate:"required"`
	StartName      *string         `json:"startName,omitempty"`
	City           string          `json:"city" validate:"required"`
	Constraints    TourConstraints `json:"constraints" validate:"required"`
	ExcludedPoiIDs []string        `json:"excludedPoiIds,omitempty"`
}

// TourManualRequest is the request body for planning over a user-selected
// place set. Selected places are referenced by id against discovery results
// for the city.
type TourManualRequest struct {
	Start       Point           `json:"start" validate:"required"`
	StartName   *string         `json:"startName,omitempty"`
	City        string          `json:"city" validate:"required"`
	Constraints TourConstraints `json:"constraints" validate:"required"`
	PoiIDs      []string        `json:"poiIds" validate:"required,min=1"`
}

// TourPlanResponse is the response for tour planning.
type TourPlanResponse struct {
	GeneratedAt Timestamp   `json:"generatedAt"`
	Tour        Tour        `json:"tour"`
	Metrics     TourMetrics `json:"metrics"`
}

// Tour is a finished route payload. It carries everything needed to render
// the route and to send it back for single-stop editing.
type Tour struct {
	ID                     string         `json:"id"`
	Waypoints              []TourWaypoint `json:"waypoints"`
	Legs                   []TourLeg      `json:"legs"`
	TotalDistanceMeters    float64        `json:"totalDistanceMeters"`
	TotalWalkingSeconds    int            `json:"totalWalkingSeconds"`
	TotalVisitSeconds      int            `json:"totalVisitSeconds"`
	TotalExperienceSeconds int            `json:"totalExperienceSeconds"`

	// GeometryPolyline is the encoded waypoint polyline, omitted when
	// geometry is disabled.
	GeometryPolyline *string `json:"geometryPolyline,omitempty"`
}

// TourWaypoint is one element of the ordered waypoint sequence. Start and
// end markers carry no place metadata.
type TourWaypoint struct {
	Kind                 WaypointKind `json:"kind"`
	PoiID                *string      `json:"poiId,omitempty"`
	Name                 string       `json:"name"`
	Point                Point        `json:"point"`
	Category             *string      `json:"category,omitempty"`
	VisitDurationMinutes *int         `json:"visitDurationMinutes,omitempty"`
	Description          *string      `json:"description,omitempty"`
	Website              *string      `json:"website,omitempty"`
	Phone                *string      `json:"phone,omitempty"`
	OpeningHours         *string      `json:"openingHours,omitempty"`
}

// TourLeg is the travel segment between two consecutive waypoints.
type TourLeg struct {
	DistanceMeters  float64 `json:"distanceMeters"`
	DurationSeconds int     `json:"durationSeconds"`
}

// TourMetrics reports how much the optimizer improved the route.
type TourMetrics struct {
	OriginalDistanceMeters  float64 `json:"originalDistanceMeters"`
	OptimizedDistanceMeters float64 `json:"optimizedDistanceMeters"`
	ImprovementPercent      float64 `json:"improvementPercent"`
	OptimizationMillis      int64   `json:"optimizationMillis"`
}

// Place represents a discovered point of interest.
type Place struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Point        Point   `json:"point"`
	Category     string  `json:"category"`
	City         string  `json:"city,omitempty"`
	Address      *string `json:"address,omitempty"`
	Description  *string `json:"description,omitempty"`
	Website      *string `json:"website,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	OpeningHours *string `json:"openingHours,omitempty"`
}

// PagedPlaces represents a list of discovered places.
type PagedPlaces struct {
	Items []Place           `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}

// TourAlternativesRequest asks for replacement candidates for one stop.
type TourAlternativesRequest struct {
	Tour      Tour   `json:"tour" validate:"required"`
	StopIndex int    `json:"stopIndex" validate:"gte=0"`
	City      string `json:"city" validate:"required"`
}

// TourAlternativesResponse lists ranked replacement candidates.
type TourAlternativesResponse struct {
	Items []Place `json:"items"`
}

// TourReplaceStopRequest substitutes one stop of a previously returned tour.
// Without a replacementPoiId the best in-radius alternative is chosen.
type TourReplaceStopRequest struct {
	Tour             Tour    `json:"tour" validate:"required"`
	StopIndex        int     `json:"stopIndex" validate:"gte=0"`
	City             string  `json:"city" validate:"required"`
	ReplacementPoiID *string `json:"replacementPoiId,omitempty"`
}

// TourReplaceStopResponse is the edit outcome.
type TourReplaceStopResponse struct {
	Tour        Tour   `json:"tour"`
	Changed     bool   `json:"changed"`
	Reoptimized bool   `json:"reoptimized"`
	Replacement *Place `json:"replacement,omitempty"`
}
