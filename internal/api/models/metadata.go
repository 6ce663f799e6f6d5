package models

// CategoryInfo describes one place category with its scoring weight and
// estimated visit duration.
type CategoryInfo struct {
	Name                 string  `json:"name"`
	Weight               float64 `json:"weight"`
	VisitDurationMinutes int     `json:"visitDurationMinutes"`
}

// Enums represents the enum values used by the API.
type Enums struct {
	Categories    []CategoryInfo `json:"categories"`
	EndpointModes []EndpointMode `json:"endpointModes"`
	WaypointKinds []WaypointKind `json:"waypointKinds"`
}
