package openrouteservice

// orsRequest is the request body for the ORS directions endpoint.
type orsRequest struct {
	// Coordinates are [lon, lat] pairs (GeoJSON order).
	Coordinates  [][]float64 `json:"coordinates"`
	Instructions bool        `json:"instructions"`
	Geometry     bool        `json:"geometry"`
	Units        string      `json:"units"`
}

// orsResponse is the directions response.
type orsResponse struct {
	Routes []orsRoute `json:"routes"`
}

type orsRoute struct {
	Summary orsSummary `json:"summary"`
}

type orsSummary struct {
	Distance float64 `json:"distance"` // meters
	Duration float64 `json:"duration"` // seconds
}

// orsErrorResponse is the error envelope ORS returns on failures.
type orsErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// orsErrorCodeNotFound is the ORS error code for "no routable point found".
const orsErrorCodeNotFound = 2010
