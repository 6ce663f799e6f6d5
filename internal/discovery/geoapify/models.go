package geoapify

// Geoapify Places API response structures (GeoJSON feature collection).

type placesResponse struct {
	Features []feature `json:"features"`
}

type feature struct {
	Properties featureProperties `json:"properties"`
}

type featureProperties struct {
	Name         string  `json:"name"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	City         string  `json:"city"`
	Formatted    string  `json:"formatted"`
	Website      string  `json:"website"`
	OpeningHours string  `json:"opening_hours"`
	PlaceID      string  `json:"place_id"`
	Contact      struct {
		Phone string `json:"phone"`
	} `json:"contact"`
}
