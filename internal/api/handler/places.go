package handler

import (
	"net/http"
	"strconv"

	"github.com/citywander/citywander/internal/api/models"
	"github.com/citywander/citywander/internal/api/response"
	"github.com/citywander/citywander/internal/geo"
	"github.com/citywander/citywander/internal/poi"
)

// DefaultPlacesLimit caps how many places a listing returns by default.
const DefaultPlacesLimit = 50

// PlacesHandler handles place discovery endpoints.
type PlacesHandler struct {
	places PlaceSource
}

// NewPlacesHandler creates a new PlacesHandler.
func NewPlacesHandler(places PlaceSource) *PlacesHandler {
	return &PlacesHandler{places: places}
}

// ListPlaces handles GET /v1/places - discover places around a point.
// Query parameters: city (required), lat, lon (required), radius (meters,
// optional), category (optional filter), limit (optional).
func (h *PlacesHandler) ListPlaces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	city := q.Get("city")
	if city == "" {
		response.BadRequest(w, r, "city is required", []models.FieldError{
			{Field: "city", Message: "is required"},
		})
		return
	}

	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(q.Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		response.BadRequest(w, r, "lat and lon are required numbers", []models.FieldError{
			{Field: "lat", Message: "must be a number"},
			{Field: "lon", Message: "must be a number"},
		})
		return
	}

	center := geo.Coordinate{Lat: lat, Lon: lon}
	if !center.Valid() {
		response.BadRequest(w, r, "coordinate out of range", nil)
		return
	}

	radius := poi.DefaultSearchRadiusMeters
	if raw := q.Get("radius"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			response.BadRequest(w, r, "radius must be a positive number", []models.FieldError{
				{Field: "radius", Message: "must be a positive number"},
			})
			return
		}
		radius = parsed
	}

	var category poi.Category
	if raw := q.Get("category"); raw != "" {
		category = poi.Category(raw)
		if !category.Valid() {
			response.BadRequest(w, r, "unknown category", []models.FieldError{
				{Field: "category", Message: "is not a known place category"},
			})
			return
		}
	}

	limit := DefaultPlacesLimit
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.BadRequest(w, r, "limit must be a positive integer", []models.FieldError{
				{Field: "limit", Message: "must be a positive integer"},
			})
			return
		}
		limit = parsed
	}

	discovered, err := h.places.Discover(r.Context(), city, center, radius)
	if err != nil {
		writeTourError(w, r, err)
		return
	}

	items := make([]models.Place, 0, len(discovered))
	for _, p := range discovered {
		if category != "" && p.Category != category {
			continue
		}
		if len(items) >= limit {
			break
		}
		items = append(items, toAPIPlace(p))
	}

	response.JSON(w, r, http.StatusOK, models.PagedPlaces{
		Items: items,
		Meta:  models.PagedResponseMeta{Limit: limit},
	})
}
