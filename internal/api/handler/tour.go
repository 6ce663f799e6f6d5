package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/citywander/citywander/internal/api/models"
	"github.com/citywander/citywander/internal/api/response"
	"github.com/citywander/citywander/internal/discovery"
	"github.com/citywander/citywander/internal/featureflags"
	"github.com/citywander/citywander/internal/geo"
	"github.com/citywander/citywander/internal/poi"
	"github.com/citywander/citywander/internal/tour"
)

// PlaceSource supplies candidate places for a city around a center point.
type PlaceSource interface {
	Discover(ctx context.Context, city string, center geo.Coordinate, radiusMeters float64) ([]poi.POI, error)
}

// TourHandler handles tour planning and editing endpoints.
type TourHandler struct {
	planner *tour.Planner
	places  PlaceSource
	flags   *featureflags.Service
}

// NewTourHandler creates a new TourHandler.
func NewTourHandler(planner *tour.Planner, places PlaceSource, flags *featureflags.Service) *TourHandler {
	return &TourHandler{
		planner: planner,
		places:  places,
		flags:   flags,
	}
}

// PlanTour handles POST /v1/tours:plan - automatic tour planning.
func (h *TourHandler) PlanTour(w http.ResponseWriter, r *http.Request) {
	var input models.TourPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if input.City == "" {
		response.BadRequest(w, r, "city is required", []models.FieldError{
			{Field: "city", Message: "is required"},
		})
		return
	}

	req := tour.AutoPlanRequest{
		Start:       geo.Coordinate{Lat: input.Start.Lat, Lon: input.Start.Lon},
		City:        input.City,
		Constraints: toDomainConstraints(input.Constraints),
	}
	if input.StartName != nil {
		req.StartName = *input.StartName
	}
	if len(input.ExcludedPoiIDs) > 0 {
		req.ExcludedPOIIDs = make(map[string]struct{}, len(input.ExcludedPoiIDs))
		for _, id := range input.ExcludedPoiIDs {
			req.ExcludedPOIIDs[id] = struct{}{}
		}
	}

	result, err := h.planner.PlanAutomatic(r.Context(), req)
	if err != nil {
		writeTourError(w, r, err)
		return
	}

	h.writePlanResponse(w, r, result)
}

// PlanManualTour handles POST /v1/tours:plan-manual - planning over a
// user-selected place set. The selection is resolved by id against
// discovery results for the city.
func (h *TourHandler) PlanManualTour(w http.ResponseWriter, r *http.Request) {
	var input models.TourManualRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if input.City == "" {
		response.BadRequest(w, r, "city is required", []models.FieldError{
			{Field: "city", Message: "is required"},
		})
		return
	}
	if len(input.PoiIDs) == 0 {
		response.BadRequest(w, r, "poiIds must not be empty", []models.FieldError{
			{Field: "poiIds", Message: "is required"},
		})
		return
	}

	start := geo.Coordinate{Lat: input.Start.Lat, Lon: input.Start.Lon}
	selected, err := h.resolvePlaces(r.Context(), input.City, start, input.PoiIDs)
	if err != nil {
		writeTourError(w, r, err)
		return
	}
	if len(selected) != len(input.PoiIDs) {
		response.BadRequest(w, r, "one or more places were not found in this city", []models.FieldError{
			{Field: "poiIds", Message: "contains unknown place ids"},
		})
		return
	}

	req := tour.ManualPlanRequest{
		Start:       start,
		Constraints: toDomainConstraints(input.Constraints),
		POIs:        selected,
	}
	if input.StartName != nil {
		req.StartName = *input.StartName
	}

	result, err := h.planner.PlanManual(r.Context(), req)
	if err != nil {
		writeTourError(w, r, err)
		return
	}

	h.writePlanResponse(w, r, result)
}

// Alternatives handles POST /v1/tours:alternatives - list replacement
// candidates for one stop of a previously returned tour.
func (h *TourHandler) Alternatives(w http.ResponseWriter, r *http.Request) {
	var input models.TourAlternativesRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	route, err := toDomainRoute(input.Tour)
	if err != nil {
		writeTourError(w, r, err)
		return
	}

	pool, err := h.poolAround(r.Context(), input.City, route, input.StopIndex)
	if err != nil {
		writeTourError(w, r, err)
		return
	}

	editor := h.planner.NewEditor(r.Context())
	alternatives, err := editor.Alternatives(route, input.StopIndex, pool)
	if err != nil {
		writeTourError(w, r, err)
		return
	}

	items := make([]models.Place, 0, len(alternatives))
	for _, p := range alternatives {
		items = append(items, toAPIPlace(p))
	}
	response.JSON(w, r, http.StatusOK, models.TourAlternativesResponse{Items: items})
}

// ReplaceStop handles POST /v1/tours:replace-stop - substitute one stop of
// a previously returned tour.
func (h *TourHandler) ReplaceStop(w http.ResponseWriter, r *http.Request) {
	var input models.TourReplaceStopRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	route, err := toDomainRoute(input.Tour)
	if err != nil {
		writeTourError(w, r, err)
		return
	}

	pool, err := h.poolAround(r.Context(), input.City, route, input.StopIndex)
	if err != nil {
		writeTourError(w, r, err)
		return
	}

	editor := h.planner.NewEditor(r.Context())

	var result *tour.EditResult
	if input.ReplacementPoiID != nil {
		replacement, ok := findPlace(pool, *input.ReplacementPoiID)
		if !ok {
			response.BadRequest(w, r, "replacement place was not found in this city", []models.FieldError{
				{Field: "replacementPoiId", Message: "unknown place id"},
			})
			return
		}
		result, err = editor.ReplaceWith(r.Context(), route, input.StopIndex, replacement)
	} else {
		result, err = editor.Replace(r.Context(), route, input.StopIndex, pool)
	}
	if err != nil {
		writeTourError(w, r, err)
		return
	}

	resp := models.TourReplaceStopResponse{
		Tour:        toAPITour(result.Route, h.geometryEnabled(r.Context())),
		Changed:     result.Changed,
		Reoptimized: result.FullReoptimization,
	}
	if result.Replacement != nil {
		place := toAPIPlace(*result.Replacement)
		resp.Replacement = &place
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// writePlanResponse renders a finished plan.
func (h *TourHandler) writePlanResponse(w http.ResponseWriter, r *http.Request, result *tour.PlanResult) {
	resp := models.TourPlanResponse{
		GeneratedAt: models.Timestamp(time.Now()),
		Tour:        toAPITour(result.Route, h.geometryEnabled(r.Context())),
		Metrics:     toAPIMetrics(result.Metrics),
	}
	response.JSON(w, r, http.StatusOK, resp)
}

func (h *TourHandler) geometryEnabled(ctx context.Context) bool {
	if h.flags == nil {
		return true
	}
	return h.flags.IsRouteGeometryEnabled(ctx)
}

// resolvePlaces maps place ids onto discovery results for the city.
func (h *TourHandler) resolvePlaces(ctx context.Context, city string, center geo.Coordinate, ids []string) ([]poi.POI, error) {
	pool, err := h.places.Discover(ctx, city, center, poi.DefaultSearchRadiusMeters)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]poi.POI, len(pool))
	for _, p := range pool {
		byID[p.ID] = p
	}

	selected := make([]poi.POI, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			selected = append(selected, p)
		}
	}
	return selected, nil
}

// poolAround discovers the candidate pool around the stop being edited.
func (h *TourHandler) poolAround(ctx context.Context, city string, route *tour.Route, stopIndex int) ([]poi.POI, error) {
	if stopIndex < 0 || stopIndex >= len(route.Waypoints) {
		return nil, tour.ErrInvalidRequest
	}
	center := route.Waypoints[stopIndex].Coordinate
	return h.places.Discover(ctx, city, center, poi.DefaultSearchRadiusMeters)
}

func findPlace(pool []poi.POI, id string) (poi.POI, bool) {
	for _, p := range pool {
		if p.ID == id {
			return p, true
		}
	}
	return poi.POI{}, false
}

// writeTourError maps engine errors onto problem responses.
func writeTourError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tour.ErrInvalidRequest),
		errors.Is(err, discovery.ErrInvalidCoordinates),
		errors.Is(err, discovery.ErrInvalidRadius):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, poi.ErrNoCandidates):
		response.NotFound(w, r, "no candidate places available for this request")
	case errors.Is(err, tour.ErrRouteTooConstrained):
		response.Conflict(w, r, "no route satisfies the given constraints; relax the walking time or stop count")
	case errors.Is(err, discovery.ErrProviderUnavailable):
		response.ServiceUnavailable(w, r, "place discovery is temporarily unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		response.ServiceUnavailable(w, r, "request cancelled before a route could be planned")
	default:
		response.InternalError(w, r, "tour planning failed")
	}
}
