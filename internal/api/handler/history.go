package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/citywander/citywander/internal/api/models"
	"github.com/citywander/citywander/internal/api/response"
	"github.com/citywander/citywander/internal/history"
)

// DefaultHistoryLimit caps how many saved tours a listing returns by default.
const DefaultHistoryLimit = 20

// HistoryHandler handles saved-tour endpoints.
type HistoryHandler struct {
	service *history.Service
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(service *history.Service) *HistoryHandler {
	return &HistoryHandler{service: service}
}

// ListTours handles GET /v1/me/tours - list the user's saved tours.
func (h *HistoryHandler) ListTours(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	limit := DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.BadRequest(w, r, "limit must be a positive integer", []models.FieldError{
				{Field: "limit", Message: "must be a positive integer"},
			})
			return
		}
		limit = parsed
	}

	result, err := h.service.List(r.Context(), userID, limit)
	if err != nil {
		response.InternalError(w, r, "listing saved tours failed")
		return
	}

	response.JSON(w, r, http.StatusOK, result)
}

// SaveTour handles POST /v1/me/tours - save a planned tour.
func (h *HistoryHandler) SaveTour(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	var input models.TourSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	saved, err := h.service.Save(r.Context(), userID, &input)
	if err != nil {
		var ve *history.ValidationError
		if errors.As(err, &ve) {
			response.BadRequest(w, r, "validation error", ve.Errors)
			return
		}
		response.InternalError(w, r, "saving tour failed")
		return
	}

	response.Created(w, r, "/v1/me/tours/"+saved.ID, saved)
}

// GetTour handles GET /v1/me/tours/{tourId} - get one saved tour.
func (h *HistoryHandler) GetTour(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	tourID := chi.URLParam(r, "tourId")
	saved, err := h.service.Get(r.Context(), userID, tourID)
	if err != nil {
		if errors.Is(err, history.ErrTourNotFound) {
			response.NotFound(w, r, "saved tour not found")
			return
		}
		response.InternalError(w, r, "loading saved tour failed")
		return
	}

	response.JSON(w, r, http.StatusOK, saved)
}

// UpdateTour handles PATCH /v1/me/tours/{tourId} - rename or annotate a
// saved tour.
func (h *HistoryHandler) UpdateTour(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	var input models.TourUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	tourID := chi.URLParam(r, "tourId")
	updated, err := h.service.Update(r.Context(), userID, tourID, &input)
	if err != nil {
		if errors.Is(err, history.ErrTourNotFound) {
			response.NotFound(w, r, "saved tour not found")
			return
		}
		var ve *history.ValidationError
		if errors.As(err, &ve) {
			response.BadRequest(w, r, "validation error", ve.Errors)
			return
		}
		response.InternalError(w, r, "updating saved tour failed")
		return
	}

	response.JSON(w, r, http.StatusOK, updated)
}

// DeleteTour handles DELETE /v1/me/tours/{tourId} - delete a saved tour.
func (h *HistoryHandler) DeleteTour(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	tourID := chi.URLParam(r, "tourId")
	if err := h.service.Delete(r.Context(), userID, tourID); err != nil {
		if errors.Is(err, history.ErrTourNotFound) {
			response.NotFound(w, r, "saved tour not found")
			return
		}
		response.InternalError(w, r, "deleting saved tour failed")
		return
	}

	response.NoContent(w, r)
}
