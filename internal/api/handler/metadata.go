package handler

import (
	"net/http"

	"github.com/citywander/citywander/internal/api/models"
	"github.com/citywander/citywander/internal/api/response"
	"github.com/citywander/citywander/internal/poi"
)

// MetadataHandler handles metadata endpoints.
type MetadataHandler struct{}

// NewMetadataHandler creates a new MetadataHandler.
func NewMetadataHandler() *MetadataHandler {
	return &MetadataHandler{}
}

// GetEnums handles GET /v1/metadata/enums - get enum values used by the API.
func (h *MetadataHandler) GetEnums(w http.ResponseWriter, r *http.Request) {
	categories := make([]models.CategoryInfo, 0, len(poi.AllCategories()))
	for _, c := range poi.AllCategories() {
		categories = append(categories, models.CategoryInfo{
			Name:                 string(c),
			Weight:               c.Weight(),
			VisitDurationMinutes: int(c.VisitDuration().Minutes()),
		})
	}

	enums := models.Enums{
		Categories: categories,
		EndpointModes: []models.EndpointMode{
			models.EndpointModeRoundTrip,
			models.EndpointModeFree,
			models.EndpointModeCustom,
		},
		WaypointKinds: []models.WaypointKind{
			models.WaypointKindStart,
			models.WaypointKindStop,
			models.WaypointKindEnd,
		},
	}
	response.JSON(w, r, http.StatusOK, enums)
}
