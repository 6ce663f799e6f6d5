package handler

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/citywander/citywander/internal/api/response"
	"github.com/citywander/citywander/internal/featureflags"
)

// CacheInvalidator clears a derived cache when flags change.
type CacheInvalidator interface {
	InvalidateCache()
}

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	service *featureflags.Service
	caches  []CacheInvalidator
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler. caches are
// additional caches to drop alongside the flag cache (e.g. discovery).
func NewFeatureFlagsHandler(service *featureflags.Service, caches ...CacheInvalidator) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service, caches: caches}
}

// ListFeatureFlags handles GET /v1/admin/flags - list all feature flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	flags := h.service.GetAllFlags(r.Context())

	items := make([]featureflags.Flag, 0, len(flags))
	for _, f := range flags {
		items = append(items, *f)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })

	response.JSON(w, r, http.StatusOK, featureflags.FlagList{Items: items})
}

// UpsertFeatureFlags handles PUT /v1/admin/flags - update feature flags.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var req featureflags.FlagUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if len(req.Updates) == 0 {
		response.BadRequest(w, r, "updates must not be empty", nil)
		return
	}

	now := time.Now()
	flags := make([]*featureflags.Flag, 0, len(req.Updates))
	for _, u := range req.Updates {
		if u.Key == "" {
			response.BadRequest(w, r, "every update needs a key", nil)
			return
		}
		flags = append(flags, &featureflags.Flag{
			Key:       u.Key,
			Value:     u.Value,
			UpdatedAt: now,
		})
	}

	if err := h.service.SetFlags(r.Context(), flags); err != nil {
		response.InternalError(w, r, "updating feature flags failed")
		return
	}

	response.NoContent(w, r)
}

// InvalidateCache handles POST /v1/admin/flags/invalidate - invalidate flag
// cache and dependent caches.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	for _, c := range h.caches {
		c.InvalidateCache()
	}
	response.NoContent(w, r)
}
