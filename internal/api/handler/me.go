package handler

import (
	"errors"
	"net/http"

	"github.com/citywander/citywander/internal/api/models"
	"github.com/citywander/citywander/internal/api/response"
	"github.com/citywander/citywander/internal/auth"
)

// MeHandler handles user account endpoints.
type MeHandler struct {
	authService *auth.Service
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(authService *auth.Service) *MeHandler {
	return &MeHandler{authService: authService}
}

// GetMe handles GET /v1/me - get current user account summary.
func (h *MeHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	user, err := h.authService.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			response.NotFound(w, r, "user not found")
			return
		}
		response.InternalError(w, r, "loading user failed")
		return
	}

	me := models.Me{
		UserID:    user.ID,
		Locale:    user.Locale,
		CreatedAt: models.Timestamp(user.CreatedAt),
	}
	if user.Email != "" {
		me.Email = &user.Email
	}
	response.JSON(w, r, http.StatusOK, me)
}
