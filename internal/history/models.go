// Package history provides saved-tour management services.
package history

import (
	"errors"
	"time"

	"github.com/citywander/citywander/internal/api/models"
)

// Repository errors.
var (
	ErrTourNotFound = errors.New("saved tour not found")
)

// SavedTour represents a tour kept in a user's history. The route payload is
// stored as returned by the planner so a saved tour can be rendered and
// edited without replanning.
type SavedTour struct {
	ID        string
	UserID    string
	Label     string
	City      string
	Notes     *string
	Tour      models.Tour
	CreatedAt time.Time
	UpdatedAt time.Time
}
