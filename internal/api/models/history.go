package models

// SavedTour represents a tour kept in the user's history.
type SavedTour struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	City      string    `json:"city"`
	Notes     *string   `json:"notes,omitempty"`
	Tour      Tour      `json:"tour"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// TourSaveRequest is the request body for saving a tour.
type TourSaveRequest struct {
	Label string  `json:"label" validate:"required,min=1,max=80"`
	City  string  `json:"city" validate:"required"`
	Notes *string `json:"notes,omitempty" validate:"omitempty,max=500"`
	Tour  Tour    `json:"tour" validate:"required"`
}

// TourUpdateRequest is the request body for updating a saved tour.
type TourUpdateRequest struct {
	Label *string `json:"label,omitempty" validate:"omitempty,min=1,max=80"`
	Notes *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// PagedSavedTours represents a paginated list of saved tours.
type PagedSavedTours struct {
	Items []SavedTour       `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}
