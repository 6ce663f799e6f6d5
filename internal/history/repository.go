package history

import "context"

// ListOptions contains options for listing saved tours.
type ListOptions struct {
	Limit  int
	Cursor string
}

// ListResult contains the results of listing saved tours.
type ListResult struct {
	Items      []*SavedTour
	NextCursor string
}

// Repository defines the interface for saved-tour persistence.
type Repository interface {
	// Get retrieves a saved tour by ID.
	Get(ctx context.Context, id string) (*SavedTour, error)

	// GetByUserAndID retrieves a saved tour by user ID and tour ID.
	// Returns ErrTourNotFound if the tour doesn't exist or doesn't belong to the user.
	GetByUserAndID(ctx context.Context, userID, tourID string) (*SavedTour, error)

	// List retrieves all saved tours for a user with pagination.
	List(ctx context.Context, userID string, opts ListOptions) (*ListResult, error)

	// Create creates a new saved tour.
	Create(ctx context.Context, tour *SavedTour) error

	// Update updates an existing saved tour.
	Update(ctx context.Context, tour *SavedTour) error

	// Delete deletes a saved tour by ID.
	Delete(ctx context.Context, id string) error
}
