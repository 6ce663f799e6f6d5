package history

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu    sync.RWMutex
	tours map[string]*SavedTour
}

// NewInMemoryRepository creates a new in-memory saved-tour repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		tours: make(map[string]*SavedTour),
	}
}

// Get retrieves a saved tour by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*SavedTour, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.tours[id]
	if !ok {
		return nil, ErrTourNotFound
	}

	// Return a copy
	cpy := *st
	return &cpy, nil
}

// GetByUserAndID retrieves a saved tour by user ID and tour ID.
func (r *InMemoryRepository) GetByUserAndID(_ context.Context, userID, tourID string) (*SavedTour, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.tours[tourID]
	if !ok {
		return nil, ErrTourNotFound
	}

	if st.UserID != userID {
		return nil, ErrTourNotFound
	}

	// Return a copy
	cpy := *st
	return &cpy, nil
}

// List retrieves all saved tours for a user with pagination.
func (r *InMemoryRepository) List(_ context.Context, userID string, opts ListOptions) (*ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tours []*SavedTour
	for _, st := range r.tours {
		if st.UserID == userID {
			cpy := *st
			tours = append(tours, &cpy)
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	result := &ListResult{
		Items: tours,
	}

	if len(tours) > limit {
		result.Items = tours[:limit]
		result.NextCursor = tours[limit-1].ID
	}

	return result, nil
}

// Create creates a new saved tour.
func (r *InMemoryRepository) Create(_ context.Context, st *SavedTour) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *st
	r.tours[st.ID] = &cpy
	return nil
}

// Update updates an existing saved tour.
func (r *InMemoryRepository) Update(_ context.Context, st *SavedTour) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tours[st.ID]; !ok {
		return ErrTourNotFound
	}

	cpy := *st
	r.tours[st.ID] = &cpy
	return nil
}

// Delete deletes a saved tour by ID.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tours, id)
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
