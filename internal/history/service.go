package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/citywander/citywander/internal/api/models"
)

// Service errors.
var (
	ErrNotAuthorized = errors.New("not authorized to access this saved tour")
)

// Validation constants.
const (
	MaxLabelLength = 80
	MaxNotesLength = 500
)

// Service provides saved-tour operations.
type Service struct {
	repo Repository
}

// NewService creates a new history service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List retrieves all saved tours for a user.
func (s *Service) List(ctx context.Context, userID string, limit int) (*models.PagedSavedTours, error) {
	result, err := s.repo.List(ctx, userID, ListOptions{Limit: limit})
	if err != nil {
		return nil, err
	}

	items := make([]models.SavedTour, 0, len(result.Items))
	for _, st := range result.Items {
		items = append(items, s.toAPISavedTour(st))
	}

	var nextCursor *string
	if result.NextCursor != "" {
		nextCursor = &result.NextCursor
	}

	return &models.PagedSavedTours{
		Items: items,
		Meta: models.PagedResponseMeta{
			Limit:      limit,
			NextCursor: nextCursor,
		},
	}, nil
}

// Get retrieves a saved tour by ID for a user.
func (s *Service) Get(ctx context.Context, userID, tourID string) (*models.SavedTour, error) {
	st, err := s.repo.GetByUserAndID(ctx, userID, tourID)
	if err != nil {
		if errors.Is(err, ErrTourNotFound) {
			return nil, ErrTourNotFound
		}
		return nil, err
	}

	result := s.toAPISavedTour(st)
	return &result, nil
}

// Save stores a planned tour in the user's history.
func (s *Service) Save(ctx context.Context, userID string, input *models.TourSaveRequest) (*models.SavedTour, error) {
	// Validate input
	if fieldErrors := s.validateSaveInput(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	now := time.Now()
	tourID := "tour_" + uuid.New().String()[:22]

	st := &SavedTour{
		ID:        tourID,
		UserID:    userID,
		Label:     input.Label,
		City:      input.City,
		Notes:     input.Notes,
		Tour:      input.Tour,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, st); err != nil {
		return nil, err
	}

	result := s.toAPISavedTour(st)
	return &result, nil
}

// Update updates the label or notes of a saved tour.
func (s *Service) Update(ctx context.Context, userID, tourID string, input *models.TourUpdateRequest) (*models.SavedTour, error) {
	// Get existing tour
	st, err := s.repo.GetByUserAndID(ctx, userID, tourID)
	if err != nil {
		if errors.Is(err, ErrTourNotFound) {
			return nil, ErrTourNotFound
		}
		return nil, err
	}

	// Validate input
	if fieldErrors := s.validateUpdateInput(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	// Apply updates
	if input.Label != nil {
		st.Label = *input.Label
	}
	if input.Notes != nil {
		st.Notes = input.Notes
	}
	st.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, st); err != nil {
		return nil, err
	}

	result := s.toAPISavedTour(st)
	return &result, nil
}

// Delete deletes a saved tour for a user.
func (s *Service) Delete(ctx context.Context, userID, tourID string) error {
	// Verify ownership
	_, err := s.repo.GetByUserAndID(ctx, userID, tourID)
	if err != nil {
		if errors.Is(err, ErrTourNotFound) {
			return ErrTourNotFound
		}
		return err
	}

	return s.repo.Delete(ctx, tourID)
}

// validateSaveInput validates the save tour input.
func (s *Service) validateSaveInput(input *models.TourSaveRequest) []models.FieldError {
	var errs []models.FieldError

	// Validate label
	if input.Label == "" {
		errs = append(errs, models.FieldError{Field: "label", Message: "is required"})
	} else if len(input.Label) > MaxLabelLength {
		errs = append(errs, models.FieldError{Field: "label", Message: "must be at most 80 characters"})
	}

	// Validate city
	if input.City == "" {
		errs = append(errs, models.FieldError{Field: "city", Message: "is required"})
	}

	// Validate notes (optional)
	if input.Notes != nil && len(*input.Notes) > MaxNotesLength {
		errs = append(errs, models.FieldError{Field: "notes", Message: "must be at most 500 characters"})
	}

	// Validate tour payload
	errs = append(errs, s.validateTour(&input.Tour)...)

	return errs
}

// validateUpdateInput validates the update tour input.
func (s *Service) validateUpdateInput(input *models.TourUpdateRequest) []models.FieldError {
	var errs []models.FieldError

	// Validate label (optional)
	if input.Label != nil {
		if *input.Label == "" {
			errs = append(errs, models.FieldError{Field: "label", Message: "cannot be empty"})
		} else if len(*input.Label) > MaxLabelLength {
			errs = append(errs, models.FieldError{Field: "label", Message: "must be at most 80 characters"})
		}
	}

	// Validate notes (optional)
	if input.Notes != nil && len(*input.Notes) > MaxNotesLength {
		errs = append(errs, models.FieldError{Field: "notes", Message: "must be at most 500 characters"})
	}

	return errs
}

// validateTour checks the stored route payload for structural consistency.
func (s *Service) validateTour(tour *models.Tour) []models.FieldError {
	var errs []models.FieldError

	if len(tour.Waypoints) < 2 {
		errs = append(errs, models.FieldError{Field: "tour.waypoints", Message: "must contain at least a start and an end"})
	} else if len(tour.Legs) != len(tour.Waypoints)-1 {
		errs = append(errs, models.FieldError{Field: "tour.legs", Message: "must contain one leg per waypoint pair"})
	}

	for _, w := range tour.Waypoints {
		if w.Point.Lat < -90 || w.Point.Lat > 90 || w.Point.Lon < -180 || w.Point.Lon > 180 {
			errs = append(errs, models.FieldError{
				Field:   "tour.waypoints",
				Message: "contains an out-of-range coordinate",
			})
			break
		}
		if w.Kind == models.WaypointKindStop && (w.PoiID == nil || *w.PoiID == "") {
			errs = append(errs, models.FieldError{
				Field:   "tour.waypoints",
				Message: "stop waypoints must carry a place id",
			})
			break
		}
	}

	return errs
}

// toAPISavedTour converts a domain SavedTour to an API SavedTour.
func (s *Service) toAPISavedTour(st *SavedTour) models.SavedTour {
	return models.SavedTour{
		ID:        st.ID,
		Label:     st.Label,
		City:      st.City,
		Notes:     st.Notes,
		Tour:      st.Tour,
		CreatedAt: models.Timestamp(st.CreatedAt),
		UpdatedAt: models.Timestamp(st.UpdatedAt),
	}
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}
