package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citywander/citywander/internal/api/models"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
// The route payload is stored as a jsonb column.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL saved-tour repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get retrieves a saved tour by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*SavedTour, error) {
	query := `
		SELECT id, user_id, label, city, notes, tour, created_at, updated_at
		FROM saved_tours
		WHERE id = $1
	`

	return r.scanTour(ctx, query, id)
}

// GetByUserAndID retrieves a saved tour by user ID and tour ID.
func (r *PostgresRepository) GetByUserAndID(ctx context.Context, userID, tourID string) (*SavedTour, error) {
	query := `
		SELECT id, user_id, label, city, notes, tour, created_at, updated_at
		FROM saved_tours
		WHERE id = $1 AND user_id = $2
	`

	return r.scanTour(ctx, query, tourID, userID)
}

// scanTour scans a saved tour from a query result.
func (r *PostgresRepository) scanTour(ctx context.Context, query string, args ...interface{}) (*SavedTour, error) {
	var (
		tour    SavedTour
		payload []byte
	)

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&tour.ID,
		&tour.UserID,
		&tour.Label,
		&tour.City,
		&tour.Notes,
		&payload,
		&tour.CreatedAt,
		&tour.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTourNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(payload, &tour.Tour); err != nil {
		return nil, fmt.Errorf("decoding tour payload: %w", err)
	}

	return &tour, nil
}

// List retrieves all saved tours for a user with pagination.
func (r *PostgresRepository) List(ctx context.Context, userID string, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	// Fetch one extra to determine if there are more results
	fetchLimit := limit + 1

	query := `
		SELECT id, user_id, label, city, notes, tour, created_at, updated_at
		FROM saved_tours
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, fetchLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tours []*SavedTour
	for rows.Next() {
		var (
			tour    SavedTour
			payload []byte
		)
		err := rows.Scan(
			&tour.ID,
			&tour.UserID,
			&tour.Label,
			&tour.City,
			&tour.Notes,
			&payload,
			&tour.CreatedAt,
			&tour.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &tour.Tour); err != nil {
			return nil, fmt.Errorf("decoding tour payload: %w", err)
		}
		tours = append(tours, &tour)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &ListResult{
		Items: tours,
	}

	// If we got more results than the limit, there are more pages
	if len(tours) > limit {
		result.Items = tours[:limit]
		// Use the last item's ID as the cursor for the next page
		result.NextCursor = tours[limit-1].ID
	}

	return result, nil
}

// Create creates a new saved tour.
func (r *PostgresRepository) Create(ctx context.Context, tour *SavedTour) error {
	payload, err := encodeTour(tour.Tour)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO saved_tours (
			id, user_id, label, city, notes, tour, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.pool.Exec(ctx, query,
		tour.ID,
		tour.UserID,
		tour.Label,
		tour.City,
		tour.Notes,
		payload,
		tour.CreatedAt,
		tour.UpdatedAt,
	)
	return err
}

// Update updates an existing saved tour.
func (r *PostgresRepository) Update(ctx context.Context, tour *SavedTour) error {
	payload, err := encodeTour(tour.Tour)
	if err != nil {
		return err
	}

	query := `
		UPDATE saved_tours SET
			label = $2,
			city = $3,
			notes = $4,
			tour = $5,
			updated_at = $6
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		tour.ID,
		tour.Label,
		tour.City,
		tour.Notes,
		payload,
		tour.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrTourNotFound
	}

	return nil
}

// Delete deletes a saved tour by ID.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM saved_tours WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func encodeTour(tour models.Tour) ([]byte, error) {
	payload, err := json.Marshal(tour)
	if err != nil {
		return nil, fmt.Errorf("encoding tour payload: %w", err)
	}
	return payload, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
