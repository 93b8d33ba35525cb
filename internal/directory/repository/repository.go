package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"urgent_dispatch_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const professionalNotFoundMsg = "professional not found"

// Professional is a registered service professional with a last-known location.
type Professional struct {
	ID                uuid.UUID
	FullName          string
	Phone             string
	CategorySlug      string
	Rating            float64
	IsAvailable       bool
	Latitude          *float64
	Longitude         *float64
	LocationUpdatedAt *time.Time
	CreatedAt         time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create registers a new professional.
func (r *Repository) Create(ctx context.Context, p Professional) (Professional, error) {
	query := `
		INSERT INTO professionals (full_name, phone, category_slug, rating, is_available, latitude, longitude, location_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	var locationUpdatedAt *time.Time
	if p.Latitude != nil && p.Longitude != nil {
		now := time.Now()
		locationUpdatedAt = &now
	}

	err := r.pool.QueryRow(ctx, query,
		p.FullName, p.Phone, p.CategorySlug, p.Rating, p.IsAvailable,
		p.Latitude, p.Longitude, locationUpdatedAt,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Professional{}, apperr.Validation("unknown service category")
		}
		return Professional{}, fmt.Errorf("create professional: %w", err)
	}
	p.LocationUpdatedAt = locationUpdatedAt

	return p, nil
}

// GetByID retrieves a professional.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Professional, error) {
	query := `
		SELECT id, full_name, phone, category_slug, rating, is_available,
		       latitude, longitude, location_updated_at, created_at
		FROM professionals
		WHERE id = $1`

	var p Professional
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.FullName, &p.Phone, &p.CategorySlug, &p.Rating, &p.IsAvailable,
		&p.Latitude, &p.Longitude, &p.LocationUpdatedAt, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Professional{}, apperr.NotFound(professionalNotFoundMsg)
	}
	if err != nil {
		return Professional{}, fmt.Errorf("get professional: %w", err)
	}

	return p, nil
}

// UpdateLocation stores a professional's last-known coordinates.
func (r *Repository) UpdateLocation(ctx context.Context, id uuid.UUID, lat, lon float64) error {
	query := `
		UPDATE professionals
		SET latitude = $2, longitude = $3, location_updated_at = now()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, lat, lon)
	if err != nil {
		return fmt.Errorf("update professional location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(professionalNotFoundMsg)
	}

	return nil
}

// SetAvailability flips the availability flag.
func (r *Repository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	query := `UPDATE professionals SET is_available = $2 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, available)
	if err != nil {
		return fmt.Errorf("set professional availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(professionalNotFoundMsg)
	}

	return nil
}

// ListByCategory returns professionals in a category, most recently created first.
func (r *Repository) ListByCategory(ctx context.Context, categorySlug string) ([]Professional, error) {
	query := `
		SELECT id, full_name, phone, category_slug, rating, is_available,
		       latitude, longitude, location_updated_at, created_at
		FROM professionals
		WHERE category_slug = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, categorySlug)
	if err != nil {
		return nil, fmt.Errorf("list professionals: %w", err)
	}
	defer rows.Close()

	var pros []Professional
	for rows.Next() {
		var p Professional
		if err := rows.Scan(
			&p.ID, &p.FullName, &p.Phone, &p.CategorySlug, &p.Rating, &p.IsAvailable,
			&p.Latitude, &p.Longitude, &p.LocationUpdatedAt, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan professional: %w", err)
		}
		pros = append(pros, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate professionals: %w", err)
	}

	return pros, nil
}

// FindEligible returns available professionals of the category that have a
// known location. Distance filtering and ranking happen in the finder; this
// query only narrows the candidate universe.
func (r *Repository) FindEligible(ctx context.Context, categorySlug string) ([]Professional, error) {
	query := `
		SELECT id, full_name, phone, category_slug, rating, is_available,
		       latitude, longitude, location_updated_at, created_at
		FROM professionals
		WHERE category_slug = $1
		  AND is_available
		  AND latitude IS NOT NULL
		  AND longitude IS NOT NULL`

	rows, err := r.pool.Query(ctx, query, categorySlug)
	if err != nil {
		return nil, fmt.Errorf("find eligible professionals: %w", err)
	}
	defer rows.Close()

	var pros []Professional
	for rows.Next() {
		var p Professional
		if err := rows.Scan(
			&p.ID, &p.FullName, &p.Phone, &p.CategorySlug, &p.Rating, &p.IsAvailable,
			&p.Latitude, &p.Longitude, &p.LocationUpdatedAt, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan eligible professional: %w", err)
		}
		pros = append(pros, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate eligible professionals: %w", err)
	}

	return pros, nil
}
