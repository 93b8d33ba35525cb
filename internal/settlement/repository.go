// Package settlement emits completed-request payloads to the external
// settlement system. Rows are written to an outbox in the completion
// transaction; this module delivers them at least once.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxRow is one pending or delivered settlement payload.
type OutboxRow struct {
	ID              uuid.UUID
	RequestID       uuid.UUID
	ClientID        uuid.UUID
	ProfessionalID  uuid.UUID
	FinalPriceCents int64
	EmittedAt       *time.Time
	CreatedAt       time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUnemitted returns pending rows oldest first.
func (r *Repository) ListUnemitted(ctx context.Context, limit int) ([]OutboxRow, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, request_id, client_id, professional_id, final_price_cents, emitted_at, created_at
		FROM settlement_outbox
		WHERE emitted_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list unemitted settlements: %w", err)
	}
	defer rows.Close()

	var pending []OutboxRow
	for rows.Next() {
		var row OutboxRow
		if err := rows.Scan(&row.ID, &row.RequestID, &row.ClientID, &row.ProfessionalID,
			&row.FinalPriceCents, &row.EmittedAt, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan settlement row: %w", err)
		}
		pending = append(pending, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlement rows: %w", err)
	}

	return pending, nil
}

// GetByRequestID returns the outbox row for a request, if queued.
func (r *Repository) GetByRequestID(ctx context.Context, requestID uuid.UUID) (*OutboxRow, error) {
	var row OutboxRow
	err := r.pool.QueryRow(ctx, `
		SELECT id, request_id, client_id, professional_id, final_price_cents, emitted_at, created_at
		FROM settlement_outbox
		WHERE request_id = $1`,
		requestID,
	).Scan(&row.ID, &row.RequestID, &row.ClientID, &row.ProfessionalID,
		&row.FinalPriceCents, &row.EmittedAt, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settlement row: %w", err)
	}
	return &row, nil
}

// MarkEmitted stamps a row as delivered; already-stamped rows stay untouched.
func (r *Repository) MarkEmitted(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE settlement_outbox SET emitted_at = now()
		WHERE id = $1 AND emitted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark settlement emitted: %w", err)
	}
	return nil
}
