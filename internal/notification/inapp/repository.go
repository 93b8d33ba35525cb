// Package inapp persists in-app notification rows for clients and
// professionals.
package inapp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	RecipientClient       = "client"
	RecipientProfessional = "professional"
)

type Notification struct {
	ID            uuid.UUID  `json:"id"`
	RecipientType string     `json:"recipientType"`
	RecipientID   uuid.UUID  `json:"recipientId"`
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	RequestID     *uuid.UUID `json:"requestId,omitempty"`
	IsRead        bool       `json:"isRead"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type CreateParams struct {
	RecipientType string
	RecipientID   uuid.UUID
	Title         string
	Body          string
	RequestID     *uuid.UUID
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, p CreateParams) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO dispatch_notifications (recipient_type, recipient_id, title, body, request_id)
		VALUES ($1, $2, $3, $4, $5)`,
		p.RecipientType, p.RecipientID, p.Title, p.Body, p.RequestID,
	)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListForRecipient returns the newest notifications first.
func (r *Repository) ListForRecipient(ctx context.Context, recipientType string, recipientID uuid.UUID, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, recipient_type, recipient_id, title, body, request_id, is_read, created_at
		FROM dispatch_notifications
		WHERE recipient_type = $1 AND recipient_id = $2
		ORDER BY created_at DESC
		LIMIT $3`,
		recipientType, recipientID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.RecipientType, &n.RecipientID, &n.Title, &n.Body, &n.RequestID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	return notifications, nil
}

func (r *Repository) MarkRead(ctx context.Context, id, recipientID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE dispatch_notifications SET is_read = true
		WHERE id = $1 AND recipient_id = $2`,
		id, recipientID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}
