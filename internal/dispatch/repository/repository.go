// Package repository persists urgent requests, candidate pools, assignments
// and the lifecycle ledger. The urgent_requests.status column is the sole
// synchronization point: every transition is a conditional single-statement
// update so the at-most-one-winner guarantee holds across service instances.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"urgent_dispatch_backend/internal/dispatch/domain"
	"urgent_dispatch_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const requestNotFoundMsg = "urgent request not found"

const (
	msgAlreadyAssigned = "request already assigned to another professional"
	msgAlreadyResolved = "request already resolved"
	msgNotACandidate   = "professional is not a candidate for this request"
	msgNotCancellable  = "request can no longer be cancelled"
)

// UrgentRequest mirrors the urgent_requests row.
type UrgentRequest struct {
	ID                 uuid.UUID
	ClientID           uuid.UUID
	Description        string
	Latitude           float64
	Longitude          float64
	RadiusKM           float64
	CategorySlug       string
	PriceEstimateCents int64
	Status             domain.Status
	DispatchRounds     int
	LastDispatchAt     time.Time
	FailedToMatch      bool
	ClientPhone        *string
	CreatedAt          time.Time
	CompletedAt        *time.Time
}

// Assignment mirrors the assignments row.
type Assignment struct {
	ID             uuid.UUID
	RequestID      uuid.UUID
	ProfessionalID uuid.UUID
	AcceptedAt     time.Time
	CompletedAt    *time.Time
	Rating         *int16
	RatingComment  *string
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create persists a new request and its creation ledger entry. The row is
// born with dispatch_rounds = 1: the creation path runs the first round
// immediately, and the retry policy counts rounds from the stored value.
func (r *Repository) Create(ctx context.Context, req UrgentRequest) (UrgentRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return UrgentRequest{}, fmt.Errorf("begin create request: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO urgent_requests
			(client_id, description, latitude, longitude, radius_km, category_slug, price_estimate_cents, client_phone, dispatch_rounds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
		RETURNING id, status, dispatch_rounds, last_dispatch_at, created_at`

	err = tx.QueryRow(ctx, query,
		req.ClientID, req.Description, req.Latitude, req.Longitude,
		req.RadiusKM, req.CategorySlug, req.PriceEstimateCents, req.ClientPhone,
	).Scan(&req.ID, &req.Status, &req.DispatchRounds, &req.LastDispatchAt, &req.CreatedAt)
	if err != nil {
		return UrgentRequest{}, fmt.Errorf("create urgent request: %w", err)
	}

	if err := appendTracking(ctx, tx, req.ID, domain.StatusNone, domain.StatusPending, domain.ActorClient); err != nil {
		return UrgentRequest{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return UrgentRequest{}, fmt.Errorf("commit create request: %w", err)
	}

	return req, nil
}

// GetByID retrieves a request.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (UrgentRequest, error) {
	query := `
		SELECT id, client_id, description, latitude, longitude, radius_km, category_slug,
		       price_estimate_cents, status, dispatch_rounds, last_dispatch_at, failed_to_match,
		       client_phone, created_at, completed_at
		FROM urgent_requests
		WHERE id = $1`

	var req UrgentRequest
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&req.ID, &req.ClientID, &req.Description, &req.Latitude, &req.Longitude,
		&req.RadiusKM, &req.CategorySlug, &req.PriceEstimateCents, &req.Status,
		&req.DispatchRounds, &req.LastDispatchAt, &req.FailedToMatch, &req.ClientPhone,
		&req.CreatedAt, &req.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return UrgentRequest{}, apperr.NotFound(requestNotFoundMsg)
	}
	if err != nil {
		return UrgentRequest{}, fmt.Errorf("get urgent request: %w", err)
	}

	return req, nil
}

// GetAssignment returns the assignment for a request, if any.
func (r *Repository) GetAssignment(ctx context.Context, requestID uuid.UUID) (*Assignment, error) {
	query := `
		SELECT id, request_id, professional_id, accepted_at, completed_at, rating, rating_comment
		FROM assignments
		WHERE request_id = $1`

	var a Assignment
	err := r.pool.QueryRow(ctx, query, requestID).Scan(
		&a.ID, &a.RequestID, &a.ProfessionalID, &a.AcceptedAt,
		&a.CompletedAt, &a.Rating, &a.RatingComment,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}

	return &a, nil
}

// Accept atomically binds the request to the professional. The status flip is
// a single conditional UPDATE, not a read-then-write pair, so exactly one of
// N concurrent acceptors wins regardless of how many service instances run.
func (r *Repository) Accept(ctx context.Context, requestID, professionalID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin accept: %w", err)
	}
	defer tx.Rollback(ctx)

	var candidateID uuid.UUID
	var responded bool
	err = tx.QueryRow(ctx,
		`SELECT id, responded FROM request_candidates WHERE request_id = $1 AND professional_id = $2`,
		requestID, professionalID,
	).Scan(&candidateID, &responded)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Forbidden(msgNotACandidate)
	}
	if err != nil {
		return fmt.Errorf("check candidate: %w", err)
	}
	// A candidate who already rejected has left the pool for good; the
	// access token must not let them back in through accept.
	if responded {
		return apperr.Forbidden(msgNotACandidate)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE urgent_requests SET status = 'assigned' WHERE id = $1 AND status = 'pending'`,
		requestID,
	)
	if err != nil {
		return fmt.Errorf("accept conditional update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyAcceptConflict(ctx, requestID)
	}

	// The unique index on assignments.request_id is the second line of
	// defence; the conditional update above already decided the race.
	_, err = tx.Exec(ctx,
		`INSERT INTO assignments (request_id, professional_id) VALUES ($1, $2)`,
		requestID, professionalID,
	)
	if err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE request_candidates SET responded = true, responded_at = now()
		 WHERE id = $1 AND NOT responded`,
		candidateID,
	)
	if err != nil {
		return fmt.Errorf("mark winning candidate responded: %w", err)
	}

	if err := appendTracking(ctx, tx, requestID, domain.StatusPending, domain.StatusAssigned, domain.ActorProfessional); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit accept: %w", err)
	}

	return nil
}

// classifyAcceptConflict inspects the current status after a lost race.
func (r *Repository) classifyAcceptConflict(ctx context.Context, requestID uuid.UUID) error {
	var status domain.Status
	err := r.pool.QueryRow(ctx,
		`SELECT status FROM urgent_requests WHERE id = $1`, requestID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(requestNotFoundMsg)
	}
	if err != nil {
		return fmt.Errorf("classify accept conflict: %w", err)
	}

	if status == domain.StatusAssigned {
		return apperr.Conflict(msgAlreadyAssigned)
	}
	return apperr.Conflict(msgAlreadyResolved)
}

// Cancel transitions pending → cancelled for the owning client.
func (r *Repository) Cancel(ctx context.Context, requestID, clientID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin cancel: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE urgent_requests SET status = 'cancelled'
		 WHERE id = $1 AND client_id = $2 AND status = 'pending'`,
		requestID, clientID,
	)
	if err != nil {
		return fmt.Errorf("cancel conditional update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyClientConflict(ctx, requestID, clientID, apperr.BadRequest(msgNotCancellable))
	}

	if err := appendTracking(ctx, tx, requestID, domain.StatusPending, domain.StatusCancelled, domain.ActorClient); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cancel: %w", err)
	}

	return nil
}

// Complete transitions assigned → completed, finalizes the assignment and
// queues the settlement payload, all in one transaction.
func (r *Repository) Complete(ctx context.Context, requestID, clientID uuid.UUID, rating *int16, comment *string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin complete: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE urgent_requests SET status = 'completed', completed_at = now()
		 WHERE id = $1 AND client_id = $2 AND status = 'assigned'`,
		requestID, clientID,
	)
	if err != nil {
		return fmt.Errorf("complete conditional update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyClientConflict(ctx, requestID, clientID,
			apperr.Conflict("request is not assigned"))
	}

	_, err = tx.Exec(ctx,
		`UPDATE assignments SET completed_at = now(), rating = $2, rating_comment = $3
		 WHERE request_id = $1`,
		requestID, rating, comment,
	)
	if err != nil {
		return fmt.Errorf("finalize assignment: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO settlement_outbox (request_id, client_id, professional_id, final_price_cents)
		 SELECT ur.id, ur.client_id, a.professional_id, ur.price_estimate_cents
		 FROM urgent_requests ur
		 JOIN assignments a ON a.request_id = ur.id
		 WHERE ur.id = $1
		 ON CONFLICT (request_id) DO NOTHING`,
		requestID,
	)
	if err != nil {
		return fmt.Errorf("queue settlement: %w", err)
	}

	if err := appendTracking(ctx, tx, requestID, domain.StatusAssigned, domain.StatusCompleted, domain.ActorClient); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit complete: %w", err)
	}

	return nil
}

// classifyClientConflict distinguishes not-found and wrong-owner from a
// genuine lifecycle conflict after a conditional update affected zero rows.
func (r *Repository) classifyClientConflict(ctx context.Context, requestID, clientID uuid.UUID, conflict error) error {
	var ownerID uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT client_id FROM urgent_requests WHERE id = $1`, requestID,
	).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(requestNotFoundMsg)
	}
	if err != nil {
		return fmt.Errorf("classify client conflict: %w", err)
	}

	if ownerID != clientID {
		return apperr.Forbidden("request belongs to another client")
	}
	return conflict
}

// SetRadiusAndRound records the expanded radius and the new round counter
// before a re-dispatch pass. last_dispatch_at anchors the round window so a
// stale sweep cannot cut a freshly started round short.
func (r *Repository) SetRadiusAndRound(ctx context.Context, requestID uuid.UUID, radiusKM float64, round int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE urgent_requests SET radius_km = $2, dispatch_rounds = $3, last_dispatch_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		requestID, radiusKM, round,
	)
	if err != nil {
		return fmt.Errorf("set radius and round: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict(msgAlreadyResolved)
	}

	return nil
}

// MarkFailedToMatch flags a pending request as failed-to-match. The request
// stays pending so the client can still cancel it explicitly.
func (r *Repository) MarkFailedToMatch(ctx context.Context, requestID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE urgent_requests SET failed_to_match = true
		 WHERE id = $1 AND status = 'pending' AND NOT failed_to_match`,
		requestID,
	)
	if err != nil {
		return fmt.Errorf("mark failed to match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict(msgAlreadyResolved)
	}

	return nil
}

func appendTracking(ctx context.Context, tx pgx.Tx, requestID uuid.UUID, from, to domain.Status, actor domain.Actor) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO tracking_entries (request_id, old_status, new_status, actor)
		 VALUES ($1, $2, $3, $4)`,
		requestID, string(from), string(to), string(actor),
	)
	if err != nil {
		return fmt.Errorf("append tracking entry: %w", err)
	}
	return nil
}
