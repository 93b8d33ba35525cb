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
)

// Candidate mirrors a request_candidates row.
type Candidate struct {
	ID             uuid.UUID
	RequestID      uuid.UUID
	ProfessionalID uuid.UUID
	DistanceKM     float64
	Round          int
	AccessToken    string
	Responded      bool
	RespondedAt    *time.Time
	CreatedAt      time.Time
}

// CandidateJob is a candidate joined with its request, the professional-facing
// view resolved from an access token.
type CandidateJob struct {
	Candidate
	RequestStatus      domain.Status
	RequestDescription string
	CategorySlug       string
	PriceEstimateCents int64
	RequestCreatedAt   time.Time
	ClientID           uuid.UUID
}

// CandidateInsert is one pool entry to persist during a dispatch round.
type CandidateInsert struct {
	ProfessionalID uuid.UUID
	DistanceKM     float64
	AccessToken    string
}

// RejectOutcome reports what a reject call actually did.
type RejectOutcome int

const (
	// RejectRecorded means the rejection was appended normally.
	RejectRecorded RejectOutcome = iota
	// RejectPoolExhausted means the rejection was the last open response.
	RejectPoolExhausted
	// RejectAlreadyResolved means the request left pending before the
	// rejection arrived; a no-op for the caller.
	RejectAlreadyResolved
)

// InsertCandidates persists a dispatch round's pool. Insertion is idempotent
// per (request, professional): re-running a crashed dispatch never duplicates
// pool entries, and a professional keeps their original access token.
func (r *Repository) InsertCandidates(ctx context.Context, requestID uuid.UUID, round int, pool []CandidateInsert) (int, error) {
	inserted := 0
	for _, c := range pool {
		tag, err := r.pool.Exec(ctx,
			`INSERT INTO request_candidates (request_id, professional_id, distance_km, round, access_token)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (request_id, professional_id) DO NOTHING`,
			requestID, c.ProfessionalID, c.DistanceKM, round, c.AccessToken,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert candidate: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// GetJobByToken resolves a candidate access token to the professional-facing
// job view.
func (r *Repository) GetJobByToken(ctx context.Context, token string) (CandidateJob, error) {
	query := `
		SELECT c.id, c.request_id, c.professional_id, c.distance_km, c.round,
		       c.access_token, c.responded, c.responded_at, c.created_at,
		       ur.status, ur.description, ur.category_slug, ur.price_estimate_cents,
		       ur.created_at, ur.client_id
		FROM request_candidates c
		JOIN urgent_requests ur ON ur.id = c.request_id
		WHERE c.access_token = $1`

	var job CandidateJob
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&job.ID, &job.RequestID, &job.ProfessionalID, &job.DistanceKM, &job.Round,
		&job.AccessToken, &job.Responded, &job.RespondedAt, &job.CreatedAt,
		&job.RequestStatus, &job.RequestDescription, &job.CategorySlug,
		&job.PriceEstimateCents, &job.RequestCreatedAt, &job.ClientID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return CandidateJob{}, apperr.NotFound("job not found")
	}
	if err != nil {
		return CandidateJob{}, fmt.Errorf("get job by token: %w", err)
	}

	return job, nil
}

// Reject records a candidate's decline. Returns RejectPoolExhausted when the
// last open candidate of a still-pending request has now responded.
func (r *Repository) Reject(ctx context.Context, requestID, professionalID uuid.UUID, reason string) (RejectOutcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return RejectRecorded, fmt.Errorf("begin reject: %w", err)
	}
	defer tx.Rollback(ctx)

	var candidateID uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM request_candidates WHERE request_id = $1 AND professional_id = $2`,
		requestID, professionalID,
	).Scan(&candidateID)
	if errors.Is(err, pgx.ErrNoRows) {
		return RejectRecorded, apperr.Forbidden(msgNotACandidate)
	}
	if err != nil {
		return RejectRecorded, fmt.Errorf("check candidate for reject: %w", err)
	}

	var status domain.Status
	err = tx.QueryRow(ctx,
		`SELECT status FROM urgent_requests WHERE id = $1`, requestID,
	).Scan(&status)
	if err != nil {
		return RejectRecorded, fmt.Errorf("check request status for reject: %w", err)
	}
	if status != domain.StatusPending {
		// Not an error: the professional's screen should simply refresh.
		return RejectAlreadyResolved, nil
	}

	_, err = tx.Exec(ctx,
		`UPDATE request_candidates SET responded = true, responded_at = now()
		 WHERE id = $1 AND NOT responded`,
		candidateID,
	)
	if err != nil {
		return RejectRecorded, fmt.Errorf("mark candidate responded: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO rejections (request_id, professional_id, reason) VALUES ($1, $2, $3)`,
		requestID, professionalID, reason,
	)
	if err != nil {
		return RejectRecorded, fmt.Errorf("append rejection: %w", err)
	}

	var open int
	err = tx.QueryRow(ctx,
		`SELECT count(*) FROM request_candidates WHERE request_id = $1 AND NOT responded`,
		requestID,
	).Scan(&open)
	if err != nil {
		return RejectRecorded, fmt.Errorf("count open candidates: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return RejectRecorded, fmt.Errorf("commit reject: %w", err)
	}

	if open == 0 {
		return RejectPoolExhausted, nil
	}
	return RejectRecorded, nil
}

// ListOpenAlerts returns the unresponded candidates of a request with the
// data needed to notify them.
func (r *Repository) ListOpenAlerts(ctx context.Context, requestID uuid.UUID) ([]Candidate, error) {
	query := `
		SELECT id, request_id, professional_id, distance_km, round,
		       access_token, responded, responded_at, created_at
		FROM request_candidates
		WHERE request_id = $1 AND NOT responded
		ORDER BY distance_km ASC`

	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("list open candidates: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(
			&c.ID, &c.RequestID, &c.ProfessionalID, &c.DistanceKM, &c.Round,
			&c.AccessToken, &c.Responded, &c.RespondedAt, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}

	return candidates, nil
}

// ListRejectedProfessionals returns the professionals excluded from any new
// pool for this request.
func (r *Repository) ListRejectedProfessionals(ctx context.Context, requestID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT professional_id FROM rejections WHERE request_id = $1`,
		requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rejected professionals: %w", err)
	}
	defer rows.Close()

	excluded := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan rejected professional: %w", err)
		}
		excluded[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rejected professionals: %w", err)
	}

	return excluded, nil
}

// CandidateCounts returns total and responded candidate counts for a request.
func (r *Repository) CandidateCounts(ctx context.Context, requestID uuid.UUID) (total, responded int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE responded)
		 FROM request_candidates WHERE request_id = $1`,
		requestID,
	).Scan(&total, &responded)
	if err != nil {
		return 0, 0, fmt.Errorf("count candidates: %w", err)
	}
	return total, responded, nil
}

// HasOpenCandidates reports whether any candidate of the request has not yet
// responded. The retry sweep uses it to detect silent exhaustion.
func (r *Repository) HasOpenCandidates(ctx context.Context, requestID uuid.UUID) (bool, error) {
	var open int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM request_candidates WHERE request_id = $1 AND NOT responded`,
		requestID,
	).Scan(&open)
	if err != nil {
		return false, fmt.Errorf("count open candidates: %w", err)
	}
	return open > 0, nil
}

// TrackingRow is one persisted lifecycle ledger entry.
type TrackingRow struct {
	ID        uuid.UUID
	RequestID uuid.UUID
	OldStatus domain.Status
	NewStatus domain.Status
	Actor     domain.Actor
	CreatedAt time.Time
}

// History returns the full ordered lifecycle ledger for a request.
func (r *Repository) History(ctx context.Context, requestID uuid.UUID) ([]TrackingRow, error) {
	query := `
		SELECT id, request_id, old_status, new_status, actor, created_at
		FROM tracking_entries
		WHERE request_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("load tracking history: %w", err)
	}
	defer rows.Close()

	var entries []TrackingRow
	for rows.Next() {
		var e TrackingRow
		if err := rows.Scan(&e.ID, &e.RequestID, &e.OldStatus, &e.NewStatus, &e.Actor, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tracking entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracking entries: %w", err)
	}

	return entries, nil
}
