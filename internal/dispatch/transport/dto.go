package transport

import (
	"time"

	"github.com/google/uuid"
)

// --- Client API ---

// CreateRequestRequest is a client's urgent service submission.
type CreateRequestRequest struct {
	Description string  `json:"description" validate:"required,max=2000"`
	Latitude    float64 `json:"latitude" validate:"latitude_range"`
	Longitude   float64 `json:"longitude" validate:"longitude_range"`
	RadiusKM    float64 `json:"radiusKm" validate:"required,gt=0"`
	Category    string  `json:"category" validate:"required,max=64"`
	Phone       string  `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// CreateRequestResponse is returned after a successful submission.
type CreateRequestResponse struct {
	ID                 uuid.UUID `json:"id"`
	PriceEstimateCents int64     `json:"priceEstimateCents"`
	Status             string    `json:"status"`
	CandidateCount     int       `json:"candidateCount"`
	CreatedAt          time.Time `json:"createdAt"`
}

// AssignmentView is the client's view of the winning professional binding.
type AssignmentView struct {
	ProfessionalID uuid.UUID  `json:"professionalId"`
	AcceptedAt     time.Time  `json:"acceptedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	Rating         *int16     `json:"rating,omitempty"`
}

// TrackingEntryView is one lifecycle ledger entry.
type TrackingEntryView struct {
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
	Actor     string    `json:"actor"`
	At        time.Time `json:"at"`
}

// RequestStatusResponse is the status-polling payload.
type RequestStatusResponse struct {
	ID                  uuid.UUID           `json:"id"`
	Status              string              `json:"status"`
	FailedToMatch       bool                `json:"failedToMatch"`
	PriceEstimateCents  int64               `json:"priceEstimateCents"`
	RadiusKM            float64             `json:"radiusKm"`
	DispatchRounds      int                 `json:"dispatchRounds"`
	CandidateCount      int                 `json:"candidateCount"`
	RespondedCandidates int                 `json:"respondedCandidates"`
	Assignment          *AssignmentView     `json:"assignment,omitempty"`
	History             []TrackingEntryView `json:"history"`
	CreatedAt           time.Time           `json:"createdAt"`
	CompletedAt         *time.Time          `json:"completedAt,omitempty"`
}

// CompleteRequestRequest closes an assigned request, optionally with a rating.
type CompleteRequestRequest struct {
	Rating  *int16 `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Comment string `json:"comment,omitempty" validate:"omitempty,max=1000"`
}

// --- Professional API ---

// JobResponse is the professional-facing job view. It carries no client PII
// beyond what is needed to do the work.
type JobResponse struct {
	RequestID          uuid.UUID `json:"requestId"`
	Category           string    `json:"category"`
	Description        string    `json:"description"`
	DistanceKM         float64   `json:"distanceKm"`
	PriceEstimateCents int64     `json:"priceEstimateCents"`
	Status             string    `json:"status"`
	Responded          bool      `json:"responded"`
	CreatedAt          time.Time `json:"createdAt"`
}

// RejectJobRequest is the professional's decline payload.
type RejectJobRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// RespondResponse reports the outcome of an accept or reject.
type RespondResponse struct {
	Status string `json:"status"`
}
