// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"urgent_dispatch_backend/platform/events"
	"urgent_dispatch_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Dispatch Domain Events
// =============================================================================

// CandidateAlert is the per-professional payload of a dispatch fan-out.
// AccessToken is the professional's capability to view/accept/reject the job.
type CandidateAlert struct {
	ProfessionalID uuid.UUID `json:"professionalId"`
	Phone          string    `json:"phone"`
	DistanceKM     float64   `json:"distanceKm"`
	AccessToken    string    `json:"accessToken"`
}

// RequestCreated is published when a client submits a new urgent request.
type RequestCreated struct {
	BaseEvent
	RequestID          uuid.UUID `json:"requestId"`
	ClientID           uuid.UUID `json:"clientId"`
	CategorySlug       string    `json:"categorySlug"`
	PriceEstimateCents int64     `json:"priceEstimateCents"`
}

func (e RequestCreated) EventName() string { return "dispatch.request.created" }

// CandidatesDispatched is published after a dispatch round persisted its
// candidate pool. Notification fan-out consumes it.
type CandidatesDispatched struct {
	BaseEvent
	RequestID    uuid.UUID        `json:"requestId"`
	Round        int              `json:"round"`
	CategorySlug string           `json:"categorySlug"`
	Description  string           `json:"description"`
	Alerts       []CandidateAlert `json:"alerts"`
}

func (e CandidatesDispatched) EventName() string { return "dispatch.candidates.dispatched" }

// RequestAssigned is published when a professional wins the acceptance race.
type RequestAssigned struct {
	BaseEvent
	RequestID      uuid.UUID   `json:"requestId"`
	ClientID       uuid.UUID   `json:"clientId"`
	ProfessionalID uuid.UUID   `json:"professionalId"`
	LosingPool     []uuid.UUID `json:"losingPool"`
}

func (e RequestAssigned) EventName() string { return "dispatch.request.assigned" }

// CandidateRejected is published when a professional declines an alert.
type CandidateRejected struct {
	BaseEvent
	RequestID      uuid.UUID `json:"requestId"`
	ProfessionalID uuid.UUID `json:"professionalId"`
	Reason         string    `json:"reason"`
}

func (e CandidateRejected) EventName() string { return "dispatch.candidate.rejected" }

// PoolExhausted is published when every open candidate of a pending request
// has responded without an acceptance. The retry policy consumes it.
type PoolExhausted struct {
	BaseEvent
	RequestID uuid.UUID `json:"requestId"`
	Round     int       `json:"round"`
}

func (e PoolExhausted) EventName() string { return "dispatch.pool.exhausted" }

// RequestCancelled is published when a client cancels a pending request.
type RequestCancelled struct {
	BaseEvent
	RequestID uuid.UUID `json:"requestId"`
	ClientID  uuid.UUID `json:"clientId"`
}

func (e RequestCancelled) EventName() string { return "dispatch.request.cancelled" }

// RequestCompleted is published after an assigned request completes.
// The settlement module consumes it.
type RequestCompleted struct {
	BaseEvent
	RequestID       uuid.UUID `json:"requestId"`
	ClientID        uuid.UUID `json:"clientId"`
	ProfessionalID  uuid.UUID `json:"professionalId"`
	FinalPriceCents int64     `json:"finalPriceCents"`
}

func (e RequestCompleted) EventName() string { return "dispatch.request.completed" }

// RequestFailedToMatch is published when the retry policy gives up on a
// request after the configured number of dispatch rounds.
type RequestFailedToMatch struct {
	BaseEvent
	RequestID uuid.UUID `json:"requestId"`
	ClientID  uuid.UUID `json:"clientId"`
	Rounds    int       `json:"rounds"`
}

func (e RequestFailedToMatch) EventName() string { return "dispatch.request.failed_to_match" }
