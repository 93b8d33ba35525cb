// Package service orchestrates the urgent dispatch core: request intake,
// candidate dispatch, the assignment race, lifecycle tracking and the
// re-dispatch policy.
package service

import (
	"context"
	"time"

	directoryrepo "urgent_dispatch_backend/internal/directory/repository"
	"urgent_dispatch_backend/internal/dispatch/domain"
	"urgent_dispatch_backend/internal/dispatch/repository"
	"urgent_dispatch_backend/internal/dispatch/transport"
	"urgent_dispatch_backend/internal/events"
	"urgent_dispatch_backend/platform/apperr"
	"urgent_dispatch_backend/platform/config"
	"urgent_dispatch_backend/platform/logger"
	"urgent_dispatch_backend/platform/phone"

	"github.com/google/uuid"
)

// Directory is the professional-directory collaborator surface.
type Directory interface {
	FindEligible(ctx context.Context, category string) ([]directoryrepo.Professional, error)
}

// Estimator is the pricing collaborator surface.
type Estimator interface {
	Estimate(ctx context.Context, categorySlug string, radiusKM float64) (int64, error)
	KnownCategory(ctx context.Context, slug string) (bool, error)
}

// SweepScheduler schedules the deferred retry-policy evaluation for a request.
// A nil scheduler degrades to event-driven retry only.
type SweepScheduler interface {
	ScheduleDispatchSweep(ctx context.Context, requestID uuid.UUID, runAt time.Time) error
}

// Store is the persistence surface the dispatch service drives.
type Store interface {
	Create(ctx context.Context, req repository.UrgentRequest) (repository.UrgentRequest, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.UrgentRequest, error)
	GetAssignment(ctx context.Context, requestID uuid.UUID) (*repository.Assignment, error)
	History(ctx context.Context, requestID uuid.UUID) ([]repository.TrackingRow, error)
	CandidateCounts(ctx context.Context, requestID uuid.UUID) (total, responded int, err error)
	Cancel(ctx context.Context, requestID, clientID uuid.UUID) error
	Complete(ctx context.Context, requestID, clientID uuid.UUID, rating *int16, comment *string) error
	Accept(ctx context.Context, requestID, professionalID uuid.UUID) error
	Reject(ctx context.Context, requestID, professionalID uuid.UUID, reason string) (repository.RejectOutcome, error)
	GetJobByToken(ctx context.Context, token string) (repository.CandidateJob, error)
	InsertCandidates(ctx context.Context, requestID uuid.UUID, round int, pool []repository.CandidateInsert) (int, error)
	ListRejectedProfessionals(ctx context.Context, requestID uuid.UUID) (map[uuid.UUID]struct{}, error)
	ListOpenAlerts(ctx context.Context, requestID uuid.UUID) ([]repository.Candidate, error)
	HasOpenCandidates(ctx context.Context, requestID uuid.UUID) (bool, error)
	SetRadiusAndRound(ctx context.Context, requestID uuid.UUID, radiusKM float64, round int) error
	MarkFailedToMatch(ctx context.Context, requestID uuid.UUID) error
}

type Service struct {
	repo      Store
	directory Directory
	pricing   Estimator
	sweeps    SweepScheduler
	eventBus  events.Bus
	cfg       config.DispatchConfig
	log       *logger.Logger
}

func New(
	repo Store,
	directory Directory,
	pricing Estimator,
	sweeps SweepScheduler,
	eventBus events.Bus,
	cfg config.DispatchConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		pricing:   pricing,
		sweeps:    sweeps,
		eventBus:  eventBus,
		cfg:       cfg,
		log:       log,
	}
}

// CreateRequest validates the submission, estimates the price, persists the
// request and runs the first dispatch round.
func (s *Service) CreateRequest(ctx context.Context, clientID uuid.UUID, req transport.CreateRequestRequest) (transport.CreateRequestResponse, error) {
	if req.RadiusKM < s.cfg.GetMinRadiusKM() || req.RadiusKM > s.cfg.GetMaxRadiusKM() {
		return transport.CreateRequestResponse{}, apperr.Validation("radius outside allowed bounds")
	}
	if !domain.ValidCoordinates(req.Latitude, req.Longitude) {
		return transport.CreateRequestResponse{}, apperr.Validation("malformed coordinates")
	}

	known, err := s.pricing.KnownCategory(ctx, req.Category)
	if err != nil {
		return transport.CreateRequestResponse{}, err
	}
	if !known {
		return transport.CreateRequestResponse{}, apperr.Validation("unknown service category")
	}

	estimate, err := s.pricing.Estimate(ctx, req.Category, req.RadiusKM)
	if err != nil {
		return transport.CreateRequestResponse{}, err
	}

	var clientPhone *string
	if req.Phone != "" {
		normalized := phone.NormalizeE164(req.Phone)
		clientPhone = &normalized
	}

	created, err := s.repo.Create(ctx, repository.UrgentRequest{
		ClientID:           clientID,
		Description:        req.Description,
		Latitude:           req.Latitude,
		Longitude:          req.Longitude,
		RadiusKM:           req.RadiusKM,
		CategorySlug:       req.Category,
		PriceEstimateCents: estimate,
		ClientPhone:        clientPhone,
	})
	if err != nil {
		return transport.CreateRequestResponse{}, err
	}

	poolSize, err := s.runDispatchRound(ctx, created, created.DispatchRounds)
	if err != nil {
		// The request row exists and the round is re-runnable; surface the
		// degraded dispatch instead of failing the creation.
		s.log.DatabaseError("dispatch.initial_round", err)
		poolSize = 0
	}

	s.eventBus.Publish(ctx, events.RequestCreated{
		BaseEvent:          events.NewBaseEvent(),
		RequestID:          created.ID,
		ClientID:           clientID,
		CategorySlug:       created.CategorySlug,
		PriceEstimateCents: estimate,
	})

	s.scheduleSweep(ctx, created.ID)
	s.log.DispatchEvent("request_created", created.ID.String())

	return transport.CreateRequestResponse{
		ID:                 created.ID,
		PriceEstimateCents: estimate,
		Status:             string(created.Status),
		CandidateCount:     poolSize,
		CreatedAt:          created.CreatedAt,
	}, nil
}

// GetStatus returns the client's status-polling view: current state,
// assignment if any, and the full lifecycle ledger.
func (s *Service) GetStatus(ctx context.Context, clientID, requestID uuid.UUID) (transport.RequestStatusResponse, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return transport.RequestStatusResponse{}, err
	}
	if req.ClientID != clientID {
		return transport.RequestStatusResponse{}, apperr.Forbidden("request belongs to another client")
	}

	assignment, err := s.repo.GetAssignment(ctx, requestID)
	if err != nil {
		return transport.RequestStatusResponse{}, err
	}

	history, err := s.repo.History(ctx, requestID)
	if err != nil {
		return transport.RequestStatusResponse{}, err
	}

	total, responded, err := s.repo.CandidateCounts(ctx, requestID)
	if err != nil {
		return transport.RequestStatusResponse{}, err
	}

	resp := transport.RequestStatusResponse{
		ID:                  req.ID,
		Status:              string(req.Status),
		FailedToMatch:       req.FailedToMatch,
		PriceEstimateCents:  req.PriceEstimateCents,
		RadiusKM:            req.RadiusKM,
		DispatchRounds:      req.DispatchRounds,
		CandidateCount:      total,
		RespondedCandidates: responded,
		History:             make([]transport.TrackingEntryView, 0, len(history)),
		CreatedAt:           req.CreatedAt,
		CompletedAt:         req.CompletedAt,
	}

	if assignment != nil {
		resp.Assignment = &transport.AssignmentView{
			ProfessionalID: assignment.ProfessionalID,
			AcceptedAt:     assignment.AcceptedAt,
			CompletedAt:    assignment.CompletedAt,
			Rating:         assignment.Rating,
		}
	}

	for _, e := range history {
		resp.History = append(resp.History, transport.TrackingEntryView{
			OldStatus: string(e.OldStatus),
			NewStatus: string(e.NewStatus),
			Actor:     string(e.Actor),
			At:        e.CreatedAt,
		})
	}

	return resp, nil
}

// Cancel cancels a pending request on behalf of its client.
func (s *Service) Cancel(ctx context.Context, clientID, requestID uuid.UUID) error {
	if err := s.repo.Cancel(ctx, requestID, clientID); err != nil {
		return err
	}

	s.eventBus.Publish(ctx, events.RequestCancelled{
		BaseEvent: events.NewBaseEvent(),
		RequestID: requestID,
		ClientID:  clientID,
	})
	s.log.DispatchEvent("request_cancelled", requestID.String())

	return nil
}

// Complete closes an assigned request and hands the final price to the
// settlement collaborator.
func (s *Service) Complete(ctx context.Context, clientID, requestID uuid.UUID, req transport.CompleteRequestRequest) error {
	var comment *string
	if req.Comment != "" {
		comment = &req.Comment
	}

	if err := s.repo.Complete(ctx, requestID, clientID, req.Rating, comment); err != nil {
		return err
	}

	assignment, err := s.repo.GetAssignment(ctx, requestID)
	if err != nil {
		return err
	}

	full, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}

	s.eventBus.Publish(ctx, events.RequestCompleted{
		BaseEvent:       events.NewBaseEvent(),
		RequestID:       requestID,
		ClientID:        clientID,
		ProfessionalID:  assignment.ProfessionalID,
		FinalPriceCents: full.PriceEstimateCents,
	})
	s.log.DispatchEvent("request_completed", requestID.String())

	return nil
}

func (s *Service) scheduleSweep(ctx context.Context, requestID uuid.UUID) {
	if s.sweeps == nil {
		return
	}
	runAt := time.Now().Add(s.cfg.GetDispatchRoundWindow())
	if err := s.sweeps.ScheduleDispatchSweep(ctx, requestID, runAt); err != nil {
		s.log.Warn("schedule_sweep_failed", "urgent_request_id", requestID.String(), "error", err.Error())
	}
}
