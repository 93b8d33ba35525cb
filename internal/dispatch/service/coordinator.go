package service

import (
	"context"

	"urgent_dispatch_backend/internal/dispatch/domain"
	"urgent_dispatch_backend/internal/dispatch/repository"
	"urgent_dispatch_backend/internal/dispatch/transport"
	"urgent_dispatch_backend/internal/events"

	"github.com/google/uuid"
)

// GetJob resolves a candidate access token to the professional-facing job
// view. Unknown tokens surface as NotFound.
func (s *Service) GetJob(ctx context.Context, token string) (transport.JobResponse, error) {
	job, err := s.repo.GetJobByToken(ctx, token)
	if err != nil {
		return transport.JobResponse{}, err
	}

	return transport.JobResponse{
		RequestID:          job.RequestID,
		Category:           job.CategorySlug,
		Description:        job.RequestDescription,
		DistanceKM:         job.DistanceKM,
		PriceEstimateCents: job.PriceEstimateCents,
		Status:             string(job.RequestStatus),
		Responded:          job.Responded,
		CreatedAt:          job.RequestCreatedAt,
	}, nil
}

// Accept runs the acceptance race for the candidate behind the token.
// Exactly one of N concurrent acceptors succeeds; losers get a conflict.
func (s *Service) Accept(ctx context.Context, token string) (transport.RespondResponse, error) {
	job, err := s.repo.GetJobByToken(ctx, token)
	if err != nil {
		return transport.RespondResponse{}, err
	}

	if err := s.repo.Accept(ctx, job.RequestID, job.ProfessionalID); err != nil {
		return transport.RespondResponse{}, err
	}

	// Losers stay unresponded; the assignment event tells them the job is
	// gone without flipping their candidate rows.
	losers, err := s.loserPool(ctx, job)
	if err != nil {
		s.log.DatabaseError("dispatch.loser_pool", err)
		losers = nil
	}

	s.eventBus.Publish(ctx, events.RequestAssigned{
		BaseEvent:      events.NewBaseEvent(),
		RequestID:      job.RequestID,
		ClientID:       job.ClientID,
		ProfessionalID: job.ProfessionalID,
		LosingPool:     losers,
	})
	s.log.DispatchEvent("request_assigned", job.RequestID.String())

	return transport.RespondResponse{Status: string(domain.StatusAssigned)}, nil
}

// Reject records the decline behind the token. Rejecting an already resolved
// request is a harmless no-op; the professional just learns the outcome.
func (s *Service) Reject(ctx context.Context, token string, req transport.RejectJobRequest) (transport.RespondResponse, error) {
	job, err := s.repo.GetJobByToken(ctx, token)
	if err != nil {
		return transport.RespondResponse{}, err
	}

	outcome, err := s.repo.Reject(ctx, job.RequestID, job.ProfessionalID, req.Reason)
	if err != nil {
		return transport.RespondResponse{}, err
	}

	switch outcome {
	case repository.RejectAlreadyResolved:
		current, err := s.repo.GetByID(ctx, job.RequestID)
		if err != nil {
			return transport.RespondResponse{}, err
		}
		return transport.RespondResponse{Status: string(current.Status)}, nil

	case repository.RejectPoolExhausted:
		s.eventBus.Publish(ctx, events.PoolExhausted{
			BaseEvent: events.NewBaseEvent(),
			RequestID: job.RequestID,
			Round:     job.Round,
		})
		// The exhausted pool short-circuits the round window; evaluate the
		// retry policy right away instead of waiting for the sweep.
		if err := s.EvaluateRetry(ctx, job.RequestID); err != nil {
			s.log.DatabaseError("dispatch.retry_on_exhaustion", err)
		}
	}

	s.eventBus.Publish(ctx, events.CandidateRejected{
		BaseEvent:      events.NewBaseEvent(),
		RequestID:      job.RequestID,
		ProfessionalID: job.ProfessionalID,
		Reason:         req.Reason,
	})
	s.log.DispatchEvent("candidate_rejected", job.RequestID.String())

	// Re-read rather than assume pending: the exhaustion evaluation above or
	// a concurrent acceptor may already have moved the request on.
	current, err := s.repo.GetByID(ctx, job.RequestID)
	if err != nil {
		return transport.RespondResponse{}, err
	}
	return transport.RespondResponse{Status: string(current.Status)}, nil
}

func (s *Service) loserPool(ctx context.Context, job repository.CandidateJob) ([]uuid.UUID, error) {
	open, err := s.repo.ListOpenAlerts(ctx, job.RequestID)
	if err != nil {
		return nil, err
	}

	losers := make([]uuid.UUID, 0, len(open))
	for _, c := range open {
		if c.ProfessionalID == job.ProfessionalID {
			continue
		}
		losers = append(losers, c.ProfessionalID)
	}
	return losers, nil
}
