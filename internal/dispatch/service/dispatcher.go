package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"urgent_dispatch_backend/internal/dispatch/domain"
	"urgent_dispatch_backend/internal/dispatch/repository"
	"urgent_dispatch_backend/internal/events"
	"urgent_dispatch_backend/platform/apperr"

	"github.com/google/uuid"
)

// runDispatchRound finds eligible professionals inside the request's current
// radius, persists them as candidates and publishes the fan-out event.
// Candidate insertion is idempotent per (request, professional), so re-running
// a round never duplicates alerts. Returns the number of new candidates.
func (s *Service) runDispatchRound(ctx context.Context, req repository.UrgentRequest, round int) (int, error) {
	pros, err := s.directory.FindEligible(ctx, req.CategorySlug)
	if err != nil {
		return 0, err
	}

	eligible := make([]domain.EligibleProfessional, 0, len(pros))
	for _, p := range pros {
		if p.Latitude == nil || p.Longitude == nil {
			continue
		}
		eligible = append(eligible, domain.EligibleProfessional{
			ID:        p.ID,
			Phone:     p.Phone,
			Rating:    p.Rating,
			Latitude:  *p.Latitude,
			Longitude: *p.Longitude,
		})
	}

	excluded, err := s.repo.ListRejectedProfessionals(ctx, req.ID)
	if err != nil {
		return 0, err
	}

	ranked := domain.RankCandidates(req.Latitude, req.Longitude, req.RadiusKM, eligible, excluded)
	if len(ranked) == 0 {
		s.log.DispatchEvent("empty_pool", req.ID.String(), slog.Int("round", round))
		return 0, nil
	}

	inserts := make([]repository.CandidateInsert, 0, len(ranked))
	alerts := make([]events.CandidateAlert, 0, len(ranked))
	for _, c := range ranked {
		token, err := newAccessToken()
		if err != nil {
			return 0, err
		}
		inserts = append(inserts, repository.CandidateInsert{
			ProfessionalID: c.ProfessionalID,
			DistanceKM:     c.DistanceKM,
			AccessToken:    token,
		})
		alerts = append(alerts, events.CandidateAlert{
			ProfessionalID: c.ProfessionalID,
			Phone:          c.Phone,
			DistanceKM:     c.DistanceKM,
			AccessToken:    token,
		})
	}

	inserted, err := s.repo.InsertCandidates(ctx, req.ID, round, inserts)
	if err != nil {
		return 0, err
	}

	if inserted > 0 {
		s.eventBus.Publish(ctx, events.CandidatesDispatched{
			BaseEvent:    events.NewBaseEvent(),
			RequestID:    req.ID,
			Round:        round,
			CategorySlug: req.CategorySlug,
			Description:  req.Description,
			Alerts:       alerts,
		})
	}

	s.log.DispatchEvent("candidates_dispatched", req.ID.String(),
		slog.Int("round", round),
		slog.Int("pool_size", inserted),
		slog.Float64("radius_km", req.RadiusKM),
	)

	return inserted, nil
}

// EvaluateRetry applies the re-dispatch policy to a pending request. It runs
// when the round window elapses (scheduler sweep) and when the pool is
// exhausted by rejections. Resolved requests are a silent no-op: sweeps
// routinely fire after an acceptance.
func (s *Service) EvaluateRetry(ctx context.Context, requestID uuid.UUID) error {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}

	if req.Status != domain.StatusPending || req.FailedToMatch {
		return nil
	}

	// An open candidate may still accept; give the current round its full
	// window, measured from the round's own start. An exhaustion-triggered
	// redispatch resets the anchor, so a stale sweep for an earlier round
	// cannot cut the new round short.
	open, err := s.repo.HasOpenCandidates(ctx, req.ID)
	if err != nil {
		return err
	}
	if open && time.Since(req.LastDispatchAt) < s.cfg.GetDispatchRoundWindow() {
		return nil
	}

	switch domain.EvaluateRetry(req.DispatchRounds, s.cfg.GetMaxDispatchRounds()) {
	case domain.RetryRedispatch:
		return s.redispatch(ctx, req)
	default:
		return s.failToMatch(ctx, req)
	}
}

func (s *Service) redispatch(ctx context.Context, req repository.UrgentRequest) error {
	radius := domain.ExpandRadius(req.RadiusKM, s.cfg.GetRadiusGrowthFactor(), s.cfg.GetMaxRadiusKM())
	round := req.DispatchRounds + 1

	if err := s.repo.SetRadiusAndRound(ctx, req.ID, radius, round); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return nil
		}
		return err
	}

	req.RadiusKM = radius
	if _, err := s.runDispatchRound(ctx, req, round); err != nil {
		return err
	}

	s.scheduleSweep(ctx, req.ID)
	s.log.DispatchEvent("redispatched", req.ID.String(),
		slog.Int("round", round),
		slog.Float64("radius_km", radius),
	)

	return nil
}

func (s *Service) failToMatch(ctx context.Context, req repository.UrgentRequest) error {
	if err := s.repo.MarkFailedToMatch(ctx, req.ID); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return nil
		}
		return err
	}

	s.eventBus.Publish(ctx, events.RequestFailedToMatch{
		BaseEvent: events.NewBaseEvent(),
		RequestID: req.ID,
		ClientID:  req.ClientID,
		Rounds:    req.DispatchRounds,
	})
	s.log.DispatchEvent("failed_to_match", req.ID.String(), slog.Int("rounds", req.DispatchRounds))

	return nil
}

// newAccessToken issues the per-candidate capability token used on the
// professional-facing public routes.
func newAccessToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
