// Package service implements the professional directory operations.
package service

import (
	"context"

	"urgent_dispatch_backend/internal/directory/repository"
	"urgent_dispatch_backend/internal/directory/transport"
	"urgent_dispatch_backend/platform/apperr"
	"urgent_dispatch_backend/platform/phone"

	"github.com/google/uuid"
)

type Service struct {
	repo *repository.Repository
}

func New(repo *repository.Repository) *Service {
	return &Service{repo: repo}
}

// Register adds a professional to the directory. New professionals start
// unavailable; they flip themselves available once ready to take work.
func (s *Service) Register(ctx context.Context, req transport.RegisterProfessionalRequest) (transport.ProfessionalResponse, error) {
	p := repository.Professional{
		FullName:     req.FullName,
		Phone:        phone.NormalizeE164(req.Phone),
		CategorySlug: req.Category,
		IsAvailable:  false,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
	}

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return transport.ProfessionalResponse{}, err
	}

	return toResponse(created), nil
}

// UpdateLocation stores the last-known coordinates used by the candidate finder.
func (s *Service) UpdateLocation(ctx context.Context, id uuid.UUID, req transport.UpdateLocationRequest) error {
	return s.repo.UpdateLocation(ctx, id, req.Latitude, req.Longitude)
}

// SetAvailability flips whether the professional receives urgent alerts.
func (s *Service) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	return s.repo.SetAvailability(ctx, id, available)
}

// Get returns a single professional.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.ProfessionalResponse, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.ProfessionalResponse{}, err
	}
	return toResponse(p), nil
}

// List returns the professionals of a category.
func (s *Service) List(ctx context.Context, category string) (transport.ListProfessionalsResponse, error) {
	if category == "" {
		return transport.ListProfessionalsResponse{}, apperr.Validation("category is required")
	}

	pros, err := s.repo.ListByCategory(ctx, category)
	if err != nil {
		return transport.ListProfessionalsResponse{}, err
	}

	items := make([]transport.ProfessionalResponse, 0, len(pros))
	for _, p := range pros {
		items = append(items, toResponse(p))
	}

	return transport.ListProfessionalsResponse{Items: items}, nil
}

// FindEligible exposes the candidate universe for the dispatch finder:
// available professionals of the category with a known location.
func (s *Service) FindEligible(ctx context.Context, category string) ([]repository.Professional, error) {
	return s.repo.FindEligible(ctx, category)
}

func toResponse(p repository.Professional) transport.ProfessionalResponse {
	return transport.ProfessionalResponse{
		ID:                p.ID,
		FullName:          p.FullName,
		Phone:             p.Phone,
		Category:          p.CategorySlug,
		Rating:            p.Rating,
		IsAvailable:       p.IsAvailable,
		Latitude:          p.Latitude,
		Longitude:         p.Longitude,
		LocationUpdatedAt: p.LocationUpdatedAt,
		CreatedAt:         p.CreatedAt,
	}
}
