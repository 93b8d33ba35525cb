// Package service implements the price estimator for urgent requests.
package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"urgent_dispatch_backend/internal/pricing/repository"
	"urgent_dispatch_backend/platform/apperr"
	"urgent_dispatch_backend/platform/config"
)

// ruleCacheTTL bounds staleness of cached pricing rules. Rules are
// operator-managed configuration, so minutes-old reads are acceptable.
const ruleCacheTTL = 5 * time.Minute

type cachedRule struct {
	rule      repository.PricingRule
	expiresAt time.Time
}

// RuleReader is the repository surface the estimator needs.
type RuleReader interface {
	GetRuleForCategory(ctx context.Context, categorySlug string) (repository.PricingRule, error)
	CategoryExists(ctx context.Context, slug string) (bool, error)
}

// Service computes deterministic price estimates from pricing rules.
// Estimation has no side effects; the only I/O is the rule lookup.
type Service struct {
	rules    RuleReader
	baseline int64
	// baselineRadiusKM normalizes the radius surcharge: a request at the
	// baseline radius pays double the reference cost before the multiplier.
	baselineRadiusKM float64

	mu    sync.Mutex
	cache map[string]cachedRule
}

func New(rules RuleReader, cfg config.PricingConfig) *Service {
	return &Service{
		rules:            rules,
		baseline:         cfg.GetPricingBaselineCents(),
		baselineRadiusKM: cfg.GetPricingBaselineRadiusKM(),
		cache:            make(map[string]cachedRule),
	}
}

// Estimate returns the estimated price in cents for a request of the given
// category and search radius.
//
// estimate = max(minimumPrice, baseMultiplier * baseline * (1 + radius/baselineRadius))
//
// A missing category rule falls back to the global default rule; a missing
// default rule is a configuration error, not a user error.
func (s *Service) Estimate(ctx context.Context, categorySlug string, radiusKM float64) (int64, error) {
	rule, err := s.ruleFor(ctx, categorySlug)
	if errors.Is(err, repository.ErrNoRule) {
		return 0, apperr.Internal("no pricing rule configured for category or default").
			WithOp("pricing.estimate")
	}
	if err != nil {
		return 0, err
	}

	return EstimateFromRule(rule, s.baseline, s.baselineRadiusKM, radiusKM), nil
}

// ruleFor is a read-through cache over the rule lookup.
func (s *Service) ruleFor(ctx context.Context, categorySlug string) (repository.PricingRule, error) {
	s.mu.Lock()
	if cached, ok := s.cache[categorySlug]; ok && time.Now().Before(cached.expiresAt) {
		s.mu.Unlock()
		return cached.rule, nil
	}
	s.mu.Unlock()

	rule, err := s.rules.GetRuleForCategory(ctx, categorySlug)
	if err != nil {
		return repository.PricingRule{}, err
	}

	s.mu.Lock()
	s.cache[categorySlug] = cachedRule{rule: rule, expiresAt: time.Now().Add(ruleCacheTTL)}
	s.mu.Unlock()

	return rule, nil
}

// EstimateFromRule is the pure estimation core, extracted for testing.
func EstimateFromRule(rule repository.PricingRule, baselineCents int64, baselineRadiusKM, radiusKM float64) int64 {
	radiusFactor := 1.0
	if baselineRadiusKM > 0 && radiusKM > 0 {
		radiusFactor = 1 + radiusKM/baselineRadiusKM
	}

	estimate := int64(math.Round(rule.BaseMultiplier * float64(baselineCents) * radiusFactor))
	if estimate < rule.MinimumPriceCents {
		return rule.MinimumPriceCents
	}
	return estimate
}

// KnownCategory reports whether the category slug exists. Used for boundary
// validation before any state mutation.
func (s *Service) KnownCategory(ctx context.Context, slug string) (bool, error) {
	return s.rules.CategoryExists(ctx, slug)
}
