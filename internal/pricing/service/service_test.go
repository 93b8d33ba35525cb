package service

import (
	"context"
	"testing"

	"urgent_dispatch_backend/internal/pricing/repository"
	"urgent_dispatch_backend/platform/apperr"
)

type testConfig struct{}

func (testConfig) GetPricingBaselineCents() int64      { return 5000 }
func (testConfig) GetPricingBaselineRadiusKM() float64 { return 5 }

type stubRules struct {
	rule    repository.PricingRule
	err     error
	lookups int
}

func (s *stubRules) GetRuleForCategory(context.Context, string) (repository.PricingRule, error) {
	s.lookups++
	return s.rule, s.err
}

func (s *stubRules) CategoryExists(context.Context, string) (bool, error) {
	return true, nil
}

func TestEstimateFromRule_RadiusFactorScalesPrice(t *testing.T) {
	rule := repository.PricingRule{BaseMultiplier: 1.0, MinimumPriceCents: 0}

	// radiusFactor = 1 + 5/5 = 2, so 5000 * 1.0 * 2 = 10000
	got := EstimateFromRule(rule, 5000, 5, 5)
	if got != 10000 {
		t.Fatalf("expected 10000 cents at baseline radius, got %d", got)
	}

	// radiusFactor = 1 + 10/5 = 3
	got = EstimateFromRule(rule, 5000, 5, 10)
	if got != 15000 {
		t.Fatalf("expected 15000 cents at double radius, got %d", got)
	}
}

func TestEstimateFromRule_MinimumPriceFloor(t *testing.T) {
	rule := repository.PricingRule{BaseMultiplier: 0.1, MinimumPriceCents: 4000}

	got := EstimateFromRule(rule, 5000, 5, 1)
	if got != 4000 {
		t.Fatalf("expected minimum price floor 4000, got %d", got)
	}
}

func TestEstimateFromRule_MultiplierApplied(t *testing.T) {
	rule := repository.PricingRule{BaseMultiplier: 1.5, MinimumPriceCents: 0}

	// 1.5 * 5000 * (1 + 5/5) = 15000
	got := EstimateFromRule(rule, 5000, 5, 5)
	if got != 15000 {
		t.Fatalf("expected 15000 with 1.5 multiplier, got %d", got)
	}
}

func TestEstimate_DeterministicForSameInputs(t *testing.T) {
	rules := &stubRules{rule: repository.PricingRule{BaseMultiplier: 1.2, MinimumPriceCents: 3000}}
	svc := New(rules, testConfig{})

	first, err := svc.Estimate(context.Background(), "plumber", 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Estimate(context.Background(), "plumber", 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("expected deterministic estimate, got %d and %d", first, second)
	}
}

func TestEstimate_CachesRuleLookups(t *testing.T) {
	rules := &stubRules{rule: repository.PricingRule{BaseMultiplier: 1.0, MinimumPriceCents: 0}}
	svc := New(rules, testConfig{})

	if _, err := svc.Estimate(context.Background(), "plumber", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Estimate(context.Background(), "plumber", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rules.lookups != 1 {
		t.Fatalf("expected a single rule lookup for repeated estimates, got %d", rules.lookups)
	}
}

func TestEstimate_MissingRuleIsConfigurationError(t *testing.T) {
	rules := &stubRules{err: repository.ErrNoRule}
	svc := New(rules, testConfig{})

	_, err := svc.Estimate(context.Background(), "unknown", 5)
	if err == nil {
		t.Fatal("expected error for missing rule")
	}
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error kind, got %v", err)
	}
}
