package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PricingRule is read-only configuration consulted by the estimator.
// A rule with a nil CategorySlug is the global default.
type PricingRule struct {
	ID                uuid.UUID
	CategorySlug      *string
	BaseMultiplier    float64
	MinimumPriceCents int64
}

// ErrNoRule is returned when neither a category rule nor a default rule exists.
var ErrNoRule = errors.New("no pricing rule configured")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetRuleForCategory returns the rule for the category, falling back to the
// global default rule when the category has none.
func (r *Repository) GetRuleForCategory(ctx context.Context, categorySlug string) (PricingRule, error) {
	query := `
		SELECT id, category_slug, base_multiplier, minimum_price_cents
		FROM pricing_rules
		WHERE category_slug = $1 OR category_slug IS NULL
		ORDER BY category_slug NULLS LAST
		LIMIT 1`

	var rule PricingRule
	err := r.pool.QueryRow(ctx, query, categorySlug).Scan(
		&rule.ID, &rule.CategorySlug, &rule.BaseMultiplier, &rule.MinimumPriceCents,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return PricingRule{}, ErrNoRule
	}
	if err != nil {
		return PricingRule{}, fmt.Errorf("get pricing rule: %w", err)
	}

	return rule, nil
}

// Category is one bookable service category.
type Category struct {
	ID   uuid.UUID `json:"id"`
	Slug string    `json:"slug"`
	Name string    `json:"name"`
}

// ListCategories returns every bookable category, alphabetically by slug.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, slug, name FROM service_categories ORDER BY slug`,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	return categories, nil
}

// CategoryExists reports whether the service category is known.
func (r *Repository) CategoryExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM service_categories WHERE slug = $1)`
	if err := r.pool.QueryRow(ctx, query, slug).Scan(&exists); err != nil {
		return false, fmt.Errorf("check category: %w", err)
	}
	return exists, nil
}
