// Package pricing provides the price estimation bounded context module.
package pricing

import (
	apphttp "urgent_dispatch_backend/internal/http"
	"urgent_dispatch_backend/internal/pricing/handler"
	"urgent_dispatch_backend/internal/pricing/repository"
	"urgent_dispatch_backend/internal/pricing/service"
	"urgent_dispatch_backend/platform/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the pricing bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the pricing module.
func NewModule(pool *pgxpool.Pool, cfg config.PricingConfig) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, cfg)

	return &Module{
		handler: handler.New(svc, repo),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "pricing"
}

// Service returns the estimator for use by the dispatch module.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the public pricing routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/pricing"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
