// Package dispatch provides the urgent dispatch bounded context module:
// request intake, candidate dispatch, the assignment race and the retry
// policy.
package dispatch

import (
	"urgent_dispatch_backend/internal/dispatch/handler"
	"urgent_dispatch_backend/internal/dispatch/repository"
	"urgent_dispatch_backend/internal/dispatch/service"
	"urgent_dispatch_backend/internal/events"
	apphttp "urgent_dispatch_backend/internal/http"
	"urgent_dispatch_backend/platform/config"
	"urgent_dispatch_backend/platform/logger"
	"urgent_dispatch_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the dispatch bounded context module implementing http.Module.
type Module struct {
	handler       *handler.Handler
	publicHandler *handler.PublicHandler
	service       *service.Service
}

// NewModule wires the dispatch context. The directory and pricing services
// come in through the collaborator interfaces; sweeps may be nil when no
// scheduler is configured.
func NewModule(
	pool *pgxpool.Pool,
	directory service.Directory,
	pricing service.Estimator,
	sweeps service.SweepScheduler,
	eventBus events.Bus,
	cfg config.DispatchConfig,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, directory, pricing, sweeps, eventBus, cfg, log)

	return &Module{
		handler:       handler.New(svc, val),
		publicHandler: handler.NewPublic(svc, val),
		service:       svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "dispatch"
}

// Service exposes the dispatch service for the scheduler worker.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the client routes under auth and the professional
// token routes on the public group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/requests"), ctx.CreateRateLimiter)
	m.publicHandler.RegisterRoutes(ctx.V1.Group("/public/jobs"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
