// Package directory provides the professional directory bounded context module.
package directory

import (
	"urgent_dispatch_backend/internal/directory/handler"
	"urgent_dispatch_backend/internal/directory/repository"
	"urgent_dispatch_backend/internal/directory/service"
	apphttp "urgent_dispatch_backend/internal/http"
	"urgent_dispatch_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the directory bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the directory module with all its dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "directory"
}

// Service returns the service layer for use by the dispatch finder.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts directory routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/professionals"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
