package settlement

import (
	"context"

	"urgent_dispatch_backend/internal/events"
	"urgent_dispatch_backend/platform/config"
	"urgent_dispatch_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module couples the outbox repository with the webhook emitter. Completion
// writes the outbox row transactionally; this module delivers it promptly on
// the completion event and again from the periodic drain if that fails.
type Module struct {
	repo    *Repository
	emitter *Emitter
	log     *logger.Logger
}

func NewModule(pool *pgxpool.Pool, cfg config.SettlementConfig, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	return &Module{
		repo:    repo,
		emitter: NewEmitter(repo, cfg, log),
		log:     log,
	}
}

func (m *Module) Name() string { return "settlement" }

// RegisterHandlers subscribes the module to completion events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.RequestCompleted{}.EventName(), m)
}

func (m *Module) Handle(ctx context.Context, event events.Event) error {
	e, ok := event.(events.RequestCompleted)
	if !ok {
		return nil
	}

	row, err := m.repo.GetByRequestID(ctx, e.RequestID)
	if err != nil {
		return err
	}
	if row == nil || row.EmittedAt != nil {
		return nil
	}

	return m.emitter.EmitRow(ctx, *row)
}

// Run starts the periodic outbox drain.
func (m *Module) Run(ctx context.Context) {
	m.emitter.Run(ctx)
}

var _ events.Handler = (*Module)(nil)
