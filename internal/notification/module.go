// Package notification subscribes to dispatch events and fans them out as
// in-app notification rows and, when configured, mail. Domain modules never
// talk to delivery channels directly; they publish events and this module
// inverts the dependency.
package notification

import (
	"context"
	"fmt"

	"urgent_dispatch_backend/internal/events"
	apphttp "urgent_dispatch_backend/internal/http"
	"urgent_dispatch_backend/internal/notification/handler"
	"urgent_dispatch_backend/internal/notification/inapp"
	"urgent_dispatch_backend/internal/notification/mail"
	"urgent_dispatch_backend/platform/config"
	"urgent_dispatch_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// alertFanOutLimit caps concurrent deliveries for one dispatch round.
const alertFanOutLimit = 8

// MailSender delivers plain-text mails.
type MailSender interface {
	Send(ctx context.Context, toEmail, subject, body string) error
}

type Module struct {
	inapp   *inapp.Repository
	handler *handler.Handler
	mailer  MailSender
	mailCfg config.MailConfig
	log     *logger.Logger
}

func NewModule(pool *pgxpool.Pool, mailCfg config.MailConfig, log *logger.Logger) *Module {
	repo := inapp.NewRepository(pool)

	m := &Module{
		inapp:   repo,
		handler: handler.New(repo),
		mailCfg: mailCfg,
		log:     log,
	}
	if mailCfg.GetMailEnabled() {
		m.mailer = mail.NewSender(mailCfg)
	}

	return m
}

func (m *Module) Name() string { return "notification" }

// RegisterRoutes mounts the in-app notification feed.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/notifications"))
}

// RegisterHandlers subscribes the module to the dispatch events it delivers.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.CandidatesDispatched{}.EventName(), m)
	bus.Subscribe(events.RequestAssigned{}.EventName(), m)
	bus.Subscribe(events.RequestCancelled{}.EventName(), m)
	bus.Subscribe(events.RequestCompleted{}.EventName(), m)
	bus.Subscribe(events.RequestFailedToMatch{}.EventName(), m)
}

func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.CandidatesDispatched:
		return m.handleCandidatesDispatched(ctx, e)
	case events.RequestAssigned:
		return m.handleRequestAssigned(ctx, e)
	case events.RequestCancelled:
		return m.handleRequestCancelled(ctx, e)
	case events.RequestCompleted:
		return m.handleRequestCompleted(ctx, e)
	case events.RequestFailedToMatch:
		return m.handleFailedToMatch(ctx, e)
	}
	return nil
}

// handleCandidatesDispatched alerts every candidate in the round. Alerts are
// independent; one failed delivery never blocks the rest.
func (m *Module) handleCandidatesDispatched(ctx context.Context, e events.CandidatesDispatched) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(alertFanOutLimit)

	requestID := e.RequestID
	for _, alert := range e.Alerts {
		a := alert
		g.Go(func() error {
			err := m.inapp.Create(gctx, inapp.CreateParams{
				RecipientType: inapp.RecipientProfessional,
				RecipientID:   a.ProfessionalID,
				Title:         "New job nearby",
				Body: fmt.Sprintf("%s job %.1f km away: %s. Open /api/v1/public/jobs/%s to respond.",
					e.CategorySlug, a.DistanceKM, e.Description, a.AccessToken),
				RequestID: &requestID,
			})
			if err != nil {
				m.log.NotifyFailure("inapp", a.ProfessionalID.String(), err)
			}
			return nil
		})
	}

	return g.Wait()
}

func (m *Module) handleRequestAssigned(ctx context.Context, e events.RequestAssigned) error {
	requestID := e.RequestID

	if err := m.inapp.Create(ctx, inapp.CreateParams{
		RecipientType: inapp.RecipientClient,
		RecipientID:   e.ClientID,
		Title:         "Professional on the way",
		Body:          "A professional accepted your request.",
		RequestID:     &requestID,
	}); err != nil {
		m.log.NotifyFailure("inapp", e.ClientID.String(), err)
	}

	if err := m.inapp.Create(ctx, inapp.CreateParams{
		RecipientType: inapp.RecipientProfessional,
		RecipientID:   e.ProfessionalID,
		Title:         "Job confirmed",
		Body:          "You won the job. The client has been notified.",
		RequestID:     &requestID,
	}); err != nil {
		m.log.NotifyFailure("inapp", e.ProfessionalID.String(), err)
	}

	for _, loser := range e.LosingPool {
		if err := m.inapp.Create(ctx, inapp.CreateParams{
			RecipientType: inapp.RecipientProfessional,
			RecipientID:   loser,
			Title:         "Job no longer available",
			Body:          "Another professional accepted this job.",
			RequestID:     &requestID,
		}); err != nil {
			m.log.NotifyFailure("inapp", loser.String(), err)
		}
	}

	return nil
}

func (m *Module) handleRequestCancelled(ctx context.Context, e events.RequestCancelled) error {
	requestID := e.RequestID
	if err := m.inapp.Create(ctx, inapp.CreateParams{
		RecipientType: inapp.RecipientClient,
		RecipientID:   e.ClientID,
		Title:         "Request cancelled",
		Body:          "Your request was cancelled.",
		RequestID:     &requestID,
	}); err != nil {
		m.log.NotifyFailure("inapp", e.ClientID.String(), err)
	}
	return nil
}

func (m *Module) handleRequestCompleted(ctx context.Context, e events.RequestCompleted) error {
	requestID := e.RequestID
	if err := m.inapp.Create(ctx, inapp.CreateParams{
		RecipientType: inapp.RecipientProfessional,
		RecipientID:   e.ProfessionalID,
		Title:         "Job completed",
		Body:          fmt.Sprintf("The client closed the job. Final price: %d cents.", e.FinalPriceCents),
		RequestID:     &requestID,
	}); err != nil {
		m.log.NotifyFailure("inapp", e.ProfessionalID.String(), err)
	}
	return nil
}

func (m *Module) handleFailedToMatch(ctx context.Context, e events.RequestFailedToMatch) error {
	requestID := e.RequestID
	if err := m.inapp.Create(ctx, inapp.CreateParams{
		RecipientType: inapp.RecipientClient,
		RecipientID:   e.ClientID,
		Title:         "No professional found",
		Body:          "We could not find an available professional after several attempts. You can cancel and try again later.",
		RequestID:     &requestID,
	}); err != nil {
		m.log.NotifyFailure("inapp", e.ClientID.String(), err)
	}

	if m.mailer != nil && m.mailCfg.GetMailOpsAddress() != "" {
		err := m.mailer.Send(ctx, m.mailCfg.GetMailOpsAddress(),
			"Dispatch failed to match",
			fmt.Sprintf("Request %s failed to match after %d rounds.", e.RequestID, e.Rounds),
		)
		if err != nil {
			m.log.NotifyFailure("mail", m.mailCfg.GetMailOpsAddress(), err)
		}
	}

	return nil
}

var _ apphttp.Module = (*Module)(nil)
var _ events.Handler = (*Module)(nil)
