package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"urgent_dispatch_backend/platform/config"
	"urgent_dispatch_backend/platform/logger"

	"golang.org/x/time/rate"
)

// webhookPayload is the wire format posted to the settlement endpoint.
type webhookPayload struct {
	RequestID       string `json:"requestId"`
	ClientID        string `json:"clientId"`
	ProfessionalID  string `json:"professionalId"`
	FinalPriceCents int64  `json:"finalPriceCents"`
	CompletedAt     string `json:"completedAt"`
}

// Emitter posts outbox rows to the settlement webhook. Deliveries are
// rate-limited so a backlog drain does not hammer the remote side.
type Emitter struct {
	repo    *Repository
	cfg     config.SettlementConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

func NewEmitter(repo *Repository, cfg config.SettlementConfig, log *logger.Logger) *Emitter {
	return &Emitter{
		repo:    repo,
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		log:     log,
	}
}

// EmitRow delivers one row and stamps it on success.
func (e *Emitter) EmitRow(ctx context.Context, row OutboxRow) error {
	if !e.cfg.IsSettlementEnabled() {
		return nil
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(webhookPayload{
		RequestID:       row.RequestID.String(),
		ClientID:        row.ClientID.String(),
		ProfessionalID:  row.ProfessionalID.String(),
		FinalPriceCents: row.FinalPriceCents,
		CompletedAt:     row.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal settlement payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.GetSettlementURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build settlement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post settlement: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("settlement endpoint returned %d", resp.StatusCode)
	}

	return e.repo.MarkEmitted(ctx, row.ID)
}

// Run drains the outbox on a fixed interval until the context is cancelled.
// The interval sweep also retries rows whose first delivery failed.
func (e *Emitter) Run(ctx context.Context) {
	if !e.cfg.IsSettlementEnabled() {
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.drain(ctx)
		}
	}
}

func (e *Emitter) drain(ctx context.Context) {
	pending, err := e.repo.ListUnemitted(ctx, 20)
	if err != nil {
		e.log.DatabaseError("settlement.list_unemitted", err)
		return
	}

	for _, row := range pending {
		if err := e.EmitRow(ctx, row); err != nil {
			e.log.NotifyFailure("settlement", row.RequestID.String(), err)
		}
	}
}
