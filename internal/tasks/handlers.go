package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/tlogandesigns/site-visitor-dash/internal/crmsync"
	"github.com/tlogandesigns/site-visitor-dash/internal/leads"
	"gorm.io/gorm"
)

// Resyncer re-delivers a stored lead to the CRM.
type Resyncer interface {
	Resync(ctx context.Context, leadID uuid.UUID) (crmsync.Outcome, error)
}

type Handler struct {
	db       *gorm.DB
	logger   *slog.Logger
	resyncer Resyncer
}

func NewHandler(db *gorm.DB, logger *slog.Logger, resyncer Resyncer) *Handler {
	return &Handler{
		db:       db,
		logger:   logger,
		resyncer: resyncer,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeLeadResync, h.HandleLeadResync)
	mux.HandleFunc(TypeBacklogReport, h.HandleBacklogReport)
}

// HandleLeadResync makes a single delivery attempt. A failed delivery is
// already recorded on the lead, so it is not reported back to asynq as a
// task failure.
func (h *Handler) HandleLeadResync(ctx context.Context, t *asynq.Task) error {
	var payload LeadResyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.LeadID == uuid.Nil {
		return fmt.Errorf("lead_id is required: %w", asynq.SkipRetry)
	}

	h.logger.Info("starting lead resync",
		"lead_id", payload.LeadID,
		"requested_by", payload.RequestedBy,
	)

	outcome, err := h.resyncer.Resync(ctx, payload.LeadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.logger.Warn("lead resync skipped, lead no longer exists", "lead_id", payload.LeadID)
			return fmt.Errorf("lead %s not found: %w", payload.LeadID, asynq.SkipRetry)
		}
		return fmt.Errorf("resync lead %s: %w", payload.LeadID, err)
	}

	if !outcome.Synced {
		h.logger.Warn("lead resync failed",
			"lead_id", payload.LeadID,
			"error", outcome.ErrorString(),
		)
		return nil
	}

	h.logger.Info("completed lead resync",
		"lead_id", payload.LeadID,
		"crm_lead_id", outcome.CRMLeadID,
	)
	return nil
}

// HandleBacklogReport logs how many leads each site still has undelivered.
// It never attempts delivery itself.
func (h *Handler) HandleBacklogReport(ctx context.Context, _ *asynq.Task) error {
	counts, err := leads.UnsyncedBySite(ctx, h.db)
	if err != nil {
		return fmt.Errorf("counting unsynced leads: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c.Count
		h.logger.Warn("unsynced leads", "site", c.Value, "count", c.Count)
	}

	if total == 0 {
		h.logger.Info("crm backlog is empty")
		return nil
	}
	h.logger.Warn("crm backlog", "total", total, "sites", len(counts))
	return nil
}
