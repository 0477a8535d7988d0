// Package crmsync mirrors leads and notes into the external CRM. Delivery is
// a single best-effort attempt: failures are logged and recorded on the lead
// and never returned to the caller of the triggering write.
package crmsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
	"github.com/tlogandesigns/site-visitor-dash/pkg/config"
	"gorm.io/gorm"
)

var ErrMissingAgentCRMID = errors.New("capturing agent has no crm id")

type Config struct {
	Timeout                time.Duration
	PlaceholderPhone       string
	PlaceholderEmailDomain string
	Source                 string
}

func ConfigFrom(c *config.CRMConfig) Config {
	return Config{
		Timeout:                c.Timeout(),
		PlaceholderPhone:       c.PlaceholderPhone,
		PlaceholderEmailDomain: c.PlaceholderEmailDomain,
		Source:                 c.Source,
	}
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.PlaceholderPhone == "" {
		c.PlaceholderPhone = "000-000-0000"
	}
	if c.PlaceholderEmailDomain == "" {
		c.PlaceholderEmailDomain = "noemail.leadtracker.local"
	}
	if c.Source == "" {
		c.Source = "New Homes Lead Tracker"
	}
	return c
}

// Outcome describes one sync attempt.
type Outcome struct {
	Synced    bool
	CRMLeadID string
	Err       error
}

// ErrorString is the failure message, or "" on success.
func (o Outcome) ErrorString() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

type Pipeline struct {
	db        *gorm.DB
	deliverer Deliverer
	cfg       Config
	log       *slog.Logger
	locks     *keyedMutex
	now       func() time.Time
}

func NewPipeline(db *gorm.DB, deliverer Deliverer, cfg Config, log *slog.Logger) *Pipeline {
	return &Pipeline{
		db:        db,
		deliverer: deliverer,
		cfg:       cfg.withDefaults(),
		log:       log,
		locks:     newKeyedMutex(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// LockLead serializes work on one lead. Callers hold it across the note
// insert and SyncNoteAdded so notes reach the CRM in creation order.
func (p *Pipeline) LockLead(id uuid.UUID) (unlock func()) {
	return p.locks.Lock(id)
}

// SyncLeadCreated delivers a new_lead event. lead is updated in place with
// the placeholder email and the recorded sync state.
func (p *Pipeline) SyncLeadCreated(ctx context.Context, lead *models.Lead) Outcome {
	return p.sync(ctx, EventNewLead, lead, nil)
}

// SyncNoteAdded delivers a note_added event for note on lead.
func (p *Pipeline) SyncNoteAdded(ctx context.Context, lead *models.Lead, note *models.LeadNote) Outcome {
	return p.sync(ctx, EventNoteAdded, lead, note)
}

// Resync loads the lead and attempts one more new_lead delivery. It is only
// reached through an explicit admin request.
func (p *Pipeline) Resync(ctx context.Context, leadID uuid.UUID) (Outcome, error) {
	unlock := p.LockLead(leadID)
	defer unlock()

	var lead models.Lead
	if err := p.db.WithContext(ctx).First(&lead, "id = ?", leadID).Error; err != nil {
		return Outcome{}, fmt.Errorf("loading lead %s: %w", leadID, err)
	}
	return p.sync(ctx, EventNewLead, &lead, nil), nil
}

func (p *Pipeline) sync(ctx context.Context, event EventType, lead *models.Lead, note *models.LeadNote) Outcome {
	// Delivery outlives a client that hangs up mid-request.
	ctx = context.WithoutCancel(ctx)
	log := p.log.With("lead_id", lead.ID, "event", event)

	outcome := p.attempt(ctx, event, lead, note)
	if outcome.Err != nil {
		log.Warn("crm sync failed", "error", outcome.Err)
	} else {
		log.Info("crm sync succeeded", "crm_lead_id", outcome.CRMLeadID)
	}

	p.record(ctx, lead, outcome, log)
	return outcome
}

func (p *Pipeline) attempt(ctx context.Context, event EventType, lead *models.Lead, note *models.LeadNote) Outcome {
	if err := p.ensureEmail(ctx, lead); err != nil {
		return Outcome{Err: err}
	}

	agent, err := p.loadAgent(ctx, lead.CapturingAgentID, lead.CapturingAgent)
	if err != nil {
		return Outcome{Err: err}
	}
	if strings.TrimSpace(agent.CRMID) == "" {
		return Outcome{Err: fmt.Errorf("%w: agent %q", ErrMissingAgentCRMID, agent.Name)}
	}

	payload := buildPayload(event, lead, agent, p.cfg, p.now())
	if note != nil {
		payload.Note = note.Body
		payload.NoteCreatedAt = note.CreatedAt.UTC().Format(time.RFC3339)
		payload.NoteAuthor = p.noteAuthor(ctx, note, agent)
	}

	dctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	receipt, err := p.deliverer.Deliver(dctx, payload)
	if err != nil {
		return Outcome{Err: err}
	}

	crmID := receipt.CRMLeadID
	if crmID == "" {
		crmID = lead.CRMLeadID
	}
	return Outcome{Synced: true, CRMLeadID: crmID}
}

// ensureEmail persists a placeholder email when the lead has none. The
// update only applies while the column is still empty, so concurrent
// callers converge on one address.
func (p *Pipeline) ensureEmail(ctx context.Context, lead *models.Lead) error {
	if strings.TrimSpace(lead.BuyerEmail) != "" {
		return nil
	}

	placeholder := PlaceholderEmail(p.cfg.PlaceholderEmailDomain)
	res := p.db.WithContext(ctx).Model(&models.Lead{}).
		Where("id = ? AND (buyer_email = '' OR buyer_email IS NULL)", lead.ID).
		Update("buyer_email", placeholder)
	if res.Error != nil {
		return fmt.Errorf("persisting placeholder email: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		var current models.Lead
		if err := p.db.WithContext(ctx).Select("buyer_email").
			First(&current, "id = ?", lead.ID).Error; err != nil {
			return fmt.Errorf("reloading buyer email: %w", err)
		}
		lead.BuyerEmail = current.BuyerEmail
		return nil
	}

	lead.BuyerEmail = placeholder
	return nil
}

// PlaceholderEmail returns a unique address under domain.
func PlaceholderEmail(domain string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return token + "@" + domain
}

func (p *Pipeline) loadAgent(ctx context.Context, id uuid.UUID, loaded *models.Agent) (*models.Agent, error) {
	if loaded != nil && loaded.ID == id {
		return loaded, nil
	}
	var agent models.Agent
	if err := p.db.WithContext(ctx).First(&agent, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("loading agent %s: %w", id, err)
	}
	return &agent, nil
}

func (p *Pipeline) noteAuthor(ctx context.Context, note *models.LeadNote, capturing *models.Agent) string {
	if note.Agent != nil {
		return note.Agent.Name
	}
	if note.AgentID == capturing.ID {
		return capturing.Name
	}
	agent, err := p.loadAgent(ctx, note.AgentID, nil)
	if err != nil {
		return ""
	}
	return agent.Name
}

// record writes the outcome in its own short statement. A success sets the
// synced flag; a failure only stores the message, so the flag is never
// revoked once set.
func (p *Pipeline) record(ctx context.Context, lead *models.Lead, outcome Outcome, log *slog.Logger) {
	q := p.db.WithContext(ctx).Model(&models.Lead{}).Where("id = ?", lead.ID)

	if outcome.Err != nil {
		msg := truncate(outcome.Err.Error(), 500)
		if err := q.Update("crm_sync_error", msg).Error; err != nil {
			log.Error("recording crm sync failure", "error", err)
			return
		}
		lead.CRMSyncError = msg
		return
	}

	now := p.now()
	updates := map[string]interface{}{
		"crm_synced":     true,
		"crm_synced_at":  now,
		"crm_sync_error": "",
	}
	if outcome.CRMLeadID != "" {
		updates["crm_lead_id"] = outcome.CRMLeadID
	}
	if err := q.Updates(updates).Error; err != nil {
		log.Error("recording crm sync success", "error", err)
		return
	}

	lead.CRMSynced = true
	lead.CRMSyncedAt = &now
	lead.CRMSyncError = ""
	lead.CRMLeadID = outcome.CRMLeadID
}
