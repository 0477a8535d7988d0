package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tlogandesigns/site-visitor-dash/internal/access"
	"github.com/tlogandesigns/site-visitor-dash/internal/crmsync"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxNoteLength = 5000

// CreateInput holds the fields of a new lead. CapturingAgentID defaults to
// the actor's agent.
type CreateInput struct {
	BuyerName          string
	BuyerPhone         string
	BuyerEmail         string
	FirstVisit         bool
	InterestedIn       []string
	PurchaseTimeline   string
	PriceRange         string
	Represented        bool
	CobrokerName       string
	IsLocal            bool
	BuyerState         string
	LocationLooking    string
	LocationCurrent    string
	Occupation         string
	DiscoveryMethod    string
	BuildersRequested  []string
	OfferOnTable       bool
	FinalizedContracts bool
	Notes              string
	CapturingAgentID   *uuid.UUID
	Site               string
}

func (in *CreateInput) validate() error {
	verr := &ValidationError{}
	if strings.TrimSpace(in.BuyerName) == "" {
		verr.add("buyer_name", "is required")
	}
	if strings.TrimSpace(in.Site) == "" {
		verr.add("site", "is required")
	}
	if in.PurchaseTimeline != "" {
		if _, ok := models.ParsePurchaseTimeline(in.PurchaseTimeline); !ok {
			verr.add("purchase_timeline", "unknown value")
		}
	}
	if in.PriceRange != "" {
		if _, ok := models.ParsePriceRange(in.PriceRange); !ok {
			verr.add("price_range", "unknown value")
		}
	}
	if len(in.Notes) > maxNoteLength {
		verr.add("notes", "is too long")
	}
	return verr.orNil()
}

// CreateResult is the stored lead and the outcome of its CRM sync.
type CreateResult struct {
	Lead *models.Lead
	Sync crmsync.Outcome
}

// Create stores a lead (and its initial note) in one transaction, then
// syncs it. A sync failure is reported in the result, never as an error.
func (s *Service) Create(ctx context.Context, actor access.Actor, in CreateInput) (*CreateResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	site := strings.TrimSpace(in.Site)

	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := s.requireWriter(actor); err != nil {
		return nil, err
	}
	if err := scope.Authorize(site); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrForbidden, err)
	}

	agentID := in.CapturingAgentID
	if agentID == nil && actor.HasAgent() {
		agentID = actor.AgentID
	}
	if agentID == nil {
		return nil, invalid("capturing_agent_id", "is required")
	}

	var agent models.Agent
	if err := s.db.WithContext(ctx).Preload("Sites").First(&agent, "id = ?", *agentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid("capturing_agent_id", "agent not found")
		}
		return nil, fmt.Errorf("loading capturing agent: %w", err)
	}
	if !scope.Unrestricted() && !agentServes(&agent, site) {
		return nil, invalid("capturing_agent_id", "agent is not assigned to this site")
	}

	lead := &models.Lead{
		Base:               models.Base{ID: uuid.New()},
		BuyerName:          strings.TrimSpace(in.BuyerName),
		BuyerPhone:         strings.TrimSpace(in.BuyerPhone),
		BuyerEmail:         strings.TrimSpace(in.BuyerEmail),
		FirstVisit:         in.FirstVisit,
		InterestedIn:       datatypes.JSONSlice[string](in.InterestedIn),
		PurchaseTimeline:   models.PurchaseTimeline(in.PurchaseTimeline),
		PriceRange:         models.PriceRange(in.PriceRange),
		Represented:        in.Represented,
		CobrokerName:       in.CobrokerName,
		IsLocal:            in.IsLocal,
		BuyerState:         in.BuyerState,
		LocationLooking:    in.LocationLooking,
		LocationCurrent:    in.LocationCurrent,
		Occupation:         in.Occupation,
		DiscoveryMethod:    in.DiscoveryMethod,
		BuildersRequested:  datatypes.JSONSlice[string](in.BuildersRequested),
		OfferOnTable:       in.OfferOnTable,
		FinalizedContracts: in.FinalizedContracts,
		Notes:              strings.TrimSpace(in.Notes),
		CapturingAgentID:   agent.ID,
		Site:               site,
		CreatedByName:      actor.Username,
	}
	if actor.ID != uuid.Nil {
		lead.CreatedByUserID = &actor.ID
	}

	unlock := s.sync.LockLead(lead.ID)
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(lead).Error; err != nil {
			return err
		}
		if lead.Notes == "" {
			return nil
		}
		return tx.Create(&models.LeadNote{
			LeadID:       lead.ID,
			AgentID:      agent.ID,
			AuthorUserID: lead.CreatedByUserID,
			Body:         lead.Notes,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("creating lead: %w", err)
	}

	agent.Sites = nil
	lead.CapturingAgent = &agent

	outcome := s.sync.SyncLeadCreated(ctx, lead)
	return &CreateResult{Lead: lead, Sync: outcome}, nil
}

func agentServes(agent *models.Agent, site string) bool {
	for _, as := range agent.Sites {
		if as.Site == site {
			return true
		}
	}
	return false
}

// requireWriter rejects user-role actors that are not linked to an agent.
func (s *Service) requireWriter(actor access.Actor) error {
	if actor.Role.IsAdmin() {
		return nil
	}
	if actor.Role != models.RoleUser {
		return forbidden("unknown role %q", actor.Role)
	}
	if !actor.HasAgent() {
		return forbidden("user %q is not linked to an agent", actor.Username)
	}
	return nil
}

// NoteResult is the stored note and the outcome of its CRM sync.
type NoteResult struct {
	Note *models.LeadNote
	Sync crmsync.Outcome
}

// AddNote attributes the note to the actor's agent, or to the lead's
// capturing agent when the actor has none, and syncs it.
func (s *Service) AddNote(ctx context.Context, actor access.Actor, leadID uuid.UUID, body string) (*NoteResult, error) {
	body = strings.TrimSpace(body)
	switch {
	case body == "":
		return nil, invalid("note", "is required")
	case len(body) > maxNoteLength:
		return nil, invalid("note", "is too long")
	}

	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := s.requireWriter(actor); err != nil {
		return nil, err
	}

	unlock := s.sync.LockLead(leadID)
	defer unlock()

	lead, err := s.load(ctx, scope, leadID, true)
	if err != nil {
		return nil, err
	}

	note := &models.LeadNote{
		LeadID:  lead.ID,
		AgentID: lead.CapturingAgentID,
		Body:    body,
	}
	if actor.HasAgent() {
		note.AgentID = *actor.AgentID
	}
	if actor.ID != uuid.Nil {
		note.AuthorUserID = &actor.ID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(note).Error; err != nil {
			return err
		}
		return tx.Model(lead).Update("updated_at", time.Now().UTC()).Error
	})
	if err != nil {
		return nil, fmt.Errorf("adding note: %w", err)
	}

	outcome := s.sync.SyncNoteAdded(ctx, lead, note)
	return &NoteResult{Note: note, Sync: outcome}, nil
}

// UpdateInput carries the editable lead fields; nil means unchanged.
type UpdateInput struct {
	BuyerName          *string
	BuyerPhone         *string
	BuyerEmail         *string
	FirstVisit         *bool
	InterestedIn       *[]string
	PurchaseTimeline   *string
	PriceRange         *string
	Represented        *bool
	CobrokerName       *string
	IsLocal            *bool
	BuyerState         *string
	LocationLooking    *string
	LocationCurrent    *string
	Occupation         *string
	DiscoveryMethod    *string
	BuildersRequested  *[]string
	OfferOnTable       *bool
	FinalizedContracts *bool
	Notes              *string
}

func (in *UpdateInput) changes() (map[string]interface{}, error) {
	verr := &ValidationError{}
	m := map[string]interface{}{}

	setStr := func(col string, v *string) {
		if v != nil {
			m[col] = strings.TrimSpace(*v)
		}
	}
	setBool := func(col string, v *bool) {
		if v != nil {
			m[col] = *v
		}
	}

	if in.BuyerName != nil && strings.TrimSpace(*in.BuyerName) == "" {
		verr.add("buyer_name", "must not be empty")
	}
	if in.PurchaseTimeline != nil && *in.PurchaseTimeline != "" {
		if _, ok := models.ParsePurchaseTimeline(*in.PurchaseTimeline); !ok {
			verr.add("purchase_timeline", "unknown value")
		}
	}
	if in.PriceRange != nil && *in.PriceRange != "" {
		if _, ok := models.ParsePriceRange(*in.PriceRange); !ok {
			verr.add("price_range", "unknown value")
		}
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	setStr("buyer_name", in.BuyerName)
	setStr("buyer_phone", in.BuyerPhone)
	setStr("buyer_email", in.BuyerEmail)
	setStr("purchase_timeline", in.PurchaseTimeline)
	setStr("price_range", in.PriceRange)
	setStr("cobroker_name", in.CobrokerName)
	setStr("buyer_state", in.BuyerState)
	setStr("location_looking", in.LocationLooking)
	setStr("location_current", in.LocationCurrent)
	setStr("occupation", in.Occupation)
	setStr("discovery_method", in.DiscoveryMethod)
	setStr("notes", in.Notes)
	setBool("first_visit", in.FirstVisit)
	setBool("represented", in.Represented)
	setBool("is_local", in.IsLocal)
	setBool("offer_on_table", in.OfferOnTable)
	setBool("finalized_contracts", in.FinalizedContracts)
	if in.InterestedIn != nil {
		m["interested_in"] = datatypes.JSONSlice[string](*in.InterestedIn)
	}
	if in.BuildersRequested != nil {
		m["builders_requested"] = datatypes.JSONSlice[string](*in.BuildersRequested)
	}

	if len(m) == 0 {
		return nil, invalid("body", "no updates provided")
	}
	return m, nil
}

// Update edits a lead in scope. Edits are not synced.
func (s *Service) Update(ctx context.Context, actor access.Actor, id uuid.UUID, in UpdateInput) (*models.Lead, error) {
	changes, err := in.changes()
	if err != nil {
		return nil, err
	}

	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := s.requireWriter(actor); err != nil {
		return nil, err
	}

	lead, err := s.load(ctx, scope, id, false)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(lead).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("updating lead: %w", err)
	}

	return s.load(ctx, scope, id, true)
}

// Delete removes a lead and its notes. Only admins may delete, at any site.
func (s *Service) Delete(ctx context.Context, actor access.Actor, id uuid.UUID) error {
	if !actor.Role.IsAdmin() {
		return forbidden("only admins may delete leads")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lead_id = ?", id).Delete(&models.LeadNote{}).Error; err != nil {
			return fmt.Errorf("deleting notes: %w", err)
		}
		res := tx.Delete(&models.Lead{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("deleting lead: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
