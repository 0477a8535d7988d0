package dto

import (
	"strings"

	"github.com/google/uuid"
	"github.com/tlogandesigns/site-visitor-dash/internal/api/validation"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
	"github.com/tlogandesigns/site-visitor-dash/internal/leads"
)

type CreateLeadRequest struct {
	BuyerName          string   `json:"buyer_name"`
	BuyerPhone         string   `json:"buyer_phone,omitempty"`
	BuyerEmail         string   `json:"buyer_email,omitempty"`
	FirstVisit         bool     `json:"first_visit"`
	InterestedIn       []string `json:"interested_in,omitempty"`
	PurchaseTimeline   string   `json:"purchase_timeline,omitempty"`
	PriceRange         string   `json:"price_range,omitempty"`
	Represented        bool     `json:"represented"`
	CobrokerName       string   `json:"cobroker_name,omitempty"`
	IsLocal            bool     `json:"is_local"`
	BuyerState         string   `json:"buyer_state,omitempty"`
	LocationLooking    string   `json:"location_looking,omitempty"`
	LocationCurrent    string   `json:"location_current,omitempty"`
	Occupation         string   `json:"occupation,omitempty"`
	DiscoveryMethod    string   `json:"discovery_method,omitempty"`
	BuildersRequested  []string `json:"builders_requested,omitempty"`
	OfferOnTable       bool     `json:"offer_on_table"`
	FinalizedContracts bool     `json:"finalized_contracts"`
	Notes              string   `json:"notes,omitempty"`
	CapturingAgentID   string   `json:"capturing_agent_id,omitempty"`
	Site               string   `json:"site"`
}

func (r CreateLeadRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.BuyerName) == "" {
		errors["buyer_name"] = "Buyer name is required"
	} else if len(r.BuyerName) > validation.MaxNameLength {
		errors["buyer_name"] = "Buyer name is too long"
	}
	if r.BuyerEmail != "" && !validation.IsValidEmail(strings.TrimSpace(r.BuyerEmail)) {
		errors["buyer_email"] = "Invalid email format"
	}
	if r.BuyerPhone != "" && !validation.IsValidPhone(r.BuyerPhone) {
		errors["buyer_phone"] = "Invalid phone number"
	}
	if !validation.IsValidSite(r.Site) {
		errors["site"] = "Site is required"
	}
	if r.CapturingAgentID != "" && !validation.IsValidUUID(r.CapturingAgentID) {
		errors["capturing_agent_id"] = "Invalid agent ID"
	}
	if len(r.Notes) > validation.MaxNoteLength {
		errors["notes"] = "Notes are too long"
	}

	return errors
}

// ToInput assumes Validate passed.
func (r CreateLeadRequest) ToInput() leads.CreateInput {
	in := leads.CreateInput{
		BuyerName:          validation.SanitizeString(r.BuyerName),
		BuyerPhone:         validation.SanitizeString(r.BuyerPhone),
		BuyerEmail:         strings.ToLower(validation.SanitizeString(r.BuyerEmail)),
		FirstVisit:         r.FirstVisit,
		InterestedIn:       validation.SanitizeList(r.InterestedIn),
		PurchaseTimeline:   strings.TrimSpace(r.PurchaseTimeline),
		PriceRange:         strings.TrimSpace(r.PriceRange),
		Represented:        r.Represented,
		CobrokerName:       validation.SanitizeString(r.CobrokerName),
		IsLocal:            r.IsLocal,
		BuyerState:         validation.SanitizeString(r.BuyerState),
		LocationLooking:    validation.SanitizeString(r.LocationLooking),
		LocationCurrent:    validation.SanitizeString(r.LocationCurrent),
		Occupation:         validation.SanitizeString(r.Occupation),
		DiscoveryMethod:    validation.SanitizeString(r.DiscoveryMethod),
		BuildersRequested:  validation.SanitizeList(r.BuildersRequested),
		OfferOnTable:       r.OfferOnTable,
		FinalizedContracts: r.FinalizedContracts,
		Notes:              validation.SanitizeString(r.Notes),
		Site:               validation.SanitizeString(r.Site),
	}
	if id, err := uuid.Parse(r.CapturingAgentID); err == nil {
		in.CapturingAgentID = &id
	}
	return in
}

// UpdateLeadRequest is a partial update; omitted fields are left alone.
type UpdateLeadRequest struct {
	BuyerName          *string   `json:"buyer_name,omitempty"`
	BuyerPhone         *string   `json:"buyer_phone,omitempty"`
	BuyerEmail         *string   `json:"buyer_email,omitempty"`
	FirstVisit         *bool     `json:"first_visit,omitempty"`
	InterestedIn       *[]string `json:"interested_in,omitempty"`
	PurchaseTimeline   *string   `json:"purchase_timeline,omitempty"`
	PriceRange         *string   `json:"price_range,omitempty"`
	Represented        *bool     `json:"represented,omitempty"`
	CobrokerName       *string   `json:"cobroker_name,omitempty"`
	IsLocal            *bool     `json:"is_local,omitempty"`
	BuyerState         *string   `json:"buyer_state,omitempty"`
	LocationLooking    *string   `json:"location_looking,omitempty"`
	LocationCurrent    *string   `json:"location_current,omitempty"`
	Occupation         *string   `json:"occupation,omitempty"`
	DiscoveryMethod    *string   `json:"discovery_method,omitempty"`
	BuildersRequested  *[]string `json:"builders_requested,omitempty"`
	OfferOnTable       *bool     `json:"offer_on_table,omitempty"`
	FinalizedContracts *bool     `json:"finalized_contracts,omitempty"`
	Notes              *string   `json:"notes,omitempty"`
}

func (r UpdateLeadRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.BuyerName != nil && len(*r.BuyerName) > validation.MaxNameLength {
		errors["buyer_name"] = "Buyer name is too long"
	}
	if r.BuyerEmail != nil && *r.BuyerEmail != "" && !validation.IsValidEmail(strings.TrimSpace(*r.BuyerEmail)) {
		errors["buyer_email"] = "Invalid email format"
	}
	if r.BuyerPhone != nil && *r.BuyerPhone != "" && !validation.IsValidPhone(*r.BuyerPhone) {
		errors["buyer_phone"] = "Invalid phone number"
	}
	if r.Notes != nil && len(*r.Notes) > validation.MaxNoteLength {
		errors["notes"] = "Notes are too long"
	}

	return errors
}

func (r UpdateLeadRequest) ToInput() leads.UpdateInput {
	in := leads.UpdateInput{
		BuyerName:          sanitized(r.BuyerName),
		BuyerPhone:         sanitized(r.BuyerPhone),
		BuyerEmail:         sanitized(r.BuyerEmail),
		FirstVisit:         r.FirstVisit,
		PurchaseTimeline:   r.PurchaseTimeline,
		PriceRange:         r.PriceRange,
		Represented:        r.Represented,
		CobrokerName:       sanitized(r.CobrokerName),
		IsLocal:            r.IsLocal,
		BuyerState:         sanitized(r.BuyerState),
		LocationLooking:    sanitized(r.LocationLooking),
		LocationCurrent:    sanitized(r.LocationCurrent),
		Occupation:         sanitized(r.Occupation),
		DiscoveryMethod:    sanitized(r.DiscoveryMethod),
		OfferOnTable:       r.OfferOnTable,
		FinalizedContracts: r.FinalizedContracts,
		Notes:              sanitized(r.Notes),
	}
	if in.BuyerEmail != nil {
		lower := strings.ToLower(*in.BuyerEmail)
		in.BuyerEmail = &lower
	}
	if r.InterestedIn != nil {
		list := validation.SanitizeList(*r.InterestedIn)
		in.InterestedIn = &list
	}
	if r.BuildersRequested != nil {
		list := validation.SanitizeList(*r.BuildersRequested)
		in.BuildersRequested = &list
	}
	return in
}

func sanitized(s *string) *string {
	if s == nil {
		return nil
	}
	v := validation.SanitizeString(*s)
	return &v
}

type AddNoteRequest struct {
	Note string `json:"note"`
}

func (r AddNoteRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Note) == "" {
		errors["note"] = "Note is required"
	} else if len(r.Note) > validation.MaxNoteLength {
		errors["note"] = "Note is too long"
	}

	return errors
}

// CreateLeadResponse reports the stored lead with the outcome of its first
// CRM delivery. A failed delivery still returns 201.
type CreateLeadResponse struct {
	Lead      *models.Lead `json:"lead"`
	Synced    bool         `json:"synced"`
	SyncError string       `json:"sync_error,omitempty"`
}

type LeadDetailResponse struct {
	Lead  *models.Lead      `json:"lead"`
	Notes []models.LeadNote `json:"notes"`
}

type NoteResponse struct {
	Note      *models.LeadNote `json:"note"`
	Synced    bool             `json:"synced"`
	SyncError string           `json:"sync_error,omitempty"`
}

type ResyncResponse struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}
