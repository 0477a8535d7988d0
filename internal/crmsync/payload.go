package crmsync

import (
	"strings"
	"time"

	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
)

type EventType string

const (
	EventNewLead   EventType = "new_lead"
	EventNoteAdded EventType = "note_added"
)

// Payload is the JSON document posted to the CRM relay.
type Payload struct {
	EventType EventType `json:"eventType"`
	LeadID    string    `json:"leadId"`
	CRMLeadID string    `json:"crmLeadId,omitempty"`

	// Buyer
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`

	// Agent
	AgentName  string `json:"agentName"`
	AgentEmail string `json:"agentEmail"`
	AgentCRMID string `json:"agentCrmId"`
	Site       string `json:"site"`

	// Lead details
	FirstVisit         bool     `json:"firstVisit"`
	InterestedIn       []string `json:"interestedIn"`
	PurchaseTimeline   string   `json:"purchaseTimeline"`
	PriceRange         string   `json:"priceRange"`
	Represented        string   `json:"represented"`
	RepresentingAgent  string   `json:"representingAgent"`
	IsLocal            bool     `json:"isLocal"`
	BuyerState         string   `json:"buyerState"`
	LocationLooking    string   `json:"locationLooking"`
	LocationCurrent    string   `json:"locationCurrent"`
	Occupation         string   `json:"occupation"`
	DiscoveryMethod    string   `json:"discoveryMethod"`
	BuildersRequested  []string `json:"buildersRequested"`
	OfferOnTable       bool     `json:"offerOnTable"`
	FinalizedContracts bool     `json:"finalizedContracts"`
	Notes              string   `json:"notes"`

	// Note events only
	Note          string `json:"note,omitempty"`
	NoteAuthor    string `json:"noteAuthor,omitempty"`
	NoteCreatedAt string `json:"noteCreatedAt,omitempty"`

	// Metadata
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
	VisitDate string `json:"visitDate"`
}

// SplitName returns the first whitespace-delimited token as the first name
// and the rest as the last name. A name with a single token is returned
// whole as the last name.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// buildPayload maps a lead (email placeholder already applied) and its
// capturing agent onto the CRM schema.
func buildPayload(event EventType, lead *models.Lead, agent *models.Agent, cfg Config, now time.Time) Payload {
	first, last := SplitName(lead.BuyerName)

	phone := lead.BuyerPhone
	if strings.TrimSpace(phone) == "" {
		phone = cfg.PlaceholderPhone
	}

	return Payload{
		EventType: event,
		LeadID:    lead.ID.String(),
		CRMLeadID: lead.CRMLeadID,

		FirstName: first,
		LastName:  last,
		FullName:  strings.TrimSpace(lead.BuyerName),
		Email:     lead.BuyerEmail,
		Phone:     phone,

		AgentName:  agent.Name,
		AgentEmail: agent.Email,
		AgentCRMID: agent.CRMID,
		Site:       lead.Site,

		FirstVisit:         lead.FirstVisit,
		InterestedIn:       nonNil(lead.InterestedIn),
		PurchaseTimeline:   string(lead.PurchaseTimeline),
		PriceRange:         string(lead.PriceRange),
		Represented:        yesNo(lead.Represented),
		RepresentingAgent:  lead.CobrokerName,
		IsLocal:            lead.IsLocal,
		BuyerState:         lead.BuyerState,
		LocationLooking:    lead.LocationLooking,
		LocationCurrent:    lead.LocationCurrent,
		Occupation:         lead.Occupation,
		DiscoveryMethod:    lead.DiscoveryMethod,
		BuildersRequested:  nonNil(lead.BuildersRequested),
		OfferOnTable:       lead.OfferOnTable,
		FinalizedContracts: lead.FinalizedContracts,
		Notes:              lead.Notes,

		Source:    cfg.Source,
		Timestamp: now.UTC().Format(time.RFC3339),
		VisitDate: lead.CreatedAt.UTC().Format(time.RFC3339),
	}
}
