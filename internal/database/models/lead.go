package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PurchaseTimeline string

const (
	Timeline0To3Months   PurchaseTimeline = "0-3 months"
	Timeline3To6Months   PurchaseTimeline = "3-6 months"
	Timeline6To12Months  PurchaseTimeline = "6-12 months"
	Timeline12PlusMonths PurchaseTimeline = "12+ months"
	TimelineJustLooking  PurchaseTimeline = "Just looking"
)

var purchaseTimelines = []PurchaseTimeline{
	Timeline0To3Months, Timeline3To6Months, Timeline6To12Months,
	Timeline12PlusMonths, TimelineJustLooking,
}

// PurchaseTimelines lists the accepted values in display order.
func PurchaseTimelines() []PurchaseTimeline {
	return append([]PurchaseTimeline(nil), purchaseTimelines...)
}

func ParsePurchaseTimeline(s string) (PurchaseTimeline, bool) {
	for _, t := range purchaseTimelines {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

type PriceRange string

const (
	PriceUnder300k  PriceRange = "Under $300k"
	Price300kTo400k PriceRange = "$300k-$400k"
	Price400kTo500k PriceRange = "$400k-$500k"
	Price500kTo750k PriceRange = "$500k-$750k"
	Price750kPlus   PriceRange = "$750k+"
)

var priceRanges = []PriceRange{
	PriceUnder300k, Price300kTo400k, Price400kTo500k, Price500kTo750k, Price750kPlus,
}

func PriceRanges() []PriceRange {
	return append([]PriceRange(nil), priceRanges...)
}

func ParsePriceRange(s string) (PriceRange, bool) {
	for _, p := range priceRanges {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Lead is a captured site visitor.
type Lead struct {
	Base

	// Buyer
	BuyerName  string `gorm:"not null;index" json:"buyer_name"`
	BuyerPhone string `json:"buyer_phone,omitempty"`
	BuyerEmail string `gorm:"index" json:"buyer_email,omitempty"`

	// Visit and qualification
	FirstVisit        bool                        `json:"first_visit"`
	InterestedIn      datatypes.JSONSlice[string] `json:"interested_in,omitempty"`
	PurchaseTimeline  PurchaseTimeline            `gorm:"index" json:"purchase_timeline,omitempty"`
	PriceRange        PriceRange                  `gorm:"index" json:"price_range,omitempty"`
	Represented       bool                        `json:"represented"`
	CobrokerName      string                      `json:"cobroker_name,omitempty"`
	IsLocal           bool                        `json:"is_local"`
	BuyerState        string                      `json:"buyer_state,omitempty"`
	LocationLooking   string                      `json:"location_looking,omitempty"`
	LocationCurrent   string                      `json:"location_current,omitempty"`
	Occupation        string                      `json:"occupation,omitempty"`
	DiscoveryMethod   string                      `json:"discovery_method,omitempty"`
	BuildersRequested datatypes.JSONSlice[string] `json:"builders_requested,omitempty"`

	// Sales progress
	OfferOnTable       bool   `json:"offer_on_table"`
	FinalizedContracts bool   `json:"finalized_contracts"`
	Notes              string `gorm:"type:text" json:"notes,omitempty"`

	// Ownership and audit
	CapturingAgentID uuid.UUID  `gorm:"type:uuid;not null;index" json:"capturing_agent_id"`
	Site             string     `gorm:"not null;index" json:"site"`
	CreatedByUserID  *uuid.UUID `gorm:"type:uuid" json:"created_by_user_id,omitempty"`
	CreatedByName    string     `json:"created_by_name,omitempty"`

	// CRM sync state
	CRMSynced    bool       `gorm:"column:crm_synced;not null;index" json:"crm_synced"`
	CRMSyncedAt  *time.Time `gorm:"column:crm_synced_at" json:"crm_synced_at,omitempty"`
	CRMLeadID    string     `gorm:"column:crm_lead_id" json:"crm_lead_id,omitempty"`
	CRMSyncError string     `gorm:"column:crm_sync_error" json:"crm_sync_error,omitempty"`

	// Relationships
	CapturingAgent *Agent     `gorm:"foreignKey:CapturingAgentID" json:"capturing_agent,omitempty"`
	LeadNotes      []LeadNote `gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Lead) TableName() string {
	return "leads"
}

// LeadNote is an immutable follow-up note. AgentID is never null: it falls
// back to the lead's capturing agent when the author has no agent.
type LeadNote struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	LeadID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"lead_id"`
	AgentID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"agent_id"`
	AuthorUserID *uuid.UUID `gorm:"type:uuid" json:"author_user_id,omitempty"`
	Body         string     `gorm:"type:text;not null" json:"body"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`

	// Relationships
	Agent *Agent `gorm:"foreignKey:AgentID" json:"agent,omitempty"`
}

func (LeadNote) TableName() string {
	return "lead_notes"
}

func (n *LeadNote) BeforeCreate(tx *gorm.DB) error {
	return assignID(&n.ID)
}
