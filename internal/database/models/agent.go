package models

import "github.com/google/uuid"

// Agent is a sales representative. CRMID is the agent's identifier in the
// external CRM and is required for lead delivery.
type Agent struct {
	Base
	Name     string `gorm:"uniqueIndex;not null" json:"name"`
	CRMID    string `gorm:"column:crm_id;index" json:"crm_id"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	IsActive bool   `gorm:"not null" json:"is_active"`

	// Relationships
	Sites []AgentSite `gorm:"foreignKey:AgentID;constraint:OnDelete:CASCADE" json:"sites,omitempty"`
}

func (Agent) TableName() string {
	return "agents"
}

// SiteNames flattens the loaded assignments.
func (a *Agent) SiteNames() []string {
	names := make([]string, 0, len(a.Sites))
	for _, s := range a.Sites {
		names = append(names, s.Site)
	}
	return names
}

// AgentSite assigns an agent to a site. An (agent, site) pair appears once.
type AgentSite struct {
	Base
	AgentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_agent_site" json:"agent_id"`
	Site    string    `gorm:"not null;uniqueIndex:idx_agent_site;index:idx_agent_sites_site" json:"site"`
}

func (AgentSite) TableName() string {
	return "agent_sites"
}
