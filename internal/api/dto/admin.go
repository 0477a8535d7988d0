package dto

import (
	"strings"
	"time"

	"github.com/tlogandesigns/site-visitor-dash/internal/api/validation"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
)

type CreateAgentRequest struct {
	Name  string   `json:"name"`
	CRMID string   `json:"crm_id"`
	Email string   `json:"email,omitempty"`
	Phone string   `json:"phone,omitempty"`
	Sites []string `json:"sites,omitempty"`
}

func (r CreateAgentRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	} else if len(r.Name) > validation.MaxNameLength {
		errors["name"] = "Name is too long"
	}
	if r.Email != "" && !validation.IsValidEmail(r.Email) {
		errors["email"] = "Invalid email format"
	}
	if r.Phone != "" && !validation.IsValidPhone(r.Phone) {
		errors["phone"] = "Invalid phone number"
	}
	validateSites(r.Sites, errors)

	return errors
}

type SetAgentSitesRequest struct {
	Sites []string `json:"sites"`
}

func (r SetAgentSitesRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Sites == nil {
		errors["sites"] = "Sites are required (use [] to clear)"
	}
	validateSites(r.Sites, errors)
	return errors
}

func validateSites(sites []string, errors map[string]string) {
	for _, s := range sites {
		if !validation.IsValidSite(s) {
			errors["sites"] = "Invalid site name"
			return
		}
	}
}

type AgentDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CRMID     string    `json:"crm_id"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	IsActive  bool      `json:"is_active"`
	Sites     []string  `json:"sites"`
	CreatedAt time.Time `json:"created_at"`
}

func NewAgentDTO(a *models.Agent) AgentDTO {
	return AgentDTO{
		ID:        a.ID.String(),
		Name:      a.Name,
		CRMID:     a.CRMID,
		Email:     a.Email,
		Phone:     a.Phone,
		IsActive:  a.IsActive,
		Sites:     a.SiteNames(),
		CreatedAt: a.CreatedAt,
	}
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
	AgentID  string `json:"agent_id,omitempty"`
}

func (r CreateUserRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if !validation.IsValidUsername(r.Username) {
		errors["username"] = "Username must be 3-64 letters, digits, '.', '-' or '_'"
	}
	if ok, msg := validation.IsValidPassword(r.Password); !ok {
		errors["password"] = msg
	}
	if r.Email != "" && !validation.IsValidEmail(r.Email) {
		errors["email"] = "Invalid email format"
	}
	role, ok := models.ParseRole(r.Role)
	if !ok {
		errors["role"] = "Role must be super_admin, admin or user"
	}
	if r.AgentID != "" && !validation.IsValidUUID(r.AgentID) {
		errors["agent_id"] = "Invalid agent ID"
	} else if ok && role == models.RoleUser && r.AgentID == "" {
		errors["agent_id"] = "Users with the user role must be linked to an agent"
	}

	return errors
}

// UpdateUserRequest is partial. An empty agent_id unlinks the agent.
type UpdateUserRequest struct {
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Role     *string `json:"role,omitempty"`
	AgentID  *string `json:"agent_id,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

func (r UpdateUserRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email != nil && *r.Email != "" && !validation.IsValidEmail(*r.Email) {
		errors["email"] = "Invalid email format"
	}
	if r.Password != nil {
		if ok, msg := validation.IsValidPassword(*r.Password); !ok {
			errors["password"] = msg
		}
	}
	if r.Role != nil {
		if _, ok := models.ParseRole(*r.Role); !ok {
			errors["role"] = "Role must be super_admin, admin or user"
		}
	}
	if r.AgentID != nil && *r.AgentID != "" && !validation.IsValidUUID(*r.AgentID) {
		errors["agent_id"] = "Invalid agent ID"
	}
	if r.Email == nil && r.Password == nil && r.Role == nil && r.AgentID == nil && r.IsActive == nil {
		errors["body"] = "No updates provided"
	}

	return errors
}
