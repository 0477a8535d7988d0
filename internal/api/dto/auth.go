package dto

import (
	"strings"
	"time"

	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Username) == "" {
		errors["username"] = "Username is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserDTO   `json:"user"`
}

type UserDTO struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email,omitempty"`
	Role        models.Role `json:"role"`
	IsActive    bool        `json:"is_active"`
	AgentID     string      `json:"agent_id,omitempty"`
	AgentName   string      `json:"agent_name,omitempty"`
	Sites       []string    `json:"sites,omitempty"`
	LastLoginAt *time.Time  `json:"last_login_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewUserDTO flattens a user; the agent relation is optional.
func NewUserDTO(u *models.User) UserDTO {
	out := UserDTO{
		ID:          u.ID.String(),
		Username:    u.Username,
		Email:       u.Email,
		Role:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
	if u.AgentID != nil {
		out.AgentID = u.AgentID.String()
	}
	if u.Agent != nil {
		out.AgentName = u.Agent.Name
		if len(u.Agent.Sites) > 0 {
			out.Sites = u.Agent.SiteNames()
		}
	}
	return out
}
