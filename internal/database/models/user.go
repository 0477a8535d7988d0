package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
)

// ParseRole accepts only the three known roles.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return r, true
	}
	return "", false
}

// IsAdmin reports whether the role sees every site.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User is an authenticated account (the "actor"). A user-role account is
// linked to exactly one Agent; admin accounts may have none.
type User struct {
	Base
	Username     string     `gorm:"uniqueIndex;not null" json:"username"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Role         Role       `gorm:"not null;default:'user'" json:"role"`
	AgentID      *uuid.UUID `gorm:"type:uuid;index" json:"agent_id,omitempty"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`

	// Relationships
	Agent *Agent `gorm:"foreignKey:AgentID" json:"agent,omitempty"`
}

func (User) TableName() string {
	return "users"
}
