package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tlogandesigns/site-visitor-dash/internal/access"
	"github.com/tlogandesigns/site-visitor-dash/internal/auth"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
	"gorm.io/gorm"
)

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := s.db.WithContext(ctx).
		Preload("Agent").
		Order("username").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

type CreateUserInput struct {
	Username string
	Password string
	Email    string
	Role     models.Role
	AgentID  *uuid.UUID
}

// CreateUser adds an active account. Only a super admin may create another
// super admin.
func (s *Service) CreateUser(ctx context.Context, actor access.Actor, in CreateUserInput) (*models.User, error) {
	if in.Role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
		return nil, fmt.Errorf("%w: only a super admin can create super admins", ErrForbidden)
	}
	if in.Role == models.RoleUser && in.AgentID == nil {
		return nil, ErrAgentRequired
	}

	username := strings.TrimSpace(in.Username)
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("checking username: %w", err)
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	if in.AgentID != nil {
		if err := findAgent(s.db.WithContext(ctx), *in.AgentID); err != nil {
			return nil, err
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		Role:         in.Role,
		AgentID:      in.AgentID,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user created", "user_id", user.ID, "username", user.Username, "role", user.Role, "by", actor.Username)
	return s.getUser(ctx, user.ID)
}

// UpdateUserInput is partial; nil fields are left alone. A non-nil AgentID
// pointing at uuid.Nil unlinks the agent.
type UpdateUserInput struct {
	Email    *string
	Password *string
	Role     *models.Role
	AgentID  *uuid.UUID
	IsActive *bool
}

// UpdateUser applies the super admin rules: only a super admin may modify a
// super admin or grant the role, and nobody may deactivate themselves.
func (s *Service) UpdateUser(ctx context.Context, actor access.Actor, id uuid.UUID, in UpdateUserInput) (*models.User, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := checkSuperAdminRules(actor, user, in.Role); err != nil {
		return nil, err
	}
	if in.IsActive != nil && !*in.IsActive && user.ID == actor.ID {
		return nil, ErrSelfDeactivate
	}

	changes := map[string]interface{}{}
	role := user.Role
	agentID := user.AgentID

	if in.Email != nil {
		changes["email"] = strings.TrimSpace(*in.Email)
	}
	if in.Password != nil {
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		changes["password_hash"] = hash
	}
	if in.Role != nil {
		role = *in.Role
		changes["role"] = role
	}
	if in.AgentID != nil {
		if *in.AgentID == uuid.Nil {
			agentID = nil
		} else {
			if err := findAgent(s.db.WithContext(ctx), *in.AgentID); err != nil {
				return nil, err
			}
			agentID = in.AgentID
		}
		changes["agent_id"] = agentID
	}
	if in.IsActive != nil {
		changes["is_active"] = *in.IsActive
	}

	if role == models.RoleUser && agentID == nil {
		return nil, ErrAgentRequired
	}
	if len(changes) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}

	s.logger.Info("user updated", "user_id", user.ID, "by", actor.Username)
	return s.getUser(ctx, id)
}

// DeactivateUser is the delete operation: accounts are never removed so
// leads keep their creator.
func (s *Service) DeactivateUser(ctx context.Context, actor access.Actor, id uuid.UUID) error {
	if id == actor.ID {
		return ErrSelfDeactivate
	}

	user, err := s.getUser(ctx, id)
	if err != nil {
		return err
	}
	if err := checkSuperAdminRules(actor, user, nil); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(user).Update("is_active", false).Error; err != nil {
		return fmt.Errorf("deactivating user: %w", err)
	}

	s.logger.Info("user deactivated", "user_id", user.ID, "by", actor.Username)
	return nil
}

func checkSuperAdminRules(actor access.Actor, target *models.User, newRole *models.Role) error {
	if actor.Role == models.RoleSuperAdmin {
		return nil
	}
	if target.Role == models.RoleSuperAdmin {
		return fmt.Errorf("%w: only a super admin can modify a super admin", ErrForbidden)
	}
	if newRole != nil && *newRole == models.RoleSuperAdmin {
		return fmt.Errorf("%w: only a super admin can grant the super admin role", ErrForbidden)
	}
	return nil
}

func (s *Service) getUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Agent").First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpsertAdmin creates or resets an admin account by username. It backs the
// CLI's create-admin command, which runs without an actor.
func (s *Service) UpsertAdmin(ctx context.Context, username, password, email string, role models.Role) (*models.User, bool, error) {
	if !role.IsAdmin() {
		return nil, false, fmt.Errorf("role %q is not an admin role", role)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, false, err
	}

	username = strings.TrimSpace(username)
	var user models.User
	err = s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	switch {
	case err == nil:
		if err := s.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
			"password_hash": hash,
			"email":         strings.TrimSpace(email),
			"role":          role,
			"is_active":     true,
		}).Error; err != nil {
			return nil, false, fmt.Errorf("updating admin: %w", err)
		}
		return &user, false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, fmt.Errorf("looking up admin: %w", err)
	}

	user = models.User{
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, false, fmt.Errorf("creating admin: %w", err)
	}
	return &user, true, nil
}
