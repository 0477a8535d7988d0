// Package accounts manages agents, their site assignments and user accounts.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/tlogandesigns/site-visitor-dash/internal/access"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrAgentNotFound  = errors.New("agent not found")
	ErrAgentExists    = errors.New("agent already exists")
	ErrUserNotFound   = errors.New("user not found")
	ErrUserExists     = errors.New("username already taken")
	ErrAgentRequired  = errors.New("user-role accounts must be linked to an agent")
	ErrSelfDeactivate = errors.New("you cannot deactivate your own account")
	ErrForbidden      = fmt.Errorf("account change denied: %w", access.ErrForbidden)
)

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// ListAgents returns agents with their sites, by name. A non-empty site
// limits the result to agents assigned there.
func (s *Service) ListAgents(ctx context.Context, site string) ([]models.Agent, error) {
	agents := []models.Agent{}
	q := s.db.WithContext(ctx).Preload("Sites", func(db *gorm.DB) *gorm.DB {
		return db.Order("site")
	})
	if site = strings.TrimSpace(site); site != "" {
		q = q.Where("id IN (?)", s.db.Model(&models.AgentSite{}).Select("agent_id").Where("site = ?", site))
	}
	if err := q.Order("name").Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	return agents, nil
}

type CreateAgentInput struct {
	Name  string
	CRMID string
	Email string
	Phone string
	Sites []string
}

func (s *Service) CreateAgent(ctx context.Context, in CreateAgentInput) (*models.Agent, error) {
	name := strings.TrimSpace(in.Name)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Agent{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("checking agent name: %w", err)
	}
	if count > 0 {
		return nil, ErrAgentExists
	}

	agent := &models.Agent{
		Name:     name,
		CRMID:    strings.TrimSpace(in.CRMID),
		Email:    strings.TrimSpace(in.Email),
		Phone:    strings.TrimSpace(in.Phone),
		IsActive: true,
	}
	for _, site := range normalizeSites(in.Sites) {
		agent.Sites = append(agent.Sites, models.AgentSite{Site: site})
	}

	if err := s.db.WithContext(ctx).Create(agent).Error; err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}

	s.logger.Info("agent created", "agent_id", agent.ID, "name", agent.Name, "sites", len(agent.Sites))
	return agent, nil
}

// SetAgentSites replaces every assignment of the agent with sites.
func (s *Service) SetAgentSites(ctx context.Context, agentID uuid.UUID, sites []string) (*models.Agent, error) {
	sites = normalizeSites(sites)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findAgent(tx, agentID); err != nil {
			return err
		}
		if err := tx.Where("agent_id = ?", agentID).Delete(&models.AgentSite{}).Error; err != nil {
			return fmt.Errorf("clearing sites: %w", err)
		}
		for _, site := range sites {
			if err := tx.Create(&models.AgentSite{AgentID: agentID, Site: site}).Error; err != nil {
				return fmt.Errorf("assigning site %q: %w", site, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("agent sites replaced", "agent_id", agentID, "sites", sites)
	return s.GetAgent(ctx, agentID)
}

// AssignSite adds one site to the agent. Assigning an existing site is a
// no-op.
func (s *Service) AssignSite(ctx context.Context, agentID uuid.UUID, site string) error {
	site = strings.TrimSpace(site)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findAgent(tx, agentID); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.AgentSite{}).
			Where("agent_id = ? AND site = ?", agentID, site).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		return tx.Create(&models.AgentSite{AgentID: agentID, Site: site}).Error
	})
}

// UnassignSite removes one site; it reports whether anything was removed.
func (s *Service) UnassignSite(ctx context.Context, agentID uuid.UUID, site string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("agent_id = ? AND site = ?", agentID, strings.TrimSpace(site)).
		Delete(&models.AgentSite{})
	if res.Error != nil {
		return false, fmt.Errorf("unassigning site: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) GetAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	if err := s.db.WithContext(ctx).
		Preload("Sites", func(db *gorm.DB) *gorm.DB { return db.Order("site") }).
		First(&agent, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}
	return &agent, nil
}

// FindAgentByName is used by the CLI, where agents are named rather than
// referenced by id.
func (s *Service) FindAgentByName(ctx context.Context, name string) (*models.Agent, error) {
	var agent models.Agent
	if err := s.db.WithContext(ctx).First(&agent, "name = ?", strings.TrimSpace(name)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}
	return &agent, nil
}

func findAgent(tx *gorm.DB, id uuid.UUID) error {
	var count int64
	if err := tx.Model(&models.Agent{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrAgentNotFound
	}
	return nil
}

func normalizeSites(sites []string) []string {
	seen := make(map[string]bool, len(sites))
	out := make([]string, 0, len(sites))
	for _, site := range sites {
		site = strings.TrimSpace(site)
		if site == "" || seen[site] {
			continue
		}
		seen[site] = true
		out = append(out, site)
	}
	sort.Strings(out)
	return out
}
