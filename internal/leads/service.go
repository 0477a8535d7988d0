// Package leads is the lead read and write path. Every operation resolves
// the actor's access scope once: reads apply it as a query predicate and
// writes check it as a precondition before touching the store.
package leads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tlogandesigns/site-visitor-dash/internal/access"
	"github.com/tlogandesigns/site-visitor-dash/internal/crmsync"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Syncer mirrors committed writes into the CRM. It never fails the caller.
type Syncer interface {
	LockLead(id uuid.UUID) (unlock func())
	SyncLeadCreated(ctx context.Context, lead *models.Lead) crmsync.Outcome
	SyncNoteAdded(ctx context.Context, lead *models.Lead, note *models.LeadNote) crmsync.Outcome
}

var _ Syncer = (*crmsync.Pipeline)(nil)

type Service struct {
	db   *gorm.DB
	sync Syncer
	log  *slog.Logger
}

func NewService(db *gorm.DB, sync Syncer, log *slog.Logger) *Service {
	return &Service{db: db, sync: sync, log: log}
}

func (s *Service) scope(ctx context.Context, actor access.Actor) (access.Scope, error) {
	scope, err := access.Resolve(ctx, s.db, actor)
	if err != nil {
		return access.Scope{}, fmt.Errorf("resolving access scope: %w", err)
	}
	return scope, nil
}

// List returns one page of leads visible to actor.
func (s *Service) List(ctx context.Context, actor access.Actor, p ListParams) (*Page, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}

	query := s.filtered(ctx, scope, p.Filter)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting leads: %w", err)
	}

	desc := p.SortOrder == SortDesc
	items := []models.Lead{}
	if err := query.
		Preload("CapturingAgent").
		Order(clause.OrderByColumn{Column: clause.Column{Name: sortColumns[p.SortBy]}, Desc: desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: desc}).
		Offset(p.Offset()).
		Limit(p.PageSize).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("listing leads: %w", err)
	}

	return &Page{
		Items:      items,
		Total:      total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: totalPages(total, p.PageSize),
	}, nil
}

// filtered is the scope predicate followed by the AND of every filter set.
func (s *Service) filtered(ctx context.Context, scope access.Scope, f Filter) *gorm.DB {
	q := scope.Apply(s.db.WithContext(ctx).Model(&models.Lead{}), "site")

	if f.Site != "" {
		q = q.Where("site = ?", f.Site)
	}
	if f.Search != "" {
		like := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		q = q.Where(
			`(LOWER(buyer_name) LIKE ? ESCAPE '\' OR LOWER(buyer_phone) LIKE ? ESCAPE '\' OR LOWER(buyer_email) LIKE ? ESCAPE '\')`,
			like, like, like,
		)
	}
	if f.DateFrom != nil {
		q = q.Where("created_at >= ?", f.DateFrom.UTC())
	}
	if f.DateTo != nil {
		q = q.Where("created_at < ?", f.DateTo.UTC().AddDate(0, 0, 1))
	}
	if f.PurchaseTimeline != "" {
		q = q.Where("purchase_timeline = ?", f.PurchaseTimeline)
	}
	if f.PriceRange != "" {
		q = q.Where("price_range = ?", f.PriceRange)
	}
	if f.Synced != nil {
		q = q.Where("crm_synced = ?", *f.Synced)
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Get returns a single lead. A lead outside the scope is ErrForbidden, a
// missing one ErrNotFound.
func (s *Service) Get(ctx context.Context, actor access.Actor, id uuid.UUID) (*models.Lead, error) {
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, scope, id, true)
}

func (s *Service) load(ctx context.Context, scope access.Scope, id uuid.UUID, withAgent bool) (*models.Lead, error) {
	q := s.db.WithContext(ctx)
	if withAgent {
		q = q.Preload("CapturingAgent")
	}

	var lead models.Lead
	if err := q.First(&lead, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading lead: %w", err)
	}

	if !scope.Allows(lead.Site) {
		return nil, forbidden("lead %s is at site %q", id, lead.Site)
	}
	return &lead, nil
}

// Notes returns a lead's notes newest first.
func (s *Service) Notes(ctx context.Context, actor access.Actor, leadID uuid.UUID) ([]models.LeadNote, error) {
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, scope, leadID, false); err != nil {
		return nil, err
	}

	notes := []models.LeadNote{}
	if err := s.db.WithContext(ctx).
		Preload("Agent").
		Where("lead_id = ?", leadID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	return notes, nil
}

// Sites lists the sites actor may work with: the scope for users, every
// assigned site for admins.
func (s *Service) Sites(ctx context.Context, actor access.Actor) ([]string, error) {
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !scope.Unrestricted() {
		return scope.Sites(), nil
	}

	sites := []string{}
	if err := s.db.WithContext(ctx).
		Model(&models.AgentSite{}).
		Distinct().
		Order("site").
		Pluck("site", &sites).Error; err != nil {
		return nil, fmt.Errorf("listing sites: %w", err)
	}
	return sites, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
