package leads

import (
	"context"
	"fmt"
	"time"

	"github.com/tlogandesigns/site-visitor-dash/internal/access"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
	"gorm.io/gorm"
)

type GroupCount struct {
	Value string `json:"value"`
	Count int64  `json:"count" gorm:"column:total"`
}

// Stats are dashboard aggregates over the same predicate as List.
type Stats struct {
	Total              int64        `json:"total"`
	Today              int64        `json:"today"`
	Synced             int64        `json:"synced"`
	Unsynced           int64        `json:"unsynced"`
	BySite             []GroupCount `json:"by_site"`
	ByPurchaseTimeline []GroupCount `json:"by_purchase_timeline"`
	ByPriceRange       []GroupCount `json:"by_price_range"`
}

func (s *Service) Stats(ctx context.Context, actor access.Actor, f Filter) (*Stats, error) {
	verr := &ValidationError{}
	f.validate(verr)
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}

	base := func() *gorm.DB { return s.filtered(ctx, scope, f) }
	out := &Stats{}

	if err := base().Count(&out.Total).Error; err != nil {
		return nil, fmt.Errorf("counting leads: %w", err)
	}
	if err := base().Where("created_at >= ?", startOfDay(time.Now())).Count(&out.Today).Error; err != nil {
		return nil, fmt.Errorf("counting today's leads: %w", err)
	}
	if err := base().Where("crm_synced = ?", true).Count(&out.Synced).Error; err != nil {
		return nil, fmt.Errorf("counting synced leads: %w", err)
	}
	out.Unsynced = out.Total - out.Synced

	groups := []struct {
		column string
		dest   *[]GroupCount
	}{
		{"site", &out.BySite},
		{"purchase_timeline", &out.ByPurchaseTimeline},
		{"price_range", &out.ByPriceRange},
	}
	for _, g := range groups {
		rows, err := groupCounts(base(), g.column)
		if err != nil {
			return nil, err
		}
		*g.dest = rows
	}

	return out, nil
}

func groupCounts(q *gorm.DB, column string) ([]GroupCount, error) {
	rows := []GroupCount{}
	if err := q.
		Select(column + " AS value, COUNT(*) AS total").
		Where(column + " <> ''").
		Group(column).
		Order("total DESC").
		Order(column).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("grouping leads by %s: %w", column, err)
	}
	return rows, nil
}

// UnsyncedBySite counts leads never delivered to the CRM, per site. It is a
// system report and applies no actor scope.
func UnsyncedBySite(ctx context.Context, db *gorm.DB) ([]GroupCount, error) {
	return groupCounts(db.WithContext(ctx).Model(&models.Lead{}).Where("crm_synced = ?", false), "site")
}

// ListUnsynced returns up to limit undelivered leads, oldest first.
func ListUnsynced(ctx context.Context, db *gorm.DB, limit int) ([]models.Lead, error) {
	leads := []models.Lead{}
	if err := db.WithContext(ctx).
		Preload("CapturingAgent").
		Where("crm_synced = ?", false).
		Order("created_at ASC").
		Limit(limit).
		Find(&leads).Error; err != nil {
		return nil, fmt.Errorf("listing unsynced leads: %w", err)
	}
	return leads, nil
}
