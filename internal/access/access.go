// Package access decides which leads an actor may see or change. All site
// visibility rules live here; callers apply the returned Scope to reads and
// check it before writes.
package access

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
	"gorm.io/gorm"
)

var ErrForbidden = errors.New("site is outside the actor's access scope")

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID       uuid.UUID
	Username string
	Role     models.Role
	AgentID  *uuid.UUID
}

// HasAgent reports whether the actor is linked to an agent.
func (a Actor) HasAgent() bool {
	return a.AgentID != nil && *a.AgentID != uuid.Nil
}

// Scope is either unrestricted or a finite set of sites. The zero value is
// an empty set and allows nothing.
type Scope struct {
	unrestricted bool
	sites        map[string]struct{}
}

func Unrestricted() Scope {
	return Scope{unrestricted: true}
}

func SiteSet(sites ...string) Scope {
	set := make(map[string]struct{}, len(sites))
	for _, s := range sites {
		set[s] = struct{}{}
	}
	return Scope{sites: set}
}

func (s Scope) Unrestricted() bool {
	return s.unrestricted
}

// Sites returns the sorted site set. It is nil for an unrestricted scope.
func (s Scope) Sites() []string {
	if s.unrestricted {
		return nil
	}
	out := make([]string, 0, len(s.sites))
	for site := range s.sites {
		out = append(out, site)
	}
	sort.Strings(out)
	return out
}

func (s Scope) Empty() bool {
	return !s.unrestricted && len(s.sites) == 0
}

func (s Scope) Allows(site string) bool {
	if s.unrestricted {
		return true
	}
	_, ok := s.sites[site]
	return ok
}

// Authorize is the write-side precondition.
func (s Scope) Authorize(site string) error {
	if !s.Allows(site) {
		return fmt.Errorf("%w: %q", ErrForbidden, site)
	}
	return nil
}

// Apply restricts q to rows whose column is inside the scope.
func (s Scope) Apply(q *gorm.DB, column string) *gorm.DB {
	switch {
	case s.unrestricted:
		return q
	case len(s.sites) == 0:
		return q.Where("1 = 0")
	default:
		return q.Where(column+" IN ?", s.Sites())
	}
}

// Resolve computes the actor's scope from the current agent-site mapping.
// It always reads the store so assignment changes apply to the next request.
func Resolve(ctx context.Context, db *gorm.DB, actor Actor) (Scope, error) {
	if actor.Role.IsAdmin() {
		return Unrestricted(), nil
	}
	if actor.Role != models.RoleUser || !actor.HasAgent() {
		return SiteSet(), nil
	}

	var sites []string
	if err := db.WithContext(ctx).
		Model(&models.AgentSite{}).
		Where("agent_id = ?", *actor.AgentID).
		Distinct().
		Pluck("site", &sites).Error; err != nil {
		return Scope{}, fmt.Errorf("resolving sites for agent %s: %w", actor.AgentID, err)
	}

	return SiteSet(sites...), nil
}

type contextKey struct{}

// WithActor stores the actor on ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

func FromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(contextKey{}).(Actor)
	return actor, ok
}
