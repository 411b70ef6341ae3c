// Package authz decides who may perform which ledger operation. Checks take
// the already-loaded caller, never the request, so they compose inside
// transactions.
package authz

import (
	"errors"

	"github.com/google/uuid"

	"github.com/hydit/hydit-backend/internal/models"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotAuthorized is deliberately generic: authorization failures must
	// not reveal whether the target resource exists.
	ErrNotAuthorized = errors.New("unauthorized")
)

// Gate evaluates authorization rules. The bootstrap admin subject comes from
// configuration so a fresh deployment has exactly one way to mint its first
// admin.
type Gate struct {
	adminSubject string
}

func NewGate(adminSubject string) *Gate {
	return &Gate{adminSubject: adminSubject}
}

// IsBootstrapAdmin reports whether the identity subject is the configured
// bootstrap admin. Used once, at user sync, to assign the admin role.
func (g *Gate) IsBootstrapAdmin(subjectID string) bool {
	return g.adminSubject != "" && subjectID == g.adminSubject
}

// RequireAuthenticated rejects calls with no resolved caller.
func (g *Gate) RequireAuthenticated(actor *models.User) error {
	if actor == nil {
		return ErrNotAuthenticated
	}
	return nil
}

// RequireSelf allows only the resource owner. Admins are not exempt: spending
// operations always act on the caller's own credits.
func (g *Gate) RequireSelf(actor *models.User, ownerID uuid.UUID) error {
	if actor == nil {
		return ErrNotAuthenticated
	}
	if actor.ID != ownerID {
		return ErrNotAuthorized
	}
	return nil
}

// RequireRole allows callers holding any of the given roles. Admin always
// passes.
func (g *Gate) RequireRole(actor *models.User, roles ...models.Role) error {
	if actor == nil {
		return ErrNotAuthenticated
	}
	if actor.Role == models.RoleAdmin {
		return nil
	}
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return ErrNotAuthorized
}

// RequireAdmin allows only admins.
func (g *Gate) RequireAdmin(actor *models.User) error {
	if actor == nil {
		return ErrNotAuthenticated
	}
	if actor.Role != models.RoleAdmin {
		return ErrNotAuthorized
	}
	return nil
}

// RequireCertifier allows certifiers and admins.
func (g *Gate) RequireCertifier(actor *models.User) error {
	return g.RequireRole(actor, models.RoleCertifier)
}
