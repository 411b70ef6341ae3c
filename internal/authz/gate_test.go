package authz_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/hydit/hydit-backend/internal/authz"
	"github.com/hydit/hydit-backend/internal/models"
)

func user(role models.Role) *models.User {
	return &models.User{ID: uuid.New(), Username: string(role), Role: role}
}

func TestBootstrapAdmin(t *testing.T) {
	g := authz.NewGate("subj-admin")
	assert.True(t, g.IsBootstrapAdmin("subj-admin"))
	assert.False(t, g.IsBootstrapAdmin("subj-other"))

	// No configured subject means nobody bootstraps.
	empty := authz.NewGate("")
	assert.False(t, empty.IsBootstrapAdmin(""))
}

func TestRequireSelf(t *testing.T) {
	g := authz.NewGate("")
	u := user(models.RoleBuyer)
	admin := user(models.RoleAdmin)

	assert.NoError(t, g.RequireSelf(u, u.ID))
	assert.ErrorIs(t, g.RequireSelf(u, uuid.New()), authz.ErrNotAuthorized)
	assert.ErrorIs(t, g.RequireSelf(nil, u.ID), authz.ErrNotAuthenticated)

	// Admins are not exempt from owner-only checks.
	assert.ErrorIs(t, g.RequireSelf(admin, u.ID), authz.ErrNotAuthorized)
}

func TestRequireRole(t *testing.T) {
	g := authz.NewGate("")

	assert.NoError(t, g.RequireRole(user(models.RoleProducer), models.RoleProducer))
	assert.NoError(t, g.RequireRole(user(models.RoleAdmin), models.RoleProducer))
	assert.ErrorIs(t, g.RequireRole(user(models.RoleBuyer), models.RoleProducer), authz.ErrNotAuthorized)
	assert.ErrorIs(t, g.RequireRole(nil, models.RoleProducer), authz.ErrNotAuthenticated)
}

func TestRequireAdminAndCertifier(t *testing.T) {
	g := authz.NewGate("")

	assert.NoError(t, g.RequireAdmin(user(models.RoleAdmin)))
	assert.ErrorIs(t, g.RequireAdmin(user(models.RoleCertifier)), authz.ErrNotAuthorized)

	assert.NoError(t, g.RequireCertifier(user(models.RoleCertifier)))
	assert.NoError(t, g.RequireCertifier(user(models.RoleAdmin)))
	assert.ErrorIs(t, g.RequireCertifier(user(models.RoleBuyer)), authz.ErrNotAuthorized)
}
