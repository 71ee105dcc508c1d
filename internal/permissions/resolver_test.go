package permissions

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/chapterhub/backend/internal/models"
)

func snapshot(role string, grants ...string) MemberContext {
	mc := MemberContext{
		OrganizationID: uuid.New(),
		UserID:         uuid.New(),
		Role:           role,
		Grants:         map[string]struct{}{},
	}
	for _, g := range grants {
		mc.Grants[g] = struct{}{}
	}
	return mc
}

func TestAuthorize_NonMemberDenied(t *testing.T) {
	mc := snapshot("")
	assert.False(t, Authorize(mc, PermViewAnnouncements))
	assert.False(t, Authorize(mc, ImplicitRequestDutySwap))
}

func TestAuthorize_AdminBypassesEverything(t *testing.T) {
	for _, role := range []string{models.RoleAdmin, models.RoleOwner} {
		mc := snapshot(role)
		for _, p := range Catalog {
			assert.True(t, Authorize(mc, p.Key), "admin should hold %s", p.Key)
		}
	}
}

func TestAuthorize_ImplicitMemberSet(t *testing.T) {
	mc := snapshot(models.RoleMember)
	assert.True(t, Authorize(mc, ImplicitRequestDutySwap))
	assert.True(t, Authorize(mc, ImplicitDutyCheckInOut))
	assert.True(t, Authorize(mc, ImplicitLeaveOrganization))
	assert.True(t, Authorize(mc, ImplicitViewOwnStatistics))
}

func TestAuthorize_ExplicitGrantRequired(t *testing.T) {
	mc := snapshot(models.RoleMember, PermViewAnnouncements)
	assert.True(t, Authorize(mc, PermViewAnnouncements))
	assert.False(t, Authorize(mc, PermManageDutySchedules))

	mc.Grants[PermManageDutySchedules] = struct{}{}
	assert.True(t, Authorize(mc, PermManageDutySchedules))
}

func TestAuthorize_UnknownPermissionDenied(t *testing.T) {
	mc := snapshot(models.RoleMember, "launch_missiles")
	assert.False(t, Authorize(mc, "launch_missiles"))
}

func TestHasAnyHasAll(t *testing.T) {
	mc := snapshot(models.RoleViewer, PermViewAnnouncements, PermViewDocuments)

	assert.True(t, HasAny(mc, PermManageRoles, PermViewDocuments))
	assert.False(t, HasAny(mc, PermManageRoles, PermManageSettings))

	assert.True(t, HasAll(mc, PermViewAnnouncements, PermViewDocuments))
	assert.False(t, HasAll(mc, PermViewAnnouncements, PermManageRoles))

	// Admin short-circuits both bulk variants.
	admin := snapshot(models.RoleAdmin)
	assert.True(t, HasAny(admin, PermManageRoles))
	assert.True(t, HasAll(admin, PermManageRoles, PermManageSettings, PermExportData))
}

func TestCatalogKeysAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range Catalog {
		assert.False(t, seen[p.Key], "duplicate catalog key %s", p.Key)
		seen[p.Key] = true
		assert.NotEmpty(t, p.Category)
	}
}
