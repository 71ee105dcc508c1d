package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chapterhub/backend/internal/models"
)

func TestDefaultGrants(t *testing.T) {
	assert.Equal(t, []string{PermViewAnnouncements}, DefaultGrants(models.RoleMember))
	assert.Equal(t, []string{PermViewAnnouncements}, DefaultGrants(models.RoleViewer))
	assert.Nil(t, DefaultGrants(models.RoleAdmin))
	assert.Nil(t, DefaultGrants(models.RoleOwner))
}

func TestPlanRoleChange_PromotionWipesGrants(t *testing.T) {
	plan := PlanRoleChange(models.RoleMember, models.RoleAdmin)
	assert.True(t, plan.WipeGrants)
	assert.Empty(t, plan.Grant)
}

func TestPlanRoleChange_DemotionRegrantsDefaultsOnly(t *testing.T) {
	plan := PlanRoleChange(models.RoleAdmin, models.RoleMember)
	assert.False(t, plan.WipeGrants)
	assert.Equal(t, []string{PermViewAnnouncements}, plan.Grant)

	// Legacy owners demote the same way.
	plan = PlanRoleChange(models.RoleOwner, models.RoleViewer)
	assert.Equal(t, []string{PermViewAnnouncements}, plan.Grant)
}

func TestPlanRoleChange_MemberViewerSwapUntouched(t *testing.T) {
	assert.Equal(t, GrantPlan{}, PlanRoleChange(models.RoleMember, models.RoleViewer))
	assert.Equal(t, GrantPlan{}, PlanRoleChange(models.RoleViewer, models.RoleMember))
	assert.Equal(t, GrantPlan{}, PlanRoleChange(models.RoleAdmin, models.RoleOwner))
}
