package organizations

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chapterhub/backend/internal/domain"
	"github.com/chapterhub/backend/internal/models"
)

func TestLastAdminGuard(t *testing.T) {
	assert.True(t, lastAdminLeft(models.RoleAdmin, 1), "sole admin cannot be demoted or removed")
	assert.True(t, lastAdminLeft("owner", 1), "legacy owner counts as admin")
	assert.False(t, lastAdminLeft(models.RoleAdmin, 2))
	assert.False(t, lastAdminLeft(models.RoleMember, 1))
}

func TestLastAdminConflict(t *testing.T) {
	assert.ErrorIs(t, errLastAdmin, domain.ErrConflict)
}
