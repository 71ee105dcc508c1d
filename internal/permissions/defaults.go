package permissions

import "github.com/chapterhub/backend/internal/models"

// DefaultGrants returns the explicit grants created for a freshly added
// member with the given role. Admins get none: they bypass the grant table.
func DefaultGrants(role string) []string {
	switch role {
	case models.RoleMember, models.RoleViewer:
		return []string{PermViewAnnouncements}
	default:
		return nil
	}
}

// GrantPlan describes the grant-table adjustment for a role change.
type GrantPlan struct {
	// WipeGrants deletes every explicit grant for the user in the org.
	WipeGrants bool
	// Grant lists defaults to (re)grant after any wipe.
	Grant []string
}

// PlanRoleChange computes the grant adjustment for a role change.
// Promotion to admin wipes all grants (stale rows would be misleading next
// to the admin bypass). Demotion from admin regrants the new role's
// defaults only; pre-promotion grants are gone for good. Member and viewer
// swaps leave existing grants untouched.
func PlanRoleChange(oldRole, newRole string) GrantPlan {
	wasAdmin := models.IsAdminRole(oldRole)
	isAdmin := models.IsAdminRole(newRole)
	switch {
	case !wasAdmin && isAdmin:
		return GrantPlan{WipeGrants: true}
	case wasAdmin && !isAdmin:
		return GrantPlan{Grant: DefaultGrants(newRole)}
	default:
		return GrantPlan{}
	}
}
