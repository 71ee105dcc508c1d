package permissions

import (
	"context"

	"github.com/google/uuid"

	"github.com/chapterhub/backend/internal/models"
)

// Implicit member permissions: self-service actions every member and viewer
// may perform without an explicit grant.
const (
	ImplicitViewOwnAssignments    = "view_own_assignments"
	ImplicitManageOwnAvailability = "manage_own_availability"
	ImplicitRequestDutySwap       = "request_duty_swap"
	ImplicitDutyCheckInOut        = "duty_check_in_out"
	ImplicitRespondToAssignment   = "respond_to_assignment"
	ImplicitLeaveOrganization     = "leave_organization"
	ImplicitViewOwnStatistics     = "view_own_statistics"
)

var implicitSet = map[string]struct{}{
	ImplicitViewOwnAssignments:    {},
	ImplicitManageOwnAvailability: {},
	ImplicitRequestDutySwap:       {},
	ImplicitDutyCheckInOut:        {},
	ImplicitRespondToAssignment:   {},
	ImplicitLeaveOrganization:     {},
	ImplicitViewOwnStatistics:     {},
}

// Implicit reports whether key belongs to the implicit member set.
func Implicit(key string) bool {
	_, ok := implicitSet[key]
	return ok
}

// MemberContext is the loaded authorization snapshot for one (org, user)
// pair. Role is empty when the user is not a member. Resolution is pure:
// no queries, no side effects, no panics.
type MemberContext struct {
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	Role           string
	Grants         map[string]struct{}
}

// Member reports whether the snapshot belongs to an org member.
func (mc MemberContext) Member() bool { return mc.Role != "" }

// Admin reports whether the member bypasses all permission checks.
func (mc MemberContext) Admin() bool { return models.IsAdminRole(mc.Role) }

// Authorize resolves whether the member may perform the named action.
// Order: non-members are denied; admins (including legacy owners) are
// allowed unconditionally; implicit member permissions are allowed; else
// an explicit grant must exist. Unknown permission names resolve to deny.
func Authorize(mc MemberContext, permission string) bool {
	if !mc.Member() {
		return false
	}
	if mc.Admin() {
		return true
	}
	if Implicit(permission) {
		return true
	}
	if !Known(permission) {
		return false
	}
	_, ok := mc.Grants[permission]
	return ok
}

// HasAny reports whether the member holds at least one of the permissions.
func HasAny(mc MemberContext, perms ...string) bool {
	if !mc.Member() {
		return false
	}
	if mc.Admin() {
		return true
	}
	for _, p := range perms {
		if Authorize(mc, p) {
			return true
		}
	}
	return false
}

// HasAll reports whether the member holds every permission.
func HasAll(mc MemberContext, perms ...string) bool {
	if !mc.Member() {
		return false
	}
	if mc.Admin() {
		return true
	}
	for _, p := range perms {
		if !Authorize(mc, p) {
			return false
		}
	}
	return true
}

// Loader fetches authorization snapshots. Implemented by Repository;
// narrow so engines can be tested with in-memory data.
type Loader interface {
	MemberContext(ctx context.Context, orgID, userID uuid.UUID) (MemberContext, error)
}

// Resolver loads snapshots and resolves permission checks. It is the single
// place admin bypass lives; call sites must not re-implement role checks.
type Resolver struct {
	loader Loader
}

// NewResolver creates a resolver over a snapshot loader.
func NewResolver(loader Loader) *Resolver {
	return &Resolver{loader: loader}
}

// Load fetches the snapshot for (org, user). A load failure yields a
// non-member snapshot, so resolution degrades to deny rather than erroring.
func (r *Resolver) Load(ctx context.Context, orgID, userID uuid.UUID) MemberContext {
	mc, err := r.loader.MemberContext(ctx, orgID, userID)
	if err != nil {
		return MemberContext{OrganizationID: orgID, UserID: userID}
	}
	return mc
}

// Authorize resolves one permission for (org, user).
func (r *Resolver) Authorize(ctx context.Context, orgID, userID uuid.UUID, permission string) bool {
	return Authorize(r.Load(ctx, orgID, userID), permission)
}
