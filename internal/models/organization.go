package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant: a chapter grouping members, documents,
// reviews, and duty schedules.
type Organization struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Slug              string    `json:"slug"`
	Description       string    `json:"description,omitempty"`
	AutoAcceptInvites bool      `json:"auto_accept_invites"`
	PublicProfile     bool      `json:"public_profile"`
	MemberCanInvite   bool      `json:"member_can_invite"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Membership roles within an organization. RoleOwner is a legacy alias
// treated exactly like RoleAdmin by the permission resolver.
const (
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// ValidRole reports whether role is an assignable membership role. The
// legacy owner role is readable but never assigned anew.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleMember || role == RoleViewer
}

// IsAdminRole reports whether the role carries unconditional authorization.
func IsAdminRole(role string) bool {
	return role == RoleAdmin || role == RoleOwner
}

// Membership links a user to an organization with a role.
type Membership struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Invite statuses.
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusDeclined = "declined"
)

// Invite is an invitation for a user (by email) to join an organization.
type Invite struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	Email          string     `json:"email"`
	Role           string     `json:"role"`
	InvitedBy      uuid.UUID  `json:"invited_by"`
	Status         string     `json:"status"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
