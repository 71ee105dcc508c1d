package models

import (
	"time"

	"github.com/google/uuid"
)

// Permission is one entry of the static capability catalog.
type Permission struct {
	Key         string `json:"key"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// PermissionGrant is an explicit per-member capability grant. Admins bypass
// the grant table entirely, so grants are never created for them.
type PermissionGrant struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	Permission     string    `json:"permission"`
	GrantedBy      uuid.UUID `json:"granted_by"`
	CreatedAt      time.Time `json:"created_at"`
}
