package models

import (
	"time"

	"github.com/google/uuid"
)

// Announcement is an org-wide notice. Reading requires view_announcements;
// writing requires manage_announcements.
type Announcement struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	Title          string     `json:"title"`
	Body           string     `json:"body"`
	Pinned         bool       `json:"pinned"`
	CreatedBy      uuid.UUID  `json:"created_by"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
