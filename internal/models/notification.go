package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationLog records one dispatched (or failed) notification, written
// by the background worker. Delivery is fire-and-forget relative to the
// state machines.
type NotificationLog struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	RecipientID    uuid.UUID  `json:"recipient_id"`
	Kind           string     `json:"kind"`
	Subject        string     `json:"subject"`
	Status         string     `json:"status"`
	Error          string     `json:"error,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
