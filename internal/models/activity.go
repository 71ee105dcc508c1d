package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Activity subject kinds. An entry references its subject as a plain
// (kind, id) pair rather than a polymorphic relation.
const (
	SubjectReview     = "review"
	SubjectRecipient  = "review_recipient"
	SubjectDocument   = "document"
	SubjectSchedule   = "duty_schedule"
	SubjectAssignment = "duty_assignment"
	SubjectSwap       = "duty_swap"
	SubjectMembership = "membership"
	SubjectGrant      = "permission_grant"
)

// ActivityEntry is one append-only row of the org activity feed.
type ActivityEntry struct {
	ID             uuid.UUID       `json:"id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	ActorID        uuid.UUID       `json:"actor_id"`
	Action         string          `json:"action"`
	SubjectKind    string          `json:"subject_kind,omitempty"`
	SubjectID      *uuid.UUID      `json:"subject_id,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	Description    string          `json:"description,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
