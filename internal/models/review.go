package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReviewStatus is the thread-level state of a review request.
type ReviewStatus string

const (
	ReviewDraft            ReviewStatus = "draft"
	ReviewSent             ReviewStatus = "sent"
	ReviewInReview         ReviewStatus = "in_review"
	ReviewChangesRequested ReviewStatus = "changes_requested"
	ReviewApproved         ReviewStatus = "approved"
	ReviewDeclined         ReviewStatus = "declined"
	ReviewClosed           ReviewStatus = "closed"
	ReviewCancelled        ReviewStatus = "cancelled"
)

// Final reports whether the thread status is terminal. Final threads accept
// no transition except an explicit reopen.
func (s ReviewStatus) Final() bool {
	switch s {
	case ReviewApproved, ReviewDeclined, ReviewClosed, ReviewCancelled:
		return true
	}
	return false
}

// ReviewRequest is a review thread for one document version.
type ReviewRequest struct {
	ID             uuid.UUID    `json:"id"`
	OrganizationID uuid.UUID    `json:"organization_id"`
	DocumentID     uuid.UUID    `json:"document_id"`
	VersionID      uuid.UUID    `json:"version_id"`
	SubmittedBy    uuid.UUID    `json:"submitted_by"`
	Subject        string       `json:"subject"`
	Body           string       `json:"body,omitempty"`
	Status         ReviewStatus `json:"status"`
	DueDate        *time.Time   `json:"due_date,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// RecipientStatus is one reviewer's sub-state within a thread.
type RecipientStatus string

const (
	RecipientPending   RecipientStatus = "pending"
	RecipientViewed    RecipientStatus = "viewed"
	RecipientCommented RecipientStatus = "commented"
	RecipientApproved  RecipientStatus = "approved"
	RecipientDeclined  RecipientStatus = "declined"
	RecipientExpired   RecipientStatus = "expired"
)

// Final reports whether the recipient has reached a terminal sub-state.
// Transitions are monotonic: once final, nothing moves it again.
func (s RecipientStatus) Final() bool {
	switch s {
	case RecipientApproved, RecipientDeclined, RecipientExpired:
		return true
	}
	return false
}

// ReviewRecipient is one reviewer's row in a thread. Unique per
// (review, reviewer).
type ReviewRecipient struct {
	ID            uuid.UUID       `json:"id"`
	ReviewID      uuid.UUID       `json:"review_id"`
	ReviewerID    uuid.UUID       `json:"reviewer_id"`
	ReviewerOrgID *uuid.UUID      `json:"reviewer_org_id,omitempty"`
	Status        RecipientStatus `json:"status"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	LastViewedAt  *time.Time      `json:"last_viewed_at,omitempty"`
	RespondedAt   *time.Time      `json:"responded_at,omitempty"`
	DeclineReason string          `json:"decline_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ReviewComment is a comment on a thread.
type ReviewComment struct {
	ID        uuid.UUID `json:"id"`
	ReviewID  uuid.UUID `json:"review_id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewAttachment is a supplementary file on a thread, stored by key.
type ReviewAttachment struct {
	ID         uuid.UUID `json:"id"`
	ReviewID   uuid.UUID `json:"review_id"`
	StorageKey string    `json:"storage_key"`
	FileName   string    `json:"file_name"`
	UploadedBy uuid.UUID `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// Review action names, one per state transition. The action log is
// append-only; rows are never mutated or deleted.
const (
	ReviewActionSent             = "sent"
	ReviewActionViewed           = "viewed"
	ReviewActionCommented        = "commented"
	ReviewActionReviewerApproved = "reviewer_approved"
	ReviewActionReviewerDeclined = "reviewer_declined"
	ReviewActionChangesRequested = "changes_requested"
	ReviewActionClosed           = "closed"
	ReviewActionReopened         = "reopened"
	ReviewActionVersionUploaded  = "version_uploaded"
	ReviewActionRecipientAdded   = "recipient_added"
	ReviewActionRecipientRemoved = "recipient_removed"
	ReviewActionRecipientExpired = "recipient_expired"
	ReviewActionReminderSent     = "reminder_sent"
	ReviewActionAttachmentAdded  = "attachment_added"
)

// ReviewAction is one immutable audit entry on a thread.
type ReviewAction struct {
	ID             uuid.UUID       `json:"id"`
	ReviewID       uuid.UUID       `json:"review_id"`
	ActorID        uuid.UUID       `json:"actor_id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	Action         string          `json:"action"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
