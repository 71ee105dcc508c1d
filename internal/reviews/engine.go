// Package reviews implements the document review workflow: a thread-level
// state machine over per-recipient sub-states, with an immutable action log
// appended on every transition.
package reviews

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chapterhub/backend/internal/domain"
	"github.com/chapterhub/backend/internal/models"
)

// Transition functions operate on loaded rows and mutate them in memory.
// Callers persist the result inside one transaction together with the
// action row; nothing here touches storage.

// Send moves a draft thread to sent and resets every recipient to pending.
func Send(req *models.ReviewRequest, recipients []*models.ReviewRecipient, now time.Time) error {
	if req.Status != models.ReviewDraft {
		return fmt.Errorf("%w: cannot send review in status %s", domain.ErrInvalidTransition, req.Status)
	}
	req.Status = models.ReviewSent
	req.UpdatedAt = now
	for _, rec := range recipients {
		rec.Status = models.RecipientPending
		rec.LastViewedAt = nil
		rec.RespondedAt = nil
		rec.DeclineReason = ""
		rec.UpdatedAt = now
	}
	return nil
}

// MarkViewed stamps a pending recipient as viewed. Past pending it is a
// no-op, not an error; reviewers reload threads constantly.
func MarkViewed(rec *models.ReviewRecipient, now time.Time) bool {
	if rec.Status != models.RecipientPending {
		return false
	}
	rec.Status = models.RecipientViewed
	rec.LastViewedAt = &now
	rec.UpdatedAt = now
	return true
}

// MarkCommented moves a pending or viewed recipient to commented on their
// first comment. Returns false when the sub-state did not change.
func MarkCommented(rec *models.ReviewRecipient, now time.Time) bool {
	if rec.Status != models.RecipientPending && rec.Status != models.RecipientViewed {
		return false
	}
	rec.Status = models.RecipientCommented
	rec.UpdatedAt = now
	return true
}

// Approve records one reviewer's approval and recomputes the thread status:
// all approved ⇒ thread approved, otherwise thread in_review. The recompute
// runs on every approval, so a thread can leave approved again when a later
// recipient is added or reset; that bouncing matches the product behavior
// and must not be "fixed" here.
func Approve(req *models.ReviewRequest, rec *models.ReviewRecipient, all []*models.ReviewRecipient, now time.Time) error {
	if rec.Status.Final() {
		return fmt.Errorf("%w: recipient already %s", domain.ErrInvalidTransition, rec.Status)
	}
	rec.Status = models.RecipientApproved
	rec.RespondedAt = &now
	rec.UpdatedAt = now

	req.Status = models.ReviewApproved
	for _, other := range all {
		if other.Status != models.RecipientApproved {
			req.Status = models.ReviewInReview
			break
		}
	}
	req.UpdatedAt = now
	return nil
}

// Decline records one reviewer's decline and fails the whole thread. One
// decline is decisive regardless of other recipients; decline is
// deliberately not symmetric with Approve's consensus rule.
func Decline(req *models.ReviewRequest, rec *models.ReviewRecipient, reason string, now time.Time) error {
	if rec.Status.Final() {
		return fmt.Errorf("%w: recipient already %s", domain.ErrInvalidTransition, rec.Status)
	}
	rec.Status = models.RecipientDeclined
	rec.DeclineReason = reason
	rec.RespondedAt = &now
	rec.UpdatedAt = now

	req.Status = models.ReviewDeclined
	req.UpdatedAt = now
	return nil
}

// Expire marks a non-final recipient expired once its due date has
// passed. Manual publisher-side transition; nothing expires recipients
// automatically.
func Expire(rec *models.ReviewRecipient, now time.Time) error {
	if rec.Status.Final() {
		return fmt.Errorf("%w: recipient already %s", domain.ErrInvalidTransition, rec.Status)
	}
	if rec.DueDate == nil {
		return fmt.Errorf("%w: recipient has no due date", domain.ErrValidation)
	}
	if now.Before(*rec.DueDate) {
		return fmt.Errorf("%w: recipient due date has not passed", domain.ErrValidation)
	}
	rec.Status = models.RecipientExpired
	rec.RespondedAt = &now
	rec.UpdatedAt = now
	return nil
}

// RequestChanges moves a non-final thread to changes_requested.
func RequestChanges(req *models.ReviewRequest, now time.Time) error {
	if req.Status.Final() {
		return fmt.Errorf("%w: review is %s", domain.ErrInvalidTransition, req.Status)
	}
	req.Status = models.ReviewChangesRequested
	req.UpdatedAt = now
	return nil
}

// Close moves a non-final thread to closed.
func Close(req *models.ReviewRequest, now time.Time) error {
	if req.Status.Final() {
		return fmt.Errorf("%w: review is %s", domain.ErrInvalidTransition, req.Status)
	}
	req.Status = models.ReviewClosed
	req.UpdatedAt = now
	return nil
}

// Reopen moves a final thread back to in_review. Reopen is the only exit
// from a final state.
func Reopen(req *models.ReviewRequest, now time.Time) error {
	if !req.Status.Final() {
		return fmt.Errorf("%w: review is %s, only final reviews reopen", domain.ErrInvalidTransition, req.Status)
	}
	req.Status = models.ReviewInReview
	req.UpdatedAt = now
	return nil
}

// AttachVersion repoints the thread at a newly uploaded document version.
// Thread status and recipient sub-states are untouched.
func AttachVersion(req *models.ReviewRequest, versionID uuid.UUID, now time.Time) {
	req.VersionID = versionID
	req.UpdatedAt = now
}

// CanRemoveRecipient guards recipient removal: reviewers who already
// responded stay on the thread for the audit trail.
func CanRemoveRecipient(rec *models.ReviewRecipient) error {
	if rec.Status == models.RecipientApproved || rec.Status == models.RecipientDeclined {
		return fmt.Errorf("%w: recipient already responded (%s)", domain.ErrInvalidTransition, rec.Status)
	}
	return nil
}
