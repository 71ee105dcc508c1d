package reviews

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chapterhub/backend/internal/activity"
	"github.com/chapterhub/backend/internal/documents"
	"github.com/chapterhub/backend/internal/domain"
	"github.com/chapterhub/backend/internal/middleware"
	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/internal/permissions"
	"github.com/chapterhub/backend/pkg/queue"
	"github.com/chapterhub/backend/pkg/response"
)

// Notifier enqueues fire-and-forget notification jobs.
type Notifier interface {
	EnqueueNotification(ctx context.Context, payload queue.NotificationPayload) error
}

// EventPublisher pushes realtime events to an organization's connected
// members.
type EventPublisher interface {
	PublishToOrg(orgID uuid.UUID, event string, payload interface{})
}

// errNotYourRecipient guards recipient endpoints against a caller acting
// on someone else's slot.
var errNotYourRecipient = fmt.Errorf("%w: recipient belongs to another reviewer", domain.ErrUnauthorized)

// Handler handles review workflow HTTP endpoints.
type Handler struct {
	repo     *Repository
	docs     *documents.Repository
	resolver *permissions.Resolver
	activity *activity.Logger
	notifier Notifier
	events   EventPublisher
	logger   *zap.Logger
}

// NewHandler creates a reviews handler.
func NewHandler(repo *Repository, docs *documents.Repository, resolver *permissions.Resolver, activityLog *activity.Logger, notifier Notifier, events EventPublisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, docs: docs, resolver: resolver, activity: activityLog, notifier: notifier, events: events, logger: logger}
}

// CreateRequest is the body for POST /organizations/:orgId/reviews.
type CreateRequest struct {
	DocumentID  uuid.UUID   `json:"document_id" binding:"required"`
	Subject     string      `json:"subject" binding:"required"`
	Body        string      `json:"body"`
	DueDate     *time.Time  `json:"due_date"`
	ReviewerIDs []uuid.UUID `json:"reviewer_ids" binding:"required,min=1"`
}

// Create handles POST /organizations/:orgId/reviews. The thread starts in
// draft against the document's current version.
func (h *Handler) Create(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "document_id, subject and at least one reviewer required")
		return
	}
	doc, err := h.docs.GetByID(c.Request.Context(), body.DocumentID)
	if err != nil || doc.OrganizationID != orgID {
		response.NotFound(c, "document not found")
		return
	}
	if doc.CurrentVersionID == nil {
		response.BadRequest(c, "document has no uploaded version")
		return
	}
	seen := map[uuid.UUID]bool{}
	for _, id := range body.ReviewerIDs {
		if seen[id] {
			response.Conflict(c, "duplicate reviewer")
			return
		}
		seen[id] = true
	}
	req := &models.ReviewRequest{
		OrganizationID: orgID,
		DocumentID:     doc.ID,
		VersionID:      *doc.CurrentVersionID,
		SubmittedBy:    userID,
		Subject:        body.Subject,
		Body:           body.Body,
		Status:         models.ReviewDraft,
		DueDate:        body.DueDate,
	}
	recipients, err := h.repo.Create(c.Request.Context(), req, body.ReviewerIDs)
	if err != nil {
		response.FromError(c, err, "failed to create review")
		return
	}
	h.activity.Record(c.Request.Context(), orgID, userID, "review_created", models.SubjectReview, req.ID, nil, req.Subject)
	response.Created(c, gin.H{"review": req, "recipients": recipients})
}

// ListByOrg handles GET /organizations/:orgId/reviews.
func (h *Handler) ListByOrg(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	list, err := h.repo.ListByOrg(c.Request.Context(), orgID)
	if err != nil {
		response.Internal(c, "failed to load reviews")
		return
	}
	response.OK(c, list)
}

// ListMine handles GET /me/reviews: threads where the caller is a recipient.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListForReviewer(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load reviews")
		return
	}
	response.OK(c, list)
}

// Get handles GET /reviews/:id with recipients, comments, actions, and
// attachments.
func (h *Handler) Get(c *gin.Context) {
	req, recipients, ok := h.loadForView(c)
	if !ok {
		return
	}
	comments, err := h.repo.Comments(c.Request.Context(), req.ID)
	if err != nil {
		response.Internal(c, "failed to load comments")
		return
	}
	actions, err := h.repo.Actions(c.Request.Context(), req.ID)
	if err != nil {
		response.Internal(c, "failed to load actions")
		return
	}
	attachments, err := h.repo.Attachments(c.Request.Context(), req.ID)
	if err != nil {
		response.Internal(c, "failed to load attachments")
		return
	}
	response.OK(c, gin.H{
		"review":      req,
		"recipients":  recipients,
		"comments":    comments,
		"actions":     actions,
		"attachments": attachments,
	})
}

// UpdateRequest is the body for PATCH /reviews/:id.
type UpdateRequest struct {
	Subject *string    `json:"subject"`
	Body    *string    `json:"body"`
	DueDate *time.Time `json:"due_date"`
}

// Update handles PATCH /reviews/:id (metadata only; status moves through
// transition endpoints).
func (h *Handler) Update(c *gin.Context) {
	req, ok := h.loadForManage(c)
	if !ok {
		return
	}
	var body UpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid body")
		return
	}
	err := h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		locked, err := tx.LockReview(c.Request.Context(), req.ID)
		if err != nil {
			return err
		}
		if body.Subject != nil {
			locked.Subject = *body.Subject
		}
		if body.Body != nil {
			locked.Body = *body.Body
		}
		if body.DueDate != nil {
			locked.DueDate = body.DueDate
		}
		*req = *locked
		return tx.SaveReview(c.Request.Context(), locked)
	})
	if err != nil {
		response.FromError(c, err, "failed to update review")
		return
	}
	response.OK(c, req)
}

// Send handles POST /reviews/:id/send. Draft only; resets recipients to
// pending and notifies each of them.
func (h *Handler) Send(c *gin.Context) {
	req, ok := h.loadForManage(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var recipients []*models.ReviewRecipient
	err := h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		locked, err := tx.LockReview(c.Request.Context(), req.ID)
		if err != nil {
			return err
		}
		recs, err := tx.Recipients(c.Request.Context(), req.ID)
		if err != nil {
			return err
		}
		if err := Send(locked, recs, time.Now().UTC()); err != nil {
			return err
		}
		if err := tx.SaveReview(c.Request.Context(), locked); err != nil {
			return err
		}
		if err := tx.SaveRecipients(c.Request.Context(), recs); err != nil {
			return err
		}
		*req = *locked
		recipients = recs
		return tx.AppendAction(c.Request.Context(), req.ID, userID, req.OrganizationID, models.ReviewActionSent,
			map[string]any{"recipient_count": len(recs)})
	})
	if err != nil {
		response.FromError(c, err, "failed to send review")
		return
	}
	for _, rec := range recipients {
		h.notify(c, queue.NotificationPayload{
			Kind:           queue.NotifyReviewSent,
			OrganizationID: req.OrganizationID,
			RecipientID:    rec.ReviewerID,
			Subject:        req.Subject,
			Metadata:       map[string]string{"review_id": req.ID.String()},
		})
	}
	h.activity.Record(c.Request.Context(), req.OrganizationID, userID, "review_sent", models.SubjectReview, req.ID, nil, req.Subject)
	h.publish(req)
	response.OK(c, req)
}

// MarkViewed handles POST /reviews/:id/recipients/:recipientId/view.
// Recipient-only; repeated views are a no-op, not an error.
func (h *Handler) MarkViewed(c *gin.Context) {
	req, recID, ok := h.loadForRecipientAction(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var rec *models.ReviewRecipient
	changed := false
	err := h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		locked, err := tx.LockRecipient(c.Request.Context(), req.ID, recID)
		if err != nil {
			return err
		}
		if locked.ReviewerID != userID {
			return errNotYourRecipient
		}
		changed = MarkViewed(locked, time.Now().UTC())
		rec = locked
		if !changed {
			return nil
		}
		if err := tx.SaveRecipient(c.Request.Context(), locked); err != nil {
			return err
		}
		return tx.AppendAction(c.Request.Context(), req.ID, userID, req.OrganizationID, models.ReviewActionViewed,
			map[string]any{"recipient_id": recID.String()})
	})
	if err != nil {
		response.FromError(c, err, "failed to mark viewed")
		return
	}
	response.OK(c, rec)
}

// Approve handles POST /reviews/:id/recipients/:recipientId/approve.
func (h *Handler) Approve(c *gin.Context) {
	req, recID, ok := h.loadForRecipientAction(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	err := h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		locked, err := tx.LockReview(c.Request.Context(), req.ID)
		if err != nil {
			return err
		}
		rec, err := tx.LockRecipient(c.Request.Context(), req.ID, recID)
		if err != nil {
			return err
		}
		if rec.ReviewerID != userID {
			return errNotYourRecipient
		}
		all, err := tx.Recipients(c.Request.Context(), req.ID)
		if err != nil {
			return err
		}
		// The locked recipient replaces its stale copy in the slice so the
		// recompute sees the new sub-state.
		for i, other := range all {
			if other.ID == rec.ID {
				all[i] = rec
			}
		}
		if err := Approve(locked, rec, all, time.Now().UTC()); err != nil {
			return err
		}
		if err := tx.SaveReview(c.Request.Context(), locked); err != nil {
			return err
		}
		if err := tx.SaveRecipient(c.Request.Context(), rec); err != nil {
			return err
		}
		*req = *locked
		return tx.AppendAction(c.Request.Context(), req.ID, userID, req.OrganizationID, models.ReviewActionReviewerApproved,
			map[string]any{"recipient_id": recID.String(), "thread_status": string(locked.Status)})
	})
	if err != nil {
		response.FromError(c, err, "failed to approve")
		return
	}
	h.activity.Record(c.Request.Context(), req.OrganizationID, userID, "review_approved_by_recipient", models.SubjectReview, req.ID, nil, "")
	h.publish(req)
	response.OK(c, req)
}

// DeclineRequest is the body for a recipient decline.
type DeclineRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Decline handles POST /reviews/:id/recipients/:recipientId/decline. One
// decline fails the whole thread.
func (h *Handler) Decline(c *gin.Context) {
	req, recID, ok := h.loadForRecipientAction(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body DeclineRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "reason required")
		return
	}
	err := h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		locked, err := tx.LockReview(c.Request.Context(), req.ID)
		if err != nil {
			return err
		}
		rec, err := tx.LockRecipient(c.Request.Context(), req.ID, recID)
		if err != nil {
			return err
		}
		if rec.ReviewerID != userID {
			return errNotYourRecipient
		}
		if err := Decline(locked, rec, body.Reason, time.Now().UTC()); err != nil {
			return err
		}
		if err := tx.SaveReview(c.Request.Context(), locked); err != nil {
			return err
		}
		if err := tx.SaveRecipient(c.Request.Context(), rec); err != nil {
			return err
		}
		*req = *locked
		return tx.AppendAction(c.Request.Context(), req.ID, userID, req.OrganizationID, models.ReviewActionReviewerDeclined,
			map[string]any{"recipient_id": recID.String(), "reason": body.Reason})
	})
	if err != nil {
		response.FromError(c, err, "failed to decline")
		return
	}
	h.notify(c, queue.NotificationPayload{
		Kind:           queue.NotifyReviewDeclined,
		OrganizationID: req.OrganizationID,
		RecipientID:    req.SubmittedBy,
		Subject:        req.Subject,
		Metadata:       map[string]string{"review_id": req.ID.String(), "reason": body.Reason},
	})
	h.activity.Record(c.Request.Context(), req.OrganizationID, userID, "review_declined_by_recipient", models.SubjectReview, req.ID,
		map[string]any{"reason": body.Reason}, "")
	h.publish(req)
	response.OK(c, req)
}

// NoteRequest is the body for request-changes.
type NoteRequest struct {
	Note string `json:"note"`
}

// RequestChanges handles POST /reviews/:id/request-changes.
func (h *Handler) RequestChanges(c *gin.Context) {
	h.threadTransition(c, models.ReviewActionChangesRequested, "failed to request changes", func(req *models.ReviewRequest, now time.Time) error {
		return RequestChanges(req, now)
	})
}

// Close handles POST /reviews/:id/close.
func (h *Handler) Close(c *gin.Context) {
	h.threadTransition(c, models.ReviewActionClosed, "failed to close review", func(req *models.ReviewRequest, now time.Time) error {
		return Close(req, now)
	})
}

// Reopen handles POST /reviews/:id/reopen.
func (h *Handler) Reopen(c *gin.Context) {
	h.threadTransition(c, models.ReviewActionReopened, "failed to reopen review", func(req *models.ReviewRequest, now time.Time) error {
		return Reopen(req, now)
	})
}

func (h *Handler) threadTransition(c *gin.Context, action, failMsg string, apply func(*models.ReviewRequest, time.Time) error) {
	req, ok := h.loadForManage(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var note NoteRequest
	_ = c.ShouldBindJSON(&note)
	err := h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		locked, err := tx.LockReview(c.Request.Context(), req.ID)
		if err != nil {
			return err
		}
		if err := apply(locked, time.Now().UTC()); err != nil {
			return err
		}
		if err := tx.SaveReview(c.Request.Context(), locked); err != nil {
			return err
		}
		*req = *locked
		meta := map[string]any{}
		if note.Note != "" {
			meta["note"] = note.Note
		}
		return tx.AppendAction(c.Request.Context(), req.ID, userID, req.OrganizationID, action, meta)
	})
	if err != nil {
		response.FromError(c, err, failMsg)
		return
	}
	h.activity.Record(c.Request.Context(), req.OrganizationID, userID, "review_"+action, models.SubjectReview, req.ID, nil, "")
	h.publish(req)
	response.OK(c, req)
}

// AttachVersionRequest records a new uploaded version for the thread's
// document and repoints the thread.
type AttachVersionRequest struct {
	StorageKey  string `json:"storage_key" binding:"required"`
	FileName    string `json:"file_name" binding:"required"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// AttachVersion handles POST /reviews/:id/versions. Publisher-side only.
// Thread status and recipient sub-states are untouched.
func (h *Handler) AttachVersion(c *gin.Context) {
	req, ok := h.loadForManage(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body AttachVersionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "storage_key and file_name required")
		return
	}
	v := &models.DocumentVersion{
		DocumentID:  req.DocumentID,
		StorageKey:  body.StorageKey,
		FileName:    body.FileName,
		ContentType: body.ContentType,
		SizeBytes:   body.SizeBytes,
		UploadedBy:  userID,
	}
	if err := h.docs.AddVersion(c.Request.Context(), v); err != nil {
		response.Internal(c, "failed to record version")
		return
	}
	err := h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		locked, err := tx.LockReview(c.Request.Context(), req.ID)
		if err != nil {
			return err
		}
		AttachVersion(locked, v.ID, time.Now().UTC())
		if err := tx.SaveReview(c.Request.Context(), locked); err != nil {
			return err
		}
		*req = *locked
		return tx.AppendAction(c.Request.Context(), req.ID, userID, req.OrganizationID, models.ReviewActionVersionUploaded,
			map[string]any{"version_id": v.ID.String(), "version": v.Version, "file_name": v.FileName})
	})
	if err != nil {
		response.FromError(c, err, "failed to attach version")
		return
	}
	h.activity.Record(c.Request.Context(), req.OrganizationID, userID, "review_version_uploaded", models.SubjectReview, req.ID,
		map[string]any{"version": v.Version}, "")
	h.publish(req)
	response.OK(c, gin.H{"review": req, "version": v})
}

// AddRecipientRequest is the body for adding a reviewer to a thread.
type AddRecipientRequest struct {
	ReviewerID uuid.UUID  `json:"reviewer_id" binding:"required"`
	DueDate    *time.Time `json:"due_date"`
}

// AddRecipient handles POST /reviews/:id/recipients.
func (h *Handler) AddRecipient(c *gin.Context) {
	req, ok := h.loadForManage(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body AddRecipientRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "reviewer_id required")
		return
	}
	rec := &models.ReviewRecipient{
		ReviewID:   req.ID,
		ReviewerID: body.ReviewerID,
		Status:     models.RecipientPending,
		DueDate:    body.DueDate,
	}
	err := h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		if _, err := tx.LockReview(c.Request.Context(), req.ID); err != nil {
			return err
		}
		if err := tx.AddRecipient(c.Request.Context(), rec); err != nil {
			return err
		}
		return tx.AppendAction(c.Request.Context(), req.ID, userID, req.OrganizationID, models.ReviewActionRecipientAdded,
			map[string]any{"reviewer_id": body.ReviewerID.String()})
	})
	if err != nil {
		response.FromError(c, err, "failed to add recipient")
		return
	}
	response.Created(c, rec)
}

// RemoveRecipient handles DELETE /reviews/:id/recipients/:recipientId.
// Forbidden once the recipient has responded.
func (h *Handler) RemoveRecipient(c *gin.Context) {
	req, ok := h.loadForManage(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	recID, err := uuid.Parse(c.Param("recipientId"))
	if err != nil {
		response.BadRequest(c, "invalid recipient id")
		return
	}
	err = h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		rec, err := tx.LockRecipient(c.Request.Context(), req.ID, recID)
		if err != nil {
			return err
		}
		if err := CanRemoveRecipient(rec); err != nil {
			return err
		}
		if err := tx.DeleteRecipient(c.Request.Context(), recID); err != nil {
			return err
		}
		return tx.AppendAction(c.Request.Context(), req.ID, userID, req.OrganizationID, models.ReviewActionRecipientRemoved,
			map[string]any{"recipient_id": recID.String(), "reviewer_id": rec.ReviewerID.String()})
	})
	if err != nil {
		response.FromError(c, err, "failed to remove recipient")
		return
	}
	response.NoContent(c)
}

// Remind handles POST /reviews/:id/remind: enqueues reminders for every
// recipient still short of a final sub-state.
func (h *Handler) Remind(c *gin.Context) {
	req, ok := h.loadForManage(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	recipients, err := h.repo.Recipients(c.Request.Context(), req.ID)
	if err != nil {
		response.Internal(c, "failed to load recipients")
		return
	}
	reminded := 0
	for _, rec := range recipients {
		if rec.Status.Final() {
			continue
		}
		h.notify(c, queue.NotificationPayload{
			Kind:           queue.NotifyReviewReminder,
			OrganizationID: req.OrganizationID,
			RecipientID:    rec.ReviewerID,
			Subject:        req.Subject,
			Metadata:       map[string]string{"review_id": req.ID.String()},
		})
		reminded++
	}
	err = h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		return tx.AppendAction(c.Request.Context(), req.ID, userID, req.OrganizationID, models.ReviewActionReminderSent,
			map[string]any{"reminded": reminded})
	})
	if err != nil {
		response.FromError(c, err, "failed to record reminder")
		return
	}
	response.OK(c, gin.H{"reminded": reminded})
}

// ExpireRecipient handles POST /reviews/:id/recipients/:recipientId/expire.
// Manual publisher-side transition; nothing expires recipients on a timer.
func (h *Handler) ExpireRecipient(c *gin.Context) {
	req, ok := h.loadForManage(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	recID, err := uuid.Parse(c.Param("recipientId"))
	if err != nil {
		response.BadRequest(c, "invalid recipient id")
		return
	}
	var rec *models.ReviewRecipient
	err = h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		locked, err := tx.LockRecipient(c.Request.Context(), req.ID, recID)
		if err != nil {
			return err
		}
		if err := Expire(locked, time.Now().UTC()); err != nil {
			return err
		}
		if err := tx.SaveRecipient(c.Request.Context(), locked); err != nil {
			return err
		}
		rec = locked
		return tx.AppendAction(c.Request.Context(), req.ID, userID, req.OrganizationID, models.ReviewActionRecipientExpired,
			map[string]any{"recipient_id": recID.String()})
	})
	if err != nil {
		response.FromError(c, err, "failed to expire recipient")
		return
	}
	response.OK(c, rec)
}

// CommentRequest is the body for POST /reviews/:id/comments.
type CommentRequest struct {
	Body string `json:"body" binding:"required"`
}

// AddComment handles POST /reviews/:id/comments. A recipient's first
// comment moves their sub-state to commented.
func (h *Handler) AddComment(c *gin.Context) {
	req, recipients, ok := h.loadForView(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body CommentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "body required")
		return
	}
	cm := &models.ReviewComment{ReviewID: req.ID, AuthorID: userID, Body: body.Body}
	if err := h.repo.AddComment(c.Request.Context(), cm); err != nil {
		response.Internal(c, "failed to add comment")
		return
	}
	for _, rec := range recipients {
		if rec.ReviewerID != userID {
			continue
		}
		recID := rec.ID
		err := h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
			locked, err := tx.LockRecipient(c.Request.Context(), req.ID, recID)
			if err != nil {
				return err
			}
			if !MarkCommented(locked, time.Now().UTC()) {
				return nil
			}
			if err := tx.SaveRecipient(c.Request.Context(), locked); err != nil {
				return err
			}
			return tx.AppendAction(c.Request.Context(), req.ID, userID, req.OrganizationID, models.ReviewActionCommented,
				map[string]any{"recipient_id": recID.String()})
		})
		if err != nil {
			h.logger.Warn("recipient comment transition failed", zap.Error(err), zap.String("review_id", req.ID.String()))
		}
	}
	response.Created(c, cm)
}

// AttachmentRequest is the body for recording an uploaded attachment.
// The object itself goes to storage through a presigned URL first.
type AttachmentRequest struct {
	StorageKey string `json:"storage_key" binding:"required"`
	FileName   string `json:"file_name" binding:"required"`
}

// AddAttachment handles POST /reviews/:id/attachments.
func (h *Handler) AddAttachment(c *gin.Context) {
	req, ok := h.loadForManage(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body AttachmentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "storage_key and file_name required")
		return
	}
	a := &models.ReviewAttachment{ReviewID: req.ID, StorageKey: body.StorageKey, FileName: body.FileName, UploadedBy: userID}
	if err := h.repo.AddAttachment(c.Request.Context(), a); err != nil {
		response.Internal(c, "failed to add attachment")
		return
	}
	err := h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		return tx.AppendAction(c.Request.Context(), req.ID, userID, req.OrganizationID, models.ReviewActionAttachmentAdded,
			map[string]any{"file_name": body.FileName})
	})
	if err != nil {
		h.logger.Warn("attachment action append failed", zap.Error(err), zap.String("review_id", req.ID.String()))
	}
	response.Created(c, a)
}

// ListComments handles GET /reviews/:id/comments.
func (h *Handler) ListComments(c *gin.Context) {
	req, _, ok := h.loadForView(c)
	if !ok {
		return
	}
	comments, err := h.repo.Comments(c.Request.Context(), req.ID)
	if err != nil {
		response.Internal(c, "failed to load comments")
		return
	}
	response.OK(c, comments)
}

// loadForView loads the thread and authorizes read access: publisher-org
// members holding view_reviews, or any recipient of the thread.
func (h *Handler) loadForView(c *gin.Context) (*models.ReviewRequest, []*models.ReviewRecipient, bool) {
	req, ok := h.loadThread(c)
	if !ok {
		return nil, nil, false
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	recipients, err := h.repo.Recipients(c.Request.Context(), req.ID)
	if err != nil {
		response.Internal(c, "failed to load recipients")
		return nil, nil, false
	}
	for _, rec := range recipients {
		if rec.ReviewerID == userID {
			return req, recipients, true
		}
	}
	mc := h.resolver.Load(c.Request.Context(), req.OrganizationID, userID)
	if permissions.Authorize(mc, permissions.PermViewReviews) {
		return req, recipients, true
	}
	response.ForbiddenPermission(c, permissions.PermViewReviews)
	return nil, nil, false
}

// loadForManage loads the thread and authorizes publisher-side actions:
// the submitter, or publisher-org members holding manage_reviews.
func (h *Handler) loadForManage(c *gin.Context) (*models.ReviewRequest, bool) {
	req, ok := h.loadThread(c)
	if !ok {
		return nil, false
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	mc := h.resolver.Load(c.Request.Context(), req.OrganizationID, userID)
	if !mc.Member() {
		response.Forbidden(c, "not a member of the publishing organization")
		return nil, false
	}
	if req.SubmittedBy != userID && !permissions.Authorize(mc, permissions.PermManageReviews) {
		response.ForbiddenPermission(c, permissions.PermManageReviews)
		return nil, false
	}
	return req, true
}

// loadForRecipientAction loads the thread and parses the recipient route
// param. Ownership of the recipient row is verified inside the transaction
// after the row is locked.
func (h *Handler) loadForRecipientAction(c *gin.Context) (*models.ReviewRequest, uuid.UUID, bool) {
	req, ok := h.loadThread(c)
	if !ok {
		return nil, uuid.Nil, false
	}
	recID, err := uuid.Parse(c.Param("recipientId"))
	if err != nil {
		response.BadRequest(c, "invalid recipient id")
		return nil, uuid.Nil, false
	}
	return req, recID, true
}

func (h *Handler) loadThread(c *gin.Context) (*models.ReviewRequest, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid review id")
		return nil, false
	}
	req, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err, "failed to load review")
		return nil, false
	}
	return req, true
}

func (h *Handler) notify(c *gin.Context, payload queue.NotificationPayload) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.EnqueueNotification(c.Request.Context(), payload); err != nil {
		h.logger.Warn("notification enqueue failed", zap.Error(err), zap.String("kind", payload.Kind))
	}
}

func (h *Handler) publish(req *models.ReviewRequest) {
	if h.events == nil {
		return
	}
	h.events.PublishToOrg(req.OrganizationID, "review_updated", gin.H{
		"review_id": req.ID,
		"status":    req.Status,
	})
}
