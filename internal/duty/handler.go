package duty

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chapterhub/backend/internal/activity"
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

var (
	errNotYourAssignment    = fmt.Errorf("%w: assignment belongs to another officer", domain.ErrUnauthorized)
	errAssignmentOutsideOrg = fmt.Errorf("%w: assignment", domain.ErrNotFound)
	errSwapTargetNotMember  = fmt.Errorf("%w: target officer is not an organization member", domain.ErrValidation)
)

// validateSwapTarget rejects directed swaps aimed at users outside the
// organization.
func validateSwapTarget(target permissions.MemberContext) error {
	if !target.Member() {
		return errSwapTargetNotMember
	}
	return nil
}

// requireScheduleOrg hides entities reached through a swap or assignment id
// that belong to a different organization than the route.
func requireScheduleOrg(s *models.DutySchedule, orgID uuid.UUID) error {
	if s.OrganizationID != orgID {
		return errAssignmentOutsideOrg
	}
	return nil
}

func invalidScheduleTransition(cur, target models.ScheduleStatus) error {
	return fmt.Errorf("%w: schedule cannot move from %q to %q", domain.ErrInvalidTransition, cur, target)
}

// Handler handles duty scheduling HTTP endpoints.
type Handler struct {
	repo     *Repository
	resolver *permissions.Resolver
	activity *activity.Logger
	notifier Notifier
	logger   *zap.Logger
}

// NewHandler creates a duty handler.
func NewHandler(repo *Repository, resolver *permissions.Resolver, activityLog *activity.Logger, notifier Notifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, resolver: resolver, activity: activityLog, notifier: notifier, logger: logger}
}

// CreateScheduleRequest is the body for POST /organizations/:orgId/duty/schedules.
type CreateScheduleRequest struct {
	Title            string            `json:"title" binding:"required"`
	Location         string            `json:"location"`
	Date             time.Time         `json:"date" binding:"required"`
	StartTime        string            `json:"start_time" binding:"required"`
	EndTime          string            `json:"end_time" binding:"required"`
	RequiredOfficers int               `json:"required_officers" binding:"required,min=1"`
	Recurrence       models.Recurrence `json:"recurrence"`
	OfficerIDs       []uuid.UUID       `json:"officer_ids"`
}

// CreateSchedule handles POST /organizations/:orgId/duty/schedules.
// Recurrence expands into additional draft schedules with the same officers
// re-assigned fresh.
func (h *Handler) CreateSchedule(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body CreateScheduleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "title, date, start_time, end_time and required_officers required")
		return
	}
	if body.Recurrence.Type == "" {
		body.Recurrence.Type = models.RecurrenceNone
	}
	s := &models.DutySchedule{
		OrganizationID:   orgID,
		Title:            body.Title,
		Location:         body.Location,
		Date:             body.Date,
		StartTime:        body.StartTime,
		EndTime:          body.EndTime,
		RequiredOfficers: body.RequiredOfficers,
		Status:           models.ScheduleDraft,
		Recurrence:       body.Recurrence,
		CreatedBy:        userID,
	}
	dates, err := ExpandRecurrence(s.Date, s.Recurrence)
	if err != nil {
		response.FromError(c, err, "invalid recurrence")
		return
	}
	occurrences := make([]*models.DutySchedule, 0, len(dates))
	for _, d := range dates {
		occurrences = append(occurrences, Occurrence(s, d))
	}
	if err := h.repo.CreateSchedule(c.Request.Context(), s, occurrences, body.OfficerIDs, userID); err != nil {
		response.FromError(c, err, "failed to create schedule")
		return
	}
	h.activity.Record(c.Request.Context(), orgID, userID, "duty_schedule_created", models.SubjectSchedule, s.ID,
		map[string]any{"occurrences": len(occurrences)}, s.Title)
	response.Created(c, gin.H{"schedule": s, "occurrences": occurrences})
}

// ListSchedules handles GET /organizations/:orgId/duty/schedules with
// optional from/to date filters.
func (h *Handler) ListSchedules(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	var from, to *time.Time
	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			response.BadRequest(c, "from must be YYYY-MM-DD")
			return
		}
		from = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			response.BadRequest(c, "to must be YYYY-MM-DD")
			return
		}
		to = &t
	}
	list, err := h.repo.ListSchedules(c.Request.Context(), orgID, from, to)
	if err != nil {
		response.Internal(c, "failed to load schedules")
		return
	}
	response.OK(c, list)
}

// GetSchedule handles GET /organizations/:orgId/duty/schedules/:scheduleId
// with assignments.
func (h *Handler) GetSchedule(c *gin.Context) {
	s, ok := h.loadSchedule(c)
	if !ok {
		return
	}
	assignments, err := h.repo.Assignments(c.Request.Context(), s.ID)
	if err != nil {
		response.Internal(c, "failed to load assignments")
		return
	}
	response.OK(c, gin.H{"schedule": s, "assignments": assignments})
}

// UpdateScheduleRequest is the body for PATCH on a schedule.
type UpdateScheduleRequest struct {
	Title            *string    `json:"title"`
	Location         *string    `json:"location"`
	Date             *time.Time `json:"date"`
	StartTime        *string    `json:"start_time"`
	EndTime          *string    `json:"end_time"`
	RequiredOfficers *int       `json:"required_officers"`
}

// UpdateSchedule handles PATCH /organizations/:orgId/duty/schedules/:scheduleId.
func (h *Handler) UpdateSchedule(c *gin.Context) {
	s, ok := h.loadSchedule(c)
	if !ok {
		return
	}
	if s.Status == models.ScheduleCompleted || s.Status == models.ScheduleCancelled {
		response.UnprocessableEntity(c, "schedule is closed")
		return
	}
	var body UpdateScheduleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid body")
		return
	}
	if body.Title != nil {
		s.Title = *body.Title
	}
	if body.Location != nil {
		s.Location = *body.Location
	}
	if body.Date != nil {
		s.Date = *body.Date
	}
	if body.StartTime != nil {
		s.StartTime = *body.StartTime
	}
	if body.EndTime != nil {
		s.EndTime = *body.EndTime
	}
	if body.RequiredOfficers != nil {
		if *body.RequiredOfficers < 1 {
			response.BadRequest(c, "required_officers must be at least 1")
			return
		}
		s.RequiredOfficers = *body.RequiredOfficers
	}
	if err := h.repo.UpdateSchedule(c.Request.Context(), s); err != nil {
		response.Internal(c, "failed to update schedule")
		return
	}
	response.OK(c, s)
}

// DeleteSchedule handles DELETE /organizations/:orgId/duty/schedules/:scheduleId.
func (h *Handler) DeleteSchedule(c *gin.Context) {
	s, ok := h.loadSchedule(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.repo.DeleteSchedule(c.Request.Context(), s.ID); err != nil {
		response.FromError(c, err, "failed to delete schedule")
		return
	}
	h.activity.Record(c.Request.Context(), s.OrganizationID, userID, "duty_schedule_deleted", models.SubjectSchedule, s.ID, nil, s.Title)
	response.NoContent(c)
}

// DuplicateScheduleRequest is the body for duplicating a schedule onto a
// new date.
type DuplicateScheduleRequest struct {
	Date time.Time `json:"date" binding:"required"`
}

// DuplicateSchedule handles POST .../schedules/:scheduleId/duplicate:
// clones the slot onto a new date as a draft with the same officers
// re-assigned fresh.
func (h *Handler) DuplicateSchedule(c *gin.Context) {
	s, ok := h.loadSchedule(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body DuplicateScheduleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "date required")
		return
	}
	assignments, err := h.repo.Assignments(c.Request.Context(), s.ID)
	if err != nil {
		response.Internal(c, "failed to load assignments")
		return
	}
	officers := make([]uuid.UUID, 0, len(assignments))
	for _, a := range assignments {
		if a.Status == models.AssignmentDeclined {
			continue
		}
		officers = append(officers, a.OfficerID)
	}
	clone := Occurrence(s, body.Date)
	clone.CreatedBy = userID
	if err := h.repo.CreateSchedule(c.Request.Context(), clone, nil, officers, userID); err != nil {
		response.FromError(c, err, "failed to duplicate schedule")
		return
	}
	h.activity.Record(c.Request.Context(), s.OrganizationID, userID, "duty_schedule_duplicated", models.SubjectSchedule, clone.ID,
		map[string]any{"source_id": s.ID.String()}, clone.Title)
	response.Created(c, clone)
}

// PublishSchedule handles POST .../schedules/:scheduleId/publish. Every
// assigned officer is notified.
func (h *Handler) PublishSchedule(c *gin.Context) {
	h.scheduleStatusTransition(c, models.SchedulePublished, "duty_schedule_published", func(cur models.ScheduleStatus) bool {
		return cur == models.ScheduleDraft
	})
}

// CancelSchedule handles POST .../schedules/:scheduleId/cancel.
func (h *Handler) CancelSchedule(c *gin.Context) {
	h.scheduleStatusTransition(c, models.ScheduleCancelled, "duty_schedule_cancelled", func(cur models.ScheduleStatus) bool {
		return cur == models.ScheduleDraft || cur == models.SchedulePublished
	})
}

// CompleteSchedule handles POST .../schedules/:scheduleId/complete.
func (h *Handler) CompleteSchedule(c *gin.Context) {
	h.scheduleStatusTransition(c, models.ScheduleCompleted, "duty_schedule_completed", func(cur models.ScheduleStatus) bool {
		return cur == models.SchedulePublished
	})
}

func (h *Handler) scheduleStatusTransition(c *gin.Context, target models.ScheduleStatus, action string, legal func(models.ScheduleStatus) bool) {
	s, ok := h.loadSchedule(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	err := h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		locked, err := tx.LockSchedule(c.Request.Context(), s.ID)
		if err != nil {
			return err
		}
		if !legal(locked.Status) {
			return invalidScheduleTransition(locked.Status, target)
		}
		locked.Status = target
		*s = *locked
		return tx.SaveScheduleStatus(c.Request.Context(), s.ID, target)
	})
	if err != nil {
		response.FromError(c, err, "failed to change schedule status")
		return
	}
	if target == models.SchedulePublished {
		h.notifyAssignedOfficers(c, s)
	}
	h.activity.Record(c.Request.Context(), s.OrganizationID, userID, action, models.SubjectSchedule, s.ID, nil, s.Title)
	response.OK(c, s)
}

func (h *Handler) notifyAssignedOfficers(c *gin.Context, s *models.DutySchedule) {
	assignments, err := h.repo.Assignments(c.Request.Context(), s.ID)
	if err != nil {
		h.logger.Warn("failed to load assignments for publish notifications", zap.Error(err))
		return
	}
	for _, a := range assignments {
		if a.Status == models.AssignmentDeclined {
			continue
		}
		h.notify(c, queue.NotificationPayload{
			Kind:           queue.NotifySchedulePublished,
			OrganizationID: s.OrganizationID,
			RecipientID:    a.OfficerID,
			Subject:        s.Title,
			Metadata:       map[string]string{"schedule_id": s.ID.String(), "date": s.Date.Format("2006-01-02")},
		})
	}
}

// AssignRequest is the body for adding an officer to a schedule.
type AssignRequest struct {
	OfficerID uuid.UUID `json:"officer_id" binding:"required"`
}

// Assign handles POST .../schedules/:scheduleId/assignments.
func (h *Handler) Assign(c *gin.Context) {
	s, ok := h.loadSchedule(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body AssignRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "officer_id required")
		return
	}
	a := &models.DutyAssignment{
		ScheduleID: s.ID,
		OfficerID:  body.OfficerID,
		Status:     models.AssignmentAssigned,
		AssignedBy: userID,
	}
	if err := h.repo.CreateAssignment(c.Request.Context(), a); err != nil {
		response.FromError(c, err, "failed to assign officer")
		return
	}
	h.activity.Record(c.Request.Context(), s.OrganizationID, userID, "duty_officer_assigned", models.SubjectAssignment, a.ID,
		map[string]any{"officer_id": body.OfficerID.String(), "schedule_id": s.ID.String()}, "")
	response.Created(c, a)
}

// RemoveAssignment handles DELETE .../assignments/:assignmentId.
func (h *Handler) RemoveAssignment(c *gin.Context) {
	s, a, ok := h.loadAssignment(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.repo.DeleteAssignment(c.Request.Context(), a.ID); err != nil {
		response.FromError(c, err, "failed to remove assignment")
		return
	}
	h.activity.Record(c.Request.Context(), s.OrganizationID, userID, "duty_assignment_removed", models.SubjectAssignment, a.ID,
		map[string]any{"officer_id": a.OfficerID.String()}, "")
	response.NoContent(c)
}

// RespondRequest is the body for an officer responding to their assignment.
type RespondRequest struct {
	Accept bool `json:"accept"`
}

// Respond handles POST .../assignments/:assignmentId/respond. Officer-only
// self-service: accept confirms, otherwise declines.
func (h *Handler) Respond(c *gin.Context) {
	h.ownAssignmentTransition(c, func(a *models.DutyAssignment, now time.Time, accept bool) (string, error) {
		if accept {
			return "duty_assignment_confirmed", Confirm(a, now)
		}
		return "duty_assignment_declined", DeclineAssignment(a, now)
	})
}

func (h *Handler) ownAssignmentTransition(c *gin.Context, apply func(a *models.DutyAssignment, now time.Time, accept bool) (string, error)) {
	s, a, ok := h.loadAssignment(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if a.OfficerID != userID {
		response.Forbidden(c, "not your assignment")
		return
	}
	var body RespondRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "accept required")
		return
	}
	var action string
	err := h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		locked, err := tx.LockAssignment(c.Request.Context(), a.ID)
		if err != nil {
			return err
		}
		if locked.OfficerID != userID {
			return errNotYourAssignment
		}
		action, err = apply(locked, time.Now().UTC(), body.Accept)
		if err != nil {
			return err
		}
		*a = *locked
		return tx.SaveAssignment(c.Request.Context(), locked)
	})
	if err != nil {
		response.FromError(c, err, "failed to respond to assignment")
		return
	}
	h.activity.Record(c.Request.Context(), s.OrganizationID, userID, action, models.SubjectAssignment, a.ID, nil, "")
	response.OK(c, a)
}

// CheckIn handles POST .../assignments/:assignmentId/check-in.
func (h *Handler) CheckIn(c *gin.Context) {
	h.selfTransition(c, "duty_check_in", func(a *models.DutyAssignment, now time.Time) error {
		return CheckIn(a, now)
	})
}

// CheckOut handles POST .../assignments/:assignmentId/check-out.
func (h *Handler) CheckOut(c *gin.Context) {
	h.selfTransition(c, "duty_check_out", func(a *models.DutyAssignment, now time.Time) error {
		return CheckOut(a, now)
	})
}

func (h *Handler) selfTransition(c *gin.Context, action string, apply func(*models.DutyAssignment, time.Time) error) {
	s, a, ok := h.loadAssignment(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if a.OfficerID != userID {
		response.Forbidden(c, "not your assignment")
		return
	}
	err := h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		locked, err := tx.LockAssignment(c.Request.Context(), a.ID)
		if err != nil {
			return err
		}
		if locked.OfficerID != userID {
			return errNotYourAssignment
		}
		if err := apply(locked, time.Now().UTC()); err != nil {
			return err
		}
		*a = *locked
		return tx.SaveAssignment(c.Request.Context(), locked)
	})
	if err != nil {
		response.FromError(c, err, "failed to update assignment")
		return
	}
	h.activity.Record(c.Request.Context(), s.OrganizationID, userID, action, models.SubjectAssignment, a.ID, nil, "")
	response.OK(c, a)
}

// MarkNoShow handles POST .../assignments/:assignmentId/no-show. Manager
// action; nothing sets no_show automatically.
func (h *Handler) MarkNoShow(c *gin.Context) {
	s, a, ok := h.loadAssignment(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	err := h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		locked, err := tx.LockAssignment(c.Request.Context(), a.ID)
		if err != nil {
			return err
		}
		if err := MarkNoShow(locked, time.Now().UTC()); err != nil {
			return err
		}
		*a = *locked
		return tx.SaveAssignment(c.Request.Context(), locked)
	})
	if err != nil {
		response.FromError(c, err, "failed to mark no-show")
		return
	}
	h.activity.Record(c.Request.Context(), s.OrganizationID, userID, "duty_no_show_marked", models.SubjectAssignment, a.ID,
		map[string]any{"officer_id": a.OfficerID.String()}, "")
	response.OK(c, a)
}

// MyAssignments handles GET /organizations/:orgId/duty/assignments/mine.
func (h *Handler) MyAssignments(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.AssignmentsForOfficer(c.Request.Context(), orgID, userID)
	if err != nil {
		response.Internal(c, "failed to load assignments")
		return
	}
	response.OK(c, list)
}

// CreateSwapRequest is the body for requesting a swap.
type CreateSwapRequest struct {
	AssignmentID uuid.UUID  `json:"assignment_id" binding:"required"`
	ToOfficerID  *uuid.UUID `json:"to_officer_id"`
	Reason       string     `json:"reason"`
}

// CreateSwap handles POST /organizations/:orgId/duty/swaps. Self-service:
// the caller must own the assignment.
func (h *Handler) CreateSwap(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body CreateSwapRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "assignment_id required")
		return
	}
	if body.ToOfficerID != nil {
		target := h.resolver.Load(c.Request.Context(), orgID, *body.ToOfficerID)
		if err := validateSwapTarget(target); err != nil {
			response.FromError(c, err, "failed to create swap request")
			return
		}
	}
	var swap *models.DutySwapRequest
	err := h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		a, err := tx.LockAssignment(c.Request.Context(), body.AssignmentID)
		if err != nil {
			return err
		}
		s, err := tx.Schedule(c.Request.Context(), a.ScheduleID)
		if err != nil {
			return err
		}
		if err := requireScheduleOrg(s, orgID); err != nil {
			return err
		}
		active, err := tx.HasActiveSwap(c.Request.Context(), a.ID)
		if err != nil {
			return err
		}
		swap, err = NewSwap(a, s, userID, body.ToOfficerID, body.Reason, active, time.Now().UTC())
		if err != nil {
			return err
		}
		return tx.InsertSwap(c.Request.Context(), swap)
	})
	if err != nil {
		response.FromError(c, err, "failed to create swap request")
		return
	}
	if swap.ToOfficerID != nil {
		h.notify(c, queue.NotificationPayload{
			Kind:           queue.NotifySwapRequested,
			OrganizationID: orgID,
			RecipientID:    *swap.ToOfficerID,
			Metadata:       map[string]string{"swap_id": swap.ID.String()},
		})
	}
	h.activity.Record(c.Request.Context(), orgID, userID, "duty_swap_requested", models.SubjectSwap, swap.ID,
		map[string]any{"assignment_id": swap.AssignmentID.String(), "open": swap.ToOfficerID == nil}, swap.Reason)
	response.Created(c, swap)
}

// ListSwaps handles GET /organizations/:orgId/duty/swaps.
func (h *Handler) ListSwaps(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	list, err := h.repo.ListSwapsByOrg(c.Request.Context(), orgID)
	if err != nil {
		response.Internal(c, "failed to load swap requests")
		return
	}
	response.OK(c, list)
}

// AcceptSwap handles POST .../swaps/:swapId/accept. Open swaps race here:
// the assignment row lock makes the first acceptor win and the second see
// a non-pending swap.
func (h *Handler) AcceptSwap(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	swapID, ok := h.parseSwapID(c)
	if !ok {
		return
	}
	var swap *models.DutySwapRequest
	err := h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		locked, err := tx.LockSwap(c.Request.Context(), swapID)
		if err != nil {
			return err
		}
		a, err := tx.LockAssignment(c.Request.Context(), locked.AssignmentID)
		if err != nil {
			return err
		}
		s, err := tx.Schedule(c.Request.Context(), a.ScheduleID)
		if err != nil {
			return err
		}
		if err := requireScheduleOrg(s, orgID); err != nil {
			return err
		}
		if err := AcceptSwap(locked, a, userID, time.Now().UTC()); err != nil {
			return err
		}
		if err := tx.SaveAssignment(c.Request.Context(), a); err != nil {
			return err
		}
		swap = locked
		return tx.SaveSwap(c.Request.Context(), locked)
	})
	if err != nil {
		response.FromError(c, err, "failed to accept swap")
		return
	}
	h.notify(c, queue.NotificationPayload{
		Kind:           queue.NotifySwapAccepted,
		OrganizationID: orgID,
		RecipientID:    swap.FromOfficer,
		Metadata:       map[string]string{"swap_id": swap.ID.String()},
	})
	h.activity.Record(c.Request.Context(), orgID, userID, "duty_swap_accepted", models.SubjectSwap, swap.ID, nil, "")
	response.OK(c, swap)
}

// SwapNotesRequest carries optional notes for decline and review.
type SwapNotesRequest struct {
	Notes string `json:"notes"`
}

// DeclineSwap handles POST .../swaps/:swapId/decline. Target officer only.
func (h *Handler) DeclineSwap(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	swapID, ok := h.parseSwapID(c)
	if !ok {
		return
	}
	var body SwapNotesRequest
	_ = c.ShouldBindJSON(&body)
	var swap *models.DutySwapRequest
	err := h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		locked, err := tx.LockSwap(c.Request.Context(), swapID)
		if err != nil {
			return err
		}
		a, err := tx.LockAssignment(c.Request.Context(), locked.AssignmentID)
		if err != nil {
			return err
		}
		s, err := tx.Schedule(c.Request.Context(), a.ScheduleID)
		if err != nil {
			return err
		}
		if err := requireScheduleOrg(s, orgID); err != nil {
			return err
		}
		if err := DeclineSwap(locked, userID, body.Notes, time.Now().UTC()); err != nil {
			return err
		}
		swap = locked
		return tx.SaveSwap(c.Request.Context(), locked)
	})
	if err != nil {
		response.FromError(c, err, "failed to decline swap")
		return
	}
	h.activity.Record(c.Request.Context(), orgID, userID, "duty_swap_declined", models.SubjectSwap, swap.ID, nil, "")
	response.OK(c, swap)
}

// CancelSwap handles POST .../swaps/:swapId/cancel. Requester only.
func (h *Handler) CancelSwap(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	swapID, ok := h.parseSwapID(c)
	if !ok {
		return
	}
	var swap *models.DutySwapRequest
	err := h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		locked, err := tx.LockSwap(c.Request.Context(), swapID)
		if err != nil {
			return err
		}
		a, err := tx.LockAssignment(c.Request.Context(), locked.AssignmentID)
		if err != nil {
			return err
		}
		s, err := tx.Schedule(c.Request.Context(), a.ScheduleID)
		if err != nil {
			return err
		}
		if err := requireScheduleOrg(s, orgID); err != nil {
			return err
		}
		if err := CancelSwap(locked, userID, time.Now().UTC()); err != nil {
			return err
		}
		swap = locked
		return tx.SaveSwap(c.Request.Context(), locked)
	})
	if err != nil {
		response.FromError(c, err, "failed to cancel swap")
		return
	}
	h.activity.Record(c.Request.Context(), orgID, userID, "duty_swap_cancelled", models.SubjectSwap, swap.ID, nil, "")
	response.OK(c, swap)
}

// ReviewSwapRequest is the admin review body.
type ReviewSwapRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

// ReviewSwap handles POST .../swaps/:swapId/review. Approving an open swap
// only pre-vets it; approving a directed swap executes the reassignment.
func (h *Handler) ReviewSwap(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	swapID, ok := h.parseSwapID(c)
	if !ok {
		return
	}
	var body ReviewSwapRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "approve required")
		return
	}
	var swap *models.DutySwapRequest
	err := h.repo.Tx(c.Request.Context(), func(tx *Tx) error {
		locked, err := tx.LockSwap(c.Request.Context(), swapID)
		if err != nil {
			return err
		}
		a, err := tx.LockAssignment(c.Request.Context(), locked.AssignmentID)
		if err != nil {
			return err
		}
		s, err := tx.Schedule(c.Request.Context(), a.ScheduleID)
		if err != nil {
			return err
		}
		if err := requireScheduleOrg(s, orgID); err != nil {
			return err
		}
		if err := ReviewSwap(locked, a, userID, body.Approve, body.Notes, time.Now().UTC()); err != nil {
			return err
		}
		if err := tx.SaveAssignment(c.Request.Context(), a); err != nil {
			return err
		}
		swap = locked
		return tx.SaveSwap(c.Request.Context(), locked)
	})
	if err != nil {
		response.FromError(c, err, "failed to review swap")
		return
	}
	h.activity.Record(c.Request.Context(), orgID, userID, "duty_swap_reviewed", models.SubjectSwap, swap.ID,
		map[string]any{"approve": body.Approve, "status": string(swap.Status)}, body.Notes)
	response.OK(c, swap)
}

// MyStats handles GET /organizations/:orgId/duty/stats/me.
func (h *Handler) MyStats(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	h.officerStats(c, orgID, userID)
}

// OfficerStats handles GET /organizations/:orgId/duty/stats/officers/:officerId.
func (h *Handler) OfficerStats(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	officerID, err := uuid.Parse(c.Param("officerId"))
	if err != nil {
		response.BadRequest(c, "invalid officer id")
		return
	}
	h.officerStats(c, orgID, officerID)
}

func (h *Handler) officerStats(c *gin.Context, orgID, officerID uuid.UUID) {
	assignments, err := h.repo.AssignmentsForOfficer(c.Request.Context(), orgID, officerID)
	if err != nil {
		response.Internal(c, "failed to load assignments")
		return
	}
	response.OK(c, ComputeOfficerStats(assignments))
}

// FillRate handles GET /organizations/:orgId/duty/stats/fill-rate?from=&to=.
func (h *Handler) FillRate(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		response.BadRequest(c, "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		response.BadRequest(c, "to must be YYYY-MM-DD")
		return
	}
	if to.Before(from) {
		response.BadRequest(c, "to must not precede from")
		return
	}
	fills, err := h.repo.FillData(c.Request.Context(), orgID, from, to)
	if err != nil {
		response.Internal(c, "failed to load fill data")
		return
	}
	response.OK(c, ComputeFillRate(fills, from, to))
}

// loadSchedule reads :scheduleId and enforces org ownership.
func (h *Handler) loadSchedule(c *gin.Context) (*models.DutySchedule, bool) {
	orgID := permissions.OrgFromContext(c)
	id, err := uuid.Parse(c.Param("scheduleId"))
	if err != nil {
		response.BadRequest(c, "invalid schedule id")
		return nil, false
	}
	s, err := h.repo.GetSchedule(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err, "failed to load schedule")
		return nil, false
	}
	if s.OrganizationID != orgID {
		response.NotFound(c, "schedule not found")
		return nil, false
	}
	return s, true
}

// loadAssignment reads :assignmentId and enforces org ownership through the
// parent schedule.
func (h *Handler) loadAssignment(c *gin.Context) (*models.DutySchedule, *models.DutyAssignment, bool) {
	orgID := permissions.OrgFromContext(c)
	id, err := uuid.Parse(c.Param("assignmentId"))
	if err != nil {
		response.BadRequest(c, "invalid assignment id")
		return nil, nil, false
	}
	a, err := h.repo.GetAssignment(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err, "failed to load assignment")
		return nil, nil, false
	}
	s, err := h.repo.GetSchedule(c.Request.Context(), a.ScheduleID)
	if err != nil {
		response.FromError(c, err, "failed to load schedule")
		return nil, nil, false
	}
	if s.OrganizationID != orgID {
		response.NotFound(c, "assignment not found")
		return nil, nil, false
	}
	return s, a, true
}

func (h *Handler) parseSwapID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("swapId"))
	if err != nil {
		response.BadRequest(c, "invalid swap id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) notify(c *gin.Context, payload queue.NotificationPayload) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.EnqueueNotification(c.Request.Context(), payload); err != nil {
		h.logger.Warn("notification enqueue failed", zap.Error(err), zap.String("kind", payload.Kind))
	}
}
