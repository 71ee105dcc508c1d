package announcements

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chapterhub/backend/internal/activity"
	"github.com/chapterhub/backend/internal/middleware"
	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/internal/permissions"
	"github.com/chapterhub/backend/pkg/response"
)

// Handler handles announcement endpoints.
type Handler struct {
	repo     *Repository
	activity *activity.Logger
}

// NewHandler creates an announcements handler.
func NewHandler(repo *Repository, activityLog *activity.Logger) *Handler {
	return &Handler{repo: repo, activity: activityLog}
}

// CreateRequest is the body for POST /organizations/:orgId/announcements.
type CreateRequest struct {
	Title  string `json:"title" binding:"required"`
	Body   string `json:"body" binding:"required"`
	Pinned bool   `json:"pinned"`
}

// Create handles POST /organizations/:orgId/announcements.
func (h *Handler) Create(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "title and body required")
		return
	}
	a := &models.Announcement{
		OrganizationID: orgID,
		Title:          body.Title,
		Body:           body.Body,
		Pinned:         body.Pinned,
		CreatedBy:      userID,
	}
	if err := h.repo.Create(c.Request.Context(), a); err != nil {
		response.Internal(c, "failed to create announcement")
		return
	}
	h.activity.Record(c.Request.Context(), orgID, userID, "announcement_created", "", uuid.Nil, nil, a.Title)
	response.Created(c, a)
}

// List handles GET /organizations/:orgId/announcements.
func (h *Handler) List(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	list, err := h.repo.ListByOrg(c.Request.Context(), orgID)
	if err != nil {
		response.Internal(c, "failed to load announcements")
		return
	}
	response.OK(c, list)
}

// UpdateRequest is the body for PATCH on an announcement.
type UpdateRequest struct {
	Title  *string `json:"title"`
	Body   *string `json:"body"`
	Pinned *bool   `json:"pinned"`
}

// Update handles PATCH /organizations/:orgId/announcements/:announcementId.
func (h *Handler) Update(c *gin.Context) {
	a, ok := h.load(c)
	if !ok {
		return
	}
	var body UpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid body")
		return
	}
	if body.Title != nil {
		a.Title = *body.Title
	}
	if body.Body != nil {
		a.Body = *body.Body
	}
	if body.Pinned != nil {
		a.Pinned = *body.Pinned
	}
	if err := h.repo.Update(c.Request.Context(), a); err != nil {
		response.Internal(c, "failed to update announcement")
		return
	}
	response.OK(c, a)
}

// Delete handles DELETE /organizations/:orgId/announcements/:announcementId.
func (h *Handler) Delete(c *gin.Context) {
	a, ok := h.load(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.repo.Delete(c.Request.Context(), a.ID); err != nil {
		response.FromError(c, err, "failed to delete announcement")
		return
	}
	h.activity.Record(c.Request.Context(), a.OrganizationID, userID, "announcement_deleted", "", uuid.Nil, nil, a.Title)
	response.NoContent(c)
}

func (h *Handler) load(c *gin.Context) (*models.Announcement, bool) {
	orgID := permissions.OrgFromContext(c)
	id, err := uuid.Parse(c.Param("announcementId"))
	if err != nil {
		response.BadRequest(c, "invalid announcement id")
		return nil, false
	}
	a, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err, "failed to load announcement")
		return nil, false
	}
	if a.OrganizationID != orgID {
		response.NotFound(c, "announcement not found")
		return nil, false
	}
	return a, true
}
