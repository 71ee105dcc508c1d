package activity

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chapterhub/backend/pkg/response"
)

// Handler exposes the activity feed.
type Handler struct {
	repo *Repository
}

// NewHandler creates an activity handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// ListByOrg handles GET /organizations/:orgId/activity.
func (h *Handler) ListByOrg(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("orgId"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.repo.ListByOrg(c.Request.Context(), orgID, limit)
	if err != nil {
		response.Internal(c, "failed to load activity")
		return
	}
	response.OK(c, entries)
}
