package permissions

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chapterhub/backend/internal/activity"
	"github.com/chapterhub/backend/internal/middleware"
	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/pkg/response"
)

// Handler exposes the permission catalog and grant management endpoints.
type Handler struct {
	repo     *Repository
	resolver *Resolver
	activity *activity.Logger
}

// NewHandler creates a permissions handler.
func NewHandler(repo *Repository, resolver *Resolver, activityLog *activity.Logger) *Handler {
	return &Handler{repo: repo, resolver: resolver, activity: activityLog}
}

// GetCatalog handles GET /organizations/:orgId/permissions.
func (h *Handler) GetCatalog(c *gin.Context) {
	response.OK(c, Catalog)
}

// MemberPermissions is the response for a member's effective permissions.
type MemberPermissions struct {
	UserID   uuid.UUID                `json:"user_id"`
	Role     string                   `json:"role"`
	Admin    bool                     `json:"admin"`
	Grants   []models.PermissionGrant `json:"grants"`
	Implicit []string                 `json:"implicit"`
}

// GetMemberPermissions handles GET /organizations/:orgId/members/:userId/permissions.
func (h *Handler) GetMemberPermissions(c *gin.Context) {
	orgID := OrgFromContext(c)
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	mc := h.resolver.Load(c.Request.Context(), orgID, userID)
	if !mc.Member() {
		response.NotFound(c, "member not found")
		return
	}
	grants, err := h.repo.ListGrants(c.Request.Context(), orgID, userID)
	if err != nil {
		response.Internal(c, "failed to load grants")
		return
	}
	response.OK(c, MemberPermissions{
		UserID: userID,
		Role:   mc.Role,
		Admin:  mc.Admin(),
		Grants: grants,
		Implicit: []string{
			ImplicitViewOwnAssignments,
			ImplicitManageOwnAvailability,
			ImplicitRequestDutySwap,
			ImplicitDutyCheckInOut,
			ImplicitRespondToAssignment,
			ImplicitLeaveOrganization,
			ImplicitViewOwnStatistics,
		},
	})
}

// GrantRequest is the body for granting a single permission.
type GrantRequest struct {
	Permission string `json:"permission" binding:"required"`
}

// Grant handles POST /organizations/:orgId/members/:userId/permissions.
func (h *Handler) Grant(c *gin.Context) {
	orgID := OrgFromContext(c)
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var body GrantRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "permission required")
		return
	}
	if !Known(body.Permission) {
		response.BadRequest(c, "unknown permission")
		return
	}
	target := h.resolver.Load(c.Request.Context(), orgID, userID)
	if !target.Member() {
		response.NotFound(c, "member not found")
		return
	}
	if target.Admin() {
		response.Conflict(c, "admins bypass permission grants")
		return
	}
	if err := h.repo.Grant(c.Request.Context(), orgID, userID, body.Permission, actorID); err != nil {
		response.Internal(c, "failed to grant permission")
		return
	}
	h.activity.Record(c.Request.Context(), orgID, actorID, "permission_granted", models.SubjectGrant, userID,
		map[string]any{"permission": body.Permission, "user_id": userID.String()}, "")
	response.NoContent(c)
}

// Revoke handles DELETE /organizations/:orgId/members/:userId/permissions/:permission.
func (h *Handler) Revoke(c *gin.Context) {
	orgID := OrgFromContext(c)
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	perm := c.Param("permission")
	if !Known(perm) {
		response.BadRequest(c, "unknown permission")
		return
	}
	if err := h.repo.Revoke(c.Request.Context(), orgID, userID, perm); err != nil {
		response.Internal(c, "failed to revoke permission")
		return
	}
	h.activity.Record(c.Request.Context(), orgID, actorID, "permission_revoked", models.SubjectGrant, userID,
		map[string]any{"permission": perm, "user_id": userID.String()}, "")
	response.NoContent(c)
}

// SyncRequest is the body for replacing a member's grants wholesale.
type SyncRequest struct {
	Permissions []string `json:"permissions" binding:"required"`
}

// Sync handles PUT /organizations/:orgId/members/:userId/permissions.
func (h *Handler) Sync(c *gin.Context) {
	orgID := OrgFromContext(c)
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var body SyncRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "permissions required")
		return
	}
	for _, p := range body.Permissions {
		if !Known(p) {
			response.BadRequest(c, "unknown permission: "+p)
			return
		}
	}
	target := h.resolver.Load(c.Request.Context(), orgID, userID)
	if !target.Member() {
		response.NotFound(c, "member not found")
		return
	}
	if target.Admin() {
		response.Conflict(c, "admins bypass permission grants")
		return
	}
	if err := h.repo.Sync(c.Request.Context(), orgID, userID, body.Permissions, actorID); err != nil {
		response.Internal(c, "failed to sync permissions")
		return
	}
	h.activity.Record(c.Request.Context(), orgID, actorID, "permissions_synced", models.SubjectGrant, userID,
		map[string]any{"permissions": body.Permissions, "user_id": userID.String()}, "")
	response.NoContent(c)
}
