package organizations

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/chapterhub/backend/internal/activity"
	"github.com/chapterhub/backend/internal/middleware"
	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/internal/permissions"
	"github.com/chapterhub/backend/pkg/response"
)

// Handler handles organization, membership, and invite endpoints.
type Handler struct {
	repo     *Repository
	perms    *permissions.Repository
	activity *activity.Logger
	pool     *pgxpool.Pool
	logger   *zap.Logger
}

// NewHandler creates an organizations handler.
func NewHandler(repo *Repository, perms *permissions.Repository, activityLog *activity.Logger, pool *pgxpool.Pool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, perms: perms, activity: activityLog, pool: pool, logger: logger}
}

// CreateRequest is the body for POST /organizations.
type CreateRequest struct {
	Name              string `json:"name" binding:"required"`
	Slug              string `json:"slug" binding:"required"`
	Description       string `json:"description"`
	AutoAcceptInvites bool   `json:"auto_accept_invites"`
	PublicProfile     bool   `json:"public_profile"`
	MemberCanInvite   bool   `json:"member_can_invite"`
}

// Create handles POST /organizations. The creator becomes the admin.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name and slug required")
		return
	}
	slug := strings.ToLower(strings.TrimSpace(body.Slug))
	if slug == "" || strings.ContainsAny(slug, " /") {
		response.BadRequest(c, "slug must be a lowercase identifier")
		return
	}
	org := &models.Organization{
		Name:              body.Name,
		Slug:              slug,
		Description:       body.Description,
		AutoAcceptInvites: body.AutoAcceptInvites,
		PublicProfile:     body.PublicProfile,
		MemberCanInvite:   body.MemberCanInvite,
	}
	if err := h.repo.Create(c.Request.Context(), org, userID); err != nil {
		response.FromError(c, err, "failed to create organization")
		return
	}
	h.activity.Record(c.Request.Context(), org.ID, userID, "organization_created", "", uuid.Nil, nil, org.Name)
	response.Created(c, org)
}

// ListMine handles GET /organizations.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load organizations")
		return
	}
	response.OK(c, list)
}

// Get handles GET /organizations/:orgId.
func (h *Handler) Get(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	org, err := h.repo.GetByID(c.Request.Context(), orgID)
	if err != nil {
		response.FromError(c, err, "failed to load organization")
		return
	}
	response.OK(c, org)
}

// Lookup handles GET /lookup/:slug for public profiles, so a
// prospective member can find an organization before joining.
func (h *Handler) Lookup(c *gin.Context) {
	org, err := h.repo.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil || !org.PublicProfile {
		response.NotFound(c, "organization not found")
		return
	}
	response.OK(c, gin.H{"id": org.ID, "name": org.Name, "slug": org.Slug, "description": org.Description})
}

// UpdateRequest is the body for PATCH /organizations/:orgId.
type UpdateRequest struct {
	Name              *string `json:"name"`
	Description       *string `json:"description"`
	AutoAcceptInvites *bool   `json:"auto_accept_invites"`
	PublicProfile     *bool   `json:"public_profile"`
	MemberCanInvite   *bool   `json:"member_can_invite"`
}

// Update handles PATCH /organizations/:orgId.
func (h *Handler) Update(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	org, err := h.repo.GetByID(c.Request.Context(), orgID)
	if err != nil {
		response.FromError(c, err, "failed to load organization")
		return
	}
	var body UpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid body")
		return
	}
	if body.Name != nil {
		org.Name = *body.Name
	}
	if body.Description != nil {
		org.Description = *body.Description
	}
	if body.AutoAcceptInvites != nil {
		org.AutoAcceptInvites = *body.AutoAcceptInvites
	}
	if body.PublicProfile != nil {
		org.PublicProfile = *body.PublicProfile
	}
	if body.MemberCanInvite != nil {
		org.MemberCanInvite = *body.MemberCanInvite
	}
	if err := h.repo.Update(c.Request.Context(), org); err != nil {
		response.Internal(c, "failed to update organization")
		return
	}
	h.activity.Record(c.Request.Context(), orgID, userID, "organization_updated", "", uuid.Nil, nil, org.Name)
	response.OK(c, org)
}

// ListMembers handles GET /organizations/:orgId/members.
func (h *Handler) ListMembers(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	members, err := h.repo.ListMembers(c.Request.Context(), orgID)
	if err != nil {
		response.Internal(c, "failed to load members")
		return
	}
	response.OK(c, members)
}

// ChangeRoleRequest is the body for changing a member's role.
type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// ChangeRole handles PATCH /organizations/:orgId/members/:userId/role.
// Promotion to admin wipes explicit grants; demotion regrants role defaults.
// The last admin can never be demoted.
func (h *Handler) ChangeRole(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var body ChangeRoleRequest
	if err := c.ShouldBindJSON(&body); err != nil || !models.ValidRole(body.Role) {
		response.BadRequest(c, "role must be admin, member, or viewer")
		return
	}
	m, err := h.repo.GetMembership(c.Request.Context(), orgID, targetID)
	if err != nil {
		response.FromError(c, err, "failed to load membership")
		return
	}
	if m.Role == body.Role {
		response.OK(c, m)
		return
	}
	if err := h.repo.ChangeRole(c.Request.Context(), orgID, targetID, body.Role, actorID); err != nil {
		response.FromError(c, err, "failed to change role")
		return
	}
	h.activity.Record(c.Request.Context(), orgID, actorID, "member_role_changed", models.SubjectMembership, m.ID,
		map[string]any{"user_id": targetID.String(), "from": m.Role, "to": body.Role}, "")
	m.Role = body.Role
	response.OK(c, m)
}

// RemoveMember handles DELETE /organizations/:orgId/members/:userId.
func (h *Handler) RemoveMember(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	m, err := h.repo.GetMembership(c.Request.Context(), orgID, targetID)
	if err != nil {
		response.FromError(c, err, "failed to load membership")
		return
	}
	if err := h.repo.RemoveMember(c.Request.Context(), orgID, targetID); err != nil {
		response.FromError(c, err, "failed to remove member")
		return
	}
	h.activity.Record(c.Request.Context(), orgID, actorID, "member_removed", models.SubjectMembership, m.ID,
		map[string]any{"user_id": targetID.String()}, "")
	response.NoContent(c)
}

// Leave handles POST /organizations/:orgId/leave. Implicit member action;
// the last admin must hand off before leaving.
func (h *Handler) Leave(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	m, err := h.repo.GetMembership(c.Request.Context(), orgID, userID)
	if err != nil {
		response.FromError(c, err, "failed to load membership")
		return
	}
	if err := h.repo.RemoveMember(c.Request.Context(), orgID, userID); err != nil {
		response.FromError(c, err, "failed to leave organization")
		return
	}
	h.activity.Record(c.Request.Context(), orgID, userID, "member_left", models.SubjectMembership, m.ID, nil, "")
	response.NoContent(c)
}

// InviteRequest is the body for POST /organizations/:orgId/invites.
type InviteRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role"`
}

// CreateInvite handles POST /organizations/:orgId/invites. Members without
// the invite permission may still invite when the organization allows it.
// With auto-accept enabled and a registered invitee, the membership is
// created immediately.
func (h *Handler) CreateInvite(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	mc := permissions.MemberFromContext(c)
	org, err := h.repo.GetByID(c.Request.Context(), orgID)
	if err != nil {
		response.FromError(c, err, "failed to load organization")
		return
	}
	if !permissions.Authorize(mc, permissions.PermInviteMembers) && !org.MemberCanInvite {
		response.ForbiddenPermission(c, permissions.PermInviteMembers)
		return
	}
	var body InviteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "a valid email is required")
		return
	}
	role := body.Role
	if role == "" {
		role = models.RoleMember
	}
	if !models.ValidRole(role) {
		response.BadRequest(c, "role must be admin, member, or viewer")
		return
	}
	if role == models.RoleAdmin && !mc.Admin() {
		response.Forbidden(c, "only admins may invite admins")
		return
	}
	inv := &models.Invite{
		OrganizationID: orgID,
		Email:          strings.ToLower(strings.TrimSpace(body.Email)),
		Role:           role,
		InvitedBy:      userID,
		Status:         models.InviteStatusPending,
	}
	if err := h.repo.CreateInvite(c.Request.Context(), inv); err != nil {
		response.FromError(c, err, "failed to create invite")
		return
	}
	h.activity.Record(c.Request.Context(), orgID, userID, "invite_created", "", uuid.Nil,
		map[string]any{"email": inv.Email, "role": inv.Role}, "")

	if org.AutoAcceptInvites {
		if inviteeID, err := h.findUserByEmail(c.Request.Context(), inv.Email); err == nil {
			m, err := h.repo.ResolveInvite(c.Request.Context(), inv, true, inviteeID)
			if err != nil {
				h.logger.Warn("auto-accept failed", zap.Error(err), zap.String("invite_id", inv.ID.String()))
			} else {
				h.applyDefaultGrants(c, orgID, inviteeID, m.Role, inv.InvitedBy)
			}
		}
	}
	response.Created(c, inv)
}

// ListInvites handles GET /organizations/:orgId/invites.
func (h *Handler) ListInvites(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	list, err := h.repo.ListInvites(c.Request.Context(), orgID)
	if err != nil {
		response.Internal(c, "failed to load invites")
		return
	}
	response.OK(c, list)
}

// MyInvites handles GET /invites: pending invites addressed to the caller.
func (h *Handler) MyInvites(c *gin.Context) {
	email := c.MustGet(middleware.ContextUserEmail).(string)
	list, err := h.repo.ListInvitesForEmail(c.Request.Context(), strings.ToLower(email))
	if err != nil {
		response.Internal(c, "failed to load invites")
		return
	}
	response.OK(c, list)
}

// RespondInviteRequest is the body for accepting or declining an invite.
type RespondInviteRequest struct {
	Accept bool `json:"accept"`
}

// RespondInvite handles POST /invites/:inviteId/respond. Only the invited
// email's owner may respond. Acceptance creates the membership with the
// invite's role and its default grants.
func (h *Handler) RespondInvite(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	email := strings.ToLower(c.MustGet(middleware.ContextUserEmail).(string))
	inviteID, err := uuid.Parse(c.Param("inviteId"))
	if err != nil {
		response.BadRequest(c, "invalid invite id")
		return
	}
	var body RespondInviteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "accept required")
		return
	}
	inv, err := h.repo.GetInvite(c.Request.Context(), inviteID)
	if err != nil {
		response.FromError(c, err, "failed to load invite")
		return
	}
	if inv.Email != email {
		response.Forbidden(c, "invite addressed to another email")
		return
	}
	m, err := h.repo.ResolveInvite(c.Request.Context(), inv, body.Accept, userID)
	if err != nil {
		response.FromError(c, err, "failed to respond to invite")
		return
	}
	if body.Accept {
		h.applyDefaultGrants(c, inv.OrganizationID, userID, m.Role, inv.InvitedBy)
		h.activity.Record(c.Request.Context(), inv.OrganizationID, userID, "invite_accepted", models.SubjectMembership, m.ID, nil, "")
		response.OK(c, gin.H{"invite": inv, "membership": m})
		return
	}
	response.OK(c, inv)
}

// JoinBySlug handles POST /join/:slug. Open self-service join
// for public organizations that auto-accept.
func (h *Handler) JoinBySlug(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	org, err := h.repo.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil || !org.PublicProfile || !org.AutoAcceptInvites {
		response.NotFound(c, "organization not open for joining")
		return
	}
	m, err := h.repo.AddMember(c.Request.Context(), org.ID, userID, models.RoleMember)
	if err != nil {
		response.FromError(c, err, "failed to join organization")
		return
	}
	h.applyDefaultGrants(c, org.ID, userID, m.Role, userID)
	h.activity.Record(c.Request.Context(), org.ID, userID, "member_joined", models.SubjectMembership, m.ID, nil, "")
	response.Created(c, m)
}

func (h *Handler) applyDefaultGrants(c *gin.Context, orgID, userID uuid.UUID, role string, grantedBy uuid.UUID) {
	if err := h.perms.ApplyDefaults(c.Request.Context(), orgID, userID, role, grantedBy); err != nil {
		h.logger.Warn("default grants failed", zap.Error(err),
			zap.String("org_id", orgID.String()), zap.String("user_id", userID.String()))
	}
}

func (h *Handler) findUserByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	var id uuid.UUID
	err := h.pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, err
	}
	return id, err
}
