package permissions

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chapterhub/backend/internal/middleware"
	"github.com/chapterhub/backend/pkg/response"
)

// ContextOrganizationID is the context key for the resolved organization ID.
const ContextOrganizationID = "organization_id"

// ContextMember is the context key for the loaded MemberContext snapshot.
const ContextMember = "member_context"

// RequireMember validates the :orgId route param and requires the current
// user to be a member of that organization. Call after JWT. Stores the
// loaded MemberContext for downstream permission checks.
func RequireMember(resolver *Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := uuid.Parse(c.Param("orgId"))
		if err != nil {
			response.BadRequest(c, "invalid organization id")
			c.Abort()
			return
		}
		userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		mc := resolver.Load(c.Request.Context(), orgID, userID)
		if !mc.Member() {
			response.Forbidden(c, "not a member of this organization")
			c.Abort()
			return
		}
		c.Set(ContextOrganizationID, orgID)
		c.Set(ContextMember, mc)
		c.Next()
	}
}

// RequirePermission requires the named permission on top of membership.
// Call after RequireMember. Admin bypass happens inside Authorize; no call
// site checks roles directly.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		mc := c.MustGet(ContextMember).(MemberContext)
		if !Authorize(mc, permission) {
			response.ForbiddenPermission(c, permission)
			c.Abort()
			return
		}
		c.Next()
	}
}

// MemberFromContext returns the snapshot stored by RequireMember.
func MemberFromContext(c *gin.Context) MemberContext {
	return c.MustGet(ContextMember).(MemberContext)
}

// OrgFromContext returns the organization ID stored by RequireMember.
func OrgFromContext(c *gin.Context) uuid.UUID {
	return c.MustGet(ContextOrganizationID).(uuid.UUID)
}
