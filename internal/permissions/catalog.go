package permissions

import "github.com/chapterhub/backend/internal/models"

// Permission categories.
const (
	CategoryMembers       = "members"
	CategoryOrganization  = "organization"
	CategoryAnnouncements = "announcements"
	CategoryStorage       = "storage"
	CategoryReviews       = "reviews"
	CategoryDuty          = "duty"
	CategoryAnalytics     = "analytics"
	CategoryAdvanced      = "advanced"
)

// Grantable permission keys. Admins bypass all of these.
const (
	PermViewMembers   = "view_members"
	PermInviteMembers = "invite_members"
	PermRemoveMembers = "remove_members"
	PermManageRoles   = "manage_roles"

	PermViewOrganization   = "view_organization"
	PermUpdateOrganization = "update_organization"
	PermManageSettings     = "manage_settings"

	PermViewAnnouncements   = "view_announcements"
	PermManageAnnouncements = "manage_announcements"

	PermViewDocuments   = "view_documents"
	PermUploadDocuments = "upload_documents"
	PermDeleteDocuments = "delete_documents"

	PermViewReviews   = "view_reviews"
	PermCreateReviews = "create_reviews"
	PermManageReviews = "manage_reviews"

	PermViewDutySchedules   = "view_duty_schedules"
	PermManageDutySchedules = "manage_duty_schedules"
	PermManageAssignments   = "manage_assignments"
	PermReviewSwaps         = "review_duty_swaps"

	PermViewDutyStatistics = "view_duty_statistics"
	PermViewActivityLog    = "view_activity_log"

	PermManagePermissions = "manage_permissions"
	PermExportData        = "export_data"
)

// Catalog is the static permission catalog, grouped by category.
var Catalog = []models.Permission{
	{Key: PermViewMembers, Category: CategoryMembers, Description: "View the member list"},
	{Key: PermInviteMembers, Category: CategoryMembers, Description: "Invite new members"},
	{Key: PermRemoveMembers, Category: CategoryMembers, Description: "Remove members"},
	{Key: PermManageRoles, Category: CategoryMembers, Description: "Change member roles"},

	{Key: PermViewOrganization, Category: CategoryOrganization, Description: "View the organization profile"},
	{Key: PermUpdateOrganization, Category: CategoryOrganization, Description: "Edit the organization profile"},
	{Key: PermManageSettings, Category: CategoryOrganization, Description: "Change organization settings"},

	{Key: PermViewAnnouncements, Category: CategoryAnnouncements, Description: "Read announcements"},
	{Key: PermManageAnnouncements, Category: CategoryAnnouncements, Description: "Create and edit announcements"},

	{Key: PermViewDocuments, Category: CategoryStorage, Description: "View documents and download versions"},
	{Key: PermUploadDocuments, Category: CategoryStorage, Description: "Upload documents and new versions"},
	{Key: PermDeleteDocuments, Category: CategoryStorage, Description: "Delete documents"},

	{Key: PermViewReviews, Category: CategoryReviews, Description: "View review threads"},
	{Key: PermCreateReviews, Category: CategoryReviews, Description: "Create review threads"},
	{Key: PermManageReviews, Category: CategoryReviews, Description: "Manage review threads (close, reopen, versions)"},

	{Key: PermViewDutySchedules, Category: CategoryDuty, Description: "View duty schedules"},
	{Key: PermManageDutySchedules, Category: CategoryDuty, Description: "Create and edit duty schedules"},
	{Key: PermManageAssignments, Category: CategoryDuty, Description: "Assign and remove officers"},
	{Key: PermReviewSwaps, Category: CategoryDuty, Description: "Review duty swap requests"},

	{Key: PermViewDutyStatistics, Category: CategoryAnalytics, Description: "View duty statistics"},
	{Key: PermViewActivityLog, Category: CategoryAnalytics, Description: "View the activity log"},

	{Key: PermManagePermissions, Category: CategoryAdvanced, Description: "Grant and revoke member permissions"},
	{Key: PermExportData, Category: CategoryAdvanced, Description: "Export organization data"},
}

var catalogKeys = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Catalog))
	for _, p := range Catalog {
		m[p.Key] = struct{}{}
	}
	return m
}()

// Known reports whether key is a catalog permission. Unknown keys always
// resolve to deny.
func Known(key string) bool {
	_, ok := catalogKeys[key]
	return ok
}
