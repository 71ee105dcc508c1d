package documents

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chapterhub/backend/internal/activity"
	"github.com/chapterhub/backend/internal/middleware"
	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/internal/permissions"
	"github.com/chapterhub/backend/pkg/response"
	"github.com/chapterhub/backend/pkg/storage"
)

// Handler handles document HTTP endpoints. Uploads go straight to S3 via
// pre-signed URLs; the API only records keys.
type Handler struct {
	repo     *Repository
	s3       *storage.S3
	activity *activity.Logger
}

// NewHandler creates a documents handler. s3 may be nil when object storage
// is not configured; upload endpoints then return 503.
func NewHandler(repo *Repository, s3 *storage.S3, activityLog *activity.Logger) *Handler {
	return &Handler{repo: repo, s3: s3, activity: activityLog}
}

// CreateRequest is the body for POST /organizations/:orgId/documents.
type CreateRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

// Create handles POST /organizations/:orgId/documents.
func (h *Handler) Create(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "title required")
		return
	}
	doc := &models.Document{
		OrganizationID: orgID,
		Title:          body.Title,
		Description:    body.Description,
		CreatedBy:      userID,
	}
	if err := h.repo.Create(c.Request.Context(), doc); err != nil {
		response.Internal(c, "failed to create document")
		return
	}
	h.activity.Record(c.Request.Context(), orgID, userID, "document_created", models.SubjectDocument, doc.ID, nil, doc.Title)
	response.Created(c, doc)
}

// List handles GET /organizations/:orgId/documents.
func (h *Handler) List(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	docs, err := h.repo.ListByOrg(c.Request.Context(), orgID)
	if err != nil {
		response.Internal(c, "failed to load documents")
		return
	}
	response.OK(c, docs)
}

// Get handles GET /organizations/:orgId/documents/:id, including versions.
func (h *Handler) Get(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	doc, ok := h.loadOrgDocument(c, orgID)
	if !ok {
		return
	}
	versions, err := h.repo.ListVersions(c.Request.Context(), doc.ID)
	if err != nil {
		response.Internal(c, "failed to load versions")
		return
	}
	response.OK(c, gin.H{"document": doc, "versions": versions})
}

// UploadURLRequest is the body for requesting a pre-signed version upload.
type UploadURLRequest struct {
	FileName string `json:"file_name" binding:"required"`
}

// GenerateUploadURL handles POST /organizations/:orgId/documents/:id/versions/upload-url.
func (h *Handler) GenerateUploadURL(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "object storage not configured")
		return
	}
	orgID := permissions.OrgFromContext(c)
	doc, ok := h.loadOrgDocument(c, orgID)
	if !ok {
		return
	}
	var body UploadURLRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "file_name required")
		return
	}
	if !storage.ValidateDocumentFileType("", body.FileName) {
		response.BadRequest(c, "unsupported file type")
		return
	}
	versionID := uuid.New()
	key := storage.DocumentKey(doc.ID.String(), versionID.String(), body.FileName)
	contentType := storage.ContentTypeForFilename(body.FileName)
	url, err := h.s3.GeneratePresignedUploadURL(c.Request.Context(), key, contentType, h.s3.PresignExpire())
	if err != nil {
		response.Internal(c, "failed to generate upload URL")
		return
	}
	response.OK(c, gin.H{"upload_url": url, "storage_key": key, "content_type": contentType})
}

// AddVersionRequest confirms a completed upload and records the version.
type AddVersionRequest struct {
	StorageKey  string `json:"storage_key" binding:"required"`
	FileName    string `json:"file_name" binding:"required"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// AddVersion handles POST /organizations/:orgId/documents/:id/versions.
func (h *Handler) AddVersion(c *gin.Context) {
	orgID := permissions.OrgFromContext(c)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	doc, ok := h.loadOrgDocument(c, orgID)
	if !ok {
		return
	}
	var body AddVersionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "storage_key and file_name required")
		return
	}
	if body.SizeBytes > storage.MaxDocumentFileSize {
		response.BadRequest(c, "file too large")
		return
	}
	v := &models.DocumentVersion{
		DocumentID:  doc.ID,
		StorageKey:  body.StorageKey,
		FileName:    body.FileName,
		ContentType: body.ContentType,
		SizeBytes:   body.SizeBytes,
		UploadedBy:  userID,
	}
	if err := h.repo.AddVersion(c.Request.Context(), v); err != nil {
		response.Internal(c, "failed to record version")
		return
	}
	h.activity.Record(c.Request.Context(), orgID, userID, "document_version_uploaded", models.SubjectDocument, doc.ID,
		map[string]any{"version": v.Version, "file_name": v.FileName}, "")
	response.Created(c, v)
}

// GenerateDownloadURL handles GET /organizations/:orgId/documents/:id/versions/:versionId/download-url.
func (h *Handler) GenerateDownloadURL(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "object storage not configured")
		return
	}
	orgID := permissions.OrgFromContext(c)
	doc, ok := h.loadOrgDocument(c, orgID)
	if !ok {
		return
	}
	versionID, err := uuid.Parse(c.Param("versionId"))
	if err != nil {
		response.BadRequest(c, "invalid version id")
		return
	}
	v, err := h.repo.GetVersion(c.Request.Context(), doc.ID, versionID)
	if err != nil {
		response.FromError(c, err, "failed to load version")
		return
	}
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), v.StorageKey, h.s3.PresignExpire())
	if err != nil {
		response.Internal(c, "failed to generate download URL")
		return
	}
	response.OK(c, gin.H{"download_url": url, "file_name": v.FileName})
}

func (h *Handler) loadOrgDocument(c *gin.Context, orgID uuid.UUID) (*models.Document, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid document id")
		return nil, false
	}
	doc, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err, "failed to load document")
		return nil, false
	}
	if doc.OrganizationID != orgID {
		response.NotFound(c, "document not found")
		return nil, false
	}
	return doc, true
}
