package models

import (
	"time"

	"github.com/google/uuid"
)

// Document is a reviewable artifact owned by an organization. File contents
// live in object storage; the platform stores keys only.
type Document struct {
	ID               uuid.UUID  `json:"id"`
	OrganizationID   uuid.UUID  `json:"organization_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	CreatedBy        uuid.UUID  `json:"created_by"`
	CurrentVersionID *uuid.UUID `json:"current_version_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// DocumentVersion is one uploaded revision of a document.
type DocumentVersion struct {
	ID          uuid.UUID `json:"id"`
	DocumentID  uuid.UUID `json:"document_id"`
	Version     int       `json:"version"`
	StorageKey  string    `json:"storage_key"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedBy  uuid.UUID `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}
