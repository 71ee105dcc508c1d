package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chapterhub/backend/internal/domain"
	"github.com/chapterhub/backend/internal/models"
)

// Repository handles document and version persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a documents repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a document without any version yet.
func (r *Repository) Create(ctx context.Context, d *models.Document) error {
	const q = `INSERT INTO documents (id, organization_id, title, description, created_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, d.OrganizationID, d.Title, d.Description, d.CreatedBy).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

// GetByID returns one document.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	const q = `SELECT id, organization_id, title, COALESCE(description,''), created_by, current_version_id, created_at, updated_at
		FROM documents WHERE id = $1`
	var d models.Document
	err := r.pool.QueryRow(ctx, q, id).Scan(&d.ID, &d.OrganizationID, &d.Title, &d.Description,
		&d.CreatedBy, &d.CurrentVersionID, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: document", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListByOrg returns an organization's documents, newest first.
func (r *Repository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]models.Document, error) {
	const q = `SELECT id, organization_id, title, COALESCE(description,''), created_by, current_version_id, created_at, updated_at
		FROM documents WHERE organization_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.OrganizationID, &d.Title, &d.Description,
			&d.CreatedBy, &d.CurrentVersionID, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// AddVersion inserts the next version for a document and repoints the
// document's current version, atomically.
func (r *Repository) AddVersion(ctx context.Context, v *models.DocumentVersion) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const next = `SELECT COALESCE(MAX(version), 0) + 1 FROM document_versions WHERE document_id = $1`
	if err := tx.QueryRow(ctx, next, v.DocumentID).Scan(&v.Version); err != nil {
		return err
	}
	const ins = `INSERT INTO document_versions (id, document_id, version, storage_key, file_name, content_type, size_bytes, uploaded_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	if err := tx.QueryRow(ctx, ins, v.DocumentID, v.Version, v.StorageKey, v.FileName, v.ContentType, v.SizeBytes, v.UploadedBy).
		Scan(&v.ID, &v.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE documents SET current_version_id = $2, updated_at = NOW() WHERE id = $1`, v.DocumentID, v.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetVersion returns one version of a document.
func (r *Repository) GetVersion(ctx context.Context, documentID, versionID uuid.UUID) (*models.DocumentVersion, error) {
	const q = `SELECT id, document_id, version, storage_key, file_name, content_type, size_bytes, uploaded_by, created_at
		FROM document_versions WHERE id = $1 AND document_id = $2`
	var v models.DocumentVersion
	err := r.pool.QueryRow(ctx, q, versionID, documentID).Scan(&v.ID, &v.DocumentID, &v.Version,
		&v.StorageKey, &v.FileName, &v.ContentType, &v.SizeBytes, &v.UploadedBy, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: document version", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVersions returns a document's versions, newest first.
func (r *Repository) ListVersions(ctx context.Context, documentID uuid.UUID) ([]models.DocumentVersion, error) {
	const q = `SELECT id, document_id, version, storage_key, file_name, content_type, size_bytes, uploaded_by, created_at
		FROM document_versions WHERE document_id = $1 ORDER BY version DESC`
	rows, err := r.pool.Query(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.DocumentVersion
	for rows.Next() {
		var v models.DocumentVersion
		if err := rows.Scan(&v.ID, &v.DocumentID, &v.Version, &v.StorageKey, &v.FileName,
			&v.ContentType, &v.SizeBytes, &v.UploadedBy, &v.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}
