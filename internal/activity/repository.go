// Package activity provides the append-only organization activity feed.
// Engines record entries after every state change; writes are best-effort
// and never fail the primary transition.
package activity

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/chapterhub/backend/internal/models"
)

// Repository persists activity entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an activity repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one entry. Entries are never updated or deleted.
func (r *Repository) Insert(ctx context.Context, e *models.ActivityEntry) error {
	const q = `INSERT INTO activity_entries (id, organization_id, actor_id, action, subject_kind, subject_id, metadata, description)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	meta := e.Metadata
	if meta == nil {
		meta = json.RawMessage(`{}`)
	}
	return r.pool.QueryRow(ctx, q, e.OrganizationID, e.ActorID, e.Action, e.SubjectKind, e.SubjectID, meta, e.Description).
		Scan(&e.ID, &e.CreatedAt)
}

// ListByOrg returns the newest entries for an organization.
func (r *Repository) ListByOrg(ctx context.Context, orgID uuid.UUID, limit int) ([]models.ActivityEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const q = `SELECT id, organization_id, actor_id, action, COALESCE(subject_kind,''), subject_id, metadata, COALESCE(description,''), created_at
		FROM activity_entries WHERE organization_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ActivityEntry
	for rows.Next() {
		var e models.ActivityEntry
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.ActorID, &e.Action, &e.SubjectKind, &e.SubjectID, &e.Metadata, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// Logger records entries without surfacing failures. A failed write is
// logged at Warn and swallowed so the triggering transition still commits.
type Logger struct {
	repo   *Repository
	logger *zap.Logger
}

// NewLogger creates a best-effort activity logger.
func NewLogger(repo *Repository, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{repo: repo, logger: logger}
}

// Record appends an entry with a (kind, id) subject pair and JSON metadata.
func (l *Logger) Record(ctx context.Context, orgID, actorID uuid.UUID, action, subjectKind string, subjectID uuid.UUID, metadata map[string]any, description string) {
	var meta json.RawMessage
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			meta = b
		}
	}
	var subject *uuid.UUID
	if subjectID != uuid.Nil {
		subject = &subjectID
	}
	entry := &models.ActivityEntry{
		OrganizationID: orgID,
		ActorID:        actorID,
		Action:         action,
		SubjectKind:    subjectKind,
		SubjectID:      subject,
		Metadata:       meta,
		Description:    description,
	}
	if err := l.repo.Insert(ctx, entry); err != nil {
		l.logger.Warn("activity write failed",
			zap.String("action", action),
			zap.String("org_id", orgID.String()),
			zap.Error(err),
		)
	}
}
