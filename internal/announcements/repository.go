package announcements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chapterhub/backend/internal/domain"
	"github.com/chapterhub/backend/internal/models"
)

// Repository handles announcement persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an announcements repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const cols = `id, organization_id, title, body, pinned, created_by, published_at, created_at, updated_at`

func scan(row pgx.Row) (*models.Announcement, error) {
	var a models.Announcement
	err := row.Scan(&a.ID, &a.OrganizationID, &a.Title, &a.Body, &a.Pinned, &a.CreatedBy,
		&a.PublishedAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: announcement", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts an announcement, published immediately.
func (r *Repository) Create(ctx context.Context, a *models.Announcement) error {
	now := time.Now().UTC()
	a.PublishedAt = &now
	const q = `INSERT INTO announcements (id, organization_id, title, body, pinned, created_by, published_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, a.OrganizationID, a.Title, a.Body, a.Pinned, a.CreatedBy, a.PublishedAt).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// GetByID returns one announcement.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Announcement, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+cols+` FROM announcements WHERE id = $1`, id))
}

// ListByOrg returns an organization's announcements, pinned first then
// newest first.
func (r *Repository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]models.Announcement, error) {
	const q = `SELECT ` + cols + ` FROM announcements WHERE organization_id = $1
		ORDER BY pinned DESC, published_at DESC`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Announcement
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// Update persists title, body, and pinned state.
func (r *Repository) Update(ctx context.Context, a *models.Announcement) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE announcements SET title = $2, body = $3, pinned = $4, updated_at = now() WHERE id = $1`,
		a.ID, a.Title, a.Body, a.Pinned)
	return err
}

// Delete removes an announcement.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: announcement", domain.ErrNotFound)
	}
	return nil
}
