package reviews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chapterhub/backend/internal/domain"
	"github.com/chapterhub/backend/internal/models"
)

// Repository handles review persistence. Every state transition runs inside
// one transaction with the thread row locked, so two concurrent reviewer
// responses serialize instead of interleaving.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a reviews repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reviewCols = `id, organization_id, document_id, version_id, submitted_by, subject, COALESCE(body,''), status, due_date, created_at, updated_at`

func scanReview(row pgx.Row) (*models.ReviewRequest, error) {
	var r models.ReviewRequest
	err := row.Scan(&r.ID, &r.OrganizationID, &r.DocumentID, &r.VersionID, &r.SubmittedBy,
		&r.Subject, &r.Body, &r.Status, &r.DueDate, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: review", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts a draft thread and its initial recipients atomically.
func (r *Repository) Create(ctx context.Context, req *models.ReviewRequest, reviewerIDs []uuid.UUID) ([]models.ReviewRecipient, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO review_requests (id, organization_id, document_id, version_id, submitted_by, subject, body, status, due_date)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, q, req.OrganizationID, req.DocumentID, req.VersionID, req.SubmittedBy,
		req.Subject, req.Body, req.Status, req.DueDate).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return nil, err
	}

	var recipients []models.ReviewRecipient
	const ins = `INSERT INTO review_recipients (id, review_id, reviewer_id, status, due_date)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	for _, reviewerID := range reviewerIDs {
		rec := models.ReviewRecipient{
			ReviewID:   req.ID,
			ReviewerID: reviewerID,
			Status:     models.RecipientPending,
			DueDate:    req.DueDate,
		}
		err := tx.QueryRow(ctx, ins, req.ID, reviewerID, rec.Status, rec.DueDate).
			Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: duplicate recipient", domain.ErrConflict)
			}
			return nil, err
		}
		recipients = append(recipients, rec)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return recipients, nil
}

// GetByID returns one thread.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReviewRequest, error) {
	return scanReview(r.pool.QueryRow(ctx, `SELECT `+reviewCols+` FROM review_requests WHERE id = $1`, id))
}

// ListByOrg returns threads for an organization, newest first.
func (r *Repository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]models.ReviewRequest, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+reviewCols+` FROM review_requests WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ReviewRequest
	for rows.Next() {
		var req models.ReviewRequest
		if err := rows.Scan(&req.ID, &req.OrganizationID, &req.DocumentID, &req.VersionID, &req.SubmittedBy,
			&req.Subject, &req.Body, &req.Status, &req.DueDate, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, req)
	}
	return list, rows.Err()
}

// ListForReviewer returns threads where the user is a recipient.
func (r *Repository) ListForReviewer(ctx context.Context, reviewerID uuid.UUID) ([]models.ReviewRequest, error) {
	const q = `SELECT ` + reviewCols + ` FROM review_requests
		WHERE id IN (SELECT review_id FROM review_recipients WHERE reviewer_id = $1)
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, reviewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ReviewRequest
	for rows.Next() {
		var req models.ReviewRequest
		if err := rows.Scan(&req.ID, &req.OrganizationID, &req.DocumentID, &req.VersionID, &req.SubmittedBy,
			&req.Subject, &req.Body, &req.Status, &req.DueDate, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, req)
	}
	return list, rows.Err()
}

const recipientCols = `id, review_id, reviewer_id, reviewer_org_id, status, due_date, last_viewed_at, responded_at, COALESCE(decline_reason,''), created_at, updated_at`

func scanRecipient(row pgx.Row) (*models.ReviewRecipient, error) {
	var rec models.ReviewRecipient
	err := row.Scan(&rec.ID, &rec.ReviewID, &rec.ReviewerID, &rec.ReviewerOrgID, &rec.Status,
		&rec.DueDate, &rec.LastViewedAt, &rec.RespondedAt, &rec.DeclineReason, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: recipient", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Recipients returns all recipient rows for a thread.
func (r *Repository) Recipients(ctx context.Context, reviewID uuid.UUID) ([]*models.ReviewRecipient, error) {
	return queryRecipients(ctx, r.pool, reviewID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryRecipients(ctx context.Context, q querier, reviewID uuid.UUID) ([]*models.ReviewRecipient, error) {
	rows, err := q.Query(ctx, `SELECT `+recipientCols+` FROM review_recipients WHERE review_id = $1 ORDER BY created_at`, reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.ReviewRecipient
	for rows.Next() {
		var rec models.ReviewRecipient
		if err := rows.Scan(&rec.ID, &rec.ReviewID, &rec.ReviewerID, &rec.ReviewerOrgID, &rec.Status,
			&rec.DueDate, &rec.LastViewedAt, &rec.RespondedAt, &rec.DeclineReason, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &rec)
	}
	return list, rows.Err()
}

// Tx wraps one state transition in a transaction. The callback receives a
// transaction-scoped view; any error rolls everything back, including the
// action row.
func (r *Repository) Tx(ctx context.Context, fn func(tx *Tx) error) error {
	pgtx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer pgtx.Rollback(ctx)
	if err := fn(&Tx{tx: pgtx}); err != nil {
		return err
	}
	return pgtx.Commit(ctx)
}

// Tx is a transaction-scoped repository view for one transition.
type Tx struct {
	tx pgx.Tx
}

// LockReview loads the thread row with FOR UPDATE.
func (t *Tx) LockReview(ctx context.Context, id uuid.UUID) (*models.ReviewRequest, error) {
	return scanReview(t.tx.QueryRow(ctx, `SELECT `+reviewCols+` FROM review_requests WHERE id = $1 FOR UPDATE`, id))
}

// LockRecipient loads one recipient row of a thread with FOR UPDATE.
func (t *Tx) LockRecipient(ctx context.Context, reviewID, recipientID uuid.UUID) (*models.ReviewRecipient, error) {
	const q = `SELECT ` + recipientCols + ` FROM review_recipients WHERE id = $1 AND review_id = $2 FOR UPDATE`
	return scanRecipient(t.tx.QueryRow(ctx, q, recipientID, reviewID))
}

// Recipients loads all recipient rows inside the transaction.
func (t *Tx) Recipients(ctx context.Context, reviewID uuid.UUID) ([]*models.ReviewRecipient, error) {
	return queryRecipients(ctx, t.tx, reviewID)
}

// SaveReview persists the thread's mutable fields.
func (t *Tx) SaveReview(ctx context.Context, req *models.ReviewRequest) error {
	const q = `UPDATE review_requests SET status = $2, version_id = $3, subject = $4, body = $5, due_date = $6, updated_at = NOW()
		WHERE id = $1`
	_, err := t.tx.Exec(ctx, q, req.ID, req.Status, req.VersionID, req.Subject, req.Body, req.DueDate)
	return err
}

// SaveRecipient persists one recipient's mutable fields.
func (t *Tx) SaveRecipient(ctx context.Context, rec *models.ReviewRecipient) error {
	const q = `UPDATE review_recipients SET status = $2, last_viewed_at = $3, responded_at = $4, decline_reason = NULLIF($5,''), updated_at = NOW()
		WHERE id = $1`
	_, err := t.tx.Exec(ctx, q, rec.ID, rec.Status, rec.LastViewedAt, rec.RespondedAt, rec.DeclineReason)
	return err
}

// SaveRecipients persists a batch, used by send's pending reset.
func (t *Tx) SaveRecipients(ctx context.Context, recs []*models.ReviewRecipient) error {
	for _, rec := range recs {
		if err := t.SaveRecipient(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// AppendAction inserts one immutable action row. Part of the transition
// transaction: a transition without its audit row never commits.
func (t *Tx) AppendAction(ctx context.Context, reviewID, actorID, orgID uuid.UUID, action string, metadata map[string]any) error {
	meta := json.RawMessage(`{}`)
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		meta = b
	}
	const q = `INSERT INTO review_actions (id, review_id, actor_id, organization_id, action, metadata)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)`
	_, err := t.tx.Exec(ctx, q, reviewID, actorID, orgID, action, meta)
	return err
}

// AddRecipient inserts a recipient row inside the transaction.
func (t *Tx) AddRecipient(ctx context.Context, rec *models.ReviewRecipient) error {
	const q = `INSERT INTO review_recipients (id, review_id, reviewer_id, reviewer_org_id, status, due_date)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	err := t.tx.QueryRow(ctx, q, rec.ReviewID, rec.ReviewerID, rec.ReviewerOrgID, rec.Status, rec.DueDate).
		Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: reviewer already on this thread", domain.ErrConflict)
	}
	return err
}

// DeleteRecipient removes a recipient row inside the transaction.
func (t *Tx) DeleteRecipient(ctx context.Context, recipientID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM review_recipients WHERE id = $1`, recipientID)
	return err
}

// Actions returns the action log for a thread, oldest first.
func (r *Repository) Actions(ctx context.Context, reviewID uuid.UUID) ([]models.ReviewAction, error) {
	const q = `SELECT id, review_id, actor_id, organization_id, action, metadata, created_at
		FROM review_actions WHERE review_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ReviewAction
	for rows.Next() {
		var a models.ReviewAction
		if err := rows.Scan(&a.ID, &a.ReviewID, &a.ActorID, &a.OrganizationID, &a.Action, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// AddComment inserts a thread comment.
func (r *Repository) AddComment(ctx context.Context, cm *models.ReviewComment) error {
	const q = `INSERT INTO review_comments (id, review_id, author_id, body)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, cm.ReviewID, cm.AuthorID, cm.Body).Scan(&cm.ID, &cm.CreatedAt)
}

// Comments returns thread comments, oldest first.
func (r *Repository) Comments(ctx context.Context, reviewID uuid.UUID) ([]models.ReviewComment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, review_id, author_id, body, created_at
		FROM review_comments WHERE review_id = $1 ORDER BY created_at`, reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ReviewComment
	for rows.Next() {
		var cm models.ReviewComment
		if err := rows.Scan(&cm.ID, &cm.ReviewID, &cm.AuthorID, &cm.Body, &cm.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, cm)
	}
	return list, rows.Err()
}

// AddAttachment inserts an attachment record (object already in storage).
func (r *Repository) AddAttachment(ctx context.Context, a *models.ReviewAttachment) error {
	const q = `INSERT INTO review_attachments (id, review_id, storage_key, file_name, uploaded_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, a.ReviewID, a.StorageKey, a.FileName, a.UploadedBy).Scan(&a.ID, &a.CreatedAt)
}

// Attachments returns thread attachments.
func (r *Repository) Attachments(ctx context.Context, reviewID uuid.UUID) ([]models.ReviewAttachment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, review_id, storage_key, file_name, uploaded_by, created_at
		FROM review_attachments WHERE review_id = $1 ORDER BY created_at`, reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ReviewAttachment
	for rows.Next() {
		var a models.ReviewAttachment
		if err := rows.Scan(&a.ID, &a.ReviewID, &a.StorageKey, &a.FileName, &a.UploadedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
