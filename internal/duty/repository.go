package duty

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

// Repository handles duty persistence. Assignment and swap transitions run
// inside one transaction with the affected rows locked, so a double
// acceptance of an open swap serializes into one winner and one conflict.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a duty repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const scheduleCols = `id, organization_id, title, COALESCE(location,''), date, start_time, end_time, required_officers, status, recurrence, created_by, created_at, updated_at`

func scanSchedule(row pgx.Row) (*models.DutySchedule, error) {
	var s models.DutySchedule
	err := row.Scan(&s.ID, &s.OrganizationID, &s.Title, &s.Location, &s.Date, &s.StartTime, &s.EndTime,
		&s.RequiredOfficers, &s.Status, &s.Recurrence, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: duty schedule", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const assignmentCols = `id, schedule_id, officer_id, status, assigned_by, confirmed_at, check_in_at, check_out_at, created_at, updated_at`

func scanAssignment(row pgx.Row) (*models.DutyAssignment, error) {
	var a models.DutyAssignment
	err := row.Scan(&a.ID, &a.ScheduleID, &a.OfficerID, &a.Status, &a.AssignedBy,
		&a.ConfirmedAt, &a.CheckInAt, &a.CheckOutAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: duty assignment", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const swapCols = `id, assignment_id, from_officer_id, to_officer_id, COALESCE(reason,''), status, reviewed_by, COALESCE(review_notes,''), reviewed_at, created_at, updated_at`

func scanSwap(row pgx.Row) (*models.DutySwapRequest, error) {
	var s models.DutySwapRequest
	err := row.Scan(&s.ID, &s.AssignmentID, &s.FromOfficer, &s.ToOfficerID, &s.Reason, &s.Status,
		&s.ReviewedBy, &s.ReviewNotes, &s.ReviewedAt, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: swap request", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSchedule inserts the base schedule plus its recurrence occurrences
// and copies the base assignments onto each occurrence, all atomically.
// assignedOfficers may be empty.
func (r *Repository) CreateSchedule(ctx context.Context, s *models.DutySchedule, occurrences []*models.DutySchedule, assignedOfficers []uuid.UUID, assignerID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertSchedule(ctx, tx, s); err != nil {
		return err
	}
	for _, officerID := range assignedOfficers {
		if err := insertAssignment(ctx, tx, &models.DutyAssignment{
			ScheduleID: s.ID,
			OfficerID:  officerID,
			Status:     models.AssignmentAssigned,
			AssignedBy: assignerID,
		}); err != nil {
			return err
		}
	}
	for _, occ := range occurrences {
		if err := insertSchedule(ctx, tx, occ); err != nil {
			return err
		}
		for _, officerID := range assignedOfficers {
			if err := insertAssignment(ctx, tx, &models.DutyAssignment{
				ScheduleID: occ.ID,
				OfficerID:  officerID,
				Status:     models.AssignmentAssigned,
				AssignedBy: assignerID,
			}); err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

func insertSchedule(ctx context.Context, tx pgx.Tx, s *models.DutySchedule) error {
	const q = `INSERT INTO duty_schedules (id, organization_id, title, location, date, start_time, end_time, required_officers, status, recurrence, created_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`
	return tx.QueryRow(ctx, q, s.OrganizationID, s.Title, s.Location, s.Date, s.StartTime, s.EndTime,
		s.RequiredOfficers, s.Status, s.Recurrence, s.CreatedBy).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func insertAssignment(ctx context.Context, tx pgx.Tx, a *models.DutyAssignment) error {
	const q = `INSERT INTO duty_assignments (id, schedule_id, officer_id, status, assigned_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	err := tx.QueryRow(ctx, q, a.ScheduleID, a.OfficerID, a.Status, a.AssignedBy).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: officer already assigned to this schedule", domain.ErrConflict)
	}
	return err
}

// GetSchedule loads one schedule by id.
func (r *Repository) GetSchedule(ctx context.Context, id uuid.UUID) (*models.DutySchedule, error) {
	return scanSchedule(r.pool.QueryRow(ctx, `SELECT `+scheduleCols+` FROM duty_schedules WHERE id = $1`, id))
}

// ListSchedules returns an organization's schedules, optionally bounded by
// date.
func (r *Repository) ListSchedules(ctx context.Context, orgID uuid.UUID, from, to *time.Time) ([]models.DutySchedule, error) {
	q := `SELECT ` + scheduleCols + ` FROM duty_schedules WHERE organization_id = $1`
	args := []interface{}{orgID}
	if from != nil {
		args = append(args, *from)
		q += fmt.Sprintf(` AND date >= $%d`, len(args))
	}
	if to != nil {
		args = append(args, *to)
		q += fmt.Sprintf(` AND date <= $%d`, len(args))
	}
	q += ` ORDER BY date, start_time`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.DutySchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// UpdateSchedule persists mutable schedule fields.
func (r *Repository) UpdateSchedule(ctx context.Context, s *models.DutySchedule) error {
	const q = `UPDATE duty_schedules SET title = $2, location = $3, date = $4, start_time = $5, end_time = $6,
		required_officers = $7, status = $8, updated_at = now() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, s.ID, s.Title, s.Location, s.Date, s.StartTime, s.EndTime, s.RequiredOfficers, s.Status)
	return err
}

// DeleteSchedule removes a schedule and cascades to its assignments.
func (r *Repository) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM duty_schedules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: duty schedule", domain.ErrNotFound)
	}
	return nil
}

// CreateAssignment adds one officer to a schedule.
func (r *Repository) CreateAssignment(ctx context.Context, a *models.DutyAssignment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := insertAssignment(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetAssignment loads one assignment by id.
func (r *Repository) GetAssignment(ctx context.Context, id uuid.UUID) (*models.DutyAssignment, error) {
	return scanAssignment(r.pool.QueryRow(ctx, `SELECT `+assignmentCols+` FROM duty_assignments WHERE id = $1`, id))
}

// Assignments returns every assignment of a schedule.
func (r *Repository) Assignments(ctx context.Context, scheduleID uuid.UUID) ([]models.DutyAssignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+assignmentCols+` FROM duty_assignments WHERE schedule_id = $1 ORDER BY created_at`, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.DutyAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// AssignmentsForOfficer returns an officer's assignments within an
// organization, newest duty first.
func (r *Repository) AssignmentsForOfficer(ctx context.Context, orgID, officerID uuid.UUID) ([]models.DutyAssignment, error) {
	const q = `SELECT ` + assignmentColsPrefixed + ` FROM duty_assignments a
		JOIN duty_schedules s ON s.id = a.schedule_id
		WHERE s.organization_id = $1 AND a.officer_id = $2
		ORDER BY s.date DESC`
	rows, err := r.pool.Query(ctx, q, orgID, officerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.DutyAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

const assignmentColsPrefixed = `a.id, a.schedule_id, a.officer_id, a.status, a.assigned_by, a.confirmed_at, a.check_in_at, a.check_out_at, a.created_at, a.updated_at`

// DeleteAssignment removes an officer from a schedule.
func (r *Repository) DeleteAssignment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM duty_assignments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: duty assignment", domain.ErrNotFound)
	}
	return nil
}

// GetSwap loads one swap request by id.
func (r *Repository) GetSwap(ctx context.Context, id uuid.UUID) (*models.DutySwapRequest, error) {
	return scanSwap(r.pool.QueryRow(ctx, `SELECT `+swapCols+` FROM duty_swap_requests WHERE id = $1`, id))
}

// ListSwapsByOrg returns an organization's swap requests, newest first.
func (r *Repository) ListSwapsByOrg(ctx context.Context, orgID uuid.UUID) ([]models.DutySwapRequest, error) {
	const q = `SELECT ` + swapColsPrefixed + ` FROM duty_swap_requests w
		JOIN duty_assignments a ON a.id = w.assignment_id
		JOIN duty_schedules s ON s.id = a.schedule_id
		WHERE s.organization_id = $1
		ORDER BY w.created_at DESC`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.DutySwapRequest
	for rows.Next() {
		s, err := scanSwap(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

const swapColsPrefixed = `w.id, w.assignment_id, w.from_officer_id, w.to_officer_id, COALESCE(w.reason,''), w.status, w.reviewed_by, COALESCE(w.review_notes,''), w.reviewed_at, w.created_at, w.updated_at`

// FillData loads slot demand versus filled slots for each schedule in a
// date range. An assignment fills a slot while assigned, confirmed, or
// completed.
func (r *Repository) FillData(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]ScheduleFill, error) {
	const q = `SELECT s.date, s.required_officers,
			COUNT(a.id) FILTER (WHERE a.status IN ('assigned','confirmed','completed'))
		FROM duty_schedules s
		LEFT JOIN duty_assignments a ON a.schedule_id = s.id
		WHERE s.organization_id = $1 AND s.date >= $2 AND s.date <= $3 AND s.status <> 'cancelled'
		GROUP BY s.id, s.date, s.required_officers
		ORDER BY s.date`
	rows, err := r.pool.Query(ctx, q, orgID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var fills []ScheduleFill
	for rows.Next() {
		var f ScheduleFill
		var filled int64
		if err := rows.Scan(&f.Date, &f.Required, &filled); err != nil {
			return nil, err
		}
		f.Filled = int(filled)
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// Tx wraps one state transition in a transaction. The callback receives a
// transaction-scoped view; any error rolls everything back.
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

// LockAssignment loads an assignment row with FOR UPDATE.
func (t *Tx) LockAssignment(ctx context.Context, id uuid.UUID) (*models.DutyAssignment, error) {
	return scanAssignment(t.tx.QueryRow(ctx, `SELECT `+assignmentCols+` FROM duty_assignments WHERE id = $1 FOR UPDATE`, id))
}

// LockSwap loads a swap row with FOR UPDATE.
func (t *Tx) LockSwap(ctx context.Context, id uuid.UUID) (*models.DutySwapRequest, error) {
	return scanSwap(t.tx.QueryRow(ctx, `SELECT `+swapCols+` FROM duty_swap_requests WHERE id = $1 FOR UPDATE`, id))
}

// Schedule loads an assignment's parent schedule within the transaction.
func (t *Tx) Schedule(ctx context.Context, id uuid.UUID) (*models.DutySchedule, error) {
	return scanSchedule(t.tx.QueryRow(ctx, `SELECT `+scheduleCols+` FROM duty_schedules WHERE id = $1`, id))
}

// HasActiveSwap reports whether any pending or approved swap exists for the
// assignment. Called with the assignment row already locked.
func (t *Tx) HasActiveSwap(ctx context.Context, assignmentID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM duty_swap_requests WHERE assignment_id = $1 AND status IN ('pending','approved'))`,
		assignmentID).Scan(&exists)
	return exists, err
}

// InsertSwap persists a new swap request.
func (t *Tx) InsertSwap(ctx context.Context, s *models.DutySwapRequest) error {
	const q = `INSERT INTO duty_swap_requests (id, assignment_id, from_officer_id, to_officer_id, reason, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return t.tx.QueryRow(ctx, q, s.AssignmentID, s.FromOfficer, s.ToOfficerID, s.Reason, s.Status).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// SaveAssignment persists transition results to a locked assignment row.
func (t *Tx) SaveAssignment(ctx context.Context, a *models.DutyAssignment) error {
	const q = `UPDATE duty_assignments SET officer_id = $2, status = $3, confirmed_at = $4,
		check_in_at = $5, check_out_at = $6, updated_at = now() WHERE id = $1`
	_, err := t.tx.Exec(ctx, q, a.ID, a.OfficerID, a.Status, a.ConfirmedAt, a.CheckInAt, a.CheckOutAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: officer already assigned to this schedule", domain.ErrConflict)
	}
	return err
}

// SaveSwap persists transition results to a locked swap row.
func (t *Tx) SaveSwap(ctx context.Context, s *models.DutySwapRequest) error {
	const q = `UPDATE duty_swap_requests SET to_officer_id = $2, status = $3, reviewed_by = $4,
		review_notes = $5, reviewed_at = $6, updated_at = now() WHERE id = $1`
	_, err := t.tx.Exec(ctx, q, s.ID, s.ToOfficerID, s.Status, s.ReviewedBy, s.ReviewNotes, s.ReviewedAt)
	return err
}

// SaveScheduleStatus persists a schedule status change.
func (t *Tx) SaveScheduleStatus(ctx context.Context, id uuid.UUID, status models.ScheduleStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE duty_schedules SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}

// LockSchedule loads the schedule row with FOR UPDATE.
func (t *Tx) LockSchedule(ctx context.Context, id uuid.UUID) (*models.DutySchedule, error) {
	return scanSchedule(t.tx.QueryRow(ctx, `SELECT `+scheduleCols+` FROM duty_schedules WHERE id = $1 FOR UPDATE`, id))
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
