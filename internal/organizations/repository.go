package organizations

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
	"github.com/chapterhub/backend/internal/permissions"
)

// Repository handles organization, membership, and invite persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orgCols = `id, name, slug, COALESCE(description,''), auto_accept_invites, public_profile, member_can_invite, created_at, updated_at`

func scanOrg(row pgx.Row) (*models.Organization, error) {
	var o models.Organization
	err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.Description, &o.AutoAcceptInvites, &o.PublicProfile,
		&o.MemberCanInvite, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: organization", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create inserts the organization and its admin membership for the creator
// atomically. Admins bypass the permission catalog, so no grants are
// written.
func (r *Repository) Create(ctx context.Context, org *models.Organization, creatorID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO organizations (id, name, slug, description, auto_accept_invites, public_profile, member_can_invite)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, q, org.Name, org.Slug, org.Description, org.AutoAcceptInvites, org.PublicProfile, org.MemberCanInvite).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: slug already taken", domain.ErrConflict)
	}
	if err != nil {
		return err
	}
	const mq = `INSERT INTO memberships (id, organization_id, user_id, role)
		VALUES (gen_random_uuid(), $1, $2, $3)`
	if _, err := tx.Exec(ctx, mq, org.ID, creatorID, models.RoleAdmin); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetByID returns an organization by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return scanOrg(r.pool.QueryRow(ctx, `SELECT `+orgCols+` FROM organizations WHERE id = $1`, id))
}

// GetBySlug returns an organization by slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	return scanOrg(r.pool.QueryRow(ctx, `SELECT `+orgCols+` FROM organizations WHERE slug = $1`, slug))
}

// Update persists profile and settings fields.
func (r *Repository) Update(ctx context.Context, org *models.Organization) error {
	const q = `UPDATE organizations SET name = $2, description = $3, auto_accept_invites = $4,
		public_profile = $5, member_can_invite = $6, updated_at = now() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, org.ID, org.Name, org.Description, org.AutoAcceptInvites, org.PublicProfile, org.MemberCanInvite)
	return err
}

// ListForUser returns the organizations a user belongs to.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Organization, error) {
	const q = `SELECT o.id, o.name, o.slug, COALESCE(o.description,''), o.auto_accept_invites, o.public_profile, o.member_can_invite, o.created_at, o.updated_at
		FROM organizations o
		JOIN memberships m ON m.organization_id = o.id
		WHERE m.user_id = $1
		ORDER BY o.name`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Organization
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *o)
	}
	return list, rows.Err()
}

// AddMember inserts a membership.
func (r *Repository) AddMember(ctx context.Context, orgID, userID uuid.UUID, role string) (*models.Membership, error) {
	const q = `INSERT INTO memberships (id, organization_id, user_id, role)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at, updated_at`
	m := &models.Membership{OrganizationID: orgID, UserID: userID, Role: role}
	err := r.pool.QueryRow(ctx, q, orgID, userID, role).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: already a member", domain.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMembership returns a user's membership in the organization.
func (r *Repository) GetMembership(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error) {
	const q = `SELECT id, organization_id, user_id, role, created_at, updated_at
		FROM memberships WHERE organization_id = $1 AND user_id = $2`
	var m models.Membership
	err := r.pool.QueryRow(ctx, q, orgID, userID).Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: membership", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Member pairs a membership with the user's public details.
type Member struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// ListMembers returns an organization's members with user details.
func (r *Repository) ListMembers(ctx context.Context, orgID uuid.UUID) ([]Member, error) {
	const q = `SELECT m.id, m.user_id, u.email, COALESCE(u.full_name,''), m.role, m.created_at
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1
		ORDER BY m.created_at`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.UserID, &m.Email, &m.FullName, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

var errLastAdmin = fmt.Errorf("%w: organization must keep at least one admin", domain.ErrConflict)

// lastAdminLeft reports whether removing or demoting a member with the
// given role would strip the organization's only admin. adminCount
// includes the member's own row.
func lastAdminLeft(role string, adminCount int) bool {
	return models.IsAdminRole(role) && adminCount <= 1
}

// lockAdmins locks the organization's admin membership rows in id order
// and returns how many there are. Concurrent demotions and removals
// serialize on these locks until commit.
func lockAdmins(ctx context.Context, tx pgx.Tx, orgID uuid.UUID) (int, error) {
	const q = `SELECT id FROM memberships WHERE organization_id = $1 AND role IN ('admin','owner')
		ORDER BY id FOR UPDATE`
	rows, err := tx.Query(ctx, q, orgID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

func lockRole(ctx context.Context, tx pgx.Tx, orgID, userID uuid.UUID) (string, error) {
	var role string
	err := tx.QueryRow(ctx,
		`SELECT role FROM memberships WHERE organization_id = $1 AND user_id = $2 FOR UPDATE`,
		orgID, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: membership", domain.ErrNotFound)
	}
	return role, err
}

// ChangeRole updates a membership's role and adjusts its grants in one
// transaction per the default-grant policy. Demoting the only admin
// fails with a conflict.
func (r *Repository) ChangeRole(ctx context.Context, orgID, userID uuid.UUID, newRole string, actorID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	admins, err := lockAdmins(ctx, tx, orgID)
	if err != nil {
		return err
	}
	oldRole, err := lockRole(ctx, tx, orgID, userID)
	if err != nil {
		return err
	}
	if oldRole == newRole {
		return tx.Commit(ctx)
	}
	if !models.IsAdminRole(newRole) && lastAdminLeft(oldRole, admins) {
		return errLastAdmin
	}
	if _, err := tx.Exec(ctx,
		`UPDATE memberships SET role = $3, updated_at = now() WHERE organization_id = $1 AND user_id = $2`,
		orgID, userID, newRole); err != nil {
		return err
	}
	plan := permissions.PlanRoleChange(oldRole, newRole)
	if plan.WipeGrants {
		if _, err := tx.Exec(ctx,
			`DELETE FROM permission_grants WHERE organization_id = $1 AND user_id = $2`, orgID, userID); err != nil {
			return err
		}
	}
	const ins = `INSERT INTO permission_grants (id, organization_id, user_id, permission, granted_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		ON CONFLICT (organization_id, user_id, permission) DO NOTHING`
	for _, p := range plan.Grant {
		if _, err := tx.Exec(ctx, ins, orgID, userID, p, actorID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// RemoveMember deletes a membership and the member's permission grants
// atomically. Removing the only admin fails with a conflict.
func (r *Repository) RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	admins, err := lockAdmins(ctx, tx, orgID)
	if err != nil {
		return err
	}
	role, err := lockRole(ctx, tx, orgID, userID)
	if err != nil {
		return err
	}
	if lastAdminLeft(role, admins) {
		return errLastAdmin
	}
	if _, err := tx.Exec(ctx, `DELETE FROM permission_grants WHERE organization_id = $1 AND user_id = $2`, orgID, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM memberships WHERE organization_id = $1 AND user_id = $2`, orgID, userID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreateInvite inserts a pending invite.
func (r *Repository) CreateInvite(ctx context.Context, inv *models.Invite) error {
	const q = `INSERT INTO invites (id, organization_id, email, role, invited_by, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, inv.OrganizationID, inv.Email, inv.Role, inv.InvitedBy, inv.Status).
		Scan(&inv.ID, &inv.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: invite already pending for this email", domain.ErrConflict)
	}
	return err
}

// GetInvite returns one invite by id.
func (r *Repository) GetInvite(ctx context.Context, id uuid.UUID) (*models.Invite, error) {
	const q = `SELECT id, organization_id, email, role, invited_by, status, accepted_at, created_at
		FROM invites WHERE id = $1`
	var inv models.Invite
	err := r.pool.QueryRow(ctx, q, id).Scan(&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role,
		&inv.InvitedBy, &inv.Status, &inv.AcceptedAt, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: invite", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListInvites returns an organization's invites, pending first.
func (r *Repository) ListInvites(ctx context.Context, orgID uuid.UUID) ([]models.Invite, error) {
	const q = `SELECT id, organization_id, email, role, invited_by, status, accepted_at, created_at
		FROM invites WHERE organization_id = $1
		ORDER BY status = 'pending' DESC, created_at DESC`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Invite
	for rows.Next() {
		var inv models.Invite
		if err := rows.Scan(&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &inv.InvitedBy,
			&inv.Status, &inv.AcceptedAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// ListInvitesForEmail returns pending invites addressed to an email.
func (r *Repository) ListInvitesForEmail(ctx context.Context, email string) ([]models.Invite, error) {
	const q = `SELECT id, organization_id, email, role, invited_by, status, accepted_at, created_at
		FROM invites WHERE email = $1 AND status = 'pending'
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Invite
	for rows.Next() {
		var inv models.Invite
		if err := rows.Scan(&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &inv.InvitedBy,
			&inv.Status, &inv.AcceptedAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// ResolveInvite marks an invite accepted or declined and, when accepted,
// creates the membership atomically.
func (r *Repository) ResolveInvite(ctx context.Context, inv *models.Invite, accept bool, userID uuid.UUID) (*models.Membership, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	status := models.InviteStatusDeclined
	if accept {
		status = models.InviteStatusAccepted
	}
	now := time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE invites SET status = $2, accepted_at = $3 WHERE id = $1 AND status = 'pending'`,
		inv.ID, status, now)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: invite already resolved", domain.ErrInvalidTransition)
	}
	inv.Status = status
	inv.AcceptedAt = &now

	if !accept {
		return nil, tx.Commit(ctx)
	}
	m := &models.Membership{OrganizationID: inv.OrganizationID, UserID: userID, Role: inv.Role}
	const mq = `INSERT INTO memberships (id, organization_id, user_id, role)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, mq, m.OrganizationID, m.UserID, m.Role).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: already a member", domain.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return m, tx.Commit(ctx)
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
