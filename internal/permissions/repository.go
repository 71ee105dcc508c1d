package permissions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chapterhub/backend/internal/models"
)

// Repository handles permission grant persistence and snapshot loading.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a permissions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// MemberContext loads the authorization snapshot for (org, user). A missing
// membership yields an empty role, which the resolver treats as deny.
func (r *Repository) MemberContext(ctx context.Context, orgID, userID uuid.UUID) (MemberContext, error) {
	mc := MemberContext{OrganizationID: orgID, UserID: userID, Grants: map[string]struct{}{}}

	const roleQ = `SELECT role FROM memberships WHERE organization_id = $1 AND user_id = $2`
	err := r.pool.QueryRow(ctx, roleQ, orgID, userID).Scan(&mc.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return mc, nil
	}
	if err != nil {
		return mc, err
	}
	if models.IsAdminRole(mc.Role) {
		return mc, nil
	}

	const grantsQ = `SELECT permission FROM permission_grants WHERE organization_id = $1 AND user_id = $2`
	rows, err := r.pool.Query(ctx, grantsQ, orgID, userID)
	if err != nil {
		return mc, err
	}
	defer rows.Close()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return mc, err
		}
		mc.Grants[p] = struct{}{}
	}
	return mc, rows.Err()
}

// ListGrants returns the explicit grants for a member.
func (r *Repository) ListGrants(ctx context.Context, orgID, userID uuid.UUID) ([]models.PermissionGrant, error) {
	const q = `SELECT id, organization_id, user_id, permission, granted_by, created_at
		FROM permission_grants WHERE organization_id = $1 AND user_id = $2 ORDER BY permission`
	rows, err := r.pool.Query(ctx, q, orgID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.PermissionGrant
	for rows.Next() {
		var g models.PermissionGrant
		if err := rows.Scan(&g.ID, &g.OrganizationID, &g.UserID, &g.Permission, &g.GrantedBy, &g.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

// Grant records an explicit grant. Re-granting an existing permission is a
// no-op rather than a duplicate row.
func (r *Repository) Grant(ctx context.Context, orgID, userID uuid.UUID, permission string, grantedBy uuid.UUID) error {
	const q = `INSERT INTO permission_grants (id, organization_id, user_id, permission, granted_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		ON CONFLICT (organization_id, user_id, permission) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, orgID, userID, permission, grantedBy)
	return err
}

// Revoke removes one explicit grant.
func (r *Repository) Revoke(ctx context.Context, orgID, userID uuid.UUID, permission string) error {
	const q = `DELETE FROM permission_grants WHERE organization_id = $1 AND user_id = $2 AND permission = $3`
	_, err := r.pool.Exec(ctx, q, orgID, userID, permission)
	return err
}

// Sync replaces the member's grants with exactly the given set, atomically.
func (r *Repository) Sync(ctx context.Context, orgID, userID uuid.UUID, perms []string, grantedBy uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM permission_grants WHERE organization_id = $1 AND user_id = $2`, orgID, userID); err != nil {
		return err
	}
	const ins = `INSERT INTO permission_grants (id, organization_id, user_id, permission, granted_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)`
	for _, p := range perms {
		if _, err := tx.Exec(ctx, ins, orgID, userID, p, grantedBy); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ApplyDefaults creates the role-default grants for a new membership.
// grantedBy is the actor that created the membership.
func (r *Repository) ApplyDefaults(ctx context.Context, orgID, userID uuid.UUID, role string, grantedBy uuid.UUID) error {
	for _, p := range DefaultGrants(role) {
		if err := r.Grant(ctx, orgID, userID, p, grantedBy); err != nil {
			return err
		}
	}
	return nil
}
