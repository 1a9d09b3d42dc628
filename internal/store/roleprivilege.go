package store

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/backoffice-api/apiserver/types"
)

// RolePrivilegeRepository handles persistence for role-privilege grants.
type RolePrivilegeRepository struct {
	db *sql.DB
}

func NewRolePrivilegeRepository(db *sql.DB) *RolePrivilegeRepository {
	return &RolePrivilegeRepository{db: db}
}

func (r *RolePrivilegeRepository) ListByRole(ctx context.Context, roleID int64) ([]types.RolePrivilege, error) {
	return r.listGrants(ctx, `
		SELECT id, role_id, permission, COALESCE(created_by, 0)
		FROM role_privileges
		WHERE role_id = $1
		ORDER BY id`, roleID)
}

// ListByRoleIDs fetches the grants for every active role in the set
// with a single query, avoiding per-role fan-out during privilege
// resolution. Grants attached to deactivated roles are excluded.
func (r *RolePrivilegeRepository) ListByRoleIDs(ctx context.Context, roleIDs []int64) ([]types.RolePrivilege, error) {
	if len(roleIDs) == 0 {
		return []types.RolePrivilege{}, nil
	}
	return r.listGrants(ctx, `
		SELECT rp.id, rp.role_id, rp.permission, COALESCE(rp.created_by, 0)
		FROM role_privileges rp
		JOIN roles r ON r.id = rp.role_id
		WHERE rp.role_id = ANY($1) AND r.is_active
		ORDER BY rp.id`, pq.Array(roleIDs))
}

func (r *RolePrivilegeRepository) listGrants(ctx context.Context, query string, arg any) ([]types.RolePrivilege, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grants := []types.RolePrivilege{}
	for rows.Next() {
		var grant types.RolePrivilege
		if err := rows.Scan(&grant.ID, &grant.RoleID, &grant.Permission, &grant.CreatedBy); err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

func (r *RolePrivilegeRepository) Create(ctx context.Context, grant types.RolePrivilege) (types.RolePrivilege, error) {
	const query = `
		INSERT INTO role_privileges (role_id, permission, created_by)
		VALUES ($1, $2, NULLIF($3, 0))
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, grant.RoleID, grant.Permission, grant.CreatedBy).Scan(&grant.ID); err != nil {
		if isUniqueViolation(err) {
			return types.RolePrivilege{}, ErrDuplicate
		}
		return types.RolePrivilege{}, err
	}
	return grant, nil
}

func (r *RolePrivilegeRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM role_privileges WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceForRole makes the role's grants exactly the given permission
// key set, attaching missing keys and detaching extra ones inside one
// transaction.
func (r *RolePrivilegeRepository) ReplaceForRole(ctx context.Context, roleID, createdBy int64, permissions []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const currentQuery = `
		SELECT id, permission
		FROM role_privileges
		WHERE role_id = $1
		FOR UPDATE`
	rows, err := tx.QueryContext(ctx, currentQuery, roleID)
	if err != nil {
		return err
	}
	current := map[string]int64{} // permission key -> grant id
	for rows.Next() {
		var grantID int64
		var permission string
		if err := rows.Scan(&grantID, &permission); err != nil {
			rows.Close()
			return err
		}
		current[permission] = grantID
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	keep := map[string]struct{}{}
	const insertQuery = `INSERT INTO role_privileges (role_id, permission, created_by) VALUES ($1, $2, NULLIF($3, 0))`
	for _, permission := range permissions {
		// A repeated key in the input must not insert twice.
		if _, dup := keep[permission]; dup {
			continue
		}
		keep[permission] = struct{}{}
		if _, have := current[permission]; have {
			continue
		}
		if _, err := tx.ExecContext(ctx, insertQuery, roleID, permission, createdBy); err != nil {
			return err
		}
	}

	var toRemove []int64
	for permission, grantID := range current {
		if _, ok := keep[permission]; !ok {
			toRemove = append(toRemove, grantID)
		}
	}
	if len(toRemove) > 0 {
		const deleteQuery = `DELETE FROM role_privileges WHERE id = ANY($1)`
		if _, err := tx.ExecContext(ctx, deleteQuery, pq.Array(toRemove)); err != nil {
			return err
		}
	}

	return tx.Commit()
}
