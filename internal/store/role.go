package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/backoffice-api/apiserver/types"
)

// RoleRepository handles persistence for roles.
type RoleRepository struct {
	db *sql.DB
}

func NewRoleRepository(db *sql.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

const roleColumns = `id, role_name, is_active, COALESCE(created_by, 0), created_at, updated_at`

func scanRole(row *sql.Row) (types.Role, error) {
	var role types.Role
	err := row.Scan(
		&role.ID,
		&role.Name,
		&role.IsActive,
		&role.CreatedBy,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Role{}, ErrNotFound
		}
		return types.Role{}, err
	}
	return role, nil
}

func (r *RoleRepository) GetByID(ctx context.Context, id int64) (types.Role, error) {
	const query = `
		SELECT ` + roleColumns + `
		FROM roles
		WHERE id = $1`
	return scanRole(r.db.QueryRowContext(ctx, query, id))
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (types.Role, error) {
	const query = `
		SELECT ` + roleColumns + `
		FROM roles
		WHERE role_name = $1`
	return scanRole(r.db.QueryRowContext(ctx, query, name))
}

func (r *RoleRepository) List(ctx context.Context) ([]types.Role, error) {
	const query = `
		SELECT ` + roleColumns + `
		FROM roles
		ORDER BY role_name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []types.Role{}
	for rows.Next() {
		var role types.Role
		if err := rows.Scan(
			&role.ID,
			&role.Name,
			&role.IsActive,
			&role.CreatedBy,
			&role.CreatedAt,
			&role.UpdatedAt,
		); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ListByIDs returns the roles whose ids are in the given set.
func (r *RoleRepository) ListByIDs(ctx context.Context, ids []int64) ([]types.Role, error) {
	if len(ids) == 0 {
		return []types.Role{}, nil
	}
	const query = `
		SELECT ` + roleColumns + `
		FROM roles
		WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []types.Role{}
	for rows.Next() {
		var role types.Role
		if err := rows.Scan(
			&role.ID,
			&role.Name,
			&role.IsActive,
			&role.CreatedBy,
			&role.CreatedAt,
			&role.UpdatedAt,
		); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *RoleRepository) Create(ctx context.Context, role types.Role) (types.Role, error) {
	now := time.Now()
	role.CreatedAt = now
	role.UpdatedAt = now

	const query = `
		INSERT INTO roles (role_name, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, 0), $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		role.Name,
		role.IsActive,
		role.CreatedBy,
		role.CreatedAt,
		role.UpdatedAt,
	).Scan(&role.ID); err != nil {
		if isUniqueViolation(err) {
			return types.Role{}, ErrDuplicate
		}
		return types.Role{}, err
	}
	return role, nil
}

func (r *RoleRepository) Update(ctx context.Context, role types.Role) (types.Role, error) {
	role.UpdatedAt = time.Now()

	const query = `
		UPDATE roles
		SET role_name = $1,
			is_active = $2,
			updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, role.Name, role.IsActive, role.UpdatedAt, role.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return types.Role{}, ErrDuplicate
		}
		return types.Role{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Role{}, err
	}
	if affected == 0 {
		return types.Role{}, ErrNotFound
	}
	return role, nil
}

// Delete removes a role. Assignments and grants referencing it are
// removed by foreign key cascade.
func (r *RoleRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM roles WHERE id = $1`
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
