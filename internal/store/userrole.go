package store

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/backoffice-api/apiserver/types"
)

// UserRoleRepository handles persistence for user-role assignments.
type UserRoleRepository struct {
	db *sql.DB
}

func NewUserRoleRepository(db *sql.DB) *UserRoleRepository {
	return &UserRoleRepository{db: db}
}

func (r *UserRoleRepository) ListByUser(ctx context.Context, userID int64) ([]types.UserRole, error) {
	const query = `
		SELECT id, user_id, role_id
		FROM user_roles
		WHERE user_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := []types.UserRole{}
	for rows.Next() {
		var assignment types.UserRole
		if err := rows.Scan(&assignment.ID, &assignment.UserID, &assignment.RoleID); err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	return assignments, rows.Err()
}

// Create assigns a role to a user. The (user_id, role_id) pair is
// unique; assigning the same role twice returns ErrDuplicate.
func (r *UserRoleRepository) Create(ctx context.Context, userID, roleID int64) (types.UserRole, error) {
	const query = `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		RETURNING id`
	assignment := types.UserRole{UserID: userID, RoleID: roleID}
	if err := r.db.QueryRowContext(ctx, query, userID, roleID).Scan(&assignment.ID); err != nil {
		if isUniqueViolation(err) {
			return types.UserRole{}, ErrDuplicate
		}
		return types.UserRole{}, err
	}
	return assignment, nil
}

// DeleteByIDs removes assignments by id in a single statement.
func (r *UserRoleRepository) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `DELETE FROM user_roles WHERE id = ANY($1)`
	_, err := r.db.ExecContext(ctx, query, pq.Array(ids))
	return err
}

// Sync replaces the user's assignments with exactly the desired role
// set. The read, diff and writes run in one transaction so two
// concurrent syncs for the same user cannot interleave; the user's
// current assignments are locked for the duration. Returns the number
// of assignments added and removed; an empty diff performs no writes.
func (r *UserRoleRepository) Sync(ctx context.Context, userID int64, desiredRoleIDs []int64) (added, removed int, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	const currentQuery = `
		SELECT id, role_id
		FROM user_roles
		WHERE user_id = $1
		FOR UPDATE`
	rows, err := tx.QueryContext(ctx, currentQuery, userID)
	if err != nil {
		return 0, 0, err
	}
	current := map[int64]int64{} // role id -> assignment id
	for rows.Next() {
		var assignmentID, roleID int64
		if err := rows.Scan(&assignmentID, &roleID); err != nil {
			rows.Close()
			return 0, 0, err
		}
		current[roleID] = assignmentID
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}

	desired := map[int64]struct{}{}
	for _, roleID := range desiredRoleIDs {
		desired[roleID] = struct{}{}
	}

	var toRemove []int64
	for roleID, assignmentID := range current {
		if _, keep := desired[roleID]; !keep {
			toRemove = append(toRemove, assignmentID)
		}
	}
	var toAdd []int64
	for roleID := range desired {
		if _, have := current[roleID]; !have {
			toAdd = append(toAdd, roleID)
		}
	}

	if len(toRemove) == 0 && len(toAdd) == 0 {
		return 0, 0, tx.Commit()
	}

	if len(toRemove) > 0 {
		const deleteQuery = `DELETE FROM user_roles WHERE id = ANY($1)`
		if _, err := tx.ExecContext(ctx, deleteQuery, pq.Array(toRemove)); err != nil {
			return 0, 0, err
		}
	}
	const insertQuery = `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`
	for _, roleID := range toAdd {
		if _, err := tx.ExecContext(ctx, insertQuery, userID, roleID); err != nil {
			if isUniqueViolation(err) {
				return 0, 0, ErrDuplicate
			}
			return 0, 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return len(toAdd), len(toRemove), nil
}
