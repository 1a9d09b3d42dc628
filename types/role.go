package types

import "time"

// SuperAdminRole is the role created for the first registered account.
const SuperAdminRole = "SUPER_ADMIN"

// Role represents a named bundle of privileges assignable to users.
type Role struct {
	// ID is the unique identifier of the role.
	ID int64 `json:"id" db:"id"`

	// Name is the unique human-readable name of the role.
	Name string `json:"role_name" db:"role_name"`

	// IsActive indicates whether the role participates in privilege
	// resolution.
	IsActive bool `json:"is_active" db:"is_active"`

	// CreatedBy identifies the user that created the role, if any.
	CreatedBy int64 `json:"created_by,omitempty" db:"created_by"`

	// CreatedAt is the timestamp when the role was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the role.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserRole links a user to an assigned role. The (user_id, role_id)
// pair is unique.
type UserRole struct {
	ID     int64 `json:"id" db:"id"`
	UserID int64 `json:"user_id" db:"user_id"`
	RoleID int64 `json:"role_id" db:"role_id"`
}

// RolePrivilege grants a catalog privilege to a role. Permission keys
// are validated against the privilege catalog when granted; keys that
// later disappear from the catalog are ignored at resolution time.
type RolePrivilege struct {
	ID         int64  `json:"id" db:"id"`
	RoleID     int64  `json:"role_id" db:"role_id"`
	Permission string `json:"permission" db:"permission"`
	CreatedBy  int64  `json:"created_by,omitempty" db:"created_by"`
}
