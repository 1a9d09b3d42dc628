package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/backoffice-api/apiserver/types"
)

// AssignmentRepository defines persistence operations for user-role
// assignments.
type AssignmentRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]types.UserRole, error)
	Create(ctx context.Context, userID, roleID int64) (types.UserRole, error)
	Sync(ctx context.Context, userID int64, desiredRoleIDs []int64) (added, removed int, err error)
}

// GrantRepository defines persistence operations for role-privilege
// grants.
type GrantRepository interface {
	ListByRole(ctx context.Context, roleID int64) ([]types.RolePrivilege, error)
	ListByRoleIDs(ctx context.Context, roleIDs []int64) ([]types.RolePrivilege, error)
	ReplaceForRole(ctx context.Context, roleID, createdBy int64, permissions []string) error
}

// Catalog is the static table of known privileges. It is loaded once at
// process start and read-only afterwards.
type Catalog struct {
	entries []types.Privilege
	byKey   map[string]types.Privilege
}

// NewCatalog builds a catalog from the given entries.
func NewCatalog(entries []types.Privilege) *Catalog {
	byKey := make(map[string]types.Privilege, len(entries))
	for _, entry := range entries {
		byKey[entry.Key] = entry
	}
	return &Catalog{entries: entries, byKey: byKey}
}

// LoadCatalog reads a privilege catalog from a JSON file. An empty path
// yields the compiled-in default catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(defaultPrivileges()), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read privileges file: %w", err)
	}
	var file struct {
		Privileges []types.Privilege `json:"privileges"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse privileges file: %w", err)
	}
	if len(file.Privileges) == 0 {
		return nil, fmt.Errorf("privileges file %s contains no privileges", path)
	}
	return NewCatalog(file.Privileges), nil
}

// Lookup returns the descriptor for a key.
func (c *Catalog) Lookup(key string) (types.Privilege, bool) {
	entry, ok := c.byKey[key]
	return entry, ok
}

// All returns every catalog entry in declaration order.
func (c *Catalog) All() []types.Privilege {
	entries := make([]types.Privilege, len(c.entries))
	copy(entries, c.entries)
	return entries
}

func defaultPrivileges() []types.Privilege {
	return []types.Privilege{
		{Key: "user_view", Name: "User View", Group: "USERS"},
		{Key: "user_add", Name: "User Add", Group: "USERS"},
		{Key: "user_update", Name: "User Update", Group: "USERS"},
		{Key: "user_delete", Name: "User Delete", Group: "USERS"},
		{Key: "role_view", Name: "Role View", Group: "ROLES"},
		{Key: "role_add", Name: "Role Add", Group: "ROLES"},
		{Key: "role_update", Name: "Role Update", Group: "ROLES"},
		{Key: "role_delete", Name: "Role Delete", Group: "ROLES"},
		{Key: "category_view", Name: "Category View", Group: "CATEGORIES"},
		{Key: "category_add", Name: "Category Add", Group: "CATEGORIES"},
		{Key: "category_update", Name: "Category Update", Group: "CATEGORIES"},
		{Key: "category_delete", Name: "Category Delete", Group: "CATEGORIES"},
		{Key: "auditlogs_view", Name: "AuditLogs View", Group: "AUDITLOGS"},
		{Key: "auditlogs_export", Name: "AuditLogs Export", Group: "AUDITLOGS"},
	}
}

// PrivilegeService computes a user's effective privileges from current
// database state.
type PrivilegeService struct {
	assignments AssignmentRepository
	grants      GrantRepository
	catalog     *Catalog
}

func NewPrivilegeService(assignments AssignmentRepository, grants GrantRepository, catalog *Catalog) *PrivilegeService {
	return &PrivilegeService{
		assignments: assignments,
		grants:      grants,
		catalog:     catalog,
	}
}

// Catalog returns the loaded privilege catalog.
func (s *PrivilegeService) Catalog() *Catalog {
	return s.catalog
}

// Resolve returns the deduplicated union of privileges granted by the
// active roles assigned to the user; grants held through a deactivated
// role confer nothing. Grants for the whole role set are fetched with
// one query. Grant keys missing from the catalog are dropped silently;
// a user with no assignments resolves to an empty set.
func (s *PrivilegeService) Resolve(ctx context.Context, userID int64) ([]types.Privilege, error) {
	assignments, err := s.assignments.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return []types.Privilege{}, nil
	}

	roleIDs := make([]int64, 0, len(assignments))
	for _, assignment := range assignments {
		roleIDs = append(roleIDs, assignment.RoleID)
	}

	grants, err := s.grants.ListByRoleIDs(ctx, roleIDs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(grants))
	privileges := []types.Privilege{}
	for _, grant := range grants {
		if _, dup := seen[grant.Permission]; dup {
			continue
		}
		entry, ok := s.catalog.Lookup(grant.Permission)
		if !ok {
			continue
		}
		seen[grant.Permission] = struct{}{}
		privileges = append(privileges, entry)
	}
	return privileges, nil
}
