package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backoffice-api/apiserver/types"
)

type stubAssignmentRepo struct {
	listByUser func(ctx context.Context, userID int64) ([]types.UserRole, error)
	create     func(ctx context.Context, userID, roleID int64) (types.UserRole, error)
	sync       func(ctx context.Context, userID int64, desiredRoleIDs []int64) (int, int, error)
}

func (s *stubAssignmentRepo) ListByUser(ctx context.Context, userID int64) ([]types.UserRole, error) {
	return s.listByUser(ctx, userID)
}

func (s *stubAssignmentRepo) Create(ctx context.Context, userID, roleID int64) (types.UserRole, error) {
	return s.create(ctx, userID, roleID)
}

func (s *stubAssignmentRepo) Sync(ctx context.Context, userID int64, desiredRoleIDs []int64) (int, int, error) {
	return s.sync(ctx, userID, desiredRoleIDs)
}

type stubGrantRepo struct {
	listByRole     func(ctx context.Context, roleID int64) ([]types.RolePrivilege, error)
	listByRoleIDs  func(ctx context.Context, roleIDs []int64) ([]types.RolePrivilege, error)
	replaceForRole func(ctx context.Context, roleID, createdBy int64, permissions []string) error
}

func (s *stubGrantRepo) ListByRole(ctx context.Context, roleID int64) ([]types.RolePrivilege, error) {
	return s.listByRole(ctx, roleID)
}

func (s *stubGrantRepo) ListByRoleIDs(ctx context.Context, roleIDs []int64) ([]types.RolePrivilege, error) {
	return s.listByRoleIDs(ctx, roleIDs)
}

func (s *stubGrantRepo) ReplaceForRole(ctx context.Context, roleID, createdBy int64, permissions []string) error {
	return s.replaceForRole(ctx, roleID, createdBy, permissions)
}

func TestResolveUnionsAndDeduplicates(t *testing.T) {
	assignments := &stubAssignmentRepo{
		listByUser: func(ctx context.Context, userID int64) ([]types.UserRole, error) {
			return []types.UserRole{
				{ID: 1, UserID: userID, RoleID: 10},
				{ID: 2, UserID: userID, RoleID: 20},
			}, nil
		},
	}
	var queriedRoleIDs []int64
	grants := &stubGrantRepo{
		listByRoleIDs: func(ctx context.Context, roleIDs []int64) ([]types.RolePrivilege, error) {
			queriedRoleIDs = roleIDs
			return []types.RolePrivilege{
				{RoleID: 10, Permission: "user_view"},
				{RoleID: 10, Permission: "role_view"},
				{RoleID: 20, Permission: "user_view"},
				{RoleID: 20, Permission: "category_view"},
			}, nil
		},
	}

	svc := NewPrivilegeService(assignments, grants, NewCatalog(defaultPrivileges()))
	privileges, err := svc.Resolve(context.Background(), 1)
	require.NoError(t, err)

	// One batch query for the whole role set, overlapping grants
	// collapsed.
	assert.Equal(t, []int64{10, 20}, queriedRoleIDs)
	keys := make([]string, 0, len(privileges))
	for _, privilege := range privileges {
		keys = append(keys, privilege.Key)
	}
	assert.Equal(t, []string{"user_view", "role_view", "category_view"}, keys)
}

func TestResolveNoAssignments(t *testing.T) {
	assignments := &stubAssignmentRepo{
		listByUser: func(ctx context.Context, userID int64) ([]types.UserRole, error) {
			return []types.UserRole{}, nil
		},
	}
	grants := &stubGrantRepo{
		listByRoleIDs: func(ctx context.Context, roleIDs []int64) ([]types.RolePrivilege, error) {
			t.Fatal("grants must not be queried for a user with no roles")
			return nil, nil
		},
	}

	svc := NewPrivilegeService(assignments, grants, NewCatalog(defaultPrivileges()))
	privileges, err := svc.Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, privileges)
	assert.Empty(t, privileges)
}

func TestResolveDropsUnknownGrantKeys(t *testing.T) {
	assignments := &stubAssignmentRepo{
		listByUser: func(ctx context.Context, userID int64) ([]types.UserRole, error) {
			return []types.UserRole{{ID: 1, UserID: userID, RoleID: 10}}, nil
		},
	}
	grants := &stubGrantRepo{
		listByRoleIDs: func(ctx context.Context, roleIDs []int64) ([]types.RolePrivilege, error) {
			return []types.RolePrivilege{
				{RoleID: 10, Permission: "user_view"},
				{RoleID: 10, Permission: "retired_permission"},
			}, nil
		},
	}

	svc := NewPrivilegeService(assignments, grants, NewCatalog(defaultPrivileges()))
	privileges, err := svc.Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, privileges, 1)
	assert.Equal(t, "user_view", privileges[0].Key)
}

func TestLoadCatalogDefault(t *testing.T) {
	catalog, err := LoadCatalog("")
	require.NoError(t, err)

	entry, ok := catalog.Lookup("auditlogs_export")
	require.True(t, ok)
	assert.Equal(t, "AUDITLOGS", entry.Group)
	assert.Len(t, catalog.All(), 14)
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "privileges.json")
	contents := `{"privileges":[{"key":"report_view","name":"Report View","group":"REPORTS"}]}`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)

	entry, ok := catalog.Lookup("report_view")
	require.True(t, ok)
	assert.Equal(t, "Report View", entry.Name)

	_, ok = catalog.Lookup("user_view")
	assert.False(t, ok)
}
