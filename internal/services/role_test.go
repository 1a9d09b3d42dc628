package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backoffice-api/apiserver/internal/apperr"
	"github.com/backoffice-api/apiserver/internal/store"
	"github.com/backoffice-api/apiserver/types"
)

func TestRoleCreateRejectsBlankName(t *testing.T) {
	svc := NewRoleService(&stubRoleRepo{}, &stubGrantRepo{}, NewCatalog(defaultPrivileges()))

	_, err := svc.Create(context.Background(), "   ", nil, 1)
	apiErr := apperr.From(err)
	assert.Equal(t, 400, apiErr.Code)
	assert.Equal(t, "role_name field must be filled", apiErr.Description)
}

func TestRoleCreateRejectsUnknownPermission(t *testing.T) {
	repo := &stubRoleRepo{
		create: func(ctx context.Context, role types.Role) (types.Role, error) {
			t.Fatal("role must not be created with an unknown permission")
			return types.Role{}, nil
		},
	}
	svc := NewRoleService(repo, &stubGrantRepo{}, NewCatalog(defaultPrivileges()))

	_, err := svc.Create(context.Background(), "Editors", []string{"user_view", "launch_missiles"}, 1)
	apiErr := apperr.From(err)
	assert.Equal(t, 400, apiErr.Code)
	assert.Contains(t, apiErr.Description, "launch_missiles")
}

func TestRoleCreateDuplicateName(t *testing.T) {
	repo := &stubRoleRepo{
		create: func(ctx context.Context, role types.Role) (types.Role, error) {
			return types.Role{}, store.ErrDuplicate
		},
	}
	svc := NewRoleService(repo, &stubGrantRepo{}, NewCatalog(defaultPrivileges()))

	_, err := svc.Create(context.Background(), "Editors", nil, 1)
	apiErr := apperr.From(err)
	assert.Equal(t, 409, apiErr.Code)
	assert.Equal(t, "Already Exists", apiErr.Description)
}

func TestRoleCreateAttachesPermissions(t *testing.T) {
	repo := &stubRoleRepo{
		create: func(ctx context.Context, role types.Role) (types.Role, error) {
			role.ID = 7
			return role, nil
		},
	}
	var replacedRole int64
	var replacedPermissions []string
	grants := &stubGrantRepo{
		replaceForRole: func(ctx context.Context, roleID, createdBy int64, permissions []string) error {
			replacedRole = roleID
			replacedPermissions = permissions
			return nil
		},
	}
	svc := NewRoleService(repo, grants, NewCatalog(defaultPrivileges()))

	role, err := svc.Create(context.Background(), "  Editors  ", []string{"user_view", "user_update"}, 1)
	require.NoError(t, err)
	assert.Equal(t, "Editors", role.Name)
	assert.True(t, role.IsActive)
	assert.Equal(t, int64(7), replacedRole)
	assert.Equal(t, []string{"user_view", "user_update"}, replacedPermissions)
}

func TestRoleUpdateReplacesGrantsOnlyWhenProvided(t *testing.T) {
	repo := &stubRoleRepo{
		getByID: func(ctx context.Context, id int64) (types.Role, error) {
			return types.Role{ID: id, Name: "Editors", IsActive: true}, nil
		},
		update: func(ctx context.Context, role types.Role) (types.Role, error) {
			return role, nil
		},
	}
	grants := &stubGrantRepo{
		replaceForRole: func(ctx context.Context, roleID, createdBy int64, permissions []string) error {
			t.Fatal("grants must not be replaced when permissions are omitted")
			return nil
		},
	}
	svc := NewRoleService(repo, grants, NewCatalog(defaultPrivileges()))

	active := false
	role, err := svc.Update(context.Background(), UpdateRoleInput{ID: 7, IsActive: &active})
	require.NoError(t, err)
	assert.False(t, role.IsActive)
	assert.Equal(t, "Editors", role.Name)
}

func TestRoleUpdateReplacesGrantSet(t *testing.T) {
	repo := &stubRoleRepo{
		getByID: func(ctx context.Context, id int64) (types.Role, error) {
			return types.Role{ID: id, Name: "Editors", IsActive: true}, nil
		},
		update: func(ctx context.Context, role types.Role) (types.Role, error) {
			return role, nil
		},
	}
	var replaced []string
	grants := &stubGrantRepo{
		replaceForRole: func(ctx context.Context, roleID, createdBy int64, permissions []string) error {
			replaced = permissions
			return nil
		},
	}
	svc := NewRoleService(repo, grants, NewCatalog(defaultPrivileges()))

	_, err := svc.Update(context.Background(), UpdateRoleInput{
		ID:          7,
		Permissions: []string{"role_view"},
		UpdatedBy:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"role_view"}, replaced)
}
