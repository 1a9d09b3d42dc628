package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/backoffice-api/apiserver/internal/apperr"
	"github.com/backoffice-api/apiserver/internal/store"
	"github.com/backoffice-api/apiserver/types"
)

// RoleRepository defines persistence operations for roles.
type RoleRepository interface {
	GetByID(ctx context.Context, id int64) (types.Role, error)
	GetByName(ctx context.Context, name string) (types.Role, error)
	List(ctx context.Context) ([]types.Role, error)
	ListByIDs(ctx context.Context, ids []int64) ([]types.Role, error)
	Create(ctx context.Context, role types.Role) (types.Role, error)
	Update(ctx context.Context, role types.Role) (types.Role, error)
	Delete(ctx context.Context, id int64) error
}

// RoleService encapsulates role and grant use-cases.
type RoleService struct {
	repo    RoleRepository
	grants  GrantRepository
	catalog *Catalog
}

func NewRoleService(repo RoleRepository, grants GrantRepository, catalog *Catalog) *RoleService {
	return &RoleService{repo: repo, grants: grants, catalog: catalog}
}

func (s *RoleService) Get(ctx context.Context, id int64) (types.Role, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *RoleService) List(ctx context.Context) ([]types.Role, error) {
	return s.repo.List(ctx)
}

// ListPrivileges returns the grants currently attached to a role.
func (s *RoleService) ListPrivileges(ctx context.Context, roleID int64) ([]types.RolePrivilege, error) {
	return s.grants.ListByRole(ctx, roleID)
}

// Create adds a role and optionally attaches an initial privilege set.
func (s *RoleService) Create(ctx context.Context, name string, permissions []string, createdBy int64) (types.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Role{}, apperr.Validation("role_name field must be filled")
	}
	if err := s.checkPermissions(permissions); err != nil {
		return types.Role{}, err
	}

	role, err := s.repo.Create(ctx, types.Role{Name: name, IsActive: true, CreatedBy: createdBy})
	if err != nil {
		if err == store.ErrDuplicate {
			return types.Role{}, apperr.Conflict("Already Exists")
		}
		return types.Role{}, err
	}
	if len(permissions) > 0 {
		if err := s.grants.ReplaceForRole(ctx, role.ID, createdBy, permissions); err != nil {
			return types.Role{}, err
		}
	}
	return role, nil
}

// UpdateRoleInput carries a partial role update. A non-nil Permissions
// slice replaces the role's grants.
type UpdateRoleInput struct {
	ID          int64
	Name        *string
	IsActive    *bool
	Permissions []string
	UpdatedBy   int64
}

func (s *RoleService) Update(ctx context.Context, input UpdateRoleInput) (types.Role, error) {
	role, err := s.repo.GetByID(ctx, input.ID)
	if err != nil {
		return types.Role{}, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return types.Role{}, apperr.Validation("role_name field must be filled")
		}
		role.Name = name
	}
	if input.IsActive != nil {
		role.IsActive = *input.IsActive
	}

	role, err = s.repo.Update(ctx, role)
	if err != nil {
		if err == store.ErrDuplicate {
			return types.Role{}, apperr.Conflict("Already Exists")
		}
		return types.Role{}, err
	}

	if input.Permissions != nil {
		if err := s.checkPermissions(input.Permissions); err != nil {
			return types.Role{}, err
		}
		if err := s.grants.ReplaceForRole(ctx, role.ID, input.UpdatedBy, input.Permissions); err != nil {
			return types.Role{}, err
		}
	}
	return role, nil
}

func (s *RoleService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// checkPermissions rejects grant keys absent from the catalog. Unknown
// keys are tolerated at resolution time but not when granting.
func (s *RoleService) checkPermissions(permissions []string) error {
	for _, key := range permissions {
		if _, ok := s.catalog.Lookup(key); !ok {
			return apperr.Validation(fmt.Sprintf("unknown permission %q", key))
		}
	}
	return nil
}
