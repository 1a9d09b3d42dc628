package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/backoffice-api/apiserver/internal/apperr"
	"github.com/backoffice-api/apiserver/internal/store"
	"github.com/backoffice-api/apiserver/types"
)

// credentialsWrongMessage is returned for any login failure so the
// response never reveals whether the email or the password was wrong.
const credentialsWrongMessage = "Email or Password wrong"

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// UserService encapsulates account credential and lifecycle rules.
type UserService struct {
	repo        UserRepository
	roles       RoleRepository
	assignments AssignmentRepository
	validate    *validator.Validate

	bcryptCost        int
	minPasswordLength int
}

func NewUserService(repo UserRepository, roles RoleRepository, assignments AssignmentRepository, bcryptCost, minPasswordLength int) *UserService {
	return &UserService{
		repo:              repo,
		roles:             roles,
		assignments:       assignments,
		validate:          validator.New(),
		bcryptCost:        bcryptCost,
		minPasswordLength: minPasswordLength,
	}
}

func (s *UserService) GetByID(ctx context.Context, id int64) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

// VerifyPassword compares a plaintext password against the user's
// stored hash in constant time.
func (s *UserService) VerifyPassword(user types.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// validateCredentials checks email format and password length.
func (s *UserService) validateCredentials(email, password string) error {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return apperr.Validation("email field must be an email format")
	}
	if len(password) < s.minPasswordLength {
		return apperr.Validation(fmt.Sprintf("password length must be greater than %d", s.minPasswordLength))
	}
	return nil
}

// Authenticate verifies email/password credentials. Field validation
// happens before any database access, and every failure mode yields the
// same undifferentiated unauthorized error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	if s.validateCredentials(email, password) != nil {
		return types.User{}, apperr.Unauthorized(credentialsWrongMessage)
	}
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperr.Unauthorized(credentialsWrongMessage)
		}
		return types.User{}, err
	}
	if !user.IsActive || !s.VerifyPassword(user, password) {
		return types.User{}, apperr.Unauthorized(credentialsWrongMessage)
	}
	return user, nil
}

// RegisterInput is the payload for self-service registration.
type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
}

// Register creates a new account. The duplicate-email check runs before
// any other validation. The first account ever registered is elevated:
// the super-admin role is created and assigned to it. Later registrants
// start with no roles.
func (s *UserService) Register(ctx context.Context, input RegisterInput) error {
	if _, err := s.repo.GetByEmail(ctx, input.Email); err == nil {
		return apperr.Conflict("User already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if err := s.validateCredentials(input.Email, input.Password); err != nil {
		return err
	}

	existing, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}

	user, err := s.createUser(ctx, input.Email, input.Password, input.FirstName, input.LastName, input.PhoneNumber)
	if err != nil {
		return err
	}

	if existing == 0 {
		return s.bootstrapSuperAdmin(ctx, user)
	}
	return nil
}

// bootstrapSuperAdmin grants the first account full privileges: the
// super-admin role is created if absent, given every catalog privilege
// by the caller's role setup, and assigned to the user.
func (s *UserService) bootstrapSuperAdmin(ctx context.Context, user types.User) error {
	role, err := s.roles.GetByName(ctx, types.SuperAdminRole)
	if errors.Is(err, store.ErrNotFound) {
		role, err = s.roles.Create(ctx, types.Role{
			Name:      types.SuperAdminRole,
			IsActive:  true,
			CreatedBy: user.ID,
		})
	}
	if err != nil {
		return err
	}
	if _, err := s.assignments.Create(ctx, user.ID, role.ID); err != nil && !errors.Is(err, store.ErrDuplicate) {
		return err
	}
	return nil
}

// CreateUserInput is the payload for the admin user-add operation.
type CreateUserInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
	Roles       []int64
}

// Create adds an account with an initial role set. Unlike Register it
// requires at least one existing role.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (types.User, error) {
	if err := s.validateCredentials(input.Email, input.Password); err != nil {
		return types.User{}, err
	}
	if len(input.Roles) == 0 {
		return types.User{}, apperr.Validation("roles field must be filled")
	}
	roles, err := s.roles.ListByIDs(ctx, input.Roles)
	if err != nil {
		return types.User{}, err
	}
	if len(roles) != len(dedupeIDs(input.Roles)) {
		return types.User{}, apperr.Validation("roles field contains unknown roles")
	}

	user, err := s.createUser(ctx, input.Email, input.Password, input.FirstName, input.LastName, input.PhoneNumber)
	if err != nil {
		return types.User{}, err
	}
	for _, role := range roles {
		if _, err := s.assignments.Create(ctx, user.ID, role.ID); err != nil && !errors.Is(err, store.ErrDuplicate) {
			return types.User{}, err
		}
	}
	return user, nil
}

func (s *UserService) createUser(ctx context.Context, email, password, firstName, lastName, phoneNumber string) (types.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return types.User{}, err
	}
	user, err := s.repo.Create(ctx, types.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		IsActive:     true,
		FirstName:    firstName,
		LastName:     lastName,
		PhoneNumber:  phoneNumber,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, apperr.Conflict("User already exists")
		}
		return types.User{}, err
	}
	return user, nil
}

// UpdateUserInput carries a partial user update. Nil pointers leave the
// field unchanged; a non-nil Roles slice replaces the user's role set.
type UpdateUserInput struct {
	ID          int64
	Password    *string
	IsActive    *bool
	FirstName   *string
	LastName    *string
	PhoneNumber *string
	Roles       []int64
}

// Update applies a partial update and, when a role set is supplied,
// synchronizes assignments to exactly that set.
func (s *UserService) Update(ctx context.Context, input UpdateUserInput) (types.User, error) {
	user, err := s.repo.GetByID(ctx, input.ID)
	if err != nil {
		return types.User{}, err
	}

	if input.Password != nil {
		if len(*input.Password) < s.minPasswordLength {
			return types.User{}, apperr.Validation(fmt.Sprintf("password length must be greater than %d", s.minPasswordLength))
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), s.bcryptCost)
		if err != nil {
			return types.User{}, err
		}
		user.PasswordHash = string(hash)
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.PhoneNumber != nil {
		user.PhoneNumber = *input.PhoneNumber
	}

	user, err = s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, err
	}

	if input.Roles != nil {
		desired := dedupeIDs(input.Roles)
		roles, err := s.roles.ListByIDs(ctx, desired)
		if err != nil {
			return types.User{}, err
		}
		if len(roles) != len(desired) {
			return types.User{}, apperr.Validation("roles field contains unknown roles")
		}
		if _, _, err := s.assignments.Sync(ctx, user.ID, desired); err != nil {
			return types.User{}, err
		}
	}
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
