package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/backoffice-api/apiserver/internal/auth"
	"github.com/backoffice-api/apiserver/internal/services"
	"github.com/backoffice-api/apiserver/internal/store"
	"github.com/backoffice-api/apiserver/types"
)

// fakeUserRepo is an in-memory user repository keyed by id and email.
type fakeUserRepo struct {
	users  map[int64]types.User
	nextID int64

	// forbidden makes any call fail the test. Used to prove a path
	// never reaches the database.
	forbidden bool
	t         *testing.T
}

func newFakeUserRepo(t *testing.T, users ...types.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: map[int64]types.User{}, nextID: 1, t: t}
	for _, user := range users {
		repo.users[user.ID] = user
		if user.ID >= repo.nextID {
			repo.nextID = user.ID + 1
		}
	}
	return repo
}

func (f *fakeUserRepo) guard() {
	if f.forbidden {
		f.t.Helper()
		f.t.Fatal("user repository must not be touched on this path")
	}
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int64) (types.User, error) {
	f.guard()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	f.guard()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) List(ctx context.Context) ([]types.User, error) {
	f.guard()
	users := []types.User{}
	for _, user := range f.users {
		users = append(users, user)
	}
	return users, nil
}

func (f *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	f.guard()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = f.nextID
	f.nextID++
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	f.guard()
	if _, ok := f.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id int64) error {
	f.guard()
	if _, ok := f.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) Count(ctx context.Context) (int, error) {
	f.guard()
	return len(f.users), nil
}

// fakeRoleRepo serves a fixed role list.
type fakeRoleRepo struct {
	roles map[int64]types.Role
}

func (f *fakeRoleRepo) GetByID(ctx context.Context, id int64) (types.Role, error) {
	role, ok := f.roles[id]
	if !ok {
		return types.Role{}, store.ErrNotFound
	}
	return role, nil
}

func (f *fakeRoleRepo) GetByName(ctx context.Context, name string) (types.Role, error) {
	for _, role := range f.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return types.Role{}, store.ErrNotFound
}

func (f *fakeRoleRepo) List(ctx context.Context) ([]types.Role, error) {
	roles := []types.Role{}
	for _, role := range f.roles {
		roles = append(roles, role)
	}
	return roles, nil
}

func (f *fakeRoleRepo) ListByIDs(ctx context.Context, ids []int64) ([]types.Role, error) {
	roles := []types.Role{}
	for _, id := range ids {
		if role, ok := f.roles[id]; ok {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

func (f *fakeRoleRepo) Create(ctx context.Context, role types.Role) (types.Role, error) {
	id := int64(len(f.roles) + 1)
	role.ID = id
	if f.roles == nil {
		f.roles = map[int64]types.Role{}
	}
	f.roles[id] = role
	return role, nil
}

func (f *fakeRoleRepo) Update(ctx context.Context, role types.Role) (types.Role, error) {
	f.roles[role.ID] = role
	return role, nil
}

func (f *fakeRoleRepo) Delete(ctx context.Context, id int64) error {
	delete(f.roles, id)
	return nil
}

// fakeAssignmentRepo maps a user to a fixed role set.
type fakeAssignmentRepo struct {
	byUser map[int64][]int64
}

func (f *fakeAssignmentRepo) ListByUser(ctx context.Context, userID int64) ([]types.UserRole, error) {
	assignments := []types.UserRole{}
	for i, roleID := range f.byUser[userID] {
		assignments = append(assignments, types.UserRole{ID: int64(i + 1), UserID: userID, RoleID: roleID})
	}
	return assignments, nil
}

func (f *fakeAssignmentRepo) Create(ctx context.Context, userID, roleID int64) (types.UserRole, error) {
	if f.byUser == nil {
		f.byUser = map[int64][]int64{}
	}
	f.byUser[userID] = append(f.byUser[userID], roleID)
	return types.UserRole{UserID: userID, RoleID: roleID}, nil
}

func (f *fakeAssignmentRepo) Sync(ctx context.Context, userID int64, desiredRoleIDs []int64) (int, int, error) {
	f.byUser[userID] = desiredRoleIDs
	return 0, 0, nil
}

// fakeGrantRepo maps a role to a fixed permission set.
type fakeGrantRepo struct {
	byRole map[int64][]string
}

func (f *fakeGrantRepo) ListByRole(ctx context.Context, roleID int64) ([]types.RolePrivilege, error) {
	return f.ListByRoleIDs(ctx, []int64{roleID})
}

func (f *fakeGrantRepo) ListByRoleIDs(ctx context.Context, roleIDs []int64) ([]types.RolePrivilege, error) {
	grants := []types.RolePrivilege{}
	for _, roleID := range roleIDs {
		for _, permission := range f.byRole[roleID] {
			grants = append(grants, types.RolePrivilege{RoleID: roleID, Permission: permission})
		}
	}
	return grants, nil
}

func (f *fakeGrantRepo) ReplaceForRole(ctx context.Context, roleID, createdBy int64, permissions []string) error {
	if f.byRole == nil {
		f.byRole = map[int64][]string{}
	}
	f.byRole[roleID] = permissions
	return nil
}

// fakeAuditRepo records entries in memory.
type fakeAuditRepo struct {
	entries []types.AuditLog
}

func (f *fakeAuditRepo) Create(ctx context.Context, entry types.AuditLog) (types.AuditLog, error) {
	entry.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fakeAuditRepo) List(ctx context.Context, filter store.AuditLogFilter) ([]types.AuditLog, error) {
	return f.entries, nil
}

type testEnv struct {
	router   *chi.Mux
	tokens   *auth.TokenService
	userRepo *fakeUserRepo
	audit    *fakeAuditRepo
}

// newTestEnv wires the user routes against in-memory repositories. The
// stored user holds user_view through role 10.
func newTestEnv(t *testing.T, users ...types.User) *testEnv {
	t.Helper()

	userRepo := newFakeUserRepo(t, users...)
	roleRepo := &fakeRoleRepo{roles: map[int64]types.Role{10: {ID: 10, Name: "Viewers", IsActive: true}}}
	assignmentRepo := &fakeAssignmentRepo{byUser: map[int64][]int64{1: {10}}}
	grantRepo := &fakeGrantRepo{byRole: map[int64][]string{10: {"user_view"}}}
	auditRepo := &fakeAuditRepo{}

	catalog := services.NewCatalog([]types.Privilege{
		{Key: "user_view", Name: "User View", Group: "USERS"},
		{Key: "user_add", Name: "User Add", Group: "USERS"},
	})

	userService := services.NewUserService(userRepo, roleRepo, assignmentRepo, bcrypt.MinCost, 8)
	privilegeService := services.NewPrivilegeService(assignmentRepo, grantRepo, catalog)
	auditService := services.NewAuditService(auditRepo, nil, "audit-events", nil)

	tokens := auth.NewTokenService("test-secret", time.Hour)
	authn := NewAuthenticator(tokens, userService, privilegeService)

	router := chi.NewRouter()
	router.Route("/users", func(r chi.Router) {
		UserRouter(r, userService, auditService, tokens, authn)
	})

	return &testEnv{router: router, tokens: tokens, userRepo: userRepo, audit: auditRepo}
}

func (env *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func activeUser(t *testing.T, id int64, email, password string) types.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return types.User{ID: id, Email: email, PasswordHash: string(hash), IsActive: true, FirstName: "Ada", LastName: "Admin"}
}

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t, activeUser(t, 1, "admin@example.com", "strong-password"))

	rec := env.do(t, http.MethodPost, "/users/auth", "", LoginRequest{
		Email:    "admin@example.com",
		Password: "strong-password",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, int64(1), resp.User.ID)
	assert.Equal(t, "Ada", resp.User.FirstName)

	subject, _, err := env.tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), subject)
}

func TestLoginFailureBodiesAreIdentical(t *testing.T) {
	env := newTestEnv(t, activeUser(t, 1, "admin@example.com", "strong-password"))

	wrongPassword := env.do(t, http.MethodPost, "/users/auth", "", LoginRequest{
		Email:    "admin@example.com",
		Password: "wrong-password",
	})
	unknownEmail := env.do(t, http.MethodPost, "/users/auth", "", LoginRequest{
		Email:    "nobody@example.com",
		Password: "strong-password",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
	assert.Contains(t, wrongPassword.Body.String(), "Email or Password wrong")
}

func TestRequireAuthRejectsBadHeadersWithoutDatabase(t *testing.T) {
	env := newTestEnv(t)
	env.userRepo.forbidden = true

	for _, header := range []string{"", "Token abc", "Bearer", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/users/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestRequireAuthRejectsInvalidToken(t *testing.T) {
	env := newTestEnv(t)
	env.userRepo.forbidden = true

	rec := env.do(t, http.MethodGet, "/users/", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthRejectsDeactivatedUser(t *testing.T) {
	user := activeUser(t, 1, "admin@example.com", "strong-password")
	user.IsActive = false
	env := newTestEnv(t, user)

	token, err := env.tokens.Issue(1)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/users/", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "account is deactivated")
}

func TestRequireAuthRejectsUnknownSubject(t *testing.T) {
	env := newTestEnv(t)

	token, err := env.tokens.Issue(999)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/users/", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequirePrivilegeForbidsMissingPrivilege(t *testing.T) {
	env := newTestEnv(t, activeUser(t, 1, "admin@example.com", "strong-password"))

	token, err := env.tokens.Issue(1)
	require.NoError(t, err)

	// Role 10 only grants user_view.
	listed := env.do(t, http.MethodGet, "/users/", token, nil)
	assert.Equal(t, http.StatusOK, listed.Code)

	added := env.do(t, http.MethodPost, "/users/add", token, AddUserRequest{
		Email:    "new@example.com",
		Password: "strong-password",
		Roles:    []int64{10},
	})
	assert.Equal(t, http.StatusForbidden, added.Code)
	assert.Contains(t, added.Body.String(), "Forbidden")
}

func TestRegisterFlow(t *testing.T) {
	env := newTestEnv(t)

	created := env.do(t, http.MethodPost, "/users/register", "", RegisterRequest{
		Email:     "First@Example.com",
		Password:  "strong-password",
		FirstName: "Ada",
	})
	require.Equal(t, http.StatusCreated, created.Code)

	// The first account is elevated, so its credentials work and it can
	// reach protected routes through the super-admin role.
	duplicate := env.do(t, http.MethodPost, "/users/register", "", RegisterRequest{
		Email:    "first@example.com",
		Password: "another-password",
	})
	assert.Equal(t, http.StatusConflict, duplicate.Code)
	assert.Contains(t, duplicate.Body.String(), "User already exists")

	invalid := env.do(t, http.MethodPost, "/users/register", "", RegisterRequest{
		Email:    "not-an-email",
		Password: "strong-password",
	})
	assert.Equal(t, http.StatusBadRequest, invalid.Code)

	require.NotEmpty(t, env.audit.entries)
	assert.Equal(t, "Register", env.audit.entries[0].Action)
}
