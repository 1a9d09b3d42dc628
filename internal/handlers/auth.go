package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/backoffice-api/apiserver/internal/apperr"
	"github.com/backoffice-api/apiserver/internal/auth"
	"github.com/backoffice-api/apiserver/internal/services"
	"github.com/backoffice-api/apiserver/internal/store"
	"github.com/backoffice-api/apiserver/types"
)

// Authenticator is the authentication middleware. It verifies the
// bearer token, reloads the subject from the database and rebuilds the
// principal's privilege set on every request, so privilege changes and
// account deactivation take effect on the next request without waiting
// for token expiry.
type Authenticator struct {
	verifier   auth.Verifier
	users      *services.UserService
	privileges *services.PrivilegeService
}

func NewAuthenticator(verifier auth.Verifier, users *services.UserService, privileges *services.PrivilegeService) *Authenticator {
	return &Authenticator{
		verifier:   verifier,
		users:      users,
		privileges: privileges,
	}
}

// RequireAuth rejects the request with 401 before touching the
// database when the Authorization header is absent or malformed, or
// when token verification fails. A verified token whose subject is
// missing or deactivated is rejected the same way.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeError(w, apperr.Unauthorized("missing or invalid authorization header"))
			return
		}

		subjectID, expiresAt, err := a.verifier.Verify(tokenString)
		if err != nil {
			writeError(w, apperr.Unauthorized("invalid or expired token"))
			return
		}

		user, err := a.users.GetByID(r.Context(), subjectID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, apperr.Unauthorized("unknown subject"))
				return
			}
			writeError(w, err)
			return
		}
		if !user.IsActive {
			writeError(w, apperr.Unauthorized("account is deactivated"))
			return
		}

		privileges, err := a.privileges.Resolve(r.Context(), user.ID)
		if err != nil {
			writeError(w, err)
			return
		}

		principal := &auth.Principal{
			UserID:     user.ID,
			Email:      user.Email,
			FirstName:  user.FirstName,
			LastName:   user.LastName,
			Privileges: privileges,
			ExpiresAt:  expiresAt,
		}
		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePrivilege authorizes the request against the resolved
// principal. Must run after RequireAuth.
func RequirePrivilege(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := auth.PrincipalFromContext(r.Context())
			if principal == nil {
				writeError(w, apperr.Unauthorized("authentication required"))
				return
			}
			if !principal.HasPrivilege(key) {
				writeError(w, apperr.New(http.StatusForbidden, "Forbidden", "insufficient privileges"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// TokenIssuer issues a token for an authenticated subject. Satisfied by
// *auth.TokenService.
type TokenIssuer interface {
	Issue(subjectID int64) (string, error)
}

// AuthHandler provides the login and registration endpoints.
type AuthHandler struct {
	users  *services.UserService
	tokens TokenIssuer
	audit  *services.AuditService
}

func NewAuthHandler(users *services.UserService, tokens TokenIssuer, audit *services.AuditService) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, audit: audit}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string            `json:"token"`
	User  types.UserSummary `json:"user"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
}

// Login verifies credentials and returns a signed token with a minimal
// subject summary.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: user.Summary()})
}

// Register creates a new account. The first account ever registered is
// elevated to super admin.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	err := h.users.Register(r.Context(), services.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.audit.Info(r.Context(), req.Email, "Users", "Register", SuccessResponse{Success: true})
	writeJSON(w, http.StatusCreated, SuccessResponse{Success: true})
}
