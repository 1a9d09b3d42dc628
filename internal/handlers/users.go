package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/backoffice-api/apiserver/internal/apperr"
	"github.com/backoffice-api/apiserver/internal/services"
)

// UserHandler provides the user administration endpoints.
type UserHandler struct {
	users *services.UserService
	audit *services.AuditService
}

func NewUserHandler(users *services.UserService, audit *services.AuditService) *UserHandler {
	return &UserHandler{users: users, audit: audit}
}

// UserRouter registers authentication and user administration routes.
func UserRouter(r chi.Router, users *services.UserService, audit *services.AuditService, tokens TokenIssuer, authn *Authenticator) {
	authHandler := NewAuthHandler(users, tokens, audit)
	handler := NewUserHandler(users, audit)

	r.Post("/register", authHandler.Register)
	r.Post("/auth", authHandler.Login)

	r.Group(func(r chi.Router) {
		r.Use(authn.RequireAuth)
		r.With(RequirePrivilege("user_view")).Get("/", handler.List)
		r.With(RequirePrivilege("user_add")).Post("/add", handler.Add)
		r.With(RequirePrivilege("user_update")).Post("/update", handler.Update)
		r.With(RequirePrivilege("user_delete")).Post("/delete", handler.Delete)
	})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type AddUserRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	PhoneNumber string  `json:"phone_number"`
	Roles       []int64 `json:"roles"`
}

func (h *UserHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	user, err := h.users.Create(r.Context(), services.CreateUserInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Roles:       req.Roles,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.audit.Info(r.Context(), principalEmail(r), "Users", "Add", user.Summary())
	writeJSON(w, http.StatusCreated, SuccessResponse{Success: true})
}

type UpdateUserRequest struct {
	ID          int64   `json:"id"`
	Password    *string `json:"password"`
	IsActive    *bool   `json:"is_active"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
	Roles       []int64 `json:"roles"`
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	if req.ID == 0 {
		writeError(w, apperr.Validation("id field must be filled"))
		return
	}

	user, err := h.users.Update(r.Context(), services.UpdateUserInput{
		ID:          req.ID,
		Password:    req.Password,
		IsActive:    req.IsActive,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Roles:       req.Roles,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.audit.Info(r.Context(), principalEmail(r), "Users", "Update", user.Summary())
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

type DeleteUserRequest struct {
	ID int64 `json:"id"`
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	if req.ID == 0 {
		writeError(w, apperr.Validation("id field must be filled"))
		return
	}

	if err := h.users.Delete(r.Context(), req.ID); err != nil {
		writeError(w, err)
		return
	}

	h.audit.Info(r.Context(), principalEmail(r), "Users", "Delete", DeleteUserRequest{ID: req.ID})
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
