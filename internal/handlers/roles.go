package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/backoffice-api/apiserver/internal/apperr"
	"github.com/backoffice-api/apiserver/internal/services"
)

// RoleHandler provides the role administration endpoints.
type RoleHandler struct {
	roles      *services.RoleService
	privileges *services.PrivilegeService
	audit      *services.AuditService
}

func NewRoleHandler(roles *services.RoleService, privileges *services.PrivilegeService, audit *services.AuditService) *RoleHandler {
	return &RoleHandler{roles: roles, privileges: privileges, audit: audit}
}

// RoleRouter registers role routes. All of them require authentication.
func RoleRouter(r chi.Router, roles *services.RoleService, privileges *services.PrivilegeService, audit *services.AuditService, authn *Authenticator) {
	handler := NewRoleHandler(roles, privileges, audit)

	r.Use(authn.RequireAuth)
	r.With(RequirePrivilege("role_view")).Get("/", handler.List)
	r.With(RequirePrivilege("role_view")).Get("/role_privileges", handler.CatalogPrivileges)
	r.With(RequirePrivilege("role_add")).Post("/add", handler.Add)
	r.With(RequirePrivilege("role_update")).Post("/update", handler.Update)
	r.With(RequirePrivilege("role_delete")).Post("/delete", handler.Delete)
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

// CatalogPrivileges returns the static privilege catalog, for building
// role editing UIs.
func (h *RoleHandler) CatalogPrivileges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.privileges.Catalog().All())
}

type AddRoleRequest struct {
	Name        string   `json:"role_name"`
	Permissions []string `json:"permissions"`
}

func (h *RoleHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	role, err := h.roles.Create(r.Context(), req.Name, req.Permissions, principalID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	h.audit.Info(r.Context(), principalEmail(r), "Roles", "Add", role)
	writeJSON(w, http.StatusCreated, SuccessResponse{Success: true})
}

type UpdateRoleRequest struct {
	ID          int64    `json:"id"`
	Name        *string  `json:"role_name"`
	IsActive    *bool    `json:"is_active"`
	Permissions []string `json:"permissions"`
}

func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	if req.ID == 0 {
		writeError(w, apperr.Validation("id field must be filled"))
		return
	}

	role, err := h.roles.Update(r.Context(), services.UpdateRoleInput{
		ID:          req.ID,
		Name:        req.Name,
		IsActive:    req.IsActive,
		Permissions: req.Permissions,
		UpdatedBy:   principalID(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.audit.Info(r.Context(), principalEmail(r), "Roles", "Update", role)
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

type DeleteRoleRequest struct {
	ID int64 `json:"id"`
}

func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	if req.ID == 0 {
		writeError(w, apperr.Validation("id field must be filled"))
		return
	}

	if err := h.roles.Delete(r.Context(), req.ID); err != nil {
		writeError(w, err)
		return
	}

	h.audit.Info(r.Context(), principalEmail(r), "Roles", "Delete", DeleteRoleRequest{ID: req.ID})
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
