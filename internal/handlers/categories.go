package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/backoffice-api/apiserver/internal/apperr"
	"github.com/backoffice-api/apiserver/internal/services"
	"github.com/backoffice-api/apiserver/types"
)

// CategoryHandler provides the category CRUD endpoints.
type CategoryHandler struct {
	categories *services.CategoryService
	audit      *services.AuditService
}

func NewCategoryHandler(categories *services.CategoryService, audit *services.AuditService) *CategoryHandler {
	return &CategoryHandler{categories: categories, audit: audit}
}

// CategoryRouter registers category routes.
func CategoryRouter(r chi.Router, categories *services.CategoryService, audit *services.AuditService, authn *Authenticator) {
	handler := NewCategoryHandler(categories, audit)

	r.Use(authn.RequireAuth)
	r.With(RequirePrivilege("category_view")).Get("/", handler.List)
	r.With(RequirePrivilege("category_add")).Post("/add", handler.Add)
	r.With(RequirePrivilege("category_update")).Post("/update", handler.Update)
	r.With(RequirePrivilege("category_delete")).Post("/delete", handler.Delete)
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

type AddCategoryRequest struct {
	Name string `json:"name"`
}

func (h *CategoryHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	if req.Name == "" {
		writeError(w, apperr.Validation("name field must be filled"))
		return
	}

	category, err := h.categories.Create(r.Context(), types.Category{
		Name:      req.Name,
		IsActive:  true,
		CreatedBy: principalID(r),
	})
	if err != nil {
		h.audit.Error(r.Context(), principalEmail(r), "Categories", "Add", req)
		writeError(w, err)
		return
	}

	h.audit.Info(r.Context(), principalEmail(r), "Categories", "Add", category)
	writeJSON(w, http.StatusCreated, SuccessResponse{Success: true})
}

type UpdateCategoryRequest struct {
	ID       int64   `json:"id"`
	Name     *string `json:"name"`
	IsActive *bool   `json:"is_active"`
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	if req.ID == 0 {
		writeError(w, apperr.Validation("id field must be filled"))
		return
	}

	category, err := h.categories.Get(r.Context(), req.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Name != nil {
		if *req.Name == "" {
			writeError(w, apperr.Validation("name field must be filled"))
			return
		}
		category.Name = *req.Name
	}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}

	category, err = h.categories.Update(r.Context(), category)
	if err != nil {
		writeError(w, err)
		return
	}

	h.audit.Info(r.Context(), principalEmail(r), "Categories", "Update", category)
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

type DeleteCategoryRequest struct {
	ID int64 `json:"id"`
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	if req.ID == 0 {
		writeError(w, apperr.Validation("id field must be filled"))
		return
	}

	if err := h.categories.Delete(r.Context(), req.ID); err != nil {
		writeError(w, err)
		return
	}

	h.audit.Info(r.Context(), principalEmail(r), "Categories", "Delete", DeleteCategoryRequest{ID: req.ID})
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
