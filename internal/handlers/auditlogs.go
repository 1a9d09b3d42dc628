package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/backoffice-api/apiserver/internal/apperr"
	"github.com/backoffice-api/apiserver/internal/services"
	"github.com/backoffice-api/apiserver/internal/store"
)

// AuditLogHandler provides audit trail listing and export endpoints.
type AuditLogHandler struct {
	audit *services.AuditService
}

func NewAuditLogHandler(audit *services.AuditService) *AuditLogHandler {
	return &AuditLogHandler{audit: audit}
}

// AuditLogRouter registers audit log routes.
func AuditLogRouter(r chi.Router, audit *services.AuditService, authn *Authenticator) {
	handler := NewAuditLogHandler(audit)

	r.Use(authn.RequireAuth)
	r.With(RequirePrivilege("auditlogs_view")).Post("/", handler.List)
	r.With(RequirePrivilege("auditlogs_export")).Post("/export", handler.Export)
}

type AuditLogListRequest struct {
	BeginDate *time.Time `json:"begin_date"`
	EndDate   *time.Time `json:"end_date"`
	Skip      int        `json:"skip"`
	Limit     int        `json:"limit"`
}

func (req AuditLogListRequest) filter() store.AuditLogFilter {
	filter := store.AuditLogFilter{Skip: req.Skip, Limit: req.Limit}
	if req.BeginDate != nil && req.EndDate != nil {
		filter.BeginDate = *req.BeginDate
		filter.EndDate = *req.EndDate
	}
	return filter
}

// List returns audit entries newest first. Without a date range the
// last day is returned; the page size is capped by the store.
func (h *AuditLogHandler) List(w http.ResponseWriter, r *http.Request) {
	var req AuditLogListRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	entries, err := h.audit.List(r.Context(), req.filter())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type AuditLogExportResponse struct {
	ObjectKey string `json:"object_key"`
}

// Export archives the matching entries to object storage and returns
// the object key.
func (h *AuditLogHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req AuditLogListRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	key, err := h.audit.Export(r.Context(), req.filter())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuditLogExportResponse{ObjectKey: key})
}
