package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/backoffice-api/apiserver/internal/apperr"
	"github.com/backoffice-api/apiserver/internal/auth"
	"github.com/backoffice-api/apiserver/internal/store"
)

// ErrorBody is the message/description pair inside the error envelope.
type ErrorBody struct {
	Message     string `json:"message"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error envelope returned to clients.
type ErrorResponse struct {
	Code  int       `json:"code"`
	Error ErrorBody `json:"error"`
}

// SuccessResponse is the minimal success payload for mutations.
type SuccessResponse struct {
	Success bool `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// writeError converts any error into the standard envelope. Errors
// without a client-safe representation become a generic 500.
func writeError(w http.ResponseWriter, err error) {
	apiErr := toAPIError(err)
	writeJSON(w, apiErr.Code, ErrorResponse{
		Code: apiErr.Code,
		Error: ErrorBody{
			Message:     apiErr.Message,
			Description: apiErr.Description,
		},
	})
}

// Healthz reports process liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(r *http.Request, value any) error {
	return json.NewDecoder(r.Body).Decode(value)
}

// principalEmail returns the authenticated actor's email for audit
// entries, or empty for unauthenticated requests.
func principalEmail(r *http.Request) string {
	if principal := auth.PrincipalFromContext(r.Context()); principal != nil {
		return principal.Email
	}
	return ""
}

// principalID returns the authenticated actor's user id, or zero.
func principalID(r *http.Request) int64 {
	if principal := auth.PrincipalFromContext(r.Context()); principal != nil {
		return principal.UserID
	}
	return 0
}

func toAPIError(err error) *apperr.Error {
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return apperr.Conflict("Already Exists")
	case errors.Is(err, store.ErrNotFound):
		return apperr.Validation("record not found")
	default:
		return apperr.From(err)
	}
}
