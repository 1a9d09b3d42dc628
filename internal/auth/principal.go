package auth

import (
	"context"
	"time"

	"github.com/backoffice-api/apiserver/types"
)

// Principal is the resolved identity attached to an authenticated
// request. It is rebuilt from current database state on every request
// and never persisted or cached server-side.
type Principal struct {
	UserID     int64             `json:"id"`
	Email      string            `json:"email"`
	FirstName  string            `json:"first_name"`
	LastName   string            `json:"last_name"`
	Privileges []types.Privilege `json:"privileges"`
	ExpiresAt  time.Time         `json:"exp"`
}

// HasPrivilege reports whether the principal holds the privilege key.
func (p *Principal) HasPrivilege(key string) bool {
	for _, priv := range p.Privileges {
		if priv.Key == key {
			return true
		}
	}
	return false
}

type contextKey string

const principalContextKey contextKey = "principal"

// ContextWithPrincipal attaches the principal to the context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext returns the principal attached by the
// authentication middleware, or nil for unauthenticated requests.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey).(*Principal)
	return p
}
