package auth

import (
	"context"
	"net/http"

	"github.com/MacJediWizard/orgtree/internal/models"
)

// PrincipalType identifies how a caller authenticated.
type PrincipalType string

const (
	PrincipalAPIKey   PrincipalType = "api_key"
	PrincipalOperator PrincipalType = "operator"
)

// SystemActor is stamped into audit fields when no principal is present,
// for example by the admin CLI.
const SystemActor = "system"

// Principal is an authorized caller. Both the API key gate and the operator
// session produce one, and repositories consume it identically.
type Principal struct {
	Type       PrincipalType     `json:"type"`
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Permission models.Permission `json:"permission"`
}

// Actor returns the value stamped into created_by and updated_by.
func (p *Principal) Actor() string {
	if p == nil || p.Name == "" {
		return SystemActor
	}
	return string(p.Type) + ":" + p.Name
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal carried by ctx.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// ActorFrom returns the audit actor for ctx.
func ActorFrom(ctx context.Context) string {
	p, _ := PrincipalFrom(ctx)
	return p.Actor()
}

// RequiredPermission maps an HTTP method to the permission it needs.
func RequiredPermission(method string) models.Permission {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return models.PermissionRead
	default:
		return models.PermissionReadWrite
	}
}
