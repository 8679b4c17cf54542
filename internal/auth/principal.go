package auth

import (
	"context"

	"github.com/samber/lo"

	"blog-api/internal/domain"
)

// Principal is the verified subject of a request together with its resolved role.
type Principal struct {
	UserID int64
	Role   domain.Role
}

// HasRole reports whether the principal holds one of roles.
func (p Principal) HasRole(roles ...domain.Role) bool {
	return lo.Contains(roles, p.Role)
}

// Owns reports whether the principal may act on a record owned by ownerID:
// owners and admins may.
func (p Principal) Owns(ownerID int64) bool {
	return p.UserID == ownerID || p.Role == domain.RoleAdmin
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom retrieves the principal stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
