// Package auth describes the authenticated caller of a lifecycle operation.
package auth

import "context"

// Role is the coarse privilege level of a caller.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleEmployee, RoleAdmin:
		return true
	default:
		return false
	}
}

// Principal is an already-authenticated caller.
type Principal struct {
	UserID int64
	Role   Role
}

// IsStaff reports whether the principal may act on any order.
func (p Principal) IsStaff() bool {
	return p.Role == RoleEmployee || p.Role == RoleAdmin
}

// CanAccess reports whether the principal may read a resource owned by ownerID.
func (p Principal) CanAccess(ownerID int64) bool {
	return p.IsStaff() || p.UserID == ownerID
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored in ctx, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
