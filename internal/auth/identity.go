package auth

import (
	"github.com/vovakirdan/arview-server/internal/store"
)

// Role is the authorization level attached to an identity.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super-admin"
	RoleSystem     Role = "system"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin, RoleSystem:
		return true
	}
	return false
}

// Satisfies reports whether r meets the minimum role required by an endpoint.
// super-admin and system pass every check.
func (r Role) Satisfies(minimum Role) bool {
	switch r {
	case RoleSuperAdmin, RoleSystem:
		return true
	case RoleAdmin:
		return minimum != RoleSuperAdmin && minimum != RoleSystem
	case RoleUser:
		return minimum == RoleUser
	}
	return false
}

// Identity is the resolved actor behind a request or realtime connection.
type Identity struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

// Privileged reports whether the identity bypasses room ownership and membership.
func (i *Identity) Privileged() bool {
	return i != nil && (i.Role == RoleSuperAdmin || i.Role == RoleSystem)
}

// IdentityFromUser strips a stored user down to the fields shared with peers.
func IdentityFromUser(u *store.User) *Identity {
	return &Identity{
		ID:        u.ID,
		FirstName: u.FirstName,
		Email:     u.Email,
		Role:      Role(u.Role),
	}
}
