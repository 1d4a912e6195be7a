package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/vovakirdan/arview-server/internal/store"
)

var (
	// ErrForbidden is returned when the actor may not touch the account.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrAccountNotFound is returned when the target account does not exist.
	ErrAccountNotFound = errors.New("user not found")
	// ErrRoleChangeForbidden is returned when a non super-admin tries to change a role.
	ErrRoleChangeForbidden = errors.New("only super-admin can change roles")
	// ErrRoleLocked is returned when the target's role may not be changed.
	ErrRoleLocked = errors.New("cannot modify this account's role")
	// ErrSystemEmail is returned when changing the email of a system account.
	ErrSystemEmail = errors.New("system account email cannot be changed")
	// ErrProtectedAccount is returned when deleting a super-admin or system account.
	ErrProtectedAccount = errors.New("system accounts cannot be deleted")
	// ErrNotOwnAccount is returned when a regular user deletes someone else.
	ErrNotOwnAccount = errors.New("you can only delete your own account")
)

// Registration is the input for a new account.
type Registration struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      Role
}

// AccountUpdate holds the account fields to change. Nil fields are kept.
type AccountUpdate struct {
	Email     *string
	FirstName *string
	LastName  *string
	Role      *Role
}

// Register creates an account. The very first account is created without an
// actor and always becomes super-admin; afterwards only super-admins register.
func (s *Service) Register(ctx context.Context, actor *Identity, reg Registration) (*store.User, error) {
	n, err := s.users.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	role := reg.Role
	switch {
	case n == 0:
		role = RoleSuperAdmin
	case actor == nil || !actor.Privileged():
		return nil, ErrForbidden
	}
	return s.CreateUser(ctx, reg.Email, reg.Password, reg.FirstName, reg.LastName, role)
}

// SetPasswordByID replaces the password of the user with the given id.
func (s *Service) SetPasswordByID(ctx context.Context, id, password string) error {
	if len(password) < minPasswordLength {
		return ErrInvalidPassword
	}
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, id, hashedPassword); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	return nil
}

// Account returns the account named by key, an id or an email address.
// Lookups by email are reserved for super-admins; by id, users may read their own.
func (s *Service) Account(ctx context.Context, actor *Identity, key string) (*store.User, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	if strings.Contains(key, "@") {
		if !actor.Privileged() {
			return nil, ErrForbidden
		}
		return s.loadAccount(s.users.GetUserByEmail(ctx, key))
	}
	if !actor.Privileged() && actor.ID != key {
		return nil, ErrForbidden
	}
	return s.loadAccount(s.users.GetUserByID(ctx, key))
}

// UpdateAccount applies update to the account id on behalf of actor.
func (s *Service) UpdateAccount(ctx context.Context, actor *Identity, id string, update AccountUpdate) (*store.User, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	target, err := s.loadAccount(s.users.GetUserByID(ctx, id))
	if err != nil {
		return nil, err
	}
	self := actor.ID == id
	if !self && !actor.Privileged() {
		return nil, ErrForbidden
	}

	if update.Role != nil {
		if !actor.Privileged() {
			return nil, ErrRoleChangeForbidden
		}
		if Role(target.Role) == RoleSystem || (Role(target.Role) == RoleSuperAdmin && !self) {
			return nil, ErrRoleLocked
		}
		if !update.Role.Valid() || *update.Role == RoleSystem {
			return nil, ErrInvalidRole
		}
		target.Role = string(*update.Role)
	}
	if update.Email != nil {
		if Role(target.Role) == RoleSystem {
			return nil, ErrSystemEmail
		}
		email := strings.TrimSpace(*update.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, ErrInvalidEmail
		}
		target.Email = email
	}
	if update.FirstName != nil {
		target.FirstName = strings.TrimSpace(*update.FirstName)
	}
	if update.LastName != nil {
		target.LastName = strings.TrimSpace(*update.LastName)
	}

	if err := s.users.UpdateUser(ctx, target); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return target, nil
}

// DeleteAccount removes the account id. Super-admins may delete anyone but
// other super-admins and system accounts; everyone else only themselves.
func (s *Service) DeleteAccount(ctx context.Context, actor *Identity, id string) error {
	if actor == nil {
		return ErrForbidden
	}
	target, err := s.loadAccount(s.users.GetUserByID(ctx, id))
	if err != nil {
		return err
	}
	if actor.Privileged() {
		if r := Role(target.Role); r == RoleSuperAdmin || r == RoleSystem {
			return ErrProtectedAccount
		}
	} else if actor.ID != id {
		return ErrNotOwnAccount
	}

	if err := s.users.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *Service) loadAccount(user *store.User, err error) (*store.User, error) {
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}
