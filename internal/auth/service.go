package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/vovakirdan/arview-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when email/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingCredentials is returned when no authorization value was supplied.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrInvalidToken is returned when a bearer token is neither a valid JWT nor the system token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUserExists is returned when trying to create a user with an existing email.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidEmail is returned when the email is not a valid address.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidRole is returned for unknown roles.
	ErrInvalidRole = errors.New("invalid role")
)

// Service resolves credentials into identities.
type Service struct {
	users       store.UserStore
	jwtConfig   *JWTConfig
	systemToken string
}

// NewService creates a new authentication service. systemToken is the fixed bearer
// token accepted for headset and service clients; empty disables it.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig, systemToken string) *Service {
	return &Service{
		users:       userStore,
		jwtConfig:   jwtConfig,
		systemToken: systemToken,
	}
}

// Login validates credentials and returns a JWT token with the resolved identity.
func (s *Service) Login(ctx context.Context, email, password string) (string, *Identity, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtConfig, user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	return token, IdentityFromUser(user), nil
}

// Resolve turns an Authorization value ("Bearer <token>") into an identity.
// The token may be a login JWT or the system token.
func (s *Service) Resolve(ctx context.Context, authorization string) (*Identity, error) {
	token := ParseBearer(authorization)
	if token == "" {
		return nil, ErrMissingCredentials
	}
	return s.ResolveToken(ctx, token)
}

// ResolveToken resolves a raw bearer token.
func (s *Service) ResolveToken(ctx context.Context, token string) (*Identity, error) {
	if s.IsSystemToken(token) {
		return SystemIdentity(), nil
	}

	claims, err := ValidateToken(s.jwtConfig, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	// Re-read the user so deleted accounts and role changes take effect immediately.
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user", ErrInvalidToken)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	return IdentityFromUser(user), nil
}

// IsSystemToken reports whether token equals the configured system token.
func (s *Service) IsSystemToken(token string) bool {
	if s.systemToken == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.systemToken)) == 1
}

// SystemIdentity builds the synthetic identity used for system token holders.
// Every resolution gets a fresh id.
func SystemIdentity() *Identity {
	return &Identity{
		ID:        uuid.NewString(),
		FirstName: "System",
		Email:     "",
		Role:      RoleSystem,
	}
}

// CreateUser validates input, hashes the password and stores a new user.
func (s *Service) CreateUser(ctx context.Context, email, password, firstName, lastName string, role Role) (*store.User, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrInvalidPassword
	}
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() || role == RoleSystem {
		return nil, ErrInvalidRole
	}

	if existing, err := s.users.GetUserByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrUserExists
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &store.User{
		Email:        email,
		PasswordHash: hashedPassword,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Role:         string(role),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// SetPassword replaces the password of the user with the given email.
func (s *Service) SetPassword(ctx context.Context, email, password string) error {
	if len(password) < minPasswordLength {
		return ErrInvalidPassword
	}
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, user.ID, hashedPassword)
}

// ParseBearer extracts the token from a "Bearer <token>" value. The scheme is
// matched case-insensitively; a bare token is returned as is.
func ParseBearer(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return header
}
