package auth

import (
	"errors"
	"time"

	"github.com/bazarly/bazarly/internal/shared"
)

// User is an account that can sign in.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         shared.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ErrInvalidCredentials is deliberately returned for every
// authentication failure so callers cannot probe which usernames exist.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ErrTokenUnknown means the bearer token is missing, expired or revoked.
var ErrTokenUnknown = errors.New("auth: unknown token")
