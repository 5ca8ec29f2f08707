package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/bazarly/bazarly/internal/shared"
)

const tokenKeyPrefix = "auth:token:"

// Service authenticates users and manages opaque bearer tokens.
// Tokens live in redis under a TTL; resolving one back yields the
// principal that handlers and RBAC checks operate on.
type Service struct {
	repo     Repository
	redis    *redis.Client
	tokenTTL time.Duration
}

func NewService(repo Repository, rdb *redis.Client, tokenTTL time.Duration) *Service {
	return &Service{repo: repo, redis: rdb, tokenTTL: tokenTTL}
}

// Login validates credentials and issues a fresh token.
func (s *Service) Login(ctx context.Context, username, password string) (string, shared.Principal, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return "", shared.Principal{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", shared.Principal{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", shared.Principal{}, ErrInvalidCredentials
	}

	principal := shared.Principal{UserID: user.ID, Username: user.Username, Role: user.Role}
	token := uuid.NewString()
	payload, err := json.Marshal(principal)
	if err != nil {
		return "", shared.Principal{}, fmt.Errorf("auth: encode principal: %w", err)
	}
	if err := s.redis.Set(ctx, tokenKeyPrefix+token, payload, s.tokenTTL).Err(); err != nil {
		return "", shared.Principal{}, fmt.Errorf("auth: store token: %w", err)
	}
	return token, principal, nil
}

// Resolve maps a bearer token back to its principal.
func (s *Service) Resolve(ctx context.Context, token string) (shared.Principal, error) {
	if token == "" {
		return shared.Principal{}, ErrTokenUnknown
	}
	payload, err := s.redis.Get(ctx, tokenKeyPrefix+token).Bytes()
	if err == redis.Nil {
		return shared.Principal{}, ErrTokenUnknown
	}
	if err != nil {
		return shared.Principal{}, fmt.Errorf("auth: read token: %w", err)
	}
	var principal shared.Principal
	if err := json.Unmarshal(payload, &principal); err != nil {
		return shared.Principal{}, ErrTokenUnknown
	}
	if !principal.Valid() {
		return shared.Principal{}, ErrTokenUnknown
	}
	return principal, nil
}

// Logout revokes a token. Revoking an already-expired token is a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.redis.Del(ctx, tokenKeyPrefix+token).Err()
}
