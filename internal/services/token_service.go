package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"userhub/internal/repositories"

	"github.com/google/uuid"
)

// TokenService issues and revokes opaque bearer tokens. The plaintext
// token leaves this package exactly once, at issuance; the store only
// ever sees its SHA-256 hash.
type TokenService interface {
	Issue(ctx context.Context, userID uuid.UUID) (string, error)
	Revoke(ctx context.Context, token string) error
	RevokeAll(ctx context.Context, userID uuid.UUID) error
	Resolve(ctx context.Context, token string) (uuid.UUID, bool, error)
}

type tokenService struct {
	store repositories.TokenStore
	ttl   time.Duration
}

func NewTokenService(store repositories.TokenStore, ttl time.Duration) TokenService {
	return &tokenService{store: store, ttl: ttl}
}

func (s *tokenService) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	token := generateSecureToken()
	if err := s.store.Save(ctx, hashToken(token), userID, s.ttl); err != nil {
		return "", fmt.Errorf("failed to persist token: %w", err)
	}
	return token, nil
}

// Revoke invalidates a single token. Revoking a token that is already
// gone is a no-op.
func (s *tokenService) Revoke(ctx context.Context, token string) error {
	return s.store.Delete(ctx, hashToken(token))
}

// RevokeAll invalidates every live token the user holds.
func (s *tokenService) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return s.store.DeleteAllForUser(ctx, userID)
}

// Resolve returns the owning user of an active token. An unknown or
// revoked token resolves to (Nil, false, nil); the request is simply
// unauthenticated.
func (s *tokenService) Resolve(ctx context.Context, token string) (uuid.UUID, bool, error) {
	return s.store.Lookup(ctx, hashToken(token))
}

// generateSecureToken returns 32 bytes of crypto randomness, URL-safe
// base64 encoded.
func generateSecureToken() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return base64.RawURLEncoding.EncodeToString(bytes)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
