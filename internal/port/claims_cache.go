package port

import (
	"context"
	"time"

	"github.com/ibills/backoffice/internal/core/domain"
)

// ClaimsCache tracks active tokens and the last-seen claims per identity.
// A cached claim set may lag a server-side change; the session manager
// bypasses it on refresh.
type ClaimsCache interface {
	// GetClaims returns the cached claims, with false if absent.
	GetClaims(ctx context.Context, identity string) (domain.Claims, bool, error)

	// SetClaims caches the claims for an identity.
	SetClaims(ctx context.Context, identity string, claims domain.Claims, ttl time.Duration) error

	// InvalidateClaims drops the cached claims.
	InvalidateClaims(ctx context.Context, identity string) error

	// PutToken marks a token id as active for an identity.
	PutToken(ctx context.Context, tokenID, identity string, ttl time.Duration) error

	// TokenIdentity resolves an active token id, with false if the token is
	// unknown, expired, or revoked.
	TokenIdentity(ctx context.Context, tokenID string) (string, bool, error)

	// RevokeToken deactivates a token id.
	RevokeToken(ctx context.Context, tokenID string) error
}
