package port

import (
	"context"
	"time"

	"github.com/ibills/backoffice/internal/core/domain"
)

// Token is a verified identity token with its embedded claims.
type Token struct {
	Raw         string
	ID          string
	Identity    string
	DisplayName string
	Email       string
	Claims      domain.Claims
	ExpiresAt   time.Time
}

// IdentityProvider is the external identity collaborator. Tokens are opaque
// to the rest of the service; only the provider can mint or decode them.
type IdentityProvider interface {
	// SignIn checks credentials and issues a fresh token.
	SignIn(ctx context.Context, email, password string) (*Token, error)

	// Register creates the identity record (the employee document) and
	// issues the first token for it.
	Register(ctx context.Context, name, email, password string, claims domain.Claims) (*Token, error)

	// Verify decodes and validates a raw token.
	Verify(ctx context.Context, raw string) (*Token, error)

	// Claims reads the authoritative claims for an identity, bypassing any
	// cache.
	Claims(ctx context.Context, identity string) (domain.Claims, error)

	// AssignClaims calls the external claim-assignment endpoint with the
	// caller's bearer token. Invoked exactly once at account creation;
	// there is no retry policy.
	AssignClaims(ctx context.Context, bearer, identity string, claims domain.Claims) error

	// RequestPasswordReset issues a short-lived reset token for the account
	// registered under email. Delivering it to the account owner is the
	// caller's concern.
	RequestPasswordReset(ctx context.Context, email string) (string, error)

	// ResetPassword verifies a reset token and replaces the account's
	// password. Reset tokens are single-purpose: Verify rejects them.
	ResetPassword(ctx context.Context, raw, newPassword string) error
}
