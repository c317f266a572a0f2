package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ibills/backoffice/internal/core/domain"
	"github.com/ibills/backoffice/internal/port"
)

var ErrNotSignedIn = errors.New("not signed in")

// SessionManager resolves external identity tokens into local sessions and
// owns the process-wide session state. It is the only writer; readers get
// value copies, optionally through Subscribe.
type SessionManager struct {
	provider port.IdentityProvider
	cache    port.ClaimsCache
	tokenTTL time.Duration
	log      *logrus.Logger

	mu          sync.RWMutex
	sessions    map[string]domain.Session // keyed by identity
	subscribers map[int]chan domain.Session
	nextSub     int
}

func NewSessionManager(provider port.IdentityProvider, cache port.ClaimsCache, tokenTTL time.Duration, log *logrus.Logger) *SessionManager {
	return &SessionManager{
		provider:    provider,
		cache:       cache,
		tokenTTL:    tokenTTL,
		log:         log,
		sessions:    make(map[string]domain.Session),
		subscribers: make(map[int]chan domain.Session),
	}
}

// SignIn authenticates against the identity provider and opens a session.
func (m *SessionManager) SignIn(ctx context.Context, email, password string) (domain.Session, string, error) {
	tok, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		return domain.Session{}, "", err
	}
	return m.open(ctx, tok)
}

// SignUp creates the account, opens its first session, and makes the single
// claim-assignment call with the fresh bearer token. A failed assignment is
// logged but does not undo the account: the assignment endpoint has no retry
// policy, and the claims remain assignable out of band.
func (m *SessionManager) SignUp(ctx context.Context, name, email, password string, claims domain.Claims) (domain.Session, string, error) {
	tok, err := m.provider.Register(ctx, name, email, password, claims)
	if err != nil {
		return domain.Session{}, "", err
	}

	if err := m.provider.AssignClaims(ctx, tok.Raw, tok.Identity, claims); err != nil {
		m.log.WithFields(logrus.Fields{
			"module":   "session",
			"identity": tok.Identity,
		}).Warnf("claim assignment failed: %v", err)
	}

	return m.open(ctx, tok)
}

// Resolve turns a raw token into a session. Claims come from the cache when
// present (bounded staleness), else from the token itself.
func (m *SessionManager) Resolve(ctx context.Context, raw string) (domain.Session, error) {
	tok, err := m.verifyActive(ctx, raw)
	if err != nil {
		return domain.Session{}, err
	}

	claims := tok.Claims
	if cached, ok, cacheErr := m.cache.GetClaims(ctx, tok.Identity); cacheErr != nil {
		m.log.Warnf("claims cache read failed for %s: %v", tok.Identity, cacheErr)
	} else if ok {
		claims = cached
	}

	return m.store(tok, claims), nil
}

// Refresh bypasses the claims cache, re-reads the authoritative claims from
// the provider, and re-resolves the session. Calling it twice with no
// underlying claim change yields an identical session.
func (m *SessionManager) Refresh(ctx context.Context, raw string) (domain.Session, error) {
	tok, err := m.verifyActive(ctx, raw)
	if err != nil {
		return domain.Session{}, err
	}

	claims, err := m.provider.Claims(ctx, tok.Identity)
	if err != nil {
		return domain.Session{}, fmt.Errorf("refresh claims: %w", err)
	}

	if err := m.cache.SetClaims(ctx, tok.Identity, claims, m.tokenTTL); err != nil {
		m.log.Warnf("claims cache write failed for %s: %v", tok.Identity, err)
	}

	return m.store(tok, claims), nil
}

// SignOut revokes the token and clears the session. An undecodable token is
// already signed out, which is not an error.
func (m *SessionManager) SignOut(ctx context.Context, raw string) error {
	tok, err := m.provider.Verify(ctx, raw)
	if err != nil {
		return nil
	}

	if err := m.cache.RevokeToken(ctx, tok.ID); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if err := m.cache.InvalidateClaims(ctx, tok.Identity); err != nil {
		m.log.Warnf("claims cache invalidate failed for %s: %v", tok.Identity, err)
	}

	m.mu.Lock()
	_, existed := m.sessions[tok.Identity]
	delete(m.sessions, tok.Identity)
	m.mu.Unlock()

	if existed {
		m.publish(domain.Session{})
	}
	return nil
}

// RequestPasswordReset asks the provider for a reset token. Delivery to the
// account owner is the transport's concern.
func (m *SessionManager) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	return m.provider.RequestPasswordReset(ctx, email)
}

// ResetPassword completes a reset. Open sessions stay valid; the new
// credential applies from the next sign-in.
func (m *SessionManager) ResetPassword(ctx context.Context, token, newPassword string) error {
	return m.provider.ResetPassword(ctx, token, newPassword)
}

// Current returns the session for an identity, if one is open.
func (m *SessionManager) Current(identity string) (domain.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[identity]
	return s, ok
}

// Subscribe registers a watcher for session replacements. The returned
// function detaches it and closes the channel. Slow subscribers miss
// updates rather than block the writer.
func (m *SessionManager) Subscribe() (<-chan domain.Session, func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan domain.Session, 8)
	m.subscribers[id] = ch
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		if sub, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(sub)
		}
		m.mu.Unlock()
	}
}

func (m *SessionManager) open(ctx context.Context, tok *port.Token) (domain.Session, string, error) {
	if err := m.cache.PutToken(ctx, tok.ID, tok.Identity, m.tokenTTL); err != nil {
		return domain.Session{}, "", fmt.Errorf("activate token: %w", err)
	}
	if err := m.cache.SetClaims(ctx, tok.Identity, tok.Claims, m.tokenTTL); err != nil {
		m.log.Warnf("claims cache write failed for %s: %v", tok.Identity, err)
	}

	return m.store(tok, tok.Claims), tok.Raw, nil
}

func (m *SessionManager) verifyActive(ctx context.Context, raw string) (*port.Token, error) {
	if raw == "" {
		return nil, ErrNotSignedIn
	}

	tok, err := m.provider.Verify(ctx, raw)
	if err != nil {
		return nil, ErrNotSignedIn
	}

	_, active, err := m.cache.TokenIdentity(ctx, tok.ID)
	if err != nil {
		return nil, fmt.Errorf("check token: %w", err)
	}
	if !active {
		return nil, ErrNotSignedIn
	}
	return tok, nil
}

// store replaces the identity's session. The version only moves when the
// claims actually changed, so repeated refreshes with stable claims return
// identical sessions.
func (m *SessionManager) store(tok *port.Token, claims domain.Claims) domain.Session {
	m.mu.Lock()

	prev, existed := m.sessions[tok.Identity]
	next := domain.Session{
		Identity:        tok.Identity,
		DisplayName:     tok.DisplayName,
		Email:           tok.Email,
		IsAdministrator: claims.Administrator,
		IsSalesAgent:    claims.Sales,
	}

	changed := !existed || prev.Claims() != claims
	if existed && !changed {
		next.Version = prev.Version
		next.RefreshedAt = prev.RefreshedAt
		next.AvatarRef = prev.AvatarRef
	} else {
		next.Version = prev.Version + 1
		next.RefreshedAt = time.Now()
		next.AvatarRef = prev.AvatarRef
	}

	m.sessions[tok.Identity] = next
	m.mu.Unlock()

	if changed {
		m.publish(next)
	}
	return next
}

func (m *SessionManager) publish(s domain.Session) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- s:
		default:
		}
	}
}
