package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ibills/backoffice/internal/core/domain"
	"github.com/ibills/backoffice/internal/port"
)

const employeesCollection = "employees"

const (
	resetScope    = "password_reset"
	resetLifespan = 15 * time.Minute
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrEmailTaken         = errors.New("email already registered")
	ErrIdentityNotFound   = errors.New("identity not found")
)

type tokenClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Admin bool   `json:"admin"`
	Sales bool   `json:"sales"`
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// JWTProvider is the identity collaborator: it mints HS256 tokens carrying
// the two boolean role claims and checks credentials against the employees
// collection.
type JWTProvider struct {
	store          port.DocumentStore
	secret         []byte
	lifespan       time.Duration
	claimsEndpoint string
	httpClient     *http.Client
}

func NewJWTProvider(store port.DocumentStore, secret string, lifespan time.Duration, claimsEndpoint string) *JWTProvider {
	return &JWTProvider{
		store:          store,
		secret:         []byte(secret),
		lifespan:       lifespan,
		claimsEndpoint: claimsEndpoint,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *JWTProvider) SignIn(ctx context.Context, email, password string) (*port.Token, error) {
	id, emp, err := p.employeeByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, ErrInvalidCredentials
	}

	if err := ComparePassword(emp.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return p.issue(id, *emp)
}

func (p *JWTProvider) Register(ctx context.Context, name, email, password string, claims domain.Claims) (*port.Token, error) {
	_, existing, err := p.employeeByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	emp := domain.Employee{
		Name:         name,
		Email:        email,
		IsAdmin:      claims.Administrator,
		IsSales:      claims.Sales,
		HireDate:     now,
		CreatedAt:    now,
		PasswordHash: string(hash),
	}

	id, err := p.store.Insert(ctx, employeesCollection, emp)
	if err != nil {
		return nil, fmt.Errorf("create identity record: %w", err)
	}
	emp.ID = id

	return p.issue(id, emp)
}

func (p *JWTProvider) Verify(ctx context.Context, raw string) (*port.Token, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	// Session tokens carry no scope; a reset token never opens a session.
	if claims.Scope != "" {
		return nil, ErrInvalidToken
	}

	var expires time.Time
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}

	return &port.Token{
		Raw:         raw,
		ID:          claims.ID,
		Identity:    claims.Subject,
		DisplayName: claims.Name,
		Email:       claims.Email,
		Claims:      domain.Claims{Administrator: claims.Admin, Sales: claims.Sales},
		ExpiresAt:   expires,
	}, nil
}

func (p *JWTProvider) Claims(ctx context.Context, identity string) (domain.Claims, error) {
	doc, err := p.store.Get(ctx, employeesCollection, identity)
	if err != nil {
		return domain.Claims{}, fmt.Errorf("read identity record: %w", err)
	}
	if doc == nil {
		return domain.Claims{}, ErrIdentityNotFound
	}

	var emp domain.Employee
	if err := json.Unmarshal(doc.Body, &emp); err != nil {
		return domain.Claims{}, fmt.Errorf("decode identity record: %w", err)
	}
	return emp.Claims(), nil
}

// AssignClaims posts the claim map to the external claim-assignment endpoint
// with the caller's bearer token. Called once at account creation; failures
// are returned to the caller, never retried. A blank endpoint disables the
// call (local development).
func (p *JWTProvider) AssignClaims(ctx context.Context, bearer, identity string, claims domain.Claims) error {
	if p.claimsEndpoint == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"uid":    identity,
		"claims": claims,
	})
	if err != nil {
		return fmt.Errorf("marshal claims payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.claimsEndpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build claims request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call claims endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("claims endpoint returned %s", resp.Status)
	}
	return nil
}

// RequestPasswordReset issues a short-lived token scoped to password reset.
// The original flow mails it; here the caller takes delivery.
func (p *JWTProvider) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	id, emp, err := p.employeeByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if emp == nil {
		return "", ErrIdentityNotFound
	}

	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &tokenClaims{
		Email: emp.Email,
		Scope: resetScope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(resetLifespan)),
		},
	})

	raw, err := t.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}
	return raw, nil
}

// ResetPassword replaces the account password named by a reset token.
// Session tokens are rejected: only the reset scope may change credentials.
func (p *JWTProvider) ResetPassword(ctx context.Context, raw, newPassword string) error {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid || claims.Scope != resetScope {
		return ErrInvalidToken
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := p.store.Update(ctx, employeesCollection, claims.Subject, map[string]any{
		"passwordHash": string(hash),
	}); err != nil {
		return fmt.Errorf("update identity record: %w", err)
	}
	return nil
}

func (p *JWTProvider) issue(id string, emp domain.Employee) (*port.Token, error) {
	now := time.Now()
	expires := now.Add(p.lifespan)
	tokenID := uuid.NewString()

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &tokenClaims{
		Name:  emp.Name,
		Email: emp.Email,
		Admin: emp.IsAdmin,
		Sales: emp.IsSales,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})

	raw, err := t.SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &port.Token{
		Raw:         raw,
		ID:          tokenID,
		Identity:    id,
		DisplayName: emp.Name,
		Email:       emp.Email,
		Claims:      emp.Claims(),
		ExpiresAt:   expires,
	}, nil
}

func (p *JWTProvider) employeeByEmail(ctx context.Context, email string) (string, *domain.Employee, error) {
	docs, err := p.store.Query(ctx, employeesCollection, port.Filter{
		Field: "email", Op: port.FilterEq, Value: email,
	})
	if err != nil {
		return "", nil, fmt.Errorf("query identity record: %w", err)
	}
	if len(docs) == 0 {
		return "", nil, nil
	}

	var emp domain.Employee
	if err := json.Unmarshal(docs[0].Body, &emp); err != nil {
		return "", nil, fmt.Errorf("decode identity record: %w", err)
	}
	emp.ID = docs[0].ID
	return docs[0].ID, &emp, nil
}
