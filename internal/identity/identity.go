// Package identity issues and verifies the bearer tokens used by the API.
// Accounts live in the key-value store under credential:{email}.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"stealthcompany.com/clinicportal/internal/apperr"
	"stealthcompany.com/clinicportal/internal/kvstore"
)

const (
	ErrInvalidCredentials  = "Invalid login credentials"
	ErrAlreadyRegistered   = "User already registered"
	ErrInvalidToken        = "Invalid token"
	ErrTokenExpired        = "Token expired"
	ErrEmailRequired       = "Email is required"
	ErrPasswordTooShort    = "Password must be at least 6 characters"
	ErrUnexpectedSigningFn = "unexpected signing method: %v"

	minPasswordLength = 6
)

// Claims carried by an access token.
type Claims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Role     string `json:"role"`
	FullName string `json:"fullName"`
}

// Account is the stored identity record.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Role         string    `json:"role"`
	FullName     string    `json:"fullName"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is returned by SignIn.
type Session struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        User      `json:"user"`
}

// User is the public part of an account.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	FullName string `json:"fullName"`
}

type Provider struct {
	store  kvstore.Store
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewProvider(store kvstore.Store, secret string, ttl time.Duration, issuer string) *Provider {
	return &Provider{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func credentialKey(email string) string {
	return kvstore.Key("credential", NormalizeEmail(email))
}

// CreateUser registers a new account. The check for an existing email and
// the write are separate store calls, so two concurrent signups for the same
// address can both succeed.
func (p *Provider) CreateUser(ctx context.Context, email, password, fullName, role string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.Validation(ErrEmailRequired)
	}
	if len(password) < minPasswordLength {
		return nil, apperr.Validation(ErrPasswordTooShort)
	}

	var existing Account
	err := p.store.Get(ctx, credentialKey(email), &existing)
	switch {
	case err == nil:
		return nil, apperr.Validation(ErrAlreadyRegistered)
	case !errors.Is(err, kvstore.ErrNotFound):
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	acc := Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		FullName:     fullName,
		CreatedAt:    p.now().UTC(),
	}
	if err := p.store.Set(ctx, credentialKey(email), acc); err != nil {
		return nil, fmt.Errorf("failed to store account: %w", err)
	}

	u := acc.user()
	return &u, nil
}

// Lookup returns the account for email, or apperr NotFound.
func (p *Provider) Lookup(ctx context.Context, email string) (*User, error) {
	var acc Account
	if err := p.store.Get(ctx, credentialKey(email), &acc); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, apperr.NotFound("Account not found")
		}
		return nil, err
	}
	u := acc.user()
	return &u, nil
}

// SignIn checks the password and issues a token.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var acc Account
	if err := p.store.Get(ctx, credentialKey(email), &acc); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, apperr.Unauthorized(ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Unauthorized(ErrInvalidCredentials)
	}

	token, expiresAt, err := p.Issue(acc.user())
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: token, ExpiresAt: expiresAt, User: acc.user()}, nil
}

// Issue signs a token for u.
func (p *Provider) Issue(u User) (string, time.Time, error) {
	now := p.now().UTC()
	expiresAt := now.Add(p.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:    u.Email,
		Role:     u.Role,
		FullName: u.FullName,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, issuer and expiry.
func (p *Provider) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf(ErrUnexpectedSigningFn, t.Header["alg"])
		}
		return p.secret, nil
	},
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Wrap(apperr.KindUnauthorized, err, ErrTokenExpired)
		}
		return nil, apperr.Wrap(apperr.KindUnauthorized, err, ErrInvalidToken)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, apperr.Unauthorized(ErrInvalidToken)
	}
	return claims, nil
}

// ParseUnverified decodes claims without checking the signature. Only for
// reading the identity out of a token the caller already holds.
func ParseUnverified(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func (a Account) user() User {
	return User{ID: a.ID, Email: a.Email, Role: a.Role, FullName: a.FullName}
}
