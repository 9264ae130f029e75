// Package auth provides sessions, the OIDC login flow and the HTTP
// middleware that turns a session cookie into a user ID.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. User visits /api/login → redirected to the identity provider
// 2. The provider calls back /api/callback with a code
// 3. Server exchanges the code (with its PKCE verifier), verifies the ID
//    token, upserts the user by subject
// 4. Server issues a session JWT, stores it in an HttpOnly cookie
// 5. On later API calls, middleware reads the cookie (or a Bearer header),
//    validates the JWT, and puts the userID in the request context
//
// WHY JWT?
// JWT (JSON Web Token) is stateless: the server keeps no session table.
// Everything needed (userID, expiry) is inside the signed token, and the
// HMAC signature means nobody can change it without the key.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer     = "portfolio"
	sessionAudience = "session"
	loginAudience   = "oidc-login"

	// DefaultSessionTTL applies when NewTokenService is given a zero TTL.
	DefaultSessionTTL = 7 * 24 * time.Hour
)

// TokenService creates and validates signed tokens.
//
// It holds one HMAC key per purpose, all derived from the same secret
// (see keys.go). Session tokens and login-state tokens therefore cannot be
// swapped for one another.
type TokenService struct {
	sessionKey []byte
	loginKey   []byte
	ttl        time.Duration
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: SESSION_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	sessionKey, err := deriveKey([]byte(secret), purposeSession)
	if err != nil {
		return nil, err
	}
	loginKey, err := deriveKey([]byte(secret), purposeLoginState)
	if err != nil {
		return nil, err
	}

	return &TokenService{sessionKey: sessionKey, loginKey: loginKey, ttl: ttl}, nil
}

// TTL is the lifetime of tokens from Generate, used for the cookie MaxAge.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Generate creates and signs a session token for userID.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, s.ttl)
}

// GenerateWithDuration creates a session token with a custom lifetime.
// Used in tests and by Generate.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := jwt.RegisteredClaims{
		Subject:   userID,
		Audience:  jwt.ClaimStrings{sessionAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		Issuer:    tokenIssuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.sessionKey)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a session token and returns the userID
// stored in its "sub" claim.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired
//   - Issuer and audience match (a login-state token is rejected here)
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
func (s *TokenService) Validate(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(*jwt.Token) (any, error) { return s.sessionKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(sessionAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}
	return c.Subject, nil
}
