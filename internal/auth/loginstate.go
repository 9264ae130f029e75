package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// LoginStateTTL bounds how long a user may take at the provider's consent
// screen.
const LoginStateTTL = 10 * time.Minute

// LoginState is everything the callback needs to finish a login that the
// login redirect started. It travels in a signed, short-lived cookie so the
// server keeps no per-login storage.
//
//   - State:    echoed back by the provider, compared against the cookie (CSRF)
//   - Nonce:    embedded in the ID token, compared after verification (replay)
//   - Verifier: PKCE secret, sent only with the code exchange
//   - Redirect: where to send the browser afterwards (relative path only)
type LoginState struct {
	State    string
	Nonce    string
	Verifier string
	Redirect string
}

type loginClaims struct {
	jwt.RegisteredClaims
	Nonce    string `json:"nonce"`
	Verifier string `json:"pkce"`
	Redirect string `json:"redirect,omitempty"`
}

// NewLoginState creates fresh random values for one login attempt.
// oauth2.GenerateVerifier returns 32 random bytes, base64url encoded,
// which is as good a source for state and nonce as for the verifier.
func NewLoginState(redirect string) LoginState {
	return LoginState{
		State:    oauth2.GenerateVerifier(),
		Nonce:    oauth2.GenerateVerifier(),
		Verifier: oauth2.GenerateVerifier(),
		Redirect: SafeRedirect(redirect),
	}
}

// IssueLoginState signs ls for the login cookie.
func (s *TokenService) IssueLoginState(ls LoginState) (string, error) {
	now := time.Now()
	c := loginClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ls.State,
			Audience:  jwt.ClaimStrings{loginAudience},
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(LoginStateTTL)),
		},
		Nonce:    ls.Nonce,
		Verifier: ls.Verifier,
		Redirect: ls.Redirect,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.loginKey)
	if err != nil {
		return "", fmt.Errorf("auth: signing login state: %w", err)
	}
	return signed, nil
}

// ParseLoginState verifies the cookie value from IssueLoginState.
func (s *TokenService) ParseLoginState(tokenStr string) (*LoginState, error) {
	var c loginClaims
	_, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(*jwt.Token) (any, error) { return s.loginKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(loginAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid login state: %w", err)
	}
	if c.ID == "" || c.Nonce == "" || c.Verifier == "" {
		return nil, errors.New("auth: incomplete login state")
	}
	return &LoginState{
		State:    c.ID,
		Nonce:    c.Nonce,
		Verifier: c.Verifier,
		Redirect: SafeRedirect(c.Redirect),
	}, nil
}

// SafeRedirect only allows same-site relative paths, so the login flow
// cannot be used as an open redirect. Anything else becomes "/".
func SafeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") ||
		strings.HasPrefix(target, "//") || strings.HasPrefix(target, `/\`) ||
		strings.ContainsAny(target, "\r\n") {
		return "/"
	}
	return target
}
