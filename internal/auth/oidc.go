package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Identity is what a successful login tells us about the person.
type Identity struct {
	Subject         string
	Email           string
	FirstName       string
	LastName        string
	ProfileImageURL string
}

// OIDCConfig holds the client registration at the identity provider.
type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// OIDCProvider runs the Authorization Code flow with PKCE against an
// OpenID Connect provider.
//
// DISCOVERY HAPPENS ONCE:
// NewOIDCProvider fetches the provider's /.well-known/openid-configuration
// and builds the token verifier. Construct it at startup and share it; the
// verifier caches the provider's signing keys and refreshes them itself.
type OIDCProvider struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewOIDCProvider performs discovery against cfg.IssuerURL.
//
// Scopes we request:
//   - "openid"         required for an ID token
//   - "email"          the email claim
//   - "profile"        names and picture
//   - "offline_access" a refresh token, where the provider supports it
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig) (*OIDCProvider, error) {
	if cfg.IssuerURL == "" || cfg.ClientID == "" {
		return nil, errors.New("auth: OIDC issuer and client id are required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("auth: discovering OIDC provider %s: %w", cfg.IssuerURL, err)
	}

	return &OIDCProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile", oidc.ScopeOfflineAccess},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// AuthURL returns the provider URL to send the browser to.
// The PKCE challenge is derived from ls.Verifier; the verifier itself stays
// on our side until Exchange.
func (p *OIDCProvider) AuthURL(ls LoginState) string {
	return p.config.AuthCodeURL(ls.State,
		oidc.Nonce(ls.Nonce),
		oauth2.S256ChallengeOption(ls.Verifier),
	)
}

// idClaims covers both the standard OIDC profile claims and the names some
// providers (Replit among them) use instead.
type idClaims struct {
	Email           string `json:"email"`
	GivenName       string `json:"given_name"`
	FamilyName      string `json:"family_name"`
	Picture         string `json:"picture"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

// Exchange trades the authorization code for tokens, verifies the ID token
// (signature, issuer, audience, expiry) and checks the nonce.
func (p *OIDCProvider) Exchange(ctx context.Context, code string, ls LoginState) (*Identity, error) {
	token, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(ls.Verifier))
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("auth: token response has no id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("auth: verifying id_token: %w", err)
	}
	if idToken.Nonce != ls.Nonce {
		return nil, errors.New("auth: id_token nonce mismatch")
	}

	var c idClaims
	if err := idToken.Claims(&c); err != nil {
		return nil, fmt.Errorf("auth: decoding id_token claims: %w", err)
	}

	return &Identity{
		Subject:         idToken.Subject,
		Email:           strings.ToLower(strings.TrimSpace(c.Email)),
		FirstName:       firstOf(c.FirstName, c.GivenName),
		LastName:        firstOf(c.LastName, c.FamilyName),
		ProfileImageURL: firstOf(c.ProfileImageURL, c.Picture),
	}, nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
