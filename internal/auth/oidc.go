package auth

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCOptions configures an OIDCProvider.
type OIDCOptions struct {
	IssuerURL      string
	ClientID       string
	ClientSecret   string
	RedirectURL    string
	Scopes         []string
	AllowedDomains []string
}

// OIDCProvider wraps the OIDC provider and OAuth2 config.
type OIDCProvider struct {
	oauth2Config   *oauth2.Config
	verifier       *oidc.IDTokenVerifier
	allowedDomains []string
}

// OIDCClaims represents the claims from an ID token.
type OIDCClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// NewOIDCProvider creates a new OIDC provider with discovery.
func NewOIDCProvider(ctx context.Context, opts OIDCOptions) (*OIDCProvider, error) {
	provider, err := oidc.NewProvider(ctx, opts.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	return &OIDCProvider{
		oauth2Config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       opts.Scopes,
		},
		verifier:       provider.Verifier(&oidc.Config{ClientID: opts.ClientID}),
		allowedDomains: opts.AllowedDomains,
	}, nil
}

// AuthCodeURL generates an authorization URL with state and nonce.
func (p *OIDCProvider) AuthCodeURL(state, nonce string) string {
	return p.oauth2Config.AuthCodeURL(state, oidc.Nonce(nonce))
}

// Exchange exchanges an authorization code for tokens, verifies the ID token
// and returns its claims.
func (p *OIDCProvider) Exchange(ctx context.Context, code, nonce string) (*OIDCClaims, error) {
	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("no id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	if !ConstantTimeCompare(idToken.Nonce, nonce) {
		return nil, fmt.Errorf("nonce mismatch")
	}

	var claims OIDCClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	return &claims, nil
}

// ValidateClaims checks the email claim against the domain allow-list.
func (p *OIDCProvider) ValidateClaims(claims *OIDCClaims) error {
	return validateEmailDomain(claims.Email, p.allowedDomains)
}

func validateEmailDomain(email string, allowed []string) error {
	if email == "" {
		return fmt.Errorf("email claim is required")
	}
	_, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" || strings.Contains(domain, "@") {
		return fmt.Errorf("invalid email format")
	}
	if len(allowed) == 0 {
		return nil
	}
	if !slices.ContainsFunc(allowed, func(d string) bool { return strings.EqualFold(d, domain) }) {
		return fmt.Errorf("email domain %s is not allowed", strings.ToLower(domain))
	}
	return nil
}
