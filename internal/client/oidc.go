// OIDC client used to link an account to an external identity.
//
// Environment:
//   - OIDC_ISSUER_URL: provider issuer (discovery at /.well-known/openid-configuration)
//   - OIDC_CLIENT_ID / OIDC_CLIENT_SECRET
//   - OIDC_REDIRECT_URL: redirect URI registered with the provider
//
// The frontend runs the authorization code flow and hands the code to the
// backend, which exchanges it and keeps the id_token subject.

package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/myplayplanet/backend/internal/config"
	"golang.org/x/oauth2"
)

var ErrMissingIDToken = errors.New("token response has no id_token")

type OIDCClient struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewOIDCClient discovers the provider. It returns nil without error when
// OIDC is not configured.
func NewOIDCClient(ctx context.Context, cfg config.OIDCConfig) (*OIDCClient, error) {
	if strings.TrimSpace(cfg.IssuerURL) == "" {
		return nil, nil
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("OIDC_CLIENT_ID is required when OIDC_ISSUER_URL is set")
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover oidc provider: %w", err)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID},
	}
	return newOIDCClient(oauthCfg, provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})), nil
}

func newOIDCClient(oauthCfg *oauth2.Config, verifier *oidc.IDTokenVerifier) *OIDCClient {
	return &OIDCClient{oauth: oauthCfg, verifier: verifier}
}

// Subject exchanges an authorization code and returns the verified subject
// of the id_token.
func (c *OIDCClient) Subject(ctx context.Context, code string) (string, error) {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", ErrMissingIDToken
	}

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", fmt.Errorf("failed to verify id_token: %w", err)
	}
	return idToken.Subject, nil
}
