package oidc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/Housri/steam-auth-public/internal/auth"
	"github.com/Housri/steam-auth-public/internal/auth/provider"
	"github.com/Housri/steam-auth-public/internal/logger"
)

const providerName = "oidc"

// Provider implements OAuth + OIDC authentication against any discovery
// capable issuer. It returns identity facts only; no user/session
// decisions are made here.
type Provider struct {
	oauthConfig *oauth2.Config
	verifier    *gooidc.IDTokenVerifier
}

// New initializes the provider using discovery on issuer.
func New(
	ctx context.Context,
	issuer string,
	clientID string,
	clientSecret string,
	redirectURL string,
) (*Provider, error) {

	if issuer == "" || clientID == "" || redirectURL == "" {
		return nil, errors.New("oidc config missing required fields")
	}

	oidcProvider, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init oidc provider: %w", err)
	}

	return &Provider{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     oidcProvider.Endpoint(),
			Scopes: []string{
				gooidc.ScopeOpenID,
				"profile",
			},
		},
		verifier: oidcProvider.Verifier(&gooidc.Config{
			ClientID: clientID,
		}),
	}, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

// BeginAuth builds the authorization URL with PKCE parameters.
func (p *Provider) BeginAuth(_ context.Context, req provider.AuthRequest) (string, error) {
	if req.State == "" || req.CodeChallenge == "" {
		return "", errors.New("oidc: state and code challenge are required")
	}
	return p.oauthConfig.AuthCodeURL(
		req.State,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("code_challenge", req.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	), nil
}

// CompleteAuth exchanges the authorization code and returns a normalized
// assertion. This method MUST NOT create users or sessions.
func (p *Provider) CompleteAuth(ctx context.Context, cb provider.Callback) (*auth.Assertion, error) {
	if errParam := cb.Params.Get("error"); errParam != "" {
		return nil, verificationFailed("provider returned error %q: %s", errParam, cb.Params.Get("error_description"))
	}

	code := cb.Params.Get("code")
	if code == "" {
		return nil, verificationFailed("callback missing code")
	}
	if cb.CodeVerifier == "" {
		return nil, verificationFailed("missing pkce verifier")
	}

	token, err := p.oauthConfig.Exchange(
		ctx,
		code,
		oauth2.SetAuthURLParam("code_verifier", cb.CodeVerifier),
	)
	if err != nil {
		return nil, verificationFailed("token exchange failed: %v", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, verificationFailed("provider did not return id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, verificationFailed("id_token verification failed: %v", err)
	}

	var c claims
	if err := idToken.Claims(&c); err != nil {
		return nil, verificationFailed("id_token claims parse failed: %v", err)
	}

	assertion, err := c.assertion()
	if err != nil {
		return nil, err
	}

	logger.Info("oidc verified", map[string]any{
		"issuer":      idToken.Issuer,
		"external_id": assertion.ExternalID,
		"audience":    idToken.Audience,
		"expiry_unix": idToken.Expiry.Unix(),
	})

	return assertion, nil
}

type claims struct {
	Subject           string `json:"sub"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Profile           string `json:"profile"`
	Picture           string `json:"picture"`
}

// assertion maps standard claims; OIDC publishes a single picture, used
// for every avatar size.
func (c claims) assertion() (*auth.Assertion, error) {
	if strings.TrimSpace(c.Subject) == "" {
		return nil, verificationFailed("id_token missing sub claim")
	}

	name := c.Name
	if name == "" {
		name = c.PreferredUsername
	}

	return &auth.Assertion{
		Provider:     providerName,
		ExternalID:   c.Subject,
		DisplayName:  name,
		ProfileURL:   c.Profile,
		AvatarSmall:  c.Picture,
		AvatarMedium: c.Picture,
		AvatarLarge:  c.Picture,
	}, nil
}

func verificationFailed(format string, args ...any) error {
	return fmt.Errorf("%w: oidc: %s", auth.ErrVerificationFailed, fmt.Sprintf(format, args...))
}

var _ provider.Provider = (*Provider)(nil)
