package auth

import (
	"bytes"
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	apperrors "github.com/mruedinger/game-club/internal/errors"
)

// GoogleIssuer is the OIDC issuer used for discovery.
const GoogleIssuer = "https://accounts.google.com"

// Google historically signs ID tokens with either issuer form.
var googleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// GoogleConfig configures the OAuth client. Issuer and AllowedIssuers exist
// so tests can point the client at a local provider; production leaves them
// empty.
type GoogleConfig struct {
	ClientID       string
	ClientSecret   string
	RedirectURI    string
	Issuer         string
	AllowedIssuers []string
}

// Claims are the identity fields extracted from a verified ID token.
type Claims struct {
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// GoogleClient performs the authorization-code exchange and verifies the
// returned ID token against the provider's published keys.
type GoogleClient struct {
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
	issuers  []string
}

// NewGoogleClient discovers the provider's endpoints and JWKS. The remote
// key set is fetched lazily and cached by the verifier.
func NewGoogleClient(ctx context.Context, cfg GoogleConfig) (*GoogleClient, error) {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = GoogleIssuer
	}
	allowed := cfg.AllowedIssuers
	if len(allowed) == 0 {
		allowed = googleIssuers
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery for %s: %w", issuer, err)
	}

	return &GoogleClient{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		// Issuer membership is checked against the allow-list after Verify,
		// since the verifier only supports a single issuer string.
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID, SkipIssuerCheck: true}),
		issuers:  allowed,
	}, nil
}

// AuthURL builds the authorization redirect for a pending login.
func (c *GoogleClient) AuthURL(pending *PendingLogin) string {
	return c.oauth.AuthCodeURL(pending.State,
		oidc.Nonce(pending.Nonce),
		oauth2.SetAuthURLParam("code_challenge", codeChallenge(pending.CodeVerifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// Exchange trades the authorization code for tokens and returns the
// verified identity claims. Nonce verification runs strictly after
// signature, issuer, and audience verification; a replayed ID token from a
// different login attempt fails here even though it is otherwise valid.
func (c *GoogleClient) Exchange(ctx context.Context, code string, pending *PendingLogin) (*Claims, error) {
	token, err := c.oauth.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", pending.CodeVerifier))
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrTokenExchange, "%v", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, apperrors.ErrMissingIDToken
	}

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrTokenVerify, "%v", err)
	}

	if !contains(c.issuers, idToken.Issuer) {
		return nil, apperrors.ErrInvalidIssuer
	}

	var claims struct {
		Nonce         string  `json:"nonce"`
		Email         string  `json:"email"`
		EmailVerified laxBool `json:"email_verified"`
		Name          string  `json:"name"`
		Picture       string  `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrTokenVerify, "claims: %v", err)
	}

	if claims.Nonce != pending.Nonce {
		return nil, apperrors.ErrInvalidNonce
	}

	return &Claims{
		Email:         claims.Email,
		EmailVerified: bool(claims.EmailVerified),
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}

// laxBool accepts both true and "true"; Google has served either form for
// email_verified.
type laxBool bool

func (b *laxBool) UnmarshalJSON(data []byte) error {
	trimmed := bytes.Trim(data, `"`)
	*b = laxBool(string(trimmed) == "true")
	return nil
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
