// Package oidctest runs a minimal OpenID Connect provider inside tests:
// discovery document, JWKS, and a scriptable token endpoint.
package oidctest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const keyID = "test-key"

// Provider is a fake OIDC identity provider.
type Provider struct {
	server *httptest.Server
	key    *rsa.PrivateKey

	tokenCalls atomic.Int32

	mu          sync.Mutex
	idToken     string
	omitIDToken bool
	tokenStatus int
}

// New starts the provider. Callers own shutdown via Close.
func New() (*Provider, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	p := &Provider{key: key, tokenStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", p.discovery)
	mux.HandleFunc("GET /keys", p.jwks)
	mux.HandleFunc("POST /token", p.token)
	p.server = httptest.NewServer(mux)
	return p, nil
}

func (p *Provider) Close() {
	p.server.Close()
}

// URL is the issuer URL of the fake provider.
func (p *Provider) URL() string {
	return p.server.URL
}

// TokenCalls reports how many times the token endpoint was hit.
func (p *Provider) TokenCalls() int {
	return int(p.tokenCalls.Load())
}

// SetIDToken scripts the id_token returned by the next token exchange.
func (p *Provider) SetIDToken(raw string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idToken = raw
	p.omitIDToken = false
}

// OmitIDToken makes the token endpoint answer without an id_token.
func (p *Provider) OmitIDToken() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// FailTokenExchange makes the token endpoint answer with status.
func (p *Provider) FailTokenExchange(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenStatus = status
}

// MintIDToken signs an RS256 ID token with the provider's key. Standard
// claims (iss, aud, exp, iat) default to sensible values and can be
// overridden through extra.
func (p *Provider) MintIDToken(clientID string, extra map[string]any) (string, error) {
	claims := jwt.MapClaims{
		"iss": p.server.URL,
		"aud": clientID,
		"sub": "subject-1",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = keyID
	return token.SignedString(p.key)
}

// MintForeignIDToken signs a token with a key the JWKS does not publish.
func (p *Provider) MintForeignIDToken(clientID string, extra map[string]any) (string, error) {
	foreign, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", err
	}
	claims := jwt.MapClaims{
		"iss": p.server.URL,
		"aud": clientID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = keyID
	return token.SignedString(foreign)
}

func (p *Provider) discovery(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"issuer":                                p.server.URL,
		"authorization_endpoint":                p.server.URL + "/auth",
		"token_endpoint":                        p.server.URL + "/token",
		"jwks_uri":                              p.server.URL + "/keys",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (p *Provider) jwks(w http.ResponseWriter, _ *http.Request) {
	pub := p.key.PublicKey
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": keyID,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   "AQAB",
		}},
	})
}

func (p *Provider) token(w http.ResponseWriter, _ *http.Request) {
	p.tokenCalls.Add(1)

	p.mu.Lock()
	idToken, omit, status := p.idToken, p.omitIDToken, p.tokenStatus
	p.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, fmt.Sprintf(`{"error":"server_error","status":%d}`, status), status)
		return
	}

	body := map[string]any{
		"access_token": "test-access-token",
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if !omit {
		body["id_token"] = idToken
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
