// Package auth implements the Google sign-in handshake: the signed
// pending-login cookie that protects the redirect round-trip, and the
// authorization-code exchange with ID-token verification.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/mruedinger/game-club/cookie"
	apperrors "github.com/mruedinger/game-club/internal/errors"
)

// PendingLogin is the ephemeral state carried across the OAuth redirect in
// a signed cookie. Nothing is persisted server-side.
type PendingLogin struct {
	State        string `json:"state"`
	Nonce        string `json:"nonce"`
	CodeVerifier string `json:"codeVerifier"`
	CreatedAt    int64  `json:"createdAt"`
}

// Flow issues and validates pending-login cookies.
type Flow struct {
	codec      *cookie.Codec
	cookieName string
	ttl        time.Duration
	now        func() time.Time
}

func NewFlow(codec *cookie.Codec, cookieName string, ttl time.Duration, now func() time.Time) *Flow {
	if now == nil {
		now = time.Now
	}
	return &Flow{codec: codec, cookieName: cookieName, ttl: ttl, now: now}
}

// Begin generates fresh CSRF state, replay nonce, and PKCE verifier, and
// returns them alongside the signed short-lived cookie.
func (f *Flow) Begin(secure bool) (*PendingLogin, *http.Cookie, error) {
	pending := &PendingLogin{
		State:        randomString(32),
		Nonce:        randomString(32),
		CodeVerifier: randomString(64),
		CreatedAt:    f.now().UnixMilli(),
	}
	value, err := f.codec.Encode(pending)
	if err != nil {
		return nil, nil, err
	}
	return pending, cookie.New(f.cookieName, value, int(f.ttl.Seconds()), secure), nil
}

// Validate decodes the pending cookie on r and checks it against the
// state parameter returned by the provider. The CSRF check here must pass
// before any token exchange is attempted.
func (f *Flow) Validate(r *http.Request, returnedState string) (*PendingLogin, error) {
	c, err := r.Cookie(f.cookieName)
	if err != nil || c.Value == "" {
		return nil, apperrors.ErrPendingAbsent
	}
	var pending PendingLogin
	if !f.codec.Decode(c.Value, &pending) {
		return nil, apperrors.ErrPendingAbsent
	}
	if f.now().UnixMilli()-pending.CreatedAt > f.ttl.Milliseconds() {
		return nil, apperrors.ErrPendingExpired
	}
	if returnedState == "" || pending.State != returnedState {
		return nil, apperrors.ErrStateMismatch
	}
	return &pending, nil
}

// Clear returns the cookie that consumes the pending state. The callback
// sends it on every outcome, success or failure.
func (f *Flow) Clear(secure bool) *http.Cookie {
	return cookie.Cleared(f.cookieName, secure)
}

// randomString creates a random base64url string from n bytes of entropy.
func randomString(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// codeChallenge derives the S256 PKCE challenge from a verifier.
func codeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
