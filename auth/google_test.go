package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mruedinger/game-club/auth"
	apperrors "github.com/mruedinger/game-club/internal/errors"
	"github.com/mruedinger/game-club/internal/oidctest"
)

const testClientID = "game-club-test-client"

type googleFixture struct {
	provider *oidctest.Provider
	client   *auth.GoogleClient
	pending  *auth.PendingLogin
}

func newGoogleFixture(t *testing.T, allowedIssuers []string) *googleFixture {
	t.Helper()

	provider, err := oidctest.New()
	require.NoError(t, err)
	t.Cleanup(provider.Close)

	if allowedIssuers == nil {
		allowedIssuers = []string{provider.URL()}
	}

	client, err := auth.NewGoogleClient(context.Background(), auth.GoogleConfig{
		ClientID:       testClientID,
		ClientSecret:   "test-secret",
		RedirectURI:    "http://localhost:8080/api/auth/callback",
		Issuer:         provider.URL(),
		AllowedIssuers: allowedIssuers,
	})
	require.NoError(t, err)

	return &googleFixture{
		provider: provider,
		client:   client,
		pending: &auth.PendingLogin{
			State:        "state-123",
			Nonce:        "nonce-456",
			CodeVerifier: "verifier-789",
			CreatedAt:    time.Now().UnixMilli(),
		},
	}
}

func (f *googleFixture) mintToken(t *testing.T, extra map[string]any) string {
	t.Helper()
	raw, err := f.provider.MintIDToken(testClientID, extra)
	require.NoError(t, err)
	return raw
}

func TestGoogleClientAuthURL(t *testing.T) {
	f := newGoogleFixture(t, nil)

	url := f.client.AuthURL(f.pending)
	require.Contains(t, url, "state=state-123")
	require.Contains(t, url, "nonce=nonce-456")
	require.Contains(t, url, "code_challenge=")
	require.Contains(t, url, "code_challenge_method=S256")
	require.Contains(t, url, "prompt=select_account")
	require.Contains(t, url, "scope=openid+email+profile")
	require.NotContains(t, url, "verifier-789")
}

func TestGoogleClientExchange(t *testing.T) {
	t.Run("verified identity returned", func(t *testing.T) {
		f := newGoogleFixture(t, nil)
		f.provider.SetIDToken(f.mintToken(t, map[string]any{
			"nonce":          f.pending.Nonce,
			"email":          "alice@example.com",
			"email_verified": true,
			"name":           "Alice",
			"picture":        "https://example.com/alice.png",
		}))

		claims, err := f.client.Exchange(context.Background(), "auth-code", f.pending)
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", claims.Email)
		require.True(t, claims.EmailVerified)
		require.Equal(t, "Alice", claims.Name)
		require.Equal(t, "https://example.com/alice.png", claims.Picture)
	})

	t.Run("email_verified as string", func(t *testing.T) {
		f := newGoogleFixture(t, nil)
		f.provider.SetIDToken(f.mintToken(t, map[string]any{
			"nonce":          f.pending.Nonce,
			"email":          "bob@example.com",
			"email_verified": "true",
		}))

		claims, err := f.client.Exchange(context.Background(), "auth-code", f.pending)
		require.NoError(t, err)
		require.True(t, claims.EmailVerified)
	})

	t.Run("unverified email passes through as false", func(t *testing.T) {
		f := newGoogleFixture(t, nil)
		f.provider.SetIDToken(f.mintToken(t, map[string]any{
			"nonce":          f.pending.Nonce,
			"email":          "carol@example.com",
			"email_verified": false,
		}))

		claims, err := f.client.Exchange(context.Background(), "auth-code", f.pending)
		require.NoError(t, err)
		require.False(t, claims.EmailVerified)
	})

	t.Run("token endpoint failure", func(t *testing.T) {
		f := newGoogleFixture(t, nil)
		f.provider.FailTokenExchange(500)

		_, err := f.client.Exchange(context.Background(), "auth-code", f.pending)
		require.ErrorIs(t, err, apperrors.ErrTokenExchange)
	})

	t.Run("missing id_token", func(t *testing.T) {
		f := newGoogleFixture(t, nil)
		f.provider.OmitIDToken()

		_, err := f.client.Exchange(context.Background(), "auth-code", f.pending)
		require.ErrorIs(t, err, apperrors.ErrMissingIDToken)
	})

	t.Run("signature from unknown key rejected", func(t *testing.T) {
		f := newGoogleFixture(t, nil)
		raw, err := f.provider.MintForeignIDToken(testClientID, map[string]any{
			"nonce": f.pending.Nonce,
			"email": "mallory@example.com",
		})
		require.NoError(t, err)
		f.provider.SetIDToken(raw)

		_, err = f.client.Exchange(context.Background(), "auth-code", f.pending)
		require.ErrorIs(t, err, apperrors.ErrTokenVerify)
	})

	t.Run("wrong audience rejected", func(t *testing.T) {
		f := newGoogleFixture(t, nil)
		raw, err := f.provider.MintIDToken("some-other-client", map[string]any{
			"nonce": f.pending.Nonce,
			"email": "mallory@example.com",
		})
		require.NoError(t, err)
		f.provider.SetIDToken(raw)

		_, err = f.client.Exchange(context.Background(), "auth-code", f.pending)
		require.ErrorIs(t, err, apperrors.ErrTokenVerify)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		f := newGoogleFixture(t, nil)
		f.provider.SetIDToken(f.mintToken(t, map[string]any{
			"nonce": f.pending.Nonce,
			"email": "alice@example.com",
			"exp":   time.Now().Add(-time.Hour).Unix(),
		}))

		_, err := f.client.Exchange(context.Background(), "auth-code", f.pending)
		require.ErrorIs(t, err, apperrors.ErrTokenVerify)
	})

	t.Run("issuer outside allow-list rejected", func(t *testing.T) {
		f := newGoogleFixture(t, []string{"https://accounts.google.com"})
		f.provider.SetIDToken(f.mintToken(t, map[string]any{
			"nonce": f.pending.Nonce,
			"email": "alice@example.com",
		}))

		_, err := f.client.Exchange(context.Background(), "auth-code", f.pending)
		require.ErrorIs(t, err, apperrors.ErrInvalidIssuer)
	})

	t.Run("nonce mismatch rejected", func(t *testing.T) {
		f := newGoogleFixture(t, nil)
		f.provider.SetIDToken(f.mintToken(t, map[string]any{
			"nonce": "nonce-from-another-attempt",
			"email": "alice@example.com",
		}))

		_, err := f.client.Exchange(context.Background(), "auth-code", f.pending)
		require.ErrorIs(t, err, apperrors.ErrInvalidNonce)
	})
}
