package server_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mruedinger/game-club/internal/config"
	"github.com/mruedinger/game-club/members"
	"github.com/mruedinger/game-club/server"
	"github.com/mruedinger/game-club/session"
)

func TestLoginHandler(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, server.RouteAuthLogin, nil)
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Contains(t, location.String(), f.provider.URL())

	query := location.Query()
	require.NotEmpty(t, query.Get("state"))
	require.NotEmpty(t, query.Get("nonce"))
	require.NotEmpty(t, query.Get("code_challenge"))
	require.Equal(t, "S256", query.Get("code_challenge_method"))

	pendingCookie := findCookie(t, rec, config.DefaultOAuthCookieName)
	require.True(t, pendingCookie.HttpOnly)
	require.NotEmpty(t, pendingCookie.Value)
}

func TestCallbackHandler(t *testing.T) {
	t.Run("signs in an existing member", func(t *testing.T) {
		f := newFixture(t)
		f.members.Put(members.Member{Email: "jane@example.com", Role: members.RoleMember, Active: true})

		pending, pendingCookie := f.beginLogin()
		idToken, err := f.provider.MintIDToken(testClientID, map[string]any{
			"email":          "jane@example.com",
			"email_verified": true,
			"name":           "Jane Doe",
			"picture":        "https://example.com/jane.png",
			"nonce":          pending.Nonce,
		})
		require.NoError(t, err)
		f.provider.SetIDToken(idToken)

		rec := f.do(http.MethodGet,
			server.RouteAuthCallback+"?code=auth-code&state="+pending.State, nil, pendingCookie)
		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, server.LocationHome, rec.Header().Get("Location"))

		sessionCookie := findCookie(t, rec, config.DefaultSessionCookieName)
		var data session.Data
		require.True(t, f.codec.Decode(sessionCookie.Value, &data))
		require.Equal(t, "jane@example.com", data.Email)
		require.Equal(t, members.RoleMember, data.Role)

		// The pending login cookie is cleared.
		cleared := findCookie(t, rec, config.DefaultOAuthCookieName)
		require.Empty(t, cleared.Value)
		require.Negative(t, cleared.MaxAge)

		// Profile fields from the provider landed on the member row.
		member, err := f.members.Get("jane@example.com")
		require.NoError(t, err)
		require.Equal(t, "Jane Doe", member.Name)
	})

	t.Run("rejects a provider error", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodGet, server.RouteAuthCallback+"?error=access_denied", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects missing parameters", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodGet, server.RouteAuthCallback+"?code=auth-code", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects a mismatched state without exchanging the code", func(t *testing.T) {
		f := newFixture(t)
		_, pendingCookie := f.beginLogin()

		rec := f.do(http.MethodGet,
			server.RouteAuthCallback+"?code=auth-code&state=forged", nil, pendingCookie)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Zero(t, f.provider.TokenCalls())
	})

	t.Run("rejects a missing pending cookie", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodGet,
			server.RouteAuthCallback+"?code=auth-code&state=some-state", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Zero(t, f.provider.TokenCalls())
	})

	t.Run("rejects an unverified email", func(t *testing.T) {
		f := newFixture(t)
		pending, pendingCookie := f.beginLogin()
		idToken, err := f.provider.MintIDToken(testClientID, map[string]any{
			"email":          "jane@example.com",
			"email_verified": false,
			"nonce":          pending.Nonce,
		})
		require.NoError(t, err)
		f.provider.SetIDToken(idToken)

		rec := f.do(http.MethodGet,
			server.RouteAuthCallback+"?code=auth-code&state="+pending.State, nil, pendingCookie)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("redirects unknown emails to the denied page", func(t *testing.T) {
		f := newFixture(t)
		pending, pendingCookie := f.beginLogin()
		idToken, err := f.provider.MintIDToken(testClientID, map[string]any{
			"email":          "stranger@example.com",
			"email_verified": true,
			"nonce":          pending.Nonce,
		})
		require.NoError(t, err)
		f.provider.SetIDToken(idToken)

		rec := f.do(http.MethodGet,
			server.RouteAuthCallback+"?code=auth-code&state="+pending.State, nil, pendingCookie)
		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, server.LocationAuthDenied, rec.Header().Get("Location"))

		_, err = f.members.Get("stranger@example.com")
		require.Error(t, err)
	})

	t.Run("provisions an allow-listed admin on first sign-in", func(t *testing.T) {
		f := newFixture(t, func(cfg *config.Config) {
			cfg.AdminEmails = []string{"Boss@example.com"}
		})
		pending, pendingCookie := f.beginLogin()
		idToken, err := f.provider.MintIDToken(testClientID, map[string]any{
			"email":          "boss@example.com",
			"email_verified": true,
			"nonce":          pending.Nonce,
		})
		require.NoError(t, err)
		f.provider.SetIDToken(idToken)

		rec := f.do(http.MethodGet,
			server.RouteAuthCallback+"?code=auth-code&state="+pending.State, nil, pendingCookie)
		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, server.LocationHome, rec.Header().Get("Location"))

		member, err := f.members.GetActive("boss@example.com")
		require.NoError(t, err)
		require.Equal(t, members.RoleAdmin, member.Role)
	})

	t.Run("fails closed on a broken token endpoint", func(t *testing.T) {
		f := newFixture(t)
		f.provider.FailTokenExchange(http.StatusInternalServerError)
		pending, pendingCookie := f.beginLogin()

		rec := f.do(http.MethodGet,
			server.RouteAuthCallback+"?code=auth-code&state="+pending.State, nil, pendingCookie)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestLogoutHandler(t *testing.T) {
	f := newFixture(t)
	sessionCookie := f.signIn("jane@example.com", members.RoleMember)

	rec := f.do(http.MethodPost, server.RouteAuthLogout, nil, sessionCookie)
	require.Equal(t, http.StatusNoContent, rec.Code)

	cleared := findCookie(t, rec, config.DefaultSessionCookieName)
	require.Empty(t, cleared.Value)
	require.Negative(t, cleared.MaxAge)
}

func TestAuthGuards(t *testing.T) {
	t.Run("mutations require a session", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodPost, server.RouteGames, map[string]any{"title": "Outer Wilds"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "Authentication required.\n", rec.Body.String())
	})

	t.Run("admin routes require the admin role", func(t *testing.T) {
		f := newFixture(t)
		memberCookie := f.signIn("jane@example.com", members.RoleMember)

		rec := f.do(http.MethodGet, server.RouteAdminMembers, nil, memberCookie)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "Admin access required.\n", rec.Body.String())
	})

	t.Run("a forged session cookie is ignored", func(t *testing.T) {
		f := newFixture(t)
		forged := &http.Cookie{Name: config.DefaultSessionCookieName, Value: "payload.signature"}

		rec := f.do(http.MethodGet, server.RouteMe, nil, forged)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
