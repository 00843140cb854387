package server_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mruedinger/game-club/internal/config"
	"github.com/mruedinger/game-club/members"
	"github.com/mruedinger/game-club/server"
	"github.com/mruedinger/game-club/session"
)

func TestMeHandler(t *testing.T) {
	f := newFixture(t)
	sessionCookie := f.signIn("jane@example.com", members.RoleMember)

	rec := f.do(http.MethodGet, server.RouteMe, nil, sessionCookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Role  string `json:"role"`
	}
	decodeBody(t, rec, &body)
	require.Equal(t, "jane@example.com", body.Email)
	require.Equal(t, "Test User", body.Name)
	require.Equal(t, "member", body.Role)
}

func TestUpdateAliasHandler(t *testing.T) {
	t.Run("sets the alias and refreshes the session", func(t *testing.T) {
		f := newFixture(t)
		sessionCookie := f.signIn("jane@example.com", members.RoleMember)

		rec := f.do(http.MethodPatch, server.RouteMe, map[string]any{"alias": " Janey "}, sessionCookie)
		require.Equal(t, http.StatusNoContent, rec.Code)

		member, err := f.members.Get("jane@example.com")
		require.NoError(t, err)
		require.Equal(t, "Janey", member.Alias)

		refreshed := findCookie(t, rec, config.DefaultSessionCookieName)
		var data session.Data
		require.True(t, f.codec.Decode(refreshed.Value, &data))
		require.Equal(t, "Janey", data.Alias)
	})

	t.Run("clears the alias", func(t *testing.T) {
		f := newFixture(t)
		f.members.Put(members.Member{Email: "jane@example.com", Alias: "Janey", Role: members.RoleMember, Active: true})
		sessionCookie := f.signIn("jane@example.com", members.RoleMember)

		rec := f.do(http.MethodPatch, server.RouteMe, map[string]any{"alias": ""}, sessionCookie)
		require.Equal(t, http.StatusNoContent, rec.Code)

		member, err := f.members.Get("jane@example.com")
		require.NoError(t, err)
		require.Empty(t, member.Alias)
	})

	t.Run("requires the alias field", func(t *testing.T) {
		f := newFixture(t)
		sessionCookie := f.signIn("jane@example.com", members.RoleMember)

		rec := f.do(http.MethodPatch, server.RouteMe, map[string]any{}, sessionCookie)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSiteSettingsHandlers(t *testing.T) {
	t.Run("next meeting starts unset", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodGet, server.RouteSiteSettings, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"next_meeting": null}`, rec.Body.String())
	})

	t.Run("admins set the next meeting", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)

		rec := f.do(http.MethodPatch, server.RouteSiteSettings,
			map[string]any{"next_meeting": "2026-09-12T19:00"}, adminCookie)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = f.do(http.MethodGet, server.RouteSiteSettings, nil)
		require.JSONEq(t, `{"next_meeting": "2026-09-12T19:00"}`, rec.Body.String())

		entries := f.auditLog.Entries()
		require.Len(t, entries, 1)
		require.Equal(t, "update_next_meeting", entries[0].Action)
	})

	t.Run("rejects an unparseable time", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)

		rec := f.do(http.MethodPatch, server.RouteSiteSettings,
			map[string]any{"next_meeting": "next tuesday"}, adminCookie)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("members cannot update settings", func(t *testing.T) {
		f := newFixture(t)
		memberCookie := f.signIn("jane@example.com", members.RoleMember)

		rec := f.do(http.MethodPatch, server.RouteSiteSettings,
			map[string]any{"next_meeting": "2026-09-12T19:00"}, memberCookie)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}
