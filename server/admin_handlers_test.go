package server_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mruedinger/game-club/games"
	"github.com/mruedinger/game-club/members"
	"github.com/mruedinger/game-club/polls"
	"github.com/mruedinger/game-club/server"
)

func TestAdminMemberHandlers(t *testing.T) {
	t.Run("lists members", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)
		f.members.Put(members.Member{Email: "jane@example.com", Role: members.RoleMember, Active: true})

		rec := f.do(http.MethodGet, server.RouteAdminMembers, nil, adminCookie)
		require.Equal(t, http.StatusOK, rec.Code)

		var list []members.Member
		decodeBody(t, rec, &list)
		require.Len(t, list, 2)
	})

	t.Run("provisions a member", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)

		rec := f.do(http.MethodPost, server.RouteAdminMembers,
			map[string]any{"email": "New@Example.com", "role": "member"}, adminCookie)
		require.Equal(t, http.StatusNoContent, rec.Code)

		member, err := f.members.GetActive("new@example.com")
		require.NoError(t, err)
		require.Equal(t, members.RoleMember, member.Role)
	})

	t.Run("rejects a malformed provision", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)

		rec := f.do(http.MethodPost, server.RouteAdminMembers,
			map[string]any{"email": "not-an-email", "role": "member"}, adminCookie)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		rec = f.do(http.MethodPost, server.RouteAdminMembers,
			map[string]any{"email": "new@example.com", "role": "overlord"}, adminCookie)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("updates role and alias", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)
		f.members.Put(members.Member{Email: "jane@example.com", Role: members.RoleMember, Active: true})

		rec := f.do(http.MethodPatch, server.RouteAdminMembers,
			map[string]any{"email": "jane@example.com", "role": "admin", "alias": " Janey "}, adminCookie)
		require.Equal(t, http.StatusNoContent, rec.Code)

		member, err := f.members.Get("jane@example.com")
		require.NoError(t, err)
		require.Equal(t, members.RoleAdmin, member.Role)
		require.Equal(t, "Janey", member.Alias)
	})

	t.Run("admins cannot change their own role", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)

		rec := f.do(http.MethodPatch, server.RouteAdminMembers,
			map[string]any{"email": "admin@example.com", "role": "member"}, adminCookie)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "You cannot modify your own role.\n", rec.Body.String())
	})

	t.Run("rejects an empty update", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)

		rec := f.do(http.MethodPatch, server.RouteAdminMembers,
			map[string]any{"email": "jane@example.com"}, adminCookie)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "No updates provided.\n", rec.Body.String())
	})

	t.Run("admins cannot delete themselves", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)

		rec := f.do(http.MethodDelete, server.RouteAdminMembers,
			map[string]any{"email": "admin@example.com"}, adminCookie)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "You cannot delete your own account.\n", rec.Body.String())
	})

	t.Run("deletes another member", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)
		f.members.Put(members.Member{Email: "jane@example.com", Role: members.RoleMember, Active: true})

		rec := f.do(http.MethodDelete, server.RouteAdminMembers,
			map[string]any{"email": "jane@example.com"}, adminCookie)
		require.Equal(t, http.StatusNoContent, rec.Code)

		_, err := f.members.Get("jane@example.com")
		require.Error(t, err)
	})
}

func TestAdminSummaryHandler(t *testing.T) {
	f := newFixture(t)
	adminCookie := f.signIn("admin@example.com", members.RoleAdmin)
	f.members.Put(members.Member{Email: "jane@example.com", Name: "Jane", Role: members.RoleMember, Active: true})

	rec := f.do(http.MethodGet, server.RouteAdminSummary, nil, adminCookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Me struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"me"`
		Members []members.Member `json:"members"`
	}
	decodeBody(t, rec, &body)
	require.Equal(t, "admin@example.com", body.Me.Email)
	require.Equal(t, "admin", body.Me.Role)
	require.Len(t, body.Members, 2)
	// Admins sort ahead of regular members.
	require.Equal(t, members.RoleAdmin, body.Members[0].Role)
}

func TestAdminAuditLogsHandler(t *testing.T) {
	f := newFixture(t)
	adminCookie := f.signIn("admin@example.com", members.RoleAdmin)
	id := f.games.Put(games.Game{Title: "Hades", SubmittedByEmail: "admin@example.com", Status: games.StatusBacklog})

	rec := f.do(http.MethodDelete, server.RouteAdminGames, map[string]any{"id": id}, adminCookie)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodGet, server.RouteAdminAuditLogs, nil, adminCookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []struct {
		ActorEmail string `json:"actor_email"`
		Action     string `json:"action"`
		EntityType string `json:"entity_type"`
	}
	decodeBody(t, rec, &entries)
	require.Len(t, entries, 1)
	require.Equal(t, "admin@example.com", entries[0].ActorEmail)
	require.Equal(t, "game_delete", entries[0].Action)
	require.Equal(t, "game", entries[0].EntityType)
}

func TestAdminUpdateGameHandler(t *testing.T) {
	t.Run("promoting to current demotes the previous pick", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)
		previous := f.games.Put(games.Game{Title: "Celeste", SubmittedByEmail: "admin@example.com", Status: games.StatusCurrent})
		next := f.games.Put(games.Game{Title: "Hades", SubmittedByEmail: "admin@example.com", Status: games.StatusBacklog})

		rec := f.do(http.MethodPatch, server.RouteAdminGames,
			map[string]any{"id": next, "status": "current"}, adminCookie)
		require.Equal(t, http.StatusNoContent, rec.Code)

		demoted, err := f.games.Get(previous)
		require.NoError(t, err)
		require.Equal(t, games.StatusPlayed, demoted.Status)
		require.NotEmpty(t, demoted.PlayedMonth)

		promoted, err := f.games.Get(next)
		require.NoError(t, err)
		require.Equal(t, games.StatusCurrent, promoted.Status)
		require.Nil(t, promoted.PollEligible)

		actions := make([]string, 0, 2)
		for _, entry := range f.auditLog.Entries() {
			actions = append(actions, entry.Action)
		}
		require.Contains(t, actions, "game_edit")
		require.Contains(t, actions, "game_set_current")
	})

	t.Run("reassigns ownership to an existing member only", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)
		f.members.Put(members.Member{Email: "jane@example.com", Role: members.RoleMember, Active: true})
		id := f.games.Put(games.Game{Title: "Hades", SubmittedByEmail: "admin@example.com", Status: games.StatusBacklog})

		rec := f.do(http.MethodPatch, server.RouteAdminGames,
			map[string]any{"id": id, "submitted_by_email": "ghost@example.com"}, adminCookie)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "Submitted by email must belong to an existing member.\n", rec.Body.String())

		rec = f.do(http.MethodPatch, server.RouteAdminGames,
			map[string]any{"id": id, "submitted_by_email": "Jane@Example.com"}, adminCookie)
		require.Equal(t, http.StatusNoContent, rec.Code)

		game, err := f.games.Get(id)
		require.NoError(t, err)
		require.Equal(t, "jane@example.com", game.SubmittedByEmail)
	})

	t.Run("validates the played month", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)
		id := f.games.Put(games.Game{Title: "Hades", SubmittedByEmail: "admin@example.com", Status: games.StatusPlayed})

		rec := f.do(http.MethodPatch, server.RouteAdminGames,
			map[string]any{"id": id, "played_month": "March 2026"}, adminCookie)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "Invalid played month. Use YYYY-MM.\n", rec.Body.String())

		rec = f.do(http.MethodPatch, server.RouteAdminGames,
			map[string]any{"id": id, "played_month": "2026-03"}, adminCookie)
		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("enforces the eligibility cap", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)
		eligible := true
		f.games.Put(games.Game{Title: "Hades", SubmittedByEmail: "jane@example.com", Status: games.StatusBacklog, PollEligible: &eligible})
		f.games.Put(games.Game{Title: "Celeste", SubmittedByEmail: "jane@example.com", Status: games.StatusBacklog, PollEligible: &eligible})
		third := f.games.Put(games.Game{Title: "Portal", SubmittedByEmail: "jane@example.com", Status: games.StatusBacklog})

		rec := f.do(http.MethodPatch, server.RouteAdminGames,
			map[string]any{"id": third, "poll_eligible": true}, adminCookie)
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("rejects an empty update", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)
		id := f.games.Put(games.Game{Title: "Hades", SubmittedByEmail: "admin@example.com", Status: games.StatusBacklog})

		rec := f.do(http.MethodPatch, server.RouteAdminGames, map[string]any{"id": id}, adminCookie)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "No updates provided.\n", rec.Body.String())
	})

	t.Run("unknown game returns not found", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)

		rec := f.do(http.MethodPatch, server.RouteAdminGames,
			map[string]any{"id": 99, "status": "played"}, adminCookie)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAdminPollHandlers(t *testing.T) {
	closedPoll := func(f *fixture) int64 {
		ids := seedBacklog(f, "Hades", "Celeste")
		pollID, err := f.polls.Open(ids)
		require.NoError(f.t, err)
		require.NoError(f.t, f.polls.CastVote(pollID, "jane@example.com", []int64{ids[0]}))
		require.NoError(f.t, f.polls.Close())
		return pollID
	}

	t.Run("lists poll history", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)
		closedPoll(f)

		rec := f.do(http.MethodGet, server.RouteAdminPolls, nil, adminCookie)
		require.Equal(t, http.StatusOK, rec.Code)

		var history []polls.HistoryEntry
		decodeBody(t, rec, &history)
		require.Len(t, history, 1)
		require.Equal(t, 1, history[0].VoterCount)
		require.Equal(t, "Hades", history[0].WinnerTitle)
	})

	t.Run("returns one poll with full results", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)
		pollID := closedPoll(f)

		rec := f.do(http.MethodGet, server.RouteAdminPolls+"?id=1", nil, adminCookie)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Poll    polls.HistoryEntry `json:"poll"`
			Results []polls.Result     `json:"results"`
		}
		decodeBody(t, rec, &body)
		require.Equal(t, pollID, body.Poll.ID)
		require.Len(t, body.Results, 2)
	})

	t.Run("flags history validity", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)
		pollID := closedPoll(f)

		rec := f.do(http.MethodPatch, server.RouteAdminPolls,
			map[string]any{"id": pollID, "history_valid": false}, adminCookie)
		require.Equal(t, http.StatusNoContent, rec.Code)

		entry, err := f.polls.HistoryEntry(pollID)
		require.NoError(t, err)
		require.False(t, entry.HistoryValid)

		entries := f.auditLog.Entries()
		require.Len(t, entries, 1)
		require.Equal(t, "poll_history_validity_update", entries[0].Action)
	})

	t.Run("deletes a closed poll", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)
		pollID := closedPoll(f)

		rec := f.do(http.MethodDelete, server.RouteAdminPolls,
			map[string]any{"id": pollID}, adminCookie)
		require.Equal(t, http.StatusNoContent, rec.Code)

		_, err := f.polls.HistoryEntry(pollID)
		require.Error(t, err)
	})

	t.Run("active polls are not history", func(t *testing.T) {
		f := newFixture(t)
		adminCookie := f.signIn("admin@example.com", members.RoleAdmin)
		ids := seedBacklog(f, "Hades")
		pollID, err := f.polls.Open(ids)
		require.NoError(t, err)

		rec := f.do(http.MethodDelete, server.RouteAdminPolls,
			map[string]any{"id": pollID}, adminCookie)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}
