package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mruedinger/game-club/games"
	apperrors "github.com/mruedinger/game-club/internal/errors"
	"github.com/mruedinger/game-club/members"
)

var (
	emailRe       = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	playedMonthRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
)

// AdminListMembersHandler lists every member, active first.
func (s *Server) AdminListMembersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.members.List()
		if err != nil {
			s.log.Error().Err(err).Msg("member list failed")
			http.Error(w, "Unable to load members.", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// AdminUpsertMemberHandler provisions a member or reactivates an
// existing one with the given role.
func (s *Server) AdminUpsertMemberHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email string           `json:"email"`
			Role  members.RoleType `json:"role"`
		}
		if !readJSON(r, &body) {
			http.Error(w, "Email and role are required.", http.StatusBadRequest)
			return
		}
		email := strings.ToLower(strings.TrimSpace(body.Email))
		if email == "" || !strings.Contains(email, "@") || !members.ValidRole(body.Role) {
			http.Error(w, "Email and role are required.", http.StatusBadRequest)
			return
		}
		if err := s.members.Upsert(email, body.Role); err != nil {
			s.log.Error().Err(err).Msg("member upsert failed")
			http.Error(w, "Unable to save member.", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdminUpdateMemberHandler changes a member's role or alias. Admins
// cannot change their own role.
func (s *Server) AdminUpdateMemberHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := sessionFrom(r)

		var body struct {
			Email string           `json:"email"`
			Role  members.RoleType `json:"role"`
			Alias *string          `json:"alias"`
		}
		if !readJSON(r, &body) {
			http.Error(w, "Email is required.", http.StatusBadRequest)
			return
		}
		email := strings.ToLower(strings.TrimSpace(body.Email))
		if email == "" || !strings.Contains(email, "@") {
			http.Error(w, "Email is required.", http.StatusBadRequest)
			return
		}
		isSelf := email == strings.ToLower(data.Email)

		updates := 0
		if body.Role != "" {
			if isSelf {
				http.Error(w, "You cannot modify your own role.", http.StatusForbidden)
				return
			}
			if !members.ValidRole(body.Role) {
				http.Error(w, "Invalid role.", http.StatusBadRequest)
				return
			}
			updates++
		}
		if body.Alias != nil {
			updates++
		}
		if updates == 0 {
			http.Error(w, "No updates provided.", http.StatusBadRequest)
			return
		}

		if body.Role != "" {
			if err := s.members.SetRole(email, body.Role); err != nil {
				s.log.Error().Err(err).Msg("member role update failed")
				http.Error(w, "Unable to update member.", http.StatusInternalServerError)
				return
			}
		}
		if body.Alias != nil {
			if err := s.members.SetAlias(email, strings.TrimSpace(*body.Alias)); err != nil {
				s.log.Error().Err(err).Msg("member alias update failed")
				http.Error(w, "Unable to update member.", http.StatusInternalServerError)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdminDeleteMemberHandler removes a member. Admins cannot delete
// themselves.
func (s *Server) AdminDeleteMemberHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := sessionFrom(r)

		var body struct {
			Email string `json:"email"`
		}
		if !readJSON(r, &body) {
			http.Error(w, "Email is required.", http.StatusBadRequest)
			return
		}
		email := strings.ToLower(strings.TrimSpace(body.Email))
		if email == "" || !strings.Contains(email, "@") {
			http.Error(w, "Email is required.", http.StatusBadRequest)
			return
		}
		if email == strings.ToLower(data.Email) {
			http.Error(w, "You cannot delete your own account.", http.StatusForbidden)
			return
		}
		if err := s.members.Delete(email); err != nil {
			s.log.Error().Err(err).Msg("member delete failed")
			http.Error(w, "Unable to delete member.", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdminAuditLogsHandler returns the newest audit entries.
func (s *Server) AdminAuditLogsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := s.audit.Latest()
		if err != nil {
			s.log.Error().Err(err).Msg("audit log read failed")
			http.Error(w, "Unable to load audit logs.", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// AdminSummaryHandler returns the caller's identity with the member
// roster, admins first then by display name.
func (s *Server) AdminSummaryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := sessionFrom(r)

		list, err := s.members.List()
		if err != nil {
			http.Error(w, "Unable to load members.", http.StatusInternalServerError)
			return
		}
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Role != list[j].Role {
				return list[i].Role < list[j].Role
			}
			if (list[i].Name == "") != (list[j].Name == "") {
				return list[i].Name != ""
			}
			ni, nj := strings.ToLower(list[i].Name), strings.ToLower(list[j].Name)
			if ni != nj {
				return ni < nj
			}
			return list[i].Email < list[j].Email
		})

		writeJSON(w, http.StatusOK, map[string]any{
			"me":      identityFrom(data),
			"members": list,
		})
	}
}

// AdminListGamesHandler lists the whole catalog ordered by title.
func (s *Server) AdminListGamesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.games.List()
		if err != nil {
			http.Error(w, "Unable to load games.", http.StatusInternalServerError)
			return
		}
		sort.SliceStable(list, func(i, j int) bool {
			return strings.ToLower(list[i].Title) < strings.ToLower(list[j].Title)
		})
		writeJSON(w, http.StatusOK, list)
	}
}

// AdminUpdateGameHandler edits a game's ownership, status, eligibility,
// played month, completion time, and tags. Promoting a game to current
// demotes the previous current pick to played.
func (s *Server) AdminUpdateGameHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := sessionFrom(r)

		var body struct {
			ID               gameID          `json:"id"`
			SubmittedByEmail *string         `json:"submitted_by_email"`
			Status           *string         `json:"status"`
			PollEligible     json.RawMessage `json:"poll_eligible"`
			PlayedMonth      *string         `json:"played_month"`
			TimeToBeatHours  *float64        `json:"time_to_beat_hours"`
			Tags             *string         `json:"tags"`
		}
		if !readJSON(r, &body) || body.ID == 0 {
			http.Error(w, "Game id is required.", http.StatusBadRequest)
			return
		}
		existing, err := s.games.Get(int64(body.ID))
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				http.Error(w, "Game not found.", http.StatusNotFound)
				return
			}
			http.Error(w, "Unable to update game.", http.StatusInternalServerError)
			return
		}
		before := *existing

		next := *existing
		updates := 0

		if body.SubmittedByEmail != nil {
			email := strings.ToLower(strings.TrimSpace(*body.SubmittedByEmail))
			if email == "" {
				http.Error(w, "Submitted by email is required.", http.StatusBadRequest)
				return
			}
			if !emailRe.MatchString(email) {
				http.Error(w, "User email address is malformed.", http.StatusBadRequest)
				return
			}
			if _, err := s.members.Get(email); err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					http.Error(w, "Submitted by email must belong to an existing member.", http.StatusBadRequest)
					return
				}
				http.Error(w, "Unable to update game.", http.StatusInternalServerError)
				return
			}
			next.SubmittedByEmail = email
		}

		if body.Status != nil {
			status := games.Status(*body.Status)
			if !games.ValidStatus(status) {
				http.Error(w, "Invalid status.", http.StatusBadRequest)
				return
			}
			next.Status = status
		}

		if len(body.PollEligible) > 0 {
			eligible, ok := parseEligibility(body.PollEligible)
			if !ok {
				http.Error(w, "Invalid poll eligibility value.", http.StatusBadRequest)
				return
			}
			next.PollEligible = eligible
		}

		// Eligibility only means something for backlog games.
		if next.Status != games.StatusBacklog {
			next.PollEligible = nil
		} else if next.PollEligible == nil {
			off := false
			next.PollEligible = &off
		}

		if next.Status == games.StatusBacklog && next.PollEligible != nil && *next.PollEligible {
			count, err := s.games.CountEligibleBacklog(next.SubmittedByEmail, next.ID)
			if err != nil {
				http.Error(w, "Unable to update game.", http.StatusInternalServerError)
				return
			}
			if count >= games.MaxEligiblePerMember {
				http.Error(w, "Member already has 2 poll-eligible backlog games.", http.StatusConflict)
				return
			}
		}

		if next.SubmittedByEmail != existing.SubmittedByEmail {
			updates++
		}
		if next.Status != existing.Status {
			updates++
		}
		if !boolPtrEqual(next.PollEligible, existing.PollEligible) {
			updates++
		}

		if body.PlayedMonth != nil {
			month := strings.TrimSpace(*body.PlayedMonth)
			if month != "" && !playedMonthRe.MatchString(month) {
				http.Error(w, "Invalid played month. Use YYYY-MM.", http.StatusBadRequest)
				return
			}
			next.PlayedMonth = month
			updates++
		}

		if body.TimeToBeatHours != nil {
			minutes := int(math.Max(0, math.Round(*body.TimeToBeatHours*60)))
			if minutes > 0 {
				next.TimeToBeatMinutes = &minutes
			} else {
				next.TimeToBeatMinutes = nil
			}
			updates++
		}

		if body.Tags != nil {
			next.TagsJSON = tagsToJSON(*body.Tags)
			updates++
		}

		if updates == 0 {
			http.Error(w, "No updates provided.", http.StatusBadRequest)
			return
		}

		becomingCurrent := next.Status == games.StatusCurrent && existing.Status != games.StatusCurrent
		if becomingCurrent {
			if err := s.games.DemoteCurrent(next.ID, currentMonth()); err != nil {
				s.log.Error().Err(err).Msg("current game demotion failed")
				http.Error(w, "Unable to update game.", http.StatusInternalServerError)
				return
			}
		}
		if err := s.games.Update(&next); err != nil {
			s.log.Error().Err(err).Msg("game update failed")
			http.Error(w, "Unable to update game.", http.StatusInternalServerError)
			return
		}

		updated, err := s.games.Get(next.ID)
		if err != nil {
			http.Error(w, "Unable to update game.", http.StatusInternalServerError)
			return
		}
		s.audit.Write(data.Email, "game_edit", "game", formatID(next.ID), before, updated)
		if becomingCurrent {
			s.audit.Write(data.Email, "game_set_current", "game", formatID(next.ID), before, updated)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdminDeleteGameHandler removes a game and its poll references.
func (s *Server) AdminDeleteGameHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := sessionFrom(r)

		var body struct {
			ID gameID `json:"id"`
		}
		if !readJSON(r, &body) || body.ID == 0 {
			http.Error(w, "Game id is required.", http.StatusBadRequest)
			return
		}
		existing, err := s.games.Get(int64(body.ID))
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				http.Error(w, "Game not found.", http.StatusNotFound)
				return
			}
			http.Error(w, "Unable to delete game.", http.StatusInternalServerError)
			return
		}
		if err := s.games.Delete(existing.ID); err != nil {
			s.log.Error().Err(err).Msg("game delete failed")
			http.Error(w, "Unable to delete game.", http.StatusInternalServerError)
			return
		}
		s.audit.Write(data.Email, "game_delete", "game", formatID(existing.ID), existing, nil)
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdminPollHistoryHandler lists closed polls, or one poll with full
// results when an id is given.
func (s *Server) AdminPollHistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if raw := r.URL.Query().Get("id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id == 0 {
				http.Error(w, "Poll not found.", http.StatusNotFound)
				return
			}
			entry, err := s.polls.HistoryEntry(id)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					http.Error(w, "Poll not found.", http.StatusNotFound)
					return
				}
				http.Error(w, "Unable to load poll.", http.StatusInternalServerError)
				return
			}
			results, err := s.polls.Results(id)
			if err != nil {
				http.Error(w, "Unable to load poll.", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"poll": entry, "results": results})
			return
		}

		history, err := s.polls.History()
		if err != nil {
			s.log.Error().Err(err).Msg("poll history read failed")
			http.Error(w, "Unable to load poll history.", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, history)
	}
}

// AdminUpdatePollHandler flags whether a closed poll counts in history.
func (s *Server) AdminUpdatePollHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := sessionFrom(r)

		var body struct {
			ID           gameID `json:"id"`
			HistoryValid *bool  `json:"history_valid"`
		}
		if !readJSON(r, &body) || body.ID == 0 || body.HistoryValid == nil {
			http.Error(w, "Poll id and validity are required.", http.StatusBadRequest)
			return
		}
		existing, err := s.polls.HistoryEntry(int64(body.ID))
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				http.Error(w, "Poll not found.", http.StatusNotFound)
				return
			}
			http.Error(w, "Unable to update poll.", http.StatusInternalServerError)
			return
		}
		if err := s.polls.SetHistoryValid(existing.ID, *body.HistoryValid); err != nil {
			s.log.Error().Err(err).Msg("poll history update failed")
			http.Error(w, "Unable to update poll.", http.StatusInternalServerError)
			return
		}
		if existing.HistoryValid != *body.HistoryValid {
			s.audit.Write(data.Email, "poll_history_validity_update", "poll", formatID(existing.ID),
				map[string]any{"history_valid": existing.HistoryValid},
				map[string]any{"history_valid": *body.HistoryValid})
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdminDeletePollHandler removes a closed poll with its votes.
func (s *Server) AdminDeletePollHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := sessionFrom(r)

		var body struct {
			ID gameID `json:"id"`
		}
		if !readJSON(r, &body) || body.ID == 0 {
			http.Error(w, "Poll id is required.", http.StatusBadRequest)
			return
		}
		existing, err := s.polls.HistoryEntry(int64(body.ID))
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				http.Error(w, "Poll not found.", http.StatusNotFound)
				return
			}
			http.Error(w, "Unable to delete poll.", http.StatusInternalServerError)
			return
		}
		if err := s.polls.DeleteClosed(existing.ID); err != nil {
			s.log.Error().Err(err).Msg("poll delete failed")
			http.Error(w, "Unable to delete poll.", http.StatusInternalServerError)
			return
		}
		s.audit.Write(data.Email, "poll_history_delete", "poll", formatID(existing.ID), existing, nil)
		w.WriteHeader(http.StatusNoContent)
	}
}

// parseEligibility interprets the poll_eligible field. Only booleans are
// accepted when the field is present.
func parseEligibility(raw json.RawMessage) (*bool, bool) {
	var value bool
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false
	}
	return &value, true
}

func tagsToJSON(raw string) string {
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return ""
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return ""
	}
	return string(encoded)
}

func currentMonth() string {
	return time.Now().UTC().Format("2006-01")
}
