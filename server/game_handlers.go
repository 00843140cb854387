package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mruedinger/game-club/games"
	apperrors "github.com/mruedinger/game-club/internal/errors"
	"github.com/mruedinger/game-club/members"
)

// enrichTimeout bounds the background metadata fetch after adding a game.
const enrichTimeout = 30 * time.Second

// ListGamesHandler returns the whole catalog grouped by status.
func (s *Server) ListGamesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.games.List()
		if err != nil {
			s.log.Error().Err(err).Msg("game list failed")
			http.Error(w, "Unable to load games.", http.StatusInternalServerError)
			return
		}
		grouped := struct {
			Backlog []*games.Game `json:"backlog"`
			Current []*games.Game `json:"current"`
			Played  []*games.Game `json:"played"`
		}{
			Backlog: []*games.Game{},
			Current: []*games.Game{},
			Played:  []*games.Game{},
		}
		for _, game := range list {
			switch game.Status {
			case games.StatusBacklog:
				grouped.Backlog = append(grouped.Backlog, game)
			case games.StatusCurrent:
				grouped.Current = append(grouped.Current, game)
			case games.StatusPlayed:
				grouped.Played = append(grouped.Played, game)
			}
		}
		writeJSON(w, http.StatusOK, grouped)
	}
}

// AddGameHandler submits a backlog game. When a Steam app id comes along,
// external metadata is fetched in the background.
func (s *Server) AddGameHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := sessionFrom(r)

		var body struct {
			Title      string `json:"title"`
			SteamAppID int64  `json:"steam_app_id"`
		}
		if !readJSON(r, &body) {
			http.Error(w, "Title is required.", http.StatusBadRequest)
			return
		}
		title := strings.TrimSpace(body.Title)
		if title == "" {
			http.Error(w, "Title is required.", http.StatusBadRequest)
			return
		}

		id, err := s.games.Add(title, data.Email)
		if err != nil {
			s.log.Error().Err(err).Msg("game insert failed")
			http.Error(w, "Unable to add game.", http.StatusInternalServerError)
			return
		}

		if body.SteamAppID != 0 && s.enricher != nil {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), enrichTimeout)
				defer cancel()
				s.enricher.Enrich(ctx, s.games, id, title, body.SteamAppID)
			}()
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// CurrentGameHandler returns the active pick, or null when none is set.
func (s *Server) CurrentGameHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, err := s.games.Current()
		if err != nil {
			s.log.Error().Err(err).Msg("current game lookup failed")
			http.Error(w, "Unable to load current game.", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"current": current})
	}
}

type ratingResponse struct {
	GameID        int64                 `json:"game_id"`
	RatingCount   int                   `json:"rating_count"`
	RatingAverage *float64              `json:"rating_average"`
	MyRating      *int                  `json:"my_rating"`
	Ratings       []*games.MemberRating `json:"ratings,omitempty"`
}

// GetRatingHandler returns the rating summary for a game. Individual
// ratings are only shown to signed-in members.
func (s *Server) GetRatingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
		if err != nil || id == 0 {
			http.Error(w, "Game id is required.", http.StatusBadRequest)
			return
		}
		if _, err := s.games.Get(id); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				http.Error(w, "Game not found.", http.StatusNotFound)
				return
			}
			http.Error(w, "Unable to load ratings.", http.StatusInternalServerError)
			return
		}
		summary, err := s.games.RatingSummary(id)
		if err != nil {
			s.log.Error().Err(err).Msg("rating summary failed")
			http.Error(w, "Unable to load ratings.", http.StatusInternalServerError)
			return
		}

		resp := ratingResponse{
			GameID:        id,
			RatingCount:   summary.Count,
			RatingAverage: summary.Average,
			Ratings:       []*games.MemberRating{},
		}
		data := sessionFrom(r)
		if data == nil {
			writeJSON(w, http.StatusOK, resp)
			return
		}

		resp.MyRating, err = s.games.MemberRating(id, data.Email)
		if err == nil {
			resp.Ratings, err = s.games.ListRatings(id)
		}
		if err != nil {
			s.log.Error().Err(err).Msg("rating detail failed")
			http.Error(w, "Unable to load ratings.", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// SetRatingHandler upserts or clears the member's rating. A null, empty,
// or "null" rating clears it.
func (s *Server) SetRatingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := sessionFrom(r)

		var body struct {
			ID     gameID          `json:"id"`
			Rating json.RawMessage `json:"rating"`
		}
		if !readJSON(r, &body) || body.ID == 0 {
			http.Error(w, "Game id and valid rating are required.", http.StatusBadRequest)
			return
		}
		rating, ok := parseRating(body.Rating)
		if !ok {
			http.Error(w, "Game id and valid rating are required.", http.StatusBadRequest)
			return
		}
		id := int64(body.ID)
		if _, err := s.games.Get(id); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				http.Error(w, "Game not found.", http.StatusNotFound)
				return
			}
			http.Error(w, "Unable to save rating.", http.StatusInternalServerError)
			return
		}

		before, err := s.games.MemberRating(id, data.Email)
		if err != nil {
			http.Error(w, "Unable to save rating.", http.StatusInternalServerError)
			return
		}

		if rating == nil {
			err = s.games.ClearRating(id, data.Email)
		} else {
			err = s.games.SetRating(id, data.Email, *rating)
		}
		if err != nil {
			s.log.Error().Err(err).Msg("rating write failed")
			http.Error(w, "Unable to save rating.", http.StatusInternalServerError)
			return
		}

		if !ratingsEqual(before, rating) {
			action := "game_rating_set"
			if rating == nil {
				action = "game_rating_clear"
			}
			s.audit.Write(data.Email, action, "game", strconv.FormatInt(id, 10),
				map[string]any{"rating": before}, map[string]any{"rating": rating})
		}

		summary, err := s.games.RatingSummary(id)
		if err != nil {
			http.Error(w, "Unable to save rating.", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, ratingResponse{
			GameID:        id,
			RatingCount:   summary.Count,
			RatingAverage: summary.Average,
			MyRating:      rating,
		})
	}
}

// SetFavoriteHandler toggles the member's favorite flag for a game.
func (s *Server) SetFavoriteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := sessionFrom(r)

		var body struct {
			ID       gameID `json:"id"`
			Favorite *bool  `json:"favorite"`
		}
		if !readJSON(r, &body) || body.ID == 0 || body.Favorite == nil {
			http.Error(w, "Game id and favorite flag are required.", http.StatusBadRequest)
			return
		}
		id := int64(body.ID)
		if _, err := s.games.Get(id); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				http.Error(w, "Game not found.", http.StatusNotFound)
				return
			}
			http.Error(w, "Unable to update favorite.", http.StatusInternalServerError)
			return
		}

		before, err := s.games.IsFavorite(id, data.Email)
		if err != nil {
			http.Error(w, "Unable to update favorite.", http.StatusInternalServerError)
			return
		}
		if err := s.games.SetFavorite(id, data.Email, *body.Favorite); err != nil {
			s.log.Error().Err(err).Msg("favorite write failed")
			http.Error(w, "Unable to update favorite.", http.StatusInternalServerError)
			return
		}

		if before != *body.Favorite {
			action := "game_favorite_add"
			if !*body.Favorite {
				action = "game_favorite_remove"
			}
			s.audit.Write(data.Email, action, "game", strconv.FormatInt(id, 10),
				map[string]any{"favorite": before}, map[string]any{"favorite": *body.Favorite})
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SetEligibilityHandler marks a backlog game as poll eligible. Only the
// submitter or an admin may change it, and each member can have at most
// MaxEligiblePerMember eligible backlog games.
func (s *Server) SetEligibilityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := sessionFrom(r)

		var body struct {
			ID           gameID `json:"id"`
			PollEligible *bool  `json:"poll_eligible"`
		}
		if !readJSON(r, &body) || body.ID == 0 || body.PollEligible == nil {
			http.Error(w, "Game id and poll eligibility flag are required.", http.StatusBadRequest)
			return
		}
		game, err := s.games.Get(int64(body.ID))
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				http.Error(w, "Game not found.", http.StatusNotFound)
				return
			}
			http.Error(w, "Unable to update eligibility.", http.StatusInternalServerError)
			return
		}

		isOwner := game.SubmittedByEmail == strings.ToLower(data.Email)
		if !isOwner && data.Role != members.RoleAdmin {
			http.Error(w, "Not authorized.", http.StatusForbidden)
			return
		}
		if *body.PollEligible && game.Status != games.StatusBacklog {
			http.Error(w, "Only backlog games can be marked poll eligible.", http.StatusBadRequest)
			return
		}

		before := game.PollEligible
		var next *bool
		if game.Status == games.StatusBacklog {
			next = body.PollEligible
		}

		if next != nil && *next {
			count, err := s.games.CountEligibleBacklog(game.SubmittedByEmail, game.ID)
			if err != nil {
				http.Error(w, "Unable to update eligibility.", http.StatusInternalServerError)
				return
			}
			if count >= games.MaxEligiblePerMember {
				http.Error(w,
					fmt.Sprintf("You already have %d poll-eligible backlog games. Mark one ineligible first.",
						games.MaxEligiblePerMember),
					http.StatusConflict)
				return
			}
		}

		game.PollEligible = next
		if err := s.games.Update(game); err != nil {
			s.log.Error().Err(err).Msg("eligibility write failed")
			http.Error(w, "Unable to update eligibility.", http.StatusInternalServerError)
			return
		}

		if !boolPtrEqual(before, next) {
			s.audit.Write(data.Email, "game_poll_eligibility_update", "game",
				strconv.FormatInt(game.ID, 10),
				map[string]any{"poll_eligible": before}, map[string]any{"poll_eligible": next})
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SearchGamesHandler proxies Steam storefront search results.
func (s *Server) SearchGamesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		term := r.URL.Query().Get("term")
		if term == "" {
			writeJSON(w, http.StatusOK, map[string]any{"results": []any{}})
			return
		}
		results, err := s.steam.Search(r.Context(), term)
		if err != nil || results == nil {
			results = nil
		}
		if results == nil {
			writeJSON(w, http.StatusOK, map[string]any{"results": []any{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	}
}

// SetTimeToBeatHandler records a manual completion time. It refuses to
// overwrite a time that is already set.
func (s *Server) SetTimeToBeatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := sessionFrom(r)

		var body struct {
			ID    gameID   `json:"id"`
			Hours *float64 `json:"time_to_beat_hours"`
		}
		if !readJSON(r, &body) || body.ID == 0 || body.Hours == nil || *body.Hours < 0 {
			http.Error(w, "Valid game id and hours are required.", http.StatusBadRequest)
			return
		}
		game, err := s.games.Get(int64(body.ID))
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				http.Error(w, "Game not found.", http.StatusNotFound)
				return
			}
			http.Error(w, "Unable to set time to beat.", http.StatusInternalServerError)
			return
		}
		if game.TimeToBeatMinutes != nil && *game.TimeToBeatMinutes > 0 {
			http.Error(w, "Time to beat already set.", http.StatusConflict)
			return
		}

		before := game.TimeToBeatMinutes
		minutes := int(math.Round(*body.Hours * 60))
		if minutes > 0 {
			game.TimeToBeatMinutes = &minutes
		} else {
			game.TimeToBeatMinutes = nil
		}
		if err := s.games.Update(game); err != nil {
			s.log.Error().Err(err).Msg("time to beat write failed")
			http.Error(w, "Unable to set time to beat.", http.StatusInternalServerError)
			return
		}

		s.audit.Write(data.Email, "game_ttb_set", "game", strconv.FormatInt(game.ID, 10),
			map[string]any{"time_to_beat_minutes": before},
			map[string]any{"time_to_beat_minutes": game.TimeToBeatMinutes})
		w.WriteHeader(http.StatusNoContent)
	}
}

// parseRating interprets the rating field: integers 1..5 set, null and
// empty forms clear, anything else is invalid.
func parseRating(raw json.RawMessage) (*int, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, true
	}
	if strings.HasPrefix(trimmed, `"`) {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, false
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" || text == "null" {
			return nil, true
		}
		value, err := strconv.Atoi(text)
		if err != nil || value < 1 || value > 5 {
			return nil, false
		}
		return &value, true
	}
	var value int
	if err := json.Unmarshal(raw, &value); err != nil || value < 1 || value > 5 {
		return nil, false
	}
	return &value, true
}

func ratingsEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func boolPtrEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
