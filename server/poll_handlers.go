package server

import (
	"errors"
	"net/http"

	"github.com/mruedinger/game-club/games"
	apperrors "github.com/mruedinger/game-club/internal/errors"
	"github.com/mruedinger/game-club/polls"
)

// resultsShown caps how many standings the member-facing poll view reveals.
const resultsShown = 3

// GetPollHandler returns the active poll, or the most recently closed one
// when nothing is running. Standings stay hidden until the caller votes.
func (s *Server) GetPollHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active, err := s.polls.Active()
		if err != nil {
			s.log.Error().Err(err).Msg("poll lookup failed")
			http.Error(w, "Unable to load poll.", http.StatusInternalServerError)
			return
		}

		if active == nil {
			closed, err := s.polls.LastClosed()
			if err != nil {
				http.Error(w, "Unable to load poll.", http.StatusInternalServerError)
				return
			}
			resp := map[string]any{"active": false, "poll": closed}
			if closed != nil {
				results, err := s.polls.Results(closed.ID)
				if err != nil {
					http.Error(w, "Unable to load poll.", http.StatusInternalServerError)
					return
				}
				resp["results"] = topResults(results)
			}
			writeJSON(w, http.StatusOK, resp)
			return
		}

		choices, err := s.polls.Choices(active.ID)
		if err != nil {
			http.Error(w, "Unable to load poll.", http.StatusInternalServerError)
			return
		}
		hasVoted := false
		if data := sessionFrom(r); data != nil {
			hasVoted, err = s.polls.HasVoted(active.ID, data.Email)
			if err != nil {
				http.Error(w, "Unable to load poll.", http.StatusInternalServerError)
				return
			}
		}

		resp := map[string]any{
			"active":    true,
			"poll":      active,
			"choices":   choices,
			"has_voted": hasVoted,
		}
		if hasVoted {
			results, err := s.polls.Results(active.ID)
			if err != nil {
				http.Error(w, "Unable to load poll.", http.StatusInternalServerError)
				return
			}
			resp["results"] = topResults(results)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// OpenPollHandler starts a poll over every backlog game.
func (s *Server) OpenPollHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := sessionFrom(r)

		list, err := s.games.List()
		if err != nil {
			http.Error(w, "Unable to open poll.", http.StatusInternalServerError)
			return
		}
		var gameIDs []int64
		for _, game := range list {
			if game.Status == games.StatusBacklog {
				gameIDs = append(gameIDs, game.ID)
			}
		}
		if len(gameIDs) == 0 {
			http.Error(w, "No backlog games to vote on.", http.StatusBadRequest)
			return
		}

		pollID, err := s.polls.Open(gameIDs)
		if err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				http.Error(w, "Poll already active.", http.StatusConflict)
				return
			}
			s.log.Error().Err(err).Msg("poll open failed")
			http.Error(w, "Unable to open poll.", http.StatusInternalServerError)
			return
		}

		s.audit.Write(data.Email, "poll_open", "poll", formatID(pollID),
			nil, map[string]any{"game_count": len(gameIDs)})
		writeJSON(w, http.StatusCreated, map[string]any{"active": true, "poll_id": pollID})
	}
}

// ClosePollHandler closes the active poll.
func (s *Server) ClosePollHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := sessionFrom(r)

		var body struct {
			Action string `json:"action"`
		}
		if !readJSON(r, &body) || body.Action != "close" {
			http.Error(w, "Unsupported action.", http.StatusBadRequest)
			return
		}
		active, err := s.polls.Active()
		if err != nil {
			http.Error(w, "Unable to close poll.", http.StatusInternalServerError)
			return
		}
		if active == nil {
			http.Error(w, "No active poll.", http.StatusNotFound)
			return
		}
		if err := s.polls.Close(); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				http.Error(w, "No active poll.", http.StatusNotFound)
				return
			}
			s.log.Error().Err(err).Msg("poll close failed")
			http.Error(w, "Unable to close poll.", http.StatusInternalServerError)
			return
		}

		s.audit.Write(data.Email, "poll_close", "poll", formatID(active.ID), nil, nil)
		w.WriteHeader(http.StatusNoContent)
	}
}

// VoteHandler records a ranked ballot of up to MaxChoices distinct games.
func (s *Server) VoteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := sessionFrom(r)

		var body struct {
			Choices []gameID `json:"choices"`
		}
		if !readJSON(r, &body) {
			http.Error(w, "At least one choice is required.", http.StatusBadRequest)
			return
		}
		var choices []int64
		seen := map[int64]bool{}
		for _, choice := range body.Choices {
			id := int64(choice)
			if id == 0 || seen[id] {
				http.Error(w, "Invalid choice.", http.StatusBadRequest)
				return
			}
			seen[id] = true
			choices = append(choices, id)
		}
		if len(choices) == 0 {
			http.Error(w, "At least one choice is required.", http.StatusBadRequest)
			return
		}
		if len(choices) > polls.MaxChoices {
			http.Error(w, "Invalid choice.", http.StatusBadRequest)
			return
		}

		active, err := s.polls.Active()
		if err != nil {
			http.Error(w, "Unable to submit vote.", http.StatusInternalServerError)
			return
		}
		if active == nil {
			http.Error(w, "No active poll.", http.StatusNotFound)
			return
		}

		ballot, err := s.polls.Choices(active.ID)
		if err != nil {
			http.Error(w, "Unable to submit vote.", http.StatusInternalServerError)
			return
		}
		onBallot := map[int64]bool{}
		for _, choice := range ballot {
			onBallot[choice.ID] = true
		}
		for _, id := range choices {
			if !onBallot[id] {
				http.Error(w, "Invalid choice.", http.StatusBadRequest)
				return
			}
		}

		if err := s.polls.CastVote(active.ID, data.Email, choices); err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				http.Error(w, "Vote already submitted.", http.StatusConflict)
				return
			}
			s.log.Error().Err(err).Msg("vote write failed")
			http.Error(w, "Unable to submit vote.", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func topResults(results []*polls.Result) []*polls.Result {
	if results == nil {
		return []*polls.Result{}
	}
	if len(results) > resultsShown {
		return results[:resultsShown]
	}
	return results
}
