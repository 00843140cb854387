package server

import (
	"net/http"
	"strings"

	"github.com/mruedinger/game-club/session"
)

type identityResponse struct {
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Alias   string `json:"alias,omitempty"`
	Role    string `json:"role"`
	Picture string `json:"picture,omitempty"`
}

func identityFrom(data *session.Data) identityResponse {
	return identityResponse{
		Email:   data.Email,
		Name:    data.Name,
		Alias:   data.Alias,
		Role:    string(data.Role),
		Picture: data.Picture,
	}
}

// MeHandler returns the signed-in member's identity.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, identityFrom(sessionFrom(r)))
	}
}

// UpdateAliasHandler changes the member's display alias and reissues
// the session so the new alias shows immediately.
func (s *Server) UpdateAliasHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := sessionFrom(r)

		var body struct {
			Alias *string `json:"alias"`
		}
		if !readJSON(r, &body) || body.Alias == nil {
			http.Error(w, "Alias is required.", http.StatusBadRequest)
			return
		}
		alias := strings.TrimSpace(*body.Alias)

		if err := s.members.SetAlias(data.Email, alias); err != nil {
			s.log.Error().Err(err).Msg("alias update failed")
			http.Error(w, "Unable to update alias.", http.StatusInternalServerError)
			return
		}

		updated := *data
		updated.Alias = alias
		cookie, err := s.sessions.Issue(updated, isSecure(r))
		if err != nil {
			s.log.Error().Err(err).Msg("session reissue failed")
			http.Error(w, "Unable to update alias.", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, cookie)
		w.WriteHeader(http.StatusNoContent)
	}
}
