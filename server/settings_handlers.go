package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/mruedinger/game-club/settings"
)

// nextMeetingFormats are the timestamp layouts accepted for the next
// meeting setting. Clients send the datetime-local form.
var nextMeetingFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// GetSiteSettingsHandler returns the public site settings.
func (s *Server) GetSiteSettingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value, err := s.settings.Get(settings.KeyNextMeeting)
		if err != nil {
			s.log.Error().Err(err).Msg("site settings lookup failed")
			http.Error(w, "Unable to load site settings.", http.StatusInternalServerError)
			return
		}
		resp := map[string]any{"next_meeting": nil}
		if value != "" {
			resp["next_meeting"] = value
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// UpdateSiteSettingsHandler sets the next meeting time.
func (s *Server) UpdateSiteSettingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := sessionFrom(r)

		var body struct {
			NextMeeting string `json:"next_meeting"`
		}
		if !readJSON(r, &body) {
			http.Error(w, "A valid next meeting time is required.", http.StatusBadRequest)
			return
		}
		value := strings.TrimSpace(body.NextMeeting)
		if !validMeetingTime(value) {
			http.Error(w, "A valid next meeting time is required.", http.StatusBadRequest)
			return
		}

		before, err := s.settings.Get(settings.KeyNextMeeting)
		if err != nil {
			http.Error(w, "Unable to update site settings.", http.StatusInternalServerError)
			return
		}
		if err := s.settings.Set(settings.KeyNextMeeting, value); err != nil {
			s.log.Error().Err(err).Msg("site settings write failed")
			http.Error(w, "Unable to update site settings.", http.StatusInternalServerError)
			return
		}

		s.audit.Write(data.Email, "update_next_meeting", "site_setting", settings.KeyNextMeeting,
			map[string]any{"next_meeting": before}, map[string]any{"next_meeting": value})
		w.WriteHeader(http.StatusNoContent)
	}
}

func validMeetingTime(value string) bool {
	if value == "" {
		return false
	}
	for _, layout := range nextMeetingFormats {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}
