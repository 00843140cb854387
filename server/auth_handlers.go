package server

import (
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/mruedinger/game-club/internal/errors"
	"github.com/mruedinger/game-club/members"
	"github.com/mruedinger/game-club/session"
)

// LoginHandler starts the Google sign-in flow: it plants the pending
// login cookie and redirects to the provider.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pending, cookie, err := s.flow.Begin(isSecure(r))
		if err != nil {
			s.log.Error().Err(err).Msg("failed to start login flow")
			http.Error(w, "Unable to start sign-in.", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, cookie)
		http.Redirect(w, r, s.google.AuthURL(pending), http.StatusFound)
	}
}

// CallbackHandler completes the sign-in: it validates the returned
// state, exchanges the code, checks membership, and issues the session.
// The code is never exchanged unless the state matches the pending
// login cookie.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secure := isSecure(r)
		query := r.URL.Query()

		if query.Get("error") != "" {
			http.Error(w, "OAuth error: "+query.Get("error"), http.StatusBadRequest)
			return
		}
		code, state := query.Get("code"), query.Get("state")
		if code == "" || state == "" {
			http.Error(w, "Missing OAuth parameters.", http.StatusBadRequest)
			return
		}

		pending, err := s.flow.Validate(r, state)
		if err != nil {
			http.SetCookie(w, s.flow.Clear(secure))
			http.Error(w, "Invalid OAuth state.", http.StatusBadRequest)
			return
		}
		// The pending login is single use regardless of outcome.
		http.SetCookie(w, s.flow.Clear(secure))

		claims, err := s.google.Exchange(r.Context(), code, pending)
		if err != nil {
			s.log.Warn().Err(err).Msg("token exchange failed")
			if isIdentityError(err) {
				http.Error(w, "Authentication failed.", http.StatusForbidden)
			} else {
				http.Error(w, "Authentication failed.", http.StatusInternalServerError)
			}
			return
		}
		if claims.Email == "" || !claims.EmailVerified {
			http.Error(w, "Email not verified.", http.StatusForbidden)
			return
		}

		member, err := s.resolveMember(claims.Email)
		if err != nil {
			s.log.Error().Err(err).Msg("membership lookup failed")
			http.Error(w, "Authentication failed.", http.StatusInternalServerError)
			return
		}
		if member == nil {
			http.Redirect(w, r, LocationAuthDenied, http.StatusFound)
			return
		}

		if err := s.members.UpdateProfile(claims.Email, claims.Name, claims.Picture); err != nil {
			s.log.Warn().Err(err).Msg("profile refresh failed")
		}

		name := member.Name
		if name == "" {
			name = claims.Name
		}
		cookie, err := s.sessions.Issue(session.Data{
			Email:   claims.Email,
			Name:    name,
			Alias:   member.Alias,
			Picture: claims.Picture,
			Role:    member.Role,
		}, secure)
		if err != nil {
			s.log.Error().Err(err).Msg("session issue failed")
			http.Error(w, "Authentication failed.", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, cookie)
		http.Redirect(w, r, LocationHome, http.StatusFound)
	}
}

// LogoutHandler clears the session cookie.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, s.sessions.Clear(isSecure(r)))
		w.WriteHeader(http.StatusNoContent)
	}
}

// resolveMember finds the active member for email. Emails on the
// bootstrap allow-lists are provisioned on first sign-in, so a fresh
// deployment can be administered before any member rows exist. A nil
// member with nil error means access is denied.
func (s *Server) resolveMember(email string) (*members.Member, error) {
	member, err := s.members.GetActive(email)
	if err == nil {
		return member, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	role, allowed := s.bootstrapRole(email)
	if !allowed {
		return nil, nil
	}
	if err := s.members.Upsert(email, role); err != nil {
		return nil, err
	}
	return s.members.GetActive(email)
}

func (s *Server) bootstrapRole(email string) (members.RoleType, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, admin := range s.config.AdminEmails {
		if strings.ToLower(strings.TrimSpace(admin)) == email {
			return members.RoleAdmin, true
		}
	}
	for _, allowed := range s.config.AllowedEmails {
		if strings.ToLower(strings.TrimSpace(allowed)) == email {
			return members.RoleMember, true
		}
	}
	return "", false
}

func isIdentityError(err error) bool {
	return errors.Is(err, apperrors.ErrTokenVerify) ||
		errors.Is(err, apperrors.ErrInvalidIssuer) ||
		errors.Is(err, apperrors.ErrInvalidNonce) ||
		errors.Is(err, apperrors.ErrMissingIDToken)
}
