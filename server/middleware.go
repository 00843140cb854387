package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mruedinger/game-club/members"
	"github.com/mruedinger/game-club/session"
)

type contextKey string

const (
	sessionContextKey   contextKey = "session"
	requestIDContextKey contextKey = "requestID"
)

// ChainMiddleware wraps routeFunction with mw applied left to right.
func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

func (s *Server) RequestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		next(w, r.WithContext(context.WithValue(r.Context(), requestIDContextKey, requestID)))
	}
}

func (s *Server) LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Str("requestId", requestID(r)).
			Msg("request")
	}
}

func (s *Server) RecoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				s.log.Error().
					Interface("panic", recovered).
					Str("path", r.URL.Path).
					Str("requestId", requestID(r)).
					Msg("handler panicked")
				http.Error(w, "Internal server error.", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

// AttachSessionMiddleware resolves the session cookie and stores the
// result in the request context. Any cookie the session manager wants
// written (a refresh or a clear) is appended unconditionally before the
// handler runs, so handler responses cannot drop it.
func (s *Server) AttachSessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, cookie := s.sessions.Read(r)
		if cookie != nil {
			http.SetCookie(w, cookie)
		}
		if data != nil {
			r = r.WithContext(context.WithValue(r.Context(), sessionContextKey, data))
		}
		next(w, r)
	}
}

func (s *Server) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessionFrom(r) == nil {
			http.Error(w, "Authentication required.", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := sessionFrom(r)
		if data == nil {
			http.Error(w, "Authentication required.", http.StatusUnauthorized)
			return
		}
		if data.Role != members.RoleAdmin {
			http.Error(w, "Admin access required.", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

func sessionFrom(r *http.Request) *session.Data {
	data, _ := r.Context().Value(sessionContextKey).(*session.Data)
	return data
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDContextKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
