// Package server wires the HTTP API: Google sign-in, sessions, the game
// catalog, polls, and the admin surface.
package server

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mruedinger/game-club/audit"
	"github.com/mruedinger/game-club/auth"
	"github.com/mruedinger/game-club/games"
	"github.com/mruedinger/game-club/internal/config"
	"github.com/mruedinger/game-club/members"
	"github.com/mruedinger/game-club/metadata"
	"github.com/mruedinger/game-club/polls"
	"github.com/mruedinger/game-club/session"
	"github.com/mruedinger/game-club/settings"
)

// OAuthClient is the slice of the Google client the handlers need.
type OAuthClient interface {
	AuthURL(pending *auth.PendingLogin) string
	Exchange(ctx context.Context, code string, pending *auth.PendingLogin) (*auth.Claims, error)
}

// SteamSearcher proxies storefront searches for the add-game flow.
type SteamSearcher interface {
	Search(ctx context.Context, term string) ([]metadata.SearchResult, error)
}

// Enricher fills in external metadata after a game is added.
type Enricher interface {
	Enrich(ctx context.Context, repo games.Repo, gameID int64, title string, steamAppID int64)
}

// Deps carries everything the server needs. Google, Steam, and Enricher
// may be swapped for fakes in tests; Enricher may be nil to disable
// background metadata fetching.
type Deps struct {
	Members  members.Repo
	Games    games.Repo
	Polls    polls.Repo
	Settings settings.Repo
	Audit    *audit.Log
	Sessions *session.Manager
	Flow     *auth.Flow
	Google   OAuthClient
	Steam    SteamSearcher
	Enricher Enricher
}

type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	config config.Config
	log    zerolog.Logger

	members  members.Repo
	games    games.Repo
	polls    polls.Repo
	settings settings.Repo
	audit    *audit.Log
	sessions *session.Manager
	flow     *auth.Flow
	google   OAuthClient
	steam    SteamSearcher
	enricher Enricher
}

func New(cfg config.Config, deps Deps, log zerolog.Logger) *Server {
	s := &Server{
		env:      cfg.Env,
		mux:      http.NewServeMux(),
		config:   cfg,
		log:      log,
		members:  deps.Members,
		games:    deps.Games,
		polls:    deps.Polls,
		settings: deps.Settings,
		audit:    deps.Audit,
		sessions: deps.Sessions,
		flow:     deps.Flow,
		google:   deps.Google,
		steam:    deps.Steam,
		enricher: deps.Enricher,
	}
	s.initRoutes()
	s.logRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		s.log.Debug().Str("route", route).Msg("registered")
	}
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
