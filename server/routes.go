package server

import "net/http"

func (s *Server) initRoutes() {
	// AUTH
	s.RegisterRouteFunc("GET "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.BaseMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAuthCallback, ChainMiddleware(s.CallbackHandler(), s.BaseMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.BaseMiddleware()...))

	// PROFILE
	s.RegisterRouteFunc("GET "+RouteMe, ChainMiddleware(s.MeHandler(), s.SessionMiddleware(s.RequireAuth)...))
	s.RegisterRouteFunc("PATCH "+RouteMe, ChainMiddleware(s.UpdateAliasHandler(), s.SessionMiddleware(s.RequireAuth)...))

	// GAMES
	s.RegisterRouteFunc("GET "+RouteGames, ChainMiddleware(s.ListGamesHandler(), s.SessionMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteGames, ChainMiddleware(s.AddGameHandler(), s.SessionMiddleware(s.RequireAuth)...))
	s.RegisterRouteFunc("GET "+RouteGamesCurrent, ChainMiddleware(s.CurrentGameHandler(), s.BaseMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteGamesRating, ChainMiddleware(s.GetRatingHandler(), s.SessionMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteGamesRating, ChainMiddleware(s.SetRatingHandler(), s.SessionMiddleware(s.RequireAuth)...))
	s.RegisterRouteFunc("POST "+RouteGamesFavorite, ChainMiddleware(s.SetFavoriteHandler(), s.SessionMiddleware(s.RequireAuth)...))
	s.RegisterRouteFunc("POST "+RouteGamesEligibility, ChainMiddleware(s.SetEligibilityHandler(), s.SessionMiddleware(s.RequireAuth)...))
	s.RegisterRouteFunc("GET "+RouteGamesSearch, ChainMiddleware(s.SearchGamesHandler(), s.BaseMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteGamesTTB, ChainMiddleware(s.SetTimeToBeatHandler(), s.SessionMiddleware(s.RequireAuth)...))

	// POLLS
	s.RegisterRouteFunc("GET "+RoutePolls, ChainMiddleware(s.GetPollHandler(), s.SessionMiddleware()...))
	s.RegisterRouteFunc("POST "+RoutePolls, ChainMiddleware(s.OpenPollHandler(), s.SessionMiddleware(s.RequireAuth)...))
	s.RegisterRouteFunc("PATCH "+RoutePolls, ChainMiddleware(s.ClosePollHandler(), s.SessionMiddleware(s.RequireAuth)...))
	s.RegisterRouteFunc("POST "+RoutePollsVote, ChainMiddleware(s.VoteHandler(), s.SessionMiddleware(s.RequireAuth)...))

	// SETTINGS
	s.RegisterRouteFunc("GET "+RouteSiteSettings, ChainMiddleware(s.GetSiteSettingsHandler(), s.BaseMiddleware()...))
	s.RegisterRouteFunc("PATCH "+RouteSiteSettings, ChainMiddleware(s.UpdateSiteSettingsHandler(), s.SessionMiddleware(s.RequireAdmin)...))

	// ADMIN
	s.RegisterRouteFunc("GET "+RouteAdminMembers, ChainMiddleware(s.AdminListMembersHandler(), s.SessionMiddleware(s.RequireAdmin)...))
	s.RegisterRouteFunc("POST "+RouteAdminMembers, ChainMiddleware(s.AdminUpsertMemberHandler(), s.SessionMiddleware(s.RequireAdmin)...))
	s.RegisterRouteFunc("PATCH "+RouteAdminMembers, ChainMiddleware(s.AdminUpdateMemberHandler(), s.SessionMiddleware(s.RequireAdmin)...))
	s.RegisterRouteFunc("DELETE "+RouteAdminMembers, ChainMiddleware(s.AdminDeleteMemberHandler(), s.SessionMiddleware(s.RequireAdmin)...))
	s.RegisterRouteFunc("GET "+RouteAdminAuditLogs, ChainMiddleware(s.AdminAuditLogsHandler(), s.SessionMiddleware(s.RequireAdmin)...))
	s.RegisterRouteFunc("GET "+RouteAdminSummary, ChainMiddleware(s.AdminSummaryHandler(), s.SessionMiddleware(s.RequireAdmin)...))
	s.RegisterRouteFunc("GET "+RouteAdminGames, ChainMiddleware(s.AdminListGamesHandler(), s.SessionMiddleware(s.RequireAdmin)...))
	s.RegisterRouteFunc("PATCH "+RouteAdminGames, ChainMiddleware(s.AdminUpdateGameHandler(), s.SessionMiddleware(s.RequireAdmin)...))
	s.RegisterRouteFunc("DELETE "+RouteAdminGames, ChainMiddleware(s.AdminDeleteGameHandler(), s.SessionMiddleware(s.RequireAdmin)...))
	s.RegisterRouteFunc("GET "+RouteAdminPolls, ChainMiddleware(s.AdminPollHistoryHandler(), s.SessionMiddleware(s.RequireAdmin)...))
	s.RegisterRouteFunc("PATCH "+RouteAdminPolls, ChainMiddleware(s.AdminUpdatePollHandler(), s.SessionMiddleware(s.RequireAdmin)...))
	s.RegisterRouteFunc("DELETE "+RouteAdminPolls, ChainMiddleware(s.AdminDeletePollHandler(), s.SessionMiddleware(s.RequireAdmin)...))
}

// BaseMiddleware is the chain for routes that never read the session.
func (s *Server) BaseMiddleware() []func(http.HandlerFunc) http.HandlerFunc {
	return []func(http.HandlerFunc) http.HandlerFunc{
		s.RequestIDMiddleware,
		s.LoggingMiddleware,
		s.RecoverMiddleware,
	}
}

// SessionMiddleware is BaseMiddleware plus session attachment, with any
// extra guards appended after it.
func (s *Server) SessionMiddleware(mw ...func(http.HandlerFunc) http.HandlerFunc) []func(http.HandlerFunc) http.HandlerFunc {
	chain := append(s.BaseMiddleware(), s.AttachSessionMiddleware)
	return append(chain, mw...)
}
