package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteAuthLogin    = "/api/auth/login"
	RouteAuthCallback = "/api/auth/callback"
	RouteAuthLogout   = "/api/auth/logout"

	// Profile Routes
	RouteMe = "/api/me"

	// Game Routes
	RouteGames            = "/api/games"
	RouteGamesCurrent     = "/api/games/current"
	RouteGamesRating      = "/api/games/rating"
	RouteGamesFavorite    = "/api/games/favorite"
	RouteGamesEligibility = "/api/games/eligibility"
	RouteGamesSearch      = "/api/games/search"
	RouteGamesTTB         = "/api/games/ttb"

	// Poll Routes
	RoutePolls     = "/api/polls"
	RoutePollsVote = "/api/polls/vote"

	// Settings Routes
	RouteSiteSettings = "/api/site-settings"

	// Admin Routes
	RouteAdminMembers   = "/api/admin/members"
	RouteAdminAuditLogs = "/api/admin/audit-logs"
	RouteAdminSummary   = "/api/admin/summary"
	RouteAdminGames     = "/api/admin/games"
	RouteAdminPolls     = "/api/admin/polls"

	// Redirect targets
	LocationHome       = "/"
	LocationAuthDenied = "/auth/denied"
)
