// Package games holds the club's game backlog: submissions, the single
// current pick, played history, ratings, and favorites.
package games

import "time"

// Status is a game's lifecycle stage.
type Status string

const (
	StatusBacklog Status = "backlog" // submitted, waiting to be picked
	StatusCurrent Status = "current" // the club's active game, at most one
	StatusPlayed  Status = "played"  // finished, kept for history
)

// ValidStatus reports whether status is one of the three stages.
func ValidStatus(status Status) bool {
	return status == StatusBacklog || status == StatusCurrent || status == StatusPlayed
}

// MaxEligiblePerMember caps how many backlog games one member can mark
// poll eligible at the same time.
const MaxEligiblePerMember = 2

// Game is a single entry in the club catalog. PollEligible is tri-state:
// nil for games outside the backlog, where eligibility has no meaning.
type Game struct {
	ID                int64     `json:"id" db:"id"`
	Title             string    `json:"title" db:"title"`
	SubmittedByEmail  string    `json:"submitted_by_email" db:"submitted_by_email"`
	Status            Status    `json:"status" db:"status"`
	PollEligible      *bool     `json:"poll_eligible" db:"poll_eligible"`
	CoverArtURL       string    `json:"cover_art_url,omitempty" db:"cover_art_url"`
	Description       string    `json:"description,omitempty" db:"description"`
	TagsJSON          string    `json:"tags_json,omitempty" db:"tags_json"`
	TimeToBeatMinutes *int      `json:"time_to_beat_minutes,omitempty" db:"time_to_beat_minutes"`
	CurrentPriceCents *int      `json:"current_price_cents,omitempty" db:"current_price_cents"`
	BestPriceCents    *int      `json:"best_price_cents,omitempty" db:"best_price_cents"`
	SteamAppID        *int64    `json:"steam_app_id,omitempty" db:"steam_app_id"`
	ITADGameID        string    `json:"itad_game_id,omitempty" db:"itad_game_id"`
	ITADSlug          string    `json:"itad_slug,omitempty" db:"itad_slug"`
	PlayedMonth       string    `json:"played_month,omitempty" db:"played_month"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// CurrentGame is the active pick joined with its submitter's profile.
type CurrentGame struct {
	Game
	SubmittedByName  string `json:"submitted_by_name,omitempty"`
	SubmittedByAlias string `json:"submitted_by_alias,omitempty"`
}

// Metadata carries the externally sourced fields written after a game is
// added. Nil pointers and empty strings leave the column untouched.
type Metadata struct {
	CoverArtURL       string
	Description       string
	TagsJSON          string
	TimeToBeatMinutes *int
	CurrentPriceCents *int
	BestPriceCents    *int
	SteamAppID        *int64
	ITADGameID        string
	ITADSlug          string
}

// RatingSummary aggregates all ratings for a game. Average is nil when
// nobody has rated yet.
type RatingSummary struct {
	Count   int      `json:"rating_count"`
	Average *float64 `json:"rating_average"`
}

// MemberRating is one member's rating with their public display name.
type MemberRating struct {
	DisplayName string    `json:"member_display_name"`
	Rating      int       `json:"rating"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Repo interface {
	// List returns every game ordered by status then title.
	List() ([]*Game, error)
	// Get returns the game or ErrNotFound.
	Get(id int64) (*Game, error)
	// Add inserts a backlog game and returns its id.
	Add(title, submittedByEmail string) (int64, error)
	// Current returns the active pick with submitter profile, or nil when
	// no game is current.
	Current() (*CurrentGame, error)
	// Update writes the mutable columns of g back to storage.
	Update(g *Game) error
	// UpdateMetadata merges externally fetched fields into the game row.
	UpdateMetadata(id int64, meta Metadata) error
	// DemoteCurrent moves any current game other than exceptID to played,
	// stamping playedMonth unless one is already set.
	DemoteCurrent(exceptID int64, playedMonth string) error
	// Delete removes the game along with its poll references, ratings,
	// and favorites.
	Delete(id int64) error
	// CountEligibleBacklog counts email's poll-eligible backlog games,
	// excluding excludeID.
	CountEligibleBacklog(email string, excludeID int64) (int, error)
	// ListPriceSyncCandidates returns games with a Steam app id whose
	// prices have not been checked in the last day.
	ListPriceSyncCandidates() ([]*Game, error)
	// UpdatePrices writes fresh ITAD identifiers and prices and stamps
	// the price check time.
	UpdatePrices(id int64, itadGameID, itadSlug string, currentCents, bestCents *int) error

	RatingSummary(gameID int64) (*RatingSummary, error)
	// MemberRating returns the member's rating for the game, or nil when
	// they have not rated it.
	MemberRating(gameID int64, email string) (*int, error)
	ListRatings(gameID int64) ([]*MemberRating, error)
	SetRating(gameID int64, email string, rating int) error
	ClearRating(gameID int64, email string) error

	IsFavorite(gameID int64, email string) (bool, error)
	SetFavorite(gameID int64, email string, favorite bool) error
}
