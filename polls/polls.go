// Package polls runs the club's game selection polls: one active poll at
// a time, weighted ranked voting, and a closed-poll history.
package polls

import "time"

// Status is a poll's lifecycle stage.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Vote point weights by choice rank.
const (
	FirstChoicePoints  = 3
	SecondChoicePoints = 2
	ThirdChoicePoints  = 1
)

// MaxChoices is the longest ranked ballot a member can submit.
const MaxChoices = 3

// Poll is a selection round over a fixed set of backlog games.
type Poll struct {
	ID           int64      `json:"id" db:"id"`
	Status       Status     `json:"status" db:"status"`
	HistoryValid bool       `json:"history_valid" db:"history_valid"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty" db:"closed_at"`
}

// Choice is a game on the ballot.
type Choice struct {
	ID    int64  `json:"id" db:"id"`
	Title string `json:"title" db:"title"`
}

// Result is a game's weighted score within a poll.
type Result struct {
	GameID int64  `json:"game_id" db:"game_id"`
	Title  string `json:"title" db:"title"`
	Points int    `json:"points" db:"points"`
}

// HistoryEntry is a closed poll summarized for the admin view.
type HistoryEntry struct {
	ID           int64      `json:"id" db:"id"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	ClosedAt     *time.Time `json:"closed_at" db:"closed_at"`
	HistoryValid bool       `json:"history_valid" db:"history_valid"`
	VoterCount   int        `json:"voter_count" db:"voter_count"`
	WinnerTitle  string     `json:"winner_title,omitempty" db:"winner_title"`
}

type Repo interface {
	// Active returns the open poll, or nil when none is running.
	Active() (*Poll, error)
	// LastClosed returns the most recently closed poll, or nil.
	LastClosed() (*Poll, error)
	// Open creates an active poll over gameIDs and returns its id.
	// Returns ErrConflict when a poll is already active.
	Open(gameIDs []int64) (int64, error)
	// Close marks the active poll closed. Returns ErrNotFound when no
	// poll is active.
	Close() error
	// Choices lists the ballot for a poll ordered by title.
	Choices(pollID int64) ([]*Choice, error)
	// HasVoted reports whether email already voted in the poll.
	HasVoted(pollID int64, email string) (bool, error)
	// CastVote records a ranked ballot. Returns ErrConflict on a second
	// vote from the same member.
	CastVote(pollID int64, email string, choices []int64) error
	// Results returns weighted scores for every ballot game, highest
	// first with title as the tiebreak.
	Results(pollID int64) ([]*Result, error)

	// History lists closed polls, most recently closed first.
	History() ([]*HistoryEntry, error)
	// HistoryEntry returns one closed poll, or ErrNotFound.
	HistoryEntry(pollID int64) (*HistoryEntry, error)
	// SetHistoryValid flags whether a closed poll counts in history.
	SetHistoryValid(pollID int64, valid bool) error
	// DeleteClosed removes a closed poll with its ballots and votes.
	DeleteClosed(pollID int64) error
}
