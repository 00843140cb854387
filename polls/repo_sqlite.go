package polls

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/mruedinger/game-club/internal/errors"
)

var _ Repo = (*SQLRepo)(nil)

// SQLRepo is the sqlite-backed poll repository.
type SQLRepo struct {
	db *sqlx.DB
}

func NewSQLRepo(db *sqlx.DB) *SQLRepo {
	return &SQLRepo{db: db}
}

type pollRow struct {
	ID           int64        `db:"id"`
	Status       string       `db:"status"`
	HistoryValid int          `db:"history_valid"`
	StartedAt    sql.NullTime `db:"started_at"`
	ClosedAt     sql.NullTime `db:"closed_at"`
}

func (r pollRow) poll() *Poll {
	p := &Poll{
		ID:           r.ID,
		Status:       Status(r.Status),
		HistoryValid: r.HistoryValid == 1,
	}
	if r.StartedAt.Valid {
		p.StartedAt = r.StartedAt.Time
	}
	if r.ClosedAt.Valid {
		closed := r.ClosedAt.Time
		p.ClosedAt = &closed
	}
	return p
}

func (r *SQLRepo) Active() (*Poll, error) {
	var row pollRow
	err := r.db.Get(&row,
		"select id, status, history_valid, started_at, closed_at from polls where status = 'active' limit 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.poll(), nil
}

func (r *SQLRepo) LastClosed() (*Poll, error) {
	var row pollRow
	err := r.db.Get(&row,
		"select id, status, history_valid, started_at, closed_at from polls "+
			"where status = 'closed' order by closed_at desc limit 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.poll(), nil
}

func (r *SQLRepo) Open(gameIDs []int64) (int64, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var existing int
	if err := tx.Get(&existing, "select count(*) from polls where status = 'active'"); err != nil {
		return 0, err
	}
	if existing > 0 {
		return 0, apperrors.ErrConflict
	}

	result, err := tx.Exec("insert into polls (status) values ('active')")
	if err != nil {
		return 0, err
	}
	pollID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, gameID := range gameIDs {
		if _, err := tx.Exec("insert into poll_games (poll_id, game_id) values (?, ?)", pollID, gameID); err != nil {
			return 0, err
		}
	}
	return pollID, tx.Commit()
}

func (r *SQLRepo) Close() error {
	result, err := r.db.Exec(
		"update polls set status = 'closed', closed_at = datetime('now') where status = 'active'")
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *SQLRepo) Choices(pollID int64) ([]*Choice, error) {
	var choices []*Choice
	err := r.db.Select(&choices,
		"select games.id, games.title from poll_games "+
			"join games on games.id = poll_games.game_id "+
			"where poll_games.poll_id = ? order by games.title asc",
		pollID)
	return choices, err
}

func (r *SQLRepo) HasVoted(pollID int64, email string) (bool, error) {
	var count int
	err := r.db.Get(&count,
		"select count(*) from poll_votes where poll_id = ? and voter_email = ?",
		pollID, normalizeEmail(email))
	return count > 0, err
}

func (r *SQLRepo) CastVote(pollID int64, email string, choices []int64) error {
	args := []any{pollID, normalizeEmail(email), nil, nil, nil}
	for i, choice := range choices {
		if i >= MaxChoices {
			break
		}
		args[2+i] = choice
	}
	_, err := r.db.Exec(
		"insert into poll_votes (poll_id, voter_email, choice_1, choice_2, choice_3) values (?, ?, ?, ?, ?)",
		args...)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return apperrors.ErrConflict
	}
	return err
}

const resultsQuery = "select games.id as game_id, games.title as title, " +
	"coalesce(sum(case when poll_votes.choice_1 = games.id then 3 else 0 end + " +
	"case when poll_votes.choice_2 = games.id then 2 else 0 end + " +
	"case when poll_votes.choice_3 = games.id then 1 else 0 end), 0) as points " +
	"from poll_games " +
	"join games on games.id = poll_games.game_id " +
	"left join poll_votes on poll_votes.poll_id = poll_games.poll_id " +
	"where poll_games.poll_id = ? " +
	"group by games.id " +
	"order by points desc, games.title asc"

func (r *SQLRepo) Results(pollID int64) ([]*Result, error) {
	var results []*Result
	err := r.db.Select(&results, resultsQuery, pollID)
	return results, err
}

const historyColumns = "polls.id, polls.started_at, polls.closed_at, polls.history_valid, " +
	"(select count(distinct poll_votes.voter_email) from poll_votes where poll_votes.poll_id = polls.id) as voter_count, " +
	"coalesce((select games.title " +
	"from poll_games " +
	"join games on games.id = poll_games.game_id " +
	"left join poll_votes on poll_votes.poll_id = poll_games.poll_id " +
	"where poll_games.poll_id = polls.id " +
	"group by games.id " +
	"order by sum(case when poll_votes.choice_1 = games.id then 3 else 0 end + " +
	"case when poll_votes.choice_2 = games.id then 2 else 0 end + " +
	"case when poll_votes.choice_3 = games.id then 1 else 0 end) desc, games.title asc " +
	"limit 1), '') as winner_title"

type historyRow struct {
	ID           int64        `db:"id"`
	StartedAt    sql.NullTime `db:"started_at"`
	ClosedAt     sql.NullTime `db:"closed_at"`
	HistoryValid int          `db:"history_valid"`
	VoterCount   int          `db:"voter_count"`
	WinnerTitle  string       `db:"winner_title"`
}

func (r historyRow) entry() *HistoryEntry {
	e := &HistoryEntry{
		ID:           r.ID,
		HistoryValid: r.HistoryValid == 1,
		VoterCount:   r.VoterCount,
		WinnerTitle:  r.WinnerTitle,
	}
	if r.StartedAt.Valid {
		e.StartedAt = r.StartedAt.Time
	}
	if r.ClosedAt.Valid {
		closed := r.ClosedAt.Time
		e.ClosedAt = &closed
	}
	return e
}

func (r *SQLRepo) History() ([]*HistoryEntry, error) {
	var rows []historyRow
	err := r.db.Select(&rows,
		"select "+historyColumns+" from polls where polls.status = 'closed' "+
			"order by polls.closed_at desc, polls.id desc")
	if err != nil {
		return nil, err
	}
	list := make([]*HistoryEntry, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.entry())
	}
	return list, nil
}

func (r *SQLRepo) HistoryEntry(pollID int64) (*HistoryEntry, error) {
	var row historyRow
	err := r.db.Get(&row,
		"select "+historyColumns+" from polls where polls.id = ? and polls.status = 'closed' limit 1",
		pollID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.entry(), nil
}

func (r *SQLRepo) SetHistoryValid(pollID int64, valid bool) error {
	value := 0
	if valid {
		value = 1
	}
	_, err := r.db.Exec(
		"update polls set history_valid = ? where id = ? and status = 'closed'", value, pollID)
	return err
}

func (r *SQLRepo) DeleteClosed(pollID int64) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("delete from poll_votes where poll_id = ?", pollID); err != nil {
		return err
	}
	if _, err := tx.Exec("delete from poll_games where poll_id = ?", pollID); err != nil {
		return err
	}
	if _, err := tx.Exec("delete from polls where id = ? and status = 'closed'", pollID); err != nil {
		return err
	}
	return tx.Commit()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
