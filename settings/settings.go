// Package settings stores small site-wide key/value settings such as the
// next meeting time.
package settings

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// KeyNextMeeting holds the next club meeting as an RFC 3339 timestamp.
const KeyNextMeeting = "next_meeting"

type Repo interface {
	// Get returns the value for key, or "" when unset.
	Get(key string) (string, error)
	// Set upserts key to value and stamps updated_at.
	Set(key, value string) error
}

var _ Repo = (*SQLRepo)(nil)

// SQLRepo is the sqlite-backed settings repository.
type SQLRepo struct {
	db *sqlx.DB
}

func NewSQLRepo(db *sqlx.DB) *SQLRepo {
	return &SQLRepo{db: db}
}

func (r *SQLRepo) Get(key string) (string, error) {
	var value sql.NullString
	err := r.db.Get(&value, "select value from site_settings where key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value.String, nil
}

func (r *SQLRepo) Set(key, value string) error {
	_, err := r.db.Exec(
		"insert into site_settings (key, value, updated_at) values (?, ?, datetime('now')) "+
			"on conflict(key) do update set value = excluded.value, updated_at = datetime('now')",
		key, value)
	return err
}
