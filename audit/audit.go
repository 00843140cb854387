// Package audit records admin and member actions for later review.
// Writes are fire-and-forget: a failed audit insert is logged but never
// fails the request that triggered it.
package audit

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// Entry is one recorded action with optional before/after snapshots.
type Entry struct {
	ID         int64     `json:"id" db:"id"`
	ActorEmail string    `json:"actor_email" db:"actor_email"`
	Action     string    `json:"action" db:"action"`
	EntityType string    `json:"entity_type" db:"entity_type"`
	EntityID   string    `json:"entity_id" db:"entity_id"`
	BeforeJSON string    `json:"before_json,omitempty" db:"before_json"`
	AfterJSON  string    `json:"after_json,omitempty" db:"after_json"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ListLimit caps how many entries the admin view returns.
const ListLimit = 200

type Repo interface {
	Insert(actorEmail, action, entityType, entityID string, beforeJSON, afterJSON *string) error
	// Latest returns up to ListLimit entries, newest first.
	Latest() ([]*Entry, error)
}

// Log writes audit entries through repo. Before and after are marshalled
// to JSON; nil values record as null.
type Log struct {
	repo Repo
	log  zerolog.Logger
}

func NewLog(repo Repo, log zerolog.Logger) *Log {
	return &Log{repo: repo, log: log}
}

// Write records an action. Marshal or insert failures are logged and
// swallowed.
func (l *Log) Write(actorEmail, action, entityType, entityID string, before, after any) {
	if actorEmail == "" {
		return
	}
	err := l.repo.Insert(strings.ToLower(actorEmail), action, entityType, entityID,
		marshal(before), marshal(after))
	if err != nil {
		l.log.Error().Err(err).
			Str("action", action).
			Str("entityType", entityType).
			Str("entityId", entityID).
			Msg("audit write failed")
	}
}

// Latest returns the newest recorded entries for the admin view.
func (l *Log) Latest() ([]*Entry, error) {
	return l.repo.Latest()
}

func marshal(value any) *string {
	if value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	encoded := string(data)
	return &encoded
}

var _ Repo = (*SQLRepo)(nil)

// SQLRepo is the sqlite-backed audit repository.
type SQLRepo struct {
	db *sqlx.DB
}

func NewSQLRepo(db *sqlx.DB) *SQLRepo {
	return &SQLRepo{db: db}
}

func (r *SQLRepo) Insert(actorEmail, action, entityType, entityID string, beforeJSON, afterJSON *string) error {
	_, err := r.db.Exec(
		"insert into audit_logs (actor_email, action, entity_type, entity_id, before_json, after_json) "+
			"values (?, ?, ?, ?, ?, ?)",
		actorEmail, action, entityType, entityID, beforeJSON, afterJSON)
	return err
}

func (r *SQLRepo) Latest() ([]*Entry, error) {
	var rows []struct {
		ID         int64          `db:"id"`
		ActorEmail string         `db:"actor_email"`
		Action     string         `db:"action"`
		EntityType string         `db:"entity_type"`
		EntityID   sql.NullString `db:"entity_id"`
		BeforeJSON sql.NullString `db:"before_json"`
		AfterJSON  sql.NullString `db:"after_json"`
		CreatedAt  sql.NullTime   `db:"created_at"`
	}
	err := r.db.Select(&rows,
		"select id, actor_email, action, entity_type, entity_id, before_json, after_json, created_at "+
			"from audit_logs order by created_at desc, id desc limit ?", ListLimit)
	if err != nil {
		return nil, err
	}
	list := make([]*Entry, 0, len(rows))
	for _, row := range rows {
		entry := &Entry{
			ID:         row.ID,
			ActorEmail: row.ActorEmail,
			Action:     row.Action,
			EntityType: row.EntityType,
			EntityID:   row.EntityID.String,
			BeforeJSON: row.BeforeJSON.String,
			AfterJSON:  row.AfterJSON.String,
		}
		if row.CreatedAt.Valid {
			entry.CreatedAt = row.CreatedAt.Time
		}
		list = append(list, entry)
	}
	return list, nil
}
