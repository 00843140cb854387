package members

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/mruedinger/game-club/internal/errors"
)

var _ Repo = (*SQLRepo)(nil)

// SQLRepo is the sqlite-backed member repository.
type SQLRepo struct {
	db *sqlx.DB
}

func NewSQLRepo(db *sqlx.DB) *SQLRepo {
	return &SQLRepo{db: db}
}

type memberRow struct {
	Email     string         `db:"email"`
	Name      sql.NullString `db:"name"`
	Alias     sql.NullString `db:"alias"`
	Picture   sql.NullString `db:"picture"`
	Role      string         `db:"role"`
	Active    int            `db:"active"`
	CreatedAt sql.NullTime   `db:"created_at"`
}

func (r memberRow) member() *Member {
	m := &Member{
		Email:   r.Email,
		Name:    r.Name.String,
		Alias:   r.Alias.String,
		Picture: r.Picture.String,
		Role:    RoleType(r.Role),
		Active:  r.Active == 1,
	}
	if r.CreatedAt.Valid {
		m.CreatedAt = r.CreatedAt.Time
	}
	return m
}

func (r *SQLRepo) GetActive(email string) (*Member, error) {
	var row memberRow
	err := r.db.Get(&row,
		"select email, name, alias, picture, role, active, created_at from members where email = ? and active = 1",
		normalize(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.member(), nil
}

func (r *SQLRepo) Get(email string) (*Member, error) {
	var row memberRow
	err := r.db.Get(&row,
		"select email, name, alias, picture, role, active, created_at from members where email = ?",
		normalize(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.member(), nil
}

func (r *SQLRepo) List() ([]*Member, error) {
	var rows []memberRow
	err := r.db.Select(&rows,
		"select email, name, alias, picture, role, active, created_at from members order by active desc, email asc")
	if err != nil {
		return nil, err
	}
	list := make([]*Member, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.member())
	}
	return list, nil
}

func (r *SQLRepo) Upsert(email string, role RoleType) error {
	_, err := r.db.Exec(
		"insert into members (email, name, alias, role, active) values (?, null, null, ?, 1) "+
			"on conflict(email) do update set role = excluded.role, active = 1",
		normalize(email), string(role))
	return err
}

func (r *SQLRepo) UpdateProfile(email, name, picture string) error {
	if name == "" && picture == "" {
		return nil
	}
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if name != "" {
		sets = append(sets, "name = ?")
		args = append(args, name)
	}
	if picture != "" {
		sets = append(sets, "picture = ?")
		args = append(args, picture)
	}
	args = append(args, normalize(email))
	_, err := r.db.Exec("update members set "+strings.Join(sets, ", ")+" where email = ?", args...)
	return err
}

func (r *SQLRepo) SetAlias(email, alias string) error {
	value := sql.NullString{String: alias, Valid: alias != ""}
	_, err := r.db.Exec("update members set alias = ? where email = ?", value, normalize(email))
	return err
}

func (r *SQLRepo) SetRole(email string, role RoleType) error {
	_, err := r.db.Exec("update members set role = ? where email = ?", string(role), normalize(email))
	return err
}

func (r *SQLRepo) Delete(email string) error {
	_, err := r.db.Exec("delete from members where email = ?", normalize(email))
	return err
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
