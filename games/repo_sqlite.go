package games

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/mruedinger/game-club/internal/errors"
)

var _ Repo = (*SQLRepo)(nil)

// SQLRepo is the sqlite-backed game repository.
type SQLRepo struct {
	db *sqlx.DB
}

func NewSQLRepo(db *sqlx.DB) *SQLRepo {
	return &SQLRepo{db: db}
}

const gameColumns = "id, title, submitted_by_email, status, poll_eligible, cover_art_url, description, " +
	"tags_json, time_to_beat_minutes, current_price_cents, best_price_cents, steam_app_id, " +
	"itad_game_id, itad_slug, played_month, created_at"

type gameRow struct {
	ID                int64          `db:"id"`
	Title             string         `db:"title"`
	SubmittedByEmail  string         `db:"submitted_by_email"`
	Status            string         `db:"status"`
	PollEligible      sql.NullInt64  `db:"poll_eligible"`
	CoverArtURL       sql.NullString `db:"cover_art_url"`
	Description       sql.NullString `db:"description"`
	TagsJSON          sql.NullString `db:"tags_json"`
	TimeToBeatMinutes sql.NullInt64  `db:"time_to_beat_minutes"`
	CurrentPriceCents sql.NullInt64  `db:"current_price_cents"`
	BestPriceCents    sql.NullInt64  `db:"best_price_cents"`
	SteamAppID        sql.NullInt64  `db:"steam_app_id"`
	ITADGameID        sql.NullString `db:"itad_game_id"`
	ITADSlug          sql.NullString `db:"itad_slug"`
	PlayedMonth       sql.NullString `db:"played_month"`
	CreatedAt         sql.NullTime   `db:"created_at"`
}

func (r gameRow) game() *Game {
	g := &Game{
		ID:               r.ID,
		Title:            r.Title,
		SubmittedByEmail: r.SubmittedByEmail,
		Status:           Status(r.Status),
		CoverArtURL:      r.CoverArtURL.String,
		Description:      r.Description.String,
		TagsJSON:         r.TagsJSON.String,
		ITADGameID:       r.ITADGameID.String,
		ITADSlug:         r.ITADSlug.String,
		PlayedMonth:      r.PlayedMonth.String,
	}
	if r.PollEligible.Valid {
		eligible := r.PollEligible.Int64 == 1
		g.PollEligible = &eligible
	}
	if r.TimeToBeatMinutes.Valid {
		minutes := int(r.TimeToBeatMinutes.Int64)
		g.TimeToBeatMinutes = &minutes
	}
	if r.CurrentPriceCents.Valid {
		cents := int(r.CurrentPriceCents.Int64)
		g.CurrentPriceCents = &cents
	}
	if r.BestPriceCents.Valid {
		cents := int(r.BestPriceCents.Int64)
		g.BestPriceCents = &cents
	}
	if r.SteamAppID.Valid {
		appID := r.SteamAppID.Int64
		g.SteamAppID = &appID
	}
	if r.CreatedAt.Valid {
		g.CreatedAt = r.CreatedAt.Time
	}
	return g
}

func (r *SQLRepo) List() ([]*Game, error) {
	var rows []gameRow
	err := r.db.Select(&rows, "select "+gameColumns+" from games order by status asc, title asc")
	if err != nil {
		return nil, err
	}
	list := make([]*Game, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.game())
	}
	return list, nil
}

func (r *SQLRepo) Get(id int64) (*Game, error) {
	var row gameRow
	err := r.db.Get(&row, "select "+gameColumns+" from games where id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.game(), nil
}

func (r *SQLRepo) Add(title, submittedByEmail string) (int64, error) {
	result, err := r.db.Exec(
		"insert into games (title, submitted_by_email, status) values (?, ?, 'backlog')",
		title, normalizeEmail(submittedByEmail))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (r *SQLRepo) Current() (*CurrentGame, error) {
	var row struct {
		gameRow
		SubmittedByName  sql.NullString `db:"submitted_by_name"`
		SubmittedByAlias sql.NullString `db:"submitted_by_alias"`
	}
	err := r.db.Get(&row,
		"select games.id, games.title, games.submitted_by_email, games.status, games.poll_eligible, "+
			"games.cover_art_url, games.description, games.tags_json, games.time_to_beat_minutes, "+
			"games.current_price_cents, games.best_price_cents, games.steam_app_id, games.itad_game_id, "+
			"games.itad_slug, games.played_month, games.created_at, "+
			"members.name as submitted_by_name, members.alias as submitted_by_alias "+
			"from games left join members on members.email = games.submitted_by_email "+
			"where games.status = 'current' limit 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &CurrentGame{
		Game:             *row.gameRow.game(),
		SubmittedByName:  row.SubmittedByName.String,
		SubmittedByAlias: row.SubmittedByAlias.String,
	}, nil
}

func (r *SQLRepo) Update(g *Game) error {
	_, err := r.db.Exec(
		"update games set submitted_by_email = ?, status = ?, poll_eligible = ?, played_month = ?, "+
			"time_to_beat_minutes = ?, tags_json = ? where id = ?",
		normalizeEmail(g.SubmittedByEmail), string(g.Status), boolColumn(g.PollEligible),
		textColumn(g.PlayedMonth), intColumn(g.TimeToBeatMinutes), textColumn(g.TagsJSON), g.ID)
	return err
}

func (r *SQLRepo) UpdateMetadata(id int64, meta Metadata) error {
	sets := make([]string, 0, 9)
	args := make([]any, 0, 10)
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if meta.CoverArtURL != "" {
		add("cover_art_url", meta.CoverArtURL)
	}
	if meta.Description != "" {
		add("description", meta.Description)
	}
	if meta.TagsJSON != "" {
		add("tags_json", meta.TagsJSON)
	}
	if meta.TimeToBeatMinutes != nil {
		add("time_to_beat_minutes", *meta.TimeToBeatMinutes)
	}
	if meta.CurrentPriceCents != nil {
		add("current_price_cents", *meta.CurrentPriceCents)
	}
	if meta.BestPriceCents != nil {
		add("best_price_cents", *meta.BestPriceCents)
	}
	if meta.SteamAppID != nil {
		add("steam_app_id", *meta.SteamAppID)
	}
	if meta.ITADGameID != "" {
		add("itad_game_id", meta.ITADGameID)
	}
	if meta.ITADSlug != "" {
		add("itad_slug", meta.ITADSlug)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := r.db.Exec("update games set "+strings.Join(sets, ", ")+" where id = ?", args...)
	return err
}

func (r *SQLRepo) DemoteCurrent(exceptID int64, playedMonth string) error {
	_, err := r.db.Exec(
		"update games set status = 'played', poll_eligible = null, "+
			"played_month = coalesce(played_month, ?) where status = 'current' and id != ?",
		playedMonth, exceptID)
	return err
}

func (r *SQLRepo) Delete(id int64) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	statements := []string{
		"delete from poll_votes where choice_1 = ? or choice_2 = ? or choice_3 = ?",
		"delete from poll_games where game_id = ?",
		"delete from game_ratings where game_id = ?",
		"delete from game_favorites where game_id = ?",
		"delete from games where id = ?",
	}
	args := [][]any{{id, id, id}, {id}, {id}, {id}, {id}}
	for i, stmt := range statements {
		if _, err := tx.Exec(stmt, args[i]...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLRepo) CountEligibleBacklog(email string, excludeID int64) (int, error) {
	var count int
	err := r.db.Get(&count,
		"select count(*) from games where submitted_by_email = ? and status = 'backlog' "+
			"and poll_eligible = 1 and id != ?",
		normalizeEmail(email), excludeID)
	return count, err
}

func (r *SQLRepo) ListPriceSyncCandidates() ([]*Game, error) {
	var rows []gameRow
	err := r.db.Select(&rows,
		"select "+gameColumns+" from games where steam_app_id is not null "+
			"and (price_checked_at is null or datetime(price_checked_at) < datetime('now', '-1 day'))")
	if err != nil {
		return nil, err
	}
	list := make([]*Game, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.game())
	}
	return list, nil
}

func (r *SQLRepo) UpdatePrices(id int64, itadGameID, itadSlug string, currentCents, bestCents *int) error {
	_, err := r.db.Exec(
		"update games set itad_game_id = ?, itad_slug = ?, current_price_cents = ?, "+
			"best_price_cents = ?, price_checked_at = datetime('now') where id = ?",
		textColumn(itadGameID), textColumn(itadSlug), intColumn(currentCents), intColumn(bestCents), id)
	return err
}

func (r *SQLRepo) RatingSummary(gameID int64) (*RatingSummary, error) {
	var row struct {
		Count   int             `db:"rating_count"`
		Average sql.NullFloat64 `db:"rating_average"`
	}
	err := r.db.Get(&row,
		"select count(*) as rating_count, avg(rating) as rating_average from game_ratings where game_id = ?",
		gameID)
	if err != nil {
		return nil, err
	}
	summary := &RatingSummary{Count: row.Count}
	if row.Average.Valid {
		summary.Average = &row.Average.Float64
	}
	return summary, nil
}

func (r *SQLRepo) MemberRating(gameID int64, email string) (*int, error) {
	var rating int
	err := r.db.Get(&rating,
		"select rating from game_ratings where game_id = ? and member_email = ?",
		gameID, normalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

func (r *SQLRepo) ListRatings(gameID int64) ([]*MemberRating, error) {
	var rows []struct {
		DisplayName string       `db:"member_display_name"`
		Rating      int          `db:"rating"`
		CreatedAt   sql.NullTime `db:"created_at"`
		UpdatedAt   sql.NullTime `db:"updated_at"`
	}
	// Alias wins; otherwise the first word of the member's name.
	err := r.db.Select(&rows,
		"select coalesce(nullif(trim(members.alias), ''), "+
			"nullif(trim(substr(members.name, 1, instr(members.name || ' ', ' ') - 1)), ''), 'Member') as member_display_name, "+
			"game_ratings.rating, game_ratings.created_at, game_ratings.updated_at "+
			"from game_ratings left join members on members.email = game_ratings.member_email "+
			"where game_ratings.game_id = ? "+
			"order by game_ratings.rating desc, member_display_name asc, game_ratings.updated_at desc",
		gameID)
	if err != nil {
		return nil, err
	}
	list := make([]*MemberRating, 0, len(rows))
	for _, row := range rows {
		rating := &MemberRating{DisplayName: row.DisplayName, Rating: row.Rating}
		if row.CreatedAt.Valid {
			rating.CreatedAt = row.CreatedAt.Time
		}
		if row.UpdatedAt.Valid {
			rating.UpdatedAt = row.UpdatedAt.Time
		}
		list = append(list, rating)
	}
	return list, nil
}

func (r *SQLRepo) SetRating(gameID int64, email string, rating int) error {
	_, err := r.db.Exec(
		"insert into game_ratings (game_id, member_email, rating) values (?, ?, ?) "+
			"on conflict(game_id, member_email) do update set rating = excluded.rating, updated_at = datetime('now')",
		gameID, normalizeEmail(email), rating)
	return err
}

func (r *SQLRepo) ClearRating(gameID int64, email string) error {
	_, err := r.db.Exec("delete from game_ratings where game_id = ? and member_email = ?",
		gameID, normalizeEmail(email))
	return err
}

func (r *SQLRepo) IsFavorite(gameID int64, email string) (bool, error) {
	var count int
	err := r.db.Get(&count,
		"select count(*) from game_favorites where game_id = ? and member_email = ?",
		gameID, normalizeEmail(email))
	return count > 0, err
}

func (r *SQLRepo) SetFavorite(gameID int64, email string, favorite bool) error {
	if favorite {
		_, err := r.db.Exec(
			"insert into game_favorites (game_id, member_email) values (?, ?) "+
				"on conflict(game_id, member_email) do nothing",
			gameID, normalizeEmail(email))
		return err
	}
	_, err := r.db.Exec("delete from game_favorites where game_id = ? and member_email = ?",
		gameID, normalizeEmail(email))
	return err
}

func boolColumn(value *bool) any {
	if value == nil {
		return nil
	}
	if *value {
		return 1
	}
	return 0
}

func intColumn(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func textColumn(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
