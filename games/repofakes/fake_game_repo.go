package repofakes

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mruedinger/game-club/games"
	apperrors "github.com/mruedinger/game-club/internal/errors"
)

var _ games.Repo = (*FakeGameRepo)(nil)

type ratingEntry struct {
	email     string
	rating    int
	createdAt time.Time
	updatedAt time.Time
}

// FakeGameRepo is a thread-safe in-memory game repository for tests.
// Display names for ratings resolve through the Profiles map keyed by
// member email.
type FakeGameRepo struct {
	lock      sync.RWMutex
	nextID    int64
	gameList  map[int64]*games.Game
	ratings   map[int64][]ratingEntry
	favorites map[int64]map[string]bool

	// Profiles maps member email to the display name used in rating
	// listings.
	Profiles map[string]string
}

func NewFakeGameRepo() *FakeGameRepo {
	return &FakeGameRepo{
		nextID:    1,
		gameList:  make(map[int64]*games.Game),
		ratings:   make(map[int64][]ratingEntry),
		favorites: make(map[int64]map[string]bool),
		Profiles:  make(map[string]string),
	}
}

// Put stores a game verbatim, assigning an id when none is set.
func (r *FakeGameRepo) Put(g games.Game) int64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	if g.ID == 0 {
		g.ID = r.nextID
	}
	if g.ID >= r.nextID {
		r.nextID = g.ID + 1
	}
	r.gameList[g.ID] = &g
	return g.ID
}

func (r *FakeGameRepo) List() ([]*games.Game, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	list := make([]*games.Game, 0, len(r.gameList))
	for _, g := range r.gameList {
		copied := *g
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Status != list[j].Status {
			return list[i].Status < list[j].Status
		}
		return list[i].Title < list[j].Title
	})
	return list, nil
}

func (r *FakeGameRepo) Get(id int64) (*games.Game, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	g, ok := r.gameList[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *g
	return &copied, nil
}

func (r *FakeGameRepo) Add(title, submittedByEmail string) (int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	id := r.nextID
	r.nextID++
	r.gameList[id] = &games.Game{
		ID:               id,
		Title:            title,
		SubmittedByEmail: normalize(submittedByEmail),
		Status:           games.StatusBacklog,
		CreatedAt:        time.Now(),
	}
	return id, nil
}

func (r *FakeGameRepo) Current() (*games.CurrentGame, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, g := range r.gameList {
		if g.Status == games.StatusCurrent {
			copied := *g
			return &games.CurrentGame{
				Game:            copied,
				SubmittedByName: r.Profiles[g.SubmittedByEmail],
			}, nil
		}
	}
	return nil, nil
}

func (r *FakeGameRepo) Update(g *games.Game) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	existing, ok := r.gameList[g.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	existing.SubmittedByEmail = normalize(g.SubmittedByEmail)
	existing.Status = g.Status
	existing.PollEligible = copyBool(g.PollEligible)
	existing.PlayedMonth = g.PlayedMonth
	existing.TimeToBeatMinutes = copyInt(g.TimeToBeatMinutes)
	existing.TagsJSON = g.TagsJSON
	return nil
}

func (r *FakeGameRepo) UpdateMetadata(id int64, meta games.Metadata) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	g, ok := r.gameList[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if meta.CoverArtURL != "" {
		g.CoverArtURL = meta.CoverArtURL
	}
	if meta.Description != "" {
		g.Description = meta.Description
	}
	if meta.TagsJSON != "" {
		g.TagsJSON = meta.TagsJSON
	}
	if meta.TimeToBeatMinutes != nil {
		g.TimeToBeatMinutes = copyInt(meta.TimeToBeatMinutes)
	}
	if meta.CurrentPriceCents != nil {
		g.CurrentPriceCents = copyInt(meta.CurrentPriceCents)
	}
	if meta.BestPriceCents != nil {
		g.BestPriceCents = copyInt(meta.BestPriceCents)
	}
	if meta.SteamAppID != nil {
		appID := *meta.SteamAppID
		g.SteamAppID = &appID
	}
	if meta.ITADGameID != "" {
		g.ITADGameID = meta.ITADGameID
	}
	if meta.ITADSlug != "" {
		g.ITADSlug = meta.ITADSlug
	}
	return nil
}

func (r *FakeGameRepo) DemoteCurrent(exceptID int64, playedMonth string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, g := range r.gameList {
		if g.Status == games.StatusCurrent && g.ID != exceptID {
			g.Status = games.StatusPlayed
			g.PollEligible = nil
			if g.PlayedMonth == "" {
				g.PlayedMonth = playedMonth
			}
		}
	}
	return nil
}

func (r *FakeGameRepo) Delete(id int64) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.gameList, id)
	delete(r.ratings, id)
	delete(r.favorites, id)
	return nil
}

func (r *FakeGameRepo) CountEligibleBacklog(email string, excludeID int64) (int, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	email = normalize(email)
	count := 0
	for _, g := range r.gameList {
		if g.ID == excludeID || g.SubmittedByEmail != email || g.Status != games.StatusBacklog {
			continue
		}
		if g.PollEligible != nil && *g.PollEligible {
			count++
		}
	}
	return count, nil
}

func (r *FakeGameRepo) ListPriceSyncCandidates() ([]*games.Game, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	var list []*games.Game
	for _, g := range r.gameList {
		if g.SteamAppID != nil {
			copied := *g
			list = append(list, &copied)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r *FakeGameRepo) UpdatePrices(id int64, itadGameID, itadSlug string, currentCents, bestCents *int) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	g, ok := r.gameList[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	g.ITADGameID = itadGameID
	g.ITADSlug = itadSlug
	g.CurrentPriceCents = copyInt(currentCents)
	g.BestPriceCents = copyInt(bestCents)
	return nil
}

func (r *FakeGameRepo) RatingSummary(gameID int64) (*games.RatingSummary, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	entries := r.ratings[gameID]
	summary := &games.RatingSummary{Count: len(entries)}
	if len(entries) > 0 {
		total := 0
		for _, e := range entries {
			total += e.rating
		}
		average := float64(total) / float64(len(entries))
		summary.Average = &average
	}
	return summary, nil
}

func (r *FakeGameRepo) MemberRating(gameID int64, email string) (*int, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	email = normalize(email)
	for _, e := range r.ratings[gameID] {
		if e.email == email {
			rating := e.rating
			return &rating, nil
		}
	}
	return nil, nil
}

func (r *FakeGameRepo) ListRatings(gameID int64) ([]*games.MemberRating, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	entries := r.ratings[gameID]
	list := make([]*games.MemberRating, 0, len(entries))
	for _, e := range entries {
		name := r.Profiles[e.email]
		if name == "" {
			name = "Member"
		}
		list = append(list, &games.MemberRating{
			DisplayName: name,
			Rating:      e.rating,
			CreatedAt:   e.createdAt,
			UpdatedAt:   e.updatedAt,
		})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Rating != list[j].Rating {
			return list[i].Rating > list[j].Rating
		}
		return list[i].DisplayName < list[j].DisplayName
	})
	return list, nil
}

func (r *FakeGameRepo) SetRating(gameID int64, email string, rating int) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	email = normalize(email)
	now := time.Now()
	for i, e := range r.ratings[gameID] {
		if e.email == email {
			r.ratings[gameID][i].rating = rating
			r.ratings[gameID][i].updatedAt = now
			return nil
		}
	}
	r.ratings[gameID] = append(r.ratings[gameID], ratingEntry{
		email: email, rating: rating, createdAt: now, updatedAt: now,
	})
	return nil
}

func (r *FakeGameRepo) ClearRating(gameID int64, email string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	email = normalize(email)
	entries := r.ratings[gameID]
	for i, e := range entries {
		if e.email == email {
			r.ratings[gameID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *FakeGameRepo) IsFavorite(gameID int64, email string) (bool, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.favorites[gameID][normalize(email)], nil
}

func (r *FakeGameRepo) SetFavorite(gameID int64, email string, favorite bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	email = normalize(email)
	if favorite {
		if r.favorites[gameID] == nil {
			r.favorites[gameID] = make(map[string]bool)
		}
		r.favorites[gameID][email] = true
		return nil
	}
	delete(r.favorites[gameID], email)
	return nil
}

func copyBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func copyInt(value *int) *int {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
