package repofakes

import (
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/mruedinger/game-club/internal/errors"
	"github.com/mruedinger/game-club/polls"
)

var _ polls.Repo = (*FakePollRepo)(nil)

type vote struct {
	email   string
	choices []int64
}

type pollState struct {
	poll    polls.Poll
	ballot  []polls.Choice
	ballots []vote
}

// FakePollRepo is a thread-safe in-memory poll repository for tests.
// Ballot titles come from the Titles map keyed by game id.
type FakePollRepo struct {
	lock   sync.RWMutex
	nextID int64
	state  map[int64]*pollState

	// Titles maps game id to title for ballots and results.
	Titles map[int64]string
}

func NewFakePollRepo() *FakePollRepo {
	return &FakePollRepo{nextID: 1, state: make(map[int64]*pollState), Titles: make(map[int64]string)}
}

func (r *FakePollRepo) Active() (*polls.Poll, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, s := range r.state {
		if s.poll.Status == polls.StatusActive {
			copied := s.poll
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *FakePollRepo) LastClosed() (*polls.Poll, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	var last *pollState
	for _, s := range r.state {
		if s.poll.Status != polls.StatusClosed {
			continue
		}
		if last == nil || closedAfter(s, last) {
			last = s
		}
	}
	if last == nil {
		return nil, nil
	}
	copied := last.poll
	return &copied, nil
}

func closedAfter(a, b *pollState) bool {
	if a.poll.ClosedAt == nil || b.poll.ClosedAt == nil {
		return a.poll.ID > b.poll.ID
	}
	return a.poll.ClosedAt.After(*b.poll.ClosedAt)
}

func (r *FakePollRepo) Open(gameIDs []int64) (int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, s := range r.state {
		if s.poll.Status == polls.StatusActive {
			return 0, apperrors.ErrConflict
		}
	}
	id := r.nextID
	r.nextID++
	s := &pollState{poll: polls.Poll{ID: id, Status: polls.StatusActive, HistoryValid: true, StartedAt: time.Now()}}
	for _, gameID := range gameIDs {
		s.ballot = append(s.ballot, polls.Choice{ID: gameID, Title: r.Titles[gameID]})
	}
	r.state[id] = s
	return id, nil
}

func (r *FakePollRepo) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, s := range r.state {
		if s.poll.Status == polls.StatusActive {
			now := time.Now()
			s.poll.Status = polls.StatusClosed
			s.poll.ClosedAt = &now
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (r *FakePollRepo) Choices(pollID int64) ([]*polls.Choice, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	s, ok := r.state[pollID]
	if !ok {
		return nil, nil
	}
	list := make([]*polls.Choice, 0, len(s.ballot))
	for i := range s.ballot {
		copied := s.ballot[i]
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Title < list[j].Title })
	return list, nil
}

func (r *FakePollRepo) HasVoted(pollID int64, email string) (bool, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	s, ok := r.state[pollID]
	if !ok {
		return false, nil
	}
	email = normalize(email)
	for _, v := range s.ballots {
		if v.email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *FakePollRepo) CastVote(pollID int64, email string, choices []int64) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	s, ok := r.state[pollID]
	if !ok {
		return apperrors.ErrNotFound
	}
	email = normalize(email)
	for _, v := range s.ballots {
		if v.email == email {
			return apperrors.ErrConflict
		}
	}
	s.ballots = append(s.ballots, vote{email: email, choices: append([]int64(nil), choices...)})
	return nil
}

func (r *FakePollRepo) Results(pollID int64) ([]*polls.Result, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	s, ok := r.state[pollID]
	if !ok {
		return nil, nil
	}
	return r.resultsLocked(s)
}

func (r *FakePollRepo) History() ([]*polls.HistoryEntry, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	list := make([]*polls.HistoryEntry, 0, len(r.state))
	for _, s := range r.state {
		if s.poll.Status == polls.StatusClosed {
			list = append(list, r.entryLocked(s))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (r *FakePollRepo) HistoryEntry(pollID int64) (*polls.HistoryEntry, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	s, ok := r.state[pollID]
	if !ok || s.poll.Status != polls.StatusClosed {
		return nil, apperrors.ErrNotFound
	}
	return r.entryLocked(s), nil
}

func (r *FakePollRepo) entryLocked(s *pollState) *polls.HistoryEntry {
	entry := &polls.HistoryEntry{
		ID:           s.poll.ID,
		StartedAt:    s.poll.StartedAt,
		ClosedAt:     s.poll.ClosedAt,
		HistoryValid: s.poll.HistoryValid,
		VoterCount:   len(s.ballots),
	}
	if len(s.ballot) > 0 {
		results, _ := r.resultsLocked(s)
		if len(results) > 0 {
			entry.WinnerTitle = results[0].Title
		}
	}
	return entry
}

func (r *FakePollRepo) resultsLocked(s *pollState) ([]*polls.Result, error) {
	points := make(map[int64]int, len(s.ballot))
	for _, c := range s.ballot {
		points[c.ID] = 0
	}
	weights := []int{polls.FirstChoicePoints, polls.SecondChoicePoints, polls.ThirdChoicePoints}
	for _, v := range s.ballots {
		for i, choice := range v.choices {
			if i >= len(weights) {
				break
			}
			if _, ok := points[choice]; ok {
				points[choice] += weights[i]
			}
		}
	}
	results := make([]*polls.Result, 0, len(s.ballot))
	for _, c := range s.ballot {
		results = append(results, &polls.Result{GameID: c.ID, Title: c.Title, Points: points[c.ID]})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Points != results[j].Points {
			return results[i].Points > results[j].Points
		}
		return results[i].Title < results[j].Title
	})
	return results, nil
}

func (r *FakePollRepo) SetHistoryValid(pollID int64, valid bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	s, ok := r.state[pollID]
	if !ok || s.poll.Status != polls.StatusClosed {
		return apperrors.ErrNotFound
	}
	s.poll.HistoryValid = valid
	return nil
}

func (r *FakePollRepo) DeleteClosed(pollID int64) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	s, ok := r.state[pollID]
	if ok && s.poll.Status == polls.StatusClosed {
		delete(r.state, pollID)
	}
	return nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
