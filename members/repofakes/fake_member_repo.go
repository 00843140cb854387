package repofakes

import (
	"strings"
	"sync"
	"time"

	apperrors "github.com/mruedinger/game-club/internal/errors"
	"github.com/mruedinger/game-club/members"
)

var _ members.Repo = (*FakeMemberRepo)(nil)

// FakeMemberRepo is a thread-safe in-memory member repository for tests.
type FakeMemberRepo struct {
	lock    sync.RWMutex
	members map[string]*members.Member
}

func NewFakeMemberRepo() *FakeMemberRepo {
	return &FakeMemberRepo{members: make(map[string]*members.Member)}
}

// Put stores a member verbatim, for test setup.
func (r *FakeMemberRepo) Put(m members.Member) {
	r.lock.Lock()
	defer r.lock.Unlock()
	m.Email = normalize(m.Email)
	r.members[m.Email] = &m
}

func (r *FakeMemberRepo) GetActive(email string) (*members.Member, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	m, ok := r.members[normalize(email)]
	if !ok || !m.Active {
		return nil, apperrors.ErrNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *FakeMemberRepo) Get(email string) (*members.Member, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	m, ok := r.members[normalize(email)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *FakeMemberRepo) List() ([]*members.Member, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	list := make([]*members.Member, 0, len(r.members))
	for _, m := range r.members {
		copied := *m
		list = append(list, &copied)
	}
	return list, nil
}

func (r *FakeMemberRepo) Upsert(email string, role members.RoleType) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	email = normalize(email)
	if existing, ok := r.members[email]; ok {
		existing.Role = role
		existing.Active = true
		return nil
	}
	r.members[email] = &members.Member{Email: email, Role: role, Active: true, CreatedAt: time.Now()}
	return nil
}

func (r *FakeMemberRepo) UpdateProfile(email, name, picture string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	m, ok := r.members[normalize(email)]
	if !ok {
		return apperrors.ErrNotFound
	}
	if name != "" {
		m.Name = name
	}
	if picture != "" {
		m.Picture = picture
	}
	return nil
}

func (r *FakeMemberRepo) SetAlias(email, alias string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	m, ok := r.members[normalize(email)]
	if !ok {
		return apperrors.ErrNotFound
	}
	m.Alias = alias
	return nil
}

func (r *FakeMemberRepo) SetRole(email string, role members.RoleType) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	m, ok := r.members[normalize(email)]
	if !ok {
		return apperrors.ErrNotFound
	}
	m.Role = role
	return nil
}

func (r *FakeMemberRepo) Delete(email string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.members, normalize(email))
	return nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
