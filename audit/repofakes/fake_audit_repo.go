package repofakes

import (
	"sync"
	"time"

	"github.com/mruedinger/game-club/audit"
)

var _ audit.Repo = (*FakeAuditRepo)(nil)

// FakeAuditRepo is a thread-safe in-memory audit repository for tests.
type FakeAuditRepo struct {
	lock    sync.RWMutex
	nextID  int64
	entries []*audit.Entry

	// InsertErr, when set, is returned from Insert.
	InsertErr error
}

func NewFakeAuditRepo() *FakeAuditRepo {
	return &FakeAuditRepo{nextID: 1}
}

func (r *FakeAuditRepo) Insert(actorEmail, action, entityType, entityID string, beforeJSON, afterJSON *string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.InsertErr != nil {
		return r.InsertErr
	}
	entry := &audit.Entry{
		ID:         r.nextID,
		ActorEmail: actorEmail,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		CreatedAt:  time.Now(),
	}
	if beforeJSON != nil {
		entry.BeforeJSON = *beforeJSON
	}
	if afterJSON != nil {
		entry.AfterJSON = *afterJSON
	}
	r.nextID++
	r.entries = append(r.entries, entry)
	return nil
}

func (r *FakeAuditRepo) Latest() ([]*audit.Entry, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	list := make([]*audit.Entry, 0, len(r.entries))
	for i := len(r.entries) - 1; i >= 0 && len(list) < audit.ListLimit; i-- {
		copied := *r.entries[i]
		list = append(list, &copied)
	}
	return list, nil
}

// Entries returns everything recorded so far, oldest first.
func (r *FakeAuditRepo) Entries() []*audit.Entry {
	r.lock.RLock()
	defer r.lock.RUnlock()
	list := make([]*audit.Entry, 0, len(r.entries))
	for _, e := range r.entries {
		copied := *e
		list = append(list, &copied)
	}
	return list
}
