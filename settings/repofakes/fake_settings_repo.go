package repofakes

import (
	"sync"

	"github.com/mruedinger/game-club/settings"
)

var _ settings.Repo = (*FakeSettingsRepo)(nil)

// FakeSettingsRepo is a thread-safe in-memory settings repository for
// tests.
type FakeSettingsRepo struct {
	lock   sync.RWMutex
	values map[string]string
}

func NewFakeSettingsRepo() *FakeSettingsRepo {
	return &FakeSettingsRepo{values: make(map[string]string)}
}

func (r *FakeSettingsRepo) Get(key string) (string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.values[key], nil
}

func (r *FakeSettingsRepo) Set(key, value string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.values[key] = value
	return nil
}
