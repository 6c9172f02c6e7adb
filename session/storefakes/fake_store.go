package storefakes

import (
	"sync"

	"github.com/jrsteele09/go-crm-client/session"
)

var _ session.Store = (*FakeStore)(nil)

// FakeStore is an in-memory session store for tests.
type FakeStore struct {
	lock    sync.RWMutex
	current session.Session

	SaveCalls  int
	ClearCalls int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

// Seed replaces the stored session wholesale, bypassing Save semantics.
func (fs *FakeStore) Seed(s session.Session) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.current = s
}

// Snapshot returns a copy of the stored session.
func (fs *FakeStore) Snapshot() session.Session {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.current
}

func (fs *FakeStore) Save(tokens session.Tokens, identity *session.Identity) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.SaveCalls++

	fs.current.AccessToken = tokens.Access
	fs.current.RefreshToken = tokens.Refresh
	if identity != nil {
		userID := identity.UserID
		fs.current.UserID = &userID
		fs.current.Username = identity.Username
		fs.current.Role = identity.Role
	}
	return nil
}

func (fs *FakeStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.ClearCalls++
	fs.current = session.Session{}
	return nil
}

func (fs *FakeStore) AccessToken() string {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.current.AccessToken
}

func (fs *FakeStore) RefreshToken() string {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.current.RefreshToken
}

func (fs *FakeStore) UserID() (int64, bool) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	if fs.current.UserID == nil {
		return 0, false
	}
	return *fs.current.UserID, true
}

func (fs *FakeStore) Username() string {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.current.Username
}

func (fs *FakeStore) Role() session.Role {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.current.Role
}

func (fs *FakeStore) IsAuthenticated() bool {
	return fs.AccessToken() != ""
}
