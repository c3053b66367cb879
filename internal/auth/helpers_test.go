package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-starter/internal/auth"
	"github.com/odyssey-erp/odyssey-starter/internal/shared"
	"github.com/odyssey-erp/odyssey-starter/internal/users"
)

var testParams = auth.Params{Time: 1, MemoryKiB: 64, Threads: 1, SaltLen: 16, KeyLen: 32}

func newTestHasher(t *testing.T) *auth.Hasher {
	t.Helper()
	h, err := auth.NewHasher(testParams)
	require.NoError(t, err)
	return h
}

// memStore is an in-memory users.Store with call counters and error hooks.
type memStore struct {
	mu          sync.Mutex
	byID        map[string]*users.User
	schemaErr   error
	findErr     error
	schemaCalls int
	updates     int
}

func newMemStore() *memStore {
	return &memStore{byID: make(map[string]*users.User)}
}

func (m *memStore) EnsureSchema(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemaCalls++
	return m.schemaErr
}

func (m *memStore) FindByID(ctx context.Context, id string) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, shared.ErrNotFound
}

func (m *memStore) FindByUsername(ctx context.Context, username string) (*users.User, error) {
	return m.findBy(func(u *users.User) bool { return u.Username == username })
}

func (m *memStore) FindByEmail(ctx context.Context, email string) (*users.User, error) {
	if email == "" {
		return nil, shared.ErrNotFound
	}
	return m.findBy(func(u *users.User) bool { return u.Email == email })
}

func (m *memStore) findBy(match func(*users.User) bool) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memStore) CountByRole(ctx context.Context, role string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.byID {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (m *memStore) Insert(ctx context.Context, user *users.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Username == user.Username {
			return &users.ConflictError{Field: "username", Value: user.Username}
		}
		if user.Email != "" && u.Email == user.Email {
			return &users.ConflictError{Field: "email", Value: user.Email}
		}
	}
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func (m *memStore) UpdateLastAccess(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.LastAccess = &at
	m.updates++
	return nil
}

func (m *memStore) get(id string) *users.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// seedUser inserts an active user with the given password.
func seedUser(t *testing.T, store *memStore, hasher *auth.Hasher, username, email, password string) *users.User {
	t.Helper()
	hash, err := hasher.Hash(password)
	require.NoError(t, err)
	u := users.New(username, "test")
	u.Email = email
	u.SecretHash = hash
	u.Role = users.RoleUser
	u.Active = true
	require.NoError(t, store.Insert(context.Background(), u))
	return u
}

// fakeSessionStore keeps session payloads in memory.
type fakeSessionStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{data: make(map[string][]byte)}
}

func (f *fakeSessionStore) Load(ctx context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.data[id]; ok {
		return b, nil
	}
	return nil, shared.ErrSessionNotFound
}

func (f *fakeSessionStore) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[id] = data
	return nil
}

func (f *fakeSessionStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, id)
	return nil
}

var (
	_ users.Store         = (*memStore)(nil)
	_ shared.SessionStore = (*fakeSessionStore)(nil)
)
