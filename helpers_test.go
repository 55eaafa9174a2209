package identity

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stocktrack/identity/password"
)

// mockStore is an in-memory AccountStore with per-method fault injection.
// Refresh semantics match the contract exactly: consume is atomic under the
// store lock, owner and strict-age checks included.
type mockStore struct {
	mu          sync.Mutex
	usersByName map[string]*UserRecord
	usersByID   map[uuid.UUID]*UserRecord
	roles       map[uuid.UUID]RoleRecord
	refresh     map[string]RefreshRecord

	findErr      error
	rolesErr     error
	insertErr    error
	consumeErr   error
	lastLoginErr error
	passwordErr  error

	lastLoginCalls int
}

func newMockStore() *mockStore {
	return &mockStore{
		usersByName: make(map[string]*UserRecord),
		usersByID:   make(map[uuid.UUID]*UserRecord),
		roles:       make(map[uuid.UUID]RoleRecord),
		refresh:     make(map[string]RefreshRecord),
	}
}

func (m *mockStore) putUser(user UserRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := user
	m.usersByName[u.Username] = &u
	m.usersByID[u.UserID] = &u
}

func (m *mockStore) putRole(role RoleRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[role.RoleID] = role
}

func (m *mockStore) removeUser(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.usersByID[id]; ok {
		delete(m.usersByName, u.Username)
		delete(m.usersByID, id)
	}
}

func (m *mockStore) refreshCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.refresh)
}

func (m *mockStore) FindUserByUsername(_ context.Context, username string) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	u, ok := m.usersByName[username]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (m *mockStore) FindUserByID(_ context.Context, id uuid.UUID) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	u, ok := m.usersByID[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (m *mockStore) RolesByIDs(_ context.Context, ids []uuid.UUID) ([]RoleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rolesErr != nil {
		return nil, m.rolesErr
	}
	out := make([]RoleRecord, 0, len(ids))
	for _, id := range ids {
		if r, ok := m.roles[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) InsertRefreshToken(_ context.Context, rec RefreshRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.refresh[string(rec.TokenID)] = rec
	return nil
}

func (m *mockStore) ConsumeRefreshToken(_ context.Context, tokenID []byte, userID uuid.UUID, minAge time.Duration) (*RefreshRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.consumeErr != nil {
		return nil, m.consumeErr
	}
	rec, ok := m.refresh[string(tokenID)]
	if !ok {
		return nil, nil
	}
	if rec.UserID != userID {
		return nil, nil
	}
	if !rec.IssuedAt.Before(time.Now().Add(-minAge)) {
		return nil, nil
	}
	delete(m.refresh, string(tokenID))
	copied := rec
	return &copied, nil
}

func (m *mockStore) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLoginCalls++
	if m.lastLoginErr != nil {
		return m.lastLoginErr
	}
	if u, ok := m.usersByID[id]; ok {
		u.LastLoginAt = at
	}
	return nil
}

func (m *mockStore) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string, changedAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.passwordErr != nil {
		return false, m.passwordErr
	}
	u, ok := m.usersByID[id]
	if !ok {
		return false, nil
	}
	u.PasswordHash = hash
	if changedAt != nil {
		u.PasswordChangedAt = *changedAt
	}
	return true, nil
}

var testPepper = bytes.Repeat([]byte{0x42}, 32)

func testSigningKey() []byte {
	return bytes.Repeat([]byte{0x17}, 32)
}

// fastConfig keeps hashing cheap and removes the artificial delays and the
// maturation window so tests run without sleeping.
func fastConfig() Config {
	cfg := defaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.KeyLength = 16
	cfg.Refresh.MaturationWindow = 0
	cfg.Timing.VerifyJitterMax = 0
	cfg.Timing.AbsentUserDelay = 0
	cfg.Audit.Enabled = false
	return cfg
}

func newTestEngine(t *testing.T, store AccountStore, cfg Config) *Engine {
	t.Helper()
	engine, err := New().
		WithConfig(cfg).
		WithStore(store).
		WithKeyProvider(StaticKeys{
			PepperBytes: testPepper,
			Key:         bytes.Repeat([]byte{0x17}, 32),
			Alg:         "hs256",
		}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func testHash(t *testing.T, pass string) string {
	t.Helper()
	hasher, err := password.NewHasher(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}, testPepper)
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	hash, err := hasher.Hash(pass)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	return hash
}

// seedAlice installs alice/CorrectHorse1 with a viewer role (0b001) that
// inherits base (0b100), and returns her record.
func seedAlice(t *testing.T, store *mockStore) UserRecord {
	t.Helper()
	base := RoleRecord{RoleID: uuid.New(), Name: "base", Permissions: 0b100}
	viewer := RoleRecord{
		RoleID:      uuid.New(),
		Name:        "viewer",
		Permissions: 0b001,
		Inherit:     []uuid.UUID{base.RoleID},
	}
	store.putRole(base)
	store.putRole(viewer)

	alice := UserRecord{
		UserID:       uuid.New(),
		Username:     "alice",
		PasswordHash: testHash(t, "CorrectHorse1"),
		Roles:        []uuid.UUID{viewer.RoleID},
	}
	store.putUser(alice)
	return alice
}
