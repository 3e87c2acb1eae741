package session

import (
	"context"
	"sync"
	"time"

	"coursehub/internal/util"
	"coursehub/pkg/domain"
)

// Store persists named sessions behind opaque or self-describing tokens.
type Store interface {
	Create(ctx context.Context, sess domain.Session) (string, error)
	Get(ctx context.Context, token string) (domain.Session, bool, error)
	Delete(ctx context.Context, token string) error
}

type memoryEntry struct {
	sess   domain.Session
	expiry time.Time
}

// MemoryStore keeps sessions in-process with a TTL.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

// NewMemoryStore constructs an in-memory session store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

// Create issues a token bound to the session identity.
func (m *MemoryStore) Create(_ context.Context, sess domain.Session) (string, error) {
	token := util.NewID()
	m.mu.Lock()
	m.entries[token] = memoryEntry{sess: sess, expiry: time.Now().Add(m.ttl)}
	m.mu.Unlock()
	return token, nil
}

// Get resolves a token, dropping it lazily once expired.
func (m *MemoryStore) Get(_ context.Context, token string) (domain.Session, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[token]
	m.mu.RUnlock()
	if !ok {
		return domain.Session{}, false, nil
	}
	if time.Now().After(entry.expiry) {
		m.mu.Lock()
		delete(m.entries, token)
		m.mu.Unlock()
		return domain.Session{}, false, nil
	}
	return entry.sess, true, nil
}

// Delete removes a token mapping.
func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.entries, token)
	m.mu.Unlock()
	return nil
}
