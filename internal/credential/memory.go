package credential

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps credentials in process memory with a per-entry TTL.
// Entries disappear on gateway restart, forcing re-authentication.
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

type memoryEntry struct {
	cred      *Credential
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory credential store. ttl <= 0 disables
// idle expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) purgeExpiredLocked(now time.Time) {
	for id, entry := range s.entries {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(s.entries, id)
		}
	}
}

// Get returns the credential for the session, (nil, nil) when absent or expired.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (*Credential, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, nil
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpiredLocked(now)
	entry, ok := s.entries[sessionID]
	if !ok {
		return nil, nil
	}
	return entry.cred.Clone(), nil
}

// Put stores or replaces the credential for the session.
func (s *MemoryStore) Put(_ context.Context, sessionID string, cred *Credential) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || cred == nil {
		return nil
	}
	now := time.Now()
	entry := memoryEntry{cred: cred.Clone()}
	if s.ttl > 0 {
		entry.expiresAt = now.Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpiredLocked(now)
	s.entries[sessionID] = entry
	return nil
}

// Clear removes the credential for the session. Clearing an absent session is a no-op.
func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, sessionID)
	return nil
}
