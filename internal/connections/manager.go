// Package connections manages the user's established platform connections.
// The backend owns the records; the manager keeps a short-lived read-through
// cache per session and tracks which connections failed their last refresh so
// the UI can show an expired status instead of silently dropping them.
package connections

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/publidesk/passerelle/internal/audit"
	"github.com/publidesk/passerelle/internal/backend"
)

// Connection is the gateway's view of one platform link: the backend record
// plus the locally tracked refresh status.
type Connection struct {
	backend.PlatformConnection
	// Invalide is set when the last refresh attempt failed. The connection
	// stays listed so the user can reconnect manually.
	Invalide bool `json:"invalide"`
}

type cacheEntry struct {
	conns     []backend.PlatformConnection
	expiresAt time.Time
}

// Manager performs connection operations through the session gateway.
// All four operations are independent; nothing here retries or orders calls.
type Manager struct {
	backend *backend.Client
	audit   audit.Recorder
	ttl     time.Duration

	mu      sync.Mutex
	cache   map[string]cacheEntry
	invalid map[string]map[int64]bool
}

// NewManager builds a connection manager with the given cache TTL.
func NewManager(client *backend.Client, recorder audit.Recorder, ttl time.Duration) *Manager {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	m := &Manager{
		backend: client,
		audit:   recorder,
		ttl:     ttl,
		cache:   make(map[string]cacheEntry),
		invalid: make(map[string]map[int64]bool),
	}
	// A destroyed session must not keep serving its cached connections.
	client.OnInvalidate(m.DropSession)
	return m
}

// DropSession discards all cached state for a session.
func (m *Manager) DropSession(_ context.Context, sessionID string) {
	m.mu.Lock()
	delete(m.cache, sessionID)
	delete(m.invalid, sessionID)
	m.mu.Unlock()
}

// List returns the user's platform connections, served from cache within the
// TTL and annotated with the locally tracked refresh status.
func (m *Manager) List(ctx context.Context, sessionID string) ([]Connection, error) {
	now := time.Now()

	m.mu.Lock()
	entry, ok := m.cache[sessionID]
	m.mu.Unlock()

	if !ok || now.After(entry.expiresAt) {
		conns, err := m.backend.ListConnections(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		entry = cacheEntry{conns: conns, expiresAt: now.Add(m.ttl)}
		m.mu.Lock()
		m.cache[sessionID] = entry
		m.mu.Unlock()
	}

	m.mu.Lock()
	marks := m.invalid[sessionID]
	result := make([]Connection, 0, len(entry.conns))
	for _, conn := range entry.conns {
		result = append(result, Connection{
			PlatformConnection: conn,
			Invalide:           marks[conn.ID],
		})
	}
	m.mu.Unlock()
	return result, nil
}

// Disconnect revokes a connection and evicts it from the cache on success.
func (m *Manager) Disconnect(ctx context.Context, sessionID string, id int64) error {
	if err := m.backend.DisconnectConnection(ctx, sessionID, id); err != nil {
		return err
	}

	m.mu.Lock()
	if entry, ok := m.cache[sessionID]; ok {
		// A fresh slice, not an in-place filter: List may still be iterating
		// the old backing array outside the lock.
		kept := make([]backend.PlatformConnection, 0, len(entry.conns))
		for _, conn := range entry.conns {
			if conn.ID != id {
				kept = append(kept, conn)
			}
		}
		entry.conns = kept
		m.cache[sessionID] = entry
	}
	if marks, ok := m.invalid[sessionID]; ok {
		delete(marks, id)
	}
	m.mu.Unlock()

	m.audit.Record(ctx, audit.Event{
		SessionID: sessionID, Action: audit.ActionDisconnect, Outcome: "ok",
	})
	return nil
}

// RefreshToken asks the backend to mint a new access token for the
// connection. On success the cached record is updated; on failure the
// connection is marked invalid and left in place for a manual reconnect.
func (m *Manager) RefreshToken(ctx context.Context, sessionID string, id int64) (*Connection, error) {
	refreshed, err := m.backend.RefreshConnectionToken(ctx, sessionID, id)
	if err != nil {
		m.mu.Lock()
		marks, ok := m.invalid[sessionID]
		if !ok {
			marks = make(map[int64]bool)
			m.invalid[sessionID] = marks
		}
		marks[id] = true
		m.mu.Unlock()

		log.WithFields(log.Fields{"session": sessionID, "error": err}).Warn("connection token refresh failed")
		m.audit.Record(ctx, audit.Event{
			SessionID: sessionID, Action: audit.ActionRefresh, Outcome: "error", Detail: err.Error(),
		})
		return nil, err
	}

	m.mu.Lock()
	if entry, ok := m.cache[sessionID]; ok {
		for i := range entry.conns {
			if entry.conns[i].ID == id {
				entry.conns[i] = *refreshed
				break
			}
		}
		m.cache[sessionID] = entry
	}
	if marks, ok := m.invalid[sessionID]; ok {
		delete(marks, id)
	}
	m.mu.Unlock()

	m.audit.Record(ctx, audit.Event{
		SessionID: sessionID, Action: audit.ActionRefresh, Outcome: "ok",
	})
	return &Connection{PlatformConnection: *refreshed}, nil
}

// UpdateMeta patches one key of a connection's meta document and refreshes
// the cached record with the backend's answer.
func (m *Manager) UpdateMeta(ctx context.Context, sessionID string, id int64, key string, value any) (*Connection, error) {
	updated, err := m.backend.UpdateConnectionMeta(ctx, sessionID, id, key, value)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if entry, ok := m.cache[sessionID]; ok {
		for i := range entry.conns {
			if entry.conns[i].ID == id {
				entry.conns[i] = *updated
				break
			}
		}
		m.cache[sessionID] = entry
	}
	marked := m.invalid[sessionID][id]
	m.mu.Unlock()

	return &Connection{PlatformConnection: *updated, Invalide: marked}, nil
}

// CheckValidity probes whether a connection's token is still valid. Read-only:
// neither the cache nor the invalid marks change.
func (m *Manager) CheckValidity(ctx context.Context, sessionID string, id int64) (*backend.Validity, error) {
	return m.backend.CheckConnectionValidity(ctx, sessionID, id)
}
