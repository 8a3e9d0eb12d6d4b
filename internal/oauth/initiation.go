package oauth

import (
	"strings"
	"sync"
	"time"
)

const initiationTTL = 10 * time.Minute

// InitiationContext is the ephemeral local state recorded right before the
// browser is sent to a provider. One active context per session; beginning a
// new authorization silently discards a stale one.
type InitiationContext struct {
	Provider         string
	AuthorizationURL string
	ErrorReturnPath  string
	State            string
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// initiationStore tracks pending initiation contexts keyed by session.
// Abandoned flows expire on TTL; no cleanup call is needed from the browser.
type initiationStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[string]InitiationContext
}

func newInitiationStore(ttl time.Duration) *initiationStore {
	if ttl <= 0 {
		ttl = initiationTTL
	}
	return &initiationStore{
		ttl:     ttl,
		pending: make(map[string]InitiationContext),
	}
}

func (s *initiationStore) purgeExpiredLocked(now time.Time) {
	for sessionID, ctx := range s.pending {
		if now.After(ctx.ExpiresAt) {
			delete(s.pending, sessionID)
		}
	}
}

// Begin records a new pending context, replacing any stale one for the session.
func (s *initiationStore) Begin(sessionID string, ctx InitiationContext) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return
	}
	now := time.Now()
	ctx.CreatedAt = now
	ctx.ExpiresAt = now.Add(s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpiredLocked(now)
	s.pending[sessionID] = ctx
}

// Consume returns and clears the pending context for the session.
func (s *initiationStore) Consume(sessionID string) (InitiationContext, bool) {
	sessionID = strings.TrimSpace(sessionID)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpiredLocked(now)
	ctx, ok := s.pending[sessionID]
	if ok {
		delete(s.pending, sessionID)
	}
	return ctx, ok
}
