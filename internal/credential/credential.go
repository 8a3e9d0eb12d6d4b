// Package credential holds the bearer credential derived from a backend token
// together with its per-session storage. The gateway is the only writer: a
// credential is created on callback or login success, destroyed on logout and
// on 401 invalidation, and never mutated in place.
package credential

import (
	"context"
	"time"

	"github.com/publidesk/passerelle/internal/token"
)

// Fixed JSON field names for the persisted credential. The canonical names are
// accessToken and user; earlier front-end drift between access_token and
// authToken is intentionally not preserved.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	AccountType string `json:"accountType,omitempty"`
}

// Credential is the session-scoped bearer credential and its derived profile.
type Credential struct {
	AccessToken string    `json:"accessToken"`
	User        User      `json:"user"`
	ExpiresAt   time.Time `json:"expiresAt,omitzero"`
}

// FromToken builds a credential by structurally decoding the bearer token.
// The profile is derived from the token payload, not fetched from the backend.
func FromToken(tok string) (*Credential, error) {
	claims, err := token.Decode(tok)
	if err != nil {
		return nil, err
	}
	cred := &Credential{
		AccessToken: tok,
		User: User{
			ID:          claims.SubjectID(),
			Email:       claims.Email,
			Name:        claims.DisplayName(),
			AccountType: claims.AccountType,
		},
	}
	if expiresAt, ok := claims.ExpiresAt(); ok {
		cred.ExpiresAt = expiresAt
	}
	return cred, nil
}

// ValidAt reports whether the credential is usable at the given instant: the
// token parsed structurally when it was stored, and either carries no expiry
// or expires in the future.
func (c *Credential) ValidAt(now time.Time) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	if c.ExpiresAt.IsZero() {
		return true
	}
	return now.Before(c.ExpiresAt)
}

// Valid reports validity against the current clock.
func (c *Credential) Valid() bool {
	return c.ValidAt(time.Now())
}

// Clone returns a copy so callers cannot mutate stored state.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// Store abstracts per-session credential persistence. Get returns (nil, nil)
// when the session holds no credential.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Credential, error)
	Put(ctx context.Context, sessionID string, cred *Credential) error
	Clear(ctx context.Context, sessionID string) error
}
