// Package token decodes the compact bearer tokens issued by the publication
// backend. Tokens are three dot-separated base64url segments; only the claims
// segment is inspected here. Cryptographic signature verification is the
// backend's responsibility, the gateway merely introspects the payload to
// derive the user profile and the expiry.
package token

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Decode failure reasons, stable identifiers surfaced in callback outcomes.
const (
	ReasonWrongSegmentCount  = "wrong_segment_count"
	ReasonPayloadDecodeError = "payload_decode_failed"
)

// DecodeError reports a structural token failure together with its stable reason code.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "token: decode failed"
	}
	if e.Err != nil {
		return fmt.Sprintf("token: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("token: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// FlexID accepts either a JSON number or a JSON string identifier. The backend
// providers are not consistent about which one they emit.
type FlexID string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// Claims holds the subset of the token payload the gateway cares about.
// Unknown claims are ignored.
type Claims struct {
	UserID      FlexID `json:"user_id"`
	ID          FlexID `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	AccountType string `json:"account_type"`
	Exp         int64  `json:"exp"`

	hasExp bool
}

// rawClaims mirrors Claims with a pointer Exp so absence is distinguishable from zero.
type rawClaims struct {
	UserID      FlexID `json:"user_id"`
	ID          FlexID `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	AccountType string `json:"account_type"`
	Exp         *int64 `json:"exp"`
}

// Decode parses a compact token string and extracts its claims without verifying
// the signature. The token must have exactly three dot-separated segments and a
// base64url JSON claims segment.
func Decode(tok string) (*Claims, error) {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return nil, &DecodeError{
			Reason: ReasonWrongSegmentCount,
			Err:    fmt.Errorf("expected 3 segments, got %d", len(parts)),
		}
	}

	payload, err := base64URLDecode(parts[1])
	if err != nil {
		return nil, &DecodeError{Reason: ReasonPayloadDecodeError, Err: err}
	}

	var raw rawClaims
	if err = json.Unmarshal(payload, &raw); err != nil {
		return nil, &DecodeError{Reason: ReasonPayloadDecodeError, Err: err}
	}

	claims := &Claims{
		UserID:      raw.UserID,
		ID:          raw.ID,
		Email:       raw.Email,
		Name:        raw.Name,
		AccountType: raw.AccountType,
	}
	if raw.Exp != nil {
		claims.Exp = *raw.Exp
		claims.hasExp = true
	}
	return claims, nil
}

// base64URLDecode decodes a base64url string, re-adding the padding tokens omit.
func base64URLDecode(data string) ([]byte, error) {
	switch len(data) % 4 {
	case 2:
		data += "=="
	case 3:
		data += "="
	}
	return base64.URLEncoding.DecodeString(data)
}

// HasExp reports whether the token carried an exp claim at all.
func (c *Claims) HasExp() bool {
	return c != nil && c.hasExp
}

// ExpiredAt reports whether the token is expired at the given instant.
// A token without an exp claim never expires on its own; the backend decides.
func (c *Claims) ExpiredAt(now time.Time) bool {
	if c == nil || !c.hasExp {
		return false
	}
	return c.Exp*1000 < now.UnixMilli()
}

// Expired reports expiry against the current clock.
func (c *Claims) Expired() bool {
	return c.ExpiredAt(time.Now())
}

// ExpiresAt returns the expiry instant and whether one exists.
func (c *Claims) ExpiresAt() (time.Time, bool) {
	if c == nil || !c.hasExp {
		return time.Time{}, false
	}
	return time.Unix(c.Exp, 0), true
}

// SubjectID returns the user identifier, preferring user_id over id.
func (c *Claims) SubjectID() string {
	if c == nil {
		return ""
	}
	if s := strings.TrimSpace(string(c.UserID)); s != "" {
		return s
	}
	return strings.TrimSpace(string(c.ID))
}

// DisplayName returns the user's name, falling back to the local part of the email.
func (c *Claims) DisplayName() string {
	if c == nil {
		return ""
	}
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	if at := strings.Index(c.Email, "@"); at > 0 {
		return c.Email[:at]
	}
	return c.Email
}
