package oauth

import (
	"net/url"
	"time"

	"github.com/publidesk/passerelle/internal/credential"
)

// OutcomeKind tags the terminal state of one callback invocation.
type OutcomeKind string

const (
	// KindSuccess means a credential was derived and stored.
	KindSuccess OutcomeKind = "success"
	// KindProviderError means the provider refused or the user declined,
	// or the server-side exchange failed.
	KindProviderError OutcomeKind = "provider_error"
	// KindMalformed means the redirect back from our own backend was missing
	// or garbled: no token, bad structure, or an already expired token.
	KindMalformed OutcomeKind = "malformed_response"
)

// Outcome is the terminal result of a callback invocation. Exactly one is
// produced per callback; it drives the page rendered and the navigation that
// follows.
type Outcome struct {
	Kind OutcomeKind

	// Credential is set only on success and has already been written to the
	// credential store by the time the outcome is returned.
	Credential *credential.Credential

	// Code is the normalized error code (provider codes on KindProviderError,
	// structural reasons on KindMalformed). Empty on success.
	Code string

	// RawMessage carries the provider's own description when one was present.
	RawMessage string

	// Message is the localized human-readable text shown to the user.
	Message string

	// Delay is how long the failure page is displayed before navigating back.
	Delay time.Duration
}

// Failed reports whether the outcome is one of the two failure kinds.
func (o Outcome) Failed() bool {
	return o.Kind != KindSuccess
}

// RedirectQuery encodes the outcome for the login page banner:
// error=<category>&details=<code>.
func (o Outcome) RedirectQuery() string {
	if !o.Failed() {
		return ""
	}
	q := url.Values{}
	q.Set("error", string(o.Kind))
	q.Set("details", o.Code)
	return q.Encode()
}
