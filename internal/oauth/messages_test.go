package oauth

import (
	"strings"
	"testing"
)

func TestLookupIsTotal(t *testing.T) {
	t.Parallel()

	table := Messages("google")
	codes := []string{
		CodeAuthDenied, CodeNoCode, CodeNoState, CodeInvalidState, CodePKCEError,
		CodeTokenExchangeFailed, CodeNoAccessToken, CodeNoToken, CodeUserInfoFailed,
		CodeEmailNotVerified, CodeNoEmail, CodeNoUserID, CodeDatabaseError,
		CodeNetworkError, CodeSessionExpired, CodeInvalidTokenFormat, CodeTokenExpired,
		CodeTokenDecodeFailed, CodeUnexpectedError, CodeTimeout, CodeServerError,
		CodeExchangeFailed, CodeWrongSegmentCount, CodePayloadDecodeFailed,
	}
	for _, code := range codes {
		if msg := table.Lookup(code); msg == "" {
			t.Errorf("Lookup(%q) returned empty message", code)
		}
	}
}

func TestLookupUnknownCodeFallsBack(t *testing.T) {
	t.Parallel()

	got := Messages("x").Lookup("foo_bar_baz")
	if got != "Erreur: foo_bar_baz" {
		t.Errorf("Lookup(foo_bar_baz) = %q, want %q", got, "Erreur: foo_bar_baz")
	}
}

func TestLookupIdempotent(t *testing.T) {
	t.Parallel()

	table := Messages("google")
	first := table.Lookup(CodeAuthDenied)
	second := table.Lookup(CodeAuthDenied)
	if first != second {
		t.Errorf("Lookup not stable: %q vs %q", first, second)
	}
	if !strings.Contains(first, "Google") {
		t.Errorf("google overlay not applied: %q", first)
	}
}

func TestProviderOverlayDoesNotLeak(t *testing.T) {
	t.Parallel()

	google := Messages("google").Lookup(CodeAuthDenied)
	facebook := Messages("facebook").Lookup(CodeAuthDenied)
	if google == facebook {
		t.Error("provider overlays should differ for auth_denied")
	}
	// Codes without an overlay fall back to the shared table.
	if Messages("google").Lookup(CodeTimeout) != Messages("facebook").Lookup(CodeTimeout) {
		t.Error("codes without overlay should share the base message")
	}
}
