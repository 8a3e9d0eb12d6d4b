package oauth

import (
	"net/url"
	"strings"
)

// Payload is the closed union of what a provider callback can deliver. The
// query string is parsed exactly once into one of these shapes so the rest of
// the handler never touches raw parameters.
type Payload interface {
	payload()
}

// ProviderDeclined means the provider reported an error or the user refused.
type ProviderDeclined struct {
	Code       string
	RawMessage string
}

// DirectToken means the backend already performed the exchange and redirected
// back with a ready bearer token.
type DirectToken struct {
	Token string
}

// AuthorizationCode means the callback carries a code the backend must still
// exchange server-side.
type AuthorizationCode struct {
	Code  string
	State string
}

// Empty means the callback carried neither an error nor a credential.
type Empty struct{}

func (ProviderDeclined) payload()  {}
func (DirectToken) payload()       {}
func (AuthorizationCode) payload() {}
func (Empty) payload()             {}

// ParsePayload classifies callback query parameters for the given delivery
// mode. The error indicator always wins; the error_description fallback
// mirrors providers that only fill the description field.
func ParsePayload(query url.Values, delivery string) Payload {
	errCode := strings.TrimSpace(query.Get("error"))
	if errCode == "" {
		errCode = strings.TrimSpace(query.Get("error_description"))
	}
	if errCode != "" {
		return ProviderDeclined{
			Code:       errCode,
			RawMessage: strings.TrimSpace(query.Get("error_description")),
		}
	}

	switch delivery {
	case "code":
		code := strings.TrimSpace(query.Get("code"))
		if code == "" {
			return Empty{}
		}
		return AuthorizationCode{
			Code:  code,
			State: strings.TrimSpace(query.Get("state")),
		}
	default:
		tok := strings.TrimSpace(query.Get("token"))
		if tok == "" {
			return Empty{}
		}
		return DirectToken{Token: tok}
	}
}
