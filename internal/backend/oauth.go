package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Initiation is the backend's answer to an OAuth initiate call: the provider
// authorization URL to send the browser to and the CSRF state for the exchange.
type Initiation struct {
	AuthorizationURL string
	State            string
}

// InitiateOAuth asks the backend to mint an authorization URL and state for an
// exchange-mode provider.
func (c *Client) InitiateOAuth(ctx context.Context, initiatePath string) (*Initiation, error) {
	data, err := c.doJSON(ctx, "", http.MethodPost, initiatePath, nil)
	if err != nil {
		return nil, err
	}
	authURL := gjson.GetBytes(data, "authorizationUrl").String()
	if authURL == "" {
		authURL = gjson.GetBytes(data, "authorization_url").String()
	}
	state := gjson.GetBytes(data, "state").String()
	if strings.TrimSpace(authURL) == "" {
		return nil, fmt.Errorf("backend: initiate response carries no authorization URL")
	}
	return &Initiation{AuthorizationURL: authURL, State: state}, nil
}

// ExchangeCode swaps an authorization code and state for a bearer token on an
// exchange-mode provider. Every failure mode collapses to an error; the caller
// maps it to the exchange_failed outcome.
func (c *Client) ExchangeCode(ctx context.Context, exchangePath, code, state string) (string, error) {
	body, err := json.Marshal(map[string]string{"code": code, "state": state})
	if err != nil {
		return "", fmt.Errorf("backend: marshal exchange body: %w", err)
	}
	data, err := c.doJSON(ctx, "", http.MethodPost, exchangePath, body)
	if err != nil {
		return "", err
	}
	tok := gjson.GetBytes(data, "token").String()
	if tok == "" {
		tok = gjson.GetBytes(data, "accessToken").String()
	}
	if strings.TrimSpace(tok) == "" {
		return "", fmt.Errorf("backend: exchange response carries no token")
	}
	return tok, nil
}
