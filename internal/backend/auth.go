package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/publidesk/passerelle/internal/credential"
)

// Backend auth endpoint paths, owned by the backend and treated as opaque here.
const (
	pathLogin    = "/login"
	pathRegister = "/register"
	pathLogout   = "/logout"
	pathMe       = "/utilisateur/me"
)

// Login authenticates with email/password and derives a credential from the
// returned bearer token. The caller stores the credential under its session.
func (c *Client) Login(ctx context.Context, email, password string) (*credential.Credential, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("backend: marshal login body: %w", err)
	}
	data, err := c.doJSON(ctx, "", http.MethodPost, pathLogin, body)
	if err != nil {
		return nil, err
	}
	return credentialFromAuthResponse(data)
}

// Register creates an account and, when the backend returns a token, derives a
// credential the same way Login does.
func (c *Client) Register(ctx context.Context, email, password, name string) (*credential.Credential, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password, "name": name})
	if err != nil {
		return nil, fmt.Errorf("backend: marshal register body: %w", err)
	}
	data, err := c.doJSON(ctx, "", http.MethodPost, pathRegister, body)
	if err != nil {
		return nil, err
	}
	return credentialFromAuthResponse(data)
}

// Logout tells the backend the session ended, then destroys the local
// credential regardless of the backend's answer.
func (c *Client) Logout(ctx context.Context, sessionID string) error {
	_, err := c.doJSON(ctx, sessionID, http.MethodPost, pathLogout, nil)
	clearErr := c.ClearCredential(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrSessionExpired) {
		return err
	}
	return clearErr
}

// Me fetches the backend's view of the current user, raw JSON passed through.
func (c *Client) Me(ctx context.Context, sessionID string) ([]byte, error) {
	return c.doJSON(ctx, sessionID, http.MethodGet, pathMe, nil)
}

// credentialFromAuthResponse pulls the bearer token out of an auth response.
// The backend has emitted both {"token": ...} and {"accessToken": ...} shapes.
func credentialFromAuthResponse(data []byte) (*credential.Credential, error) {
	tok := gjson.GetBytes(data, "token").String()
	if tok == "" {
		tok = gjson.GetBytes(data, "accessToken").String()
	}
	if strings.TrimSpace(tok) == "" {
		return nil, fmt.Errorf("backend: auth response carries no token")
	}
	return credential.FromToken(tok)
}
