package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const pathConnections = "/utilisateur/plateformes"

// PlatformConnection mirrors the backend's UtilisateurPlateforme record. The
// gateway never constructs one on its own, it only reflects backend state.
type PlatformConnection struct {
	ID             int64           `json:"id"`
	UtilisateurID  int64           `json:"utilisateurId"`
	PlateformeID   int64           `json:"plateformeId"`
	PlateformeNom  string          `json:"plateformeNom"`
	ExternalID     string          `json:"externalId"`
	AccessToken    string          `json:"accessToken"`
	RefreshToken   string          `json:"refreshToken,omitempty"`
	TokenExpiresAt *time.Time      `json:"tokenExpiresAt,omitempty"`
	Actif          bool            `json:"actif"`
	Meta           json.RawMessage `json:"meta,omitempty"`
}

// Validity is the read-only answer to a connection validity probe.
type Validity struct {
	Valid     bool       `json:"valid"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// ListConnections fetches all platform connections for the session's user.
func (c *Client) ListConnections(ctx context.Context, sessionID string) ([]PlatformConnection, error) {
	data, err := c.doJSON(ctx, sessionID, http.MethodGet, pathConnections, nil)
	if err != nil {
		return nil, err
	}
	var conns []PlatformConnection
	if err = json.Unmarshal(data, &conns); err != nil {
		return nil, fmt.Errorf("backend: decode connections: %w", err)
	}
	return conns, nil
}

// DisconnectConnection revokes a platform connection.
func (c *Client) DisconnectConnection(ctx context.Context, sessionID string, id int64) error {
	_, err := c.doJSON(ctx, sessionID, http.MethodDelete, fmt.Sprintf("%s/%d", pathConnections, id), nil)
	return err
}

// RefreshConnectionToken asks the backend to mint a new access token from the
// stored refresh token and returns the updated connection.
func (c *Client) RefreshConnectionToken(ctx context.Context, sessionID string, id int64) (*PlatformConnection, error) {
	data, err := c.doJSON(ctx, sessionID, http.MethodPost, fmt.Sprintf("%s/%d/refresh", pathConnections, id), nil)
	if err != nil {
		return nil, err
	}
	var conn PlatformConnection
	if err = json.Unmarshal(data, &conn); err != nil {
		return nil, fmt.Errorf("backend: decode refreshed connection: %w", err)
	}
	return &conn, nil
}

// CheckConnectionValidity probes whether a connection's token is still valid.
// Read-only, mutates nothing on either side.
func (c *Client) CheckConnectionValidity(ctx context.Context, sessionID string, id int64) (*Validity, error) {
	data, err := c.doJSON(ctx, sessionID, http.MethodGet, fmt.Sprintf("%s/%d/validite", pathConnections, id), nil)
	if err != nil {
		return nil, err
	}
	validity := &Validity{Valid: gjson.GetBytes(data, "valid").Bool()}
	if raw := gjson.GetBytes(data, "expiresAt").String(); raw != "" {
		if t, errParse := time.Parse(time.RFC3339, raw); errParse == nil {
			validity.ExpiresAt = &t
		}
	}
	return validity, nil
}

// UpdateConnectionMeta patches a single key of a connection's meta document.
func (c *Client) UpdateConnectionMeta(ctx context.Context, sessionID string, id int64, key string, value any) (*PlatformConnection, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "meta."+key, value)
	if err != nil {
		return nil, fmt.Errorf("backend: build meta patch: %w", err)
	}
	data, err := c.doJSON(ctx, sessionID, http.MethodPut, fmt.Sprintf("%s/%d", pathConnections, id), body)
	if err != nil {
		return nil, err
	}
	var conn PlatformConnection
	if err = json.Unmarshal(data, &conn); err != nil {
		return nil, fmt.Errorf("backend: decode updated connection: %w", err)
	}
	return &conn, nil
}
