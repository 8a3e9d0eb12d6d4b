// Package backend is the session gateway: the single choke point through which
// every outbound call to the publication backend passes. It attaches the
// bearer credential of the calling session, reacts to 401 responses by
// destroying the credential and notifying interested caches, and surfaces
// network failures to the caller without retrying.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/publidesk/passerelle/internal/credential"
	"github.com/publidesk/passerelle/internal/logging"
)

const apiPrefix = "/api"

// InvalidateFunc is notified when a session's credential is destroyed because
// the backend no longer accepts it. Used to drop user-scoped caches.
type InvalidateFunc func(ctx context.Context, sessionID string)

// Client talks to the publication backend on behalf of gateway sessions.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      credential.Store

	hookMu sync.RWMutex
	hooks  []InvalidateFunc
}

// NewClient builds a session gateway for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration, creds credential.Store) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
		creds:      creds,
	}
}

// OnInvalidate registers a hook run whenever a 401 destroys a session credential.
func (c *Client) OnInvalidate(fn InvalidateFunc) {
	if fn == nil {
		return
	}
	c.hookMu.Lock()
	c.hooks = append(c.hooks, fn)
	c.hookMu.Unlock()
}

// Credential returns the stored credential for the session, nil when absent.
func (c *Client) Credential(ctx context.Context, sessionID string) (*credential.Credential, error) {
	return c.creds.Get(ctx, sessionID)
}

// StoreCredential writes a credential for the session, replacing any existing one.
func (c *Client) StoreCredential(ctx context.Context, sessionID string, cred *credential.Credential) error {
	return c.creds.Put(ctx, sessionID, cred)
}

// ClearCredential destroys the session credential and runs the invalidation hooks.
func (c *Client) ClearCredential(ctx context.Context, sessionID string) error {
	err := c.creds.Clear(ctx, sessionID)
	c.runHooks(ctx, sessionID)
	return err
}

func (c *Client) runHooks(ctx context.Context, sessionID string) {
	c.hookMu.RLock()
	hooks := make([]InvalidateFunc, len(c.hooks))
	copy(hooks, c.hooks)
	c.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, sessionID)
	}
}

// Response carries the backend reply back to the call site.
type Response struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

// Do performs a backend API call for the given session. The bearer header is
// attached only when a credential is present; a missing credential sends no
// Authorization header at all. A 401 response destroys the session credential,
// fires the invalidation hooks and returns ErrSessionExpired.
func (c *Client) Do(ctx context.Context, sessionID, method, path string, body []byte, contentType string) (*Response, error) {
	target := c.baseURL + apiPrefix + path
	if _, err := url.Parse(target); err != nil {
		return nil, fmt.Errorf("backend: bad request path %q: %w", path, err)
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if requestID := logging.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}

	if sessionID != "" {
		cred, errCred := c.creds.Get(ctx, sessionID)
		if errCred != nil {
			return nil, fmt.Errorf("backend: load credential: %w", errCred)
		}
		if cred != nil && strings.TrimSpace(cred.AccessToken) != "" {
			req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnreachable, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnreachable, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		log.WithField("session", sessionID).Info("backend rejected credential, destroying session")
		if sessionID != "" {
			if errClear := c.ClearCredential(ctx, sessionID); errClear != nil {
				log.WithField("error", errClear).Warn("failed to clear credential after 401")
			}
		}
		return nil, ErrSessionExpired
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		Body:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// doJSON performs a call and rejects non-2xx statuses with a StatusError.
func (c *Client) doJSON(ctx context.Context, sessionID, method, path string, body []byte) ([]byte, error) {
	resp, err := c.Do(ctx, sessionID, method, path, body, "application/json")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return resp.Body, nil
}
