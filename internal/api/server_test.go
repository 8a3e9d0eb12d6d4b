package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/publidesk/passerelle/internal/audit"
	"github.com/publidesk/passerelle/internal/backend"
	"github.com/publidesk/passerelle/internal/config"
	"github.com/publidesk/passerelle/internal/connections"
	"github.com/publidesk/passerelle/internal/credential"
	"github.com/publidesk/passerelle/internal/oauth"
)

type fixture struct {
	client  *http.Client
	baseURL string
	store   *credential.MemoryStore
	events  *recordingRecorder
}

// recordingRecorder captures audit events for assertions.
type recordingRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingRecorder) Record(_ context.Context, evt audit.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recordingRecorder) byAction(action string) []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Event
	for _, evt := range r.events {
		if evt.Action == action {
			out = append(out, evt)
		}
	}
	return out
}

func newFixture(t *testing.T, backendHandler http.HandlerFunc) *fixture {
	t.Helper()

	backendSrv := httptest.NewServer(backendHandler)
	t.Cleanup(backendSrv.Close)

	cfg := &config.Config{
		Backend: config.BackendConfig{BaseURL: backendSrv.URL},
		Session: config.SessionConfig{CookieName: "sid", Store: "memory"},
		Routes:  config.RoutesConfig{Landing: "/dashboard", Login: "/login"},
		Providers: []config.ProviderConfig{
			{Name: "google", Delivery: config.DeliveryToken, AuthorizeURL: backendSrv.URL + "/api/auth/google", ErrorDelaySeconds: 1},
			{Name: "x", Delivery: config.DeliveryToken, AuthorizeURL: backendSrv.URL + "/api/auth/x"},
			{Name: "facebook", Delivery: config.DeliveryCode, InitiatePath: "/auth/facebook/initiate", ExchangePath: "/auth/facebook/exchange"},
		},
	}

	store := credential.NewMemoryStore(time.Hour)
	events := &recordingRecorder{}
	gateway := backend.NewClient(backendSrv.URL, 2*time.Second, store)
	oauthSvc := oauth.NewService(cfg, gateway, events)
	connMgr := connections.NewManager(gateway, events, cfg.ConnectionsCacheTTL())
	server := NewServer(cfg, gateway, oauthSvc, connMgr, events)

	gatewaySrv := httptest.NewServer(server.Handler())
	t.Cleanup(gatewaySrv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &fixture{
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: gatewaySrv.URL,
		store:   store,
		events:  events,
	}
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := f.client.Get(f.baseURL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(data)
}

func mintToken(t *testing.T, payload map[string]any) string {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	head := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256"}`))
	return head + "." + base64.RawURLEncoding.EncodeToString(data) + ".sig"
}

func TestCallbackSuccessLandsOnDashboard(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	tok := mintToken(t, map[string]any{
		"user_id": 1,
		"email":   "jane@x.com",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	resp := f.get(t, "/oauth/google/callback?token="+url.QueryEscape(tok))
	_ = readBody(t, resp)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/dashboard" {
		t.Fatalf("Location = %q, want /dashboard", loc)
	}

	// The credential was stored before the redirect: the landing page renders.
	landing := f.get(t, "/dashboard")
	body := readBody(t, landing)
	if landing.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status = %d", landing.StatusCode)
	}
	if !strings.Contains(body, "jane@x.com") {
		t.Errorf("landing page missing user email: %s", body)
	}
}

func TestCallbackDeclinedShowsMessageThenRedirects(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})

	resp := f.get(t, "/oauth/google/callback?error=auth_denied")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want outcome page", resp.StatusCode)
	}
	if !strings.Contains(body, "refusé") {
		t.Errorf("page missing localized message: %s", body)
	}
	if !strings.Contains(body, "details=auth_denied") || !strings.Contains(body, "error=provider_error") {
		t.Errorf("page missing login redirect with encoded outcome: %s", body)
	}
	if !strings.Contains(body, `http-equiv="refresh" content="1;`) {
		t.Errorf("page missing the configured 1s delayed redirect: %s", body)
	}
}

func TestCallbackWithoutTokenNeverAuthenticates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})

	resp := f.get(t, "/oauth/google/callback")
	body := readBody(t, resp)
	if resp.StatusCode == http.StatusSeeOther {
		t.Fatal("empty callback must not navigate to the landing page")
	}
	if !strings.Contains(body, "details=no_token") {
		t.Errorf("outcome should encode no_token: %s", body)
	}

	dashboard := f.get(t, "/dashboard")
	_ = readBody(t, dashboard)
	if dashboard.StatusCode != http.StatusSeeOther {
		t.Fatalf("dashboard should bounce to login, status = %d", dashboard.StatusCode)
	}
}

func TestBackend401ForcesLogout(t *testing.T) {
	t.Parallel()

	var unauthorized atomic.Bool
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if unauthorized.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	tok := mintToken(t, map[string]any{
		"user_id": 1,
		"email":   "jane@x.com",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	_ = readBody(t, f.get(t, "/oauth/google/callback?token="+url.QueryEscape(tok)))

	unauthorized.Store(true)
	resp := f.get(t, "/api/projets")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if !strings.Contains(body, "session_expired") {
		t.Errorf("body = %s", body)
	}

	// The credential is gone: the next page render is the login screen.
	dashboard := f.get(t, "/dashboard")
	_ = readBody(t, dashboard)
	if dashboard.StatusCode != http.StatusSeeOther {
		t.Fatalf("dashboard after 401 should redirect to login, status = %d", dashboard.StatusCode)
	}
	if loc := dashboard.Header.Get("Location"); loc != "/login" {
		t.Errorf("Location = %q", loc)
	}
}

func TestLoginFlow(t *testing.T) {
	t.Parallel()

	tok := mintToken(t, map[string]any{
		"user_id": 4,
		"email":   "paul@x.com",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login":
			_ = json.NewEncoder(w).Encode(map[string]string{"token": tok})
		case "/api/utilisateur/me":
			if r.Header.Get("Authorization") != "Bearer "+tok {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"email": "paul@x.com"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	resp, err := f.client.Post(f.baseURL+"/auth/login", "application/json",
		strings.NewReader(`{"email":"paul@x.com","password":"secret"}`))
	if err != nil {
		t.Fatalf("POST /auth/login: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d: %s", resp.StatusCode, body)
	}

	me := f.get(t, "/auth/me")
	meBody := readBody(t, me)
	if me.StatusCode != http.StatusOK || !strings.Contains(meBody, "paul@x.com") {
		t.Fatalf("me = %d %s", me.StatusCode, meBody)
	}
}

func TestProxyPassesBackendResponseThrough(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/projets/7" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"id":7}`))
	})

	resp := f.get(t, "/api/projets/7")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusTeapot {
		t.Fatalf("status = %d, want backend status passed through", resp.StatusCode)
	}
	if !strings.Contains(body, `"id":7`) {
		t.Errorf("body = %s", body)
	}
}

func TestLoginPageShowsBanner(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	resp := f.get(t, "/login?error=provider_error&details=auth_denied")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "refusé") {
		t.Errorf("banner missing: %s", body)
	}
}

func TestMetaUpdateRoute(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/api/utilisateur/plateformes/7" {
			_, _ = w.Write([]byte(`{"id":7,"utilisateurId":9,"plateformeId":2,"plateformeNom":"X","externalId":"x-7","accessToken":"a","actif":true,"meta":{"libelle":"pro"}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	req, err := http.NewRequest(http.MethodPut, f.baseURL+"/api/connexions/7/meta",
		strings.NewReader(`{"key":"libelle","value":"pro"}`))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		t.Fatalf("PUT meta: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(body, `"libelle":"pro"`) {
		t.Errorf("body = %s", body)
	}

	// Missing key is rejected before any backend call.
	req, _ = http.NewRequest(http.MethodPut, f.baseURL+"/api/connexions/7/meta", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = f.client.Do(req)
	if err != nil {
		t.Fatalf("PUT meta: %v", err)
	}
	_ = readBody(t, resp)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty key status = %d, want 400", resp.StatusCode)
	}
}

func TestLogoutRecordsAuditEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	tok := mintToken(t, map[string]any{
		"user_id": 2,
		"email":   "lea@x.com",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	_ = readBody(t, f.get(t, "/oauth/google/callback?token="+url.QueryEscape(tok)))

	resp, err := f.client.Post(f.baseURL+"/auth/logout", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /auth/logout: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d: %s", resp.StatusCode, body)
	}

	events := f.events.byAction(audit.ActionLogout)
	if len(events) != 1 {
		t.Fatalf("logout events = %d, want 1", len(events))
	}
	if events[0].Outcome != "ok" {
		t.Errorf("outcome = %q", events[0].Outcome)
	}
}
