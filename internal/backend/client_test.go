package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/publidesk/passerelle/internal/credential"
	"github.com/publidesk/passerelle/internal/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *credential.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store := credential.NewMemoryStore(time.Hour)
	return NewClient(srv.URL, 2*time.Second, store), store
}

func signedTestToken(t *testing.T, payload map[string]any) string {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	head := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256"}`))
	return head + "." + base64.RawURLEncoding.EncodeToString(data) + ".sig"
}

func TestBearerAttachedWhenCredentialPresent(t *testing.T) {
	t.Parallel()

	var gotAuth atomic.Value
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})
	ctx := context.Background()
	_ = store.Put(ctx, "s1", &credential.Credential{AccessToken: "tok-123"})

	if _, err := client.Do(ctx, "s1", http.MethodGet, "/projets", nil, ""); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got := gotAuth.Load(); got != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer tok-123")
	}
}

func TestNoHeaderWithoutCredential(t *testing.T) {
	t.Parallel()

	var gotAuth atomic.Value
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["Authorization"]
		gotAuth.Store(present)
		w.WriteHeader(http.StatusOK)
	})

	if _, err := client.Do(context.Background(), "s1", http.MethodGet, "/projets", nil, ""); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if present, _ := gotAuth.Load().(bool); present {
		t.Error("Authorization header must be omitted entirely without a credential")
	}
}

func TestEmptyTokenNeverSent(t *testing.T) {
	t.Parallel()

	var gotAuth atomic.Value
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["Authorization"]
		gotAuth.Store(present)
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()
	_ = store.Put(ctx, "s1", &credential.Credential{AccessToken: "   "})

	if _, err := client.Do(ctx, "s1", http.MethodGet, "/projets", nil, ""); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if present, _ := gotAuth.Load().(bool); present {
		t.Error("blank token must not produce an Authorization header")
	}
}

func Test401DestroysCredentialAndNotifies(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	ctx := context.Background()
	_ = store.Put(ctx, "s1", &credential.Credential{AccessToken: "stale"})

	var invalidated atomic.Value
	client.OnInvalidate(func(_ context.Context, sessionID string) {
		invalidated.Store(sessionID)
	})

	_, err := client.Do(ctx, "s1", http.MethodGet, "/projets", nil, "")
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("error = %v, want ErrSessionExpired", err)
	}
	if cred, _ := store.Get(ctx, "s1"); cred != nil {
		t.Error("credential must be destroyed after a 401")
	}
	if got := invalidated.Load(); got != "s1" {
		t.Errorf("invalidation hook got %v, want s1", got)
	}
	if calls.Load() != 1 {
		t.Errorf("backend called %d times, a 401 must never be retried", calls.Load())
	}
}

func TestNetworkFailureSurfacedNotRetried(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing is listening anymore
	store := credential.NewMemoryStore(time.Hour)
	client := NewClient(srv.URL, time.Second, store)

	_, err := client.Do(context.Background(), "", http.MethodGet, "/projets", nil, "")
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("error = %v, want ErrUnreachable", err)
	}
}

func TestLoginDerivesCredentialFromToken(t *testing.T) {
	t.Parallel()

	tok := signedTestToken(t, map[string]any{
		"user_id": 9,
		"email":   "jane@x.com",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/login" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"token": tok})
	})

	cred, err := client.Login(context.Background(), "jane@x.com", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if cred.User.Email != "jane@x.com" {
		t.Errorf("User.Email = %q", cred.User.Email)
	}
	if cred.AccessToken != tok {
		t.Error("AccessToken should be the backend token verbatim")
	}
}

func TestLoginWithoutTokenFails(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	})
	if _, err := client.Login(context.Background(), "a@b.com", "pw"); err == nil {
		t.Fatal("Login without a token in the response must fail")
	}
}

func TestStatusErrorsCarryCode(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	_, err := client.ListConnections(context.Background(), "")
	if !IsStatus(err, http.StatusBadGateway) {
		t.Fatalf("error = %v, want StatusError 502", err)
	}
}

func TestRequestIDPropagatedToBackend(t *testing.T) {
	t.Parallel()

	var gotID atomic.Value
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotID.Store(r.Header.Get("X-Request-Id"))
	})

	ctx := logging.WithRequestID(context.Background(), "ab12cd34")
	if _, err := client.Do(ctx, "", http.MethodGet, "/projets", nil, ""); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got := gotID.Load(); got != "ab12cd34" {
		t.Errorf("X-Request-Id = %v", got)
	}

	// Without an ID in the context the header stays absent.
	if _, err := client.Do(context.Background(), "", http.MethodGet, "/projets", nil, ""); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got := gotID.Load(); got != "" {
		t.Errorf("X-Request-Id without context id = %v", got)
	}
}
