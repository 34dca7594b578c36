package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"jmapclient/internal/credential"
)

func TestConnect_RewritesSessionOrigin(t *testing.T) {
	f := newFakeServer(t)
	c := connectedClient(t, f, nil)

	session := c.Session()
	if !strings.HasPrefix(session.APIURL, f.srv.URL+"/jmap/api/") {
		t.Errorf("APIURL = %q, want prefix %q", session.APIURL, f.srv.URL)
	}
	if !strings.Contains(session.UploadURL, "{accountId}") {
		t.Errorf("UploadURL = %q, template variables must survive the rewrite", session.UploadURL)
	}
	if got := c.AccountId(); got != "A1" {
		t.Errorf("AccountId() = %q, want %q", got, "A1")
	}
	if !c.Connected() {
		t.Error("Connected() = false after Connect")
	}
	if err := c.Echo(t.Context()); err != nil {
		t.Errorf("Echo() error = %v", err)
	}
}

func TestConnect_InvalidCredentials(t *testing.T) {
	f := newFakeServer(t)
	c := newTestClient(t, f, func(cfg *Config) { cfg.Password = "wrong" })

	_, err := c.Connect(t.Context())
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Connect() error = %v, want ErrInvalidCredentials", err)
	}
	if !IsConnectionFatal(err) {
		t.Error("IsConnectionFatal() = false for invalid credentials")
	}
	if c.Connected() {
		t.Error("Connected() = true after failed Connect")
	}
}

func TestConnect_OTPAppendedToPassword(t *testing.T) {
	f := newFakeServer(t)
	f.set(func(f *fakeServer) { f.password = "secret$123456" })

	c := newTestClient(t, f, func(cfg *Config) { cfg.OTP = "123456" })
	if _, err := c.Connect(t.Context()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
}

func TestConnect_StatusError(t *testing.T) {
	f := newFakeServer(t)
	f.set(func(f *fakeServer) { f.sessionStatus = http.StatusServiceUnavailable })
	c := newTestClient(t, f, nil)

	_, err := c.Connect(t.Context())
	var ce *ConnectError
	if !errors.As(err, &ce) {
		t.Fatalf("Connect() error = %v, want *ConnectError", err)
	}
	if ce.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want %d", ce.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestConnect_InvalidSession(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantJSON bool
	}{
		{"not json", "<html>login</html>", true},
		{"no accounts", `{"capabilities":{"urn:ietf:params:jmap:core":{}},"accounts":{},"apiUrl":"/api/"}`, false},
		{"no api url", `{"capabilities":{"urn:ietf:params:jmap:core":{}},"accounts":{"A":{"name":"a"}}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			cfg := NewConfig(srv.URL)
			cfg.Username = "user"
			c, err := New(cfg, nil)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			_, err = c.Connect(t.Context())
			if !errors.Is(err, ErrInvalidSession) {
				t.Fatalf("Connect() error = %v, want ErrInvalidSession", err)
			}
			var je *InvalidJSONError
			if got := errors.As(err, &je); got != tt.wantJSON {
				t.Errorf("errors.As(InvalidJSONError) = %v, want %v", got, tt.wantJSON)
			}
		})
	}
}

func TestConnect_HostUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	cfg := NewConfig(addr)
	cfg.Username = "user"
	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = c.Connect(t.Context())
	if !errors.Is(err, ErrHostUnreachable) {
		t.Fatalf("Connect() error = %v, want ErrHostUnreachable", err)
	}
}

func TestConnect_ReachableButBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/.well-known/jmap" {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("response writer cannot hijack")
				return
			}
			conn, _, err := hj.Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := NewConfig(srv.URL)
	cfg.Username = "user"
	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = c.Connect(t.Context())
	if !errors.Is(err, ErrCORSBlocked) {
		t.Fatalf("Connect() error = %v, want ErrCORSBlocked", err)
	}
	if errors.Is(err, ErrHostUnreachable) {
		t.Error("reachable host reported as unreachable")
	}
}

func TestDisconnect_Idempotent(t *testing.T) {
	f := newFakeServer(t)
	c := connectedClient(t, f, nil)

	c.Disconnect()
	c.Disconnect()

	if c.Connected() {
		t.Error("Connected() = true after Disconnect")
	}
	if got := c.AccountId(); got != "" {
		t.Errorf("AccountId() = %q after Disconnect, want empty", got)
	}
	if err := c.Echo(t.Context()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Echo() error = %v, want ErrNotConnected", err)
	}
}

func TestReconnect(t *testing.T) {
	f := newFakeServer(t)
	c := connectedClient(t, f, nil)

	f.set(func(f *fakeServer) { f.sessionState = "s2" })
	session, err := c.Reconnect(t.Context())
	if err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	if session.State != "s2" {
		t.Errorf("State = %q, want %q", session.State, "s2")
	}
	if c.SessionStateChanged() {
		t.Error("SessionStateChanged() = true right after reconnect")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty server", func(c *Config) { c.Server = "" }},
		{"basic without username", func(c *Config) { c.AuthMethod = AuthBasic; c.Username = "" }},
		{"bearer without token", func(c *Config) { c.AuthMethod = AuthBearer }},
		{"unknown auth", func(c *Config) { c.AuthMethod = "kerberos" }},
		{"unknown push mode", func(c *Config) { c.PushMode = "websocket" }},
		{"negative rate limit", func(c *Config) { c.RateLimit = -1 }},
		{"bad proxy", func(c *Config) { c.ProxyURL = "ftp://proxy" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("jmap.example.com")
			cfg.Username = "user"
			tt.mutate(cfg)
			if _, err := New(cfg, nil); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestConfig_AuthModeResolution(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want AuthMode
	}{
		{"password", Config{Username: "u", Password: "p"}, AuthBasic},
		{"token", Config{AccessToken: "t"}, AuthBearer},
		{"refresh only", Config{Refresh: func(context.Context) (*Token, error) { return nil, nil }}, AuthBearer},
		{"explicit basic", Config{AuthMethod: "BASIC", AccessToken: "t"}, AuthBasic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.authMode(); got != tt.want {
				t.Errorf("authMode() = %q, want %q", got, tt.want)
			}
		})
	}
}

type memStore struct {
	mu     sync.Mutex
	tokens map[string]Token
}

func newMemStore() *memStore {
	return &memStore{tokens: map[string]Token{}}
}

func (m *memStore) Load(key string) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[key]
	if !ok {
		return nil, credential.ErrNotFound
	}
	return &tok, nil
}

func (m *memStore) Save(key string, tok *Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[key] = *tok
	return nil
}

func (m *memStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, key)
	return nil
}

func (m *memStore) token(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[key].AccessToken
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func bearerClient(t *testing.T, f *fakeServer, refresh RefreshFunc, mutate func(*Config)) *Client {
	t.Helper()
	f.set(func(f *fakeServer) { f.token = "old" })
	return newTestClient(t, f, func(cfg *Config) {
		cfg.AuthMethod = AuthBearer
		cfg.Username = ""
		cfg.Password = ""
		cfg.AccessToken = "old"
		cfg.Refresh = refresh
		if mutate != nil {
			mutate(cfg)
		}
	})
}

func TestRefresh_ConcurrentUnauthorizedRequestsShareOneRefresh(t *testing.T) {
	f := newFakeServer(t)
	var refreshes atomic.Int32
	c := bearerClient(t, f, func(ctx context.Context) (*Token, error) {
		refreshes.Add(1)
		time.Sleep(50 * time.Millisecond)
		return &Token{AccessToken: "new"}, nil
	}, nil)
	if _, err := c.Connect(t.Context()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	f.set(func(f *fakeServer) { f.token = "new" })

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Echo(t.Context())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Echo() error = %v", err)
		}
	}
	if got := refreshes.Load(); got != 1 {
		t.Errorf("refreshes = %d, want 1", got)
	}
	if got := c.auth.currentToken(); got != "new" {
		t.Errorf("current token = %q, want %q", got, "new")
	}
}

func TestRefresh_FailureExpiresSession(t *testing.T) {
	f := newFakeServer(t)
	store := newMemStore()
	c := bearerClient(t, f, func(ctx context.Context) (*Token, error) {
		return nil, errors.New("refresh token revoked")
	}, func(cfg *Config) {
		cfg.TokenStore = store
		cfg.TokenKey = "test"
	})
	expired := make(chan error, 1)
	c.OnSessionExpired(func(err error) { expired <- err })

	if _, err := c.Connect(t.Context()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if got := store.token("test"); got != "old" {
		t.Errorf("stored token = %q, want %q", got, "old")
	}

	f.set(func(f *fakeServer) { f.token = "new" })
	err := c.Echo(t.Context())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Echo() error = %v, want ErrSessionExpired", err)
	}
	if !IsConnectionFatal(err) {
		t.Error("IsConnectionFatal() = false for expired session")
	}

	select {
	case err := <-expired:
		if !errors.Is(err, ErrSessionExpired) {
			t.Errorf("expiry callback error = %v, want ErrSessionExpired", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("expiry callback not called")
	}
	if c.Connected() {
		t.Error("Connected() = true after session expiry")
	}
	if got := store.token("test"); got != "" {
		t.Errorf("stored token = %q after expiry, want it deleted", got)
	}
}

func TestRefresh_ScheduledBeforeExpiry(t *testing.T) {
	f := newFakeServer(t)
	store := newMemStore()
	c := bearerClient(t, f, func(ctx context.Context) (*Token, error) {
		f.set(func(f *fakeServer) { f.token = "new" })
		return &Token{AccessToken: "new", ExpiresIn: time.Hour}, nil
	}, func(cfg *Config) {
		cfg.TokenExpiresIn = 50 * time.Millisecond
		cfg.RefreshMargin = time.Millisecond
		cfg.MinRefreshDelay = 10 * time.Millisecond
		cfg.TokenStore = store
		cfg.TokenKey = "test"
	})
	if _, err := c.Connect(t.Context()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	waitFor(t, "scheduled refresh", func() bool { return store.token("test") == "new" })
	if err := c.Echo(t.Context()); err != nil {
		t.Errorf("Echo() after scheduled refresh error = %v", err)
	}
}

func TestRestore(t *testing.T) {
	t.Run("valid stored token", func(t *testing.T) {
		f := newFakeServer(t)
		f.set(func(f *fakeServer) { f.token = "stored" })
		store := newMemStore()
		_ = store.Save("k", &Token{AccessToken: "stored", Expiry: time.Now().Add(time.Hour)})

		c := newTestClient(t, f, func(cfg *Config) {
			cfg.AuthMethod = AuthBearer
			cfg.TokenStore = store
			cfg.TokenKey = "k"
		})
		if _, err := c.Restore(t.Context()); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if !c.Connected() {
			t.Error("Connected() = false after Restore")
		}
	})

	t.Run("expired token is refreshed", func(t *testing.T) {
		f := newFakeServer(t)
		f.set(func(f *fakeServer) { f.token = "fresh" })
		store := newMemStore()
		_ = store.Save("k", &Token{AccessToken: "stale", Expiry: time.Now().Add(-time.Minute)})

		c := newTestClient(t, f, func(cfg *Config) {
			cfg.AuthMethod = AuthBearer
			cfg.TokenStore = store
			cfg.TokenKey = "k"
			cfg.Refresh = func(context.Context) (*Token, error) {
				return &Token{AccessToken: "fresh", ExpiresIn: time.Hour}, nil
			}
		})
		if _, err := c.Restore(t.Context()); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if got := store.token("k"); got != "fresh" {
			t.Errorf("stored token = %q, want %q", got, "fresh")
		}
	})

	t.Run("expired token without refresh", func(t *testing.T) {
		f := newFakeServer(t)
		store := newMemStore()
		_ = store.Save("k", &Token{AccessToken: "stale", Expiry: time.Now().Add(-time.Minute)})

		c := newTestClient(t, f, func(cfg *Config) {
			cfg.AuthMethod = AuthBearer
			cfg.TokenStore = store
			cfg.TokenKey = "k"
		})
		if _, err := c.Restore(t.Context()); !errors.Is(err, ErrSessionExpired) {
			t.Errorf("Restore() error = %v, want ErrSessionExpired", err)
		}
	})

	t.Run("basic auth", func(t *testing.T) {
		f := newFakeServer(t)
		c := newTestClient(t, f, nil)
		if _, err := c.Restore(t.Context()); err == nil {
			t.Error("Restore() error = nil for basic auth")
		}
	})
}

func TestTokenLifetime(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(2 * time.Minute)),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	tests := []struct {
		name     string
		tok      Token
		min, max time.Duration
	}{
		{"expires in", Token{AccessToken: "opaque", ExpiresIn: time.Hour}, time.Hour, time.Hour},
		{"expiry", Token{AccessToken: "opaque", Expiry: time.Now().Add(10 * time.Minute)}, 9 * time.Minute, 10 * time.Minute},
		{"jwt exp claim", Token{AccessToken: signed}, 110 * time.Second, 2 * time.Minute},
		{"opaque", Token{AccessToken: "opaque"}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenLifetime(&tt.tok)
			if got < tt.min || got > tt.max {
				t.Errorf("tokenLifetime() = %v, want between %v and %v", got, tt.min, tt.max)
			}
		})
	}
}
