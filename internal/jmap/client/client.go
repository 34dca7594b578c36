// Package client is a stateful JMAP client: session discovery, batched
// method calls, blob transfer, typed resource operations, state change
// notification and the bearer token lifecycle.
//
// A Client is safe for concurrent use. Background work (keep-alive, state
// sync, token refresh) runs in goroutines owned by the client and stops on
// Disconnect.
package client

import (
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"jmapclient/internal/common/ratelimit"
	"jmapclient/internal/jmap/protocol"
)

// Client talks to one JMAP server.
type Client struct {
	config       *Config
	logger       *slog.Logger
	httpClient   *http.Client
	streamClient *http.Client
	limiter      *ratelimit.Limiter
	auth         *authenticator

	// startMu serializes StartStateSync.
	startMu sync.Mutex

	mu               sync.Mutex
	session          *protocol.Session
	accountId        protocol.Id
	generation       uint64
	sessionState     string
	stateChanged     bool
	keepAlive        *backgroundLoop
	sync             *stateSync
	onStateChange    func(protocol.StateChange)
	onSessionExpired func(error)
}

// New creates a client. It does not contact the server; call Connect.
func New(config *Config, log *slog.Logger) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg := config.withDefaults()

	httpClient, streamClient, err := newHTTPClients(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:       cfg,
		logger:       log,
		httpClient:   httpClient,
		streamClient: streamClient,
		limiter:      ratelimit.New(cfg.RateLimit),
		auth:         newAuthenticator(cfg, log),
	}
	c.auth.onExpired = c.expireSession
	return c, nil
}

func newHTTPClients(cfg *Config) (*http.Client, *http.Client, error) {
	if cfg.HTTPClient != nil {
		stream := *cfg.HTTPClient
		stream.Timeout = 0
		return cfg.HTTPClient, &stream, nil
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.SkipVerify,
		},
	}
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &http.Client{Transport: transport, Timeout: cfg.Timeout},
		&http.Client{Transport: transport}, nil
}

// Session returns the current session, or nil when not connected. The
// returned value must not be modified.
func (c *Client) Session() *protocol.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// AccountId returns the primary account id, or "" when not connected.
func (c *Client) AccountId() protocol.Id {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountId
}

// Connected reports whether a session is established.
func (c *Client) Connected() bool {
	return c.Session() != nil
}

// AuthMethod returns the resolved authentication mode.
func (c *Client) AuthMethod() AuthMode {
	return c.config.AuthMethod
}

// SessionStateChanged reports whether an API response carried a session
// state different from the one seen at connect. Callers may Reconnect to
// pick up the new session.
func (c *Client) SessionStateChanged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateChanged
}

// OnStateChange registers the callback for state changes, replacing any
// previous one. It is called from a background goroutine.
func (c *Client) OnStateChange(fn func(protocol.StateChange)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = fn
}

// OnSessionExpired registers a callback invoked when a token refresh fails
// and the session is dropped.
func (c *Client) OnSessionExpired(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSessionExpired = fn
}

// snapshot returns the session with the primary account and generation it
// belongs to.
func (c *Client) snapshot() (*protocol.Session, protocol.Id, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.APIURL == "" {
		return nil, "", 0, ErrNotConnected
	}
	return c.session, c.accountId, c.generation, nil
}
