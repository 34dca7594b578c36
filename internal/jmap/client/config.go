package client

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"jmapclient/internal/common/validation"
	"jmapclient/internal/common/version"
)

// AuthMode selects how requests are authenticated.
type AuthMode string

const (
	// AuthAuto picks bearer when an access token is configured, basic
	// otherwise.
	AuthAuto   AuthMode = "auto"
	AuthBasic  AuthMode = "basic"
	AuthBearer AuthMode = "bearer"
)

// PushMode selects how state changes are observed.
type PushMode string

const (
	// PushAuto streams from the event source and falls back to polling.
	PushAuto        PushMode = "auto"
	PushEventSource PushMode = "eventsource"
	PushPolling     PushMode = "polling"
)

// Config holds everything needed to talk to one JMAP server.
type Config struct {
	// Server is the base URL or host name of the JMAP server. The session
	// is discovered at {Server}/.well-known/jmap.
	Server string

	AuthMethod AuthMode
	Username   string
	Password   string
	// OTP is a one-time code appended to the password with a "$" separator.
	OTP string

	// AccessToken is the initial bearer token.
	AccessToken string
	// TokenExpiresIn is the known lifetime of AccessToken. When zero the
	// lifetime is read from the token's exp claim if it is a JWT.
	TokenExpiresIn time.Duration
	// Refresh obtains a new bearer token. Without it a 401 is final.
	Refresh RefreshFunc
	// TokenStore persists bearer tokens for Restore.
	TokenStore TokenStore
	// TokenKey names the token in TokenStore. Defaults to
	// credential.TokenKey(Server, Username).
	TokenKey string

	// HTTPClient overrides the client used for API calls. Streams use a
	// copy without a timeout.
	HTTPClient *http.Client
	Timeout    time.Duration
	SkipVerify bool
	ProxyURL   string
	UserAgent  string
	// RateLimit caps outgoing requests per second; 0 disables it.
	RateLimit float64

	KeepAliveInterval time.Duration
	PollInterval      time.Duration
	PushMode          PushMode

	// StrictReads makes list and query reads return errors instead of
	// empty results.
	StrictReads bool

	// RefreshMargin is how long before expiry a token is refreshed.
	RefreshMargin time.Duration
	// MinRefreshDelay is the shortest delay a proactive refresh is
	// scheduled with.
	MinRefreshDelay time.Duration
}

// NewConfig returns a Config for server with default settings.
func NewConfig(server string) *Config {
	return &Config{
		Server:            server,
		AuthMethod:        AuthAuto,
		Timeout:           30 * time.Second,
		UserAgent:         version.UserAgent(),
		KeepAliveInterval: 30 * time.Second,
		PollInterval:      15 * time.Second,
		PushMode:          PushAuto,
		RefreshMargin:     60 * time.Second,
		MinRefreshDelay:   10 * time.Second,
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if err := validation.ValidateServerURL(c.Server); err != nil {
		return err
	}
	if c.ProxyURL != "" {
		if err := validation.ValidateProxyURL(c.ProxyURL); err != nil {
			return err
		}
	}
	switch c.authMode() {
	case AuthBasic:
		if c.Username == "" {
			return fmt.Errorf("basic authentication requires a username")
		}
	case AuthBearer:
		if c.AccessToken == "" && c.Refresh == nil && c.TokenStore == nil {
			return fmt.Errorf("bearer authentication requires an access token or a refresh function")
		}
	default:
		return fmt.Errorf("invalid auth method: %s (valid: auto, basic, bearer)", c.AuthMethod)
	}
	switch c.PushMode {
	case "", PushAuto, PushEventSource, PushPolling:
	default:
		return fmt.Errorf("invalid push mode: %s (valid: auto, eventsource, polling)", c.PushMode)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative")
	}
	return nil
}

func (c *Config) authMode() AuthMode {
	switch mode := AuthMode(strings.ToLower(string(c.AuthMethod))); mode {
	case "", AuthAuto:
		if c.AccessToken != "" || c.Refresh != nil {
			return AuthBearer
		}
		return AuthBasic
	default:
		return mode
	}
}

func (c *Config) withDefaults() *Config {
	out := *c
	def := NewConfig(c.Server)
	if out.Timeout <= 0 {
		out.Timeout = def.Timeout
	}
	if out.UserAgent == "" {
		out.UserAgent = def.UserAgent
	}
	if out.KeepAliveInterval <= 0 {
		out.KeepAliveInterval = def.KeepAliveInterval
	}
	if out.PollInterval <= 0 {
		out.PollInterval = def.PollInterval
	}
	if out.PushMode == "" {
		out.PushMode = PushAuto
	}
	if out.RefreshMargin <= 0 {
		out.RefreshMargin = def.RefreshMargin
	}
	if out.MinRefreshDelay <= 0 {
		out.MinRefreshDelay = def.MinRefreshDelay
	}
	out.AuthMethod = c.authMode()
	return &out
}
