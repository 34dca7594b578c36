package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"jmapclient/internal/common/logger"
	"jmapclient/internal/credential"
)

// Token is a bearer token as returned by a RefreshFunc.
type Token = credential.Token

// RefreshFunc obtains a fresh bearer token.
type RefreshFunc func(ctx context.Context) (*Token, error)

// TokenStore persists bearer tokens between runs. credential.Keyring
// implements it.
type TokenStore interface {
	Load(key string) (*Token, error)
	Save(key string, tok *Token) error
	Delete(key string) error
}

// TokenSourceRefresher adapts an OAuth2 token source. The source must mint a
// new token on every call; wrap it with oauth2.ReuseTokenSource only if the
// server's expiry is trusted.
func TokenSourceRefresher(ts oauth2.TokenSource) RefreshFunc {
	return func(ctx context.Context) (*Token, error) {
		t, err := ts.Token()
		if err != nil {
			return nil, err
		}
		return &Token{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, Expiry: t.Expiry}, nil
	}
}

// authenticator attaches credentials to requests and owns the bearer token
// lifecycle: proactive refresh before expiry, reactive refresh after a 401,
// and expiry of the session when a refresh fails.
type authenticator struct {
	mode     AuthMode
	username string
	refresh  RefreshFunc
	store    TokenStore
	storeKey string
	margin   time.Duration
	minDelay time.Duration
	logger   *slog.Logger

	// onExpired is called once per failed refresh.
	onExpired func(error)

	group singleflight.Group

	mu       sync.Mutex
	password string
	otp      string
	token    string
	timer    *time.Timer
}

func newAuthenticator(cfg *Config, log *slog.Logger) *authenticator {
	key := cfg.TokenKey
	if key == "" {
		key = credential.TokenKey(cfg.Server, cfg.Username)
	}
	return &authenticator{
		mode:     cfg.AuthMethod,
		username: cfg.Username,
		password: cfg.Password,
		otp:      cfg.OTP,
		token:    cfg.AccessToken,
		refresh:  cfg.Refresh,
		store:    cfg.TokenStore,
		storeKey: key,
		margin:   cfg.RefreshMargin,
		minDelay: cfg.MinRefreshDelay,
		logger:   log,
	}
}

// apply sets the Authorization header and returns the bearer token used, if
// any.
func (a *authenticator) apply(req *http.Request) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.mode {
	case AuthBasic:
		password := a.password
		if a.otp != "" {
			password += "$" + a.otp
		}
		req.SetBasicAuth(a.username, password)
		return ""
	case AuthBearer:
		if a.token != "" {
			req.Header.Set("Authorization", "Bearer "+a.token)
		}
		return a.token
	}
	return ""
}

func (a *authenticator) canRefresh() bool {
	return a.mode == AuthBearer && a.refresh != nil
}

func (a *authenticator) currentToken() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token
}

// refreshAfter replaces the token stale. Concurrent callers share a single
// refresh; a caller whose stale token was already replaced gets the current
// token without another network round trip. A failed refresh expires the
// session.
func (a *authenticator) refreshAfter(ctx context.Context, stale string) (string, error) {
	if !a.canRefresh() {
		return "", fmt.Errorf("%w: no refresh function configured", ErrSessionExpired)
	}
	v, err, _ := a.group.Do("refresh", func() (interface{}, error) {
		if cur := a.currentToken(); cur != "" && cur != stale {
			return cur, nil
		}

		logger.LogDebug(a.logger, "Refreshing access token")
		tok, err := a.refresh(context.WithoutCancel(ctx))
		if err == nil && (tok == nil || tok.AccessToken == "") {
			err = errors.New("refresh returned no access token")
		}
		if err != nil {
			tokenRefreshesTotal.WithLabelValues("failure").Inc()
			a.expire(err)
			return nil, err
		}

		tokenRefreshesTotal.WithLabelValues("success").Inc()
		a.install(tok)
		logger.LogInfo(a.logger, "Access token refreshed")
		return tok.AccessToken, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: token refresh failed: %w", ErrSessionExpired, err)
	}
	return v.(string), nil
}

// install makes tok current, persists it and schedules its refresh.
func (a *authenticator) install(tok *Token) {
	a.mu.Lock()
	a.token = tok.AccessToken
	a.mu.Unlock()

	lifetime := tokenLifetime(tok)
	a.persist(tok, lifetime)
	a.schedule(lifetime)
}

// start schedules the refresh of the configured token after a successful
// connect.
func (a *authenticator) start(initialLifetime time.Duration) {
	if a.mode != AuthBearer {
		return
	}
	tok := &Token{AccessToken: a.currentToken(), ExpiresIn: initialLifetime}
	lifetime := tokenLifetime(tok)
	a.persist(tok, lifetime)
	a.schedule(lifetime)
}

func (a *authenticator) persist(tok *Token, lifetime time.Duration) {
	if a.store == nil || tok.AccessToken == "" {
		return
	}
	saved := *tok
	if saved.Expiry.IsZero() && lifetime > 0 {
		saved.Expiry = time.Now().Add(lifetime)
	}
	if err := a.store.Save(a.storeKey, &saved); err != nil {
		logger.LogWarn(a.logger, "Failed to persist access token", "error", err)
	}
}

// schedule arms the proactive refresh timer.
func (a *authenticator) schedule(lifetime time.Duration) {
	if lifetime <= 0 || !a.canRefresh() {
		return
	}
	delay := lifetime - a.margin
	if delay < a.minDelay {
		delay = a.minDelay
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
	stale := a.token
	a.timer = time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := a.refreshAfter(ctx, stale); err != nil {
			logger.LogWarn(a.logger, "Scheduled token refresh failed", "error", err)
		}
	})
	logger.LogDebug(a.logger, "Token refresh scheduled", "in", delay)
}

func (a *authenticator) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// expire clears the credentials, stops the timer and notifies the client.
func (a *authenticator) expire(cause error) {
	a.mu.Lock()
	a.token = ""
	a.password = ""
	a.otp = ""
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	if a.store != nil {
		if err := a.store.Delete(a.storeKey); err != nil {
			logger.LogWarn(a.logger, "Failed to delete stored token", "error", err)
		}
	}
	logger.LogError(a.logger, "Session expired", "error", cause)
	if a.onExpired != nil {
		a.onExpired(cause)
	}
}

// restore loads the persisted token. An expired token is refreshed when
// possible.
func (a *authenticator) restore(ctx context.Context) error {
	if a.store == nil {
		return errors.New("no token store configured")
	}
	tok, err := a.store.Load(a.storeKey)
	if err != nil {
		return err
	}
	if tok.Valid() {
		a.mu.Lock()
		a.token = tok.AccessToken
		a.mu.Unlock()
		return nil
	}
	if !a.canRefresh() {
		return fmt.Errorf("%w: stored token has expired", ErrSessionExpired)
	}
	_, err = a.refreshAfter(ctx, tok.AccessToken)
	return err
}

// tokenLifetime returns how long tok stays valid, or 0 when unknown.
func tokenLifetime(tok *Token) time.Duration {
	switch {
	case tok.ExpiresIn > 0:
		return tok.ExpiresIn
	case !tok.Expiry.IsZero():
		return time.Until(tok.Expiry)
	default:
		return jwtLifetime(tok.AccessToken)
	}
}

// jwtLifetime reads the exp claim of a JWT without verifying it. Opaque
// tokens yield 0.
func jwtLifetime(token string) time.Duration {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0
	}
	if claims.ExpiresAt == nil {
		return 0
	}
	return time.Until(claims.ExpiresAt.Time)
}
