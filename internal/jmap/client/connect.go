package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"jmapclient/internal/common/logger"
	"jmapclient/internal/common/security"
	"jmapclient/internal/jmap/protocol"
)

const probeTimeout = 5 * time.Second

// Connect discovers the session, selects the primary account and starts the
// keep-alive. Connecting an already connected client replaces its session.
func (c *Client) Connect(ctx context.Context) (*protocol.Session, error) {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	logger.LogInfo(c.logger, "Connecting to JMAP server",
		"server", c.config.Server,
		"auth", string(c.config.AuthMethod),
		"username", security.MaskUsername(c.config.Username))

	session, err := c.fetchSession(ctx)
	if err != nil {
		logger.LogError(c.logger, "Connection failed", "error", err)
		return nil, err
	}
	accountId, err := session.SelectPrimaryAccount()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: disconnected while connecting", ErrNotConnected)
	}
	c.generation++
	c.keepAlive.Stop()
	previous := c.sync
	c.sync = nil
	c.session = session
	c.accountId = accountId
	c.sessionState = session.State
	c.stateChanged = false
	c.keepAlive = startLoop(c.config.KeepAliveInterval, c.keepAliveTick)
	c.mu.Unlock()

	previous.stop()
	c.auth.start(c.config.TokenExpiresIn)

	logger.LogInfo(c.logger, "Connected",
		"username", security.MaskEmail(session.Username),
		"account", accountId,
		"accounts", session.GetAccountCount(),
		"capabilities", len(session.Capabilities))
	return session, nil
}

// Reconnect drops the current session and connects again.
func (c *Client) Reconnect(ctx context.Context) (*protocol.Session, error) {
	c.Disconnect()
	return c.Connect(ctx)
}

// Restore loads the persisted bearer token and connects with it.
func (c *Client) Restore(ctx context.Context) (*protocol.Session, error) {
	if c.config.AuthMethod != AuthBearer {
		return nil, fmt.Errorf("session restore requires bearer authentication")
	}
	if err := c.auth.restore(ctx); err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	return c.Connect(ctx)
}

// Disconnect stops background work and forgets the session. It never fails
// and may be called any number of times. Requests in flight complete, but
// their effects on client state are discarded.
func (c *Client) Disconnect() {
	c.mu.Lock()
	wasConnected := c.session != nil
	c.generation++
	c.keepAlive.Stop()
	c.keepAlive = nil
	ss := c.sync
	c.sync = nil
	c.session = nil
	c.accountId = ""
	c.sessionState = ""
	c.stateChanged = false
	c.mu.Unlock()

	ss.stop()
	c.auth.stop()
	if wasConnected {
		logger.LogInfo(c.logger, "Disconnected")
	}
}

// expireSession runs after a failed token refresh.
func (c *Client) expireSession(cause error) {
	c.Disconnect()
	c.mu.Lock()
	fn := c.onSessionExpired
	c.mu.Unlock()
	if fn != nil {
		fn(fmt.Errorf("%w: %v", ErrSessionExpired, cause))
	}
}

func (c *Client) fetchSession(ctx context.Context) (*protocol.Session, error) {
	discoveryURL := protocol.DiscoveryURL(c.config.Server)
	logger.LogDebug(c.logger, "Fetching session", "url", discoveryURL)

	resp, err := c.do(ctx, c.httpClient, "session", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		if errors.Is(err, ErrFetchFailed) {
			return nil, c.probe(ctx, err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.probe(ctx, fmt.Errorf("%w: reading session: %v", ErrFetchFailed, err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		httpErrorsTotal.WithLabelValues("session").Inc()
		return nil, ErrInvalidCredentials
	case !isSuccess(resp.StatusCode):
		httpErrorsTotal.WithLabelValues("session").Inc()
		return nil, &ConnectError{StatusCode: resp.StatusCode, Body: truncate(body)}
	}

	session, err := protocol.ParseSession(body)
	if err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSession, &InvalidJSONError{Body: truncate(body), Err: err})
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if err := session.RewriteOrigin(protocol.ServerOrigin(c.config.Server)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return session, nil
}

// probe tells an unreachable host apart from a reachable one whose session
// endpoint failed at the network level. The probe is unauthenticated.
func (c *Client) probe(ctx context.Context, cause error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	origin := protocol.ServerOrigin(c.config.Server)
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(pctx, http.MethodHead, origin+"/", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHostUnreachable, cause)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.LogDebug(c.logger, "Probe failed", "origin", origin, "error", err)
		return fmt.Errorf("%w: %s: %v", ErrHostUnreachable, origin, cause)
	}
	drain(resp)
	logger.LogDebug(c.logger, "Probe answered", "origin", origin, "status", resp.StatusCode)
	return fmt.Errorf("%w: %s answered HEAD with %d: %v", ErrCORSBlocked, origin, resp.StatusCode, cause)
}

func (c *Client) keepAliveTick(ctx context.Context) {
	if err := c.Echo(ctx); err != nil && ctx.Err() == nil {
		logger.LogWarn(c.logger, "Keep-alive failed", "error", err)
	}
}
