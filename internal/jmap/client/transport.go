package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"jmapclient/internal/common/logger"
)

// requestFunc builds a request. It is called again for the retry after a
// token refresh, so bodies must be replayable.
type requestFunc func(ctx context.Context) (*http.Request, error)

// do sends an authenticated request. In bearer mode with a refresh function,
// a 401 triggers one refresh and one retry with the new token.
func (c *Client) do(ctx context.Context, hc *http.Client, endpoint string, build requestFunc) (*http.Response, error) {
	resp, used, err := c.send(ctx, hc, endpoint, build)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || !c.auth.canRefresh() {
		return resp, nil
	}

	drain(resp)
	logger.LogDebug(c.logger, "Request unauthorized, refreshing token", "endpoint", endpoint)
	if _, err := c.auth.refreshAfter(ctx, used); err != nil {
		return nil, err
	}
	resp, _, err = c.send(ctx, hc, endpoint, build)
	return resp, err
}

func (c *Client) send(ctx context.Context, hc *http.Client, endpoint string, build requestFunc) (*http.Response, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}
	req, err := build(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	used := c.auth.apply(req)

	start := time.Now()
	resp, err := hc.Do(req)
	requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		httpErrorsTotal.WithLabelValues("network").Inc()
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", fmt.Errorf("%w: %s %s: %v", ErrFetchFailed, req.Method, req.URL.Redacted(), err)
	}
	return resp, used, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

// readError turns a non-2xx response into an HTTPError and closes the body.
func readError(resp *http.Response, kind string) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
	httpErrorsTotal.WithLabelValues(kind).Inc()
	return &HTTPError{StatusCode: resp.StatusCode, Body: truncate(body)}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
