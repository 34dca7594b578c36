// Package retry retries transient failures with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

const maxDelay = 30 * time.Second

// Retryable is implemented by errors that know whether they are transient,
// such as HTTP status errors.
type Retryable interface {
	Retryable() bool
}

// transientMessages catch wrapped network errors that lost their type.
var transientMessages = []string{
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"temporary failure",
	"try again",
}

// IsRetryableError reports whether err is transient. Context cancellation is
// never retried. Errors implementing Retryable decide for themselves;
// otherwise network timeouts and dial/reset failures are retried.
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// IsHTTPRetryableStatus reports whether an HTTP status is worth retrying:
// 408, 429 and the 5xx gateway/availability codes.
func IsHTTPRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// backoff returns base * 2^attempt, capped at maxDelay.
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt >= 32 {
		return maxDelay
	}
	d := base << uint(attempt)
	if d <= 0 || d > maxDelay {
		return maxDelay
	}
	return d
}

// RetryWithBackoff runs operation, retrying transient failures up to
// maxRetries times. The delay doubles from baseDelay on each attempt.
//
//	err := retry.RetryWithBackoff(ctx, 3, 2*time.Second, logger, func() error {
//	    _, err := c.Connect(ctx)
//	    return err
//	})
func RetryWithBackoff(ctx context.Context, maxRetries int, baseDelay time.Duration, logger *slog.Logger, operation func() error) error {
	for attempt := 0; ; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 0 && logger != nil {
				logger.Info("Operation succeeded after retries", "retries", attempt)
			}
			return nil
		}
		if !IsRetryableError(err) {
			return err
		}
		if attempt >= maxRetries {
			return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
		}

		delay := backoff(baseDelay, attempt)
		if logger != nil {
			logger.Warn("Retryable error encountered",
				"attempt", attempt+1,
				"max_retries", maxRetries,
				"error", err,
				"retry_in", delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}
