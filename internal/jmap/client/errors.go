package client

import (
	"context"
	"errors"
	"fmt"

	"jmapclient/internal/common/retry"
)

var (
	// ErrInvalidCredentials is returned when the server rejects the
	// credentials with 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrHostUnreachable is returned when neither the session endpoint nor
	// the server origin answers.
	ErrHostUnreachable = errors.New("host unreachable")

	// ErrCORSBlocked is returned when the origin answers but the session
	// request failed at the network level, typically a cross-origin or
	// intermediary policy refusing it.
	ErrCORSBlocked = errors.New("host reachable but session request was blocked")

	ErrInvalidSession = errors.New("invalid session document")
	ErrFetchFailed    = errors.New("fetch failed")
	ErrNotConnected   = errors.New("not connected")
	ErrSessionExpired = errors.New("session expired")

	ErrCapabilityUnsupported = errors.New("capability not supported by server")
	ErrMailboxRoleMissing    = errors.New("mailbox role missing")
	ErrBlobNotParsable       = errors.New("blob is not parsable")
	ErrBlobNotFound          = errors.New("blob not found")
	ErrBlobTooLarge          = errors.New("blob exceeds server upload limit")
	ErrIdentityNotFound      = errors.New("no sending identity available")
	ErrForbidden             = errors.New("forbidden")
	ErrMailboxNameTooLong    = errors.New("mailbox name too long")
	ErrNotFound              = errors.New("object not found")
	ErrTooManyCalls          = errors.New("too many method calls in one request")
	ErrMixedAccounts         = errors.New("ids belong to different accounts")
)

const maxErrorBody = 512

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}

// ConnectError is a non-2xx answer to session discovery other than 401.
type ConnectError struct {
	StatusCode int
	Body       string
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("session discovery failed with HTTP %d", e.StatusCode)
}

// Retryable implements retry.Retryable.
func (e *ConnectError) Retryable() bool {
	return retry.IsHTTPRetryableStatus(e.StatusCode)
}

// HTTPError is a non-2xx answer to an API, upload or download request.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable implements retry.Retryable.
func (e *HTTPError) Retryable() bool {
	return retry.IsHTTPRetryableStatus(e.StatusCode)
}

// Is makes an unrecoverable 401 match ErrInvalidCredentials.
func (e *HTTPError) Is(target error) bool {
	return target == ErrInvalidCredentials && e.StatusCode == 401
}

// InvalidJSONError is returned when a response body is not valid JSON.
type InvalidJSONError struct {
	Body string
	Err  error
}

func (e *InvalidJSONError) Error() string {
	return fmt.Sprintf("invalid JSON response: %v", e.Err)
}

func (e *InvalidJSONError) Unwrap() error { return e.Err }

// MissingRoleError reports that an account has no mailbox with a role.
type MissingRoleError struct {
	AccountId string
	Role      string
}

func (e *MissingRoleError) Error() string {
	return fmt.Sprintf("account %s has no %s mailbox", e.AccountId, e.Role)
}

func (e *MissingRoleError) Is(target error) bool {
	return target == ErrMailboxRoleMissing
}

// CapabilityError reports an operation the session does not support.
type CapabilityError struct {
	Capability string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("server does not support %s", e.Capability)
}

func (e *CapabilityError) Is(target error) bool {
	return target == ErrCapabilityUnsupported
}

// IsConnectionFatal reports whether err means the connection itself is
// unusable, as opposed to one request failing.
func IsConnectionFatal(err error) bool {
	var ce *ConnectError
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrHostUnreachable),
		errors.Is(err, ErrCORSBlocked),
		errors.Is(err, ErrInvalidSession),
		errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrNotConnected),
		errors.As(err, &ce):
		return true
	}
	return false
}

// mustPropagate lists errors a degrading read still returns.
func mustPropagate(err error) bool {
	return IsConnectionFatal(err) ||
		errors.Is(err, ErrCapabilityUnsupported) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
