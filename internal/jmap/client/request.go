package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"jmapclient/internal/common/logger"
	"jmapclient/internal/jmap/protocol"
)

// Request sends a batch of method calls and returns the demultiplexed
// response. Method-level errors are left in the response for the caller to
// inspect with Response.Result or Response.Decode.
func (c *Client) Request(ctx context.Context, batch *protocol.Batch) (*protocol.Response, error) {
	session, _, gen, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	if batch.Len() == 0 {
		return nil, fmt.Errorf("empty batch")
	}
	if core, err := session.GetCoreCapability(); err == nil && core.MaxCallsInRequest > 0 && batch.Len() > int(core.MaxCallsInRequest) {
		return nil, fmt.Errorf("%w: %d calls, server allows %d", ErrTooManyCalls, batch.Len(), core.MaxCallsInRequest)
	}

	body, err := json.Marshal(batch.Request())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	for _, call := range batch.Calls() {
		methodCallsTotal.WithLabelValues(call.Name).Inc()
	}
	logger.LogDebug(c.logger, "Sending API request", "calls", batch.Len(), "bytes", len(body))

	resp, err := c.do(ctx, c.httpClient, "api", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, session.APIURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, readError(resp, "api")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading API response: %v", ErrFetchFailed, err)
	}
	var out protocol.Response
	if err := json.Unmarshal(data, &out); err != nil {
		httpErrorsTotal.WithLabelValues("json").Inc()
		return nil, &InvalidJSONError{Body: truncate(data), Err: err}
	}

	c.noteSessionState(gen, out.SessionState)
	return &out, nil
}

func (c *Client) noteSessionState(gen uint64, state string) {
	if state == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen || state == c.sessionState {
		return
	}
	logger.LogDebug(c.logger, "Session state changed", "old", c.sessionState, "new", state)
	c.sessionState = state
	c.stateChanged = true
}

// call sends a single method call and decodes its result into out.
func (c *Client) call(ctx context.Context, method string, args interface{}, out interface{}) error {
	batch := protocol.NewBatch()
	callId, err := batch.Add(method, args)
	if err != nil {
		return err
	}
	resp, err := c.Request(ctx, batch)
	if err != nil {
		return err
	}
	return resp.Decode(callId, out)
}

// set sends a single /set call and returns the response after checking it
// for per-object failures.
func (c *Client) set(ctx context.Context, method string, args protocol.Args) (*protocol.SetResponse, error) {
	var out protocol.SetResponse
	if err := c.call(ctx, method, args, &out); err != nil {
		return nil, err
	}
	if err := out.Err(); err != nil {
		return &out, classifySetError(err)
	}
	return &out, nil
}

// Echo sends Core/echo. The keep-alive uses it.
func (c *Client) Echo(ctx context.Context) error {
	ping := protocol.EchoArgs{Ping: "pong"}
	var out protocol.EchoArgs
	if err := c.call(ctx, protocol.MethodCoreEcho, ping, &out); err != nil {
		return err
	}
	if out.Ping != ping.Ping {
		return fmt.Errorf("echo returned %q", out.Ping)
	}
	return nil
}

// accountFor picks the account for an operation needing capability. An
// explicit account must exist in the session; otherwise the session's
// primary account for the capability is used, falling back to the client's
// primary account.
func (c *Client) accountFor(capability string, explicit protocol.Id) (protocol.Namespace, error) {
	session, primary, _, err := c.snapshot()
	if err != nil {
		return protocol.Namespace{}, err
	}
	if !session.HasCapability(capability) {
		return protocol.Namespace{}, &CapabilityError{Capability: capability}
	}
	ns := protocol.Namespace{AccountId: primary, Primary: primary}
	switch {
	case explicit != "":
		if _, ok := session.Accounts[explicit]; !ok {
			return protocol.Namespace{}, fmt.Errorf("%w: unknown account %s", ErrNotFound, explicit)
		}
		ns.AccountId = explicit
	default:
		if id, ok := session.PrimaryAccountFor(capability); ok {
			ns.AccountId = id
		}
	}
	return ns, nil
}

// resolveIds maps client ids back to raw server ids. All ids must belong to
// the same account.
func (c *Client) resolveIds(capability string, ids []protocol.Id) (protocol.Namespace, []protocol.Id, error) {
	ns, err := c.accountFor(capability, "")
	if err != nil {
		return ns, nil, err
	}
	if len(ids) == 0 {
		return ns, nil, nil
	}
	raw := make([]protocol.Id, len(ids))
	account := protocol.Id("")
	for i, id := range ids {
		a, r := protocol.ResolveID(id, ns.AccountId)
		if account != "" && a != account {
			return ns, nil, fmt.Errorf("%w: %s and %s", ErrMixedAccounts, account, a)
		}
		account = a
		raw[i] = r
	}
	if account != ns.AccountId {
		if ns, err = c.accountFor(capability, account); err != nil {
			return ns, nil, err
		}
	}
	return ns, raw, nil
}

func newCreationId() string {
	return uuid.NewString()
}

func idSet(ids []protocol.Id) map[protocol.Id]bool {
	out := make(map[protocol.Id]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
