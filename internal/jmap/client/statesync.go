package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jmapclient/internal/common/logger"
	"jmapclient/internal/jmap/protocol"
)

// stateSync watches the state tokens of every tracked type in every account
// and reports changes to the client's OnStateChange callback. It owns either
// a poll loop or an event source stream.
type stateSync struct {
	c        *Client
	mode     PushMode
	interval time.Duration
	gen      uint64

	mu      sync.Mutex
	table   protocol.StateTable
	stopped bool
	cancel  context.CancelFunc
	poller  *backgroundLoop
}

// StartStateSync fetches a baseline of state tokens and starts watching for
// changes. A running sync is restarted. Concurrent calls leave exactly one
// sync running. The baseline uses ctx; background work runs until
// StopStateSync or Disconnect.
func (c *Client) StartStateSync(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	session, _, gen, err := c.snapshot()
	if err != nil {
		return err
	}
	c.StopStateSync()

	bg, cancel := context.WithCancel(context.Background())
	ss := &stateSync{
		c:        c,
		mode:     c.config.PushMode,
		interval: c.config.PollInterval,
		gen:      gen,
		table:    make(protocol.StateTable),
		cancel:   cancel,
	}

	baseline, err := c.fetchStates(ctx, session)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to fetch state baseline: %w", err)
	}
	ss.table.Apply(baseline)

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		cancel()
		return fmt.Errorf("%w: disconnected while starting state sync", ErrNotConnected)
	}
	prev := c.sync
	c.sync = ss
	c.mu.Unlock()
	prev.stop()

	useStream := ss.mode != PushPolling && session.EventSourceURL != ""
	if ss.mode == PushEventSource && session.EventSourceURL == "" {
		logger.LogWarn(c.logger, "Server has no event source, polling instead")
	}
	if useStream {
		go ss.runStream(bg, session)
	} else {
		ss.startPolling()
	}
	logger.LogInfo(c.logger, "State sync started", "stream", useStream, "accounts", len(baseline))
	return nil
}

// StopStateSync stops watching and forgets all state tokens.
func (c *Client) StopStateSync() {
	c.mu.Lock()
	ss := c.sync
	c.sync = nil
	c.mu.Unlock()
	ss.stop()
}

func (ss *stateSync) stop() {
	if ss == nil {
		return
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.stopped {
		return
	}
	ss.stopped = true
	ss.table = nil
	ss.cancel()
	ss.poller.Stop()
}

func (ss *stateSync) startPolling() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.stopped || ss.poller != nil {
		return
	}
	ss.poller = startLoop(ss.interval, ss.poll)
}

func (ss *stateSync) poll(ctx context.Context) {
	session, _, gen, err := ss.c.snapshot()
	if err != nil || gen != ss.gen {
		return
	}
	next, err := ss.c.fetchStates(ctx, session)
	if err != nil {
		if ctx.Err() == nil {
			logger.LogWarn(ss.c.logger, "State poll failed", "error", err)
		}
		return
	}
	ss.apply(next, "poll")
}

// apply diffs next against the known tokens and reports the difference.
// Results that arrive after stop or after a reconnect are dropped.
func (ss *stateSync) apply(next protocol.StateTable, source string) {
	ss.c.mu.Lock()
	current := ss.c.generation
	fn := ss.c.onStateChange
	ss.c.mu.Unlock()

	ss.mu.Lock()
	if ss.stopped || current != ss.gen {
		ss.mu.Unlock()
		return
	}
	change := ss.table.Apply(next)
	ss.mu.Unlock()

	if change == nil {
		return
	}
	stateChangesTotal.WithLabelValues(source).Inc()
	logger.LogDebug(ss.c.logger, "State changed", "source", source, "accounts", len(change.Changed))
	if fn != nil {
		fn(*change)
	}
}

type stateCall struct {
	callId    string
	accountId protocol.Id
	key       protocol.TypeKey
}

// fetchStates reads the state token of every tracked type in every account
// that supports it with cheap X/get calls for no ids. Calls that fail are
// left out of the table.
func (c *Client) fetchStates(ctx context.Context, session *protocol.Session) (protocol.StateTable, error) {
	type pending struct {
		accountId protocol.Id
		key       protocol.TypeKey
	}
	var all []pending
	for _, key := range protocol.TrackedTypes {
		for _, acct := range session.AccountsWithCapability(key.Capability()) {
			all = append(all, pending{acct, key})
		}
	}

	chunk := len(all)
	if core, err := session.GetCoreCapability(); err == nil && core.MaxCallsInRequest > 0 && core.MaxCallsInRequest < chunk {
		chunk = core.MaxCallsInRequest
	}

	table := make(protocol.StateTable)
	for start := 0; start < len(all); start += chunk {
		end := start + chunk
		if end > len(all) {
			end = len(all)
		}
		batch := protocol.NewBatch()
		calls := make([]stateCall, 0, end-start)
		for _, p := range all[start:end] {
			callId, err := batch.Add(p.key.GetMethod(), protocol.Args{
				"accountId":  p.accountId,
				"ids":        []protocol.Id{},
				"properties": []string{"id"},
			})
			if err != nil {
				return nil, err
			}
			calls = append(calls, stateCall{callId, p.accountId, p.key})
		}

		resp, err := c.Request(ctx, batch)
		if err != nil {
			return nil, err
		}
		for _, call := range calls {
			var out struct {
				State string `json:"state"`
			}
			if err := resp.Decode(call.callId, &out); err != nil || out.State == "" {
				logger.LogDebug(c.logger, "No state for type", "account", call.accountId, "type", call.key, "error", err)
				continue
			}
			table.Set(call.accountId, call.key, out.State)
		}
	}
	return table, nil
}
