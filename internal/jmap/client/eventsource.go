package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"jmapclient/internal/common/logger"
	"jmapclient/internal/jmap/protocol"
)

// eventSourcePing is the keep-alive interval requested from the server, in
// seconds.
const eventSourcePing = 30

// runStream subscribes to the event source. In auto mode a failed or ended
// stream falls back to polling; in eventsource mode it is retried after the
// poll interval.
func (ss *stateSync) runStream(ctx context.Context, session *protocol.Session) {
	for {
		err := ss.stream(ctx, session)
		if ctx.Err() != nil {
			return
		}
		if ss.mode == PushAuto {
			logger.LogWarn(ss.c.logger, "Event source unavailable, falling back to polling", "error", err)
			ss.startPolling()
			return
		}
		logger.LogWarn(ss.c.logger, "Event source ended, reconnecting", "error", err, "in", ss.interval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(ss.interval):
		}
	}
}

func (ss *stateSync) stream(ctx context.Context, session *protocol.Session) error {
	url, err := session.EventSourceURLFor("*", "no", eventSourcePing)
	if err != nil {
		return err
	}
	c := ss.c
	resp, err := c.do(ctx, c.streamClient, "eventsource", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")
		return req, nil
	})
	if err != nil {
		return err
	}
	if !isSuccess(resp.StatusCode) {
		return readError(resp, "eventsource")
	}
	defer resp.Body.Close()

	logger.LogDebug(c.logger, "Event source connected", "url", url)
	err = readEvents(resp.Body, func(event, data string) {
		if event != "state" {
			return
		}
		var change protocol.StateChange
		if err := json.Unmarshal([]byte(data), &change); err != nil {
			logger.LogWarn(c.logger, "Ignoring malformed state event", "error", err)
			return
		}
		ss.apply(trackedOnly(change.Changed), "push")
	})
	if err == nil {
		err = io.EOF
	}
	return fmt.Errorf("event source closed: %w", err)
}

// trackedOnly drops types outside the tracked set, such as EmailDelivery.
func trackedOnly(changed protocol.StateTable) protocol.StateTable {
	tracked := make(map[protocol.TypeKey]bool, len(protocol.TrackedTypes))
	for _, k := range protocol.TrackedTypes {
		tracked[k] = true
	}
	out := make(protocol.StateTable)
	for acct, types := range changed {
		for key, token := range types {
			if tracked[key] {
				out.Set(acct, key, token)
			}
		}
	}
	return out
}

// readEvents parses a text/event-stream and calls fn for every dispatched
// event. It returns when r is exhausted.
func readEvents(r io.Reader, fn func(event, data string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var event string
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if len(data) > 0 {
				if event == "" {
					event = "message"
				}
				fn(event, strings.Join(data, "\n"))
			}
			event, data = "", nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
		case "data":
			data = append(data, value)
		}
	}
	return scanner.Err()
}
