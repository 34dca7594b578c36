package client

import (
	"context"
	"fmt"
	"io"
	"time"

	"jmapclient/internal/jmap/protocol"
)

// utcDateLayout is the JMAP UTCDate format.
const utcDateLayout = "2006-01-02T15:04:05Z"

// EventQuery selects calendar events overlapping a time window.
type EventQuery struct {
	CalendarId protocol.Id
	After      time.Time
	Before     time.Time
	Text       string
	Limit      uint32
}

// GetCalendars lists the calendars of the primary calendars account.
func (c *Client) GetCalendars(ctx context.Context) ([]protocol.Calendar, error) {
	list, err := c.getCalendars(ctx)
	return degrade(c, "GetCalendars", list, err)
}

func (c *Client) getCalendars(ctx context.Context) ([]protocol.Calendar, error) {
	ns, err := c.accountFor(protocol.CalendarsCapability, "")
	if err != nil {
		return nil, err
	}
	var out protocol.GetResponse[protocol.Calendar]
	if err := c.call(ctx, protocol.MethodCalendarGet, protocol.GetRequest{AccountId: ns.AccountId}, &out); err != nil {
		return nil, fmt.Errorf("failed to get calendars: %w", err)
	}
	return out.List, nil
}

// CreateCalendar creates a calendar and returns its id.
func (c *Client) CreateCalendar(ctx context.Context, cal *protocol.Calendar) (protocol.Id, error) {
	ns, err := c.accountFor(protocol.CalendarsCapability, "")
	if err != nil {
		return "", err
	}
	create := *cal
	create.Id = ""
	cid := newCreationId()
	out, err := c.set(ctx, protocol.MethodCalendarSet, protocol.Args{
		"accountId": ns.AccountId,
		"create":    map[string]interface{}{cid: create},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create calendar %q: %w", cal.Name, err)
	}
	return out.CreatedId(cid)
}

// QueryEvents returns events in the window, sorted by start.
func (c *Client) QueryEvents(ctx context.Context, q EventQuery) ([]protocol.CalendarEvent, error) {
	list, err := c.queryEvents(ctx, q)
	return degrade(c, "QueryEvents", list, err)
}

func (c *Client) queryEvents(ctx context.Context, q EventQuery) ([]protocol.CalendarEvent, error) {
	ns, err := c.accountFor(protocol.CalendarsCapability, "")
	if err != nil {
		return nil, err
	}
	filter := protocol.Args{}
	if q.CalendarId != "" {
		filter["inCalendar"] = q.CalendarId
	}
	if !q.After.IsZero() {
		filter["after"] = q.After.UTC().Format(utcDateLayout)
	}
	if !q.Before.IsZero() {
		filter["before"] = q.Before.UTC().Format(utcDateLayout)
	}
	if q.Text != "" {
		filter["text"] = q.Text
	}
	limit := q.Limit
	if limit == 0 {
		limit = defaultQueryLimit
	}

	batch := protocol.NewBatch()
	query := protocol.QueryRequest{
		AccountId: ns.AccountId,
		Sort:      []protocol.SortOrder{{Property: "start", IsAscending: true}},
		Limit:     &limit,
	}
	if len(filter) > 0 {
		query.Filter = filter
	}
	queryCall, err := batch.Add(protocol.MethodCalendarEventQuery, query)
	if err != nil {
		return nil, err
	}
	ref, err := batch.Ref(queryCall, "/ids")
	if err != nil {
		return nil, err
	}
	getCall, err := batch.Add(protocol.MethodCalendarEventGet, protocol.Args{
		"accountId": ns.AccountId,
		"#ids":      ref,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.Request(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	var out protocol.GetResponse[protocol.CalendarEvent]
	if err := resp.Decode(getCall, &out); err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return out.List, nil
}

// CreateEvent creates an event and returns its id.
func (c *Client) CreateEvent(ctx context.Context, event *protocol.CalendarEvent) (protocol.Id, error) {
	ns, err := c.accountFor(protocol.CalendarsCapability, "")
	if err != nil {
		return "", err
	}
	if len(event.CalendarIds) == 0 {
		return "", fmt.Errorf("event needs at least one calendar")
	}
	create := *event
	create.Id = ""
	if create.Type == "" {
		create.Type = "Event"
	}
	cid := newCreationId()
	out, err := c.set(ctx, protocol.MethodCalendarEventSet, protocol.Args{
		"accountId": ns.AccountId,
		"create":    map[string]interface{}{cid: create},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create event: %w", err)
	}
	return out.CreatedId(cid)
}

// UpdateEvent applies a JMAP patch to an event, e.g. {"title": "Standup"}.
func (c *Client) UpdateEvent(ctx context.Context, id protocol.Id, patch protocol.Args) error {
	ns, raw, err := c.resolveIds(protocol.CalendarsCapability, []protocol.Id{id})
	if err != nil {
		return err
	}
	if _, err := c.set(ctx, protocol.MethodCalendarEventSet, protocol.Args{
		"accountId": ns.AccountId,
		"update":    map[protocol.Id]interface{}{raw[0]: patch},
	}); err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

// DestroyEvents deletes events.
func (c *Client) DestroyEvents(ctx context.Context, ids []protocol.Id) error {
	if len(ids) == 0 {
		return nil
	}
	ns, raw, err := c.resolveIds(protocol.CalendarsCapability, ids)
	if err != nil {
		return err
	}
	if _, err := c.set(ctx, protocol.MethodCalendarEventSet, protocol.Args{
		"accountId": ns.AccountId,
		"destroy":   raw,
	}); err != nil {
		return fmt.Errorf("failed to destroy events: %w", err)
	}
	return nil
}

// ParseCalendarEvents turns an uploaded iCalendar blob into event skeletons
// without storing them.
func (c *Client) ParseCalendarEvents(ctx context.Context, blobId protocol.Id) ([]protocol.CalendarEvent, error) {
	return parseBlob[protocol.CalendarEvent](ctx, c, protocol.MethodCalendarEventParse, protocol.CalendarsCapability, "", blobId)
}

// ImportCalendarFile uploads an iCalendar file and parses it.
func (c *Client) ImportCalendarFile(ctx context.Context, data io.Reader) ([]protocol.CalendarEvent, error) {
	ns, err := c.accountFor(protocol.CalendarsCapability, "")
	if err != nil {
		return nil, err
	}
	blob, err := c.UploadBlob(ctx, ns.AccountId, data, "text/calendar")
	if err != nil {
		return nil, fmt.Errorf("failed to upload calendar file: %w", err)
	}
	return parseBlob[protocol.CalendarEvent](ctx, c, protocol.MethodCalendarEventParse, protocol.CalendarsCapability, ns.AccountId, blob.BlobId)
}
