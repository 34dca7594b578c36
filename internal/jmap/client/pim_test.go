package client

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"jmapclient/internal/jmap/protocol"
)

func TestCreateContact(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		f := newFakeServer(t)
		f.handle(protocol.MethodContactCardSet, setHandler(protocol.MethodContactCardSet, "card", setFailures{}))
		c := connectedClient(t, f, nil)

		id, err := c.CreateContact(t.Context(), &protocol.ContactCard{
			Id:   "ignored",
			Name: &protocol.ContactName{Full: "Ada Lovelace"},
		})
		if err != nil {
			t.Fatalf("CreateContact() error = %v", err)
		}
		if id != "card1" {
			t.Errorf("CreateContact() = %q, want %q", id, "card1")
		}

		var args setArgs
		decodeArgs(t, f.lastBatch()[0], &args)
		for _, raw := range args.Create {
			var card protocol.ContactCard
			if err := json.Unmarshal(raw, &card); err != nil {
				t.Fatalf("decoding card: %v", err)
			}
			if card.Type != "Card" || card.Version != "1.0" || card.Id != "" {
				t.Errorf("card = %+v, want @type Card, version 1.0 and no id", card)
			}
		}
	})

	t.Run("quota exceeded", func(t *testing.T) {
		f := newFakeServer(t)
		f.handle(protocol.MethodContactCardSet, setHandler(protocol.MethodContactCardSet, "card", setFailures{
			create: &protocol.SetError{Type: protocol.SetErrorOverQuota, Description: "quota exceeded"},
		}))
		c := connectedClient(t, f, nil)

		_, err := c.CreateContact(t.Context(), &protocol.ContactCard{Name: &protocol.ContactName{Full: "Ada"}})
		var se *protocol.SetError
		if !errors.As(err, &se) || se.Description != "quota exceeded" {
			t.Errorf("CreateContact() error = %v, want SetError quota exceeded", err)
		}
	})
}

func TestQueryContacts(t *testing.T) {
	f := newFakeServer(t)
	f.handle(protocol.MethodContactCardQuery, func(json.RawMessage) []reply {
		return respond(protocol.MethodContactCardQuery, map[string]interface{}{"accountId": "A1", "ids": []string{"c1"}})
	})
	f.handle(protocol.MethodContactCardGet, func(json.RawMessage) []reply {
		return respond(protocol.MethodContactCardGet, map[string]interface{}{
			"accountId": "A1",
			"list":      []map[string]interface{}{{"id": "c1", "name": map[string]string{"full": "Ada Lovelace"}}},
		})
	})
	c := connectedClient(t, f, nil)

	cards, err := c.QueryContacts(t.Context(), ContactQuery{AddressBookId: "ab1", Text: "ada"})
	if err != nil {
		t.Fatalf("QueryContacts() error = %v", err)
	}
	if len(cards) != 1 || cards[0].DisplayName() != "Ada Lovelace" {
		t.Errorf("QueryContacts() = %+v, want Ada Lovelace", cards)
	}

	var query struct {
		Filter map[string]string `json:"filter"`
	}
	decodeArgs(t, f.lastBatch()[0], &query)
	if query.Filter["inAddressBook"] != "ab1" || query.Filter["text"] != "ada" {
		t.Errorf("filter = %v, want inAddressBook ab1 and text ada", query.Filter)
	}
}

func TestQueryEvents_Filter(t *testing.T) {
	f := newFakeServer(t)
	f.handle(protocol.MethodCalendarEventQuery, func(json.RawMessage) []reply {
		return respond(protocol.MethodCalendarEventQuery, map[string]interface{}{"accountId": "A1", "ids": []string{}})
	})
	f.handle(protocol.MethodCalendarEventGet, func(json.RawMessage) []reply {
		return respond(protocol.MethodCalendarEventGet, map[string]interface{}{"accountId": "A1", "list": []interface{}{}})
	})
	c := connectedClient(t, f, nil)

	berlin := time.FixedZone("CET", 3600)
	_, err := c.QueryEvents(t.Context(), EventQuery{
		CalendarId: "cal1",
		After:      time.Date(2024, 5, 1, 1, 0, 0, 0, berlin),
		Before:     time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("QueryEvents() error = %v", err)
	}

	var query struct {
		Filter map[string]string    `json:"filter"`
		Sort   []protocol.SortOrder `json:"sort"`
	}
	decodeArgs(t, f.lastBatch()[0], &query)
	if got := query.Filter["after"]; got != "2024-05-01T00:00:00Z" {
		t.Errorf("after = %q, want %q", got, "2024-05-01T00:00:00Z")
	}
	if got := query.Filter["before"]; got != "2024-05-08T00:00:00Z" {
		t.Errorf("before = %q, want %q", got, "2024-05-08T00:00:00Z")
	}
	if query.Filter["inCalendar"] != "cal1" {
		t.Errorf("inCalendar = %q, want %q", query.Filter["inCalendar"], "cal1")
	}
	if len(query.Sort) != 1 || query.Sort[0].Property != "start" || !query.Sort[0].IsAscending {
		t.Errorf("sort = %+v, want start ascending", query.Sort)
	}
}

func TestCreateEvent(t *testing.T) {
	f := newFakeServer(t)
	f.handle(protocol.MethodCalendarEventSet, setHandler(protocol.MethodCalendarEventSet, "ev", setFailures{}))
	c := connectedClient(t, f, nil)

	if _, err := c.CreateEvent(t.Context(), &protocol.CalendarEvent{Title: "No calendar"}); err == nil {
		t.Error("CreateEvent() error = nil without calendarIds")
	}

	id, err := c.CreateEvent(t.Context(), &protocol.CalendarEvent{
		Title:       "Standup",
		Start:       "2024-05-02T09:00:00",
		Duration:    "PT15M",
		CalendarIds: map[protocol.Id]bool{"cal1": true},
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	if id != "ev1" {
		t.Errorf("CreateEvent() = %q, want %q", id, "ev1")
	}
	var args setArgs
	decodeArgs(t, f.lastBatch()[0], &args)
	for _, raw := range args.Create {
		var ev protocol.CalendarEvent
		_ = json.Unmarshal(raw, &ev)
		if ev.Type != "Event" {
			t.Errorf("@type = %q, want %q", ev.Type, "Event")
		}
	}
}

func TestImportCalendarFile(t *testing.T) {
	f := newFakeServer(t)
	f.handle(protocol.MethodCalendarEventParse, func(raw json.RawMessage) []reply {
		var a protocol.ParseArgs
		_ = json.Unmarshal(raw, &a)
		parsed := map[protocol.Id]interface{}{}
		for _, id := range a.BlobIds {
			parsed[id] = []map[string]string{{"title": "Offsite"}}
		}
		return respond(protocol.MethodCalendarEventParse, map[string]interface{}{"accountId": a.AccountId, "parsed": parsed})
	})
	c := connectedClient(t, f, nil)

	events, err := c.ImportCalendarFile(t.Context(), strings.NewReader("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	if err != nil {
		t.Fatalf("ImportCalendarFile() error = %v", err)
	}
	if len(events) != 1 || events[0].Title != "Offsite" {
		t.Errorf("ImportCalendarFile() = %+v, want one Offsite event", events)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.uploads) != 1 || f.uploads[0] != "text/calendar" {
		t.Errorf("uploads = %v, want one text/calendar", f.uploads)
	}
}

func TestSieve(t *testing.T) {
	t.Run("create and activate", func(t *testing.T) {
		f := newFakeServer(t)
		f.handle(protocol.MethodSieveScriptSet, setHandler(protocol.MethodSieveScriptSet, "sc", setFailures{}))
		c := connectedClient(t, f, nil)

		id, err := c.CreateSieveScript(t.Context(), "vacation", `require "vacation";`, true)
		if err != nil {
			t.Fatalf("CreateSieveScript() error = %v", err)
		}
		if id != "sc1" {
			t.Errorf("CreateSieveScript() = %q, want %q", id, "sc1")
		}

		var args struct {
			Create   map[string]map[string]string `json:"create"`
			Activate string                       `json:"onSuccessActivateScript"`
		}
		decodeArgs(t, f.lastBatch()[0], &args)
		for cid, script := range args.Create {
			if args.Activate != "#"+cid {
				t.Errorf("onSuccessActivateScript = %q, want %q", args.Activate, "#"+cid)
			}
			if script["blobId"] != "G1" {
				t.Errorf("blobId = %q, want the uploaded blob G1", script["blobId"])
			}
		}
	})

	t.Run("validate", func(t *testing.T) {
		f := newFakeServer(t)
		f.handle(protocol.MethodSieveScriptValidate, func(json.RawMessage) []reply {
			return respond(protocol.MethodSieveScriptValidate, map[string]interface{}{
				"accountId": "A1",
				"error":     map[string]string{"type": protocol.SetErrorInvalidScript, "description": "line 1: unknown command"},
			})
		})
		c := connectedClient(t, f, nil)

		err := c.ValidateSieveScript(t.Context(), "frobnicate;")
		var se *protocol.SetError
		if !errors.As(err, &se) || se.Type != protocol.SetErrorInvalidScript {
			t.Errorf("ValidateSieveScript() error = %v, want invalidScript", err)
		}
	})

	t.Run("content", func(t *testing.T) {
		f := newFakeServer(t)
		f.set(func(f *fakeServer) { f.blobs["B7"] = "keep;" })
		f.handle(protocol.MethodSieveScriptGet, func(json.RawMessage) []reply {
			return respond(protocol.MethodSieveScriptGet, map[string]interface{}{
				"accountId": "A1",
				"list":      []map[string]interface{}{{"id": "sc1", "name": "main", "blobId": "B7", "isActive": true}},
			})
		})
		c := connectedClient(t, f, nil)

		got, err := c.GetSieveScriptContent(t.Context(), "sc1")
		if err != nil {
			t.Fatalf("GetSieveScriptContent() error = %v", err)
		}
		if got != "keep;" {
			t.Errorf("GetSieveScriptContent() = %q, want %q", got, "keep;")
		}
	})
}
