package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestMethodCall_MarshalJSON(t *testing.T) {
	mc := MethodCall{
		Name:      "Mailbox/get",
		Arguments: Args{"accountId": "A123"},
		CallId:    "c0",
	}

	data, err := json.Marshal(mc)
	if err != nil {
		t.Fatalf("MarshalJSON() error: %v", err)
	}

	want := `["Mailbox/get",{"accountId":"A123"},"c0"]`
	if string(data) != want {
		t.Errorf("MarshalJSON() = %s, want %s", data, want)
	}

	empty, err := json.Marshal(MethodCall{Name: MethodCoreEcho, CallId: "c1"})
	if err != nil {
		t.Fatalf("MarshalJSON() error: %v", err)
	}
	if string(empty) != `["Core/echo",{},"c1"]` {
		t.Errorf("MarshalJSON() with nil arguments = %s", empty)
	}
}

func TestMethodCall_UnmarshalJSON(t *testing.T) {
	var mc MethodCall
	if err := json.Unmarshal([]byte(`["Mailbox/get", {"accountId": "A123"}, "c0"]`), &mc); err != nil {
		t.Fatalf("UnmarshalJSON() error: %v", err)
	}
	if mc.Name != "Mailbox/get" {
		t.Errorf("Name = %q, want %q", mc.Name, "Mailbox/get")
	}
	if mc.CallId != "c0" {
		t.Errorf("CallId = %q, want %q", mc.CallId, "c0")
	}

	if err := json.Unmarshal([]byte(`["Mailbox/get", {}]`), &mc); err == nil {
		t.Error("UnmarshalJSON() expected error for a two-element call")
	}
}

func TestResponse_Decode(t *testing.T) {
	data := `{
		"methodResponses": [
			["Mailbox/get", {"accountId": "A123", "state": "abc", "list": [{"id": "mb1", "name": "Inbox"}]}, "c0"],
			["error", {"type": "unknownMethod", "description": "no such method"}, "c1"],
			["EmailSubmission/set", {"accountId": "A123", "created": {"sub": {"id": "S1"}}}, "c2"],
			["Email/set", {"accountId": "A123", "updated": {"E1": null}}, "c2"]
		],
		"sessionState": "xyz789"
	}`

	var resp Response
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if resp.SessionState != "xyz789" {
		t.Errorf("SessionState = %q, want %q", resp.SessionState, "xyz789")
	}

	var mailboxes GetMailboxesResponse
	if err := resp.Decode("c0", &mailboxes); err != nil {
		t.Fatalf("Decode(c0) error: %v", err)
	}
	if len(mailboxes.List) != 1 || mailboxes.List[0].Name != "Inbox" {
		t.Errorf("Decode(c0) list = %+v", mailboxes.List)
	}

	var ignored map[string]interface{}
	err := resp.Decode("c1", &ignored)
	var me *MethodError
	if !errors.As(err, &me) {
		t.Fatalf("Decode(c1) error = %v, want *MethodError", err)
	}
	if me.Type != "unknownMethod" || me.CallId != "c1" {
		t.Errorf("MethodError = %+v", me)
	}
	if me.Error() != "no such method" {
		t.Errorf("Error() = %q, want %q", me.Error(), "no such method")
	}

	var implicit SetResponse
	if err := resp.DecodeNamed("c2", MethodEmailSet, &implicit); err != nil {
		t.Fatalf("DecodeNamed(c2, Email/set) error: %v", err)
	}
	if _, ok := implicit.Updated["E1"]; !ok {
		t.Errorf("implicit Email/set updated = %v", implicit.Updated)
	}

	if err := resp.Decode("missing", &ignored); err == nil {
		t.Error("Decode(missing) expected error")
	}
}

func TestMethodError_FallsBackToType(t *testing.T) {
	mr := MethodResponse{Name: "error", Arguments: json.RawMessage(`{"type":"accountNotFound"}`), CallId: "c0"}
	err := mr.Err()
	if err == nil || err.Error() != "accountNotFound" {
		t.Errorf("Err() = %v, want accountNotFound", err)
	}

	garbled := MethodResponse{Name: "error", Arguments: json.RawMessage(`[]`), CallId: "c0"}
	if err := garbled.Err(); err == nil || err.Error() != "serverFail" {
		t.Errorf("Err() for garbled error = %v, want serverFail", err)
	}
}

func TestIsErrorResponse(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"error", true},
		{"Mailbox/error", true},
		{"Mailbox/get", false},
		{"Email/query", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsErrorResponse(tt.name); got != tt.expected {
			t.Errorf("IsErrorResponse(%q) = %v, want %v", tt.name, got, tt.expected)
		}
	}
}

func TestCapabilityFor(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{MethodCoreEcho, CoreCapability},
		{MethodEmailQuery, MailCapability},
		{MethodThreadGet, MailCapability},
		{MethodSubmissionSet, SubmissionCapability},
		{MethodIdentityGet, SubmissionCapability},
		{MethodVacationGet, VacationResponseCapability},
		{MethodContactCardParse, ContactsCapability},
		{MethodCalendarEventQuery, CalendarsCapability},
		{MethodSieveScriptValidate, SieveCapability},
		{"Widget/get", ""},
	}

	for _, tt := range tests {
		if got := CapabilityFor(tt.method); got != tt.want {
			t.Errorf("CapabilityFor(%q) = %q, want %q", tt.method, got, tt.want)
		}
	}
}
