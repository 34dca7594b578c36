package protocol

import (
	"encoding/json"
	"testing"
)

func TestMailbox_JSON(t *testing.T) {
	mailboxJSON := `{
		"id": "mb1",
		"name": "Inbox",
		"parentId": null,
		"role": "inbox",
		"sortOrder": 1,
		"totalEmails": 100,
		"unreadEmails": 5,
		"myRights": {"mayReadItems": true, "mayDelete": false},
		"isSubscribed": true
	}`

	var mb Mailbox
	if err := json.Unmarshal([]byte(mailboxJSON), &mb); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if mb.Id != "mb1" {
		t.Errorf("Id = %q, want %q", mb.Id, "mb1")
	}
	if mb.ParentId != nil {
		t.Errorf("ParentId = %v, want nil", mb.ParentId)
	}
	if !mb.HasRole(RoleInbox) {
		t.Errorf("HasRole(inbox) = false, role %v", mb.Role)
	}
	if mb.HasRole(RoleJunk) {
		t.Error("HasRole(junk) = true, want false")
	}
	if mb.UnreadEmails != 5 {
		t.Errorf("UnreadEmails = %d, want 5", mb.UnreadEmails)
	}
	if mb.MyRights == nil || !mb.MyRights.MayReadItems || mb.MyRights.MayDelete {
		t.Errorf("MyRights = %+v", mb.MyRights)
	}
	if mb.AccountId != "" || mb.OriginalId != "" {
		t.Errorf("client-side fields set from server JSON: %q %q", mb.AccountId, mb.OriginalId)
	}
}

func TestEmail_Helpers(t *testing.T) {
	emailJSON := `{
		"id": "e1",
		"keywords": {"$flagged": true},
		"textBody": [{"partId": "1", "type": "text/plain"}, {"partId": "3", "type": "text/plain"}],
		"bodyValues": {
			"1": {"value": "Hello, "},
			"2": {"value": "<p>ignored</p>"},
			"3": {"value": "world"}
		}
	}`

	var e Email
	if err := json.Unmarshal([]byte(emailJSON), &e); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if !e.IsUnread() {
		t.Error("IsUnread() = false, want true without $seen")
	}
	if got := e.TextContent(); got != "Hello, world" {
		t.Errorf("TextContent() = %q, want %q", got, "Hello, world")
	}

	e.Keywords[KeywordSeen] = true
	if e.IsUnread() {
		t.Error("IsUnread() = true, want false with $seen")
	}
}

func TestContactCard_DisplayName(t *testing.T) {
	tests := []struct {
		name string
		card ContactCard
		want string
	}{
		{"full name", ContactCard{Name: &ContactName{Full: "Ada Lovelace"}}, "Ada Lovelace"},
		{"email fallback", ContactCard{Emails: map[string]ContactEmail{"e1": {Address: "ada@example.com"}}}, "ada@example.com"},
		{"empty", ContactCard{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.card.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetResponse_Generic(t *testing.T) {
	respJSON := `{
		"accountId": "A123",
		"state": "s1",
		"list": [{"id": "cal1", "name": "Work", "isVisible": true}],
		"notFound": ["missing1"]
	}`

	var resp GetResponse[Calendar]
	if err := json.Unmarshal([]byte(respJSON), &resp); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if resp.State != "s1" {
		t.Errorf("State = %q, want %q", resp.State, "s1")
	}
	if len(resp.List) != 1 || resp.List[0].Name != "Work" || !resp.List[0].IsVisible {
		t.Errorf("List = %+v", resp.List)
	}
	if len(resp.NotFound) != 1 || resp.NotFound[0] != "missing1" {
		t.Errorf("NotFound = %v, want [missing1]", resp.NotFound)
	}
}

func TestVacationResponse_NullFields(t *testing.T) {
	var v VacationResponse
	if err := json.Unmarshal([]byte(`{"id":"singleton","isEnabled":true,"subject":null,"textBody":"away"}`), &v); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if v.Id != VacationResponseId {
		t.Errorf("Id = %q, want %q", v.Id, VacationResponseId)
	}
	if v.Subject != nil {
		t.Errorf("Subject = %v, want nil", v.Subject)
	}
	if v.TextBody == nil || *v.TextBody != "away" {
		t.Errorf("TextBody = %v, want away", v.TextBody)
	}
}
