package protocol

import "sort"

// TypeKey names a data type whose state token is tracked.
type TypeKey string

const (
	TypeMailbox          TypeKey = "Mailbox"
	TypeEmail            TypeKey = "Email"
	TypeThread           TypeKey = "Thread"
	TypeIdentity         TypeKey = "Identity"
	TypeEmailSubmission  TypeKey = "EmailSubmission"
	TypeVacationResponse TypeKey = "VacationResponse"
	TypeAddressBook      TypeKey = "AddressBook"
	TypeContactCard      TypeKey = "ContactCard"
	TypeCalendar         TypeKey = "Calendar"
	TypeCalendarEvent    TypeKey = "CalendarEvent"
	TypeSieveScript      TypeKey = "SieveScript"
)

// TrackedTypes lists every type key in polling order.
var TrackedTypes = []TypeKey{
	TypeMailbox, TypeEmail, TypeThread,
	TypeIdentity, TypeEmailSubmission, TypeVacationResponse,
	TypeAddressBook, TypeContactCard,
	TypeCalendar, TypeCalendarEvent,
	TypeSieveScript,
}

// Capability returns the capability that must be present to track the type.
func (k TypeKey) Capability() string {
	return typeCapabilities[string(k)]
}

// GetMethod returns the type's Foo/get method.
func (k TypeKey) GetMethod() string {
	return string(k) + "/get"
}

// StateTable maps account id to type key to the last seen state token.
type StateTable map[Id]map[TypeKey]string

// Set records a token.
func (t StateTable) Set(accountId Id, key TypeKey, token string) {
	types, ok := t[accountId]
	if !ok {
		types = make(map[TypeKey]string)
		t[accountId] = types
	}
	types[key] = token
}

// Get returns a recorded token.
func (t StateTable) Get(accountId Id, key TypeKey) (string, bool) {
	token, ok := t[accountId][key]
	return token, ok
}

// Apply merges next into t and returns the tokens that changed, or nil when
// nothing did. A token seen for the first time is recorded as a baseline and
// not reported; tokens compare by equality only.
func (t StateTable) Apply(next StateTable) *StateChange {
	var change *StateChange
	for accountId, types := range next {
		for key, token := range types {
			prev, seen := t.Get(accountId, key)
			t.Set(accountId, key, token)
			if !seen || prev == token {
				continue
			}
			if change == nil {
				change = &StateChange{Type: "StateChange", Changed: make(StateTable)}
			}
			change.Changed.Set(accountId, key, token)
		}
	}
	return change
}

// StateChange is pushed by the server's event source (RFC 8620 Section 7.1)
// and synthesized by polling.
type StateChange struct {
	Type    string     `json:"@type"`
	Changed StateTable `json:"changed"`
}

// Accounts returns the changed account ids in sorted order.
func (c *StateChange) Accounts() []Id {
	ids := make([]Id, 0, len(c.Changed))
	for id := range c.Changed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Has reports whether key changed in any account.
func (c *StateChange) Has(key TypeKey) bool {
	for _, types := range c.Changed {
		if _, ok := types[key]; ok {
			return true
		}
	}
	return false
}
