package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Request represents a JMAP API request.
// See RFC 8620 Section 3.3.
type Request struct {
	// Using contains the capability URIs used in this request.
	Using []string `json:"using"`

	// MethodCalls contains the method invocations.
	MethodCalls []MethodCall `json:"methodCalls"`

	// CreatedIds maps creation IDs to server-assigned IDs.
	CreatedIds map[Id]Id `json:"createdIds,omitempty"`
}

// Response represents a JMAP API response.
type Response struct {
	// MethodResponses contains the method responses.
	MethodResponses []MethodResponse `json:"methodResponses"`

	// CreatedIds maps creation IDs to server-assigned IDs.
	CreatedIds map[Id]Id `json:"createdIds,omitempty"`

	// SessionState is the current session state.
	SessionState string `json:"sessionState,omitempty"`
}

// MethodCall represents a single method invocation.
// Format: [name, arguments, methodCallId]
type MethodCall struct {
	Name      string
	Arguments interface{}
	CallId    string
}

// MarshalJSON implements custom JSON marshaling for MethodCall.
func (m MethodCall) MarshalJSON() ([]byte, error) {
	args := m.Arguments
	if args == nil {
		args = Args{}
	}
	return json.Marshal([]interface{}{m.Name, args, m.CallId})
}

// UnmarshalJSON implements custom JSON unmarshaling for MethodCall.
func (m *MethodCall) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("method call has %d elements, want 3", len(raw))
	}
	if err := json.Unmarshal(raw[0], &m.Name); err != nil {
		return err
	}
	m.Arguments = raw[1] // Keep as raw JSON
	return json.Unmarshal(raw[2], &m.CallId)
}

// MethodResponse represents a single method response.
// Format: [name, arguments, methodCallId]
type MethodResponse struct {
	Name      string
	Arguments json.RawMessage
	CallId    string
}

// MarshalJSON implements custom JSON marshaling for MethodResponse.
func (m MethodResponse) MarshalJSON() ([]byte, error) {
	args := m.Arguments
	if args == nil {
		args = json.RawMessage("{}")
	}
	return json.Marshal([]interface{}{m.Name, args, m.CallId})
}

// UnmarshalJSON implements custom JSON unmarshaling for MethodResponse.
func (m *MethodResponse) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("method response has %d elements, want 3", len(raw))
	}
	if err := json.Unmarshal(raw[0], &m.Name); err != nil {
		return err
	}
	m.Arguments = raw[1]
	return json.Unmarshal(raw[2], &m.CallId)
}

// Err returns the response's MethodError when it is an error response.
func (m *MethodResponse) Err() error {
	if !IsErrorResponse(m.Name) {
		return nil
	}
	me := &MethodError{}
	if err := json.Unmarshal(m.Arguments, me); err != nil || me.Type == "" {
		me.Type = "serverFail"
	}
	me.CallId = m.CallId
	return me
}

// Decode unmarshals the response arguments into v, returning the
// MethodError instead when the server reported one.
func (m *MethodResponse) Decode(v interface{}) error {
	if err := m.Err(); err != nil {
		return err
	}
	return unmarshalArgs(m.Arguments, v)
}

// Result returns the first response carrying callId.
func (r *Response) Result(callId string) (*MethodResponse, error) {
	for i := range r.MethodResponses {
		if r.MethodResponses[i].CallId == callId {
			return &r.MethodResponses[i], nil
		}
	}
	return nil, fmt.Errorf("no response for call %q", callId)
}

// ResultNamed returns the response with the given call id and method name.
// A single call may produce several responses (an implicit Email/set after
// EmailSubmission/set shares the submission's call id), and an error response
// for the call id is returned in place of the named one.
func (r *Response) ResultNamed(callId, name string) (*MethodResponse, error) {
	for i := range r.MethodResponses {
		mr := &r.MethodResponses[i]
		if mr.CallId != callId {
			continue
		}
		if mr.Name == name || IsErrorResponse(mr.Name) {
			return mr, nil
		}
	}
	return nil, fmt.Errorf("no %s response for call %q", name, callId)
}

// Decode finds the first response for callId and unmarshals it into v.
func (r *Response) Decode(callId string, v interface{}) error {
	mr, err := r.Result(callId)
	if err != nil {
		return err
	}
	return mr.Decode(v)
}

// DecodeNamed finds the response for callId and name and unmarshals it into v.
func (r *Response) DecodeNamed(callId, name string, v interface{}) error {
	mr, err := r.ResultNamed(callId, name)
	if err != nil {
		return err
	}
	return mr.Decode(v)
}

// Capability URIs.
const (
	CoreCapability             = "urn:ietf:params:jmap:core"
	MailCapability             = "urn:ietf:params:jmap:mail"
	SubmissionCapability       = "urn:ietf:params:jmap:submission"
	VacationResponseCapability = "urn:ietf:params:jmap:vacationresponse"
	ContactsCapability         = "urn:ietf:params:jmap:contacts"
	CalendarsCapability        = "urn:ietf:params:jmap:calendars"
	SieveCapability            = "urn:ietf:params:jmap:sieve"
)

// Method names.
const (
	MethodCoreEcho = "Core/echo"

	MethodMailboxGet   = "Mailbox/get"
	MethodMailboxQuery = "Mailbox/query"
	MethodMailboxSet   = "Mailbox/set"
	MethodEmailGet     = "Email/get"
	MethodEmailQuery   = "Email/query"
	MethodEmailSet     = "Email/set"
	MethodEmailImport  = "Email/import"
	MethodThreadGet    = "Thread/get"

	MethodIdentityGet         = "Identity/get"
	MethodIdentitySet         = "Identity/set"
	MethodSubmissionGet       = "EmailSubmission/get"
	MethodSubmissionQuery     = "EmailSubmission/query"
	MethodSubmissionSet       = "EmailSubmission/set"
	MethodVacationGet         = "VacationResponse/get"
	MethodVacationSet         = "VacationResponse/set"
	MethodSieveScriptGet      = "SieveScript/get"
	MethodSieveScriptSet      = "SieveScript/set"
	MethodSieveScriptValidate = "SieveScript/validate"

	MethodAddressBookGet     = "AddressBook/get"
	MethodContactCardGet     = "ContactCard/get"
	MethodContactCardQuery   = "ContactCard/query"
	MethodContactCardSet     = "ContactCard/set"
	MethodContactCardParse   = "ContactCard/parse"
	MethodCalendarGet        = "Calendar/get"
	MethodCalendarSet        = "Calendar/set"
	MethodCalendarEventGet   = "CalendarEvent/get"
	MethodCalendarEventQuery = "CalendarEvent/query"
	MethodCalendarEventSet   = "CalendarEvent/set"
	MethodCalendarEventParse = "CalendarEvent/parse"
)

var typeCapabilities = map[string]string{
	"Core":                CoreCapability,
	"Blob":                CoreCapability,
	"Mailbox":             MailCapability,
	"Email":               MailCapability,
	"Thread":              MailCapability,
	"SearchSnippet":       MailCapability,
	"Identity":            SubmissionCapability,
	"EmailSubmission":     SubmissionCapability,
	"VacationResponse":    VacationResponseCapability,
	"AddressBook":         ContactsCapability,
	"ContactCard":         ContactsCapability,
	"Calendar":            CalendarsCapability,
	"CalendarEvent":       CalendarsCapability,
	"ParticipantIdentity": CalendarsCapability,
	"SieveScript":         SieveCapability,
}

// CapabilityFor returns the capability URI a method requires, or "" for an
// unknown data type.
func CapabilityFor(method string) string {
	typ, _, _ := strings.Cut(method, "/")
	return typeCapabilities[typ]
}

// GetRequest creates arguments for a /get method.
type GetRequest struct {
	AccountId  Id       `json:"accountId"`
	Ids        []Id     `json:"ids,omitempty"`
	Properties []string `json:"properties,omitempty"`
}

// QueryRequest creates arguments for a /query method.
type QueryRequest struct {
	AccountId      Id          `json:"accountId"`
	Filter         interface{} `json:"filter,omitempty"`
	Sort           []SortOrder `json:"sort,omitempty"`
	Position       uint32      `json:"position,omitempty"`
	Anchor         *Id         `json:"anchor,omitempty"`
	AnchorOffset   int32       `json:"anchorOffset,omitempty"`
	Limit          *uint32     `json:"limit,omitempty"`
	CalculateTotal bool        `json:"calculateTotal,omitempty"`
}

// SortOrder specifies how to sort results.
type SortOrder struct {
	Property    string `json:"property"`
	IsAscending bool   `json:"isAscending"`
}

// ParseArgs are the arguments of a Foo/parse call.
type ParseArgs struct {
	AccountId Id   `json:"accountId"`
	BlobIds   []Id `json:"blobIds"`
}

// IsErrorResponse checks if a method response name signals an error. The
// standard name is "error"; a "Foo/error" spelling is tolerated as well.
func IsErrorResponse(name string) bool {
	return name == "error" || strings.HasSuffix(name, "/error")
}

func unmarshalArgs(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode method arguments: %w", err)
	}
	return nil
}
