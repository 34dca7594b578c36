// Package protocol provides JMAP protocol types and utilities.
//
// Everything in this package is free of I/O: it builds and decodes the JSON
// exchanged with a JMAP server and implements the pure mappings (account
// namespacing, state diffing, URL templating) the client layers on top.
package protocol

import (
	"encoding/json"
)

// Id represents a JMAP identifier string.
type Id string

// Session represents a JMAP session resource.
// See RFC 8620 Section 2.
type Session struct {
	// Capabilities contains the capabilities of the server.
	Capabilities map[string]json.RawMessage `json:"capabilities"`

	// Accounts contains information about the accounts available.
	Accounts map[Id]Account `json:"accounts"`

	// PrimaryAccounts maps data type URIs to the primary account ID.
	PrimaryAccounts map[string]Id `json:"primaryAccounts"`

	// Username is the username associated with the session.
	Username string `json:"username"`

	// APIURL is the URL for JMAP API requests.
	APIURL string `json:"apiUrl"`

	// DownloadURL is the URL template for downloading blobs.
	DownloadURL string `json:"downloadUrl"`

	// UploadURL is the URL template for uploading blobs.
	UploadURL string `json:"uploadUrl"`

	// EventSourceURL is the URL template for push notifications.
	EventSourceURL string `json:"eventSourceUrl"`

	// State is an opaque string representing the current state.
	State string `json:"state"`
}

// Account represents a JMAP account.
type Account struct {
	// Name is a human-readable name for the account.
	Name string `json:"name"`

	// IsPersonal indicates if this is the user's personal account.
	IsPersonal bool `json:"isPersonal"`

	// IsReadOnly indicates if the account is read-only.
	IsReadOnly bool `json:"isReadOnly"`

	// AccountCapabilities contains account-specific capability data.
	AccountCapabilities map[string]json.RawMessage `json:"accountCapabilities"`
}

// BlobRef describes an uploaded blob.
type BlobRef struct {
	AccountId Id     `json:"accountId,omitempty"`
	BlobId    Id     `json:"blobId"`
	Size      int64  `json:"size"`
	Type      string `json:"type"`
}

// GetResponse is the generic result of a Foo/get call.
type GetResponse[T any] struct {
	AccountId Id     `json:"accountId"`
	State     string `json:"state"`
	List      []T    `json:"list"`
	NotFound  []Id   `json:"notFound"`
}

// GetMailboxesResponse represents the response from Mailbox/get.
type GetMailboxesResponse = GetResponse[Mailbox]

// GetEmailsResponse represents the response from Email/get.
type GetEmailsResponse = GetResponse[Email]

// QueryResponse is the result of a Foo/query call.
type QueryResponse struct {
	AccountId           Id     `json:"accountId"`
	QueryState          string `json:"queryState"`
	CanCalculateChanges bool   `json:"canCalculateChanges"`
	Position            uint32 `json:"position"`
	Total               uint32 `json:"total"`
	Ids                 []Id   `json:"ids"`
}

// QueryEmailsResponse represents the response from Email/query.
type QueryEmailsResponse = QueryResponse

// SetResponse is the result of a Foo/set call. Created and Updated are kept
// raw because their contents depend on the object type.
type SetResponse struct {
	AccountId    Id                         `json:"accountId"`
	OldState     *string                    `json:"oldState"`
	NewState     string                     `json:"newState"`
	Created      map[string]json.RawMessage `json:"created"`
	Updated      map[Id]json.RawMessage     `json:"updated"`
	Destroyed    []Id                       `json:"destroyed"`
	NotCreated   map[string]*SetError       `json:"notCreated"`
	NotUpdated   map[Id]*SetError           `json:"notUpdated"`
	NotDestroyed map[Id]*SetError           `json:"notDestroyed"`
}

// ParseResult is the result of a Foo/parse call (CalendarEvent/parse,
// ContactCard/parse, Email/parse). Each parsed entry is either a single
// object or an array of objects depending on the server.
type ParseResult struct {
	AccountId   Id                     `json:"accountId"`
	Parsed      map[Id]json.RawMessage `json:"parsed"`
	NotParsable []Id                   `json:"notParsable"`
	NotFound    []Id                   `json:"notFound"`
}

// EchoArgs is sent with Core/echo.
type EchoArgs struct {
	Ping string `json:"ping"`
}
