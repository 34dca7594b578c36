package protocol

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// WellKnownPath is the well-known path for JMAP autodiscovery.
const WellKnownPath = "/.well-known/jmap"

// DiscoveryURL returns the JMAP discovery URL for a server. A bare hostname
// gets an https scheme.
func DiscoveryURL(server string) string {
	return ServerOrigin(server) + WellKnownPath
}

// ServerOrigin normalizes a configured server to scheme://host[:port], with
// any path dropped.
func ServerOrigin(server string) string {
	server = strings.TrimSuffix(strings.TrimSpace(server), "/")
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "https://" + server
	}
	scheme, rest, _ := strings.Cut(server, "://")
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return scheme + "://" + rest
}

// ParseSession parses a JMAP session from JSON.
func ParseSession(data []byte) (*Session, error) {
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &session, nil
}

// GetCapabilityNames returns the capability URIs in sorted order.
func (s *Session) GetCapabilityNames() []string {
	names := make([]string, 0, len(s.Capabilities))
	for name := range s.Capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasCapability checks if the server supports a capability.
func (s *Session) HasCapability(uri string) bool {
	_, ok := s.Capabilities[uri]
	return ok
}

// HasMailCapability checks if the server supports JMAP Mail.
func (s *Session) HasMailCapability() bool {
	return s.HasCapability(MailCapability)
}

// HasSubmissionCapability checks if the server supports JMAP Submission.
func (s *Session) HasSubmissionCapability() bool {
	return s.HasCapability(SubmissionCapability)
}

// GetPrimaryMailAccountId returns the primary account ID for mail.
func (s *Session) GetPrimaryMailAccountId() (Id, bool) {
	return s.PrimaryAccountFor(MailCapability)
}

// PrimaryAccountFor returns the primary account advertised for a capability.
func (s *Session) PrimaryAccountFor(capability string) (Id, bool) {
	id, ok := s.PrimaryAccounts[capability]
	return id, ok && id != ""
}

// SelectPrimaryAccount picks the account the client works in: the mail
// primary when advertised, otherwise the first account in sorted id order.
func (s *Session) SelectPrimaryAccount() (Id, error) {
	if id, ok := s.GetPrimaryMailAccountId(); ok {
		return id, nil
	}
	ids := s.AccountIds()
	if len(ids) == 0 {
		return "", fmt.Errorf("session has no accounts")
	}
	return ids[0], nil
}

// AccountIds returns all account ids in sorted order.
func (s *Session) AccountIds() []Id {
	ids := make([]Id, 0, len(s.Accounts))
	for id := range s.Accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AccountsWithCapability returns, in sorted order, the accounts that
// advertise capability in their accountCapabilities. When no account lists
// it but the capability has a primary account, that account is returned.
func (s *Session) AccountsWithCapability(capability string) []Id {
	if !s.HasCapability(capability) {
		return nil
	}
	var ids []Id
	for _, id := range s.AccountIds() {
		if _, ok := s.Accounts[id].AccountCapabilities[capability]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		if id, ok := s.PrimaryAccountFor(capability); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// GetAccountCount returns the number of accounts.
func (s *Session) GetAccountCount() int {
	return len(s.Accounts)
}

// CoreCapabilityInfo contains parsed core capability information.
type CoreCapabilityInfo struct {
	MaxSizeUpload         int64    `json:"maxSizeUpload"`
	MaxConcurrentUpload   int      `json:"maxConcurrentUpload"`
	MaxSizeRequest        int64    `json:"maxSizeRequest"`
	MaxConcurrentRequests int      `json:"maxConcurrentRequests"`
	MaxCallsInRequest     int      `json:"maxCallsInRequest"`
	MaxObjectsInGet       int      `json:"maxObjectsInGet"`
	MaxObjectsInSet       int      `json:"maxObjectsInSet"`
	CollationAlgorithms   []string `json:"collationAlgorithms"`
}

// GetCoreCapability parses and returns the core capability information.
func (s *Session) GetCoreCapability() (*CoreCapabilityInfo, error) {
	raw, ok := s.Capabilities[CoreCapability]
	if !ok {
		return nil, fmt.Errorf("core capability not found")
	}
	var info CoreCapabilityInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("failed to parse core capability: %w", err)
	}
	return &info, nil
}

// MailCapabilityInfo holds the per-account limits of urn:ietf:params:jmap:mail.
// MayCreateTopLevelMailbox is nil when the server omits it.
type MailCapabilityInfo struct {
	MaxMailboxesPerEmail       *int64   `json:"maxMailboxesPerEmail"`
	MaxMailboxDepth            *int     `json:"maxMailboxDepth"`
	MaxSizeMailboxName         int      `json:"maxSizeMailboxName"`
	MaxSizeAttachmentsPerEmail int64    `json:"maxSizeAttachmentsPerEmail"`
	EmailQuerySortOptions      []string `json:"emailQuerySortOptions"`
	MayCreateTopLevelMailbox   *bool    `json:"mayCreateTopLevelMailbox"`
}

// GetMailCapability parses the mail limits an account advertises in its
// accountCapabilities.
func (s *Session) GetMailCapability(accountId Id) (*MailCapabilityInfo, error) {
	account, ok := s.Accounts[accountId]
	if !ok {
		return nil, fmt.Errorf("account %q not in session", accountId)
	}
	raw, ok := account.AccountCapabilities[MailCapability]
	if !ok {
		return nil, fmt.Errorf("account %q has no mail capability", accountId)
	}
	var info MailCapabilityInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("failed to parse mail capability: %w", err)
	}
	return &info, nil
}

// Validate checks if the session has the required fields.
func (s *Session) Validate() error {
	if s.APIURL == "" {
		return fmt.Errorf("session missing apiUrl")
	}
	if len(s.Capabilities) == 0 {
		return fmt.Errorf("session missing capabilities")
	}
	if !s.HasCapability(CoreCapability) {
		return fmt.Errorf("session missing core capability")
	}
	if len(s.Accounts) == 0 {
		return fmt.Errorf("session has no accounts")
	}
	if id, ok := s.GetPrimaryMailAccountId(); ok {
		if _, known := s.Accounts[id]; !known {
			return fmt.Errorf("primary mail account %q not in accounts", id)
		}
	}
	return nil
}

// RewriteOrigin points every session URL at origin, keeping path and query.
// Servers behind proxies often advertise an internal host; requests must go
// to the host the user configured. Template variables such as {accountId}
// are left untouched.
func (s *Session) RewriteOrigin(origin string) error {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid origin %q", origin)
	}
	origin = u.Scheme + "://" + u.Host
	for _, field := range []*string{&s.APIURL, &s.DownloadURL, &s.UploadURL, &s.EventSourceURL} {
		*field = rewriteURLOrigin(*field, origin)
	}
	return nil
}

// rewriteURLOrigin works on the raw string so that RFC 6570 braces are
// never percent-encoded by a URL round trip.
func rewriteURLOrigin(raw, origin string) string {
	if raw == "" {
		return raw
	}
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return origin + raw
	}
	_, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	path := ""
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		path = rest[i:]
	}
	return origin + path
}
