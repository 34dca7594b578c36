package protocol

// Mailbox roles, see RFC 8621 Section 2 and the IANA mailbox role registry.
const (
	RoleInbox   = "inbox"
	RoleDrafts  = "drafts"
	RoleSent    = "sent"
	RoleTrash   = "trash"
	RoleJunk    = "junk"
	RoleArchive = "archive"
)

// Email keywords.
const (
	KeywordSeen     = "$seen"
	KeywordDraft    = "$draft"
	KeywordFlagged  = "$flagged"
	KeywordAnswered = "$answered"
	KeywordJunk     = "$junk"
	KeywordNotJunk  = "$notjunk"
)

// Mailbox represents a JMAP mailbox.
type Mailbox struct {
	// Id is the unique identifier for the mailbox. For mailboxes of a
	// non-primary account it is namespaced, see NamespaceID.
	Id Id `json:"id"`

	// Name is the user-visible name of the mailbox.
	Name string `json:"name"`

	// ParentId is the ID of the parent mailbox, or null for top-level.
	ParentId *Id `json:"parentId"`

	// Role is the mailbox role (inbox, drafts, sent, trash, etc.).
	Role *string `json:"role"`

	// SortOrder is the sort order for display.
	SortOrder uint32 `json:"sortOrder"`

	// TotalEmails is the total number of emails in the mailbox.
	TotalEmails uint32 `json:"totalEmails"`

	// UnreadEmails is the number of unread emails.
	UnreadEmails uint32 `json:"unreadEmails"`

	// TotalThreads is the total number of threads.
	TotalThreads uint32 `json:"totalThreads"`

	// UnreadThreads is the number of unread threads.
	UnreadThreads uint32 `json:"unreadThreads"`

	// MyRights contains the user's permissions on this mailbox.
	MyRights *MailboxRights `json:"myRights"`

	// IsSubscribed indicates if the mailbox is subscribed.
	IsSubscribed bool `json:"isSubscribed"`

	// AccountId is the account the mailbox was fetched from. Set by the
	// client, never sent by the server.
	AccountId Id `json:"accountId,omitempty"`

	// OriginalId is the server's raw id, before namespacing.
	OriginalId Id `json:"originalId,omitempty"`
}

// HasRole reports whether the mailbox carries the given role.
func (m *Mailbox) HasRole(role string) bool {
	return m.Role != nil && *m.Role == role
}

// MailboxRights represents the user's permissions on a mailbox.
type MailboxRights struct {
	MayReadItems   bool `json:"mayReadItems"`
	MayAddItems    bool `json:"mayAddItems"`
	MayRemoveItems bool `json:"mayRemoveItems"`
	MaySetSeen     bool `json:"maySetSeen"`
	MaySetKeywords bool `json:"maySetKeywords"`
	MayCreateChild bool `json:"mayCreateChild"`
	MayRename      bool `json:"mayRename"`
	MayDelete      bool `json:"mayDelete"`
	MaySubmit      bool `json:"maySubmit"`
}

// Email represents a JMAP email object.
type Email struct {
	// Id is the unique identifier for the email.
	Id Id `json:"id"`

	// BlobId is the identifier for the raw email blob.
	BlobId Id `json:"blobId"`

	// ThreadId is the identifier of the thread.
	ThreadId Id `json:"threadId"`

	// MailboxIds maps mailbox IDs to true for each mailbox containing this email.
	MailboxIds map[Id]bool `json:"mailboxIds"`

	// Keywords contains the email's keywords/flags.
	Keywords map[string]bool `json:"keywords"`

	// Size is the size of the raw email in bytes.
	Size uint32 `json:"size"`

	// ReceivedAt is when the email was received.
	ReceivedAt string `json:"receivedAt"`

	MessageId  []string `json:"messageId"`
	InReplyTo  []string `json:"inReplyTo"`
	References []string `json:"references"`

	Sender  []EmailAddress `json:"sender"`
	From    []EmailAddress `json:"from"`
	To      []EmailAddress `json:"to"`
	Cc      []EmailAddress `json:"cc"`
	Bcc     []EmailAddress `json:"bcc"`
	ReplyTo []EmailAddress `json:"replyTo"`

	// Subject is the email subject.
	Subject string `json:"subject"`

	// SentAt is when the email was sent.
	SentAt string `json:"sentAt"`

	// Preview is a short plaintext preview of the email.
	Preview string `json:"preview"`

	// HasAttachment indicates if there are attachments.
	HasAttachment bool `json:"hasAttachment"`

	TextBody    []EmailBodyPart           `json:"textBody,omitempty"`
	HTMLBody    []EmailBodyPart           `json:"htmlBody,omitempty"`
	Attachments []EmailBodyPart           `json:"attachments,omitempty"`
	BodyValues  map[string]EmailBodyValue `json:"bodyValues,omitempty"`
}

// IsUnread reports whether the $seen keyword is absent.
func (e *Email) IsUnread() bool {
	return !e.Keywords[KeywordSeen]
}

// TextContent concatenates the decoded text/plain body values.
func (e *Email) TextContent() string {
	var out string
	for _, part := range e.TextBody {
		if v, ok := e.BodyValues[part.PartId]; ok {
			out += v.Value
		}
	}
	return out
}

// EmailAddress represents an email address with optional name.
type EmailAddress struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// EmailBodyPart describes one MIME part of an email.
type EmailBodyPart struct {
	PartId      string `json:"partId,omitempty"`
	BlobId      Id     `json:"blobId,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Name        string `json:"name,omitempty"`
	Type        string `json:"type"`
	Charset     string `json:"charset,omitempty"`
	Disposition string `json:"disposition,omitempty"`
	Cid         string `json:"cid,omitempty"`
}

// EmailBodyValue is a decoded body part value.
type EmailBodyValue struct {
	Value             string `json:"value"`
	IsEncodingProblem bool   `json:"isEncodingProblem,omitempty"`
	IsTruncated       bool   `json:"isTruncated,omitempty"`
}

// Thread is an ordered list of email ids.
type Thread struct {
	Id       Id   `json:"id"`
	EmailIds []Id `json:"emailIds"`
}

// Identity is a sender identity (RFC 8621 Section 6).
type Identity struct {
	Id            Id             `json:"id,omitempty"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	ReplyTo       []EmailAddress `json:"replyTo,omitempty"`
	Bcc           []EmailAddress `json:"bcc,omitempty"`
	TextSignature string         `json:"textSignature,omitempty"`
	HTMLSignature string         `json:"htmlSignature,omitempty"`
	MayDelete     bool           `json:"mayDelete,omitempty"`
}

// EmailSubmission tracks sending an email (RFC 8621 Section 7).
type EmailSubmission struct {
	Id         Id        `json:"id,omitempty"`
	IdentityId Id        `json:"identityId"`
	EmailId    Id        `json:"emailId"`
	ThreadId   Id        `json:"threadId,omitempty"`
	Envelope   *Envelope `json:"envelope,omitempty"`
	SendAt     string    `json:"sendAt,omitempty"`
	UndoStatus string    `json:"undoStatus,omitempty"`
}

// Envelope is the SMTP envelope of a submission.
type Envelope struct {
	MailFrom Address   `json:"mailFrom"`
	RcptTo   []Address `json:"rcptTo"`
}

// Address is an SMTP envelope address.
type Address struct {
	Email      string             `json:"email"`
	Parameters map[string]*string `json:"parameters,omitempty"`
}

// VacationResponseId is the id of the only VacationResponse object.
const VacationResponseId Id = "singleton"

// VacationResponse is the out-of-office auto-reply (RFC 8621 Section 8).
type VacationResponse struct {
	Id        Id      `json:"id,omitempty"`
	IsEnabled bool    `json:"isEnabled"`
	FromDate  *string `json:"fromDate"`
	ToDate    *string `json:"toDate"`
	Subject   *string `json:"subject"`
	TextBody  *string `json:"textBody"`
	HTMLBody  *string `json:"htmlBody"`
}
