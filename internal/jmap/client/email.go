package client

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"jmapclient/internal/jmap/protocol"
)

// emailListProperties are fetched for listings.
var emailListProperties = []string{
	"id", "blobId", "threadId", "mailboxIds", "keywords", "size",
	"receivedAt", "sentAt", "from", "to", "cc", "subject", "preview",
	"hasAttachment",
}

// emailFullProperties are fetched for a single message.
var emailFullProperties = append(append([]string(nil), emailListProperties...),
	"messageId", "inReplyTo", "references", "sender", "bcc", "replyTo",
	"textBody", "htmlBody", "attachments", "bodyValues",
)

const defaultQueryLimit = 50

// EmailFilter is an Email/query FilterCondition. Empty fields are omitted.
type EmailFilter struct {
	InMailbox     protocol.Id `json:"inMailbox,omitempty"`
	Text          string      `json:"text,omitempty"`
	From          string      `json:"from,omitempty"`
	To            string      `json:"to,omitempty"`
	Subject       string      `json:"subject,omitempty"`
	HasKeyword    string      `json:"hasKeyword,omitempty"`
	NotKeyword    string      `json:"notKeyword,omitempty"`
	Before        string      `json:"before,omitempty"`
	After         string      `json:"after,omitempty"`
	HasAttachment *bool       `json:"hasAttachment,omitempty"`
}

// EmailQuery selects a page of emails.
type EmailQuery struct {
	// AccountId defaults to the account of Filter.InMailbox, then to the
	// primary mail account.
	AccountId  protocol.Id
	Filter     *EmailFilter
	Sort       []protocol.SortOrder
	Position   uint32
	Limit      uint32
	Properties []string
}

// EmailPage is one page of query results.
type EmailPage struct {
	Emails     []protocol.Email
	Total      uint32
	Position   uint32
	QueryState string
}

// QueryEmails runs Email/query and fetches the matching emails with a
// back-reference in the same request.
func (c *Client) QueryEmails(ctx context.Context, q EmailQuery) (EmailPage, error) {
	page, err := c.queryEmails(ctx, q)
	return degrade(c, "QueryEmails", page, err)
}

func (c *Client) queryEmails(ctx context.Context, q EmailQuery) (EmailPage, error) {
	var filter *EmailFilter
	if q.Filter != nil {
		f := *q.Filter
		filter = &f
	}

	accountId := q.AccountId
	if filter != nil && filter.InMailbox != "" {
		if acct, raw, ok := protocol.SplitID(filter.InMailbox); ok {
			if accountId != "" && accountId != acct {
				return EmailPage{}, fmt.Errorf("%w: %s and %s", ErrMixedAccounts, accountId, acct)
			}
			accountId = acct
			filter.InMailbox = raw
		}
	}
	ns, err := c.accountFor(protocol.MailCapability, accountId)
	if err != nil {
		return EmailPage{}, err
	}

	sort := q.Sort
	if len(sort) == 0 {
		sort = []protocol.SortOrder{{Property: "receivedAt", IsAscending: false}}
	}
	limit := q.Limit
	if limit == 0 {
		limit = defaultQueryLimit
	}
	properties := q.Properties
	if len(properties) == 0 {
		properties = emailListProperties
	}

	batch := protocol.NewBatch()
	queryArgs := protocol.Args{
		"accountId":      ns.AccountId,
		"sort":           sort,
		"position":       q.Position,
		"limit":          limit,
		"calculateTotal": true,
	}
	if filter != nil {
		queryArgs["filter"] = filter
	}
	queryId, err := batch.Add(protocol.MethodEmailQuery, queryArgs)
	if err != nil {
		return EmailPage{}, err
	}
	ref, err := batch.Ref(queryId, "/ids")
	if err != nil {
		return EmailPage{}, err
	}
	getId, err := batch.Add(protocol.MethodEmailGet, protocol.Args{
		"accountId":  ns.AccountId,
		"#ids":       ref,
		"properties": properties,
	})
	if err != nil {
		return EmailPage{}, err
	}

	resp, err := c.Request(ctx, batch)
	if err != nil {
		return EmailPage{}, fmt.Errorf("failed to query emails: %w", err)
	}
	var query protocol.QueryResponse
	if err := resp.Decode(queryId, &query); err != nil {
		return EmailPage{}, fmt.Errorf("failed to query emails: %w", err)
	}
	var got protocol.GetEmailsResponse
	if err := resp.Decode(getId, &got); err != nil {
		return EmailPage{}, fmt.Errorf("failed to get emails: %w", err)
	}

	for i := range got.List {
		ns.Email(&got.List[i])
	}
	return EmailPage{
		Emails:     got.List,
		Total:      query.Total,
		Position:   query.Position,
		QueryState: query.QueryState,
	}, nil
}

// GetEmail fetches one email with its text and HTML body values.
func (c *Client) GetEmail(ctx context.Context, id protocol.Id) (*protocol.Email, error) {
	ns, raw, err := c.resolveIds(protocol.MailCapability, []protocol.Id{id})
	if err != nil {
		return nil, err
	}
	var out protocol.GetEmailsResponse
	err = c.call(ctx, protocol.MethodEmailGet, protocol.Args{
		"accountId":           ns.AccountId,
		"ids":                 raw,
		"properties":          emailFullProperties,
		"fetchTextBodyValues": true,
		"fetchHTMLBodyValues": true,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to get email: %w", err)
	}
	if len(out.List) == 0 {
		return nil, fmt.Errorf("%w: email %s", ErrNotFound, id)
	}
	email := out.List[0]
	ns.Email(&email)
	return &email, nil
}

// GetThread returns the emails of a thread in thread order.
func (c *Client) GetThread(ctx context.Context, threadId protocol.Id) ([]protocol.Email, error) {
	ns, raw, err := c.resolveIds(protocol.MailCapability, []protocol.Id{threadId})
	if err != nil {
		return nil, err
	}

	batch := protocol.NewBatch()
	threadCall, err := batch.Add(protocol.MethodThreadGet, protocol.GetRequest{AccountId: ns.AccountId, Ids: raw})
	if err != nil {
		return nil, err
	}
	ref, err := batch.Ref(threadCall, "/list/*/emailIds")
	if err != nil {
		return nil, err
	}
	emailCall, err := batch.Add(protocol.MethodEmailGet, protocol.Args{
		"accountId":  ns.AccountId,
		"#ids":       ref,
		"properties": emailListProperties,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.Request(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	var threads protocol.GetResponse[protocol.Thread]
	if err := resp.Decode(threadCall, &threads); err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	if len(threads.List) == 0 {
		return nil, fmt.Errorf("%w: thread %s", ErrNotFound, threadId)
	}
	var emails protocol.GetEmailsResponse
	if err := resp.Decode(emailCall, &emails); err != nil {
		return nil, fmt.Errorf("failed to get thread emails: %w", err)
	}
	for i := range emails.List {
		ns.Email(&emails.List[i])
	}
	return emails.List, nil
}

// SetKeywords sets (true) or clears (false) keywords on emails, e.g.
// {"$seen": true} to mark them read.
func (c *Client) SetKeywords(ctx context.Context, ids []protocol.Id, keywords map[string]bool) error {
	patch := protocol.Args{}
	for kw, on := range keywords {
		if on {
			patch["keywords/"+kw] = true
		} else {
			patch["keywords/"+kw] = nil
		}
	}
	return c.updateEmails(ctx, ids, func(protocol.Namespace) (protocol.Args, error) { return patch, nil })
}

// MoveEmails replaces the mailboxes of emails with the single mailbox to.
func (c *Client) MoveEmails(ctx context.Context, ids []protocol.Id, to protocol.Id) error {
	return c.updateEmails(ctx, ids, func(ns protocol.Namespace) (protocol.Args, error) {
		acct, raw := protocol.ResolveID(to, ns.AccountId)
		if acct != ns.AccountId {
			return nil, fmt.Errorf("%w: mailbox in %s, emails in %s", ErrMixedAccounts, acct, ns.AccountId)
		}
		return protocol.Args{"mailboxIds": map[protocol.Id]bool{raw: true}}, nil
	})
}

// MarkAsSpam moves emails to the junk mailbox of their account and sets the
// $junk keyword.
func (c *Client) MarkAsSpam(ctx context.Context, ids []protocol.Id) error {
	return c.updateEmails(ctx, ids, func(ns protocol.Namespace) (protocol.Args, error) {
		junk, err := c.FindMailboxByRole(ctx, ns.AccountId, protocol.RoleJunk)
		if err != nil {
			return nil, err
		}
		return protocol.Args{
			"mailboxIds":                          map[protocol.Id]bool{junk.OriginalId: true},
			"keywords/" + protocol.KeywordJunk:    true,
			"keywords/" + protocol.KeywordNotJunk: nil,
		}, nil
	})
}

// MarkAsNotSpam moves emails back to the inbox and sets $notjunk.
func (c *Client) MarkAsNotSpam(ctx context.Context, ids []protocol.Id) error {
	return c.updateEmails(ctx, ids, func(ns protocol.Namespace) (protocol.Args, error) {
		inbox, err := c.FindMailboxByRole(ctx, ns.AccountId, protocol.RoleInbox)
		if err != nil {
			return nil, err
		}
		return protocol.Args{
			"mailboxIds":                          map[protocol.Id]bool{inbox.OriginalId: true},
			"keywords/" + protocol.KeywordNotJunk: true,
			"keywords/" + protocol.KeywordJunk:    nil,
		}, nil
	})
}

// updateEmails applies the same patch to every email.
func (c *Client) updateEmails(ctx context.Context, ids []protocol.Id, patchFor func(protocol.Namespace) (protocol.Args, error)) error {
	if len(ids) == 0 {
		return nil
	}
	ns, raw, err := c.resolveIds(protocol.MailCapability, ids)
	if err != nil {
		return err
	}
	patch, err := patchFor(ns)
	if err != nil {
		return err
	}
	update := make(map[protocol.Id]interface{}, len(raw))
	for _, id := range raw {
		update[id] = patch
	}
	if _, err := c.set(ctx, protocol.MethodEmailSet, protocol.Args{"accountId": ns.AccountId, "update": update}); err != nil {
		return fmt.Errorf("failed to update emails: %w", err)
	}
	return nil
}

// DestroyEmails permanently deletes emails.
func (c *Client) DestroyEmails(ctx context.Context, ids []protocol.Id) error {
	if len(ids) == 0 {
		return nil
	}
	ns, raw, err := c.resolveIds(protocol.MailCapability, ids)
	if err != nil {
		return err
	}
	if _, err := c.set(ctx, protocol.MethodEmailSet, protocol.Args{"accountId": ns.AccountId, "destroy": raw}); err != nil {
		return fmt.Errorf("failed to destroy emails: %w", err)
	}
	return nil
}

// ImportMessage renders msg as RFC 5322, uploads it and imports it into the
// given mailboxes.
func (c *Client) ImportMessage(ctx context.Context, msg *protocol.Message, mailboxIds []protocol.Id, keywords map[string]bool) (protocol.Id, error) {
	if len(mailboxIds) == 0 {
		return "", fmt.Errorf("import needs at least one mailbox")
	}
	ns, rawMailboxes, err := c.resolveIds(protocol.MailCapability, mailboxIds)
	if err != nil {
		return "", err
	}
	data, err := protocol.BuildMessage(msg)
	if err != nil {
		return "", err
	}
	blob, err := c.UploadBlob(ctx, ns.AccountId, bytes.NewReader(data), "message/rfc822")
	if err != nil {
		return "", fmt.Errorf("failed to upload message: %w", err)
	}

	receivedAt := msg.Date
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	email := protocol.Args{
		"blobId":     blob.BlobId,
		"mailboxIds": idSet(rawMailboxes),
		"receivedAt": receivedAt.UTC().Format(time.RFC3339),
	}
	if len(keywords) > 0 {
		email["keywords"] = keywords
	}
	cid := newCreationId()
	var out protocol.SetResponse
	err = c.call(ctx, protocol.MethodEmailImport, protocol.Args{
		"accountId": ns.AccountId,
		"emails":    map[string]interface{}{cid: email},
	}, &out)
	if err != nil {
		return "", fmt.Errorf("failed to import message: %w", err)
	}
	id, err := out.CreatedId(cid)
	if err != nil {
		return "", fmt.Errorf("failed to import message: %w", err)
	}
	return ns.ID(id), nil
}
