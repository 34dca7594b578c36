package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jmapclient/internal/common/logger"
	"jmapclient/internal/jmap/protocol"
)

// Draft is an email being composed.
type Draft struct {
	// AccountId defaults to the primary mail account, or the account of
	// ReplaceId when that is namespaced.
	AccountId  protocol.Id
	From       protocol.EmailAddress
	To         []protocol.EmailAddress
	Cc         []protocol.EmailAddress
	Bcc        []protocol.EmailAddress
	Subject    string
	TextBody   string
	HTMLBody   string
	InReplyTo  []string
	References []string

	// ReplaceId is the previously saved version of this draft. It is
	// destroyed in the same request that creates the new version.
	ReplaceId protocol.Id
}

func (d *Draft) recipients() []protocol.EmailAddress {
	var out []protocol.EmailAddress
	out = append(out, d.To...)
	out = append(out, d.Cc...)
	return append(out, d.Bcc...)
}

// email builds the Email/set create object.
func (d *Draft) email(mailboxIds map[protocol.Id]bool) protocol.Args {
	e := protocol.Args{
		"mailboxIds": mailboxIds,
		"keywords":   map[string]bool{protocol.KeywordDraft: true, protocol.KeywordSeen: true},
		"subject":    d.Subject,
	}
	if d.From.Email != "" {
		e["from"] = []protocol.EmailAddress{d.From}
	}
	if len(d.To) > 0 {
		e["to"] = d.To
	}
	if len(d.Cc) > 0 {
		e["cc"] = d.Cc
	}
	if len(d.Bcc) > 0 {
		e["bcc"] = d.Bcc
	}
	if len(d.InReplyTo) > 0 {
		e["inReplyTo"] = d.InReplyTo
	}
	if len(d.References) > 0 {
		e["references"] = d.References
	}

	values := map[string]protocol.EmailBodyValue{}
	if d.TextBody != "" || d.HTMLBody == "" {
		values["text"] = protocol.EmailBodyValue{Value: d.TextBody}
		e["textBody"] = []protocol.Args{{"partId": "text", "type": "text/plain"}}
	}
	if d.HTMLBody != "" {
		values["html"] = protocol.EmailBodyValue{Value: d.HTMLBody}
		e["htmlBody"] = []protocol.Args{{"partId": "html", "type": "text/html"}}
	}
	e["bodyValues"] = values
	return e
}

// draftAccount resolves the account of a draft and the raw id of the draft
// it replaces.
func (c *Client) draftAccount(d *Draft) (protocol.Namespace, protocol.Id, error) {
	ns, err := c.accountFor(protocol.MailCapability, d.AccountId)
	if err != nil {
		return ns, "", err
	}
	if d.ReplaceId == "" {
		return ns, "", nil
	}
	acct, raw := protocol.ResolveID(d.ReplaceId, ns.AccountId)
	if acct != ns.AccountId {
		if d.AccountId != "" {
			return ns, "", fmt.Errorf("%w: draft in %s, replaced draft in %s", ErrMixedAccounts, d.AccountId, acct)
		}
		if ns, err = c.accountFor(protocol.MailCapability, acct); err != nil {
			return ns, "", err
		}
	}
	return ns, raw, nil
}

// SaveDraft stores d in the drafts mailbox and returns the new email id. When
// d.ReplaceId is set the old version is destroyed first, in the same request.
// If the new draft is created but the old one cannot be destroyed, the new id
// is returned together with the error.
func (c *Client) SaveDraft(ctx context.Context, d *Draft) (protocol.Id, error) {
	ns, replaceRaw, err := c.draftAccount(d)
	if err != nil {
		return "", err
	}
	drafts, err := c.FindMailboxByRole(ctx, ns.AccountId, protocol.RoleDrafts)
	if err != nil {
		return "", err
	}

	batch := protocol.NewBatch()
	var destroyCall string
	if replaceRaw != "" {
		destroyCall, err = batch.Add(protocol.MethodEmailSet, protocol.Args{
			"accountId": ns.AccountId,
			"destroy":   []protocol.Id{replaceRaw},
		})
		if err != nil {
			return "", err
		}
	}
	cid := newCreationId()
	createCall, err := batch.Add(protocol.MethodEmailSet, protocol.Args{
		"accountId": ns.AccountId,
		"create":    map[string]interface{}{cid: d.email(map[protocol.Id]bool{drafts.OriginalId: true})},
	})
	if err != nil {
		return "", err
	}

	resp, err := c.Request(ctx, batch)
	if err != nil {
		return "", fmt.Errorf("failed to save draft: %w", err)
	}
	var created protocol.SetResponse
	if err := resp.Decode(createCall, &created); err != nil {
		return "", fmt.Errorf("failed to save draft: %w", err)
	}
	newId, err := created.CreatedId(cid)
	if err != nil {
		return "", fmt.Errorf("failed to save draft: %w", err)
	}
	newId = ns.ID(newId)

	if destroyCall != "" {
		if err := destroyResult(resp, destroyCall); err != nil {
			return newId, fmt.Errorf("draft saved but previous version not removed: %w", err)
		}
	}
	return newId, nil
}

// destroyResult checks an Email/set destroy. An already missing email is
// not a failure.
func destroyResult(resp *protocol.Response, callId string) error {
	var out protocol.SetResponse
	if err := resp.Decode(callId, &out); err != nil {
		return err
	}
	err := classifySetError(out.Err())
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// SendRequest is a draft to send with the identity to send it as.
type SendRequest struct {
	Draft
	// IdentityId selects the sending identity. When empty the identity
	// whose address matches Draft.From is used, else the first one.
	IdentityId protocol.Id
}

// SendResult identifies what Send created.
type SendResult struct {
	EmailId      protocol.Id
	SubmissionId protocol.Id
	IdentityId   protocol.Id
}

// Send creates the draft and submits it in one request. On success the
// server moves the email from the drafts to the sent mailbox and clears
// $draft.
func (c *Client) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	d := req.Draft
	ns, replaceRaw, err := c.draftAccount(&d)
	if err != nil {
		return nil, err
	}
	if _, err := c.accountFor(protocol.SubmissionCapability, ns.AccountId); err != nil {
		return nil, err
	}
	if len(d.recipients()) == 0 {
		return nil, fmt.Errorf("message has no recipients")
	}

	identities, err := c.getIdentities(ctx, ns.AccountId)
	if err != nil {
		return nil, err
	}
	identity, err := selectIdentity(identities, req.IdentityId, d.From.Email)
	if err != nil {
		return nil, err
	}
	if d.From.Email == "" {
		d.From = protocol.EmailAddress{Name: identity.Name, Email: identity.Email}
	}
	identityId := identity.Id
	if _, raw, ok := protocol.SplitID(identityId); ok {
		identityId = raw
	}

	mailboxes, err := c.getMailboxes(ctx, ns.AccountId)
	if err != nil {
		return nil, err
	}
	drafts := findRole(mailboxes, protocol.RoleDrafts)
	if drafts == nil {
		return nil, &MissingRoleError{AccountId: string(ns.AccountId), Role: protocol.RoleDrafts}
	}
	sent := findRole(mailboxes, protocol.RoleSent)
	if sent == nil {
		return nil, &MissingRoleError{AccountId: string(ns.AccountId), Role: protocol.RoleSent}
	}

	batch := protocol.NewBatch()
	var destroyCall string
	if replaceRaw != "" {
		destroyCall, err = batch.Add(protocol.MethodEmailSet, protocol.Args{
			"accountId": ns.AccountId,
			"destroy":   []protocol.Id{replaceRaw},
		})
		if err != nil {
			return nil, err
		}
	}
	emailCid := newCreationId()
	emailCall, err := batch.Add(protocol.MethodEmailSet, protocol.Args{
		"accountId": ns.AccountId,
		"create":    map[string]interface{}{emailCid: d.email(map[protocol.Id]bool{drafts.OriginalId: true})},
	})
	if err != nil {
		return nil, err
	}

	envelope := &protocol.Envelope{MailFrom: protocol.Address{Email: identity.Email}}
	for _, rcpt := range d.recipients() {
		envelope.RcptTo = append(envelope.RcptTo, protocol.Address{Email: rcpt.Email})
	}
	subCid := newCreationId()
	subCall, err := batch.Add(protocol.MethodSubmissionSet, protocol.Args{
		"accountId": ns.AccountId,
		"create": map[string]interface{}{subCid: protocol.Args{
			"identityId": identityId,
			"emailId":    "#" + emailCid,
			"envelope":   envelope,
		}},
		"onSuccessUpdateEmail": map[string]interface{}{"#" + subCid: protocol.Args{
			"mailboxIds/" + string(drafts.OriginalId): nil,
			"mailboxIds/" + string(sent.OriginalId):   true,
			"keywords/" + protocol.KeywordDraft:       nil,
		}},
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.Request(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to send: %w", err)
	}
	var emailSet protocol.SetResponse
	if err := resp.Decode(emailCall, &emailSet); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	emailId, err := emailSet.CreatedId(emailCid)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	var subSet protocol.SetResponse
	if err := resp.DecodeNamed(subCall, protocol.MethodSubmissionSet, &subSet); err != nil {
		return nil, fmt.Errorf("failed to submit message: %w", err)
	}
	subId, err := subSet.CreatedId(subCid)
	if err != nil {
		return nil, fmt.Errorf("failed to submit message: %w", err)
	}

	// The implicit Email/set shares the submission's call id.
	var moved protocol.SetResponse
	if err := resp.DecodeNamed(subCall, protocol.MethodEmailSet, &moved); err == nil {
		if err := moved.Err(); err != nil {
			logger.LogWarn(c.logger, "Message sent but not moved to sent mailbox", "error", err)
		}
	}
	if destroyCall != "" {
		if err := destroyResult(resp, destroyCall); err != nil {
			logger.LogWarn(c.logger, "Message sent but previous draft not removed", "error", err)
		}
	}

	logger.LogInfo(c.logger, "Message submitted", "submission", subId, "recipients", len(envelope.RcptTo))
	return &SendResult{EmailId: ns.ID(emailId), SubmissionId: ns.ID(subId), IdentityId: identity.Id}, nil
}

// selectIdentity picks the explicit identity, else the one matching from
// (case-insensitively), else the first.
func selectIdentity(identities []protocol.Identity, id protocol.Id, from string) (*protocol.Identity, error) {
	if len(identities) == 0 {
		return nil, ErrIdentityNotFound
	}
	if id != "" {
		for i := range identities {
			if identities[i].Id == id {
				return &identities[i], nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrIdentityNotFound, id)
	}
	if from != "" {
		for i := range identities {
			if strings.EqualFold(identities[i].Email, from) {
				return &identities[i], nil
			}
		}
	}
	return &identities[0], nil
}
