package client

import (
	"context"
	"errors"
	"fmt"

	"jmapclient/internal/common/logger"
	"jmapclient/internal/jmap/protocol"
)

// GetMailboxes returns the mailboxes of an account. An empty accountId means
// the primary mail account. Mailboxes of other accounts carry namespaced ids.
func (c *Client) GetMailboxes(ctx context.Context, accountId protocol.Id) ([]protocol.Mailbox, error) {
	list, err := c.getMailboxes(ctx, accountId)
	return degrade(c, "GetMailboxes", list, err)
}

func (c *Client) getMailboxes(ctx context.Context, accountId protocol.Id) ([]protocol.Mailbox, error) {
	ns, err := c.accountFor(protocol.MailCapability, accountId)
	if err != nil {
		return nil, err
	}
	var out protocol.GetMailboxesResponse
	if err := c.call(ctx, protocol.MethodMailboxGet, protocol.GetRequest{AccountId: ns.AccountId}, &out); err != nil {
		return nil, fmt.Errorf("failed to get mailboxes: %w", err)
	}
	for i := range out.List {
		ns.Mailbox(&out.List[i])
	}
	return out.List, nil
}

// GetAllMailboxes returns the mailboxes of every account with mail, in one
// request. An account whose call fails is skipped.
func (c *Client) GetAllMailboxes(ctx context.Context) ([]protocol.Mailbox, error) {
	list, err := c.getAllMailboxes(ctx)
	return degrade(c, "GetAllMailboxes", list, err)
}

func (c *Client) getAllMailboxes(ctx context.Context) ([]protocol.Mailbox, error) {
	session, primary, _, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	accounts := session.AccountsWithCapability(protocol.MailCapability)
	if len(accounts) == 0 {
		return nil, &CapabilityError{Capability: protocol.MailCapability}
	}

	batch := protocol.NewBatch()
	callIds := make([]string, len(accounts))
	for i, acct := range accounts {
		if callIds[i], err = batch.Add(protocol.MethodMailboxGet, protocol.GetRequest{AccountId: acct}); err != nil {
			return nil, err
		}
	}
	resp, err := c.Request(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to get mailboxes: %w", err)
	}

	var all []protocol.Mailbox
	for i, acct := range accounts {
		var out protocol.GetMailboxesResponse
		if err := resp.Decode(callIds[i], &out); err != nil {
			logger.LogWarn(c.logger, "Skipping account mailboxes", "account", acct, "error", err)
			continue
		}
		ns := protocol.Namespace{AccountId: acct, Primary: primary}
		for j := range out.List {
			ns.Mailbox(&out.List[j])
		}
		all = append(all, out.List...)
	}
	return all, nil
}

// FindMailboxByRole returns the account's mailbox with role. A missing role
// is reported as *MissingRoleError.
func (c *Client) FindMailboxByRole(ctx context.Context, accountId protocol.Id, role string) (*protocol.Mailbox, error) {
	ns, err := c.accountFor(protocol.MailCapability, accountId)
	if err != nil {
		return nil, err
	}
	list, err := c.getMailboxes(ctx, ns.AccountId)
	if err != nil {
		return nil, err
	}
	if mb := findRole(list, role); mb != nil {
		return mb, nil
	}
	return nil, &MissingRoleError{AccountId: string(ns.AccountId), Role: role}
}

func findRole(list []protocol.Mailbox, role string) *protocol.Mailbox {
	for i := range list {
		if list[i].HasRole(role) {
			return &list[i]
		}
	}
	return nil
}

// CreateMailbox creates a mailbox under parentId ("" for top level). The
// mailbox is created in the parent's account, or the primary mail account.
func (c *Client) CreateMailbox(ctx context.Context, name string, parentId protocol.Id) (protocol.Id, error) {
	var ns protocol.Namespace
	var rawParent []protocol.Id
	var err error
	if parentId != "" {
		ns, rawParent, err = c.resolveIds(protocol.MailCapability, []protocol.Id{parentId})
	} else {
		ns, err = c.accountFor(protocol.MailCapability, "")
	}
	if err != nil {
		return "", err
	}
	if err := c.checkMailboxLimits(ns.AccountId, name, parentId == ""); err != nil {
		return "", err
	}

	mailbox := protocol.Args{"name": name}
	if len(rawParent) == 1 {
		mailbox["parentId"] = rawParent[0]
	}
	cid := newCreationId()
	out, err := c.set(ctx, protocol.MethodMailboxSet, protocol.Args{
		"accountId": ns.AccountId,
		"create":    map[string]interface{}{cid: mailbox},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create mailbox %q: %w", name, err)
	}
	id, err := out.CreatedId(cid)
	if err != nil {
		return "", err
	}
	return ns.ID(id), nil
}

// checkMailboxLimits applies the mail limits the account advertises. An
// account without parsable limits is not checked.
func (c *Client) checkMailboxLimits(accountId protocol.Id, name string, topLevel bool) error {
	session, _, _, err := c.snapshot()
	if err != nil {
		return err
	}
	limits, err := session.GetMailCapability(accountId)
	if err != nil {
		return nil
	}
	if limits.MaxSizeMailboxName > 0 && len(name) > limits.MaxSizeMailboxName {
		return fmt.Errorf("%w: %d octets, limit is %d", ErrMailboxNameTooLong, len(name), limits.MaxSizeMailboxName)
	}
	if topLevel && limits.MayCreateTopLevelMailbox != nil && !*limits.MayCreateTopLevelMailbox {
		return fmt.Errorf("%w: account %s does not allow top-level mailboxes", ErrForbidden, accountId)
	}
	return nil
}

// RenameMailbox changes a mailbox name.
func (c *Client) RenameMailbox(ctx context.Context, id protocol.Id, name string) error {
	ns, raw, err := c.resolveIds(protocol.MailCapability, []protocol.Id{id})
	if err != nil {
		return err
	}
	if err := c.checkMailboxLimits(ns.AccountId, name, false); err != nil {
		return err
	}
	_, err = c.set(ctx, protocol.MethodMailboxSet, protocol.Args{
		"accountId": ns.AccountId,
		"update":    map[protocol.Id]interface{}{raw[0]: protocol.Args{"name": name}},
	})
	if err != nil {
		return fmt.Errorf("failed to rename mailbox: %w", err)
	}
	return nil
}

// DestroyMailbox deletes a mailbox. With removeEmails, emails only in this
// mailbox are deleted too; otherwise the server refuses a non-empty mailbox.
func (c *Client) DestroyMailbox(ctx context.Context, id protocol.Id, removeEmails bool) error {
	ns, raw, err := c.resolveIds(protocol.MailCapability, []protocol.Id{id})
	if err != nil {
		return err
	}
	_, err = c.set(ctx, protocol.MethodMailboxSet, protocol.Args{
		"accountId":             ns.AccountId,
		"destroy":               raw,
		"onDestroyRemoveEmails": removeEmails,
	})
	if err != nil {
		return fmt.Errorf("failed to destroy mailbox: %w", err)
	}
	return nil
}

// classifySetError maps well-known SetError types onto sentinel errors while
// keeping the SetError in the chain.
func classifySetError(err error) error {
	var se *protocol.SetError
	if !errors.As(err, &se) {
		return err
	}
	switch se.Type {
	case protocol.SetErrorForbidden:
		return fmt.Errorf("%w: %w", ErrForbidden, se)
	case protocol.SetErrorNotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, se)
	}
	return err
}
