package client

import (
	"context"
	"fmt"

	"jmapclient/internal/jmap/protocol"
)

// GetIdentities returns the sending identities of an account ("" for the
// primary submission account).
func (c *Client) GetIdentities(ctx context.Context, accountId protocol.Id) ([]protocol.Identity, error) {
	list, err := c.getIdentities(ctx, accountId)
	return degrade(c, "GetIdentities", list, err)
}

func (c *Client) getIdentities(ctx context.Context, accountId protocol.Id) ([]protocol.Identity, error) {
	ns, err := c.accountFor(protocol.SubmissionCapability, accountId)
	if err != nil {
		return nil, err
	}
	var out protocol.GetResponse[protocol.Identity]
	if err := c.call(ctx, protocol.MethodIdentityGet, protocol.GetRequest{AccountId: ns.AccountId}, &out); err != nil {
		return nil, fmt.Errorf("failed to get identities: %w", err)
	}
	for i := range out.List {
		out.List[i].Id = ns.ID(out.List[i].Id)
	}
	return out.List, nil
}

// CreateIdentity adds a sending identity. The server may refuse addresses
// the user does not own.
func (c *Client) CreateIdentity(ctx context.Context, accountId protocol.Id, identity *protocol.Identity) (protocol.Id, error) {
	ns, err := c.accountFor(protocol.SubmissionCapability, accountId)
	if err != nil {
		return "", err
	}
	create := *identity
	create.Id = ""
	create.MayDelete = false
	cid := newCreationId()
	out, err := c.set(ctx, protocol.MethodIdentitySet, protocol.Args{
		"accountId": ns.AccountId,
		"create":    map[string]interface{}{cid: create},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create identity: %w", err)
	}
	id, err := out.CreatedId(cid)
	if err != nil {
		return "", err
	}
	return ns.ID(id), nil
}

// UpdateIdentity replaces the mutable fields of an identity: name, replyTo,
// bcc and the signatures. The email address cannot change.
func (c *Client) UpdateIdentity(ctx context.Context, identity *protocol.Identity) error {
	ns, raw, err := c.resolveIds(protocol.SubmissionCapability, []protocol.Id{identity.Id})
	if err != nil {
		return err
	}
	patch := protocol.Args{
		"name":          identity.Name,
		"replyTo":       identity.ReplyTo,
		"bcc":           identity.Bcc,
		"textSignature": identity.TextSignature,
		"htmlSignature": identity.HTMLSignature,
	}
	_, err = c.set(ctx, protocol.MethodIdentitySet, protocol.Args{
		"accountId": ns.AccountId,
		"update":    map[protocol.Id]interface{}{raw[0]: patch},
	})
	if err != nil {
		return fmt.Errorf("failed to update identity: %w", err)
	}
	return nil
}

// DestroyIdentity deletes an identity. Identities the server manages are
// refused with ErrForbidden.
func (c *Client) DestroyIdentity(ctx context.Context, id protocol.Id) error {
	ns, raw, err := c.resolveIds(protocol.SubmissionCapability, []protocol.Id{id})
	if err != nil {
		return err
	}
	_, err = c.set(ctx, protocol.MethodIdentitySet, protocol.Args{
		"accountId": ns.AccountId,
		"destroy":   raw,
	})
	if err != nil {
		return fmt.Errorf("failed to destroy identity: %w", err)
	}
	return nil
}
