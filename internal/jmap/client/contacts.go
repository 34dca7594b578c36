package client

import (
	"context"
	"fmt"

	"jmapclient/internal/jmap/protocol"
)

// ContactQuery selects contact cards.
type ContactQuery struct {
	AddressBookId protocol.Id
	Text          string
	Limit         uint32
}

// GetAddressBooks lists the address books of the primary contacts account.
func (c *Client) GetAddressBooks(ctx context.Context) ([]protocol.AddressBook, error) {
	list, err := c.getAddressBooks(ctx)
	return degrade(c, "GetAddressBooks", list, err)
}

func (c *Client) getAddressBooks(ctx context.Context) ([]protocol.AddressBook, error) {
	ns, err := c.accountFor(protocol.ContactsCapability, "")
	if err != nil {
		return nil, err
	}
	var out protocol.GetResponse[protocol.AddressBook]
	if err := c.call(ctx, protocol.MethodAddressBookGet, protocol.GetRequest{AccountId: ns.AccountId}, &out); err != nil {
		return nil, fmt.Errorf("failed to get address books: %w", err)
	}
	return out.List, nil
}

// QueryContacts finds contact cards, sorted by name.
func (c *Client) QueryContacts(ctx context.Context, q ContactQuery) ([]protocol.ContactCard, error) {
	list, err := c.queryContacts(ctx, q)
	return degrade(c, "QueryContacts", list, err)
}

func (c *Client) queryContacts(ctx context.Context, q ContactQuery) ([]protocol.ContactCard, error) {
	ns, err := c.accountFor(protocol.ContactsCapability, "")
	if err != nil {
		return nil, err
	}
	filter := protocol.Args{}
	if q.AddressBookId != "" {
		filter["inAddressBook"] = q.AddressBookId
	}
	if q.Text != "" {
		filter["text"] = q.Text
	}
	limit := q.Limit
	if limit == 0 {
		limit = defaultQueryLimit
	}

	batch := protocol.NewBatch()
	query := protocol.QueryRequest{
		AccountId: ns.AccountId,
		Sort:      []protocol.SortOrder{{Property: "name/given", IsAscending: true}},
		Limit:     &limit,
	}
	if len(filter) > 0 {
		query.Filter = filter
	}
	queryCall, err := batch.Add(protocol.MethodContactCardQuery, query)
	if err != nil {
		return nil, err
	}
	ref, err := batch.Ref(queryCall, "/ids")
	if err != nil {
		return nil, err
	}
	getCall, err := batch.Add(protocol.MethodContactCardGet, protocol.Args{
		"accountId": ns.AccountId,
		"#ids":      ref,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.Request(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	var out protocol.GetResponse[protocol.ContactCard]
	if err := resp.Decode(getCall, &out); err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	return out.List, nil
}

// CreateContact creates a contact card and returns its id.
func (c *Client) CreateContact(ctx context.Context, card *protocol.ContactCard) (protocol.Id, error) {
	ns, err := c.accountFor(protocol.ContactsCapability, "")
	if err != nil {
		return "", err
	}
	create := *card
	create.Id = ""
	if create.Type == "" {
		create.Type = "Card"
	}
	if create.Version == "" {
		create.Version = "1.0"
	}
	cid := newCreationId()
	out, err := c.set(ctx, protocol.MethodContactCardSet, protocol.Args{
		"accountId": ns.AccountId,
		"create":    map[string]interface{}{cid: create},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create contact: %w", err)
	}
	return out.CreatedId(cid)
}

// UpdateContact applies a JMAP patch to a contact card, e.g.
// {"name/full": "Ada Lovelace"}.
func (c *Client) UpdateContact(ctx context.Context, id protocol.Id, patch protocol.Args) error {
	ns, raw, err := c.resolveIds(protocol.ContactsCapability, []protocol.Id{id})
	if err != nil {
		return err
	}
	if _, err := c.set(ctx, protocol.MethodContactCardSet, protocol.Args{
		"accountId": ns.AccountId,
		"update":    map[protocol.Id]interface{}{raw[0]: patch},
	}); err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	return nil
}

// DestroyContacts deletes contact cards.
func (c *Client) DestroyContacts(ctx context.Context, ids []protocol.Id) error {
	if len(ids) == 0 {
		return nil
	}
	ns, raw, err := c.resolveIds(protocol.ContactsCapability, ids)
	if err != nil {
		return err
	}
	if _, err := c.set(ctx, protocol.MethodContactCardSet, protocol.Args{
		"accountId": ns.AccountId,
		"destroy":   raw,
	}); err != nil {
		return fmt.Errorf("failed to destroy contacts: %w", err)
	}
	return nil
}

// ParseContacts turns an uploaded vCard blob into contact cards without
// storing them.
func (c *Client) ParseContacts(ctx context.Context, blobId protocol.Id) ([]protocol.ContactCard, error) {
	return parseBlob[protocol.ContactCard](ctx, c, protocol.MethodContactCardParse, protocol.ContactsCapability, "", blobId)
}
