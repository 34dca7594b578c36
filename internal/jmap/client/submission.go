package client

import (
	"context"
	"fmt"

	"jmapclient/internal/jmap/protocol"
)

// GetSubmissions returns the most recent email submissions, newest first.
func (c *Client) GetSubmissions(ctx context.Context, limit uint32) ([]protocol.EmailSubmission, error) {
	list, err := c.getSubmissions(ctx, limit)
	return degrade(c, "GetSubmissions", list, err)
}

func (c *Client) getSubmissions(ctx context.Context, limit uint32) ([]protocol.EmailSubmission, error) {
	ns, err := c.accountFor(protocol.SubmissionCapability, "")
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = defaultQueryLimit
	}

	batch := protocol.NewBatch()
	queryCall, err := batch.Add(protocol.MethodSubmissionQuery, protocol.QueryRequest{
		AccountId: ns.AccountId,
		Sort:      []protocol.SortOrder{{Property: "sentAt", IsAscending: false}},
		Limit:     &limit,
	})
	if err != nil {
		return nil, err
	}
	ref, err := batch.Ref(queryCall, "/ids")
	if err != nil {
		return nil, err
	}
	getCall, err := batch.Add(protocol.MethodSubmissionGet, protocol.Args{
		"accountId": ns.AccountId,
		"#ids":      ref,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.Request(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to get submissions: %w", err)
	}
	var out protocol.GetResponse[protocol.EmailSubmission]
	if err := resp.Decode(getCall, &out); err != nil {
		return nil, fmt.Errorf("failed to get submissions: %w", err)
	}
	for i := range out.List {
		out.List[i].Id = ns.ID(out.List[i].Id)
		out.List[i].EmailId = ns.ID(out.List[i].EmailId)
		out.List[i].ThreadId = ns.ID(out.List[i].ThreadId)
	}
	return out.List, nil
}
