package client

import (
	"context"
	"fmt"

	"jmapclient/internal/jmap/protocol"
)

// GetVacationResponse returns the account's vacation responder.
func (c *Client) GetVacationResponse(ctx context.Context) (*protocol.VacationResponse, error) {
	ns, err := c.accountFor(protocol.VacationResponseCapability, "")
	if err != nil {
		return nil, err
	}
	var out protocol.GetResponse[protocol.VacationResponse]
	err = c.call(ctx, protocol.MethodVacationGet, protocol.GetRequest{
		AccountId: ns.AccountId,
		Ids:       []protocol.Id{protocol.VacationResponseId},
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to get vacation response: %w", err)
	}
	if len(out.List) == 0 {
		return nil, fmt.Errorf("%w: vacation response", ErrNotFound)
	}
	return &out.List[0], nil
}

// SetVacationResponse replaces the vacation responder settings.
func (c *Client) SetVacationResponse(ctx context.Context, v *protocol.VacationResponse) error {
	ns, err := c.accountFor(protocol.VacationResponseCapability, "")
	if err != nil {
		return err
	}
	patch := *v
	patch.Id = ""
	_, err = c.set(ctx, protocol.MethodVacationSet, protocol.Args{
		"accountId": ns.AccountId,
		"update":    map[protocol.Id]interface{}{protocol.VacationResponseId: patch},
	})
	if err != nil {
		return fmt.Errorf("failed to set vacation response: %w", err)
	}
	return nil
}
