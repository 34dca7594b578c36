package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"jmapclient/internal/jmap/protocol"
)

// parseBlob runs a Foo/parse method on one blob and returns the parsed
// objects. Servers return either one object or an array per blob.
func parseBlob[T any](ctx context.Context, c *Client, method, capability string, accountId, blobId protocol.Id) ([]T, error) {
	ns, err := c.accountFor(capability, accountId)
	if err != nil {
		return nil, err
	}
	var out protocol.ParseResult
	if err := c.call(ctx, method, protocol.ParseArgs{AccountId: ns.AccountId, BlobIds: []protocol.Id{blobId}}, &out); err != nil {
		return nil, fmt.Errorf("failed to parse blob %s: %w", blobId, err)
	}
	if containsId(out.NotFound, blobId) {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, blobId)
	}
	if containsId(out.NotParsable, blobId) {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotParsable, blobId)
	}
	raw, ok := out.Parsed[blobId]
	if !ok {
		return nil, nil
	}
	return decodeOneOrMany[T](raw)
}

func decodeOneOrMany[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		return nil, nil
	case trimmed[0] == '[':
		var list []T
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("failed to decode parsed objects: %w", err)
		}
		return list, nil
	default:
		var one T
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("failed to decode parsed object: %w", err)
		}
		return []T{one}, nil
	}
}

func containsId(ids []protocol.Id, id protocol.Id) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
