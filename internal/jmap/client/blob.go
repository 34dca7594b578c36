package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"jmapclient/internal/common/logger"
	"jmapclient/internal/jmap/protocol"
)

const defaultBlobType = "application/octet-stream"

// UploadBlob uploads data to an account ("" for the primary account). The
// body is buffered so it can be resent after a token refresh.
func (c *Client) UploadBlob(ctx context.Context, accountId protocol.Id, data io.Reader, contentType string) (*protocol.BlobRef, error) {
	session, primary, _, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	if accountId == "" {
		accountId = primary
	}
	if contentType == "" {
		contentType = defaultBlobType
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload data: %w", err)
	}
	if core, err := session.GetCoreCapability(); err == nil && core.MaxSizeUpload > 0 && int64(len(body)) > core.MaxSizeUpload {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrBlobTooLarge, len(body), core.MaxSizeUpload)
	}
	uploadURL, err := session.UploadURLFor(accountId)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	logger.LogDebug(c.logger, "Uploading blob", "account", accountId, "type", contentType, "bytes", len(body))
	resp, err := c.do(ctx, c.httpClient, "upload", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, readError(resp, "upload")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading upload response: %v", ErrFetchFailed, err)
	}
	return normalizeUpload(raw, accountId)
}

// normalizeUpload accepts both the flat RFC 8620 upload response and a
// response keyed by account id.
func normalizeUpload(raw []byte, accountId protocol.Id) (*protocol.BlobRef, error) {
	var flat protocol.BlobRef
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, &InvalidJSONError{Body: truncate(raw), Err: err}
	}
	if flat.BlobId != "" {
		if flat.AccountId == "" {
			flat.AccountId = accountId
		}
		return &flat, nil
	}

	var nested map[protocol.Id]protocol.BlobRef
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, &InvalidJSONError{Body: truncate(raw), Err: err}
	}
	ref, ok := nested[accountId]
	if !ok && len(nested) == 1 {
		for acct, only := range nested {
			ref, accountId = only, acct
		}
	}
	if ref.BlobId == "" {
		return nil, fmt.Errorf("upload response has no blobId")
	}
	ref.AccountId = accountId
	return &ref, nil
}

// DownloadURL expands the session's download template. The name defaults to
// the blob id and the type to application/octet-stream.
func (c *Client) DownloadURL(accountId, blobId protocol.Id, name, contentType string) (string, error) {
	session, primary, _, err := c.snapshot()
	if err != nil {
		return "", err
	}
	if session.DownloadURL == "" {
		return "", fmt.Errorf("%w: session has no download URL", ErrNotConnected)
	}
	if accountId == "" {
		accountId = primary
	}
	if name == "" {
		name = string(blobId)
	}
	if contentType == "" {
		contentType = defaultBlobType
	}
	return session.DownloadURLFor(accountId, blobId, name, contentType)
}

// DownloadBlob opens a blob for reading. The caller closes the reader.
func (c *Client) DownloadBlob(ctx context.Context, accountId, blobId protocol.Id, name, contentType string) (io.ReadCloser, error) {
	downloadURL, err := c.DownloadURL(accountId, blobId, name, contentType)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, c.streamClient, "download", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	})
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		drain(resp)
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, blobId)
	case !isSuccess(resp.StatusCode):
		return nil, readError(resp, "download")
	}
	return resp.Body, nil
}
