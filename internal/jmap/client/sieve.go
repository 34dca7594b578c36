package client

import (
	"context"
	"fmt"
	"io"
	"strings"

	"jmapclient/internal/jmap/protocol"
)

const sieveContentType = "application/sieve"

// GetSieveScripts lists the account's filter scripts.
func (c *Client) GetSieveScripts(ctx context.Context) ([]protocol.SieveScript, error) {
	list, err := c.getSieveScripts(ctx, nil)
	return degrade(c, "GetSieveScripts", list, err)
}

func (c *Client) getSieveScripts(ctx context.Context, ids []protocol.Id) ([]protocol.SieveScript, error) {
	ns, err := c.accountFor(protocol.SieveCapability, "")
	if err != nil {
		return nil, err
	}
	var out protocol.GetResponse[protocol.SieveScript]
	if err := c.call(ctx, protocol.MethodSieveScriptGet, protocol.GetRequest{AccountId: ns.AccountId, Ids: ids}, &out); err != nil {
		return nil, fmt.Errorf("failed to get sieve scripts: %w", err)
	}
	return out.List, nil
}

// CreateSieveScript uploads content and creates a script from it. With
// activate the new script replaces the active one in the same call.
func (c *Client) CreateSieveScript(ctx context.Context, name, content string, activate bool) (protocol.Id, error) {
	ns, err := c.accountFor(protocol.SieveCapability, "")
	if err != nil {
		return "", err
	}
	blob, err := c.UploadBlob(ctx, ns.AccountId, strings.NewReader(content), sieveContentType)
	if err != nil {
		return "", fmt.Errorf("failed to upload sieve script: %w", err)
	}

	cid := newCreationId()
	args := protocol.Args{
		"accountId": ns.AccountId,
		"create":    map[string]interface{}{cid: protocol.Args{"name": name, "blobId": blob.BlobId}},
	}
	if activate {
		args["onSuccessActivateScript"] = "#" + cid
	}
	out, err := c.set(ctx, protocol.MethodSieveScriptSet, args)
	if err != nil {
		return "", fmt.Errorf("failed to create sieve script %q: %w", name, err)
	}
	return out.CreatedId(cid)
}

// ActivateSieveScript makes id the active script, deactivating any other.
func (c *Client) ActivateSieveScript(ctx context.Context, id protocol.Id) error {
	ns, err := c.accountFor(protocol.SieveCapability, "")
	if err != nil {
		return err
	}
	if _, err := c.set(ctx, protocol.MethodSieveScriptSet, protocol.Args{
		"accountId":               ns.AccountId,
		"onSuccessActivateScript": id,
	}); err != nil {
		return fmt.Errorf("failed to activate sieve script: %w", err)
	}
	return nil
}

// DeactivateSieveScripts leaves the account without an active script.
func (c *Client) DeactivateSieveScripts(ctx context.Context) error {
	ns, err := c.accountFor(protocol.SieveCapability, "")
	if err != nil {
		return err
	}
	if _, err := c.set(ctx, protocol.MethodSieveScriptSet, protocol.Args{
		"accountId":                 ns.AccountId,
		"onSuccessDeactivateScript": true,
	}); err != nil {
		return fmt.Errorf("failed to deactivate sieve scripts: %w", err)
	}
	return nil
}

// DestroySieveScript deletes a script. Servers refuse to delete the active
// script.
func (c *Client) DestroySieveScript(ctx context.Context, id protocol.Id) error {
	ns, err := c.accountFor(protocol.SieveCapability, "")
	if err != nil {
		return err
	}
	if _, err := c.set(ctx, protocol.MethodSieveScriptSet, protocol.Args{
		"accountId": ns.AccountId,
		"destroy":   []protocol.Id{id},
	}); err != nil {
		return fmt.Errorf("failed to destroy sieve script: %w", err)
	}
	return nil
}

// ValidateSieveScript asks the server to compile content. A script with
// errors yields a *protocol.SetError of type invalidScript.
func (c *Client) ValidateSieveScript(ctx context.Context, content string) error {
	ns, err := c.accountFor(protocol.SieveCapability, "")
	if err != nil {
		return err
	}
	blob, err := c.UploadBlob(ctx, ns.AccountId, strings.NewReader(content), sieveContentType)
	if err != nil {
		return fmt.Errorf("failed to upload sieve script: %w", err)
	}
	var out protocol.SieveValidateResponse
	if err := c.call(ctx, protocol.MethodSieveScriptValidate, protocol.Args{
		"accountId": ns.AccountId,
		"blobId":    blob.BlobId,
	}, &out); err != nil {
		return fmt.Errorf("failed to validate sieve script: %w", err)
	}
	if out.Error != nil {
		return out.Error
	}
	return nil
}

// GetSieveScriptContent downloads the source of a script.
func (c *Client) GetSieveScriptContent(ctx context.Context, id protocol.Id) (string, error) {
	ns, err := c.accountFor(protocol.SieveCapability, "")
	if err != nil {
		return "", err
	}
	scripts, err := c.getSieveScripts(ctx, []protocol.Id{id})
	if err != nil {
		return "", err
	}
	if len(scripts) == 0 {
		return "", fmt.Errorf("%w: sieve script %s", ErrNotFound, id)
	}
	rc, err := c.DownloadBlob(ctx, ns.AccountId, scripts[0].BlobId, "", sieveContentType)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read sieve script: %w", err)
	}
	return string(data), nil
}
