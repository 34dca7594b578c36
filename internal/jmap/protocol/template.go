package protocol

import (
	"fmt"

	stduritemplate "github.com/std-uritemplate/std-uritemplate/go/v2"
)

// ExpandURL expands an RFC 6570 template such as the session's downloadUrl.
func ExpandURL(template string, vars map[string]string) (string, error) {
	subs := make(stduritemplate.Substitutions, len(vars))
	for k, v := range vars {
		subs[k] = v
	}
	out, err := stduritemplate.Expand(template, subs)
	if err != nil {
		return "", fmt.Errorf("failed to expand URL template %q: %w", template, err)
	}
	return out, nil
}

// UploadURLFor expands the session's upload template for an account.
func (s *Session) UploadURLFor(accountId Id) (string, error) {
	if s.UploadURL == "" {
		return "", fmt.Errorf("session has no uploadUrl")
	}
	return ExpandURL(s.UploadURL, map[string]string{"accountId": string(accountId)})
}

// DownloadURLFor expands the session's download template.
func (s *Session) DownloadURLFor(accountId, blobId Id, name, contentType string) (string, error) {
	if s.DownloadURL == "" {
		return "", fmt.Errorf("session has no downloadUrl")
	}
	return ExpandURL(s.DownloadURL, map[string]string{
		"accountId": string(accountId),
		"blobId":    string(blobId),
		"name":      name,
		"type":      contentType,
	})
}

// EventSourceURLFor expands the session's event source template.
// closeAfter is "state" or "no"; ping is the keep-alive interval in seconds.
func (s *Session) EventSourceURLFor(types, closeAfter string, ping int) (string, error) {
	if s.EventSourceURL == "" {
		return "", fmt.Errorf("session has no eventSourceUrl")
	}
	return ExpandURL(s.EventSourceURL, map[string]string{
		"types":      types,
		"closeafter": closeAfter,
		"ping":       fmt.Sprintf("%d", ping),
	})
}
