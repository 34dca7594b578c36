// Package credential persists bearer tokens in the system keyring so a
// session can be restored without asking the user to sign in again.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/99designs/keyring"
)

const serviceName = "jmapclient"

// ErrNotFound is returned when no token is stored under a key.
var ErrNotFound = errors.New("credential not found")

// Token is a bearer token with its optional refresh token and expiry.
type Token struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`

	// ExpiresIn is the lifetime reported by a refresh. It is relative to
	// the moment the token was issued and is not persisted.
	ExpiresIn time.Duration `json:"-"`
}

// Valid reports whether the token is present and not past its expiry.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.Expiry.IsZero() || time.Now().Before(t.Expiry)
}

// Keyring stores tokens as JSON items in a keyring.
type Keyring struct {
	ring keyring.Keyring
}

// OpenKeyring opens the platform keyring. The encrypted file backend in
// fileDir is only allowed when filePassword is non-nil; tokens are never
// written under a built-in key.
func OpenKeyring(fileDir string, filePassword keyring.PromptFunc) (*Keyring, error) {
	ring, err := keyring.Open(keyringConfig(fileDir, filePassword))
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Keyring{ring: ring}, nil
}

func keyringConfig(fileDir string, filePassword keyring.PromptFunc) keyring.Config {
	cfg := keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
		},
		KeychainTrustApplication: true,
	}
	if filePassword == nil {
		return cfg
	}
	if fileDir == "" {
		fileDir = "~/.config/jmapclient/credentials"
	}
	cfg.AllowedBackends = append(cfg.AllowedBackends, keyring.FileBackend)
	cfg.FileDir = fileDir
	cfg.FilePasswordFunc = filePassword
	return cfg
}

// NewKeyring wraps an already opened keyring.
func NewKeyring(ring keyring.Keyring) *Keyring {
	return &Keyring{ring: ring}
}

// TokenKey derives the storage key for a server and user.
func TokenKey(server, username string) string {
	server = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(server)), "/")
	return "token:" + strings.ToLower(username) + "@" + server
}

// Load returns the token stored under key.
func (k *Keyring) Load(key string) (*Token, error) {
	item, err := k.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting credential %q: %w", key, err)
	}

	var tok Token
	if err := json.Unmarshal(item.Data, &tok); err != nil {
		return nil, fmt.Errorf("decoding credential %q: %w", key, err)
	}
	return &tok, nil
}

// Save stores tok under key, replacing any previous value.
func (k *Keyring) Save(key string, tok *Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding credential %q: %w", key, err)
	}
	err = k.ring.Set(keyring.Item{
		Key:         key,
		Data:        data,
		Label:       "JMAP access token",
		Description: "Bearer token for " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes the token stored under key. Deleting a missing key is not
// an error.
func (k *Keyring) Delete(key string) error {
	err := k.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}
