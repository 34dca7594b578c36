package credential

import (
	"errors"
	"testing"
	"time"

	"github.com/99designs/keyring"
)

func TestKeyring_SaveLoadDelete(t *testing.T) {
	k := NewKeyring(keyring.NewArrayKeyring(nil))
	key := TokenKey("https://JMAP.example.com/", "User@example.com")

	if _, err := k.Load(key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() on empty keyring error = %v, want ErrNotFound", err)
	}

	expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	in := &Token{AccessToken: "at-1", RefreshToken: "rt-1", Expiry: expiry, ExpiresIn: time.Hour}
	if err := k.Save(key, in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	out, err := k.Load(key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if out.AccessToken != "at-1" || out.RefreshToken != "rt-1" {
		t.Errorf("Load() = %+v", out)
	}
	if !out.Expiry.Equal(expiry) {
		t.Errorf("Expiry = %v, want %v", out.Expiry, expiry)
	}
	if out.ExpiresIn != 0 {
		t.Errorf("ExpiresIn = %v, want 0 (not persisted)", out.ExpiresIn)
	}

	if err := k.Delete(key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := k.Load(key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() after Delete error = %v, want ErrNotFound", err)
	}
	if err := k.Delete(key); err != nil {
		t.Errorf("Delete() of missing key error = %v", err)
	}
}

func TestKeyringConfig_FileBackend(t *testing.T) {
	hasFile := func(cfg keyring.Config) bool {
		for _, b := range cfg.AllowedBackends {
			if b == keyring.FileBackend {
				return true
			}
		}
		return false
	}

	cfg := keyringConfig("", nil)
	if hasFile(cfg) {
		t.Error("file backend allowed without a file password")
	}
	if cfg.FilePasswordFunc != nil {
		t.Error("FilePasswordFunc set without a file password")
	}

	cfg = keyringConfig("/tmp/creds", keyring.FixedStringPrompt("s3cret"))
	if !hasFile(cfg) {
		t.Error("file backend not allowed with a file password")
	}
	if cfg.FileDir != "/tmp/creds" {
		t.Errorf("FileDir = %q, want %q", cfg.FileDir, "/tmp/creds")
	}
	pw, err := cfg.FilePasswordFunc("prompt")
	if err != nil || pw != "s3cret" {
		t.Errorf("FilePasswordFunc() = %q, %v, want %q", pw, err, "s3cret")
	}

	if cfg := keyringConfig("", keyring.FixedStringPrompt("x")); cfg.FileDir == "" {
		t.Error("FileDir empty, want the default credentials directory")
	}
}

func TestTokenKey(t *testing.T) {
	a := TokenKey("https://jmap.example.com/", "User@Example.com")
	b := TokenKey("HTTPS://JMAP.EXAMPLE.COM", "user@example.com")
	if a != b {
		t.Errorf("TokenKey() not normalized: %q vs %q", a, b)
	}
	if a == TokenKey("https://jmap.example.com", "other@example.com") {
		t.Error("TokenKey() collides for different users")
	}
}

func TestToken_Valid(t *testing.T) {
	tests := []struct {
		name string
		tok  *Token
		want bool
	}{
		{"nil", nil, false},
		{"empty", &Token{}, false},
		{"no expiry", &Token{AccessToken: "x"}, true},
		{"future", &Token{AccessToken: "x", Expiry: time.Now().Add(time.Hour)}, true},
		{"expired", &Token{AccessToken: "x", Expiry: time.Now().Add(-time.Minute)}, false},
	}
	for _, tt := range tests {
		if got := tt.tok.Valid(); got != tt.want {
			t.Errorf("%s: Valid() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
