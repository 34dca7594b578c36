package version

import (
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	if Get() == "" {
		t.Fatal("Get() returned empty version")
	}
	if strings.TrimSpace(Get()) != Get() {
		t.Errorf("Get() = %q, want trimmed", Get())
	}
	if got, want := UserAgent(), "jmapclient/"+Get(); got != want {
		t.Errorf("UserAgent() = %q, want %q", got, want)
	}
}
