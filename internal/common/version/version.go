// Package version exposes the release version embedded from the VERSION file.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionRaw string

// Version is the current version of jmaptool and the client library,
// trimmed of whitespace.
var Version = strings.TrimSpace(versionRaw)

// Get returns the current version string.
func Get() string {
	return Version
}

// UserAgent returns the User-Agent sent by the client.
func UserAgent() string {
	return "jmapclient/" + Version
}
