// Package validation checks command-line input before any network I/O.
package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ValidateFilePath checks that path names an existing regular file. Relative
// paths may not climb out of the working directory with "..". An empty path
// is accepted, since the flags using it are optional.
func ValidateFilePath(path, fieldName string) error {
	if path == "" {
		return nil
	}

	clean := filepath.Clean(path)
	if !filepath.IsAbs(clean) && (clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator))) {
		return fmt.Errorf("%s: path contains directory traversal (..) which is not allowed", fieldName)
	}

	info, err := os.Stat(clean)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: file not found: %s", fieldName, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%s: permission denied: %s", fieldName, path)
	case err != nil:
		return fmt.Errorf("%s: cannot access file: %w", fieldName, err)
	case !info.Mode().IsRegular():
		return fmt.Errorf("%s: not a regular file: %s", fieldName, path)
	}
	return nil
}

// ValidateHostname accepts an IPv4/IPv6 literal or a DNS name made of
// letters, digits and hyphens, with labels of at most 63 characters.
func ValidateHostname(hostname string) error {
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return fmt.Errorf("hostname cannot be empty")
	}
	if net.ParseIP(hostname) != nil {
		return nil
	}
	if len(hostname) > 253 {
		return fmt.Errorf("hostname too long (max 253 characters)")
	}

	for _, label := range strings.Split(hostname, ".") {
		if label == "" {
			return fmt.Errorf("hostname %q has an empty label", hostname)
		}
		if len(label) > 63 {
			return fmt.Errorf("hostname label %q too long (max 63 characters)", label)
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return fmt.Errorf("hostname label %q cannot start or end with hyphen", label)
		}
		for _, ch := range label {
			if !isHostChar(ch) {
				return fmt.Errorf("hostname contains invalid character: %c", ch)
			}
		}
	}
	return nil
}

func isHostChar(ch rune) bool {
	return ch == '-' || ('0' <= ch && ch <= '9') || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

// ValidatePort validates that a port number is in the valid range (1-65535).
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535 (got %d)", port)
	}
	return nil
}

// ValidateServerURL validates a JMAP server given either as a bare host
// (host or host:port) or as an http(s) URL.
func ValidateServerURL(server string) error {
	server = strings.TrimSpace(server)
	if server == "" {
		return fmt.Errorf("server cannot be empty")
	}
	if !strings.Contains(server, "://") {
		server = "https://" + server
	}
	u, err := url.Parse(server)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported server scheme %q (valid: http, https)", u.Scheme)
	}
	if err := ValidateHostname(u.Hostname()); err != nil {
		return fmt.Errorf("invalid server host: %w", err)
	}
	if p := u.Port(); p != "" {
		if err := validatePortString(p); err != nil {
			return fmt.Errorf("invalid server port: %w", err)
		}
	}
	return nil
}

func validatePortString(p string) error {
	port, err := strconv.Atoi(p)
	if err != nil {
		return fmt.Errorf("port %q is not a number", p)
	}
	return ValidatePort(port)
}
