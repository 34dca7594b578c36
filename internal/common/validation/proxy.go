package validation

import (
	"fmt"
	"net/url"
)

// ValidateProxyURL validates an optional proxy URL. Supported schemes are
// http, https and socks5. An empty string means no proxy.
func ValidateProxyURL(proxyURL string) error {
	if proxyURL == "" {
		return nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL format: %w", err)
	}

	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return fmt.Errorf("unsupported proxy scheme %q (valid: http, https, socks5)", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("proxy URL must include hostname")
	}
	if err := ValidateHostname(host); err != nil {
		return fmt.Errorf("invalid proxy hostname: %w", err)
	}

	if p := u.Port(); p != "" {
		if err := validatePortString(p); err != nil {
			return fmt.Errorf("invalid proxy port: %w", err)
		}
	}

	if u.User != nil && u.User.Username() == "" {
		return fmt.Errorf("proxy URL has empty username")
	}
	return nil
}
