package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"jmapclient/internal/common/logger"
	"jmapclient/internal/jmap/client"
	"jmapclient/internal/jmap/protocol"
)

// testConnect checks that the server is reachable and serves a session
// resource. Without credentials a 401 still counts as reachable.
func testConnect(ctx context.Context, config *Config, csvLogger logger.Logger, slogLogger *slog.Logger) error {
	discoveryURL := protocol.DiscoveryURL(config.serverURL())
	fmt.Printf("Testing JMAP connectivity to %s...\n", config.Host)
	fmt.Printf("Discovery URL: %s\n", discoveryURL)

	results := newResultWriter(csvLogger, config, []string{"Port", "Discovery_URL", "API_URL", "Capabilities", "Accounts", "Error"})

	probe := *config
	anonymous := probe.AccessToken == "" && probe.Password == "" && !probe.UseKeyring
	if anonymous {
		probe.AuthMethod = string(client.AuthBasic)
		if probe.Username == "" {
			probe.Username = "anonymous"
		}
	}

	c, session, err := connect(ctx, &probe, slogLogger)
	if err != nil {
		if anonymous && errors.Is(err, client.ErrInvalidCredentials) {
			fmt.Println("✓ Server reachable, session requires authentication")
			results.success(fmt.Sprintf("%d", config.Port), discoveryURL, "", "", "", "authentication required")
			logger.LogInfo(slogLogger, "JMAP connectivity test completed", "host", config.Host, "authenticated", false)
			return nil
		}

		logger.LogError(slogLogger, "JMAP discovery failed",
			"error", err,
			"host", config.Host,
			"cause", connectFailureKind(err))
		results.failure(err)
		return fmt.Errorf("JMAP discovery failed: %w", err)
	}
	defer c.Disconnect()

	fmt.Println("✓ JMAP session discovered successfully")
	printSession(session)

	caps := session.GetCapabilityNames()
	results.success(fmt.Sprintf("%d", config.Port), discoveryURL, session.APIURL,
		strings.Join(caps, "; "), fmt.Sprintf("%d", session.GetAccountCount()), "")

	logger.LogInfo(slogLogger, "JMAP connectivity test completed",
		"host", config.Host,
		"api_url", session.APIURL,
		"capabilities", len(caps),
		"accounts", session.GetAccountCount())

	fmt.Println("\n✓ JMAP connectivity test completed")
	return nil
}

// connectFailureKind names the class of a connection error for logs.
func connectFailureKind(err error) string {
	var ce *client.ConnectError
	switch {
	case errors.Is(err, client.ErrHostUnreachable):
		return "unreachable"
	case errors.Is(err, client.ErrCORSBlocked):
		return "blocked"
	case errors.Is(err, client.ErrInvalidCredentials):
		return "credentials"
	case errors.Is(err, client.ErrInvalidSession):
		return "session"
	case errors.As(err, &ce):
		return fmt.Sprintf("http %d", ce.StatusCode)
	default:
		return "other"
	}
}

func printSession(session *protocol.Session) {
	fmt.Printf("\nSession Information:\n")
	fmt.Printf("  API URL:      %s\n", session.APIURL)
	fmt.Printf("  Username:     %s\n", session.Username)
	fmt.Printf("  Accounts:     %d\n", session.GetAccountCount())
	if session.EventSourceURL != "" {
		fmt.Printf("  Push:         event source\n")
	}

	caps := session.GetCapabilityNames()
	fmt.Printf("  Capabilities: %d\n", len(caps))
	for _, cap := range caps {
		fmt.Printf("    - %s\n", cap)
	}

	if session.GetAccountCount() == 0 {
		return
	}
	fmt.Printf("\nAccounts:\n")
	for _, id := range session.AccountIds() {
		account := session.Accounts[id]
		fmt.Printf("  %s: %s", id, account.Name)
		if account.IsPersonal {
			fmt.Printf(" (personal)")
		}
		if account.IsReadOnly {
			fmt.Printf(" (read-only)")
		}
		fmt.Println()
	}
}
