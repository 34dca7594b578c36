package main

import (
	"context"
	"fmt"
	"log/slog"

	"jmapclient/internal/common/logger"
	"jmapclient/internal/jmap/protocol"
)

// testAuth connects with the configured credentials and round-trips a
// Core/echo call.
func testAuth(ctx context.Context, config *Config, csvLogger logger.Logger, slogLogger *slog.Logger) error {
	fmt.Printf("Testing JMAP authentication to %s...\n", config.Host)
	fmt.Printf("Username: %s\n", config.Username)
	switch {
	case config.AccessToken != "":
		fmt.Printf("Access token: %s\n", maskAccessToken(config.AccessToken))
	case config.Password != "":
		fmt.Printf("Password: %s\n", maskPassword(config.Password))
	}

	results := newResultWriter(csvLogger, config, []string{"Username", "Auth_Method", "API_URL", "Accounts", "Error"})

	c, session, err := connect(ctx, config, slogLogger)
	if err != nil {
		logger.LogError(slogLogger, "JMAP authentication failed",
			"error", err,
			"host", config.Host,
			"username", maskUsername(config.Username),
			"cause", connectFailureKind(err))
		results.failure(err)
		return fmt.Errorf("JMAP authentication failed: %w", err)
	}
	defer c.Disconnect()

	authMethod := string(c.AuthMethod())
	fmt.Printf("Auth method: %s\n", authMethod)

	if err := c.Echo(ctx); err != nil {
		logger.LogError(slogLogger, "Core/echo failed", "error", err)
		results.failure(err)
		return fmt.Errorf("authenticated API call failed: %w", err)
	}

	fmt.Println("✓ Authentication successful")
	printSession(session)

	for _, cap := range []struct{ uri, label string }{
		{protocol.MailCapability, "Mail"},
		{protocol.SubmissionCapability, "Submission"},
		{protocol.VacationResponseCapability, "Vacation response"},
		{protocol.CalendarsCapability, "Calendars"},
		{protocol.ContactsCapability, "Contacts"},
		{protocol.SieveCapability, "Sieve"},
	} {
		if session.HasCapability(cap.uri) {
			fmt.Printf("  ✓ %s capability supported\n", cap.label)
		}
	}
	fmt.Printf("\nPrimary account: %s\n", c.AccountId())

	results.success(maskUsername(config.Username), authMethod, session.APIURL,
		fmt.Sprintf("%d", session.GetAccountCount()), "")

	logger.LogInfo(slogLogger, "JMAP authentication test completed",
		"host", config.Host,
		"username", maskUsername(config.Username),
		"auth_method", authMethod,
		"accounts", session.GetAccountCount(),
		"has_mail", session.HasMailCapability(),
		"has_submission", session.HasSubmissionCapability())

	fmt.Println("\n✓ JMAP authentication test completed")
	return nil
}
