package main

import (
	"context"
	"fmt"
	"log/slog"

	"jmapclient/internal/common/logger"
)

// getVacation prints the vacation response settings.
func getVacation(ctx context.Context, config *Config, csvLogger logger.Logger, slogLogger *slog.Logger) error {
	fmt.Printf("Getting vacation response from %s...\n", config.Host)

	results := newResultWriter(csvLogger, config, []string{"Enabled", "From", "To", "Subject", "Error"})

	c, err := openClient(ctx, config, slogLogger, results)
	if err != nil {
		return err
	}
	defer c.Disconnect()

	v, err := c.GetVacationResponse(ctx)
	if err != nil {
		logger.LogError(slogLogger, "Failed to get vacation response", "error", err)
		results.failure(err)
		return fmt.Errorf("failed to get vacation response: %w", err)
	}

	from, to, subject := stringOr(v.FromDate, "-"), stringOr(v.ToDate, "-"), stringOr(v.Subject, "-")
	fmt.Printf("\n  Enabled: %t\n", v.IsEnabled)
	fmt.Printf("  From:    %s\n", from)
	fmt.Printf("  To:      %s\n", to)
	fmt.Printf("  Subject: %s\n", subject)
	if v.TextBody != nil {
		fmt.Printf("  Body:\n%s\n", *v.TextBody)
	}

	results.success(fmt.Sprintf("%t", v.IsEnabled), from, to, subject, "")
	logger.LogInfo(slogLogger, "Get vacation response completed", "enabled", v.IsEnabled)
	return nil
}
