package main

import (
	"context"
	"fmt"
	"log/slog"

	"jmapclient/internal/common/logger"
)

// getIdentities lists the sending identities of the primary account.
func getIdentities(ctx context.Context, config *Config, csvLogger logger.Logger, slogLogger *slog.Logger) error {
	fmt.Printf("Getting identities from %s...\n", config.Host)

	results := newResultWriter(csvLogger, config, []string{"Identity_Id", "Name", "Email", "May_Delete", "Error"})

	c, err := openClient(ctx, config, slogLogger, results)
	if err != nil {
		return err
	}
	defer c.Disconnect()

	identities, err := c.GetIdentities(ctx, "")
	if err != nil {
		logger.LogError(slogLogger, "Failed to get identities", "error", err)
		results.failure(err)
		return fmt.Errorf("failed to get identities: %w", err)
	}

	fmt.Printf("\nFound %d identities:\n", len(identities))
	for _, id := range identities {
		fmt.Printf("  %-16s %s <%s>\n", id.Id, id.Name, id.Email)
		results.success(string(id.Id), id.Name, id.Email, fmt.Sprintf("%t", id.MayDelete), "")
	}

	logger.LogInfo(slogLogger, "Get identities completed", "identity_count", len(identities))
	fmt.Println("\n✓ Get identities completed")
	return nil
}
