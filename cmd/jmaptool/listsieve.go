package main

import (
	"context"
	"fmt"
	"log/slog"

	"jmapclient/internal/common/logger"
)

// listSieve lists sieve scripts. With -verbose the active script's content
// is printed.
func listSieve(ctx context.Context, config *Config, csvLogger logger.Logger, slogLogger *slog.Logger) error {
	fmt.Printf("Getting sieve scripts from %s...\n", config.Host)

	results := newResultWriter(csvLogger, config, []string{"Script_Id", "Name", "Active", "Blob_Id", "Error"})

	c, err := openClient(ctx, config, slogLogger, results)
	if err != nil {
		return err
	}
	defer c.Disconnect()

	scripts, err := c.GetSieveScripts(ctx)
	if err != nil {
		logger.LogError(slogLogger, "Failed to get sieve scripts", "error", err)
		results.failure(err)
		return fmt.Errorf("failed to get sieve scripts: %w", err)
	}

	fmt.Printf("\nFound %d sieve scripts:\n", len(scripts))
	for _, s := range scripts {
		name := stringOr(s.Name, "(unnamed)")
		active := ""
		if s.IsActive {
			active = " (active)"
		}
		fmt.Printf("  %-16s %s%s\n", s.Id, name, active)

		if s.IsActive && config.VerboseMode {
			content, err := c.GetSieveScriptContent(ctx, s.Id)
			if err != nil {
				logger.LogWarn(slogLogger, "Failed to download script", "script", s.Id, "error", err)
			} else {
				fmt.Printf("\n%s\n", content)
			}
		}
		results.success(string(s.Id), name, fmt.Sprintf("%t", s.IsActive), string(s.BlobId), "")
	}

	logger.LogInfo(slogLogger, "List sieve scripts completed", "script_count", len(scripts))
	fmt.Println("\n✓ List sieve scripts completed")
	return nil
}
