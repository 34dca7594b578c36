package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jmapclient/internal/common/logger"
	"jmapclient/internal/jmap/client"
)

// listCalendars lists calendars and the events of the coming week.
func listCalendars(ctx context.Context, config *Config, csvLogger logger.Logger, slogLogger *slog.Logger) error {
	fmt.Printf("Getting calendars from %s...\n", config.Host)

	results := newResultWriter(csvLogger, config, []string{"Calendar_Id", "Name", "Default", "Upcoming_Events", "Error"})

	c, err := openClient(ctx, config, slogLogger, results)
	if err != nil {
		return err
	}
	defer c.Disconnect()

	calendars, err := c.GetCalendars(ctx)
	if err != nil {
		logger.LogError(slogLogger, "Failed to get calendars", "error", err)
		results.failure(err)
		return fmt.Errorf("failed to get calendars: %w", err)
	}

	now := time.Now()
	fmt.Printf("\nFound %d calendars:\n", len(calendars))
	for _, cal := range calendars {
		events, err := c.QueryEvents(ctx, client.EventQuery{
			CalendarId: cal.Id,
			After:      now,
			Before:     now.Add(7 * 24 * time.Hour),
		})
		if err != nil {
			logger.LogWarn(slogLogger, "Failed to query events", "calendar", cal.Id, "error", err)
		}

		def := ""
		if cal.IsDefault {
			def = " (default)"
		}
		fmt.Printf("  %-16s %s%s, %d events in the next 7 days\n", cal.Id, cal.Name, def, len(events))
		for _, ev := range events {
			fmt.Printf("      %s  %s\n", ev.Start, ev.Title)
		}
		results.success(string(cal.Id), cal.Name, fmt.Sprintf("%t", cal.IsDefault), fmt.Sprintf("%d", len(events)), "")
	}

	logger.LogInfo(slogLogger, "List calendars completed", "calendar_count", len(calendars))
	fmt.Println("\n✓ List calendars completed")
	return nil
}
