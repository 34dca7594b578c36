package main

import (
	"context"
	"fmt"
	"log/slog"

	"jmapclient/internal/common/logger"
)

// getMailboxes lists the mailboxes of every mail account. Mailboxes of
// shared accounts carry namespaced ids.
func getMailboxes(ctx context.Context, config *Config, csvLogger logger.Logger, slogLogger *slog.Logger) error {
	fmt.Printf("Getting mailboxes from %s...\n", config.Host)

	results := newResultWriter(csvLogger, config, []string{"Account", "Mailbox_Id", "Mailbox_Name", "Role", "Total_Emails", "Unread_Emails", "Parent_Id", "Error"})

	c, err := openClient(ctx, config, slogLogger, results)
	if err != nil {
		return err
	}
	defer c.Disconnect()

	mailboxes, err := c.GetAllMailboxes(ctx)
	if err != nil {
		logger.LogError(slogLogger, "Failed to get mailboxes", "error", err, "host", config.Host)
		results.failure(err)
		return fmt.Errorf("failed to get mailboxes: %w", err)
	}

	fmt.Printf("\nFound %d mailboxes:\n", len(mailboxes))
	fmt.Println("  Id                   Name                               Role            Total   Unread")
	fmt.Println("  --                   ----                               ----            -----   ------")

	for _, mb := range mailboxes {
		role := stringOr(mb.Role, "-")
		fmt.Printf("  %-20s %-34s %-14s %6d   %6d\n", mb.Id, mb.Name, role, mb.TotalEmails, mb.UnreadEmails)

		parentId := ""
		if mb.ParentId != nil {
			parentId = string(*mb.ParentId)
		}
		results.success(string(mb.AccountId), string(mb.Id), mb.Name, role,
			fmt.Sprintf("%d", mb.TotalEmails), fmt.Sprintf("%d", mb.UnreadEmails),
			parentId, "")
	}

	logger.LogInfo(slogLogger, "Get mailboxes completed",
		"host", config.Host,
		"mailbox_count", len(mailboxes))

	fmt.Println("\n✓ Get mailboxes completed")
	return nil
}
