package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"jmapclient/internal/common/logger"
	"jmapclient/internal/jmap/client"
	"jmapclient/internal/jmap/protocol"
)

var mailboxRoles = map[string]bool{
	protocol.RoleInbox:   true,
	protocol.RoleDrafts:  true,
	protocol.RoleSent:    true,
	protocol.RoleTrash:   true,
	protocol.RoleJunk:    true,
	protocol.RoleArchive: true,
}

// listEmails lists the newest emails of a mailbox given by role or id.
func listEmails(ctx context.Context, config *Config, csvLogger logger.Logger, slogLogger *slog.Logger) error {
	results := newResultWriter(csvLogger, config, []string{"Mailbox_Id", "Email_Id", "Received", "From", "Subject", "Unread", "Error"})

	c, err := openClient(ctx, config, slogLogger, results)
	if err != nil {
		return err
	}
	defer c.Disconnect()

	mailboxId, err := resolveMailbox(ctx, c, config.Mailbox)
	if err != nil {
		results.failure(err)
		return err
	}
	fmt.Printf("Listing up to %d emails in mailbox %s...\n", config.Limit, mailboxId)

	page, err := c.QueryEmails(ctx, client.EmailQuery{
		Filter: &client.EmailFilter{InMailbox: mailboxId},
		Limit:  uint32(config.Limit),
	})
	if err != nil {
		logger.LogError(slogLogger, "Failed to query emails", "error", err, "mailbox", mailboxId)
		results.failure(err)
		return fmt.Errorf("failed to query emails: %w", err)
	}

	fmt.Printf("\nShowing %d of %d emails:\n", len(page.Emails), page.Total)
	for _, e := range page.Emails {
		marker := " "
		if e.IsUnread() {
			marker = "*"
		}
		from := addressList(e.From)
		fmt.Printf(" %s %-20s %-30s %s\n", marker, e.ReceivedAt, truncateText(from, 30), e.Subject)
		results.success(string(mailboxId), string(e.Id), e.ReceivedAt, from, e.Subject,
			fmt.Sprintf("%t", e.IsUnread()), "")
	}

	logger.LogInfo(slogLogger, "List emails completed",
		"mailbox", mailboxId,
		"shown", len(page.Emails),
		"total", page.Total)

	fmt.Println("\n✓ List emails completed")
	return nil
}

// resolveMailbox maps a role name to the primary account's mailbox with that
// role. Anything else is taken as a mailbox id. Empty means the inbox.
func resolveMailbox(ctx context.Context, c *client.Client, mailbox string) (protocol.Id, error) {
	if mailbox == "" {
		mailbox = protocol.RoleInbox
	}
	role := strings.ToLower(mailbox)
	if !mailboxRoles[role] {
		return protocol.Id(mailbox), nil
	}
	mb, err := c.FindMailboxByRole(ctx, "", role)
	if err != nil {
		return "", fmt.Errorf("failed to find %s mailbox: %w", role, err)
	}
	return mb.Id, nil
}

func truncateText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
