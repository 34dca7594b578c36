package main

import (
	"context"
	"fmt"
	"log/slog"

	"jmapclient/internal/common/logger"
	"jmapclient/internal/jmap/client"
)

// listAddressBooks lists address books with their contact counts.
func listAddressBooks(ctx context.Context, config *Config, csvLogger logger.Logger, slogLogger *slog.Logger) error {
	fmt.Printf("Getting address books from %s...\n", config.Host)

	results := newResultWriter(csvLogger, config, []string{"AddressBook_Id", "Name", "Contacts", "Error"})

	c, err := openClient(ctx, config, slogLogger, results)
	if err != nil {
		return err
	}
	defer c.Disconnect()

	books, err := c.GetAddressBooks(ctx)
	if err != nil {
		logger.LogError(slogLogger, "Failed to get address books", "error", err)
		results.failure(err)
		return fmt.Errorf("failed to get address books: %w", err)
	}

	fmt.Printf("\nFound %d address books:\n", len(books))
	for _, book := range books {
		cards, err := c.QueryContacts(ctx, client.ContactQuery{AddressBookId: book.Id})
		if err != nil {
			logger.LogWarn(slogLogger, "Failed to query contacts", "address_book", book.Id, "error", err)
		}
		fmt.Printf("  %-16s %s (%d contacts)\n", book.Id, book.Name, len(cards))
		if config.VerboseMode {
			for _, card := range cards {
				fmt.Printf("      %s\n", card.DisplayName())
			}
		}
		results.success(string(book.Id), book.Name, fmt.Sprintf("%d", len(cards)), "")
	}

	logger.LogInfo(slogLogger, "List address books completed", "address_book_count", len(books))
	fmt.Println("\n✓ List address books completed")
	return nil
}
