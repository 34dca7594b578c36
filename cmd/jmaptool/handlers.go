package main

import (
	"context"
	"fmt"
	"log/slog"

	"jmapclient/internal/common/logger"
)

// executeAction dispatches to the appropriate handler based on action.
func executeAction(ctx context.Context, config *Config, csvLogger logger.Logger, slogLogger *slog.Logger) error {
	switch config.Action {
	case ActionTestConnect:
		return testConnect(ctx, config, csvLogger, slogLogger)
	case ActionTestAuth:
		return testAuth(ctx, config, csvLogger, slogLogger)
	case ActionGetMailboxes:
		return getMailboxes(ctx, config, csvLogger, slogLogger)
	case ActionListEmails:
		return listEmails(ctx, config, csvLogger, slogLogger)
	case ActionGetIdentities:
		return getIdentities(ctx, config, csvLogger, slogLogger)
	case ActionUploadBlob:
		return uploadBlob(ctx, config, csvLogger, slogLogger)
	case ActionGetVacation:
		return getVacation(ctx, config, csvLogger, slogLogger)
	case ActionListCalendars:
		return listCalendars(ctx, config, csvLogger, slogLogger)
	case ActionListAddressBooks:
		return listAddressBooks(ctx, config, csvLogger, slogLogger)
	case ActionListSieve:
		return listSieve(ctx, config, csvLogger, slogLogger)
	case ActionWatch:
		return watch(ctx, config, csvLogger, slogLogger)
	default:
		return fmt.Errorf("unknown action: %s", config.Action)
	}
}
