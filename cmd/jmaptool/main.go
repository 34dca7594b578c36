// Command jmaptool exercises a JMAP server from the command line: session
// discovery, authentication, mail, calendar, contacts and sieve listings,
// blob upload and live state change watching.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"jmapclient/internal/common/logger"
	"jmapclient/internal/common/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config := parseAndConfigureFlags()

	if config.ShowVersion {
		fmt.Printf("jmaptool version %s\n", version.Get())
		return 0
	}

	if config.Action == "" {
		fmt.Fprintln(os.Stderr, "Error: -action is required")
		fmt.Fprintln(os.Stderr, "Use -help for usage information")
		return 1
	}

	if err := validateConfiguration(config); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	slogLogger := logger.SetupLogger(config.VerboseMode, config.LogLevel)

	logFormat, err := logger.ParseLogFormat(config.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log format: %v\n", err)
		return 1
	}
	resultLogger, err := logger.NewLogger(logFormat, "jmaptool", config.Action)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer resultLogger.Close()

	if config.ProxyURL != "" {
		logger.LogInfo(slogLogger, "Using proxy", "proxy", maskProxyURL(config.ProxyURL))
	}

	if err := executeAction(ctx, config, resultLogger, slogLogger); err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nInterrupted")
		}
		logger.LogError(slogLogger, "Action failed", "action", config.Action, "error", err)
		return 1
	}
	return 0
}
