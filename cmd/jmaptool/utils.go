package main

import (
	"context"
	"fmt"
	"log/slog"

	"jmapclient/internal/common/logger"
	"jmapclient/internal/common/retry"
	"jmapclient/internal/common/security"
	"jmapclient/internal/credential"
	"jmapclient/internal/jmap/client"
	"jmapclient/internal/jmap/protocol"
)

func maskUsername(username string) string { return security.MaskUsername(username) }
func maskPassword(password string) string { return security.MaskPassword(password) }
func maskAccessToken(token string) string { return security.MaskAccessToken(token) }
func maskProxyURL(raw string) string       { return security.MaskURLPassword(raw) }

// connect builds a client from config and establishes a session, retrying
// transient failures. With -usekeyring and no explicit credentials the
// session is restored from the keyring.
func connect(ctx context.Context, config *Config, slogLogger *slog.Logger) (*client.Client, *protocol.Session, error) {
	cfg := config.clientConfig()
	if config.UseKeyring {
		ring, err := credential.OpenKeyring("", config.filePasswordPrompt())
		if err != nil {
			return nil, nil, err
		}
		cfg.TokenStore = ring
	}

	c, err := client.New(cfg, slogLogger)
	if err != nil {
		return nil, nil, err
	}

	restore := config.UseKeyring && config.AccessToken == "" && config.Password == ""
	var session *protocol.Session
	err = retry.RetryWithBackoff(ctx, config.MaxRetries, config.RetryDelay, slogLogger, func() error {
		var err error
		if restore {
			session, err = c.Restore(ctx)
		} else {
			session, err = c.Connect(ctx)
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	logger.LogDebug(slogLogger, "Connected",
		"server", config.serverURL(),
		"username", maskUsername(config.Username),
		"auth_method", c.AuthMethod(),
		"account", c.AccountId())
	return c, session, nil
}

// openClient connects for an action, recording a failed connection in the
// result file.
func openClient(ctx context.Context, config *Config, slogLogger *slog.Logger, results *resultWriter) (*client.Client, error) {
	c, _, err := connect(ctx, config, slogLogger)
	if err != nil {
		logger.LogError(slogLogger, "JMAP connection failed", "error", err, "host", config.Host, "cause", connectFailureKind(err))
		results.failure(err)
		return nil, fmt.Errorf("JMAP connection failed: %w", err)
	}
	return c, nil
}

// resultWriter writes one action's header once and its rows to the result
// file.
type resultWriter struct {
	log    logger.Logger
	action string
	host   string
	width  int
}

func newResultWriter(csvLogger logger.Logger, config *Config, columns []string) *resultWriter {
	if shouldWrite, _ := csvLogger.ShouldWriteHeader(); shouldWrite {
		_ = csvLogger.WriteHeader(append([]string{"Action", "Status", "Server"}, columns...))
	}
	return &resultWriter{log: csvLogger, action: config.Action, host: config.Host, width: len(columns)}
}

func (w *resultWriter) success(fields ...string) {
	_ = w.log.WriteRow(append([]string{w.action, "SUCCESS", w.host}, fields...))
}

// failure writes a row with empty fields and err in the last column.
func (w *resultWriter) failure(err error) {
	row := append([]string{w.action, "FAILURE", w.host}, make([]string, w.width-1)...)
	_ = w.log.WriteRow(append(row, err.Error()))
}

func stringOr(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

func addressList(addrs []protocol.EmailAddress) string {
	out := ""
	for i, a := range addrs {
		if i > 0 {
			out += ", "
		}
		if a.Name != "" {
			out += fmt.Sprintf("%s <%s>", a.Name, a.Email)
		} else {
			out += a.Email
		}
	}
	return out
}
