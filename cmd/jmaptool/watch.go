package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jmapclient/internal/common/logger"
	"jmapclient/internal/jmap/protocol"
)

// watch prints state changes until -duration elapses or the process is
// interrupted. With -metricsaddr the client metrics are served meanwhile.
func watch(ctx context.Context, config *Config, csvLogger logger.Logger, slogLogger *slog.Logger) error {
	results := newResultWriter(csvLogger, config, []string{"Time", "Account", "Types", "Error"})

	if config.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Duration)
		defer cancel()
	}

	if config.MetricsAddr != "" {
		srv := &http.Server{Addr: config.MetricsAddr, Handler: metricsHandler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.LogError(slogLogger, "Metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
		fmt.Printf("Serving metrics on http://%s/metrics\n", config.MetricsAddr)
	}

	c, err := openClient(ctx, config, slogLogger, results)
	if err != nil {
		return err
	}
	defer c.Disconnect()

	expired := make(chan error, 1)
	c.OnSessionExpired(func(err error) {
		select {
		case expired <- err:
		default:
		}
	})
	c.OnStateChange(func(change protocol.StateChange) {
		now := time.Now().Format(time.RFC3339)
		for _, acct := range change.Accounts() {
			types := changedTypes(change.Changed[acct])
			fmt.Printf("%s  %-16s %s\n", now, acct, types)
			results.success(now, string(acct), types, "")
		}
	})

	if err := c.StartStateSync(ctx); err != nil {
		logger.LogError(slogLogger, "Failed to start state sync", "error", err)
		results.failure(err)
		return fmt.Errorf("failed to start state sync: %w", err)
	}

	if config.Duration > 0 {
		fmt.Printf("Watching for state changes for %s (push mode %s)...\n", config.Duration, config.PushMode)
	} else {
		fmt.Printf("Watching for state changes until interrupted (push mode %s)...\n", config.PushMode)
	}

	select {
	case <-ctx.Done():
		fmt.Println("\n✓ Watch completed")
		return nil
	case err := <-expired:
		results.failure(err)
		return err
	}
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func changedTypes(types map[protocol.TypeKey]string) string {
	names := make([]string, 0, len(types))
	for _, key := range protocol.TrackedTypes {
		if _, ok := types[key]; ok {
			names = append(names, string(key))
		}
	}
	return strings.Join(names, ",")
}
