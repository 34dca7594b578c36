package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// SetupLogger returns a text logger on stderr at the given level (DEBUG,
// INFO, WARN, ERROR). Verbose mode forces DEBUG.
func SetupLogger(verboseMode bool, logLevel string) *slog.Logger {
	level := ParseLogLevel(logLevel)
	if verboseMode {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ParseLogLevel converts a level name to slog.Level. Unknown names map to
// INFO.
func ParseLogLevel(levelStr string) slog.Level {
	s := strings.TrimSpace(levelStr)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func logAt(logger *slog.Logger, level slog.Level, msg string, args []any) {
	if logger == nil {
		return
	}
	logger.Log(context.Background(), level, msg, args...)
}

// LogDebug, LogInfo, LogWarn and LogError tolerate a nil logger, which lets
// library code log without requiring one.
func LogDebug(logger *slog.Logger, msg string, args ...any) {
	logAt(logger, slog.LevelDebug, msg, args)
}

func LogInfo(logger *slog.Logger, msg string, args ...any) {
	logAt(logger, slog.LevelInfo, msg, args)
}

func LogWarn(logger *slog.Logger, msg string, args ...any) {
	logAt(logger, slog.LevelWarn, msg, args)
}

func LogError(logger *slog.Logger, msg string, args ...any) {
	logAt(logger, slog.LevelError, msg, args)
}
