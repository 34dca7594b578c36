package logger

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Logger writes per-action result rows to a file. CSVLogger and JSONLogger
// implement it.
type Logger interface {
	WriteHeader(columns []string) error
	WriteRow(row []string) error
	ShouldWriteHeader() (bool, error)
	Close() error
}

// LogFormat selects the result file format.
type LogFormat string

const (
	FormatCSV  LogFormat = "csv"
	FormatJSON LogFormat = "json"
)

// ParseLogFormat converts a format name (csv, json) to a LogFormat.
func ParseLogFormat(s string) (LogFormat, error) {
	switch LogFormat(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV, "":
		return FormatCSV, nil
	case FormatJSON, "jsonl":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("invalid log format: %s (valid: csv, json)", s)
	}
}

// NewLogger opens the result logger for a tool and action.
func NewLogger(format LogFormat, toolName, action string) (Logger, error) {
	switch format {
	case FormatJSON:
		return NewJSONLogger(toolName, action)
	case FormatCSV:
		return NewCSVLogger(toolName, action)
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

const (
	flushRows     = 10
	flushInterval = 5 * time.Second
)

// resultFile is the append-only file shared by the result loggers. Output
// is buffered and flushed every flushRows rows or after flushInterval.
type resultFile struct {
	file      *os.File
	buf       *bufio.Writer
	rows      int
	lastFlush time.Time
}

// resultPath returns %TEMP%/_{tool}_{action}_{date}.{ext}.
func resultPath(toolName, action, ext string) string {
	name := fmt.Sprintf("_%s_%s_%s.%s", toolName, action, time.Now().Format("2006-01-02"), ext)
	return filepath.Join(os.TempDir(), name)
}

func openResultFile(toolName, action, ext string) (*resultFile, error) {
	path := resultPath(toolName, action, ext)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not create %s log file: %w", ext, err)
	}
	fmt.Printf("Logging to: %s\n\n", path)
	return &resultFile{file: f, buf: bufio.NewWriter(f), lastFlush: time.Now()}, nil
}

func (r *resultFile) closed() bool { return r.buf == nil }

// rowWritten counts a row and flushes when the policy says so.
func (r *resultFile) rowWritten() error {
	r.rows++
	if r.rows%flushRows != 0 && time.Since(r.lastFlush) <= flushInterval {
		return nil
	}
	r.lastFlush = time.Now()
	return r.buf.Flush()
}

func (r *resultFile) empty() (bool, error) {
	info, err := r.file.Stat()
	if err != nil {
		return false, fmt.Errorf("could not stat log file: %w", err)
	}
	return info.Size() == 0, nil
}

// close flushes and closes the file. A second call is a no-op.
func (r *resultFile) close() error {
	if r.buf == nil {
		return nil
	}
	flushErr := r.buf.Flush()
	r.buf = nil
	closeErr := r.file.Close()
	if errors.Is(closeErr, os.ErrClosed) {
		closeErr = nil
	}
	if flushErr != nil {
		return fmt.Errorf("error flushing on close: %w", flushErr)
	}
	return closeErr
}
