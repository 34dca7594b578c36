package logger

import (
	"encoding/csv"
	"fmt"
	"time"
)

// CSVLogger writes result rows as CSV with a leading Timestamp column.
type CSVLogger struct {
	*resultFile
	writer *csv.Writer
}

// NewCSVLogger opens (or appends to) %TEMP%/_{toolName}_{action}_{date}.csv,
// e.g. _jmaptool_getmailboxes_2026-01-09.csv.
func NewCSVLogger(toolName, action string) (*CSVLogger, error) {
	f, err := openResultFile(toolName, action, "csv")
	if err != nil {
		return nil, err
	}
	return &CSVLogger{resultFile: f, writer: csv.NewWriter(f.buf)}, nil
}

// WriteHeader writes the header line. Call it only when ShouldWriteHeader
// reports a new file.
func (l *CSVLogger) WriteHeader(columns []string) error {
	if err := l.write(append([]string{"Timestamp"}, columns...)); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	return l.flush()
}

// WriteRow writes a row prefixed with the current time.
func (l *CSVLogger) WriteRow(row []string) error {
	if err := l.write(append([]string{time.Now().Format("2006-01-02 15:04:05")}, row...)); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}
	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		return err
	}
	return l.rowWritten()
}

func (l *CSVLogger) write(record []string) error {
	if l.closed() {
		return fmt.Errorf("CSV logger is closed")
	}
	return l.writer.Write(record)
}

func (l *CSVLogger) flush() error {
	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		return err
	}
	return l.buf.Flush()
}

// ShouldWriteHeader reports whether the file is still empty.
func (l *CSVLogger) ShouldWriteHeader() (bool, error) {
	return l.empty()
}

// Close flushes buffered rows and closes the file.
func (l *CSVLogger) Close() error {
	if !l.closed() {
		l.writer.Flush()
	}
	return l.close()
}
