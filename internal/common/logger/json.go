package logger

import (
	"encoding/json"
	"fmt"
	"time"
)

// JSONLogger writes one JSON object per row (JSON Lines), keyed by the
// header columns plus a "timestamp" field.
type JSONLogger struct {
	*resultFile
	columns []string
}

// NewJSONLogger opens (or appends to) %TEMP%/_{toolName}_{action}_{date}.jsonl.
func NewJSONLogger(toolName, action string) (*JSONLogger, error) {
	f, err := openResultFile(toolName, action, "jsonl")
	if err != nil {
		return nil, err
	}
	return &JSONLogger{resultFile: f}, nil
}

// WriteHeader records the field names used for subsequent rows. Nothing is
// written to the file.
func (l *JSONLogger) WriteHeader(columns []string) error {
	l.columns = append([]string(nil), columns...)
	return nil
}

func (l *JSONLogger) WriteRow(row []string) error {
	if l.closed() {
		return fmt.Errorf("JSON logger is closed")
	}
	if l.columns == nil {
		return fmt.Errorf("JSON logger: WriteHeader must be called before WriteRow")
	}
	if len(row) != len(l.columns) {
		return fmt.Errorf("JSON logger: row has %d values, header has %d", len(row), len(l.columns))
	}

	obj := make(map[string]string, len(row)+1)
	obj["timestamp"] = time.Now().Format(time.RFC3339)
	for i, col := range l.columns {
		obj[col] = row[i]
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to encode JSON row: %w", err)
	}
	if _, err := l.buf.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write JSON row: %w", err)
	}
	return l.rowWritten()
}

// ShouldWriteHeader reports whether the column names are still unknown.
// Every row carries its own keys, so unlike CSV this is per logger, not per
// file.
func (l *JSONLogger) ShouldWriteHeader() (bool, error) {
	return l.columns == nil, nil
}

// Close flushes buffered rows and closes the file. Calling it twice is safe.
func (l *JSONLogger) Close() error {
	return l.close()
}
