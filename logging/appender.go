package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// DefaultTimeFormatStr is the timestamp layout of every written line.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender is an output for log entries. zapcore.Core satisfies it.
type Appender interface {
	Write(zapcore.Entry, []zapcore.Field) error
	// Sync flushes buffered entries.
	Sync() error
}

// ConsoleAppender writes one tab separated line per entry to a writer.
type ConsoleAppender struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewWriterAppender creates an appender that writes to writer.
func NewWriterAppender(writer io.Writer) *ConsoleAppender {
	return &ConsoleAppender{writer: writer}
}

// Write outputs the entry. The line is written even when its fields fail to encode.
func (appender *ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	line, err := formatLine(entry, fields)
	appender.mu.Lock()
	defer appender.mu.Unlock()
	//nolint:errcheck
	fmt.Fprintln(appender.writer, line)
	return err
}

// Sync is a no-op.
func (appender *ConsoleAppender) Sync() error {
	return nil
}

// formatLine renders time, level, logger name, caller, message and the fields as JSON, separated
// by tabs. An empty caller is left out.
func formatLine(entry zapcore.Entry, fields []zapcore.Field) (string, error) {
	parts := []string{
		entry.Time.Format(DefaultTimeFormatStr),
		strings.ToUpper(entry.Level.String()),
		entry.LoggerName,
	}
	if entry.Caller.Defined {
		parts = append(parts, callerToString(entry.Caller))
	}
	parts = append(parts, entry.Message)
	if len(fields) == 0 {
		return strings.Join(parts, "\t"), nil
	}
	fieldsJSON, err := ZapcoreFieldsToJSON(fields)
	if err != nil {
		return strings.Join(parts, "\t"), err
	}
	return strings.Join(append(parts, fieldsJSON), "\t"), nil
}

// ZapcoreFieldsToJSON encodes fields, in order, as one JSON object.
func ZapcoreFieldsToJSON(fields []zapcore.Field) (string, error) {
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
	buf, err := enc.EncodeEntry(zapcore.Entry{}, fields)
	if err != nil {
		return "", err
	}
	defer buf.Free()
	return buf.String(), nil
}

// callerToString keeps the last directory and the file name, e.g. "meshing/merge.go:42".
func callerToString(caller zapcore.EntryCaller) string {
	file := caller.File
	if idx := strings.LastIndex(file, "/"); idx >= 0 {
		if dir := strings.LastIndex(file[:idx], "/"); dir >= 0 {
			file = file[dir+1:]
		}
	}
	return fmt.Sprintf("%s:%d", file, caller.Line)
}
