package logging

import (
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileAppender writes human readable lines to a file that is rotated once it grows past
// MaxSizeMB. Older files are compressed.
type FileAppender struct {
	*ConsoleAppender
	file *lumberjack.Logger
}

// DefaultLogFileMaxSizeMB is the size a log file is rotated at.
const DefaultLogFileMaxSizeMB = 100

// NewFileAppender creates an appender writing to filename. The file is created on first write.
func NewFileAppender(filename string) *FileAppender {
	file := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    DefaultLogFileMaxSizeMB,
		MaxBackups: 2,
		Compress:   true,
	}
	return &FileAppender{ConsoleAppender: NewWriterAppender(file), file: file}
}

// Close closes the current log file.
func (fa *FileAppender) Close() error {
	return fa.file.Close()
}
