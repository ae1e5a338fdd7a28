// Package logging builds the slog logger shared by every cranky component.
// Records go to a size-rotated file because the TUI owns the terminal.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the log file.
const (
	MaxSizeMB  = 10
	MaxBackups = 3
	MaxAgeDays = 28
)

// Options selects where records go.
type Options struct {
	// Path is the log file. Empty disables file output.
	Path string
	// Verbose lowers the level to debug.
	Verbose bool
	// Stderr, when non-nil, receives a copy of every record. Commands that
	// do not run the TUI pass os.Stderr here in verbose mode.
	Stderr io.Writer
}

// Logger is a slog.Logger that owns its rotating file.
type Logger struct {
	*slog.Logger
	file *lumberjack.Logger
}

// New opens the log file and returns the logger. Close flushes and releases
// the file.
func New(opts Options) (*Logger, error) {
	var writers []io.Writer
	var file *lumberjack.Logger
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		file = &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    MaxSizeMB,
			MaxBackups: MaxBackups,
			MaxAge:     MaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, file)
	}
	if opts.Stderr != nil {
		writers = append(writers, opts.Stderr)
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = io.Discard
	case 1:
		out = writers[0]
	default:
		out = io.MultiWriter(writers...)
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler), file: file}, nil
}

// Close releases the log file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := l.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("close log: %w", err)
	}
	return nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
