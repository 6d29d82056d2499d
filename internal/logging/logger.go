package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log level.
type Level string

// Log levels.
const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Options configures a session logger.
type Options struct {
	// Dir is the log directory. Empty disables the file sink.
	Dir string
	// Node and SessionID are attached to every line.
	Node      string
	SessionID string
	Level     Level
	// Console receives human readable output. Nil means stderr.
	Console io.Writer
	// Now is used for the file name timestamp.
	Now func() time.Time
}

// Session is the logger of one invocation.
type Session struct {
	zerolog.Logger

	// Path is the log file, empty when no file sink is configured.
	Path string
	file *os.File
}

// Open creates the log directory if needed and opens a new append-only log
// file named after the node and the start time.
func Open(opts Options) (*Session, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}}
	s := &Session{}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		name := fmt.Sprintf("nodecycle-%s-%s.log", opts.Node, now().UTC().Format("20060102T150405Z"))
		s.Path = filepath.Join(opts.Dir, name)
		// #nosec G304 -- path is built from the configured log directory
		f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		s.file = f
		writers = append(writers, f)
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(opts.Level.zerolog()).
		With().Timestamp()
	if opts.SessionID != "" {
		ctx = ctx.Str("session", opts.SessionID)
	}
	if opts.Node != "" {
		ctx = ctx.Str("node", opts.Node)
	}
	s.Logger = ctx.Logger()

	return s, nil
}

// Close flushes and closes the log file.
func (s *Session) Close() error {
	if s.file == nil {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	return s.file.Close()
}

// WithComponent creates a child logger with component field.
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}
