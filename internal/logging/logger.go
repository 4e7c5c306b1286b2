// Package logging builds the zerolog logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const permission = 0664

// Formats understood by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config selects level, output format and an optional file sink.
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Logger is a built logger plus the file it may own.
type Logger struct {
	zerolog.Logger
	file *os.File
}

// New builds a logger writing to w (stderr when nil), or to Config.File when
// set. An unknown level is an error; an empty one means info.
func New(cfg Config, w io.Writer) (*Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = l
	}

	if w == nil {
		w = os.Stderr
	}
	out := &Logger{}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out.file = f
		w = zerolog.SyncWriter(f)
	}

	switch cfg.Format {
	case "", FormatConsole:
		if out.file == nil {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
		}
	case FormatJSON:
	default:
		out.Close()
		return nil, fmt.Errorf("invalid log format %q (want console or json)", cfg.Format)
	}

	out.Logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
	return out, nil
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
