// Package logging builds the structured logger shared by the workbench and
// the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const permission = 0o664

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

type Config struct {
	// Level is a zerolog level name; empty means info.
	Level  string
	Format string
	// Output defaults to stderr. Path, when set, appends to that file instead.
	Output io.Writer
	Path   string
}

// New returns the configured logger and a close function for any file it
// opened.
func New(cfg Config) (zerolog.Logger, func() error, error) {
	closeFn := func() error { return nil }

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), closeFn, fmt.Errorf("invalid log level %q", cfg.Level)
		}
		level = parsed
	}

	var w io.Writer = os.Stderr
	if cfg.Output != nil {
		w = cfg.Output
	}
	if cfg.Path != "" {
		f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return zerolog.Nop(), closeFn, err
		}
		w = zerolog.SyncWriter(f)
		closeFn = f.Close
	}

	switch strings.ToLower(cfg.Format) {
	case "", FormatJSON:
	case FormatConsole:
		w = zerolog.ConsoleWriter{Out: w, NoColor: !isTerminal(w)}
	default:
		_ = closeFn()
		return zerolog.Nop(), func() error { return nil }, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return logger, closeFn, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
