package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const permission = 0664

type Options struct {
	// Level is a zerolog level name; empty means info.
	Level string
	// Format is "json" (default) or "console".
	Format string
	// Path appends to a file instead of writing to Writer.
	Path   string
	Writer io.Writer
}

// New builds the process logger. The returned closer releases the log file
// when Path is set and is a no-op otherwise.
func New(opts Options) (zerolog.Logger, func() error, error) {
	level := zerolog.InfoLevel
	if s := strings.TrimSpace(opts.Level); s != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(s))
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("log level: %w", err)
		}
		level = l
	}

	console := false
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "json":
	case "console":
		console = true
	default:
		return zerolog.Nop(), nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	closer := func() error { return nil }
	if opts.Path != "" {
		f, err := os.OpenFile(opts.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		w = zerolog.SyncWriter(f)
		closer = f.Close
	}

	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05", NoColor: opts.Path != ""}
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}
