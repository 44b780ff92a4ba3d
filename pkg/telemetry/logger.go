package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process root logger. Packages receive component loggers
// derived from it rather than the Logger itself.
type Logger struct {
	root zerolog.Logger
	cfg  LoggingConfig
}

type loggerKey struct{}

// NewLogger opens the configured output and builds the root logger. Output
// is "stderr" (the default), "stdout" or a file path opened for append.
func NewLogger(cfg LoggingConfig) (*Logger, error) {
	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to open log output %q: %w", cfg.Output, err)
	}
	return NewLoggerTo(out, cfg), nil
}

// NewLoggerTo builds a root logger on an existing writer.
func NewLoggerTo(w io.Writer, cfg LoggingConfig) *Logger {
	zerolog.TimeFieldFormat = fieldTimeFormat(cfg.TimeFormat)

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat(cfg.TimeFormat)}
	}

	ctx := zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.EnableCaller {
		ctx = ctx.Caller()
	}
	return &Logger{root: ctx.Logger(), cfg: cfg}
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}
	return os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// Zerolog returns the root zerolog logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.root
}

// Component derives a logger carrying a "component" field. Library packages
// take the result through their WithLogger options.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.root.With().Str("component", name).Logger()
}

// WithContext stores the logger in ctx.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored in ctx, or one that discards
// everything when there is none.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return l
	}
	return &Logger{root: zerolog.Nop()}
}

// ParseLevel maps a level name onto zerolog. Unrecognised names log at info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func fieldTimeFormat(name string) string {
	switch name {
	case "unix":
		return zerolog.TimeFormatUnix
	case "unixms":
		return zerolog.TimeFormatUnixMs
	}
	return time.RFC3339
}

func consoleTimeFormat(name string) string {
	if name == "unix" {
		return "unix"
	}
	return time.RFC3339
}
