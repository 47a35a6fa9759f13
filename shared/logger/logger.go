package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Config holds logger configuration.
type Config struct {
	Level        string // debug, info, warn, error
	Format       string // json, console
	Output       string // stdout or stderr
	EnableSource bool   // include source code location
	TimeFormat   string // time format for console output

	// writer overrides Output when set; tests use it to capture entries.
	writer io.Writer
}

// Logger wraps slog.Logger.
type Logger struct {
	*slog.Logger
}

// New creates a logger from the given configuration.
func New(cfg *Config) (*Logger, error) {
	level := parseLevel(cfg.Level)

	writer := cfg.writer
	if writer == nil {
		switch cfg.Output {
		case "stderr":
			writer = os.Stderr
		default:
			writer = os.Stdout
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "console":
		timeFormat := cfg.TimeFormat
		if timeFormat == "" {
			timeFormat = time.RFC3339
		}
		handler = tint.NewHandler(writer, &tint.Options{
			Level:      level,
			AddSource:  cfg.EnableSource,
			TimeFormat: timeFormat,
		})
	default:
		handler = slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level:     level,
			AddSource: cfg.EnableSource,
		})
	}

	return &Logger{Logger: slog.New(handler)}, nil
}

// NewDefault creates a logger with default settings (console format, info level).
func NewDefault() *Logger {
	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.TimeOnly,
	})
	return &Logger{Logger: slog.New(handler)}
}

// parseLevel converts a string level to slog.Level, defaulting to info.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With creates a new logger with additional key-value pairs.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithGroup creates a new logger with a group namespace.
func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{Logger: l.Logger.WithGroup(name)}
}
