package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. format is "json" or "console".
func New(level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("logger: %w", err)
	}

	var base zerolog.Logger
	switch strings.ToLower(format) {
	case "", "json":
		base = zerolog.New(os.Stdout)
	case "console":
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	default:
		return zerolog.Logger{}, fmt.Errorf("logger: unsupported format %q", format)
	}

	zerolog.SetGlobalLevel(lvl)
	return base.With().Timestamp().Logger().Level(lvl), nil
}

// MustNew is New for main packages.
func MustNew(level, format, service string) zerolog.Logger {
	log, err := New(level, format)
	if err != nil {
		panic(err)
	}
	return log.With().Str("service", service).Logger()
}
