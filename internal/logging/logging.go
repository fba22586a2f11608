package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the process-wide logger.
type Config struct {
	// Level is one of zerolog's level strings ("debug", "info", ...).
	// Empty or unknown values fall back to "info".
	Level string
	// File, when set, adds a size-rotated log file next to the console
	// output.
	File string
	// Service is stamped on every event.
	Service string
}

var (
	once sync.Once
	base zerolog.Logger
)

// Configure initialises the global logger exactly once. Subsequent calls
// are no-ops, which keeps tests that touch logging from fighting each
// other.
func Configure(cfg Config) {
	once.Do(func() {
		level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil || cfg.Level == "" {
			level = zerolog.InfoLevel
		}

		var sinks []io.Writer
		if isatty.IsTerminal(os.Stderr.Fd()) {
			sinks = append(sinks, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		} else {
			sinks = append(sinks, os.Stderr)
		}
		if cfg.File != "" {
			sinks = append(sinks, &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    20, // megabytes
				MaxBackups: 3,
				MaxAge:     14, // days
				Compress:   true,
			})
		}

		service := cfg.Service
		if service == "" {
			service = "plexody"
		}

		base = zerolog.New(io.MultiWriter(sinks...)).
			Level(level).
			With().
			Timestamp().
			Str("service", service).
			Logger()
	})
}

// Base returns the configured root logger. Calling it before Configure
// yields a sane default so library code never logs through a zero value.
func Base() zerolog.Logger {
	Configure(Config{})
	return base
}

// WithComponent derives a logger tagged with a component name, e.g.
// "player" or "resolver".
func WithComponent(name string) zerolog.Logger {
	return Base().With().Str("comp", name).Logger()
}
