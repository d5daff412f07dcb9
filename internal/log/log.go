// Package log provides structured, colored logging for the wallet and
// transfer engine. Output goes to stderr so command output on stdout
// stays machine-readable.
package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Component loggers for different parts of the system.
var (
	Wallet   zerolog.Logger
	Indexer  zerolog.Logger
	Transfer zerolog.Logger
	CLI      zerolog.Logger
)

func init() {
	Logger = NewConsoleLogger(os.Stderr, "info")
	initComponentLoggers()
}

// Init initializes the logger with the given configuration.
// When file is non-empty, logs are written to both the console (colored or
// JSON depending on jsonOutput) and the file (always JSON for machine parsing).
func Init(level string, jsonOutput bool, file string) error {
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return err
		}

		var consoleWriter io.Writer = os.Stderr
		if !jsonOutput {
			consoleWriter = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		}

		Logger = zerolog.New(zerolog.MultiLevelWriter(consoleWriter, f)).
			Level(parseLevel(level)).
			With().
			Timestamp().
			Logger()
	} else if jsonOutput {
		Logger = NewJSONLogger(os.Stderr, level)
	} else {
		Logger = NewConsoleLogger(os.Stderr, level)
	}

	initComponentLoggers()
	return nil
}

// NewConsoleLogger creates a colored console logger.
func NewConsoleLogger(w io.Writer, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}

	return zerolog.New(output).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// NewJSONLogger creates a structured JSON logger.
func NewJSONLogger(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// ValidLevel reports whether level is a recognised log level name.
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "trace", "debug", "info", "warn", "error", "disabled":
		return true
	}
	return false
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func initComponentLoggers() {
	Wallet = WithComponent("wallet")
	Indexer = WithComponent("indexer")
	Transfer = WithComponent("transfer")
	CLI = WithComponent("cli")
}

// WithComponent returns a logger with a component field.
func WithComponent(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// WithNetwork returns a logger with a network field.
func WithNetwork(l zerolog.Logger, network string) zerolog.Logger {
	return l.With().Str("network", network).Logger()
}

// Benchmark helper for timing operations. The returned func logs the
// elapsed time at debug level on l.
func Benchmark(l zerolog.Logger, name string) func() {
	start := time.Now()
	return func() {
		l.Debug().
			Str("operation", name).
			Dur("duration", time.Since(start)).
			Msg("benchmark")
	}
}
