// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Output formats accepted by ParseFormat.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
	FormatAuto    = "auto"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()

	log.Logger = logger

	return logger
}

// ParseFormat resolves a configured log format to the Pretty flag. "auto" picks
// console output when w is a terminal.
func ParseFormat(format string, w io.Writer) (bool, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return false, nil
	case FormatConsole:
		return true, nil
	case FormatAuto, "":
		return IsTerminal(w), nil
	default:
		return false, fmt.Errorf("unknown log format %q", format)
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Every request and page load (route, url, page)
//   - Shared cache hits
//   - Lookups that found nothing
//   - Rate limit state updates (healthy)
//
// Info: Normal operation events
//   - Collection initialised (total items and pages known)
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Failed requests (request_failed, malformed_response, cancelled)
//   - Rate limit running low
//   - Shared cache errors (fallback to direct request)
//
// Error: Error conditions requiring attention
//   - Authentication failures
//   - Rate limit exhausted
//   - Configuration errors
//
// Context Fields:
//   - component: oneapi-client, oneapi-cli, oneapi-serve
//   - route: collection route label (movie, quote, movie/{id}/quote)
//   - url: request URL
//   - page, pages, items: page loads
//   - status: HTTP status code
//   - kind: error kind (authentication, request_failed, ...)
//   - id: document id of a lookup
//   - remaining, limit: rate limit quota
