// Package logs provides the structured logger shared by every minibuild
// package, wrapping github.com/charmbracelet/log the way the teacher's
// src/common/logs does for its daemon and CLI binaries.
package logs

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Logger wraps the charm log.Logger.
type Logger struct {
	*log.Logger
}

// Config holds logger construction options.
type Config struct {
	// Level sets the minimum log level (debug, info, warn, error).
	Level string
	// Prefix tags every line, e.g. "minibuild".
	Prefix string
	// Writer overrides the output destination; defaults to os.Stderr.
	Writer io.Writer
}

// DefaultConfig returns the engine's default logging configuration:
// info level, no prefix, stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Writer: os.Stderr}
}

func parseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// New constructs a Logger from cfg.
func New(cfg Config) *Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	l := log.NewWithOptions(w, log.Options{
		Level:           parseLevel(cfg.Level),
		Prefix:          cfg.Prefix,
		ReportTimestamp: false,
		ReportCaller:    false,
	})
	return &Logger{Logger: l}
}

// NewDefault constructs a Logger with DefaultConfig().
func NewDefault() *Logger {
	return New(DefaultConfig())
}

// SetVerbose switches l to debug level when verbose is true, info otherwise.
// §7: verbose mode emits every subprocess command line; non-verbose mode
// emits one compiled-source basename and one "BUILDSYS: ..." line per step.
func (l *Logger) SetVerbose(verbose bool) {
	if verbose {
		l.SetLevel(log.DebugLevel)
	} else {
		l.SetLevel(log.InfoLevel)
	}
}
