// Package log configures the process-wide zerolog logger and hands out
// scoped sub-loggers. Every long-lived component takes its logger at
// construction via WithComponent; per-daemon log lines attach their
// host/daemon coordinates via Daemon so one daemon's deploy, check, and
// removal lines correlate across the serve loop, the executor, and the
// removal queue.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the root logger every scoped logger derives from.
var Logger zerolog.Logger

// Level is a textual log level ("debug", "info", "warn", "error"),
// parsed by zerolog; anything unrecognized falls back to info.
type Level string

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init builds the root logger. Console output is the default; JSON is
// for deployments that ship logs to a collector.
func Init(cfg Config) {
	lvl, err := zerolog.ParseLevel(string(cfg.Level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if !cfg.JSONOutput {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	Logger = zerolog.New(out).With().Timestamp().Logger()
}

// WithComponent returns a sub-logger tagged with the owning component.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// Daemon returns a sub-logger carrying a daemon's orchestration
// coordinates. Empty fields are omitted, so the same helper serves
// host-only lines (refresh failures) and daemon lines (deploy/remove).
func Daemon(parent zerolog.Logger, hostname, daemonName string) zerolog.Logger {
	ctx := parent.With()
	if hostname != "" {
		ctx = ctx.Str("hostname", hostname)
	}
	if daemonName != "" {
		ctx = ctx.Str("daemon", daemonName)
	}
	return ctx.Logger()
}
