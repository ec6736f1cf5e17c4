/*
Package log provides structured logging for cephadmd using zerolog.

A single root Logger is configured once via Init; long-lived components
derive their sub-logger with WithComponent, and per-daemon lines add
host/daemon coordinates with Daemon so one daemon's lifecycle can be
followed across components.

	log.Init(log.Config{Level: "info", JSONOutput: true})
	recLog := log.WithComponent("reconciler")
	log.Daemon(recLog, "h1", "mgr.h1.abcdef").Info().Msg("deployed")

Never log secrets or SSH key material; the orchestrator's own secret
handling in pkg/security is careful to keep it out of log statements.
*/
package log
