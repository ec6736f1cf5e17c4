// Package health implements the named health-check publisher.
// Unlike a liveness probe, a check here is a standing condition (a
// stray daemon, a failed host refresh) that the reconciler publishes
// or clears every pass; nothing here does periodic polling on its own.
package health
