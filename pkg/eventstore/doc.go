// Package eventstore is a bounded in-memory ring of recent
// events per subject (a service name or a daemon name). It is
// deliberately not a pub-sub broker — nothing subscribes to it, it is
// read on demand by the CLI's "ls --events"-style surface.
package eventstore
