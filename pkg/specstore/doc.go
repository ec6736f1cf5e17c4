// Package specstore holds the persisted set of desired-state
// service specs, plus a separate preview area for specs an "apply
// --dry-run" produced but that have not been committed.
package specstore
