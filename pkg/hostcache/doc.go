// Package hostcache is the per-host observed state cache
// (daemons, devices, networks, refresh timestamps) that the reconciler
// is the sole writer of. Every host's entry is replaced wholesale on
// refresh rather than mutated field-by-field, per the concurrency model.
package hostcache
