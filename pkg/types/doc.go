/*
Package types defines the core data structures shared across cephadmd:
hosts and their labels, service specs and placement rules, observed
daemon descriptions, host-cache entries, OSD removal-queue entries,
upgrade state, and the small Event/HealthCheck records published by the
reconciler. Every other package builds on these types rather than
defining its own parallel shapes.
*/
package types
