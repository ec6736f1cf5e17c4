/*
Package osdremoval implements the OSD removal queue and
its drain-then-destroy state machine.

Uses the same explicit status-enum-driving-transitions-on-each-pass
style as pkg/reconciler, generalized from container-lifecycle states to
the five OSD removal stages, and persisted the same way
Inventory and SpecStore are: one bbolt bucket, one JSON value per entry,
loaded once at startup and updated in place.
*/
package osdremoval
