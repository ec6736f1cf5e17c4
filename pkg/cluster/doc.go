/*
Package cluster defines the facade the rest of the orchestrator uses to
talk to the distributed-storage cluster it manages, and ships a minimal
in-memory implementation.

The interface shape (mon_command, get(key), RADOS object I/O) is lifted
directly from the "out of scope" external collaborator this orchestrator
manages but does not implement; the in-memory implementation exists only
so pkg/reconciler, pkg/osdremoval, and pkg/upgrade have a concrete,
testable Client to drive instead of standing up a real cluster for
every test.
*/
package cluster
