/*
Package reconciler implements the serve loop that drives the cluster
toward the state recorded in SpecStore: a single cooperative goroutine
that repeats eight ordered stages, restarting immediately whenever a
stage reports it did work and otherwise waiting on an explicit wake
event or a 600-second timer.

# Serve loop

	┌─────────────────────────────────────────────────────────────┐
	│ 1. refresh hosts+daemons (bounded worker pool, width 10)     │
	│ 2. classify strays (STRAY_HOST / STRAY_DAEMON)               │
	│ 3. publish/clear the PAUSED health check                     │
	│    -- if paused, stop here --                                │
	│ 4. process the OSD removal queue                             │
	│ 5. (reserved: schema migrations -- currently a no-op)        │
	│ 6. apply every spec (scheduler.Assign, deploy, remove)       │
	│ 7. reconcile orphans/reconfigs, run queued post-checks       │
	│ 8. advance the upgrade engine one step                       │
	└─────────────────────────────────────────────────────────────┘

Any stage that mutates HostCache, the removal queue, or SpecStore and
reports true loops the whole thing again without waiting -- that is
what lets a multi-step operation like a rolling upgrade or a full OSD
drain make steady progress: each pass tends to at most one unit of
work, and "did work" is the only signal that paces it.

# Ownership

Reconciler is the sole writer of each HostCache entry's daemon and
device maps; every other component (command handlers, the HTTP API,
the OSD removal queue) only reads them. Concurrent writers would race
on a cache entry that stage 1 is mid-refresh on.

# Breaking the upgrade/reconciler cycle

The upgrade engine needs a way to redeploy a daemon; the reconciler is
the only thing that knows how. Rather than have pkg/upgrade import
pkg/reconciler (which would import pkg/upgrade right back, to drive
ContinueUpgrade from stage 8), upgrade.Engine declares a small Deployer
interface and Reconciler satisfies it structurally via Redeploy.
AttachUpgradeEngine wires both directions after both are constructed.

# OSD creation

The Driver interface has no create method -- OSD daemons are not
scheduled like every other type, they are created against specific
block devices. applyOSDSpec walks each online host's device inventory,
matches it against the spec's drive-group filter, and allocates an OSD
id through the cluster facade's "osd create" monitor command before
deploying.
*/
package reconciler
