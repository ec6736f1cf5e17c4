/*
Package upgrade implements the rolling upgrade state
machine.

Follows a batch-by-batch "shut down old, let the next pass redeploy it,
wait, move to the next batch" rolling-update shape, restructured for
this domain: instead of updating one service's containers in
parallelism-sized batches with a fixed delay, it upgrades one daemon at
a time across a fixed sequence of daemon *types*, gated by each
type's driver ok_to_stop rather than a delay. The persisted UpgradeState
carries enough to resume and to report progress, without assuming the
process stays up.
*/
package upgrade
