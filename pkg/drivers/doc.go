// Package drivers provides one Driver per daemon family, each
// producing the agent config blob for its daemon type and gating
// whether a daemon is safe to stop. The reconciler calls every driver
// through the same interface; type-specific behavior (NFS pool
// validation, the alert-stack's post_check wiring) lives entirely
// inside each driver's methods.
package drivers
