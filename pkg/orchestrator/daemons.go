package orchestrator

import (
	"context"

	"github.com/cuemby/cephadmd/pkg/errs"
	"github.com/cuemby/cephadmd/pkg/executor"
	"github.com/cuemby/cephadmd/pkg/types"
)

// findDaemon locates an observed daemon by its "type.id" name across
// every host's cache entry.
func (o *Orchestrator) findDaemon(name string) (*types.DaemonDescription, error) {
	for _, d := range o.hostcache.AllDaemons() {
		if d.Name() == name {
			return d, nil
		}
	}
	return nil, errs.Newf(errs.NotFound, "daemon %q not found", name)
}

func (o *Orchestrator) runUnitAction(ctx context.Context, d *types.DaemonDescription, action string) error {
	host, err := o.inventory.Get(d.Hostname)
	if err != nil {
		return err
	}
	_, err = o.executor.Run(ctx, host, "cephadm", "unit", []string{"--name", d.Name(), action}, executor.RunOptions{})
	return err
}

func (o *Orchestrator) okToStop(d *types.DaemonDescription) error {
	driver, err := o.drivers.For(d.DaemonType)
	if err != nil {
		return err
	}
	if ok, reason := driver.OkToStop([]*types.DaemonDescription{d}); !ok {
		return errs.Newf(errs.NotSafeToStop, "stopping %s: %s", d.Name(), reason)
	}
	return nil
}

// DaemonStart starts a named daemon ("daemon start <name>").
func (o *Orchestrator) DaemonStart(ctx context.Context, name string) error {
	d, err := o.findDaemon(name)
	if err != nil {
		return err
	}
	return o.runUnitAction(ctx, d, "start")
}

// DaemonStop stops a named daemon, vetoed by the owning driver's
// OkToStop check ("daemon stop <name>").
func (o *Orchestrator) DaemonStop(ctx context.Context, name string) error {
	d, err := o.findDaemon(name)
	if err != nil {
		return err
	}
	if err := o.okToStop(d); err != nil {
		return err
	}
	return o.runUnitAction(ctx, d, "stop")
}

// DaemonRestart restarts a named daemon, subject to the same
// OkToStop veto as DaemonStop ("daemon restart <name>").
func (o *Orchestrator) DaemonRestart(ctx context.Context, name string) error {
	d, err := o.findDaemon(name)
	if err != nil {
		return err
	}
	if err := o.okToStop(d); err != nil {
		return err
	}
	return o.runUnitAction(ctx, d, "restart")
}

// DaemonRedeploy redeploys a daemon, optionally pinning a new
// container image ("daemon redeploy <name> [--image IMG]"). An
// empty image keeps the daemon's current one.
func (o *Orchestrator) DaemonRedeploy(ctx context.Context, name, image string) error {
	d, err := o.findDaemon(name)
	if err != nil {
		return err
	}
	host, err := o.inventory.Get(d.Hostname)
	if err != nil {
		return err
	}
	if image == "" {
		image = d.ContainerImageID
	}
	return o.reconcile.Redeploy(ctx, host, d, image)
}

// DaemonReconfig forces a redeploy of a daemon's config with its
// current image, independent of whether its dependency set has
// actually changed ("daemon reconfig <name>").
func (o *Orchestrator) DaemonReconfig(ctx context.Context, name string) error {
	return o.DaemonRedeploy(ctx, name, "")
}

// ServiceAction applies start/stop/restart to every daemon of a
// service ("service-action {start|stop|restart} <service-name>").
// Per-daemon failures are collected; the first one is returned but
// every daemon is still attempted.
func (o *Orchestrator) ServiceAction(ctx context.Context, action, serviceName string) error {
	daemons := o.hostcache.GetDaemonsByService(serviceName)
	if len(daemons) == 0 {
		return errs.Newf(errs.NotFound, "no daemons for service %q", serviceName)
	}
	var first error
	for _, d := range daemons {
		var err error
		switch action {
		case "start":
			err = o.runUnitAction(ctx, d, "start")
		case "stop":
			if err = o.okToStop(d); err == nil {
				err = o.runUnitAction(ctx, d, "stop")
			}
		case "restart":
			if err = o.okToStop(d); err == nil {
				err = o.runUnitAction(ctx, d, "restart")
			}
		default:
			err = errs.Newf(errs.InvalidArg, "unknown service action %q", action)
		}
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Pause suspends the mutating reconciliation stages ("pause").
func (o *Orchestrator) Pause() error {
	return o.reconcile.Pause()
}

// Resume re-enables reconciliation without restarting the process
// ("resume").
func (o *Orchestrator) Resume() error {
	return o.reconcile.Resume()
}

// Paused reports whether the reconciler is currently paused.
func (o *Orchestrator) Paused() bool {
	return o.reconcile.Paused()
}
