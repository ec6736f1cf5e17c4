package orchestrator

import (
	"context"

	"github.com/cuemby/cephadmd/pkg/errs"
	"github.com/cuemby/cephadmd/pkg/executor"
	"github.com/cuemby/cephadmd/pkg/types"
)

// HostAdd adds a host to the inventory and primes its cache entry
// ("host add"). address defaults to hostname when empty.
func (o *Orchestrator) HostAdd(hostname, address string) (*types.Host, error) {
	if !types.ValidName(hostname) {
		return nil, errs.Newf(errs.InvalidArg, "invalid hostname %q", hostname)
	}
	if address == "" {
		address = hostname
	}
	h, err := o.inventory.Add(hostname, address)
	if err != nil {
		return nil, err
	}
	if err := o.hostcache.Prime(hostname); err != nil {
		return nil, err
	}
	o.logger.Info().Str("host", hostname).Str("addr", address).Msg("host added")
	o.reconcile.Wake()
	return h, nil
}

// HostLs lists every managed host ("host ls").
func (o *Orchestrator) HostLs() []*types.Host {
	return o.inventory.All()
}

// HostRm removes a host from the inventory and discards its cache
// entry, so a later HostAdd of the same name starts from an empty
// cache entry with no daemons carried over.
func (o *Orchestrator) HostRm(hostname string) error {
	if err := o.hostcache.Discard(hostname); err != nil {
		return err
	}
	if err := o.inventory.Remove(hostname); err != nil {
		return err
	}
	o.logger.Info().Str("host", hostname).Msg("host removed")
	o.reconcile.Wake()
	return nil
}

// HostSetAddr updates a host's management address.
func (o *Orchestrator) HostSetAddr(hostname, address string) error {
	return o.inventory.SetAddress(hostname, address)
}

// HostLabelAdd attaches a placement label to a host.
func (o *Orchestrator) HostLabelAdd(hostname, label string) error {
	if err := o.inventory.AddLabel(hostname, label); err != nil {
		return err
	}
	o.reconcile.Wake()
	return nil
}

// HostLabelRm removes a placement label from a host.
func (o *Orchestrator) HostLabelRm(hostname, label string) error {
	if err := o.inventory.RmLabel(hostname, label); err != nil {
		return err
	}
	o.reconcile.Wake()
	return nil
}

// CheckHost runs the agent's steady-state reachability probe against a
// host, identical to the refresh loop's own host-check, but callable on
// demand and against a host not yet in the inventory (addr lets the
// caller probe before "host add").
func (o *Orchestrator) CheckHost(ctx context.Context, hostname, addr string) error {
	host := o.transientHost(hostname, addr)
	_, err := o.executor.Run(ctx, host, "cephadm", "check-host", nil, executor.RunOptions{})
	return err
}

// PrepareHost runs the agent's idempotent bootstrap step (install
// packages, create the cephadm user, drop the agent binary) ahead of
// "host add", distinct from the steady-state check-host probe.
func (o *Orchestrator) PrepareHost(ctx context.Context, hostname, addr string) error {
	host := o.transientHost(hostname, addr)
	_, err := o.executor.Run(ctx, host, "cephadm", "prepare-host", nil, executor.RunOptions{})
	return err
}

// transientHost builds a *types.Host for operations that may run
// before the host is in the inventory, preferring the live inventory
// entry when one exists so address overrides already on file are
// respected.
func (o *Orchestrator) transientHost(hostname, addr string) *types.Host {
	if h, err := o.inventory.Get(hostname); err == nil {
		return h
	}
	if addr == "" {
		addr = hostname
	}
	return &types.Host{Hostname: hostname, Address: addr, Status: types.HostOnline}
}
