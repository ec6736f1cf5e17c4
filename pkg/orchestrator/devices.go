package orchestrator

import (
	"context"
	"fmt"

	"github.com/cuemby/cephadmd/pkg/errs"
	"github.com/cuemby/cephadmd/pkg/executor"
	"github.com/cuemby/cephadmd/pkg/types"
)

// DeviceZap wipes a block device so it becomes available for OSD
// creation again ("device zap <host> <path>").
func (o *Orchestrator) DeviceZap(ctx context.Context, hostname, path string) error {
	host, err := o.inventory.Get(hostname)
	if err != nil {
		return err
	}
	_, err = o.executor.Run(ctx, host, "cephadm", "ceph-volume", []string{"lvm", "zap", path, "--destroy"}, executor.RunOptions{})
	if err != nil {
		return err
	}
	return o.hostcache.InvalidateHostDevices(hostname)
}

// DeviceLs lists the cached device inventory across every host
// ("device ls [--refresh]").
func (o *Orchestrator) DeviceLs(refresh bool) map[string][]types.Device {
	if refresh {
		for _, h := range o.inventory.All() {
			_ = o.hostcache.InvalidateHostDevices(h.Hostname)
		}
		o.reconcile.Wake()
	}
	out := make(map[string][]types.Device)
	for _, h := range o.inventory.All() {
		out[h.Hostname] = o.hostcache.DevicesOnHost(h.Hostname)
	}
	return out
}

// DeviceTarget is one "host:path[=devpath]" operand of "device light".
type DeviceTarget struct {
	Hostname string
	Path     string
	DevPath  string
}

// DeviceLight toggles a device's locator LED ("device light
// {on|off} {ident|fault} <host>:<path>[=<devpath>] …"). state is "on"
// or "off"; kind is "ident" or "fault".
func (o *Orchestrator) DeviceLight(ctx context.Context, state, kind string, targets []DeviceTarget) error {
	if state != "on" && state != "off" {
		return errs.Newf(errs.InvalidArg, "device light state must be on or off, got %q", state)
	}
	if kind != "ident" && kind != "fault" {
		return errs.Newf(errs.InvalidArg, "device light kind must be ident or fault, got %q", kind)
	}
	var first error
	for _, t := range targets {
		host, err := o.inventory.Get(t.Hostname)
		if err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		devPath := t.DevPath
		if devPath == "" {
			devPath = t.Path
		}
		args := []string{"device", "light", state, kind, fmt.Sprintf("%s:%s", t.Hostname, devPath)}
		if _, err := o.executor.Run(ctx, host, "cephadm", "shell", args, executor.RunOptions{}); err != nil && first == nil {
			first = err
		}
	}
	return first
}
