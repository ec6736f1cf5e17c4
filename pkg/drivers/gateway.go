package drivers

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/cephadmd/pkg/cluster"
	"github.com/cuemby/cephadmd/pkg/types"
)

// nfsPoolInfo records the backing pool/namespace a given NFS service was
// last validated against, so PostCheck (which only sees daemons, not
// specs) knows where to place the grace file.
type nfsPoolInfo struct {
	pool      string
	namespace string
}

// nfsDriver manages ganesha NFS gateways backed by a RADOS pool. The
// backing pool must exist and a namespace must be supplied before
// config is allowed to succeed; the grace-period object is created
// post-deploy.
type nfsDriver struct {
	base
	cl cluster.Client

	mu    sync.Mutex
	pools map[string]nfsPoolInfo
}

func (*nfsDriver) GenerateConfig(spec *types.Spec, daemonName string) ([]byte, []string, error) {
	extra := map[string]string{}
	if spec.NFS != nil {
		extra["pool"] = spec.NFS.Pool
		if spec.NFS.Namespace != "" {
			extra["namespace"] = spec.NFS.Namespace
		}
	}
	return configBlob(daemonName, extra), nil, nil
}

// Config validates that nfs.pool and nfs.namespace are set and that the
// pool is usable, probed by writing an empty sentinel object with
// RadosPut; any error from that write rejects the spec.
func (d *nfsDriver) Config(spec *types.Spec) error {
	if spec.NFS == nil || spec.NFS.Pool == "" {
		return fmt.Errorf("nfs spec %q requires nfs.pool", spec.ServiceName())
	}
	if spec.NFS.Namespace == "" {
		return fmt.Errorf("nfs spec %q requires nfs.namespace", spec.ServiceName())
	}
	if d.cl != nil {
		if err := d.cl.RadosPut(context.Background(), spec.NFS.Pool, spec.NFS.Namespace, ".nfs-pool-probe", []byte{}); err != nil {
			return fmt.Errorf("nfs spec %q: pool %q not usable: %w", spec.ServiceName(), spec.NFS.Pool, err)
		}
	}

	d.mu.Lock()
	if d.pools == nil {
		d.pools = make(map[string]nfsPoolInfo)
	}
	d.pools[spec.ServiceName()] = nfsPoolInfo{pool: spec.NFS.Pool, namespace: spec.NFS.Namespace}
	d.mu.Unlock()
	return nil
}

func (*nfsDriver) NeedsPostCheck() bool { return true }

// PostCheck ensures the Ganesha grace-period file exists in the backing
// pool's namespace for every deployed daemon, mirroring cephadm's
// post-deploy "create grace file" step for NFS.
func (d *nfsDriver) PostCheck(daemons []*types.DaemonDescription) error {
	if d.cl == nil {
		return nil
	}
	for _, daemon := range daemons {
		d.mu.Lock()
		info, ok := d.pools[daemon.ServiceName()]
		d.mu.Unlock()
		if !ok {
			continue
		}
		graceFile := fmt.Sprintf("grace-%s", daemon.Name())
		if _, err := d.cl.RadosGet(context.Background(), info.pool, info.namespace, graceFile); err != nil {
			if err := d.cl.RadosPut(context.Background(), info.pool, info.namespace, graceFile, []byte("0")); err != nil {
				return fmt.Errorf("create grace file for %s: %w", daemon.Name(), err)
			}
		}
	}
	return nil
}

// iscsiDriver manages tcmu-runner / rbd-target-api gateways.
type iscsiDriver struct{ base }

func (iscsiDriver) GenerateConfig(spec *types.Spec, daemonName string) ([]byte, []string, error) {
	return configBlob(daemonName, nil), nil, nil
}

func (iscsiDriver) Config(*types.Spec) error { return nil }

func (iscsiDriver) NeedsPostCheck() bool { return true }

// PostCheck would register each gateway with rbd-target-api; the
// dashboard's iscsi controller owns that call, so no-op here.
func (iscsiDriver) PostCheck(daemons []*types.DaemonDescription) error { return nil }
