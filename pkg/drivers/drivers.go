package drivers

import (
	"fmt"

	"github.com/cuemby/cephadmd/pkg/cluster"
	"github.com/cuemby/cephadmd/pkg/errs"
	"github.com/cuemby/cephadmd/pkg/types"
)

// Driver is the uniform interface every daemon family implements.
type Driver interface {
	// GenerateConfig produces the agent's config payload and the
	// dependency set used to detect when a reconfig is required.
	GenerateConfig(spec *types.Spec, daemonName string) (config []byte, deps []string, err error)
	// Config runs pre-apply validation against the spec, before the
	// scheduler is even consulted.
	Config(spec *types.Spec) error
	// OkToStop gates a stop/remove; a false result vetoes it.
	OkToStop(daemons []*types.DaemonDescription) (bool, string)
	// PreRemove runs side effects (cap revocation, etc) before a daemon
	// is removed.
	PreRemove(daemon *types.DaemonDescription) error
	// NeedsPostCheck reports whether this type requires a post_check
	// pass after deploy (grafana/iscsi/prometheus/alertmanager/nfs).
	NeedsPostCheck() bool
	// PostCheck runs additional wiring after every daemon of this type
	// is deployed.
	PostCheck(daemons []*types.DaemonDescription) error
	// GetActiveDaemon picks the active instance among peers.
	GetActiveDaemon(daemons []*types.DaemonDescription) *types.DaemonDescription
}

// Registry maps service type to its driver.
type Registry struct {
	drivers map[types.ServiceType]Driver
}

// NewRegistry builds the registry with one driver per known daemon
// family. cl is the cluster facade handed to drivers that need cluster
// state (currently only the NFS driver, for pool validation and grace
// file placement).
func NewRegistry(cl cluster.Client) *Registry {
	r := &Registry{drivers: make(map[types.ServiceType]Driver)}
	r.drivers[types.ServiceMon] = &monDriver{}
	r.drivers[types.ServiceMgr] = &mgrDriver{}
	r.drivers[types.ServiceOSD] = &osdDriver{}
	r.drivers[types.ServiceMDS] = &mdsDriver{}
	r.drivers[types.ServiceRGW] = &rgwDriver{}
	r.drivers[types.ServiceRBDMirror] = &rbdMirrorDriver{}
	r.drivers[types.ServiceCrash] = &crashDriver{}
	r.drivers[types.ServiceNFS] = &nfsDriver{cl: cl}
	r.drivers[types.ServiceISCSI] = &iscsiDriver{}
	r.drivers[types.ServiceGrafana] = &grafanaDriver{}
	r.drivers[types.ServicePrometheus] = &prometheusDriver{}
	r.drivers[types.ServiceAlertmanager] = &alertmanagerDriver{}
	r.drivers[types.ServiceNodeExporter] = &nodeExporterDriver{}
	return r
}

// For returns the driver for serviceType, or an error if unknown.
func (r *Registry) For(serviceType types.ServiceType) (Driver, error) {
	d, ok := r.drivers[serviceType]
	if !ok {
		return nil, errs.Newf(errs.InvalidArg, "no driver registered for service type %q", serviceType)
	}
	return d, nil
}

// base supplies the common default behavior every driver starts from:
// always safe to stop, no pre-remove side effects, no post-check, and
// "most recently started" as the active-daemon tie-break.
type base struct{}

func (base) OkToStop([]*types.DaemonDescription) (bool, string) { return true, "" }
func (base) PreRemove(*types.DaemonDescription) error           { return nil }
func (base) NeedsPostCheck() bool                               { return false }
func (base) PostCheck([]*types.DaemonDescription) error         { return nil }

func (base) GetActiveDaemon(daemons []*types.DaemonDescription) *types.DaemonDescription {
	var active *types.DaemonDescription
	for _, d := range daemons {
		if active == nil || d.Started.After(active.Started) {
			active = d
		}
	}
	return active
}

// configBlob renders a minimal ini-style config stanza for daemonName,
// the shape every ceph-native driver's GenerateConfig shares.
func configBlob(daemonName string, extra map[string]string) []byte {
	out := fmt.Sprintf("[%s]\n", daemonName)
	for k, v := range extra {
		out += fmt.Sprintf("%s = %s\n", k, v)
	}
	return []byte(out)
}
