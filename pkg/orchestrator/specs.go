package orchestrator

import (
	"github.com/cuemby/cephadmd/pkg/errs"
	"github.com/cuemby/cephadmd/pkg/types"

	"gopkg.in/yaml.v3"
)

// requiresServiceID is the set of service types whose YAML schema
// requires an explicit service_id.
var requiresServiceID = map[types.ServiceType]bool{
	types.ServiceMDS:   true,
	types.ServiceRGW:   true,
	types.ServiceNFS:   true,
	types.ServiceISCSI: true,
	types.ServiceOSD:   true,
}

// Apply parses one Spec YAML document and saves it ("apply -i
// <yaml>"), parsed into the flat Spec shape instead of a
// Kind-dispatched resource union.
func (o *Orchestrator) Apply(doc []byte) (*types.Spec, error) {
	var spec types.Spec
	if err := yaml.Unmarshal(doc, &spec); err != nil {
		return nil, errs.Wrap(errs.InvalidArg, "parse spec yaml", err)
	}
	if !types.ValidServiceTypes[spec.ServiceType] {
		return nil, errs.Newf(errs.InvalidArg, "unknown service_type %q", spec.ServiceType)
	}
	if requiresServiceID[spec.ServiceType] && spec.ServiceID == "" {
		return nil, errs.Newf(errs.InvalidArg, "service_type %q requires service_id", spec.ServiceType)
	}
	if spec.PreviewOnly {
		if err := o.specs.SavePreview(&spec); err != nil {
			return nil, err
		}
		o.logger.Info().Str("service", spec.ServiceName()).Msg("spec preview saved")
		return &spec, nil
	}
	if err := o.specs.Save(&spec); err != nil {
		return nil, err
	}
	// Applying a previously previewed spec supersedes its preview.
	if err := o.specs.ClearPreview(spec.ServiceName()); err != nil {
		return nil, err
	}
	o.logger.Info().Str("service", spec.ServiceName()).Msg("spec applied")
	o.reconcile.Wake()
	return &spec, nil
}

// ListFilter narrows the Ls/Ps operations ("ls"/"ps" flags).
type ListFilter struct {
	ServiceType string
	ServiceName string
	Hostname    string
	DaemonType  string
	DaemonID    string
	Refresh     bool
	Preview     bool
}

// Ls lists service specs, optionally narrowed by service type/name
// ("ls"). Refresh is accepted for CLI symmetry with Ps but specs
// have no remote state to refresh.
func (o *Orchestrator) Ls(f ListFilter) []*types.Spec {
	source := o.specs.Specs()
	if f.Preview {
		source = o.specs.SpecPreview()
	}
	var out []*types.Spec
	for _, s := range source {
		if f.ServiceType != "" && string(s.ServiceType) != f.ServiceType {
			continue
		}
		if f.ServiceName != "" && s.ServiceName() != f.ServiceName {
			continue
		}
		out = append(out, s)
	}
	return out
}

// SpecRm deletes a spec by service name, reporting whether it existed.
func (o *Orchestrator) SpecRm(serviceName string) (bool, error) {
	existed, err := o.specs.Rm(serviceName)
	if err != nil {
		return false, err
	}
	o.logger.Info().Str("service", serviceName).Msg("spec removed")
	o.reconcile.Wake()
	return existed, nil
}

// Ps lists observed daemons, optionally narrowed by hostname/daemon
// type/daemon id ("ps"). Refresh invalidates every host's daemon cache
// and wakes the serve loop; it does not wait for that pass, so the
// returned list is still the cached state. Daemons on offline hosts are
// reported with an unknown status overlay rather than their last
// cached state.
func (o *Orchestrator) Ps(f ListFilter) []*types.DaemonDescription {
	if f.Refresh {
		for _, h := range o.inventory.All() {
			_ = o.hostcache.InvalidateHostDaemons(h.Hostname)
		}
		o.reconcile.Wake()
	}
	var out []*types.DaemonDescription
	for _, d := range o.hostcache.GetDaemonsWithVolatileStatus(o.executor.OfflineHosts()) {
		if f.Hostname != "" && d.Hostname != f.Hostname {
			continue
		}
		if f.DaemonType != "" && string(d.DaemonType) != f.DaemonType {
			continue
		}
		if f.DaemonID != "" && d.DaemonID != f.DaemonID {
			continue
		}
		out = append(out, d)
	}
	return out
}
