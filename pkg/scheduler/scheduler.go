package scheduler

import (
	"path"
	"sort"

	"github.com/cuemby/cephadmd/pkg/errs"
	"github.com/cuemby/cephadmd/pkg/types"
)

// HostFilter narrows the candidate set beyond placement rules, e.g. a
// mon placement requiring an address on the configured public network.
// A nil filter accepts every candidate.
type HostFilter func(*types.Host) bool

// DefaultPlacement fills in the placement rule a spec gets when its own
// placement is empty.
func DefaultPlacement(serviceType types.ServiceType) types.PlacementSpec {
	switch serviceType {
	case types.ServiceMon:
		return types.PlacementSpec{Count: types.CountPtr(5)}
	case types.ServiceMgr, types.ServiceMDS, types.ServiceRGW, types.ServiceRBDMirror:
		return types.PlacementSpec{Count: types.CountPtr(2)}
	case types.ServiceISCSI, types.ServiceNFS, types.ServiceGrafana,
		types.ServiceAlertmanager, types.ServicePrometheus:
		return types.PlacementSpec{Count: types.CountPtr(1)}
	case types.ServiceNodeExporter, types.ServiceCrash:
		return types.PlacementSpec{HostPattern: "*"}
	default:
		return types.PlacementSpec{}
	}
}

// Assign is HostAssignment: given a spec, the current Inventory hosts,
// and the daemons already observed for that spec's service, it returns
// the daemons to add (as host placements, not yet deployed) and the
// daemons to remove. It touches nothing outside its arguments.
func Assign(spec *types.Spec, hosts []*types.Host, existing []*types.DaemonDescription, filter HostFilter) ([]types.HostPlacementSpec, []*types.DaemonDescription, error) {
	placement := spec.Placement
	if placement.IsEmpty() {
		placement = DefaultPlacement(spec.ServiceType)
	}

	if isMonOrMgr(spec.ServiceType) && placement.Count != nil && *placement.Count < 1 {
		return nil, nil, errs.Newf(errs.InvalidArg, "%s requires count >= 1", spec.ServiceType)
	}
	if placement.Count != nil && *placement.Count < 0 {
		return nil, nil, errs.Newf(errs.InvalidArg, "count must not be negative")
	}

	candidates, hpsByHost, err := candidateHosts(placement, hosts)
	if err != nil {
		return nil, nil, err
	}
	candidates = filterCandidates(candidates, filter)

	target := len(candidates)
	if placement.Count != nil {
		target = *placement.Count
	}

	candidateNames := make(map[string]bool, len(candidates))
	candidateOrder := make(map[string]int, len(candidates))
	for i, h := range candidates {
		candidateNames[h.Hostname] = true
		candidateOrder[h.Hostname] = i
	}

	var kept []*types.DaemonDescription
	var removed []*types.DaemonDescription
	for _, d := range existing {
		if candidateNames[d.Hostname] {
			kept = append(kept, d)
		} else {
			removed = append(removed, d)
		}
	}

	// Trim kept down to target, evicting the newest first when the
	// target shrank below what's already placed.
	if len(kept) > target {
		sort.Slice(kept, func(i, j int) bool { return kept[i].Created.After(kept[j].Created) })
		removed = append(removed, kept[:len(kept)-target]...)
		kept = kept[len(kept)-target:]
	}

	keptHosts := make(map[string]bool, len(kept))
	for _, d := range kept {
		keptHosts[d.Hostname] = true
	}

	var toAdd []types.HostPlacementSpec
	need := target - len(kept)
	for _, h := range candidates {
		if need <= 0 {
			break
		}
		if keptHosts[h.Hostname] {
			continue
		}
		if hps, ok := hpsByHost[h.Hostname]; ok {
			toAdd = append(toAdd, hps)
		} else {
			toAdd = append(toAdd, types.HostPlacementSpec{Hostname: h.Hostname})
		}
		need--
	}

	if isMonOrMgr(spec.ServiceType) && len(kept)+len(toAdd) < 1 {
		return nil, nil, errs.Newf(errs.InvalidArg, "%s placement produced zero daemons", spec.ServiceType)
	}

	sort.Slice(removed, func(i, j int) bool {
		oi, oki := candidateOrder[removed[i].Hostname]
		oj, okj := candidateOrder[removed[j].Hostname]
		if oki && okj && oi != oj {
			return oi < oj
		}
		return removed[i].Created.After(removed[j].Created)
	})

	return toAdd, removed, nil
}

func isMonOrMgr(t types.ServiceType) bool {
	return t == types.ServiceMon || t == types.ServiceMgr
}

// candidateHosts resolves the placement rule into an ordered candidate
// list. For explicit hosts entries it also returns each entry's parsed
// network/forced-name narrowing, keyed by hostname, so the add path can
// carry them through to deployment.
func candidateHosts(placement types.PlacementSpec, hosts []*types.Host) ([]*types.Host, map[string]types.HostPlacementSpec, error) {
	byName := make(map[string]*types.Host, len(hosts))
	for _, h := range hosts {
		byName[h.Hostname] = h
	}

	switch {
	case len(placement.Hosts) > 0:
		var out []*types.Host
		hpsByHost := make(map[string]types.HostPlacementSpec, len(placement.Hosts))
		for _, entry := range placement.Hosts {
			hps := types.ParseHostPlacement(entry)
			if h, ok := byName[hps.Hostname]; ok {
				out = append(out, h)
				hpsByHost[hps.Hostname] = hps
			}
		}
		return out, hpsByHost, nil

	case placement.Label != "":
		var out []*types.Host
		for _, h := range hosts {
			if h.HasLabel(placement.Label) {
				out = append(out, h)
			}
		}
		return out, nil, nil

	case placement.HostPattern != "":
		var out []*types.Host
		for _, h := range hosts {
			matched, err := path.Match(placement.HostPattern, h.Hostname)
			if err != nil {
				return nil, nil, errs.Wrap(errs.InvalidArg, "invalid host_pattern", err)
			}
			if matched {
				out = append(out, h)
			}
		}
		return out, nil, nil

	default:
		return hosts, nil, nil
	}
}

func filterCandidates(hosts []*types.Host, filter HostFilter) []*types.Host {
	out := hosts[:0:0]
	for _, h := range hosts {
		if h.Status != types.HostOnline {
			continue
		}
		if filter != nil && !filter(h) {
			continue
		}
		out = append(out, h)
	}
	return out
}
