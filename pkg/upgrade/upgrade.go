// Package upgrade implements a multi-phase rolling
// upgrade across daemon types in a fixed order,
// resumable across process restarts via persisted UpgradeState.
package upgrade

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cuemby/cephadmd/pkg/drivers"
	"github.com/cuemby/cephadmd/pkg/errs"
	"github.com/cuemby/cephadmd/pkg/eventstore"
	"github.com/cuemby/cephadmd/pkg/health"
	"github.com/cuemby/cephadmd/pkg/hostcache"
	"github.com/cuemby/cephadmd/pkg/inventory"
	"github.com/cuemby/cephadmd/pkg/kvstore"
	"github.com/cuemby/cephadmd/pkg/log"
	"github.com/cuemby/cephadmd/pkg/types"
)

// UpgradeOrder is the fixed daemon-type order the engine upgrades in:
// cluster brains first, then data daemons, then gateways, then the
// monitoring stack.
var UpgradeOrder = []types.ServiceType{
	types.ServiceMgr,
	types.ServiceMon,
	types.ServiceCrash,
	types.ServiceOSD,
	types.ServiceMDS,
	types.ServiceRGW,
	types.ServiceRBDMirror,
	types.ServiceISCSI,
	types.ServiceNFS,
	// Monitoring stack: dependency leaves before the dashboard that
	// scrapes them, mirroring the driver dependency graph
	// (prometheus depends on alertmanager+node-exporter; grafana
	// depends on prometheus).
	types.ServiceAlertmanager,
	types.ServiceNodeExporter,
	types.ServicePrometheus,
	types.ServiceGrafana,
}

const upgradeStateKey = "current"

// Deployer is the redeploy capability the engine needs from the
// reconciler, injected as an interface to avoid a reconciler<->upgrade
// import cycle.
type Deployer interface {
	Redeploy(ctx context.Context, host *types.Host, daemon *types.DaemonDescription, targetImage string) error
}

// Engine drives the upgrade state machine. One daemon is redeployed per
// ContinueUpgrade call so the reconciler's "did work -> loop again
// immediately" rule naturally paces the rollout.
type Engine struct {
	store     *kvstore.Store
	hostcache *hostcache.HostCache
	inventory *inventory.Inventory
	drivers   *drivers.Registry
	deployer  Deployer
	health    *health.Publisher
	events    *eventstore.EventStore
	logger    zerolog.Logger

	state types.UpgradeState
}

// New loads any persisted upgrade state and builds an Engine. deployer
// may be nil at construction time and attached later via SetDeployer to
// break the reconciler/upgrade init cycle.
func New(store *kvstore.Store, hc *hostcache.HostCache, inv *inventory.Inventory, dr *drivers.Registry, hp *health.Publisher, events *eventstore.EventStore) (*Engine, error) {
	e := &Engine{
		store:     store,
		hostcache: hc,
		inventory: inv,
		drivers:   dr,
		health:    hp,
		events:    events,
		logger:    log.WithComponent("upgrade"),
	}
	data, err := store.Get(kvstore.BucketUpgradeState, []byte(upgradeStateKey))
	if err != nil {
		return nil, err
	}
	if data != nil {
		if err := json.Unmarshal(data, &e.state); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// SetDeployer attaches the redeploy capability after construction.
func (e *Engine) SetDeployer(d Deployer) { e.deployer = d }

func (e *Engine) persist() error {
	data, err := json.Marshal(e.state)
	if err != nil {
		return err
	}
	return e.store.Put(kvstore.BucketUpgradeState, []byte(upgradeStateKey), data)
}

// Status returns a copy of the current upgrade state.
func (e *Engine) Status() types.UpgradeState { return e.state }

// Start begins a new upgrade toward targetImage, resetting progress to
// the first type in UpgradeOrder.
func (e *Engine) Start(targetImage, targetID, targetVersion string) error {
	if e.state.InProgress {
		return errs.New(errs.InvalidArg, "an upgrade is already in progress")
	}
	e.state = types.UpgradeState{
		TargetImage:   targetImage,
		TargetID:      targetID,
		TargetVersion: targetVersion,
		InProgress:    true,
		CurrentType:   string(UpgradeOrder[0]),
	}
	return e.persist()
}

// Pause suspends progress; ContinueUpgrade becomes a no-op until Resume.
func (e *Engine) Pause() error {
	if !e.state.InProgress {
		return errs.New(errs.InvalidArg, "no upgrade in progress")
	}
	e.state.Paused = true
	return e.persist()
}

// Resume clears the pause flag.
func (e *Engine) Resume() error {
	e.state.Paused = false
	return e.persist()
}

// Stop aborts the upgrade, discarding progress.
func (e *Engine) Stop() error {
	e.state = types.UpgradeState{}
	return e.persist()
}

// ContinueUpgrade advances the upgrade by one daemon, returning whether
// it made progress (so the reconciler's serve loop knows to restart
// immediately instead of sleeping).
func (e *Engine) ContinueUpgrade(ctx context.Context) (bool, error) {
	if !e.state.InProgress || e.state.Paused {
		return false, nil
	}

	currentType := types.ServiceType(e.state.CurrentType)
	pending := e.pendingDaemons(currentType)
	if len(pending) == 0 {
		return e.advanceType()
	}

	target := pending[0]
	driver, err := e.drivers.For(currentType)
	if err != nil {
		return false, err
	}
	if ok, reason := driver.OkToStop(pending); !ok {
		e.health.Publish(types.HealthCheck{
			Name:     health.CheckUpgradePrefix + string(currentType),
			Severity: types.SeverityWarning,
			Summary:  fmt.Sprintf("upgrade of %s daemons blocked", currentType),
			Count:    1,
			Detail:   []string{reason},
		})
		return false, nil
	}

	host, err := e.inventory.Get(target.Hostname)
	if err != nil {
		return false, err
	}
	e.state.CurrentDaemon = target.Name()
	if err := e.persist(); err != nil {
		return false, err
	}

	if e.deployer == nil {
		return false, errs.New(errs.Internal, "upgrade engine has no deployer attached")
	}
	if err := e.deployer.Redeploy(ctx, host, target, e.state.TargetImage); err != nil {
		e.state.Error = err.Error()
		_ = e.persist()
		e.events.Error(target.Name(), fmt.Sprintf("upgrade redeploy failed: %v", err))
		return false, err
	}
	e.health.Clear(health.CheckUpgradePrefix + string(currentType))
	e.events.Info(target.Name(), fmt.Sprintf("upgraded to %s", e.state.TargetImage))
	return true, nil
}

// pendingDaemons returns, in deterministic hostname order, every daemon
// of serviceType whose observed image does not yet match the target.
// The resolved image id is the authoritative comparison when the
// caller supplied one; otherwise the image name is all there is to
// compare against.
func (e *Engine) pendingDaemons(serviceType types.ServiceType) []*types.DaemonDescription {
	want := e.state.TargetID
	if want == "" {
		want = e.state.TargetImage
	}
	var out []*types.DaemonDescription
	for _, d := range e.hostcache.AllDaemons() {
		if d.DaemonType != serviceType {
			continue
		}
		if d.ContainerImageID != want {
			out = append(out, d)
		}
	}
	sortByHostThenName(out)
	return out
}

func sortByHostThenName(ds []*types.DaemonDescription) {
	for i := 1; i < len(ds); i++ {
		for j := i; j > 0; j-- {
			a, b := ds[j-1], ds[j]
			if a.Hostname > b.Hostname || (a.Hostname == b.Hostname && a.Name() > b.Name()) {
				ds[j-1], ds[j] = ds[j], ds[j-1]
			} else {
				break
			}
		}
	}
}

// advanceType moves CurrentType to the next entry in UpgradeOrder, or
// completes the upgrade once every type has been processed.
func (e *Engine) advanceType() (bool, error) {
	idx := -1
	for i, t := range UpgradeOrder {
		if string(t) == e.state.CurrentType {
			idx = i
			break
		}
	}
	if idx == -1 || idx == len(UpgradeOrder)-1 {
		e.state = types.UpgradeState{}
		e.health.Clear(health.CheckUpgradePrefix)
		return true, e.persist()
	}
	e.state.CurrentType = string(UpgradeOrder[idx+1])
	e.state.CurrentDaemon = ""
	return true, e.persist()
}
