// Package reconciler implements the single cooperative
// serve loop that drives every host and daemon toward the desired
// state recorded in SpecStore.
package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/cephadmd/pkg/cluster"
	"github.com/cuemby/cephadmd/pkg/drivers"
	"github.com/cuemby/cephadmd/pkg/errs"
	"github.com/cuemby/cephadmd/pkg/eventstore"
	"github.com/cuemby/cephadmd/pkg/executor"
	"github.com/cuemby/cephadmd/pkg/health"
	"github.com/cuemby/cephadmd/pkg/hostcache"
	"github.com/cuemby/cephadmd/pkg/inventory"
	"github.com/cuemby/cephadmd/pkg/kvstore"
	"github.com/cuemby/cephadmd/pkg/log"
	"github.com/cuemby/cephadmd/pkg/metrics"
	"github.com/cuemby/cephadmd/pkg/osdremoval"
	"github.com/cuemby/cephadmd/pkg/scheduler"
	"github.com/cuemby/cephadmd/pkg/specstore"
	"github.com/cuemby/cephadmd/pkg/types"
	"github.com/cuemby/cephadmd/pkg/upgrade"
)

// DefaultWorkerWidth bounds the number of hosts refreshed in parallel
// during stage 1.
const DefaultWorkerWidth = 10

// DefaultWakeTimeout is the serve loop's idle period between forced
// passes when nothing sets the wake event.
const DefaultWakeTimeout = 600 * time.Second

const pauseKey = "pause"

// upgradeEngine is the slice of *upgrade.Engine the reconciler drives,
// named as an interface so tests can substitute a stub without pulling
// in the full upgrade package's state machine.
type upgradeEngine interface {
	ContinueUpgrade(ctx context.Context) (bool, error)
}

// Reconciler owns the serve loop. It is the sole writer of HostCache
// daemon/device maps; every other component only reads.
type Reconciler struct {
	store     *kvstore.Store
	inventory *inventory.Inventory
	hostcache *hostcache.HostCache
	specs     *specstore.SpecStore
	executor  *executor.Executor
	drivers   *drivers.Registry
	removal   *osdremoval.Queue
	cluster   cluster.Client
	health    *health.Publisher
	events    *eventstore.EventStore
	upgrade   upgradeEngine
	logger    zerolog.Logger

	workerWidth int
	wakeTimeout time.Duration

	wake   chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}

	mu                  sync.Mutex
	started             bool
	paused              bool
	requiresPostActions map[types.ServiceType]bool

	registryLoginPayload func() ([]byte, bool)
}

// SetRegistryLoginPayload installs the callback the refresh stage uses
// to build the stdin JSON for "cephadm registry-login" (url/username/
// password). A nil or absent callback runs registry-login with no
// stdin, which is enough for an agent already logged in out of band.
func (r *Reconciler) SetRegistryLoginPayload(fn func() ([]byte, bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registryLoginPayload = fn
}

// New builds a Reconciler over the orchestrator's shared components.
// The upgrade engine is attached later via AttachUpgradeEngine, since
// the upgrade engine in turn needs a Deployer this Reconciler provides
// (see Redeploy) -- attaching after construction breaks that cycle.
func New(
	store *kvstore.Store,
	inv *inventory.Inventory,
	hc *hostcache.HostCache,
	specs *specstore.SpecStore,
	exec *executor.Executor,
	dr *drivers.Registry,
	removal *osdremoval.Queue,
	cl cluster.Client,
	hp *health.Publisher,
	events *eventstore.EventStore,
) (*Reconciler, error) {
	r := &Reconciler{
		store:               store,
		inventory:           inv,
		hostcache:           hc,
		specs:               specs,
		executor:            exec,
		drivers:             dr,
		removal:             removal,
		cluster:             cl,
		health:              hp,
		events:              events,
		logger:              log.WithComponent("reconciler"),
		workerWidth:         DefaultWorkerWidth,
		wakeTimeout:         DefaultWakeTimeout,
		wake:                make(chan struct{}, 1),
		stopCh:              make(chan struct{}),
		doneCh:              make(chan struct{}),
		requiresPostActions: make(map[types.ServiceType]bool),
	}

	data, err := store.Get(kvstore.BucketConfig, []byte(pauseKey))
	if err != nil {
		return nil, err
	}
	r.paused = len(data) == 1 && data[0] == '1'
	return r, nil
}

// AttachUpgradeEngine wires the upgrade engine into stage 8 and gives
// it this Reconciler as its Deployer, completing the two-way
// construction dependency without either package importing the other's
// concrete type.
func (r *Reconciler) AttachUpgradeEngine(e *upgrade.Engine) {
	e.SetDeployer(r)
	r.upgrade = e
}

// Start runs the serve loop in a new goroutine until Stop or ctx is
// cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	go r.run(ctx)
}

// Stop signals the loop to exit after finishing its current pass and
// blocks until it has. Safe to call on a Reconciler that was never
// started (one-shot admin commands construct but don't run the loop).
func (r *Reconciler) Stop() {
	close(r.stopCh)
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if started {
		<-r.doneCh
	}
}

// Wake sets the wake event, causing a blocked loop to run another pass
// immediately. Called by command handlers after mutating Inventory,
// SpecStore, or the removal queue.
func (r *Reconciler) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Paused reports the current pause flag.
func (r *Reconciler) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

// Pause sets the pause flag, persisting it so it survives a restart.
func (r *Reconciler) Pause() error {
	r.mu.Lock()
	r.paused = true
	r.mu.Unlock()
	return r.persistPause(true)
}

// Resume clears the pause flag.
func (r *Reconciler) Resume() error {
	r.mu.Lock()
	r.paused = false
	r.mu.Unlock()
	if err := r.persistPause(false); err != nil {
		return err
	}
	r.Wake()
	return nil
}

func (r *Reconciler) persistPause(paused bool) error {
	b := byte('0')
	if paused {
		b = '1'
	}
	return r.store.Put(kvstore.BucketConfig, []byte(pauseKey), []byte{b})
}

// run is the serve loop proper: repeat stages in order; any
// stage reporting "did work" restarts the loop immediately instead of
// waiting on the wake event or the 600s timer.
func (r *Reconciler) run(ctx context.Context) {
	defer close(r.doneCh)
	r.logger.Info().Msg("reconciler serve loop started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		default:
		}

		timer := metrics.NewTimer()
		didWork, err := r.iterate(ctx)
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
		if err != nil {
			r.logger.Error().Err(err).Msg("reconciliation cycle failed")
		}
		if didWork {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-r.wake:
		case <-time.After(r.wakeTimeout):
		}
	}
}

// iterate runs the 8 ordered stages of one pass, returning
// whether any stage performed work.
func (r *Reconciler) iterate(ctx context.Context) (bool, error) {
	var didWork bool

	work, err := r.refreshHostsAndDaemons(ctx)
	didWork = didWork || work
	if err != nil {
		return didWork, err
	}

	r.checkForStrays()
	r.updatePausedHealth()

	if r.Paused() {
		return didWork, nil
	}

	work, err = r.processRemovalQueue(ctx)
	didWork = didWork || work
	if err != nil {
		r.logger.Error().Err(err).Msg("removal queue processing failed")
	}

	work, err = r.applyAllServices(ctx)
	didWork = didWork || work
	if err != nil {
		r.logger.Error().Err(err).Msg("apply-all-services failed")
	}

	work, err = r.checkDaemons(ctx)
	didWork = didWork || work
	if err != nil {
		r.logger.Error().Err(err).Msg("daemon check failed")
	}

	if r.upgrade != nil {
		work, err = r.upgrade.ContinueUpgrade(ctx)
		didWork = didWork || work
		if err != nil {
			r.logger.Error().Err(err).Msg("upgrade step failed")
		}
	}

	return didWork, nil
}

// refreshHostsAndDaemons is stage 1: a bounded worker pool refreshes
// each host's check/daemon-list/device-inventory/registry-login state
// in parallel. Each host's cache entry is updated in place so the
// per-host refresh-then-apply ordering holds.
func (r *Reconciler) refreshHostsAndDaemons(ctx context.Context) (bool, error) {
	hostnames := r.hostcache.Hostnames()
	sort.Strings(hostnames)

	var (
		wg             sync.WaitGroup
		sem            = make(chan struct{}, r.workerWidth)
		mu             sync.Mutex
		didWork        bool
		firstErr       error
		checkFailures  []string
		refreshDetails []string
		refreshFailed  int
	)

	for _, hostname := range hostnames {
		host, err := r.inventory.Get(hostname)
		if err != nil {
			continue // removed between Hostnames() and here; next pass catches it
		}

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			work, fails, err := r.refreshOneHost(ctx, host)
			mu.Lock()
			didWork = didWork || work
			if fails.hostCheck != "" {
				checkFailures = append(checkFailures, fails.hostCheck)
			}
			if len(fails.refresh) > 0 {
				refreshFailed++
				refreshDetails = append(refreshDetails, fails.refresh...)
			}
			if err != nil && firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Strings(checkFailures)
	sort.Strings(refreshDetails)
	r.health.PublishOrClear(health.CheckHostCheckFailed, types.SeverityWarning,
		fmt.Sprintf("check-host failed on %d host(s)", len(checkFailures)), len(checkFailures), checkFailures)
	r.health.PublishOrClear(health.CheckRefreshFailed, types.SeverityWarning,
		fmt.Sprintf("failed to refresh state on %d host(s)", refreshFailed), refreshFailed, refreshDetails)

	return didWork, firstErr
}

// refreshFailures carries the per-host failure detail stage 1 folds
// into the HOST_CHECK_FAILED and REFRESH_FAILED health checks. A
// refresh failure does not mark the host offline: a host can answer
// check-host yet still fail a daemon list or device inventory.
type refreshFailures struct {
	hostCheck string
	refresh   []string
}

func (r *Reconciler) refreshOneHost(ctx context.Context, host *types.Host) (bool, refreshFailures, error) {
	var (
		didWork bool
		fails   refreshFailures
	)
	now := time.Now()

	if r.hostcache.NeedsHostCheck(host.Hostname) {
		_, err := r.executor.Run(ctx, host, "cephadm", "check-host", nil, executor.RunOptions{})
		if err != nil {
			fails.hostCheck = fmt.Sprintf("%s: %v", host.Hostname, err)
			return true, fails, nil // marking the failure itself counts as progress
		}
		if err := r.hostcache.MarkHostChecked(host.Hostname, now); err != nil {
			return didWork, fails, err
		}
		didWork = true
	}

	if r.hostcache.NeedsRegistryLogin(host.Hostname) {
		var opts executor.RunOptions
		r.mu.Lock()
		payloadFn := r.registryLoginPayload
		r.mu.Unlock()
		if payloadFn != nil {
			if payload, ok := payloadFn(); ok {
				opts.Stdin = payload
			}
		}
		if _, err := r.executor.Run(ctx, host, "cephadm", "registry-login", nil, opts); err == nil {
			if err := r.hostcache.SetRegistryLoginNeeded(host.Hostname, false); err != nil {
				return didWork, fails, err
			}
			didWork = true
		}
	}

	if r.hostcache.NeedsDaemonRefresh(host.Hostname) {
		res, err := r.executor.Run(ctx, host, "cephadm", "ls", nil, executor.RunOptions{AllowError: true})
		if err != nil {
			fails.refresh = append(fails.refresh, fmt.Sprintf("%s: daemon refresh: %v", host.Hostname, err))
		} else if res.Code != 0 {
			fails.refresh = append(fails.refresh, fmt.Sprintf("%s: daemon refresh: agent exited %d: %s", host.Hostname, res.Code, res.Stderr))
		} else {
			var observed []*types.DaemonDescription
			if jsonErr := json.Unmarshal([]byte(res.Stdout), &observed); jsonErr != nil {
				fails.refresh = append(fails.refresh, fmt.Sprintf("%s: daemon refresh: %v", host.Hostname, jsonErr))
			} else {
				byName := make(map[string]*types.DaemonDescription, len(observed))
				for _, d := range observed {
					d.Hostname = host.Hostname
					byName[d.Name()] = d
				}
				if err := r.hostcache.UpdateHostDaemons(host.Hostname, byName, now); err != nil {
					return didWork, fails, err
				}
				didWork = true
			}
		}
	}

	if r.hostcache.NeedsDeviceRefresh(host.Hostname) {
		res, err := r.executor.Run(ctx, host, "cephadm", "ceph-volume", []string{"inventory", "--format=json"}, executor.RunOptions{AllowError: true})
		if err != nil {
			fails.refresh = append(fails.refresh, fmt.Sprintf("%s: device refresh: %v", host.Hostname, err))
		} else if res.Code != 0 {
			fails.refresh = append(fails.refresh, fmt.Sprintf("%s: device refresh: agent exited %d: %s", host.Hostname, res.Code, res.Stderr))
		} else {
			var devices []types.Device
			if jsonErr := json.Unmarshal([]byte(res.Stdout), &devices); jsonErr != nil {
				fails.refresh = append(fails.refresh, fmt.Sprintf("%s: device refresh: %v", host.Hostname, jsonErr))
			} else {
				if err := r.hostcache.UpdateDevices(host.Hostname, devices, now); err != nil {
					return didWork, fails, err
				}
				didWork = true
			}
		}
	}

	if r.cluster != nil {
		epoch, err := r.cluster.Get("monmap_epoch")
		if err == nil && epoch != "" && r.hostcache.NeedsEtcConfWrite(host.Hostname, epoch) {
			conf := fmt.Sprintf("# generated by cephadmd, monmap epoch %s\n", epoch)
			if _, err := r.executor.Run(ctx, host, "cephadm", "ls", []string{"--write-conf"}, executor.RunOptions{
				Stdin: []byte(conf), AllowError: true,
			}); err == nil {
				_ = r.hostcache.MarkEtcConfWritten(host.Hostname, epoch, now)
				didWork = true
			}
		}
	}

	return didWork, fails, nil
}

// checkForStrays is stage 2: classify observed daemons on unmanaged
// hosts as STRAY_HOST and unexpected names on managed hosts (that this
// orchestrator has never itself configured, per ConfigDepsFor) as
// STRAY_DAEMON.
func (r *Reconciler) checkForStrays() {
	managed := make(map[string]bool)
	for _, h := range r.inventory.All() {
		managed[h.Hostname] = true
	}

	var strayHosts, strayDaemons []string
	for _, hostname := range r.hostcache.Hostnames() {
		for _, d := range r.hostcache.GetDaemonsOnHost(hostname) {
			if !managed[hostname] {
				strayHosts = append(strayHosts, fmt.Sprintf("%s on %s", d.Name(), hostname))
				continue
			}
			if types.ImplicitSpecTypes[d.DaemonType] {
				continue
			}
			if r.specs.Find(d.ServiceName()) != nil {
				continue
			}
			if _, hasDeps := r.hostcache.ConfigDepsFor(hostname, d.Name()); !hasDeps {
				strayDaemons = append(strayDaemons, fmt.Sprintf("%s on %s", d.Name(), hostname))
			}
		}
	}

	sort.Strings(strayHosts)
	sort.Strings(strayDaemons)
	r.health.PublishOrClear(health.CheckStrayHost, types.SeverityWarning,
		fmt.Sprintf("%d stray daemon(s) on unmanaged hosts", len(strayHosts)), len(strayHosts), strayHosts)
	r.health.PublishOrClear(health.CheckStrayDaemon, types.SeverityWarning,
		fmt.Sprintf("%d stray daemon(s) on managed hosts", len(strayDaemons)), len(strayDaemons), strayDaemons)
}

// updatePausedHealth is stage 3.
func (r *Reconciler) updatePausedHealth() {
	if r.Paused() {
		r.health.Publish(types.HealthCheck{
			Name:     health.CheckPaused,
			Severity: types.SeverityWarning,
			Summary:  "reconciliation is paused",
			Count:    1,
		})
		return
	}
	r.health.Clear(health.CheckPaused)
}

// processRemovalQueue is stage 4.
func (r *Reconciler) processRemovalQueue(ctx context.Context) (bool, error) {
	return r.removal.Process(ctx)
}

// applyAllServices is stage 6: invoke the Scheduler for every
// spec and reconcile its daemons.
func (r *Reconciler) applyAllServices(ctx context.Context) (bool, error) {
	var didWork bool
	for _, spec := range r.specs.Specs() {
		work, err := r.applyOneService(ctx, spec)
		didWork = didWork || work
		if err != nil {
			r.events.Error(spec.ServiceName(), fmt.Sprintf("apply failed: %v", err))
			r.logger.Error().Err(err).Str("service", spec.ServiceName()).Msg("apply-one-service failed")
		}
	}
	return didWork, nil
}

func (r *Reconciler) applyOneService(ctx context.Context, spec *types.Spec) (bool, error) {
	if spec.Unmanaged || spec.PreviewOnly {
		return false, nil
	}
	if spec.ServiceType == types.ServiceOSD {
		return r.applyOSDSpec(ctx, spec)
	}

	timer := metrics.NewTimer()
	hosts := r.inventory.All()
	existing := r.hostcache.GetDaemonsByService(spec.ServiceName())
	toAdd, toRemove, err := scheduler.Assign(spec, hosts, existing, r.placementFilter(spec))
	timer.ObserveDuration(metrics.SchedulerDecisionDuration)
	if err != nil {
		return false, err
	}
	if len(toAdd) == 0 && len(toRemove) == 0 {
		return false, nil
	}

	driver, err := r.drivers.For(spec.ServiceType)
	if err != nil {
		return false, err
	}
	if err := driver.Config(spec); err != nil {
		return false, err
	}

	toRemove = r.gateRemoval(driver, toRemove)

	var didWork bool
	for _, hps := range toAdd {
		name, err := r.allocateDaemonID(spec.ServiceType, spec.ServiceID, hps)
		if err != nil {
			return didWork, err
		}
		id := strings.TrimPrefix(name, string(spec.ServiceType)+".")
		daemon := &types.DaemonDescription{
			DaemonType: spec.ServiceType,
			DaemonID:   id,
			Hostname:   hps.Hostname,
			ServiceID:  spec.ServiceID,
		}
		if err := r.deploy(ctx, driver, spec, hps.Hostname, daemon); err != nil {
			return didWork, err
		}
		didWork = true
	}

	for _, d := range toRemove {
		if err := r.removeDaemon(ctx, driver, d); err != nil {
			dlog := log.Daemon(r.logger, d.Hostname, d.Name())
			dlog.Error().Err(err).Msg("remove failed")
			continue
		}
		metrics.DaemonsRemovedTotal.WithLabelValues(string(d.DaemonType)).Inc()
		didWork = true
	}

	return didWork, nil
}

// gateRemoval is the safety gate before remove: if ok_to_stop vetoes
// the full removal set, first try excluding each entry in turn — when a
// single daemon is the blocker (an active mgr, say) that keeps every
// other removal in the plan instead of starving them. Only when no
// single exclusion satisfies the driver does it fall back to dropping
// one entry at random and retrying until the remainder is ok or empty.
func (r *Reconciler) gateRemoval(driver drivers.Driver, toRemove []*types.DaemonDescription) []*types.DaemonDescription {
	for len(toRemove) > 0 {
		if ok, _ := driver.OkToStop(toRemove); ok {
			return toRemove
		}
		if len(toRemove) > 1 {
			for i := range toRemove {
				subset := make([]*types.DaemonDescription, 0, len(toRemove)-1)
				subset = append(subset, toRemove[:i]...)
				subset = append(subset, toRemove[i+1:]...)
				if ok, _ := driver.OkToStop(subset); ok {
					return subset
				}
			}
		}
		victim := rand.Intn(len(toRemove))
		toRemove = append(toRemove[:victim], toRemove[victim+1:]...)
	}
	return toRemove
}

// placementFilter returns a scheduler.HostFilter narrowing candidates
// to online hosts; per-driver network constraints (e.g. mon's
// public_network) are left for a future driver-supplied predicate.
func (r *Reconciler) placementFilter(_ *types.Spec) scheduler.HostFilter {
	return func(h *types.Host) bool { return h.Status == types.HostOnline }
}

// applyOSDSpec handles the OSD driver's spec-based creation path
//: rather than the generic count/placement scheduler, it walks
// each candidate host's available devices and deploys one OSD per
// device matching the drive-group filter that isn't already claimed.
func (r *Reconciler) applyOSDSpec(ctx context.Context, spec *types.Spec) (bool, error) {
	driver, err := r.drivers.For(types.ServiceOSD)
	if err != nil {
		return false, err
	}
	if err := driver.Config(spec); err != nil {
		return false, err
	}

	var didWork bool
	for _, host := range r.inventory.All() {
		if host.Status != types.HostOnline {
			continue
		}
		claimed := make(map[string]bool)
		for _, d := range r.hostcache.GetDaemonsOnHost(host.Hostname) {
			if d.DaemonType == types.ServiceOSD {
				claimed[d.OSDSpecAffinity] = true
			}
		}
		for _, dev := range r.hostcache.DevicesOnHost(host.Hostname) {
			if !dev.Available || claimed[dev.Path] {
				continue
			}
			if !matchesDataDevices(spec.OSD, dev.Path) {
				continue
			}
			id, err := r.allocateOSDID(ctx)
			if err != nil {
				return didWork, err
			}
			daemon := &types.DaemonDescription{
				DaemonType:      types.ServiceOSD,
				DaemonID:        id,
				Hostname:        host.Hostname,
				OSDSpecAffinity: dev.Path,
			}
			if err := r.deploy(ctx, driver, spec, host.Hostname, daemon); err != nil {
				return didWork, err
			}
			didWork = true
		}
	}
	return didWork, nil
}

func matchesDataDevices(spec *types.OSDSpec, path string) bool {
	if spec == nil || spec.DataDevices == "" || spec.DataDevices == "all-available-devices" {
		return true
	}
	for _, want := range strings.Split(spec.DataDevices, ",") {
		if strings.TrimSpace(want) == path {
			return true
		}
	}
	return false
}

func (r *Reconciler) allocateOSDID(ctx context.Context) (string, error) {
	reply, _, err := r.cluster.MonCommand(ctx, "osd create", nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(reply)), nil
}

// allocateDaemonID picks a unique daemon name: suffixed types get
// [serviceID.]shortHost.6randomletters, non-suffixed types get a bare
// [serviceID.]shortHost. hps.Name, when set, is a forced name that must
// be unique.
func (r *Reconciler) allocateDaemonID(serviceType types.ServiceType, serviceID string, hps types.HostPlacementSpec) (string, error) {
	existing := make(map[string]bool)
	for _, d := range r.hostcache.AllDaemons() {
		existing[d.Name()] = true
	}

	if hps.Name != "" {
		name := fmt.Sprintf("%s.%s", serviceType, hps.Name)
		if existing[name] {
			return "", errs.Newf(errs.InvalidArg, "forced daemon name %q already in use", name)
		}
		return name, nil
	}

	base := shortHostname(hps.Hostname)
	if serviceID != "" {
		base = serviceID + "." + base
	}
	if types.NonSuffixedTypes[serviceType] {
		name := fmt.Sprintf("%s.%s", serviceType, base)
		if existing[name] {
			return "", errs.Newf(errs.InvalidArg, "daemon id collision for non-suffixed type %q on %q", serviceType, base)
		}
		return name, nil
	}

	for attempt := 0; attempt < 100; attempt++ {
		name := fmt.Sprintf("%s.%s.%s", serviceType, base, randomSuffix(6))
		if !existing[name] {
			return name, nil
		}
	}
	return "", errs.Newf(errs.Internal, "could not allocate a unique daemon id for %q on %q", serviceType, base)
}

func shortHostname(hostname string) string {
	if idx := strings.Index(hostname, "."); idx >= 0 {
		return hostname[:idx]
	}
	return hostname
}

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz"

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return string(b)
}

// deploy is the deploy path.
func (r *Reconciler) deploy(ctx context.Context, driver drivers.Driver, spec *types.Spec, hostname string, daemon *types.DaemonDescription) error {
	config, deps, err := driver.GenerateConfig(spec, daemon.Name())
	if err != nil {
		return err
	}

	host, err := r.inventory.Get(hostname)
	if err != nil {
		return err
	}

	args := []string{"--name", daemon.Name(), "--config-json", "-"}
	_, err = r.executor.Run(ctx, host, "cephadm", "deploy", args, executor.RunOptions{Stdin: config})
	if err != nil {
		r.events.Error(daemon.Name(), fmt.Sprintf("deploy failed: %v", err))
		return err
	}

	now := time.Now()
	daemon.Status = types.StatusRunning
	daemon.StatusDesc = "starting"
	daemon.Created = now
	daemon.LastDeployed = now
	daemon.LastConfigured = now
	if err := r.hostcache.AddDaemon(hostname, daemon); err != nil {
		return err
	}
	if err := r.hostcache.InvalidateHostDaemons(hostname); err != nil {
		return err
	}
	if err := r.hostcache.SetConfigDeps(hostname, daemon.Name(), deps, now); err != nil {
		return err
	}
	r.events.Info(daemon.Name(), "deployed")
	metrics.DaemonsDeployedTotal.WithLabelValues(string(daemon.DaemonType)).Inc()

	if driver.NeedsPostCheck() {
		r.mu.Lock()
		r.requiresPostActions[daemon.DaemonType] = true
		r.mu.Unlock()
	}
	return nil
}

// removeDaemon is the remove path: errors are reported but not
// retried here, matching "next reconciliation will notice".
func (r *Reconciler) removeDaemon(ctx context.Context, driver drivers.Driver, daemon *types.DaemonDescription) error {
	if err := driver.PreRemove(daemon); err != nil {
		return err
	}
	host, err := r.inventory.Get(daemon.Hostname)
	if err != nil {
		return err
	}
	_, err = r.executor.Run(ctx, host, "cephadm", "rm-daemon", []string{"--name", daemon.Name(), "--force"}, executor.RunOptions{})
	if err != nil {
		r.events.Error(daemon.Name(), fmt.Sprintf("remove failed: %v", err))
		return err
	}
	if err := r.hostcache.RmDaemon(daemon.Hostname, daemon.Name()); err != nil {
		return err
	}
	r.events.Info(daemon.Name(), "removed")
	r.events.Clear(daemon.Name())
	return nil
}

// checkDaemons is stage 7: orphans (no spec, not an implicit type) are
// removed; daemons whose dependency set has advanced past their last
// configure time are reconfigured; queued post-checks run once per
// daemon type.
func (r *Reconciler) checkDaemons(ctx context.Context) (bool, error) {
	var didWork bool
	for _, d := range r.hostcache.AllDaemons() {
		driver, err := r.drivers.For(d.DaemonType)
		if err != nil {
			continue
		}

		if r.specs.Find(d.ServiceName()) == nil && !types.ImplicitSpecTypes[d.DaemonType] {
			if _, hasDeps := r.hostcache.ConfigDepsFor(d.Hostname, d.Name()); hasDeps {
				if err := r.removeDaemon(ctx, driver, d); err != nil {
					dlog := log.Daemon(r.logger, d.Hostname, d.Name())
					dlog.Error().Err(err).Msg("orphan removal failed")
					continue
				}
				didWork = true
			}
			continue
		}

		spec := r.specs.Find(d.ServiceName())
		if spec == nil {
			continue
		}
		_, currentDeps, err := driver.GenerateConfig(spec, d.Name())
		if err != nil {
			continue
		}
		deps, hasDeps := r.hostcache.ConfigDepsFor(d.Hostname, d.Name())
		if !hasDeps || !sameDeps(deps.Deps, currentDeps) {
			if err := r.deploy(ctx, driver, spec, d.Hostname, d); err == nil {
				didWork = true
			}
		}
	}

	// Recompute is_active per service from the drivers' tie-break so
	// mgr-style stop gates see which instance currently holds the role.
	seenServices := make(map[string]bool)
	for _, d := range r.hostcache.AllDaemons() {
		svc := d.ServiceName()
		if seenServices[svc] {
			continue
		}
		seenServices[svc] = true
		driver, err := r.drivers.For(d.DaemonType)
		if err != nil {
			continue
		}
		if active := driver.GetActiveDaemon(r.hostcache.GetDaemonsByService(svc)); active != nil {
			r.hostcache.SetActiveDaemon(svc, active.Name())
		}
	}

	r.mu.Lock()
	pending := make([]types.ServiceType, 0, len(r.requiresPostActions))
	for t := range r.requiresPostActions {
		pending = append(pending, t)
	}
	r.requiresPostActions = make(map[types.ServiceType]bool)
	r.mu.Unlock()

	for _, t := range pending {
		driver, err := r.drivers.For(t)
		if err != nil {
			continue
		}
		daemons := r.hostcache.GetDaemonsByService(string(t))
		if err := driver.PostCheck(daemons); err != nil {
			r.logger.Error().Err(err).Str("service_type", string(t)).Msg("post-check failed")
			continue
		}
		didWork = true
	}

	return didWork, nil
}

func sameDeps(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// Redeploy implements upgrade.Deployer: it is the same deploy path
// stage 6 uses, called once per daemon by the upgrade engine with a
// pinned target image instead of the driver's current config.
func (r *Reconciler) Redeploy(ctx context.Context, host *types.Host, daemon *types.DaemonDescription, targetImage string) error {
	timer := metrics.NewTimer()
	_, err := r.executor.Run(ctx, host, "cephadm", "deploy", []string{
		"--name", daemon.Name(), "--config-json", "-", "--reconfig", "--image", targetImage,
	}, executor.RunOptions{})
	timer.ObserveDurationVec(metrics.UpgradeStepDuration, string(daemon.DaemonType))
	if err != nil {
		return err
	}

	daemon.ContainerImageID = targetImage
	daemon.LastDeployed = time.Now()
	return r.hostcache.AddDaemon(host.Hostname, daemon)
}
