package hostcache

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/cephadmd/pkg/errs"
	"github.com/cuemby/cephadmd/pkg/kvstore"
	"github.com/cuemby/cephadmd/pkg/types"
)

// Config holds the refresh-cadence tunables.
type Config struct {
	HostCheckInterval  time.Duration
	DaemonCacheTimeout time.Duration
	DeviceCacheTimeout time.Duration
}

// DefaultConfig returns the spec's default cadences.
func DefaultConfig() Config {
	return Config{
		HostCheckInterval:  600 * time.Second,
		DaemonCacheTimeout: 600 * time.Second,
		DeviceCacheTimeout: 1800 * time.Second,
	}
}

// HostCache is the persisted per-host observed state. The reconciler is
// the sole writer of daemon/device maps; every other caller only reads.
type HostCache struct {
	mu      sync.RWMutex
	store   *kvstore.Store
	cfg     Config
	entries map[string]*types.HostCacheEntry
}

// New loads the HostCache from store.
func New(store *kvstore.Store, cfg Config) (*HostCache, error) {
	hc := &HostCache{
		store:   store,
		cfg:     cfg,
		entries: make(map[string]*types.HostCacheEntry),
	}
	err := store.ForEach(kvstore.BucketHostCache, func(_, value []byte) error {
		var e types.HostCacheEntry
		if err := json.Unmarshal(value, &e); err != nil {
			return err
		}
		if e.Daemons == nil {
			e.Daemons = make(map[string]*types.DaemonDescription)
		}
		hc.entries[e.Hostname] = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hc, nil
}

func (hc *HostCache) persist(e *types.HostCacheEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return hc.store.Put(kvstore.BucketHostCache, []byte(e.Hostname), data)
}

// Prime creates an empty cache entry for a newly added host. Calling it
// for an already-primed host is a no-op, matching add_host's
// idempotence expectations.
func (hc *HostCache) Prime(hostname string) error {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	if _, ok := hc.entries[hostname]; ok {
		return nil
	}
	e := types.NewHostCacheEntry(hostname)
	if err := hc.persist(e); err != nil {
		return errs.Wrap(errs.Internal, "persist host cache entry", err)
	}
	hc.entries[hostname] = e
	return nil
}

// Discard removes a host's cache entry (called on remove_host).
func (hc *HostCache) Discard(hostname string) error {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	delete(hc.entries, hostname)
	return hc.store.Delete(kvstore.BucketHostCache, []byte(hostname))
}

// Hostnames returns every cached hostname.
func (hc *HostCache) Hostnames() []string {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	out := make([]string, 0, len(hc.entries))
	for h := range hc.entries {
		out = append(out, h)
	}
	return out
}

// entry returns the live entry for hostname, or nil. Callers hold no
// lock on the returned pointer's fields beyond what HostCache itself
// guarantees (writer = reconciler only).
func (hc *HostCache) entry(hostname string) *types.HostCacheEntry {
	return hc.entries[hostname]
}

// UpdateHostDaemons atomically replaces a host's observed daemon map.
func (hc *HostCache) UpdateHostDaemons(hostname string, daemons map[string]*types.DaemonDescription, now time.Time) error {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	e := hc.entry(hostname)
	if e == nil {
		return errs.Newf(errs.NotFound, "host %q not in cache", hostname)
	}
	e.Daemons = daemons
	e.MarkDaemonsRefreshed(now)
	return hc.persist(e)
}

// AddDaemon inserts or overwrites a single daemon entry (used by the
// deploy path to place a "starting" placeholder immediately).
func (hc *HostCache) AddDaemon(hostname string, d *types.DaemonDescription) error {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	e := hc.entry(hostname)
	if e == nil {
		return errs.Newf(errs.NotFound, "host %q not in cache", hostname)
	}
	e.Daemons[d.Name()] = d
	return hc.persist(e)
}

// RmDaemon evicts a daemon from a host's cache.
func (hc *HostCache) RmDaemon(hostname, daemonName string) error {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	e := hc.entry(hostname)
	if e == nil {
		return errs.Newf(errs.NotFound, "host %q not in cache", hostname)
	}
	delete(e.Daemons, daemonName)
	return hc.persist(e)
}

// SetConfigDeps records the dependency set a daemon was configured with.
func (hc *HostCache) SetConfigDeps(hostname, daemonName string, deps []string, now time.Time) error {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	e := hc.entry(hostname)
	if e == nil {
		return errs.Newf(errs.NotFound, "host %q not in cache", hostname)
	}
	e.DaemonConfigDeps[daemonName] = types.ConfigDeps{Deps: deps, LastConfigTime: now}
	return hc.persist(e)
}

// ConfigDepsFor returns the dependency set and last-config time recorded
// for a daemon, and whether any record exists at all. An absent record
// means this orchestrator has never configured the daemon itself,
// which the reconciler's stray/orphan classification (stray check vs
// orphan removal) depends on.
func (hc *HostCache) ConfigDepsFor(hostname, daemonName string) (types.ConfigDeps, bool) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	e := hc.entry(hostname)
	if e == nil {
		return types.ConfigDeps{}, false
	}
	deps, ok := e.DaemonConfigDeps[daemonName]
	return deps, ok
}

// InvalidateHostDaemons forces the next daemon-refresh predicate due.
func (hc *HostCache) InvalidateHostDaemons(hostname string) error {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	e := hc.entry(hostname)
	if e == nil {
		return errs.Newf(errs.NotFound, "host %q not in cache", hostname)
	}
	e.InvalidateDaemons()
	return hc.persist(e)
}

// InvalidateHostDevices forces the next device-refresh predicate due.
func (hc *HostCache) InvalidateHostDevices(hostname string) error {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	e := hc.entry(hostname)
	if e == nil {
		return errs.Newf(errs.NotFound, "host %q not in cache", hostname)
	}
	e.InvalidateDevices()
	return hc.persist(e)
}

// SetRegistryLoginNeeded marks/clears the host's needs_registry_login
// flag.
func (hc *HostCache) SetRegistryLoginNeeded(hostname string, needed bool) error {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	e := hc.entry(hostname)
	if e == nil {
		return errs.Newf(errs.NotFound, "host %q not in cache", hostname)
	}
	e.NeedsRegistryLogin = needed
	return hc.persist(e)
}

// MarkHostChecked records a completed host-check.
func (hc *HostCache) MarkHostChecked(hostname string, now time.Time) error {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	e := hc.entry(hostname)
	if e == nil {
		return errs.Newf(errs.NotFound, "host %q not in cache", hostname)
	}
	e.LastHostCheck = now
	return hc.persist(e)
}

// UpdateDevices atomically replaces a host's observed device inventory.
func (hc *HostCache) UpdateDevices(hostname string, devices []types.Device, now time.Time) error {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	e := hc.entry(hostname)
	if e == nil {
		return errs.Newf(errs.NotFound, "host %q not in cache", hostname)
	}
	e.Devices = devices
	e.MarkDevicesRefreshed(now)
	return hc.persist(e)
}

// NeedsEtcConfWrite reports whether hostname has not yet received the
// config file for the current monmap epoch.
func (hc *HostCache) NeedsEtcConfWrite(hostname, monmapEpoch string) bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	e := hc.entry(hostname)
	return e == nil || e.LastEtcConfEpoch != monmapEpoch
}

// MarkEtcConfWritten records that hostname received the config file for
// monmapEpoch.
func (hc *HostCache) MarkEtcConfWritten(hostname, monmapEpoch string, now time.Time) error {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	e := hc.entry(hostname)
	if e == nil {
		return errs.Newf(errs.NotFound, "host %q not in cache", hostname)
	}
	e.LastEtcConfEpoch = monmapEpoch
	e.LastEtcConfWrite = now
	return hc.persist(e)
}

// NeedsHostCheck reports whether hostname's host-check is due.
func (hc *HostCache) NeedsHostCheck(hostname string) bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	e := hc.entry(hostname)
	return e == nil || e.NeedsHostCheck(hc.cfg.HostCheckInterval)
}

// NeedsDaemonRefresh reports whether hostname's daemon list is stale.
func (hc *HostCache) NeedsDaemonRefresh(hostname string) bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	e := hc.entry(hostname)
	return e == nil || e.NeedsDaemonRefresh(hc.cfg.DaemonCacheTimeout)
}

// NeedsDeviceRefresh reports whether hostname's device inventory is
// stale.
func (hc *HostCache) NeedsDeviceRefresh(hostname string) bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	e := hc.entry(hostname)
	return e == nil || e.NeedsDeviceRefresh(hc.cfg.DeviceCacheTimeout)
}

// NeedsRegistryLogin reports the host's needs_registry_login flag.
func (hc *HostCache) NeedsRegistryLogin(hostname string) bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	e := hc.entry(hostname)
	return e != nil && e.NeedsRegistryLogin
}

// AllDaemons returns every observed daemon across every host, sorted
// by hostname then daemon name. Callers that feed the scheduler or the
// upgrade engine rely on this order being stable between passes.
func (hc *HostCache) AllDaemons() []*types.DaemonDescription {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	var out []*types.DaemonDescription
	for _, e := range hc.entries {
		for _, d := range e.Daemons {
			out = append(out, d)
		}
	}
	sortDaemons(out)
	return out
}

// GetDaemonsByService returns every daemon belonging to serviceName,
// sorted by hostname then daemon name.
func (hc *HostCache) GetDaemonsByService(serviceName string) []*types.DaemonDescription {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	var out []*types.DaemonDescription
	for _, e := range hc.entries {
		for _, d := range e.Daemons {
			if d.ServiceName() == serviceName {
				out = append(out, d)
			}
		}
	}
	sortDaemons(out)
	return out
}

// SetActiveDaemon marks daemonName as the active instance among
// serviceName's daemons, clearing the flag on its peers. The flag is
// recomputed every reconciliation pass rather than persisted.
func (hc *HostCache) SetActiveDaemon(serviceName, daemonName string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	for _, e := range hc.entries {
		for _, d := range e.Daemons {
			if d.ServiceName() == serviceName {
				d.IsActive = d.Name() == daemonName
			}
		}
	}
}

func sortDaemons(ds []*types.DaemonDescription) {
	sort.Slice(ds, func(i, j int) bool {
		if ds[i].Hostname != ds[j].Hostname {
			return ds[i].Hostname < ds[j].Hostname
		}
		return ds[i].Name() < ds[j].Name()
	})
}

// DevicesOnHost returns a host's observed block-device inventory.
func (hc *HostCache) DevicesOnHost(hostname string) []types.Device {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	e := hc.entry(hostname)
	if e == nil {
		return nil
	}
	out := make([]types.Device, len(e.Devices))
	copy(out, e.Devices)
	return out
}

// GetDaemonsOnHost returns a host's observed daemons.
func (hc *HostCache) GetDaemonsOnHost(hostname string) []*types.DaemonDescription {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	e := hc.entry(hostname)
	if e == nil {
		return nil
	}
	out := make([]*types.DaemonDescription, 0, len(e.Daemons))
	for _, d := range e.Daemons {
		out = append(out, d)
	}
	sortDaemons(out)
	return out
}

// GetDaemonsWithVolatileStatus is a pure, uncached transform:
// it composes a read-only view over the cache, overlaying "unknown"
// status onto daemons whose host is in offlineHosts, without mutating
// any stored DaemonDescription.
func (hc *HostCache) GetDaemonsWithVolatileStatus(offlineHosts map[string]bool) []*types.DaemonDescription {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	var out []*types.DaemonDescription
	for hostname, e := range hc.entries {
		for _, d := range e.Daemons {
			cp := *d
			if offlineHosts[hostname] {
				cp.Status = types.StatusError
				cp.StatusDesc = "unknown (host offline)"
			}
			out = append(out, &cp)
		}
	}
	return out
}
