package reconciler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/cephadmd/pkg/cluster"
	"github.com/cuemby/cephadmd/pkg/drivers"
	"github.com/cuemby/cephadmd/pkg/eventstore"
	"github.com/cuemby/cephadmd/pkg/executor"
	"github.com/cuemby/cephadmd/pkg/health"
	"github.com/cuemby/cephadmd/pkg/hostcache"
	"github.com/cuemby/cephadmd/pkg/inventory"
	"github.com/cuemby/cephadmd/pkg/kvstore"
	"github.com/cuemby/cephadmd/pkg/osdremoval"
	"github.com/cuemby/cephadmd/pkg/specstore"
	"github.com/cuemby/cephadmd/pkg/types"
)

// fakeTransport scripts ls/ceph-volume output without touching a
// network, standing in for the SSH round-trip the real Executor makes.
// Every agent command is recorded so tests can assert on what was (or
// was not) issued against a host.
type fakeTransport struct {
	lsOutput         string
	cephVolumeResult *executor.Result

	mu    sync.Mutex
	calls []string
}

func (f *fakeTransport) Run(_ context.Context, _ *types.Host, _, command string, _ []string, _ executor.RunOptions) (executor.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, command)
	f.mu.Unlock()
	switch command {
	case "ls":
		return executor.Result{Stdout: f.lsOutput}, nil
	case "ceph-volume":
		if f.cephVolumeResult != nil {
			return *f.cephVolumeResult, nil
		}
		return executor.Result{Stdout: "[]"}, nil
	default:
		return executor.Result{}, nil
	}
}

func (f *fakeTransport) Close(string) {}

func (f *fakeTransport) count(command string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == command {
			n++
		}
	}
	return n
}

func newTestReconciler(t *testing.T) (*Reconciler, *hostcache.HostCache, *inventory.Inventory, *specstore.SpecStore, *fakeTransport) {
	t.Helper()
	store, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	inv, err := inventory.New(store)
	require.NoError(t, err)
	hc, err := hostcache.New(store, hostcache.DefaultConfig())
	require.NoError(t, err)
	specs, err := specstore.New(store)
	require.NoError(t, err)
	cl := cluster.NewInMemoryClient()
	hp := health.New()
	events := eventstore.New(0)
	dr := drivers.NewRegistry(cl)

	removal, err := osdremoval.New(store, cl, dr, hc, events)
	require.NoError(t, err)

	ft := &fakeTransport{lsOutput: "[]"}
	exec := executor.New(ft, inv, 5*time.Second)

	r, err := New(store, inv, hc, specs, exec, dr, removal, cl, hp, events)
	require.NoError(t, err)
	return r, hc, inv, specs, ft
}

func addHost(t *testing.T, inv *inventory.Inventory, hc *hostcache.HostCache, hostname string) {
	t.Helper()
	_, err := inv.Add(hostname, hostname+".example.com")
	require.NoError(t, err)
	require.NoError(t, hc.Prime(hostname))
}

func TestApplyOneServiceDeploysToMeetPlacementCount(t *testing.T) {
	r, hc, inv, specs, _ := newTestReconciler(t)
	addHost(t, inv, hc, "h1")

	spec := &types.Spec{ServiceType: types.ServiceMgr, Placement: types.PlacementSpec{Count: types.CountPtr(1)}}
	require.NoError(t, specs.Save(spec))

	didWork, err := r.applyOneService(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, didWork)

	daemons := hc.GetDaemonsByService(spec.ServiceName())
	require.Len(t, daemons, 1)
	require.Equal(t, "h1", daemons[0].Hostname)
}

func TestApplyOneServiceIsIdempotentOnceSatisfied(t *testing.T) {
	r, hc, inv, specs, _ := newTestReconciler(t)
	addHost(t, inv, hc, "h1")

	spec := &types.Spec{ServiceType: types.ServiceMgr, Placement: types.PlacementSpec{Count: types.CountPtr(1)}}
	require.NoError(t, specs.Save(spec))

	_, err := r.applyOneService(context.Background(), spec)
	require.NoError(t, err)

	didWork, err := r.applyOneService(context.Background(), spec)
	require.NoError(t, err)
	require.False(t, didWork, "second pass has nothing left to do")
}

func TestApplyOneServiceRemovesWhenPlacementShrinks(t *testing.T) {
	r, hc, inv, specs, _ := newTestReconciler(t)
	addHost(t, inv, hc, "h1")
	addHost(t, inv, hc, "h2")

	spec := &types.Spec{ServiceType: types.ServiceMDS, ServiceID: "fs1", Placement: types.PlacementSpec{Count: types.CountPtr(2)}}
	require.NoError(t, specs.Save(spec))
	_, err := r.applyOneService(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, hc.GetDaemonsByService(spec.ServiceName()), 2)

	spec.Placement.Count = types.CountPtr(1)
	require.NoError(t, specs.Save(spec))
	didWork, err := r.applyOneService(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, didWork)
	require.Len(t, hc.GetDaemonsByService(spec.ServiceName()), 1)
}

func TestApplyOSDSpecCreatesOneOSDPerMatchingDevice(t *testing.T) {
	r, hc, inv, specs, _ := newTestReconciler(t)
	addHost(t, inv, hc, "h1")
	require.NoError(t, hc.UpdateDevices("h1", []types.Device{
		{Path: "/dev/sdb", Available: true},
		{Path: "/dev/sdc", Available: true},
		{Path: "/dev/sda", Available: false},
	}, time.Now()))

	spec := &types.Spec{ServiceType: types.ServiceOSD, OSD: &types.OSDSpec{DataDevices: "all-available-devices"}}
	require.NoError(t, specs.Save(spec))

	didWork, err := r.applyOSDSpec(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, didWork)

	daemons := hc.GetDaemonsOnHost("h1")
	require.Len(t, daemons, 2)
	for _, d := range daemons {
		require.Equal(t, types.ServiceOSD, d.DaemonType)
	}
}

func TestGateRemovalDropsVetoingEntriesUntilOK(t *testing.T) {
	r, hc, inv, _, _ := newTestReconciler(t)
	addHost(t, inv, hc, "h1")
	addHost(t, inv, hc, "h2")

	driver, err := r.drivers.For(types.ServiceMon)
	require.NoError(t, err)

	toRemove := []*types.DaemonDescription{
		{DaemonType: types.ServiceMon, DaemonID: "a", Hostname: "h1"},
		{DaemonType: types.ServiceMon, DaemonID: "b", Hostname: "h2"},
	}
	gated := r.gateRemoval(driver, toRemove)
	require.Len(t, gated, 1, "mon driver vetoes stopping more than one at a time")
}

func TestGateRemovalExcludesBlockingDaemonNotItsNeighbors(t *testing.T) {
	r, hc, inv, _, _ := newTestReconciler(t)
	addHost(t, inv, hc, "h1")

	driver, err := r.drivers.For(types.ServiceMgr)
	require.NoError(t, err)

	// The active mgr is first, so a tail-trimming gate would discard the
	// two perfectly stoppable standbys before ever reaching it.
	toRemove := []*types.DaemonDescription{
		{DaemonType: types.ServiceMgr, DaemonID: "a", Hostname: "h1", IsActive: true},
		{DaemonType: types.ServiceMgr, DaemonID: "b", Hostname: "h2"},
		{DaemonType: types.ServiceMgr, DaemonID: "c", Hostname: "h3"},
	}
	gated := r.gateRemoval(driver, toRemove)
	require.Len(t, gated, 2, "only the active mgr is excluded")
	for _, d := range gated {
		require.False(t, d.IsActive)
	}
}

func TestAllocateDaemonIDHonorsForcedName(t *testing.T) {
	r, hc, inv, _, _ := newTestReconciler(t)
	addHost(t, inv, hc, "h1")

	name, err := r.allocateDaemonID(types.ServiceRGW, "east", types.HostPlacementSpec{Hostname: "h1", Name: "custom"})
	require.NoError(t, err)
	require.Equal(t, "rgw.custom", name)
}

func TestAllocateDaemonIDIsBareForNonSuffixedType(t *testing.T) {
	r, hc, inv, _, _ := newTestReconciler(t)
	addHost(t, inv, hc, "h1")

	name, err := r.allocateDaemonID(types.ServiceCrash, "", types.HostPlacementSpec{Hostname: "h1.example.com"})
	require.NoError(t, err)
	require.Equal(t, "crash.h1", name)
}

func TestAllocateDaemonIDCarriesServiceIDPrefix(t *testing.T) {
	r, hc, inv, _, _ := newTestReconciler(t)
	addHost(t, inv, hc, "h1")

	name, err := r.allocateDaemonID(types.ServiceMDS, "fs1", types.HostPlacementSpec{Hostname: "h1"})
	require.NoError(t, err)
	require.Regexp(t, `^mds\.fs1\.h1\.[a-z]{6}$`, name)
}

func TestRedeployUpdatesImageAndHostCache(t *testing.T) {
	r, hc, inv, _, _ := newTestReconciler(t)
	addHost(t, inv, hc, "h1")
	require.NoError(t, hc.AddDaemon("h1", &types.DaemonDescription{DaemonType: types.ServiceMgr, DaemonID: "a", Hostname: "h1", ContainerImageID: "old"}))

	host, err := inv.Get("h1")
	require.NoError(t, err)
	daemon := hc.GetDaemonsOnHost("h1")[0]

	require.NoError(t, r.Redeploy(context.Background(), host, daemon, "new-image"))
	require.Equal(t, "new-image", hc.GetDaemonsOnHost("h1")[0].ContainerImageID)
}

func TestPauseSuppressesApplyUntilResume(t *testing.T) {
	r, hc, inv, specs, ft := newTestReconciler(t)
	addHost(t, inv, hc, "h1")

	spec := &types.Spec{ServiceType: types.ServiceMgr, Placement: types.PlacementSpec{Count: types.CountPtr(1)}}
	require.NoError(t, specs.Save(spec))
	require.NoError(t, r.Pause())

	_, err := r.iterate(context.Background())
	require.NoError(t, err)
	require.Zero(t, ft.count("deploy"), "paused loop must not deploy")
	require.Empty(t, hc.GetDaemonsByService(spec.ServiceName()))

	var paused bool
	for _, c := range r.health.All() {
		if c.Name == health.CheckPaused {
			paused = true
		}
	}
	require.True(t, paused, "PAUSED health check published while paused")

	require.NoError(t, r.Resume())
	_, err = r.iterate(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, ft.count("deploy"))
	require.Len(t, hc.GetDaemonsByService(spec.ServiceName()), 1)
	for _, c := range r.health.All() {
		require.NotEqual(t, health.CheckPaused, c.Name)
	}
}

func TestStrayDaemonReportedNotRemoved(t *testing.T) {
	r, hc, inv, _, ft := newTestReconciler(t)
	addHost(t, inv, hc, "h2")
	ft.lsOutput = `[{"daemon_type":"rgw","daemon_id":"foo","status":1}]`

	_, err := r.iterate(context.Background())
	require.NoError(t, err)

	var stray *types.HealthCheck
	for _, c := range r.health.All() {
		if c.Name == health.CheckStrayDaemon {
			stray = &c
			break
		}
	}
	require.NotNil(t, stray, "STRAY_DAEMON health check published")
	require.Equal(t, 1, stray.Count)
	require.Contains(t, stray.Detail[0], "rgw.foo")

	require.Zero(t, ft.count("rm-daemon"), "strays are reported, never removed")
	require.Len(t, hc.GetDaemonsOnHost("h2"), 1)
}

func TestOrphanDaemonRemovedAfterSpecDeleted(t *testing.T) {
	r, hc, inv, specs, ft := newTestReconciler(t)
	addHost(t, inv, hc, "h1")

	spec := &types.Spec{ServiceType: types.ServiceMDS, ServiceID: "fs1", Placement: types.PlacementSpec{Count: types.CountPtr(1)}}
	require.NoError(t, specs.Save(spec))
	_, err := r.applyOneService(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, hc.GetDaemonsByService(spec.ServiceName()), 1)

	existed, err := specs.Rm(spec.ServiceName())
	require.NoError(t, err)
	require.True(t, existed)

	didWork, err := r.checkDaemons(context.Background())
	require.NoError(t, err)
	require.True(t, didWork)
	require.Equal(t, 1, ft.count("rm-daemon"), "exactly one rm-daemon for the orphan")
	require.Empty(t, hc.GetDaemonsOnHost("h1"))
}

func TestRefreshFailurePublishedWithoutMarkingHostOffline(t *testing.T) {
	r, hc, inv, _, ft := newTestReconciler(t)
	addHost(t, inv, hc, "h1")
	ft.cephVolumeResult = &executor.Result{Code: 1, Stderr: "inventory failed"}

	_, err := r.iterate(context.Background())
	require.NoError(t, err)

	var refresh *types.HealthCheck
	for _, c := range r.health.All() {
		if c.Name == health.CheckRefreshFailed {
			refresh = &c
			break
		}
	}
	require.NotNil(t, refresh, "REFRESH_FAILED health check published")
	require.Contains(t, refresh.Detail[0], "device refresh")

	host, err := inv.Get("h1")
	require.NoError(t, err)
	require.Equal(t, types.HostOnline, host.Status, "a refresh failure is not a connectivity failure")
}

func TestRelabelMigratesDaemonOffHost(t *testing.T) {
	r, hc, inv, specs, _ := newTestReconciler(t)
	addHost(t, inv, hc, "h1")
	addHost(t, inv, hc, "h2")
	addHost(t, inv, hc, "h3")
	require.NoError(t, inv.AddLabel("h1", "mds"))
	require.NoError(t, inv.AddLabel("h2", "mds"))

	spec := &types.Spec{ServiceType: types.ServiceMDS, ServiceID: "fs1", Placement: types.PlacementSpec{Label: "mds", Count: types.CountPtr(2)}}
	require.NoError(t, specs.Save(spec))
	_, err := r.applyOneService(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, hc.GetDaemonsByService(spec.ServiceName()), 2)

	require.NoError(t, inv.RmLabel("h1", "mds"))
	didWork, err := r.applyOneService(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, didWork)

	daemons := hc.GetDaemonsByService(spec.ServiceName())
	require.Len(t, daemons, 1)
	require.Equal(t, "h2", daemons[0].Hostname)
}

func TestPauseAndResumePersistAcrossRestart(t *testing.T) {
	r, _, _, _, _ := newTestReconciler(t)
	require.False(t, r.Paused())
	require.NoError(t, r.Pause())
	require.True(t, r.Paused())
	require.NoError(t, r.Resume())
	require.False(t, r.Paused())
}
