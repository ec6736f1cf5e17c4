package upgrade

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/cephadmd/pkg/cluster"
	"github.com/cuemby/cephadmd/pkg/drivers"
	"github.com/cuemby/cephadmd/pkg/eventstore"
	"github.com/cuemby/cephadmd/pkg/health"
	"github.com/cuemby/cephadmd/pkg/hostcache"
	"github.com/cuemby/cephadmd/pkg/inventory"
	"github.com/cuemby/cephadmd/pkg/kvstore"
	"github.com/cuemby/cephadmd/pkg/types"
)

// fakeDeployer simulates a successful redeploy by stamping the target
// image onto the daemon's cache entry directly, standing in for the
// executor round-trip the real deploy path performs.
type fakeDeployer struct {
	hc   *hostcache.HostCache
	fail map[string]bool
}

func (f *fakeDeployer) Redeploy(_ context.Context, host *types.Host, daemon *types.DaemonDescription, targetImage string) error {
	if f.fail[daemon.Name()] {
		return errTestDeployFailed
	}
	cp := *daemon
	cp.ContainerImageID = targetImage
	return f.hc.AddDaemon(host.Hostname, &cp)
}

var errTestDeployFailed = &deployError{"simulated deploy failure"}

type deployError struct{ msg string }

func (e *deployError) Error() string { return e.msg }

func newTestEngine(t *testing.T) (*Engine, *fakeDeployer, *hostcache.HostCache, *inventory.Inventory) {
	t.Helper()
	store, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hc, err := hostcache.New(store, hostcache.DefaultConfig())
	require.NoError(t, err)
	inv, err := inventory.New(store)
	require.NoError(t, err)

	eng, err := New(store, hc, inv, drivers.NewRegistry(cluster.NewInMemoryClient()), health.New(), eventstore.New(0))
	require.NoError(t, err)
	fd := &fakeDeployer{hc: hc}
	eng.SetDeployer(fd)
	return eng, fd, hc, inv
}

func placeDaemon(t *testing.T, hc *hostcache.HostCache, inv *inventory.Inventory, host, svcType, id, imageID string) {
	t.Helper()
	if !inv.Exists(host) {
		_, err := inv.Add(host, host)
		require.NoError(t, err)
	}
	require.NoError(t, hc.Prime(host))
	require.NoError(t, hc.AddDaemon(host, &types.DaemonDescription{
		DaemonType:       types.ServiceType(svcType),
		DaemonID:         id,
		Hostname:         host,
		ContainerImageID: imageID,
	}))
}

func TestUpgradeFollowsFixedTypeOrder(t *testing.T) {
	eng, _, hc, inv := newTestEngine(t)
	placeDaemon(t, hc, inv, "h1", "mgr", "a", "old")
	placeDaemon(t, hc, inv, "h1", "mon", "a", "old")

	require.NoError(t, eng.Start("new-image", "", "18.0.0"))
	require.Equal(t, "mgr", eng.Status().CurrentType)

	progressed, err := eng.ContinueUpgrade(context.Background())
	require.NoError(t, err)
	require.True(t, progressed)
	require.Equal(t, "new-image", hc.GetDaemonsOnHost("h1")[0].ContainerImageID)

	// mgr has no more pending daemons now; next call advances the type.
	progressed, err = eng.ContinueUpgrade(context.Background())
	require.NoError(t, err)
	require.True(t, progressed)
	require.Equal(t, "mon", eng.Status().CurrentType)
}

func TestUpgradeCompletesAfterLastType(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	require.NoError(t, eng.Start("img", "id", "v1"))
	eng.state.CurrentType = string(UpgradeOrder[len(UpgradeOrder)-1])

	progressed, err := eng.ContinueUpgrade(context.Background())
	require.NoError(t, err)
	require.True(t, progressed)
	require.False(t, eng.Status().InProgress)
}

func TestPauseSuppressesProgress(t *testing.T) {
	eng, _, hc, inv := newTestEngine(t)
	placeDaemon(t, hc, inv, "h1", "mgr", "a", "old")
	require.NoError(t, eng.Start("new", "new", "v"))
	require.NoError(t, eng.Pause())

	progressed, err := eng.ContinueUpgrade(context.Background())
	require.NoError(t, err)
	require.False(t, progressed)

	require.NoError(t, eng.Resume())
	progressed, err = eng.ContinueUpgrade(context.Background())
	require.NoError(t, err)
	require.True(t, progressed)
}

func TestMonOkToStopVetoesMultipleAtOnce(t *testing.T) {
	eng, _, hc, inv := newTestEngine(t)
	placeDaemon(t, hc, inv, "h1", "mon", "a", "old")
	placeDaemon(t, hc, inv, "h2", "mon", "b", "old")
	require.NoError(t, eng.Start("new", "new", "v"))
	eng.state.CurrentType = string(types.ServiceMon)

	progressed, err := eng.ContinueUpgrade(context.Background())
	require.NoError(t, err)
	require.False(t, progressed, "mon driver vetoes stopping more than one at a time")
}

func TestStopClearsState(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	require.NoError(t, eng.Start("new", "new", "v"))
	require.NoError(t, eng.Stop())
	require.False(t, eng.Status().InProgress)
}
