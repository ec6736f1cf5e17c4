package drivers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/cephadmd/pkg/cluster"
	"github.com/cuemby/cephadmd/pkg/types"
)

func TestRegistryCoversEveryServiceType(t *testing.T) {
	r := NewRegistry(cluster.NewInMemoryClient())
	for st := range types.ValidServiceTypes {
		d, err := r.For(st)
		require.NoError(t, err, "missing driver for %s", st)
		require.NotNil(t, d)
	}
}

func TestMonRejectsRemovingMoreThanOne(t *testing.T) {
	r := NewRegistry(cluster.NewInMemoryClient())
	d, err := r.For(types.ServiceMon)
	require.NoError(t, err)

	ok, _ := d.OkToStop([]*types.DaemonDescription{{}, {}})
	require.False(t, ok)

	ok, _ = d.OkToStop([]*types.DaemonDescription{{}})
	require.True(t, ok)
}

func TestMgrRejectsStoppingActive(t *testing.T) {
	r := NewRegistry(cluster.NewInMemoryClient())
	d, err := r.For(types.ServiceMgr)
	require.NoError(t, err)

	ok, reason := d.OkToStop([]*types.DaemonDescription{{DaemonType: types.ServiceMgr, DaemonID: "a", IsActive: true}})
	require.False(t, ok)
	require.Contains(t, reason, "active")
}

func TestOSDConfigRequiresDataDevices(t *testing.T) {
	r := NewRegistry(cluster.NewInMemoryClient())
	d, err := r.For(types.ServiceOSD)
	require.NoError(t, err)

	require.Error(t, d.Config(&types.Spec{ServiceType: types.ServiceOSD}))
	require.NoError(t, d.Config(&types.Spec{ServiceType: types.ServiceOSD, OSD: &types.OSDSpec{DataDevices: "/dev/sdb"}}))
}

func TestNFSConfigRequiresPool(t *testing.T) {
	r := NewRegistry(cluster.NewInMemoryClient())
	d, err := r.For(types.ServiceNFS)
	require.NoError(t, err)

	require.Error(t, d.Config(&types.Spec{ServiceType: types.ServiceNFS}))
	require.Error(t, d.Config(&types.Spec{ServiceType: types.ServiceNFS, NFS: &types.NFSSpec{Pool: "nfs-ganesha"}}))
	require.NoError(t, d.Config(&types.Spec{ServiceType: types.ServiceNFS, NFS: &types.NFSSpec{Pool: "nfs-ganesha", Namespace: "ns"}}))
	require.True(t, d.NeedsPostCheck())
}

func TestPrometheusDepsIncludeAlertStack(t *testing.T) {
	r := NewRegistry(cluster.NewInMemoryClient())
	d, err := r.For(types.ServicePrometheus)
	require.NoError(t, err)

	_, deps, err := d.GenerateConfig(&types.Spec{ServiceType: types.ServicePrometheus}, "prometheus.h1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"mgr", "alertmanager", "node-exporter"}, deps)
}

func TestGetActiveDaemonPicksMostRecentlyStarted(t *testing.T) {
	r := NewRegistry(cluster.NewInMemoryClient())
	d, err := r.For(types.ServiceMgr)
	require.NoError(t, err)

	older := types.DaemonDescription{DaemonID: "a"}
	newer := types.DaemonDescription{DaemonID: "b"}
	newer.Started = older.Started.Add(1)

	active := d.GetActiveDaemon([]*types.DaemonDescription{&older, &newer})
	require.Equal(t, "b", active.DaemonID)
}
