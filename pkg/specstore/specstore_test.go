package specstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/cephadmd/pkg/kvstore"
	"github.com/cuemby/cephadmd/pkg/types"
)

func newTestStore(t *testing.T) *SpecStore {
	t.Helper()
	store, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ss, err := New(store)
	require.NoError(t, err)
	return ss
}

func TestSaveAndFind(t *testing.T) {
	ss := newTestStore(t)
	spec := &types.Spec{ServiceType: types.ServiceMDS, ServiceID: "fs1"}
	require.NoError(t, ss.Save(spec))

	found := ss.Find("mds.fs1")
	require.NotNil(t, found)
	require.False(t, found.CreatedAt.IsZero())
}

func TestSavePreservesCreatedAtOnResave(t *testing.T) {
	ss := newTestStore(t)
	spec := &types.Spec{ServiceType: types.ServiceMon}
	require.NoError(t, ss.Save(spec))
	first := ss.Find("mon").CreatedAt

	spec2 := &types.Spec{ServiceType: types.ServiceMon, Placement: types.PlacementSpec{Count: types.CountPtr(3)}}
	require.NoError(t, ss.Save(spec2))
	require.Equal(t, first, ss.Find("mon").CreatedAt)
}

func TestRmReportsExistence(t *testing.T) {
	ss := newTestStore(t)
	existed, err := ss.Rm("mon")
	require.NoError(t, err)
	require.False(t, existed)

	require.NoError(t, ss.Save(&types.Spec{ServiceType: types.ServiceMon}))
	existed, err = ss.Rm("mon")
	require.NoError(t, err)
	require.True(t, existed)
	require.Nil(t, ss.Find("mon"))
}

func TestSpecsSortedByServiceName(t *testing.T) {
	ss := newTestStore(t)
	require.NoError(t, ss.Save(&types.Spec{ServiceType: types.ServiceRGW}))
	require.NoError(t, ss.Save(&types.Spec{ServiceType: types.ServiceMon}))
	require.NoError(t, ss.Save(&types.Spec{ServiceType: types.ServiceMDS, ServiceID: "fs1"}))

	specs := ss.Specs()
	require.Len(t, specs, 3)
	require.Equal(t, "mds.fs1", specs[0].ServiceName())
	require.Equal(t, "mon", specs[1].ServiceName())
	require.Equal(t, "rgw", specs[2].ServiceName())
}

func TestPreviewLifecycle(t *testing.T) {
	ss := newTestStore(t)
	spec := &types.Spec{ServiceType: types.ServiceNFS, ServiceID: "cephfs", PreviewOnly: true}
	require.NoError(t, ss.SavePreview(spec))
	require.Len(t, ss.SpecPreview(), 1)

	require.NoError(t, ss.ClearPreview("nfs.cephfs"))
	require.Empty(t, ss.SpecPreview())
}

func TestInvalidServiceNameRejected(t *testing.T) {
	ss := newTestStore(t)
	err := ss.Save(&types.Spec{ServiceType: ""})
	require.Error(t, err)
}

func TestPersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	store, err := kvstore.Open(dir)
	require.NoError(t, err)
	ss, err := New(store)
	require.NoError(t, err)
	require.NoError(t, ss.Save(&types.Spec{ServiceType: types.ServiceMgr}))
	require.NoError(t, store.Close())

	store2, err := kvstore.Open(dir)
	require.NoError(t, err)
	defer store2.Close()
	ss2, err := New(store2)
	require.NoError(t, err)
	require.NotNil(t, ss2.Find("mgr"))
}
