package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/cephadmd/pkg/cluster"
	"github.com/cuemby/cephadmd/pkg/config"
	"github.com/cuemby/cephadmd/pkg/types"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	o, err := New(cfg, cluster.NewInMemoryClient())
	require.NoError(t, err)
	t.Cleanup(o.Stop)
	return o
}

func TestHostAddLsRm(t *testing.T) {
	o := newTestOrchestrator(t)

	h, err := o.HostAdd("node1", "")
	require.NoError(t, err)
	require.Equal(t, "node1", h.Hostname)
	require.Equal(t, "node1", h.Address, "address defaults to hostname")

	hosts := o.HostLs()
	require.Len(t, hosts, 1)

	require.NoError(t, o.HostRm("node1"))
	require.Empty(t, o.HostLs())
}

func TestHostAddRejectsInvalidName(t *testing.T) {
	o := newTestOrchestrator(t)
	_, err := o.HostAdd("not a hostname!", "")
	require.Error(t, err)
}

func TestApplyRequiresServiceIDForOSD(t *testing.T) {
	o := newTestOrchestrator(t)

	_, err := o.Apply([]byte("service_type: osd\n"))
	require.Error(t, err, "osd specs require service_id")

	spec, err := o.Apply([]byte("service_type: osd\nservice_id: default\n"))
	require.NoError(t, err)
	require.Equal(t, types.ServiceOSD, spec.ServiceType)

	specs := o.Ls(ListFilter{})
	require.Len(t, specs, 1)

	existed, err := o.SpecRm(spec.ServiceName())
	require.NoError(t, err)
	require.True(t, existed)
}

func TestApplyPreviewOnlyGoesToPreviewStore(t *testing.T) {
	o := newTestOrchestrator(t)

	_, err := o.Apply([]byte("service_type: mgr\npreview_only: true\n"))
	require.NoError(t, err)
	require.Empty(t, o.Ls(ListFilter{}), "preview specs are not applied")
	require.Len(t, o.Ls(ListFilter{Preview: true}), 1)

	_, err = o.Apply([]byte("service_type: mgr\n"))
	require.NoError(t, err)
	require.Len(t, o.Ls(ListFilter{}), 1)
	require.Empty(t, o.Ls(ListFilter{Preview: true}), "committing a spec supersedes its preview")
}

func TestApplyRejectsUnknownServiceType(t *testing.T) {
	o := newTestOrchestrator(t)
	_, err := o.Apply([]byte("service_type: bogus\n"))
	require.Error(t, err)
}

func TestGenerateKeyPersistsAcrossRestart(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	o1, err := New(cfg, cluster.NewInMemoryClient())
	require.NoError(t, err)
	pub1, err := o1.GenerateKey()
	require.NoError(t, err)
	require.NotEmpty(t, pub1)
	o1.Stop()

	o2, err := New(cfg, cluster.NewInMemoryClient())
	require.NoError(t, err)
	defer o2.Stop()

	pub2, err := o2.GetPublicKey()
	require.NoError(t, err)
	require.Equal(t, pub1, pub2, "restart must not regenerate an existing keypair")
}

func TestBootstrapGeneratesKeyWhenNoneExists(t *testing.T) {
	o := newTestOrchestrator(t)
	pub, err := o.GetPublicKey()
	require.NoError(t, err)
	require.NotEmpty(t, pub, "a fresh orchestrator generates its own keypair at startup")
}

func TestClearKeyRemovesKeypair(t *testing.T) {
	o := newTestOrchestrator(t)
	require.NoError(t, o.ClearKey())
	_, err := o.GetPublicKey()
	require.Error(t, err)
}

func TestRegistryLoginPersistsAndDecryptsPayload(t *testing.T) {
	o := newTestOrchestrator(t)

	_, err := o.HostAdd("node1", "")
	require.NoError(t, err)

	require.NoError(t, o.RegistryLogin("registry.example.com", "svc", "s3cret"))

	payload, ok := o.registryLoginPayload()
	require.True(t, ok)
	require.Contains(t, string(payload), "registry.example.com")
	require.Contains(t, string(payload), "s3cret")
}

func TestRegistryLoginRejectsMissingFields(t *testing.T) {
	o := newTestOrchestrator(t)
	require.Error(t, o.RegistryLogin("", "svc", "pw"))
}

func TestSetUserGetUser(t *testing.T) {
	o := newTestOrchestrator(t)

	user, err := o.GetUser()
	require.NoError(t, err)
	require.Equal(t, "root", user, "falls back to the configured default")

	require.NoError(t, o.SetUser("cephadm"))
	user, err = o.GetUser()
	require.NoError(t, err)
	require.Equal(t, "cephadm", user)
}

func TestOSDRmEnqueuesAndReportsStatus(t *testing.T) {
	o := newTestOrchestrator(t)

	_, err := o.HostAdd("node1", "")
	require.NoError(t, err)
	require.NoError(t, o.hostcache.AddDaemon("node1", &types.DaemonDescription{
		DaemonType: types.ServiceOSD,
		DaemonID:   "3",
		Hostname:   "node1",
	}))

	require.NoError(t, o.OSDRm([]int{3}, false, false))
	status := o.OSDRmStatus()
	require.Len(t, status, 1)
	require.Equal(t, 3, status[0].OSDID)
}

func TestOSDRmUnknownOSDReturnsError(t *testing.T) {
	o := newTestOrchestrator(t)
	err := o.OSDRm([]int{99}, false, false)
	require.Error(t, err)
}

func TestPauseResume(t *testing.T) {
	o := newTestOrchestrator(t)
	require.False(t, o.Paused())
	require.NoError(t, o.Pause())
	require.True(t, o.Paused())
	require.NoError(t, o.Resume())
	require.False(t, o.Paused())
}
