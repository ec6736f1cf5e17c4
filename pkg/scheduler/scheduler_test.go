package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/cephadmd/pkg/types"
)

func onlineHosts(names ...string) []*types.Host {
	out := make([]*types.Host, len(names))
	for i, n := range names {
		out[i] = &types.Host{Hostname: n, Status: types.HostOnline}
	}
	return out
}

func TestAssignAddsToFillEmptyCount(t *testing.T) {
	spec := &types.Spec{ServiceType: types.ServiceMgr, Placement: types.PlacementSpec{Count: types.CountPtr(2)}}
	hosts := onlineHosts("h1", "h2", "h3")

	toAdd, toRemove, err := Assign(spec, hosts, nil, nil)
	require.NoError(t, err)
	require.Empty(t, toRemove)
	require.Len(t, toAdd, 2)
	require.Equal(t, "h1", toAdd[0].Hostname)
	require.Equal(t, "h2", toAdd[1].Hostname)
}

func TestAssignIsIdempotentOnFixedPoint(t *testing.T) {
	spec := &types.Spec{ServiceType: types.ServiceMgr, Placement: types.PlacementSpec{Count: types.CountPtr(2)}}
	hosts := onlineHosts("h1", "h2", "h3")
	existing := []*types.DaemonDescription{
		{DaemonType: types.ServiceMgr, DaemonID: "h1", Hostname: "h1"},
		{DaemonType: types.ServiceMgr, DaemonID: "h2", Hostname: "h2"},
	}

	toAdd, toRemove, err := Assign(spec, hosts, existing, nil)
	require.NoError(t, err)
	require.Empty(t, toAdd)
	require.Empty(t, toRemove)
}

func TestAssignRemovesDownsizedCountNewestFirst(t *testing.T) {
	spec := &types.Spec{ServiceType: types.ServiceMDS, ServiceID: "fs1", Placement: types.PlacementSpec{Count: types.CountPtr(1)}}
	hosts := onlineHosts("h1", "h2")
	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	existing := []*types.DaemonDescription{
		{DaemonType: types.ServiceMDS, DaemonID: "fs1.h1.aaa", Hostname: "h1", Created: older},
		{DaemonType: types.ServiceMDS, DaemonID: "fs1.h2.bbb", Hostname: "h2", Created: newer},
	}

	toAdd, toRemove, err := Assign(spec, hosts, existing, nil)
	require.NoError(t, err)
	require.Empty(t, toAdd)
	require.Len(t, toRemove, 1)
	require.Equal(t, "h2", toRemove[0].Hostname)
}

func TestAssignRemovesDaemonsOnDeletedHosts(t *testing.T) {
	spec := &types.Spec{ServiceType: types.ServiceRGW, Placement: types.PlacementSpec{Count: types.CountPtr(1)}}
	hosts := onlineHosts("h1")
	existing := []*types.DaemonDescription{
		{DaemonType: types.ServiceRGW, DaemonID: "gone", Hostname: "h-removed"},
	}

	toAdd, toRemove, err := Assign(spec, hosts, existing, nil)
	require.NoError(t, err)
	require.Len(t, toAdd, 1)
	require.Len(t, toRemove, 1)
	require.Equal(t, "h-removed", toRemove[0].Hostname)
}

func TestAssignOfflineHostsExcluded(t *testing.T) {
	spec := &types.Spec{ServiceType: types.ServiceMgr, Placement: types.PlacementSpec{Count: types.CountPtr(2)}}
	hosts := []*types.Host{
		{Hostname: "h1", Status: types.HostOnline},
		{Hostname: "h2", Status: types.HostOffline},
		{Hostname: "h3", Status: types.HostOnline},
	}

	toAdd, _, err := Assign(spec, hosts, nil, nil)
	require.NoError(t, err)
	require.Len(t, toAdd, 2)
	require.Equal(t, "h1", toAdd[0].Hostname)
	require.Equal(t, "h3", toAdd[1].Hostname)
}

func TestAssignMonRejectsZeroCount(t *testing.T) {
	// A bare explicit zero must reach the count guard, not fall back to
	// the default placement the way an omitted count does.
	spec := &types.Spec{ServiceType: types.ServiceMon, Placement: types.PlacementSpec{Count: types.CountPtr(0)}}
	hosts := onlineHosts("h1")

	_, _, err := Assign(spec, hosts, nil, nil)
	require.Error(t, err)
}

func TestAssignMgrRejectsZeroCount(t *testing.T) {
	spec := &types.Spec{ServiceType: types.ServiceMgr, Placement: types.PlacementSpec{Count: types.CountPtr(0)}}
	hosts := onlineHosts("h1")

	_, _, err := Assign(spec, hosts, nil, nil)
	require.Error(t, err)
}

func TestAssignNegativeCountRejectedForAnyType(t *testing.T) {
	spec := &types.Spec{ServiceType: types.ServiceRGW, ServiceID: "east", Placement: types.PlacementSpec{Count: types.CountPtr(-1)}}
	hosts := onlineHosts("h1")

	_, _, err := Assign(spec, hosts, nil, nil)
	require.Error(t, err)
}

func TestAssignLabelPlacement(t *testing.T) {
	spec := &types.Spec{ServiceType: types.ServiceNFS, ServiceID: "cephfs", Placement: types.PlacementSpec{Label: "nfs", Count: types.CountPtr(1)}}
	hosts := []*types.Host{
		{Hostname: "h1", Status: types.HostOnline, Labels: map[string]bool{"nfs": true}},
		{Hostname: "h2", Status: types.HostOnline},
	}

	toAdd, _, err := Assign(spec, hosts, nil, nil)
	require.NoError(t, err)
	require.Len(t, toAdd, 1)
	require.Equal(t, "h1", toAdd[0].Hostname)
}

func TestAssignHostPatternPlacement(t *testing.T) {
	spec := &types.Spec{ServiceType: types.ServiceCrash, Placement: types.PlacementSpec{HostPattern: "osd*"}}
	hosts := onlineHosts("osd1", "osd2", "mon1")

	toAdd, _, err := Assign(spec, hosts, nil, nil)
	require.NoError(t, err)
	require.Len(t, toAdd, 2)
}

func TestAssignMonRejectedWhenFilterLeavesNoCandidates(t *testing.T) {
	spec := &types.Spec{ServiceType: types.ServiceMon, Placement: types.PlacementSpec{Count: types.CountPtr(2)}}
	hosts := onlineHosts("h1", "h2")
	filter := func(h *types.Host) bool { return false }

	_, _, err := Assign(spec, hosts, nil, filter)
	require.Error(t, err)
}

func TestAssignHostFilterNarrowsCandidates(t *testing.T) {
	spec := &types.Spec{ServiceType: types.ServiceMgr, Placement: types.PlacementSpec{Count: types.CountPtr(2)}}
	hosts := onlineHosts("h1", "h2")
	filter := func(h *types.Host) bool { return h.Hostname != "h2" }

	toAdd, _, err := Assign(spec, hosts, nil, filter)
	require.NoError(t, err)
	require.Len(t, toAdd, 1)
	require.Equal(t, "h1", toAdd[0].Hostname)
}

func TestAssignCarriesNetworkAndForcedNameFromExplicitHosts(t *testing.T) {
	spec := &types.Spec{ServiceType: types.ServiceRGW, ServiceID: "east", Placement: types.PlacementSpec{
		Hosts: []string{"h1:10.0.0.0/24=alpha", "h2"},
	}}
	hosts := onlineHosts("h1", "h2")

	toAdd, toRemove, err := Assign(spec, hosts, nil, nil)
	require.NoError(t, err)
	require.Empty(t, toRemove)
	require.Equal(t, []types.HostPlacementSpec{
		{Hostname: "h1", Network: "10.0.0.0/24", Name: "alpha"},
		{Hostname: "h2"},
	}, toAdd)
}

func TestDefaultPlacementMatchesSpecTable(t *testing.T) {
	require.Equal(t, 5, *DefaultPlacement(types.ServiceMon).Count)
	require.Equal(t, 2, *DefaultPlacement(types.ServiceMDS).Count)
	require.Equal(t, 1, *DefaultPlacement(types.ServiceNFS).Count)
	require.Equal(t, "*", DefaultPlacement(types.ServiceCrash).HostPattern)
}
