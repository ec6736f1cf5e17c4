package drivers

import "github.com/cuemby/cephadmd/pkg/types"

// Deps implement the alert/graph stack's fixed dependency graph:
// a change in any of these daemon sets forces a reconfig of the
// dependent service.
var (
	prometheusDeps   = []string{"mgr", "alertmanager", "node-exporter"}
	grafanaDeps      = []string{"prometheus"}
	alertmanagerDeps = []string{"mgr", "alertmanager"}
)

// prometheusDriver manages the metrics scraper.
type prometheusDriver struct{ base }

func (prometheusDriver) GenerateConfig(spec *types.Spec, daemonName string) ([]byte, []string, error) {
	return configBlob(daemonName, nil), prometheusDeps, nil
}
func (prometheusDriver) Config(*types.Spec) error { return nil }
func (prometheusDriver) NeedsPostCheck() bool     { return true }

// PostCheck is where the scrape-target list would be rewired after a
// deploy; that wiring lives in the dashboard module, an external
// collaborator, so registering the hook is all that happens here.
func (prometheusDriver) PostCheck([]*types.DaemonDescription) error {
	return nil
}

// grafanaDriver manages the dashboard frontend.
type grafanaDriver struct{ base }

func (grafanaDriver) GenerateConfig(spec *types.Spec, daemonName string) ([]byte, []string, error) {
	return configBlob(daemonName, nil), grafanaDeps, nil
}
func (grafanaDriver) Config(*types.Spec) error { return nil }
func (grafanaDriver) NeedsPostCheck() bool     { return true }

// PostCheck would register the prometheus datasource with the deployed
// dashboard; the dashboard module owns that, so this is a no-op hook.
func (grafanaDriver) PostCheck([]*types.DaemonDescription) error {
	return nil
}

// alertmanagerDriver manages the alert router; its own peer set is
// part of its dependency graph for HA clustering.
type alertmanagerDriver struct{ base }

func (alertmanagerDriver) GenerateConfig(spec *types.Spec, daemonName string) ([]byte, []string, error) {
	return configBlob(daemonName, nil), alertmanagerDeps, nil
}
func (alertmanagerDriver) Config(*types.Spec) error { return nil }
func (alertmanagerDriver) NeedsPostCheck() bool     { return true }

// PostCheck would push the peer list to every alertmanager so they
// cluster; the dashboard module drives that config, so no-op here.
func (alertmanagerDriver) PostCheck([]*types.DaemonDescription) error {
	return nil
}

// nodeExporterDriver manages the per-host metrics exporter.
type nodeExporterDriver struct{ base }

func (nodeExporterDriver) GenerateConfig(spec *types.Spec, daemonName string) ([]byte, []string, error) {
	return configBlob(daemonName, nil), nil, nil
}
func (nodeExporterDriver) Config(*types.Spec) error { return nil }
