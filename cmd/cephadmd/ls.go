package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/cephadmd/pkg/orchestrator"
	"github.com/cuemby/cephadmd/pkg/types"

	"github.com/spf13/cobra"
)

// placementSummary renders a PlacementSpec the way "ceph orch ls" shows
// it: count, an explicit host list, a label, or a host_pattern glob,
// whichever one is set, falling back to "*" when none is.
func placementSummary(p types.PlacementSpec) string {
	switch {
	case len(p.Hosts) > 0:
		return strings.Join(p.Hosts, ",")
	case p.Label != "":
		return "label:" + p.Label
	case p.HostPattern != "":
		return p.HostPattern
	case p.Count != nil:
		return "count:" + strconv.Itoa(*p.Count)
	default:
		return "*"
	}
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List service specs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		serviceType, _ := cmd.Flags().GetString("service-type")
		serviceName, _ := cmd.Flags().GetString("service-name")
		preview, _ := cmd.Flags().GetBool("preview")

		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()

		for _, s := range o.Ls(orchestrator.ListFilter{ServiceType: serviceType, ServiceName: serviceName, Preview: preview}) {
			fmt.Printf("%s\t%s\n", s.ServiceName(), placementSummary(s.Placement))
		}
		return nil
	},
}

func init() {
	lsCmd.Flags().String("service-type", "", "Filter by service type")
	lsCmd.Flags().String("service-name", "", "Filter by service name")
	lsCmd.Flags().Bool("refresh", false, "Accepted for CLI symmetry with ps; specs have no remote state")
	lsCmd.Flags().Bool("preview", false, "List preview (dry-run) specs instead of applied ones")
}

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List observed daemons",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hostname, _ := cmd.Flags().GetString("hostname")
		daemonType, _ := cmd.Flags().GetString("daemon-type")
		daemonID, _ := cmd.Flags().GetString("daemon-id")
		refresh, _ := cmd.Flags().GetBool("refresh")

		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()

		for _, d := range o.Ps(orchestrator.ListFilter{
			Hostname: hostname, DaemonType: daemonType, DaemonID: daemonID, Refresh: refresh,
		}) {
			fmt.Printf("%s\t%s\t%s\n", d.Name(), d.Hostname, d.StatusDesc)
		}
		return nil
	},
}

func init() {
	psCmd.Flags().String("hostname", "", "Filter by hostname")
	psCmd.Flags().String("daemon-type", "", "Filter by daemon type")
	psCmd.Flags().String("daemon-id", "", "Filter by daemon id")
	psCmd.Flags().Bool("refresh", false, "Invalidate the daemon cache and wake the serve loop (lists cached state)")
}
