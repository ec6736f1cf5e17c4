package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var osdCmd = &cobra.Command{
	Use:   "osd",
	Short: "Manage OSD removal",
}

func parseOSDIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid osd id %q: %w", a, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

var osdRmCmd = &cobra.Command{
	Use:   "rm <id…>",
	Short: "Queue one or more OSDs for drain-then-destroy removal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseOSDIDs(args)
		if err != nil {
			return err
		}
		replace, _ := cmd.Flags().GetBool("replace")
		force, _ := cmd.Flags().GetBool("force")

		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		return o.OSDRm(ids, replace, force)
	},
}

func init() {
	osdRmCmd.Flags().Bool("replace", false, "Keep the OSD id reserved for replacement")
	osdRmCmd.Flags().Bool("force", false, "Bypass the OSD driver's ok-to-stop safety check")
}

var osdRmStatusCmd = &cobra.Command{
	Use:   "rm-status",
	Short: "Show OSDs currently moving through the removal queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		for _, e := range o.OSDRmStatus() {
			fmt.Printf("osd.%d\t%s\t%s\tpgs=%d\n", e.OSDID, e.State, e.Hostname, e.LastPGCount)
		}
		return nil
	},
}

var osdRmStopCmd = &cobra.Command{
	Use:   "rm-stop <id…>",
	Short: "Cancel a queued OSD removal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseOSDIDs(args)
		if err != nil {
			return err
		}
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		return o.OSDRmStop(context.Background(), ids)
	},
}

func init() {
	osdCmd.AddCommand(osdRmCmd)
	osdCmd.AddCommand(osdRmStatusCmd)
	osdCmd.AddCommand(osdRmStopCmd)
}
