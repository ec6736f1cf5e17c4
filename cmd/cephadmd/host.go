package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Manage the host inventory",
}

var hostAddCmd = &cobra.Command{
	Use:   "add <name> [addr]",
	Short: "Add a host to the inventory",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var addr string
		if len(args) == 2 {
			addr = args[1]
		}
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		h, err := o.HostAdd(args[0], addr)
		if err != nil {
			return err
		}
		fmt.Printf("added host %s (%s)\n", h.Hostname, h.Address)
		return nil
	},
}

var hostLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List hosts in the inventory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		for _, h := range o.HostLs() {
			fmt.Printf("%s\t%s\t%s\n", h.Hostname, h.Address, h.Status)
		}
		return nil
	},
}

var hostRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Remove a host from the inventory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		return o.HostRm(args[0])
	},
}

var hostSetAddrCmd = &cobra.Command{
	Use:   "set-addr <name> <addr>",
	Short: "Set a host's management address",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		return o.HostSetAddr(args[0], args[1])
	},
}

var hostLabelCmd = &cobra.Command{
	Use:   "label",
	Short: "Manage host placement labels",
}

var hostLabelAddCmd = &cobra.Command{
	Use:   "add <name> <label>",
	Short: "Add a placement label to a host",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		return o.HostLabelAdd(args[0], args[1])
	},
}

var hostLabelRmCmd = &cobra.Command{
	Use:   "rm <name> <label>",
	Short: "Remove a placement label from a host",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		return o.HostLabelRm(args[0], args[1])
	},
}

func init() {
	hostLabelCmd.AddCommand(hostLabelAddCmd)
	hostLabelCmd.AddCommand(hostLabelRmCmd)

	hostCmd.AddCommand(hostAddCmd)
	hostCmd.AddCommand(hostLsCmd)
	hostCmd.AddCommand(hostRmCmd)
	hostCmd.AddCommand(hostSetAddrCmd)
	hostCmd.AddCommand(hostLabelCmd)
}

var checkHostCmd = &cobra.Command{
	Use:   "check-host <name> [addr]",
	Short: "Probe a host's reachability",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var addr string
		if len(args) == 2 {
			addr = args[1]
		}
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		return o.CheckHost(context.Background(), args[0], addr)
	},
}

var prepareHostCmd = &cobra.Command{
	Use:   "prepare-host <name> [addr]",
	Short: "Bootstrap a host ahead of host add",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var addr string
		if len(args) == 2 {
			addr = args[1]
		}
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		return o.PrepareHost(context.Background(), args[0], addr)
	},
}
