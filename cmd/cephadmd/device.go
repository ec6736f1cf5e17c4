package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/cephadmd/pkg/orchestrator"

	"github.com/spf13/cobra"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage block devices",
}

var deviceZapCmd = &cobra.Command{
	Use:   "zap <host> <path>",
	Short: "Wipe a block device so it is available for OSD creation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		return o.DeviceZap(context.Background(), args[0], args[1])
	},
}

var deviceLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the cached device inventory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		refresh, _ := cmd.Flags().GetBool("refresh")
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		for hostname, devices := range o.DeviceLs(refresh) {
			for _, d := range devices {
				fmt.Printf("%s\t%s\tavailable=%v\n", hostname, d.Path, d.Available)
			}
		}
		return nil
	},
}

func init() {
	deviceLsCmd.Flags().Bool("refresh", false, "Invalidate the device cache and wake the serve loop (lists cached state)")
}

// parseDeviceTarget parses one "host:path[=devpath]" operand.
func parseDeviceTarget(s string) (orchestrator.DeviceTarget, error) {
	rest := s
	var devPath string
	if idx := strings.Index(rest, "="); idx >= 0 {
		devPath = rest[idx+1:]
		rest = rest[:idx]
	}
	idx := strings.Index(rest, ":")
	if idx < 0 {
		return orchestrator.DeviceTarget{}, fmt.Errorf("invalid device target %q, want host:path[=devpath]", s)
	}
	return orchestrator.DeviceTarget{Hostname: rest[:idx], Path: rest[idx+1:], DevPath: devPath}, nil
}

var deviceLightCmd = &cobra.Command{
	Use:   "light {on|off} {ident|fault} <host:path[=devpath]>…",
	Short: "Toggle a device's locator LED",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, kind := args[0], args[1]
		targets := make([]orchestrator.DeviceTarget, 0, len(args)-2)
		for _, a := range args[2:] {
			t, err := parseDeviceTarget(a)
			if err != nil {
				return err
			}
			targets = append(targets, t)
		}

		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		return o.DeviceLight(context.Background(), state, kind, targets)
	},
}

func init() {
	deviceCmd.AddCommand(deviceZapCmd)
	deviceCmd.AddCommand(deviceLsCmd)
	deviceCmd.AddCommand(deviceLightCmd)
}
