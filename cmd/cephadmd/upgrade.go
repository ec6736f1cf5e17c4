package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade {start|pause|resume|stop|status|check}",
	Short: "Drive a rolling upgrade",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		image, _ := cmd.Flags().GetString("image")
		cephVersion, _ := cmd.Flags().GetString("ceph-version")

		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()

		switch args[0] {
		case "start":
			return o.UpgradeStart(image, cephVersion)
		case "pause":
			return o.UpgradePause()
		case "resume":
			return o.UpgradeResume()
		case "stop":
			return o.UpgradeStop()
		case "status":
			state := o.UpgradeStatus()
			fmt.Printf("in_progress=%v paused=%v target=%s current=%s/%s error=%s\n",
				state.InProgress, state.Paused, state.TargetImage, state.CurrentType, state.CurrentDaemon, state.Error)
			return nil
		case "check":
			out, err := o.UpgradeCheck(context.Background(), image)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		default:
			return fmt.Errorf("unknown upgrade subcommand %q", args[0])
		}
	},
}

func init() {
	upgradeCmd.Flags().String("image", "", "Target container image")
	upgradeCmd.Flags().String("ceph-version", "", "Target version label")
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Suspend reconciliation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		return o.Pause()
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume reconciliation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		return o.Resume()
	},
}
