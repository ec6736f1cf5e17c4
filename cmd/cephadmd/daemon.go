package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon {start|stop|restart|redeploy|reconfig} <name>",
	Short: "Control a single daemon",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		action, name := args[0], args[1]
		image, _ := cmd.Flags().GetString("image")

		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()

		ctx := context.Background()
		switch action {
		case "start":
			return o.DaemonStart(ctx, name)
		case "stop":
			return o.DaemonStop(ctx, name)
		case "restart":
			return o.DaemonRestart(ctx, name)
		case "redeploy":
			return o.DaemonRedeploy(ctx, name, image)
		case "reconfig":
			return o.DaemonReconfig(ctx, name)
		default:
			return fmt.Errorf("unknown daemon action %q", action)
		}
	},
}

func init() {
	daemonCmd.Flags().String("image", "", "Container image to pin (redeploy only)")
}

var serviceActionCmd = &cobra.Command{
	Use:   "service-action {start|stop|restart} <service-name>",
	Short: "Apply start/stop/restart to every daemon of a service",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		return o.ServiceAction(context.Background(), args[0], args[1])
	},
}
