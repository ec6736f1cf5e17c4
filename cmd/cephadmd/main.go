package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/cephadmd/pkg/config"
	"github.com/cuemby/cephadmd/pkg/log"
	"github.com/cuemby/cephadmd/pkg/metrics"
	"github.com/cuemby/cephadmd/pkg/orchestrator"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "cephadmd",
	Short:   "cephadmd - cluster orchestrator for a distributed storage platform",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("cephadmd version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("data-dir", "/var/lib/cephadmd", "Directory for persisted state")
	rootCmd.PersistentFlags().String("ssh-user", "root", "SSH user used to reach managed hosts")
	rootCmd.PersistentFlags().Int("ssh-port", 22, "SSH port used to reach managed hosts")
	rootCmd.PersistentFlags().String("metrics-addr", ":9283", "Listen address for metrics and health endpoints (serve only, empty disables)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(psCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(serviceActionCmd)
	rootCmd.AddCommand(osdCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(registryLoginCmd)
	rootCmd.AddCommand(setSSHConfigCmd)
	rootCmd.AddCommand(clearSSHConfigCmd)
	rootCmd.AddCommand(getSSHConfigCmd)
	rootCmd.AddCommand(generateKeyCmd)
	rootCmd.AddCommand(setPrivKeyCmd)
	rootCmd.AddCommand(setPubKeyCmd)
	rootCmd.AddCommand(clearKeyCmd)
	rootCmd.AddCommand(getPubKeyCmd)
	rootCmd.AddCommand(setUserCmd)
	rootCmd.AddCommand(getUserCmd)
	rootCmd.AddCommand(checkHostCmd)
	rootCmd.AddCommand(prepareHostCmd)
	rootCmd.AddCommand(deviceCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

// buildConfig resolves this process's Config from persistent flags,
// overlaid with environment variables (flag > environment > default,
// highest wins).
func buildConfig(cmd *cobra.Command) config.Config {
	cfg := config.Default()
	cfg = config.FromEnv(cfg)
	if v, _ := cmd.Flags().GetString("data-dir"); cmd.Flags().Changed("data-dir") {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); cmd.Flags().Changed("log-level") {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetBool("log-json"); cmd.Flags().Changed("log-json") {
		cfg.LogJSON = v
	}
	if v, _ := cmd.Flags().GetString("ssh-user"); cmd.Flags().Changed("ssh-user") {
		cfg.SSHUser = v
	}
	if v, _ := cmd.Flags().GetInt("ssh-port"); cmd.Flags().Changed("ssh-port") {
		cfg.SSHPort = v
	}
	if v, _ := cmd.Flags().GetString("metrics-addr"); cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = v
	}
	return cfg
}

// newOrchestrator builds an Orchestrator for a single CLI invocation.
// Callers defer o.Stop().
func newOrchestrator(cmd *cobra.Command) (*orchestrator.Orchestrator, error) {
	return orchestrator.New(buildConfig(cmd), nil)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconciliation loop until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		metrics.SetVersion(Version)

		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		o.Start(ctx)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		cancel()
		return nil
	},
}
