package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a service spec from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("i")
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read spec file: %w", err)
		}

		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()

		spec, err := o.Apply(data)
		if err != nil {
			return err
		}
		fmt.Printf("applied %s\n", spec.ServiceName())
		return nil
	},
}

func init() {
	applyCmd.Flags().StringP("i", "i", "", "YAML spec file (required)")
	_ = applyCmd.MarkFlagRequired("i")
}

var registryLoginCmd = &cobra.Command{
	Use:   "registry-login",
	Short: "Store container registry credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()

		if file, _ := cmd.Flags().GetString("i"); file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read registry-login file: %w", err)
			}
			return o.RegistryLoginFromJSON(data)
		}

		url, _ := cmd.Flags().GetString("url")
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		return o.RegistryLogin(url, username, password)
	},
}

func init() {
	registryLoginCmd.Flags().StringP("i", "i", "", "JSON file with url/username/password")
	registryLoginCmd.Flags().String("url", "", "Registry URL")
	registryLoginCmd.Flags().String("username", "", "Registry username")
	registryLoginCmd.Flags().String("password", "", "Registry password")
}
