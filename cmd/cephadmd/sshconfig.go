package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var setSSHConfigCmd = &cobra.Command{
	Use:   "set-ssh-config",
	Short: "Install a custom OpenSSH client config",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("i")
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read ssh config file: %w", err)
		}
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		return o.SetSSHConfig(data)
	},
}

func init() {
	setSSHConfigCmd.Flags().StringP("i", "i", "", "ssh_config file (required)")
	_ = setSSHConfigCmd.MarkFlagRequired("i")
}

var clearSSHConfigCmd = &cobra.Command{
	Use:   "clear-ssh-config",
	Short: "Revert to the default SSH client config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		return o.ClearSSHConfig()
	},
}

var getSSHConfigCmd = &cobra.Command{
	Use:   "get-ssh-config",
	Short: "Print the currently configured custom SSH client config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		data, err := o.GetSSHConfig()
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var generateKeyCmd = &cobra.Command{
	Use:   "generate-key",
	Short: "Generate and persist a new SSH keypair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		pub, err := o.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Print(string(pub))
		return nil
	},
}

var setPrivKeyCmd = &cobra.Command{
	Use:   "set-priv-key",
	Short: "Install an operator-supplied SSH private key",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("i")
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read private key file: %w", err)
		}
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		return o.SetPrivateKey(data)
	},
}

func init() {
	setPrivKeyCmd.Flags().StringP("i", "i", "", "PEM private key file (required)")
	_ = setPrivKeyCmd.MarkFlagRequired("i")
}

var setPubKeyCmd = &cobra.Command{
	Use:   "set-pub-key",
	Short: "Record the public half of the active keypair",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("i")
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read public key file: %w", err)
		}
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		return o.SetPublicKey(data)
	},
}

func init() {
	setPubKeyCmd.Flags().StringP("i", "i", "", "OpenSSH public key file (required)")
	_ = setPubKeyCmd.MarkFlagRequired("i")
}

var clearKeyCmd = &cobra.Command{
	Use:   "clear-key",
	Short: "Remove the stored SSH keypair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		return o.ClearKey()
	},
}

var getPubKeyCmd = &cobra.Command{
	Use:   "get-pub-key",
	Short: "Print the public half of the active keypair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		data, err := o.GetPublicKey()
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var setUserCmd = &cobra.Command{
	Use:   "set-user <user>",
	Short: "Change the SSH user used to reach managed hosts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		return o.SetUser(args[0])
	},
}

var getUserCmd = &cobra.Command{
	Use:   "get-user",
	Short: "Print the SSH user used to reach managed hosts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer o.Stop()
		user, err := o.GetUser()
		if err != nil {
			return err
		}
		fmt.Println(user)
		return nil
	},
}
