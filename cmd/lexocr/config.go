package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexsuite/lexocr/internal/api"
	"github.com/lexsuite/lexocr/internal/config"
	"github.com/lexsuite/lexocr/internal/home"
)

// getHome resolves the home directory from the --home flag.
func getHome() (*home.Dir, error) {
	return home.New(homeDir)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage lexocr configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write the default configuration to ~/.lexocr/config.yaml.

Fails if a config file already exists; pass --force to overwrite.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		if h.ConfigExists() && !force {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", h.ConfigPath())
		}

		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return err
		}
		fmt.Printf("Wrote default config to %s\n", h.ConfigPath())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		return api.Output(cm.Get())
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
