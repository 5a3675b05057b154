package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firmkit/tplsync/internal/config"
)

var configInitForce bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing config file")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration",
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a commented default config file",
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.WriteDefault(cfgFile, configInitForce)
		if err != nil {
			return &PreflightError{
				Message:  err.Error(),
				Hint:     "Use --force to overwrite the existing file",
				NextStep: "tplsync config init --force",
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if IsJSONOutput() {
			return WriteOutput(cmd.OutOrStdout(), cfg.Redacted())
		}
		data, err := config.Render(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}
