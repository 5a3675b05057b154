package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/firmkit/tplsync/internal/version"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print the version",
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		info := map[string]string{
			"version":    version.Current(),
			"user_agent": version.UserAgent(),
			"go":         runtime.Version(),
		}
		if IsJSONOutput() {
			return WriteOutput(cmd.OutOrStdout(), info)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", version.Name, info["version"], info["go"])
		return nil
	},
}
