// Package cli implements the tplsync command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/firmkit/tplsync/internal/api"
	"github.com/firmkit/tplsync/internal/config"
	"github.com/firmkit/tplsync/internal/logging"
	"github.com/firmkit/tplsync/internal/version"
)

// skipConfigAnnotation marks commands that run without loading the config.
const skipConfigAnnotation = "tplsync/skip-config"

var (
	cfgFile        string
	firmFlags      []string
	logLevel       string
	logFormat      string
	jsonOutput     bool
	nonInteractive bool
	noProgress     bool

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tplsync",
	Short: "Synchronize account templates with a firm",
	Long: `tplsync keeps account templates (Liquid documents with their metadata)
in a local folder in sync with one or more firms of the remote service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipConfigAnnotation] == "true" {
			return logging.Init(logging.Config{Level: logLevel, Format: logFormat})
		}
		return initConfig()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/tplsync/config.yaml)")
	flags.StringArrayVar(&firmFlags, "firm", nil, "firm id to use (repeatable)")
	flags.StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "", "log format (console, json)")
	flags.BoolVar(&jsonOutput, "json", false, "write results as JSON")
	flags.BoolVar(&nonInteractive, "non-interactive", false, "never prompt, use defaults")
	flags.BoolVar(&noProgress, "no-progress", false, "disable progress output")

	rootCmd.Version = version.Current()
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	if appConfig == nil {
		return config.DefaultConfig()
	}
	return appConfig
}

func initConfig() error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return &PreflightError{
			Message:  fmt.Sprintf("invalid configuration: %v", err),
			Hint:     "Fix the config file or environment, or write a fresh one",
			NextStep: "tplsync config init --force",
		}
	}
	if logLevel != "" {
		loaded.Logging.Level = logLevel
	}
	if logFormat != "" {
		loaded.Logging.Format = logFormat
	}
	if err := logging.Init(logging.Config{Level: loaded.Logging.Level, Format: loaded.Logging.Format}); err != nil {
		return err
	}
	appConfig = loaded
	return nil
}

// ExitCode maps the error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// PrintError writes err for a human reader.
func PrintError(w io.Writer, err error) {
	if err == nil {
		return
	}
	var preflight *PreflightError
	if errors.As(err, &preflight) {
		fmt.Fprintf(w, "Error: %s\n", preflight.Message)
		if preflight.Hint != "" {
			fmt.Fprintf(w, "Hint: %s\n", preflight.Hint)
		}
		if preflight.NextStep != "" {
			fmt.Fprintf(w, "Next: %s\n", preflight.NextStep)
		}
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	if api.IsFatal(err) {
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			if hint := fatalHint(apiErr.Kind); hint != "" {
				fmt.Fprintf(w, "Hint: %s\n", hint)
			}
		}
	}
}

func fatalHint(kind api.Kind) string {
	switch kind {
	case api.KindMissingCredentials, api.KindRefreshFailed, api.KindAuthExhausted, api.KindAuthorizationFailed:
		return "Run `tplsync authorize --firm <id>` to obtain new tokens"
	case api.KindForbidden:
		return "The client is not allowed to access this firm"
	case api.KindUnprocessable:
		return "The remote service rejected the template content"
	default:
		return ""
	}
}
