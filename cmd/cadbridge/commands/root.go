package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cadbridge/cadbridge/pkg/config"
	"github.com/cadbridge/cadbridge/pkg/telemetry"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

// errFailed marks a failure already reported on stdout.
var errFailed = errors.New("operation failed")

// IsSilent reports whether err was already reported to the user.
func IsSilent(err error) bool {
	return errors.Is(err, errFailed)
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cadbridge",
		Short: "cadbridge - automation bridge to a CAD host",
		Long: `cadbridge drives a CAD host from outside the host process.

It talks to a plugin running inside the host over a local socket, calls the
host API directly when it runs in-process, or answers from simulated data when
neither is available.

Features:
  - Newline-delimited JSON command protocol
  - Plugin server with per-connection isolation
  - Classified errors with per-category retry and backoff
  - Activity log in SQLite
  - Prometheus metrics and OpenTelemetry tracing`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			applyLogLevel(cfg.Telemetry.Logging.Level)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newCallCommand())
	rootCmd.AddCommand(newInfoCommand())
	rootCmd.AddCommand(newCommandsCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}

// applyLogLevel sets the global level. LOG_LEVEL and --verbose take
// precedence over the configured level.
func applyLogLevel(level string) {
	switch {
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case os.Getenv("LOG_LEVEL") != "":
	default:
		zerolog.SetGlobalLevel(telemetry.ParseLevel(level))
	}
}
