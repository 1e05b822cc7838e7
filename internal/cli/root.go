// Package cli implements the runsheet command line front end.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/me/runsheet/internal/logging"
)

var (
	flagSystemConfig string
	flagWorkDir      string
	flagFlowcellDir  string
	flagDebug        bool
	flagLogLevel     string
	flagLogFormat    string

	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the runsheet CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "runsheet",
		Short: "runsheet resolves and validates sample run sheets",
		Long: "runsheet loads a sample run sheet, normalizes each entry, and validates\n" +
			"the full configuration before any pipeline stage runs.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagSystemConfig, "system-config", "", "System configuration YAML (default: search runsheet_system.yaml)")
	root.PersistentFlags().StringVar(&flagWorkDir, "work-dir", "", "Working directory (default: current directory)")
	root.PersistentFlags().StringVar(&flagFlowcellDir, "flowcell-dir", "", "Flowcell directory supplying naming metadata and fastq inputs")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newCheckCmd(),
		newResolveCmd(),
	)

	return root
}
