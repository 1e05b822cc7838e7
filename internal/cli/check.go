package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/me/runsheet/internal/config"
	"github.com/me/runsheet/internal/runinfo"
)

// newCheckCmd validates a run sheet without binding reference data.
func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <run.yaml>",
		Short: "Validate a run sheet configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := buildResolver(args[0])
			if err != nil {
				return err
			}
			records, err := resolver.Resolve(args[0], nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d samples validated\n", len(records))
			return nil
		},
	}
}

// buildResolver loads the system configuration and directory layout shared
// by the commands. Reference binding stays off; check and resolve operate
// on configuration alone.
func buildResolver(runSheet string, opts ...runinfo.Option) (*runinfo.Resolver, error) {
	workDir := flagWorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		workDir = wd
	}
	cfg, cfgFile, err := config.Load(flagSystemConfig, workDir, filepath.Dir(runSheet))
	if err != nil {
		return nil, err
	}
	dirs := config.SetupDirectories(workDir, flagFlowcellDir, cfg, cfgFile)
	return runinfo.NewResolver(cfg, dirs, nil, logger, opts...), nil
}
