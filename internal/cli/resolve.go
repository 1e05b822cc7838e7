package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/me/runsheet/internal/objectstore"
	"github.com/me/runsheet/internal/provenance"
	"github.com/me/runsheet/internal/runinfo"
)

// newResolveCmd resolves a run sheet and prints the organized records.
func newResolveCmd() *cobra.Command {
	var (
		flagSamples     []string
		flagProvDB      string
		flagFetchRemote bool
		flagS3Region    string
		flagS3Endpoint  string
		flagS3PathStyle bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <run.yaml>",
		Short: "Resolve a run sheet into per-sample processing records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []runinfo.Option
			if flagFetchRemote {
				store, err := objectstore.NewS3Store(cmd.Context(), objectstore.S3Config{
					Region:       flagS3Region,
					Endpoint:     flagS3Endpoint,
					UsePathStyle: flagS3PathStyle,
				}, logger)
				if err != nil {
					return err
				}
				opts = append(opts, runinfo.WithObjectStore(store))
			}
			resolver, err := buildResolver(args[0], opts...)
			if err != nil {
				return err
			}
			var prov *provenance.Store
			if flagProvDB != "" {
				prov, err = provenance.New(flagProvDB, logger)
				if err != nil {
					return err
				}
				defer prov.Close()
				if err := prov.Migrate(cmd.Context()); err != nil {
					return err
				}
			}
			records, err := resolver.Organize(cmd.Context(), args[0], flagSamples, prov)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(records)
		},
	}
	cmd.Flags().StringSliceVar(&flagSamples, "sample", nil, "Restrict to samples with these descriptions (repeatable)")
	cmd.Flags().StringVar(&flagProvDB, "provenance-db", "", "Record run provenance to this SQLite database")
	cmd.Flags().BoolVar(&flagFetchRemote, "fetch-remote", false, "Download s3:// algorithm inputs into the work directory")
	cmd.Flags().StringVar(&flagS3Region, "s3-region", "", "AWS region for remote input downloads")
	cmd.Flags().StringVar(&flagS3Endpoint, "s3-endpoint", "", "Custom S3 endpoint for S3-compatible providers")
	cmd.Flags().BoolVar(&flagS3PathStyle, "s3-path-style", false, "Use path-style S3 addressing (MinIO and similar)")
	return cmd
}
