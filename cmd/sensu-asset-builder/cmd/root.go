package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/adammcdonagh/sensu-asset-builder/internal/config"
	"github.com/adammcdonagh/sensu-asset-builder/internal/logger"
	"github.com/adammcdonagh/sensu-asset-builder/internal/service/builder"
	"github.com/adammcdonagh/sensu-asset-builder/internal/version"
)

var (
	// verbose switches logging to debug level.
	verbose bool
	// options are filled from flags.
	options builder.Options

	// rootCmd represents the base command that builds the assets of the catalog.
	rootCmd = &cobra.Command{
		Use:   "sensu-asset-builder",
		Short: "Build Sensu assets for every declared platform",
		Long: "Builds the Python based Sensu assets listed in the catalog: bundles a runtime, " +
			"installs requirements or compiles scripts in platform containers, archives and hashes " +
			"every build and writes one Asset manifest per asset.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if verbose {
				logger.SetLevel(zapcore.DebugLevel)
			}
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return builder.Run(ctx, &options)
		},
	}
)

// Execute runs the sensu-asset-builder CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error(context.Background(), err)
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.Flags().StringVarP(&options.CatalogPath, "config", "c", config.DefaultCatalogFilename, "path to the asset catalog")
	rootCmd.Flags().StringVarP(&options.Asset, "asset", "a", "", "build only the asset with this name")
	rootCmd.Flags().StringVar(&options.SettingsPath, "settings", "", "optional YAML settings file, overridden by environment variables")
	rootCmd.Flags().StringVar(&options.MetricsFile, "metrics-file", "", "write run metrics in the Prometheus text format to this file")
}
