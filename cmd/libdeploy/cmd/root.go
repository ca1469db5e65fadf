package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/libdeploy/internal/config"
	"github.com/oshokin/libdeploy/internal/logger"
	"github.com/oshokin/libdeploy/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel is the minimum level of emitted log lines.
	logLevel string

	errBadLogLevel = errors.New("unknown log level")
)

// newRootCommand builds the libdeploy command tree.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "libdeploy",
		Short: "Deploy a versioned bundle of native libraries.",
		Long: `Keeps a bundle of shared libraries extracted and version-current in an
application-private directory.

The bundle is shipped as a tar archive (optionally zstd or gzip compressed).
On first use or when the expected bundle version changes, the directory is
wiped and the archive is extracted again; otherwise nothing is touched.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%w: %q", errBadLogLevel, logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
	}

	root.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(
		newDeployCommand(),
		newCheckCommand(),
		newPathCommand(),
		newPackCommand(),
		version.NewCommand(bundleVersion),
	)

	return root
}

// Execute runs the libdeploy CLI and exits with non-zero status on error.
func Execute() {
	defer logger.Sync()

	if err := newRootCommand().Execute(); err != nil {
		logger.Sync()
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGTERM or SIGINT.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// bundleVersion reports the bundle version from the settings, for `version`.
func bundleVersion() int {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.DefaultBundleVersion
	}

	return cfg.BundleVersion
}
