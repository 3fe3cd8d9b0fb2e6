package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/stabping-release/internal/config"
	"github.com/oshokin/stabping-release/internal/logger"
	"github.com/oshokin/stabping-release/internal/service/release"
	"github.com/oshokin/stabping-release/internal/version"
)

var (
	// configPath to the settings YAML file.
	configPath string
	// envFile is an optional dotenv file with CI variables.
	envFile string
	// skipPublish stops after the archive is written.
	skipPublish bool
	// logLevel is the minimum level of printed messages.
	logLevel string

	errInvalidLogLevel = errors.New("invalid log level")

	// rootCmd packages and publishes the release of a tagged CI job.
	rootCmd = &cobra.Command{
		Use:   "stabping-release",
		Short: "Package a CI build and attach it to its GitHub Release",
		Long: "Resolves the CI environment (Travis CI, AppVeyor or GitHub Actions), bundles the built binary " +
			"with its auxiliary files into a zip and uploads the zip to the GitHub Release of the tag, " +
			"creating a draft release when none exists. Jobs that are not tagged exit successfully.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%w: %q", errInvalidLogLevel, logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &release.Options{
				ConfigPath:  configPath,
				EnvFile:     envFile,
				SkipPublish: skipPublish,
			}

			return release.Run(ctx, options)
		},
	}
)

// Execute runs the stabping-release CLI and exits with non-zero status on error.
func Execute() {
	if code := run(os.Args[1:]); code != 0 {
		os.Exit(code)
	}
}

// run executes the CLI with args and returns the process exit code.
func run(args []string) int {
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	if err != nil {
		logger.ErrorKV(context.Background(), "Release failed", "error", err)
	}

	logger.Sync()

	if err != nil {
		return 1
	}

	return 0
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	version.AttachCobraVersionCommand(rootCmd)

	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level: debug, info, warn or error")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to settings file")
	rootCmd.Flags().StringVarP(&envFile, "env-file", "e", "", "dotenv file with CI variables, process environment wins")
	rootCmd.Flags().BoolVar(&skipPublish, "skip-publish", false, "write the archive but do not contact GitHub")
}
