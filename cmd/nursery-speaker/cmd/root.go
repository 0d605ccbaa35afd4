package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/nursery-speaker/internal/config"
	"github.com/oshokin/nursery-speaker/internal/logger"
	"github.com/oshokin/nursery-speaker/internal/service/player"
	"github.com/oshokin/nursery-speaker/internal/version"
)

// errUnknownLogLevel is returned for --log-level values zap does not know.
var errUnknownLogLevel = errors.New("unknown log level")

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel is the minimum level written to the log.
	logLevel string
	// debug is a shorthand for --log-level debug.
	debug bool

	// rootCmd represents the base command running the speaker.
	rootCmd = &cobra.Command{
		Use:   "nursery-speaker",
		Short: "Play songs and white noise on commands from the nursery server.",
		Long: `Runs the nursery sound machine.

The speaker polls the command server every few seconds and switches between
silence, a song (once, on repeat, or followed by white noise) and two levels of
white noise. Level 2 noise falls back to level 1 after the configured duration.

Create the stop file to end the speaker, or the restart file to restart it.`,
		Args: cobra.NoArgs,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%q: %w", logLevel, errUnknownLogLevel)
			}

			if debug {
				level = zapcore.DebugLevel
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			options := &player.Options{
				ConfigPath: configPath,
			}

			return player.Run(ctx, options)
		},
	}
)

// Execute runs the nursery-speaker CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log every event and transition")

	_ = rootCmd.PersistentFlags().MarkHidden("debug")
}
