package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tendant/framecompare/internal/config"
	"github.com/tendant/framecompare/internal/logger"
)

var (
	logLevel  string
	outputDir string
)

var rootCmd = &cobra.Command{
	Use:   "framecompare",
	Short: "Frame-accurate screenshot comparisons between video encodes",
	Long: `framecompare extracts the same frames from several encodes of a video,
labels each still with its frame number, role and name, and can publish the
set to slow.pics as one side-by-side comparison.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "output root for stills; defaults to FRAMECOMPARE_OUTPUT_DIR")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(providersCmd)
}

// setup loads the environment, applies the persistent flags and builds the console logger
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}

	log, err := logger.NewConsole(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// signalContext is cancelled on SIGINT/SIGTERM. The current still is finished first.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
