// Package cmd defines the CLI commands for the manghomagnet executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/refracta/PEAK-MangHoMagnet/internal/config"
	"github.com/refracta/PEAK-MangHoMagnet/internal/logging"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manghomagnet",
		Short: "Collects steam joinlobby references from a DCInside gallery.",
		Long: `manghomagnet polls a DCInside gallery listing, pulls detail pages for
posts that changed, extracts steam://joinlobby references, and keeps a
bounded registry of lobbies with validity tracking and optional
automatic joining.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults plus MAGNET_* env)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCrawlCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "command failed: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the process logger shared by
// the subcommands.
func bootstrap() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}
