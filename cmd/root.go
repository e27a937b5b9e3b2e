/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"zeta/pkg/config"
	"zeta/pkg/logger"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:     "zeta",
	Short:   "Turkish conversational assistant with tools",
	Long:    "Zeta screens each message through a safety gate, trims history to the model budget, routes to a live-data tool when one applies, and answers through the configured LLM provider.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = cmd
		_ = args
		if path := strings.TrimSpace(configPath); path != "" {
			return os.Setenv("ZETA_CONFIG", path)
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (overrides ZETA_CONFIG)")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadRuntime resolves config and installs the process logger as slog default.
func loadRuntime(component string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadOrDefault()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)

	return cfg, slog.Default().With("component", component), nil
}
