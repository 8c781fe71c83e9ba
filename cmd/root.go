package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/timvw/pane-gateway/internal/config"
	"github.com/timvw/pane-gateway/internal/mux"
)

var (
	// Global flags.
	flagMux      string
	flagSocket   string
	flagConfig   string
	flagLogLevel string
	flagLogFile  string
)

var rootCmd = &cobra.Command{
	Use:   "pane-gateway",
	Short: "Mirror a tmux session into local tabs and panes over control mode",
	Long: `pane-gateway attaches to a tmux session in control mode (tmux -C) and keeps
a local model of tabs, split panes and terminal buffers in sync with the
session's windows, layouts and pane output.

Every tmux window becomes a local tab; every tmux pane becomes a local pane
whose buffer survives layout changes. The engine never blocks on a busy
terminal: contended work is skipped or retried on the next tick.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagMux, "mux", envOrDefault("PANE_GATEWAY_MUX", ""), "terminal multiplexer: tmux (default: auto-detect)")
	rootCmd.PersistentFlags().StringVar(&flagSocket, "socket", "", "tmux socket name (-L); overrides the socket config key")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", envOrDefault("PANE_GATEWAY_CONFIG", ""), "config file (default: search .pane-gateway.yaml|toml, ~/.config/pane-gateway/)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "write logs to a rotated file")
}

// loadConfig loads configuration and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if flagSocket != "" {
		cfg.Socket = flagSocket
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagLogFile != "" {
		cfg.LogFile = flagLogFile
	}
	return cfg, nil
}

// getMultiplexer returns the configured or auto-detected multiplexer.
func getMultiplexer(socket string) (mux.Multiplexer, error) {
	if flagMux != "" {
		return mux.FromName(flagMux, socket)
	}
	return mux.Detect(socket)
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
