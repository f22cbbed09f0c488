package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/memview/internal/config"
	"github.com/breeze-rmm/memview/internal/logging"
)

var (
	version   = "0.1.0"
	cfgFile   string
	envFile   string
	logLevel  string
	logFormat string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "memview",
	Short: "Process memory viewer",
	Long: `memview lists running processes with their resident memory and status,
and stops them with a graceful terminate that escalates to a forced kill.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "memview v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is memview.yaml in the user config dir or .)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file with MEMVIEW_* overrides (default .env if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(killCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads and validates configuration and initializes logging. The
// returned function releases the log file, if one was opened.
func setup() (*config.Config, func(), error) {
	cfg, err := config.Load(cfgFile, envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	var output io.Writer = os.Stderr
	cleanup := func() {}
	if cfg.LogFile != "" {
		w, closer, err := logging.OpenFileOutput(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v\n", cfg.LogFile, err)
		} else {
			output = w
			cleanup = func() { closer.Close() }
		}
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, output)

	result := cfg.ValidateTiered()
	for _, w := range result.Warnings {
		log.Warn("config validation", "error", w)
	}
	if result.HasFatals() {
		cleanup()
		return nil, nil, fmt.Errorf("invalid config: %w", result.Fatals[0])
	}
	return cfg, cleanup, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
