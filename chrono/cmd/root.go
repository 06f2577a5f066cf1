// Package cmd provides the command-line interface for chrono.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/quantsim/chrono/logging"
)

// Environment variables that provide flag defaults.
const (
	EnvLogLevel    = "CHRONO_LOG_LEVEL"
	EnvTraderID    = "CHRONO_TRADER_ID"
	EnvMonitorPort = "CHRONO_MONITOR_PORT"
	EnvRecord      = "CHRONO_RECORD"
)

var flagEnv = map[string]string{
	"log-level":    EnvLogLevel,
	"trader-id":    EnvTraderID,
	"monitor-port": EnvMonitorPort,
	"record":       EnvRecord,
}

// NewRootCommand builds the chrono command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chrono",
		Short: "chrono replays deterministic clock and lifecycle scenarios.",
		Long: `chrono drives a simulated clock with alerts and interval ` +
			`timers, and steps components through their lifecycle. It can ` +
			`replay scenario files, record them into SQLite and serve them ` +
			`to a browser.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := loadEnvFile(envFile); err != nil {
				return err
			}

			return applyEnv(cmd.Flags())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("env-file", ".env", "File to load environment variables from")
	flags.String("log-level", "INFO", "Minimum level printed to stderr")
	flags.String("trader-id", "TRADER-000", "Trader id stamped on log lines")
	flags.Bool("color", false, "Color log lines")

	rootCmd.AddCommand(newReplayCommand())
	rootCmd.AddCommand(newStatesCommand())
	rootCmd.AddCommand(newNowCommand())

	return rootCmd
}

// Execute runs the root command and reports whether it succeeded.
func Execute() error {
	return NewRootCommand().Execute()
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	return nil
}

// applyEnv fills flags that were not given on the command line from their
// environment variables.
func applyEnv(flags *pflag.FlagSet) error {
	for name, env := range flagEnv {
		flag := flags.Lookup(name)
		if flag == nil || flag.Changed {
			continue
		}

		value, ok := os.LookupEnv(env)
		if !ok {
			continue
		}

		if err := flags.Set(name, value); err != nil {
			return fmt.Errorf("%s=%q: %w", env, value, err)
		}
	}

	return nil
}

func newLogger(cmd *cobra.Command) (*logging.Logger, error) {
	levelName, _ := cmd.Flags().GetString("log-level")
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}

	cfg := logging.DefaultConfig()
	cfg.LevelStdout = level
	cfg.Stdout = cmd.ErrOrStderr()
	cfg.TraderID, _ = cmd.Flags().GetString("trader-id")
	cfg.Colors, _ = cmd.Flags().GetBool("color")

	return logging.New(cfg)
}
