package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "arenafeed"
	version = "v0.1.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if os.Getenv("ARENAFEED_LOG_FORMAT") != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Market data hub feeding the bot arena",
		Version: version,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the market data hub: providers, stream managers, and the observation pipeline",
		RunE:  runServe,
	}
	serveCmd.Flags().String("config", "", "Path to YAML config file (optional, env overrides still apply)")

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "One-shot health probe against every configured broker adapter",
		RunE:  runProbe,
	}
	probeCmd.Flags().String("config", "", "Path to YAML config file")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a config file without starting the hub",
		RunE:  runConfigValidate,
	}
	validateCmd.Flags().String("config", "", "Path to YAML config file")
	configCmd.AddCommand(validateCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
