package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wargames-arena/marketfeed/internal/config"
)

// runConfigValidate loads and validates a config file without starting
// anything, for use in CI or pre-deploy checks.
func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	log.Info().
		Str("primary_stock_source", cfg.PrimaryStockSource).
		Bool("enable_live_data", cfg.EnableLiveData).
		Dur("cache_ttl", cfg.CacheTTL()).
		Dur("polling_interval", cfg.PollingInterval()).
		Int("max_retries", cfg.MaxRetries).
		Msg("config valid")
	return nil
}
