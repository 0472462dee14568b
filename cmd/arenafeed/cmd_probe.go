package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wargames-arena/marketfeed/internal/config"
)

// runProbe dials every configured broker adapter once and reports health,
// without starting the hub, stream managers, or orchestrator.
func runProbe(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	limiterMgr, breakerMgr := buildResilience()
	adapters := buildAdapters(cfg, limiterMgr, breakerMgr)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	healthy := 0
	for src, adapter := range adapters {
		ok := adapter.IsHealthy(ctx)
		if ok {
			healthy++
		}
		log.Info().Str("source", string(src)).Bool("healthy", ok).Msg("probe result")
	}
	log.Info().Int("healthy", healthy).Int("total", len(adapters)).Msg("probe complete")
	return nil
}
