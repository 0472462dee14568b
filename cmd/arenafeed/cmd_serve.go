package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wargames-arena/marketfeed/internal/arena"
	"github.com/wargames-arena/marketfeed/internal/circuit"
	"github.com/wargames-arena/marketfeed/internal/cluster"
	"github.com/wargames-arena/marketfeed/internal/config"
	"github.com/wargames-arena/marketfeed/internal/hub"
	"github.com/wargames-arena/marketfeed/internal/orchestrator"
	"github.com/wargames-arena/marketfeed/internal/providers"
	"github.com/wargames-arena/marketfeed/internal/providers/alpaca"
	"github.com/wargames-arena/marketfeed/internal/providers/binance"
	"github.com/wargames-arena/marketfeed/internal/providers/eodhd"
	"github.com/wargames-arena/marketfeed/internal/providers/simulator"
	"github.com/wargames-arena/marketfeed/internal/providers/yahoo"
	"github.com/wargames-arena/marketfeed/internal/quote"
	"github.com/wargames-arena/marketfeed/internal/ratelimit"
	"github.com/wargames-arena/marketfeed/internal/statushttp"
	"github.com/wargames-arena/marketfeed/internal/stream"
	"github.com/wargames-arena/marketfeed/internal/telemetry"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiterMgr, breakerMgr := buildResilience()
	adapters := buildAdapters(cfg, limiterMgr, breakerMgr)

	providerCfg := hub.Config{
		EnableLiveData:     cfg.EnableLiveData,
		PrimaryStockSource: quote.Source(cfg.PrimaryStockSource),
		CacheTTL:           cfg.CacheTTL(),
		CandleCacheTTL:     cfg.CandleCacheTTL(),
		OrderBookCacheTTL:  cfg.OrderBookTTL(),
		PollingInterval:    cfg.PollingInterval(),
		MaxRetries:         cfg.MaxRetries,
		ArenaSymbols:       cfg.ArenaSymbolSet(),
	}
	provider := hub.NewProvider(providerCfg, adapters, limiterMgr, breakerMgr)
	for _, b := range config.DefaultBindings() {
		provider.RegisterBinding(b)
	}

	h := hub.NewHub(provider)

	metrics := telemetry.New()

	streams := buildStreams(cfg)
	for _, sm := range streams {
		go pumpStreamQuotes(ctx, sm, provider)
	}

	statusServer := statushttp.New(statushttp.DefaultConfig(), provider, h, streamStats(streams), metrics)

	orch := orchestrator.New(
		arena.NewWebSocketStream(arenaStreamURL()),
		func(snap orchestrator.Snapshot) {
			log.Info().Int64("trades", snap.TotalTrades).Float64("rate", snap.TradesPerMinute).Msg("orchestrator snapshot")
		},
		func(res cluster.Result) {
			log.Info().Int("clusters", len(res.Clusters)).Float64("silhouette", res.Silhouette).Msg("behavioral clustering pass")
		},
	)

	var wg errGroup
	wg.Go(func() error { provider.Run(ctx); return nil })
	wg.Go(func() error { h.Run(ctx); return nil })
	wg.Go(func() error { return orch.Run(ctx) })
	for _, sm := range streams {
		sm := sm
		wg.Go(func() error { sm.Run(ctx); return nil })
	}
	wg.Go(statusServer.Start)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = statusServer.Shutdown(shutdownCtx)

	return wg.Wait()
}

func buildResilience() (*ratelimit.Manager, *circuit.Manager) {
	limiterMgr := ratelimit.NewManager()
	for name, w := range ratelimit.DefaultWindows() {
		limiterMgr.AddProvider(name, w.MaxRequests, w.Window)
	}
	breakerMgr := circuit.NewManager()
	for _, name := range []string{"yahoo", "binance", "alpaca", "eodhd"} {
		breakerMgr.AddProvider(name, circuit.Config{})
	}
	return limiterMgr, breakerMgr
}

func buildAdapters(cfg *config.Config, limiterMgr *ratelimit.Manager, breakerMgr *circuit.Manager) map[quote.Source]providers.Adapter {
	adapters := make(map[quote.Source]providers.Adapter)

	yahooLimiter, _ := limiterMgr.Get("yahoo")
	yahooBreaker, _ := breakerMgr.Get("yahoo")
	adapters[quote.SourceYahoo] = yahoo.New(yahooLimiter, yahooBreaker)

	binanceLimiter, _ := limiterMgr.Get("binance")
	binanceBreaker, _ := breakerMgr.Get("binance")
	adapters[quote.SourceBinance] = binance.New(binanceLimiter, binanceBreaker)

	if cfg.Credentials.AlpacaAPIKey != "" && cfg.Credentials.AlpacaAPISecret != "" {
		alpacaLimiter, _ := limiterMgr.Get("alpaca")
		alpacaBreaker, _ := breakerMgr.Get("alpaca")
		if a := alpaca.New(cfg.Credentials.AlpacaAPIKey, cfg.Credentials.AlpacaAPISecret, alpacaLimiter, alpacaBreaker); a != nil {
			adapters[quote.SourceAlpaca] = a
		}
	}

	if cfg.Credentials.EODHDAPIKey != "" {
		eodhdLimiter, _ := limiterMgr.Get("eodhd")
		eodhdBreaker, _ := breakerMgr.Get("eodhd")
		if e := eodhd.New(cfg.Credentials.EODHDAPIKey, eodhdLimiter, eodhdBreaker); e != nil {
			adapters[quote.SourceEODHD] = e
		}
	}

	sim := simulator.New(simulator.KindForex, map[string]float64{
		"EUR/USD": 1.08, "GBP/USD": 1.27, "USD/JPY": 156.0,
	})
	sim.Seed("GC=F", 2350.0, simulator.KindCommodity)
	sim.Seed("CL=F", 78.0, simulator.KindCommodity)
	adapters[quote.SourceSimulated] = sim

	return adapters
}

func buildStreams(cfg *config.Config) []*stream.Manager {
	if cfg.Credentials.EODHDAPIKey == "" {
		return nil
	}
	return []*stream.Manager{
		stream.New(stream.EndpointForex, cfg.Credentials.EODHDAPIKey, forexSymbols(cfg)),
		stream.New(stream.EndpointUSQuote, cfg.Credentials.EODHDAPIKey, equitySymbols(cfg)),
		stream.New(stream.EndpointCrypto, cfg.Credentials.EODHDAPIKey, cryptoSymbols(cfg)),
	}
}

func forexSymbols(cfg *config.Config) []string {
	var out []string
	for _, b := range config.DefaultBindings() {
		if b.AssetType == quote.AssetForex {
			out = append(out, b.Symbol)
		}
	}
	return out
}

func equitySymbols(cfg *config.Config) []string {
	var out []string
	for _, b := range config.DefaultBindings() {
		if b.AssetType == quote.AssetStock {
			out = append(out, b.Symbol)
		}
	}
	return out
}

func cryptoSymbols(cfg *config.Config) []string {
	var out []string
	for _, b := range config.DefaultBindings() {
		if b.AssetType == quote.AssetCrypto {
			out = append(out, b.Symbol)
		}
	}
	return out
}

func pumpStreamQuotes(ctx context.Context, sm *stream.Manager, provider *hub.Provider) {
	for {
		select {
		case <-ctx.Done():
			return
		case q, ok := <-sm.Quotes():
			if !ok {
				return
			}
			provider.IngestStreamQuote(q)
		}
	}
}

func streamStats(streams []*stream.Manager) []statushttp.StreamStats {
	out := make([]statushttp.StreamStats, 0, len(streams))
	for _, s := range streams {
		out = append(out, s)
	}
	return out
}

func arenaStreamURL() string {
	if v := os.Getenv("ARENAFEED_ARENA_STREAM_URL"); v != "" {
		return v
	}
	return "ws://localhost:4000/socket.io/"
}
