package config

import "github.com/wargames-arena/marketfeed/internal/quote"

// DefaultBindings is the static routing table (spec.md §3's SymbolBinding,
// §4.D.1) for the arena's default universe: a handful of liquid equities,
// the major FX crosses, two commodity futures, and the crypto pairs Binance
// already covers. Symbol conventions follow spec.md §231: FX as
// CUR1/CUR2, futures with an =F suffix, crypto as a bare ticker.
func DefaultBindings() []quote.SymbolBinding {
	return []quote.SymbolBinding{
		{Symbol: "AAPL", AssetType: quote.AssetStock, PrimarySource: quote.SourceAlpaca, FallbackChain: []quote.Source{quote.SourceYahoo, quote.SourceEODHD}, WSEligible: true},
		{Symbol: "MSFT", AssetType: quote.AssetStock, PrimarySource: quote.SourceAlpaca, FallbackChain: []quote.Source{quote.SourceYahoo, quote.SourceEODHD}, WSEligible: true},
		{Symbol: "NVDA", AssetType: quote.AssetStock, PrimarySource: quote.SourceAlpaca, FallbackChain: []quote.Source{quote.SourceYahoo, quote.SourceEODHD}, WSEligible: true},
		{Symbol: "SPY", AssetType: quote.AssetStock, PrimarySource: quote.SourceAlpaca, FallbackChain: []quote.Source{quote.SourceYahoo, quote.SourceEODHD}, WSEligible: true},

		{Symbol: "BTC", AssetType: quote.AssetCrypto, PrimarySource: quote.SourceBinance, FallbackChain: []quote.Source{quote.SourceEODHD}, WSEligible: true},
		{Symbol: "ETH", AssetType: quote.AssetCrypto, PrimarySource: quote.SourceBinance, FallbackChain: []quote.Source{quote.SourceEODHD}, WSEligible: true},
		{Symbol: "SOL", AssetType: quote.AssetCrypto, PrimarySource: quote.SourceBinance, FallbackChain: []quote.Source{quote.SourceEODHD}, WSEligible: true},

		{Symbol: "EUR/USD", AssetType: quote.AssetForex, PrimarySource: quote.SourceEODHD, FallbackChain: []quote.Source{quote.SourceSimulated}, WSEligible: true},
		{Symbol: "GBP/USD", AssetType: quote.AssetForex, PrimarySource: quote.SourceEODHD, FallbackChain: []quote.Source{quote.SourceSimulated}, WSEligible: true},
		{Symbol: "USD/JPY", AssetType: quote.AssetForex, PrimarySource: quote.SourceEODHD, FallbackChain: []quote.Source{quote.SourceSimulated}, WSEligible: true},

		{Symbol: "GC=F", AssetType: quote.AssetCommodity, PrimarySource: quote.SourceYahoo, FallbackChain: []quote.Source{quote.SourceSimulated}, RESTOnly: true},
		{Symbol: "CL=F", AssetType: quote.AssetCommodity, PrimarySource: quote.SourceYahoo, FallbackChain: []quote.Source{quote.SourceSimulated}, RESTOnly: true},
	}
}

// ArenaSymbolSet converts the config's arenaSymbols slice into the set form
// hub.Config expects.
func (c *Config) ArenaSymbolSet() map[string]bool {
	out := make(map[string]bool, len(c.ArenaSymbols))
	for _, s := range c.ArenaSymbols {
		out[s] = true
	}
	return out
}
