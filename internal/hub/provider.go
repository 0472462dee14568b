// Package hub implements the Market Data Provider (spec.md §4.D), the
// Market Data Hub (spec.md §4.E), and the Arena Guard (spec.md §4.N). The
// Provider is the front door to all broker access: source selection,
// fallback-once, three TTL caches, subscription polling, and health
// probing. The Hub sits downstream of it, fanning a single upstream stream
// per symbol out to arbitrarily many subscribers.
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wargames-arena/marketfeed/internal/circuit"
	"github.com/wargames-arena/marketfeed/internal/hub/memcache"
	"github.com/wargames-arena/marketfeed/internal/providers"
	"github.com/wargames-arena/marketfeed/internal/quote"
	"github.com/wargames-arena/marketfeed/internal/ratelimit"
)

// Config carries the recognized options from spec.md §6.
type Config struct {
	EnableLiveData    bool
	PrimaryStockSource quote.Source // yahoo | alpaca
	CacheTTL          time.Duration
	CandleCacheTTL    time.Duration
	OrderBookCacheTTL time.Duration
	PollingInterval   time.Duration
	MaxRetries        int
	ArenaSymbols      map[string]bool
}

// DefaultConfig mirrors spec.md §6's stated defaults.
func DefaultConfig() Config {
	return Config{
		EnableLiveData:    true,
		PrimaryStockSource: quote.SourceYahoo,
		CacheTTL:          5 * time.Second,
		CandleCacheTTL:    30 * time.Second,
		OrderBookCacheTTL: 2 * time.Second,
		PollingInterval:   time.Second,
		MaxRetries:        2,
		ArenaSymbols:      make(map[string]bool),
	}
}

// QuoteEvent is what the Provider emits on every successful refresh,
// whether sourced from polling or from a WebSocket push.
type QuoteEvent struct {
	Quote quote.Quote
}

// Provider is the front door to all broker access.
type Provider struct {
	cfg Config

	adapters map[quote.Source]providers.Adapter
	limiter  *ratelimit.Manager
	breaker  *circuit.Manager

	quoteCache      *memcache.Cache[quote.Quote]
	candleCache     *memcache.Cache[[]quote.Candle]
	orderBookCache  *memcache.Cache[quote.OrderBook]

	mu       sync.RWMutex
	bindings map[string]quote.SymbolBinding
	health   map[quote.Source]bool
	subs     map[string]bool // symbols with at least one active subscriber

	events chan QuoteEvent
	cancel context.CancelFunc
}

// NewProvider constructs a Provider. Adapters absent from the map (e.g.
// Alpaca when unconfigured) are simply never selected by source selection.
func NewProvider(cfg Config, adapters map[quote.Source]providers.Adapter, limiter *ratelimit.Manager, breaker *circuit.Manager) *Provider {
	return &Provider{
		cfg:            cfg,
		adapters:       adapters,
		limiter:        limiter,
		breaker:        breaker,
		quoteCache:     memcache.New[quote.Quote](cfg.CacheTTL),
		candleCache:    memcache.New[[]quote.Candle](cfg.CandleCacheTTL),
		orderBookCache: memcache.New[quote.OrderBook](cfg.OrderBookCacheTTL),
		bindings:       make(map[string]quote.SymbolBinding),
		health:         make(map[quote.Source]bool),
		subs:           make(map[string]bool),
		events:         make(chan QuoteEvent, 512),
	}
}

// Events returns the channel of quote updates; the Hub is this channel's
// sole consumer.
func (p *Provider) Events() <-chan QuoteEvent { return p.events }

// RegisterBinding installs the routing table row for one symbol (spec.md
// §4.D.1 — resolved once at startup from static configuration).
func (p *Provider) RegisterBinding(b quote.SymbolBinding) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bindings[b.Symbol] = b
}

// IsArenaSymbol reports whether symbol is listed in Config.ArenaSymbols
// (spec.md §6): "symbols whose quotes MUST be real-sourced." The Hub
// consults this to force arena-participant treatment on subscriptions to
// these symbols even when the caller didn't ask for it.
func (p *Provider) IsArenaSymbol(symbol string) bool {
	return p.cfg.ArenaSymbols[symbol]
}

func (p *Provider) bindingFor(symbol string) (quote.SymbolBinding, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.bindings[symbol]
	return b, ok
}

// sourceChain returns the ordered list of sources to try for a symbol:
// primary first, then its configured fallback chain. Built once per call
// from the static binding, not cached, since bindings never change at
// runtime.
func (p *Provider) sourceChain(symbol string) []quote.Source {
	b, ok := p.bindingFor(symbol)
	if !ok {
		return nil
	}
	chain := make([]quote.Source, 0, 1+len(b.FallbackChain))
	chain = append(chain, b.PrimarySource)
	chain = append(chain, b.FallbackChain...)
	return chain
}

var errLiveDataDisabled = providers.NewError("provider", providers.KindAuth, "Live data disabled", nil)

// GetQuote resolves a quote for symbol: cache hit, else source selection
// with fallback-once, per spec.md §4.D.2.
func (p *Provider) GetQuote(ctx context.Context, symbol string) providers.Result[quote.Quote] {
	if !p.cfg.EnableLiveData {
		return providers.Result[quote.Quote]{Success: false, Err: errLiveDataDisabled}
	}
	if cached, ok := p.quoteCache.Get(symbol); ok {
		return providers.Result[quote.Quote]{Success: true, Data: cached, Source: cached.Source}
	}

	chain := p.sourceChain(symbol)
	var last providers.Result[quote.Quote]
	for i, src := range chain {
		adapter, ok := p.adapters[src]
		if !ok {
			continue
		}
		res := p.callQuote(ctx, adapter, symbol)
		if res.Success {
			p.quoteCache.Set(symbol, res.Data)
			p.setHealth(src, true)
			return res
		}
		p.setHealth(src, false)
		last = res
		if i == 0 {
			log.Warn().Str("symbol", symbol).Str("source", string(src)).Err(res.Err).Msg("primary source failed, falling back once")
		}
		// spec.md §4.D.2: retry once through the next adapter, no further fallback.
		if i >= 1 {
			break
		}
	}
	return last
}

// callQuote consumes a token from the provider's rate limiter for the
// adapter and then calls the adapter, which applies its own limiter and
// circuit breaker. No retry is made here or in the adapter; a failed call
// goes to GetQuote's fallback chain.
func (p *Provider) callQuote(ctx context.Context, adapter providers.Adapter, symbol string) providers.Result[quote.Quote] {
	name := string(adapter.Name())
	if p.limiter != nil && !p.limiter.ConsumeToken(name) {
		return providers.Result[quote.Quote]{
			Success: false,
			Source:  adapter.Name(),
			Err:     providers.NewError(name, providers.KindRateLimit, "local token bucket depleted", nil),
		}
	}
	return adapter.GetQuote(ctx, symbol)
}

// GetCandles resolves candles for (symbol, timeframe), cache-then-fallback
// identically to GetQuote.
func (p *Provider) GetCandles(ctx context.Context, symbol string, tf providers.Timeframe, limit int) providers.Result[[]quote.Candle] {
	if !p.cfg.EnableLiveData {
		return providers.Result[[]quote.Candle]{Success: false, Err: errLiveDataDisabled}
	}
	cacheKey := symbol + ":" + string(tf)
	if cached, ok := p.candleCache.Get(cacheKey); ok {
		return providers.Result[[]quote.Candle]{Success: true, Data: cached}
	}

	chain := p.sourceChain(symbol)
	var last providers.Result[[]quote.Candle]
	for i, src := range chain {
		adapter, ok := p.adapters[src]
		if !ok {
			continue
		}
		res := adapter.GetCandles(ctx, symbol, tf, limit)
		if res.Success {
			p.candleCache.Set(cacheKey, res.Data)
			return res
		}
		last = res
		if i >= 1 {
			break
		}
	}
	return last
}

// GetOrderBook resolves an order book for symbol, cache-then-fallback
// identically to GetQuote.
func (p *Provider) GetOrderBook(ctx context.Context, symbol string, levels int) providers.Result[quote.OrderBook] {
	if !p.cfg.EnableLiveData {
		return providers.Result[quote.OrderBook]{Success: false, Err: errLiveDataDisabled}
	}
	if cached, ok := p.orderBookCache.Get(symbol); ok {
		return providers.Result[quote.OrderBook]{Success: true, Data: cached}
	}

	chain := p.sourceChain(symbol)
	var last providers.Result[quote.OrderBook]
	for i, src := range chain {
		adapter, ok := p.adapters[src]
		if !ok {
			continue
		}
		res := adapter.GetOrderBook(ctx, symbol, levels)
		if res.Success {
			p.orderBookCache.Set(symbol, res.Data)
			return res
		}
		last = res
		if i >= 1 {
			break
		}
	}
	return last
}

func (p *Provider) setHealth(src quote.Source, healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.health[src] = healthy
}

// HealthSnapshot returns a copy of the per-source liveness map.
func (p *Provider) HealthSnapshot() map[quote.Source]bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[quote.Source]bool, len(p.health))
	for k, v := range p.health {
		out[k] = v
	}
	return out
}

// CheckHealth runs every adapter's health probe concurrently, per spec.md
// §4.D.5, and updates the liveness map.
func (p *Provider) CheckHealth(ctx context.Context) {
	var wg sync.WaitGroup
	for src, adapter := range p.adapters {
		wg.Add(1)
		go func(src quote.Source, adapter providers.Adapter) {
			defer wg.Done()
			healthy := adapter.IsHealthy(ctx)
			p.setHealth(src, healthy)
		}(src, adapter)
	}
	wg.Wait()
}

// Subscribe marks symbol as actively polled. Joining the global poll loop
// is the mechanism by which N subscribers collapse into one upstream feed
// (spec.md §4.E's invariant) — the Provider itself only knows "polled or
// not," the Hub above it is what actually fans out to subscribers.
func (p *Provider) Subscribe(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs[symbol] = true
}

// Unsubscribe stops polling symbol once no Hub subscriber needs it.
func (p *Provider) Unsubscribe(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subs, symbol)
}

func (p *Provider) subscribedSymbols() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.subs))
	for sym := range p.subs {
		out = append(out, sym)
	}
	return out
}

const pollBatchSize = 10
const pollBatchPause = 100 * time.Millisecond

// Run starts the subscription poll loop. It refreshes every subscribed
// symbol every PollingInterval, in batches of 10 with a 100ms inter-batch
// pause, per spec.md §4.D.4. Blocks until ctx is canceled.
func (p *Provider) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	ticker := time.NewTicker(p.cfg.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.shutdown()
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Provider) pollOnce(ctx context.Context) {
	symbols := p.subscribedSymbols()
	for i := 0; i < len(symbols); i += pollBatchSize {
		end := i + pollBatchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[i:end]
		for _, sym := range batch {
			res := p.GetQuote(ctx, sym)
			if !res.Success {
				continue
			}
			select {
			case p.events <- QuoteEvent{Quote: res.Data}:
			default:
				log.Warn().Str("symbol", sym).Msg("provider event channel full, dropping poll tick")
			}
		}
		if end < len(symbols) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollBatchPause):
			}
		}
	}
}

// IngestStreamQuote accepts a WebSocket-delivered quote (from
// internal/stream) and emits it through the same event path as a poll
// refresh, pre-populating the cache so the next poll tick is idempotent,
// per spec.md §4.D.4.
func (p *Provider) IngestStreamQuote(q quote.Quote) {
	p.quoteCache.Set(q.Symbol, q)
	select {
	case p.events <- QuoteEvent{Quote: q}:
	default:
		log.Warn().Str("symbol", q.Symbol).Msg("provider event channel full, dropping stream tick")
	}
}

// shutdown flushes the quote, candle and order-book caches and logs that the
// provider is quiesced, per spec.md §5's cancellation semantics. WS socket closure is owned by internal/stream
// managers, which observe the same ctx cancellation independently.
func (p *Provider) shutdown() {
	p.quoteCache.Flush()
	p.candleCache.Flush()
	p.orderBookCache.Flush()
	log.Info().Msg("market data provider quiesced")
}
