// Package telemetry holds the Prometheus metrics registry of the market data
// hub: rate-limit denials, cache hit ratio, circuit breaker state, and
// arena-guard rejections. The serve command registers it and serves it on
// /metrics; no other package updates these metrics.
package telemetry

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry holds all Prometheus metrics exposed by the hub.
type Registry struct {
	QuoteRequests   *prometheus.CounterVec
	QuoteFallbacks  *prometheus.CounterVec
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	CacheHitRatio   prometheus.Gauge
	RateLimitDenied *prometheus.CounterVec
	CircuitState    *prometheus.GaugeVec
	GuardRejections prometheus.Counter
	StreamState     *prometheus.GaugeVec
	SubscriberCount prometheus.Gauge
	TradesObserved  prometheus.Counter
	PatternsActive  prometheus.Gauge

	hits, misses map[string]float64
}

// New builds and registers the full metrics set against the default
// Prometheus registry.
func New() *Registry {
	r := &Registry{
		QuoteRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketfeed_quote_requests_total",
				Help: "Total quote requests by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		QuoteFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketfeed_quote_fallbacks_total",
				Help: "Total times a symbol fell back from primary to secondary source",
			},
			[]string{"symbol", "from_source", "to_source"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "marketfeed_cache_hits_total", Help: "Cache hits by cache name"},
			[]string{"cache"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "marketfeed_cache_misses_total", Help: "Cache misses by cache name"},
			[]string{"cache"},
		),
		CacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "marketfeed_cache_hit_ratio", Help: "Aggregate cache hit ratio across all caches"},
		),
		RateLimitDenied: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "marketfeed_rate_limit_denied_total", Help: "Requests denied by the fixed-window rate limiter"},
			[]string{"source"},
		),
		CircuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "marketfeed_circuit_state", Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)"},
			[]string{"source"},
		),
		GuardRejections: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "marketfeed_guard_rejections_total", Help: "Simulated quotes blocked from arena-participant subscribers"},
		),
		StreamState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "marketfeed_stream_state", Help: "WebSocket stream manager state (0=disconnected,1=connecting,2=subscribed,3=session_paused,4=auth_failed)"},
			[]string{"endpoint"},
		),
		SubscriberCount: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "marketfeed_hub_subscribers", Help: "Current number of hub subscriptions across all symbols"},
		),
		TradesObserved: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "marketfeed_orchestrator_trades_total", Help: "Deduplicated arena trade events observed"},
		),
		PatternsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "marketfeed_patterns_active", Help: "Number of high-confidence discovered patterns"},
		),
		hits:   make(map[string]float64),
		misses: make(map[string]float64),
	}

	prometheus.MustRegister(
		r.QuoteRequests, r.QuoteFallbacks, r.CacheHits, r.CacheMisses, r.CacheHitRatio,
		r.RateLimitDenied, r.CircuitState, r.GuardRejections, r.StreamState,
		r.SubscriberCount, r.TradesObserved, r.PatternsActive,
	)

	log.Info().Msg("telemetry: prometheus registry initialized")
	return r
}

// RecordCacheHit/RecordCacheMiss also update the aggregate hit ratio gauge,
// since CounterVec values can't be read back cheaply across labels.
func (r *Registry) RecordCacheHit(cache string) {
	r.CacheHits.WithLabelValues(cache).Inc()
	r.hits[cache]++
	r.updateHitRatio()
}

func (r *Registry) RecordCacheMiss(cache string) {
	r.CacheMisses.WithLabelValues(cache).Inc()
	r.misses[cache]++
	r.updateHitRatio()
}

func (r *Registry) updateHitRatio() {
	var totalHits, totalMisses float64
	for _, v := range r.hits {
		totalHits += v
	}
	for _, v := range r.misses {
		totalMisses += v
	}
	total := totalHits + totalMisses
	if total > 0 {
		r.CacheHitRatio.Set(totalHits / total)
	}
}

// SetCircuitState maps a circuit breaker state name to the gauge's numeric
// encoding, matching sony/gobreaker's State.String() values.
func (r *Registry) SetCircuitState(source, state string) {
	value := 0.0
	switch strings.ToLower(state) {
	case "half-open":
		value = 1.0
	case "open":
		value = 2.0
	}
	r.CircuitState.WithLabelValues(source).Set(value)
}

// SetStreamState maps a stream.State name to its numeric gauge encoding.
func (r *Registry) SetStreamState(endpoint, state string) {
	var value float64
	switch strings.ToLower(state) {
	case "disconnected":
		value = 0
	case "connecting":
		value = 1
	case "subscribed":
		value = 2
	case "session_paused":
		value = 3
	case "auth_failed":
		value = 4
	}
	r.StreamState.WithLabelValues(endpoint).Set(value)
}

// Handler returns the HTTP handler that serves /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
