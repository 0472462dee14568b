// Package providers defines the uniform broker-adapter interface (spec.md
// §4.B) and the error taxonomy every adapter reports through (spec.md §7).
// Concrete adapters live in sibling packages (yahoo, binance, alpaca,
// eodhd, simulator); this package only holds the shared contract.
package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/wargames-arena/marketfeed/internal/quote"
)

// Kind enumerates the error taxonomy from spec.md §7.
type Kind string

const (
	KindRateLimit          Kind = "rate_limit"
	KindNetwork            Kind = "network"
	KindTimeout            Kind = "timeout"
	KindParse              Kind = "parse"
	KindAuth               Kind = "auth"
	KindRejectedSimulated  Kind = "rejected_simulated"
	KindSubscriberHandler  Kind = "subscriber_handler"
)

// Error is the uniform error type every adapter operation returns through
// the Result envelope.
type Error struct {
	Kind     Kind
	Provider string
	Message  string
	Wrapped  error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s[%s]: %s: %v", e.Provider, e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s[%s]: %s", e.Provider, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Retryable reports whether the error kind is transient: true for network
// and timeout, false for rate_limit, parse, and auth. No caller in this
// module retries on it; the Provider's fallback to the next source is the
// only second attempt a failed call gets.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	default:
		return false
	}
}

// NewError builds an *Error, wrapping err if present.
func NewError(provider string, kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Message: msg, Wrapped: err}
}

// Result is the uniform envelope every adapter operation returns, per
// spec.md §4.B: "Every operation returns a uniform result envelope."
type Result[T any] struct {
	Success   bool
	Data      T
	Err       *Error
	Source    quote.Source
	LatencyMs int64
}

// Timeframe is a candle interval understood uniformly across adapters; each
// adapter maps it onto its own interval vocabulary (e.g. Binance's "1m").
type Timeframe string

const (
	TF1Min  Timeframe = "1m"
	TF5Min  Timeframe = "5m"
	TF15Min Timeframe = "15m"
	TF1Hour Timeframe = "1h"
	TF1Day  Timeframe = "1d"
)

// Adapter is the uniform interface every broker implements (spec.md §4.B).
// GetOrderBook is optional — adapters that cannot serve L2 data return a
// KindParse-free but Success:false Result with no error (see e.g. yahoo).
type Adapter interface {
	Name() quote.Source
	GetQuote(ctx context.Context, symbol string) Result[quote.Quote]
	GetCandles(ctx context.Context, symbol string, tf Timeframe, limit int) Result[[]quote.Candle]
	GetOrderBook(ctx context.Context, symbol string, levels int) Result[quote.OrderBook]
	IsHealthy(ctx context.Context) bool
}

// timed runs fn and wraps its result/err into a Result with LatencyMs set.
func timed[T any](source quote.Source, fn func() (T, *Error)) Result[T] {
	start := time.Now()
	data, err := fn()
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return Result[T]{Success: false, Err: err, Source: source, LatencyMs: latency}
	}
	return Result[T]{Success: true, Data: data, Source: source, LatencyMs: latency}
}

// Timed is exported so adapter packages can build envelopes without
// duplicating the latency-measurement boilerplate.
func Timed[T any](source quote.Source, fn func() (T, *Error)) Result[T] {
	return timed(source, fn)
}
