// Package quote holds the wire-level market data types shared by every
// adapter, the hub, and the observation pipeline. Normalization into these
// types happens once, at the adapter boundary; nothing downstream branches
// on which upstream produced a value except the arena guard's Source check.
package quote

import (
	"fmt"
	"time"
)

// Source tags the provenance of a Quote. It is assigned once by the
// normalizing adapter and never erased or rewritten downstream.
type Source string

const (
	SourceYahoo     Source = "yahoo"
	SourceBinance   Source = "binance"
	SourceAlpaca    Source = "alpaca"
	SourceEODHD     Source = "eodhd"
	SourceSimulated Source = "simulated"
)

// Quote is a single normalized market-data tick.
type Quote struct {
	Symbol        string
	Bid           float64
	BidSize       float64
	Ask           float64
	AskSize       float64
	Last          float64
	LastSize      float64
	Volume        float64
	Change        float64
	ChangePercent float64
	High          float64
	Low           float64
	Open          float64
	PreviousClose float64
	Timestamp     time.Time
	Source        Source
}

// Validate checks the invariants spec.md §3 attaches to a Quote.
func (q Quote) Validate() error {
	if q.Bid > q.Ask {
		return fmt.Errorf("quote %s: bid %.8f > ask %.8f", q.Symbol, q.Bid, q.Ask)
	}
	if q.Bid <= 0 || q.Ask <= 0 || q.Last <= 0 {
		return fmt.Errorf("quote %s: non-positive bid/ask/last", q.Symbol)
	}
	if q.Source == "" {
		return fmt.Errorf("quote %s: missing source tag", q.Symbol)
	}
	return nil
}

// MonotonicWith reports whether q's timestamp is acceptable as the next
// observation for the same (symbol, source) pair following prev, per the
// spec's 1s backward-slip tolerance.
func (q Quote) MonotonicWith(prev Quote) bool {
	if q.Symbol != prev.Symbol || q.Source != prev.Source {
		return true
	}
	return !q.Timestamp.Before(prev.Timestamp.Add(-time.Second))
}

// Candle is one OHLCV bar.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Validate enforces spec.md §3's OHLC shape invariants.
func (c Candle) Validate() error {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("candle %s: non-positive OHLC", c.Time)
	}
	if c.Volume < 0 {
		return fmt.Errorf("candle %s: negative volume", c.Time)
	}
	minOC := c.Open
	if c.Close < minOC {
		minOC = c.Close
	}
	maxOC := c.Open
	if c.Close > maxOC {
		maxOC = c.Close
	}
	if c.Low > minOC {
		return fmt.Errorf("candle %s: low %.8f above min(open,close) %.8f", c.Time, c.Low, minOC)
	}
	if c.High < maxOC {
		return fmt.Errorf("candle %s: high %.8f below max(open,close) %.8f", c.Time, c.High, maxOC)
	}
	return nil
}

// AggregateCandles rolls up a run of 1-minute candles into a single bar of a
// higher timeframe: open = first.Open, close = last.Close, high = max(High),
// low = min(Low), volume = sum(Volume).
func AggregateCandles(bucketStart time.Time, candles []Candle) Candle {
	if len(candles) == 0 {
		return Candle{Time: bucketStart}
	}
	out := Candle{
		Time:  bucketStart,
		Open:  candles[0].Open,
		Close: candles[len(candles)-1].Close,
		High:  candles[0].High,
		Low:   candles[0].Low,
	}
	for _, c := range candles {
		if c.High > out.High {
			out.High = c.High
		}
		if c.Low < out.Low {
			out.Low = c.Low
		}
		out.Volume += c.Volume
	}
	return out
}

// PriceLevel is a single rung of an order book.
type PriceLevel struct {
	Price  float64
	Size   float64
	Orders int // 0 when the upstream doesn't report order counts
}

// OrderBook is an N-level snapshot, bids descending, asks ascending.
type OrderBook struct {
	Symbol    string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// Spread returns asks[0].Price - bids[0].Price, or 0 if either side is empty.
func (b OrderBook) Spread() float64 {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price - b.Bids[0].Price
}

// Validate enforces the top-of-book crossing invariant.
func (b OrderBook) Validate() error {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return nil
	}
	if b.Bids[0].Price >= b.Asks[0].Price {
		return fmt.Errorf("orderbook %s: crossed book, bid %.8f >= ask %.8f", b.Symbol, b.Bids[0].Price, b.Asks[0].Price)
	}
	return nil
}

// AssetType classifies a symbol for source-selection purposes (spec.md §4.D).
type AssetType string

const (
	AssetStock     AssetType = "stock"
	AssetCrypto    AssetType = "crypto"
	AssetForex     AssetType = "forex"
	AssetCommodity AssetType = "commodity"
)

// SymbolBinding is one row of the static routing table resolved at startup.
type SymbolBinding struct {
	Symbol          string
	AssetType       AssetType
	PrimarySource   Source
	FallbackChain   []Source
	RESTOnly        bool
	WSEligible      bool
}
