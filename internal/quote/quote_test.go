package quote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuote_Validate_RejectsCrossedBidAsk(t *testing.T) {
	q := Quote{Symbol: "AAPL", Bid: 101, Ask: 100, Last: 100.5, Source: SourceYahoo}
	assert.Error(t, q.Validate())
}

func TestQuote_Validate_RejectsNonPositivePrices(t *testing.T) {
	q := Quote{Symbol: "AAPL", Bid: 0, Ask: 100, Last: 100, Source: SourceYahoo}
	assert.Error(t, q.Validate())
}

func TestQuote_Validate_RejectsMissingSource(t *testing.T) {
	q := Quote{Symbol: "AAPL", Bid: 99, Ask: 100, Last: 100}
	assert.Error(t, q.Validate())
}

func TestQuote_Validate_AcceptsWellFormedQuote(t *testing.T) {
	q := Quote{Symbol: "AAPL", Bid: 99, Ask: 100, Last: 99.5, Source: SourceYahoo}
	assert.NoError(t, q.Validate())
}

func TestQuote_MonotonicWith_DifferentSymbolAlwaysOK(t *testing.T) {
	now := time.Now()
	a := Quote{Symbol: "AAPL", Source: SourceYahoo, Timestamp: now}
	b := Quote{Symbol: "MSFT", Source: SourceYahoo, Timestamp: now.Add(-time.Hour)}
	assert.True(t, a.MonotonicWith(b))
}

func TestQuote_MonotonicWith_AllowsOneSecondBackwardSlip(t *testing.T) {
	now := time.Now()
	prev := Quote{Symbol: "AAPL", Source: SourceYahoo, Timestamp: now}
	next := Quote{Symbol: "AAPL", Source: SourceYahoo, Timestamp: now.Add(-900 * time.Millisecond)}
	assert.True(t, next.MonotonicWith(prev))
}

func TestQuote_MonotonicWith_RejectsLargeBackwardSlip(t *testing.T) {
	now := time.Now()
	prev := Quote{Symbol: "AAPL", Source: SourceYahoo, Timestamp: now}
	next := Quote{Symbol: "AAPL", Source: SourceYahoo, Timestamp: now.Add(-5 * time.Second)}
	assert.False(t, next.MonotonicWith(prev))
}

func TestCandle_Validate_RejectsLowAboveMinOpenClose(t *testing.T) {
	c := Candle{Time: time.Now(), Open: 100, High: 105, Low: 101, Close: 102}
	assert.Error(t, c.Validate())
}

func TestCandle_Validate_RejectsHighBelowMaxOpenClose(t *testing.T) {
	c := Candle{Time: time.Now(), Open: 100, High: 101, Low: 95, Close: 103}
	assert.Error(t, c.Validate())
}

func TestCandle_Validate_AcceptsWellFormedCandle(t *testing.T) {
	c := Candle{Time: time.Now(), Open: 100, High: 105, Low: 95, Close: 102}
	assert.NoError(t, c.Validate())
}

func TestCandle_Validate_RejectsNegativeVolume(t *testing.T) {
	c := Candle{Time: time.Now(), Open: 100, High: 105, Low: 95, Close: 102, Volume: -1}
	assert.Error(t, c.Validate())
}

func TestAggregateCandles_EmptyReturnsZeroValueAtBucketStart(t *testing.T) {
	start := time.Now()
	out := AggregateCandles(start, nil)
	assert.Equal(t, start, out.Time)
	assert.Equal(t, 0.0, out.Open)
}

func TestAggregateCandles_RollsUpOHLCV(t *testing.T) {
	start := time.Now()
	candles := []Candle{
		{Open: 100, High: 102, Low: 99, Close: 101, Volume: 10},
		{Open: 101, High: 105, Low: 100, Close: 104, Volume: 20},
		{Open: 104, High: 106, Low: 103, Close: 103, Volume: 15},
	}
	out := AggregateCandles(start, candles)
	assert.Equal(t, 100.0, out.Open)
	assert.Equal(t, 103.0, out.Close)
	assert.Equal(t, 106.0, out.High)
	assert.Equal(t, 99.0, out.Low)
	assert.Equal(t, 45.0, out.Volume)
}

func TestOrderBook_Spread_ZeroWhenEitherSideEmpty(t *testing.T) {
	ob := OrderBook{Symbol: "AAPL"}
	assert.Equal(t, 0.0, ob.Spread())
}

func TestOrderBook_Spread_ComputesTopOfBookGap(t *testing.T) {
	ob := OrderBook{
		Bids: []PriceLevel{{Price: 99.5, Size: 10}},
		Asks: []PriceLevel{{Price: 100.0, Size: 10}},
	}
	assert.InDelta(t, 0.5, ob.Spread(), 0.0001)
}

func TestOrderBook_Validate_RejectsCrossedBook(t *testing.T) {
	ob := OrderBook{
		Symbol: "AAPL",
		Bids:   []PriceLevel{{Price: 101, Size: 10}},
		Asks:   []PriceLevel{{Price: 100, Size: 10}},
	}
	assert.Error(t, ob.Validate())
}

func TestOrderBook_Validate_AllowsEmptySides(t *testing.T) {
	ob := OrderBook{Symbol: "AAPL"}
	assert.NoError(t, ob.Validate())
}
