package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wargames-arena/marketfeed/internal/circuit"
	"github.com/wargames-arena/marketfeed/internal/providers"
	"github.com/wargames-arena/marketfeed/internal/quote"
)

func newTestAdapter(srv *httptest.Server) *Adapter {
	return &Adapter{
		baseURL: srv.URL,
		http:    &http.Client{Timeout: 2 * time.Second},
		breaker: circuit.New(circuit.Config{}),
	}
}

func TestNormalizeSymbol_AddsUSDTWhenNoQuoteSuffix(t *testing.T) {
	assert.Equal(t, "BTCUSDT", normalizeSymbol("BTC"))
}

func TestNormalizeSymbol_StripsDashedUSDSuffix(t *testing.T) {
	assert.Equal(t, "ETHUSD", normalizeSymbol("ETH-USD"))
}

func TestNormalizeSymbol_LeavesBareUSDTAlone(t *testing.T) {
	assert.Equal(t, "BTCUSDT", normalizeSymbol("BTCUSDT"))
}

func TestAdapter_GetQuote_ParsesTicker24h(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ticker/24hr", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"BTCUSDT","bidPrice":"64999.0","bidQty":"0.5","askPrice":"65001.0","askQty":"0.4","lastPrice":"65000.0","lastQty":"0.1","volume":"1200.5","priceChange":"100.0","priceChangePercent":"0.15","highPrice":"65500.0","lowPrice":"64000.0","openPrice":"64900.0","prevClosePrice":"64800.0","closeTime":1690000000000}`))
	}))
	defer srv.Close()

	a := newTestAdapter(srv)
	res := a.GetQuote(context.Background(), "BTC-USD")
	require.True(t, res.Success)
	assert.Equal(t, 65000.0, res.Data.Last)
	assert.Equal(t, quote.SourceBinance, res.Data.Source)
}

func TestAdapter_GetQuote_NonOKStatusReportsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := newTestAdapter(srv)
	res := a.GetQuote(context.Background(), "BTCUSDT")
	assert.False(t, res.Success)
	assert.Equal(t, providers.KindNetwork, res.Err.Kind)
}

func TestAdapter_GetQuote_MalformedBodyReportsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	a := newTestAdapter(srv)
	res := a.GetQuote(context.Background(), "BTCUSDT")
	assert.False(t, res.Success)
	assert.Equal(t, providers.KindParse, res.Err.Kind)
}

func TestAdapter_GetCandles_ParsesKlineRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		w.Write([]byte(`[[1690000000000,"100.0","105.0","95.0","102.0","1000.0",1690003600000,"0","0","0","0","0"]]`))
	}))
	defer srv.Close()

	a := newTestAdapter(srv)
	res := a.GetCandles(context.Background(), "BTCUSDT", providers.TF1Hour, 1)
	require.True(t, res.Success)
	require.Len(t, res.Data, 1)
	assert.Equal(t, 100.0, res.Data[0].Open)
	assert.Equal(t, 102.0, res.Data[0].Close)
}

func TestAdapter_GetOrderBook_ParsesBidsAndAsks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bids":[["64999.0","0.5"]],"asks":[["65001.0","0.4"]]}`))
	}))
	defer srv.Close()

	a := newTestAdapter(srv)
	res := a.GetOrderBook(context.Background(), "BTCUSDT", 10)
	require.True(t, res.Success)
	require.Len(t, res.Data.Bids, 1)
	require.Len(t, res.Data.Asks, 1)
	assert.Equal(t, 64999.0, res.Data.Bids[0].Price)
}

func TestAdapter_IsHealthy_TrueOnSuccessfulPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	a := newTestAdapter(srv)
	assert.True(t, a.IsHealthy(context.Background()))
}

func TestAdapter_IsHealthy_FalseWhenUnreachable(t *testing.T) {
	a := &Adapter{baseURL: "http://127.0.0.1:1", http: &http.Client{Timeout: time.Second}, breaker: circuit.New(circuit.Config{})}
	assert.False(t, a.IsHealthy(context.Background()))
}
