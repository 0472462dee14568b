// Package alpaca implements the providers.Adapter interface against
// Alpaca's market-data API (spec.md §6 Alpaca endpoints). Alpaca is
// key-gated: New returns a nil *Adapter when no credentials are configured,
// and callers are expected to skip registering it with the fallback chain
// rather than call through a disabled instance (spec.md §4.B: "disabled
// gracefully when unconfigured").
package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wargames-arena/marketfeed/internal/circuit"
	"github.com/wargames-arena/marketfeed/internal/providers"
	"github.com/wargames-arena/marketfeed/internal/quote"
	"github.com/wargames-arena/marketfeed/internal/ratelimit"
)

const defaultBaseURL = "https://data.alpaca.markets/v2"

// Adapter implements providers.Adapter for Alpaca. Order books are
// synthesized from NBBO since Alpaca's REST tier carries no L2 depth.
type Adapter struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
	limiter   *ratelimit.Limiter
	breaker   *circuit.Breaker
}

// New returns nil when apiKey or apiSecret is empty, so construction sites
// can do `if a := alpaca.New(...); a != nil { chain = append(chain, a) }`.
func New(apiKey, apiSecret string, limiter *ratelimit.Limiter, breaker *circuit.Breaker) *Adapter {
	if apiKey == "" || apiSecret == "" {
		log.Info().Msg("alpaca adapter disabled: no credentials configured")
		return nil
	}
	return &Adapter{
		baseURL:   defaultBaseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{Timeout: 10 * time.Second},
		limiter:   limiter,
		breaker:   breaker,
	}
}

func (a *Adapter) Name() quote.Source { return quote.SourceAlpaca }

func (a *Adapter) doGet(ctx context.Context, path string, out interface{}) *providers.Error {
	if a.limiter != nil && !a.limiter.ConsumeToken() {
		return providers.NewError(string(quote.SourceAlpaca), providers.KindRateLimit, "local token bucket depleted", nil)
	}

	callErr := a.breaker.Call(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("APCA-API-KEY-ID", a.apiKey)
		req.Header.Set("APCA-API-SECRET-KEY", a.apiSecret)
		resp, err := a.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return authError{status: resp.StatusCode}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
		}
		return json.Unmarshal(data, out)
	})
	if callErr != nil {
		var ae authError
		if fmtErr, ok := callErr.(authError); ok {
			ae = fmtErr
		}
		if ae.status != 0 {
			return providers.NewError(string(quote.SourceAlpaca), providers.KindAuth, "APCA credentials rejected", callErr)
		}
		kind := providers.KindNetwork
		if ctx.Err() != nil {
			kind = providers.KindTimeout
		}
		return providers.NewError(string(quote.SourceAlpaca), kind, "GET "+path, callErr)
	}
	return nil
}

type authError struct{ status int }

func (e authError) Error() string { return fmt.Sprintf("auth status %d", e.status) }

type latestQuoteResponse struct {
	Quote struct {
		AskPrice float64 `json:"ap"`
		AskSize  float64 `json:"as"`
		BidPrice float64 `json:"bp"`
		BidSize  float64 `json:"bs"`
		Time     string  `json:"t"`
	} `json:"quote"`
}

type latestTradeResponse struct {
	Trade struct {
		Price float64 `json:"p"`
		Size  float64 `json:"s"`
		Time  string  `json:"t"`
	} `json:"trade"`
}

type latestBarResponse struct {
	Bar struct {
		Open   float64 `json:"o"`
		High   float64 `json:"h"`
		Low    float64 `json:"l"`
		Close  float64 `json:"c"`
		Volume float64 `json:"v"`
		Time   string  `json:"t"`
	} `json:"bar"`
}

func (a *Adapter) GetQuote(ctx context.Context, symbol string) providers.Result[quote.Quote] {
	return providers.Timed(quote.SourceAlpaca, func() (quote.Quote, *providers.Error) {
		sym := strings.ToUpper(symbol)

		var nbbo latestQuoteResponse
		if err := a.doGet(ctx, fmt.Sprintf("/stocks/%s/quotes/latest", sym), &nbbo); err != nil {
			return quote.Quote{}, err
		}
		var trade latestTradeResponse
		if err := a.doGet(ctx, fmt.Sprintf("/stocks/%s/trades/latest", sym), &trade); err != nil {
			return quote.Quote{}, err
		}
		var bar latestBarResponse
		if err := a.doGet(ctx, fmt.Sprintf("/stocks/%s/bars/latest", sym), &bar); err != nil {
			return quote.Quote{}, err
		}

		ts, _ := time.Parse(time.RFC3339Nano, trade.Trade.Time)
		if ts.IsZero() {
			ts = time.Now()
		}
		q := quote.Quote{
			Symbol:    symbol,
			Bid:       nbbo.Quote.BidPrice,
			BidSize:   nbbo.Quote.BidSize,
			Ask:       nbbo.Quote.AskPrice,
			AskSize:   nbbo.Quote.AskSize,
			Last:      trade.Trade.Price,
			LastSize:  trade.Trade.Size,
			High:      bar.Bar.High,
			Low:       bar.Bar.Low,
			Open:      bar.Bar.Open,
			Volume:    bar.Bar.Volume,
			Timestamp: ts,
			Source:    quote.SourceAlpaca,
		}
		return q, nil
	})
}

func barTimeframe(tf providers.Timeframe) string {
	switch tf {
	case providers.TF1Min:
		return "1Min"
	case providers.TF5Min:
		return "5Min"
	case providers.TF15Min:
		return "15Min"
	case providers.TF1Hour:
		return "1Hour"
	case providers.TF1Day:
		return "1Day"
	default:
		return "1Min"
	}
}

type barsResponse struct {
	Bars []struct {
		Open   float64 `json:"o"`
		High   float64 `json:"h"`
		Low    float64 `json:"l"`
		Close  float64 `json:"c"`
		Volume float64 `json:"v"`
		Time   string  `json:"t"`
	} `json:"bars"`
}

func (a *Adapter) GetCandles(ctx context.Context, symbol string, tf providers.Timeframe, limit int) providers.Result[[]quote.Candle] {
	return providers.Timed(quote.SourceAlpaca, func() ([]quote.Candle, *providers.Error) {
		if limit <= 0 || limit > 1000 {
			limit = 200
		}
		sym := strings.ToUpper(symbol)
		path := fmt.Sprintf("/stocks/%s/bars?timeframe=%s&limit=%d", sym, barTimeframe(tf), limit)
		var resp barsResponse
		if err := a.doGet(ctx, path, &resp); err != nil {
			return nil, err
		}
		candles := make([]quote.Candle, 0, len(resp.Bars))
		for _, b := range resp.Bars {
			ts, _ := time.Parse(time.RFC3339Nano, b.Time)
			candles = append(candles, quote.Candle{
				Time: ts, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume,
			})
		}
		return candles, nil
	})
}

// GetOrderBook synthesizes a one-level book from the latest NBBO — Alpaca's
// REST tier carries no L2 depth, so this is the best Alpaca can offer.
func (a *Adapter) GetOrderBook(ctx context.Context, symbol string, levels int) providers.Result[quote.OrderBook] {
	return providers.Timed(quote.SourceAlpaca, func() (quote.OrderBook, *providers.Error) {
		sym := strings.ToUpper(symbol)
		var nbbo latestQuoteResponse
		if err := a.doGet(ctx, fmt.Sprintf("/stocks/%s/quotes/latest", sym), &nbbo); err != nil {
			return quote.OrderBook{}, err
		}
		ts, _ := time.Parse(time.RFC3339Nano, nbbo.Quote.Time)
		if ts.IsZero() {
			ts = time.Now()
		}
		book := quote.OrderBook{
			Symbol:    symbol,
			Timestamp: ts,
			Bids:      []quote.PriceLevel{{Price: nbbo.Quote.BidPrice, Size: nbbo.Quote.BidSize}},
			Asks:      []quote.PriceLevel{{Price: nbbo.Quote.AskPrice, Size: nbbo.Quote.AskSize}},
		}
		return book, nil
	})
}

func (a *Adapter) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var nbbo latestQuoteResponse
	if err := a.doGet(ctx, "/stocks/AAPL/quotes/latest", &nbbo); err != nil {
		log.Debug().Err(err).Msg("alpaca health probe failed")
		return false
	}
	return true
}
