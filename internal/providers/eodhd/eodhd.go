// Package eodhd implements the providers.Adapter interface against EODHD's
// REST API (spec.md §6 EODHD REST endpoints). This is the REST half of the
// EODHD surface: the streaming half lives in internal/stream, which shares
// this package's key and symbol-normalization conventions but owns its own
// websocket lifecycle. REST serves two roles — quotes/candles for symbols
// with no WS coverage (oil/gas/copper futures) and the universal last-resort
// fallback (spec.md §4.D).
package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wargames-arena/marketfeed/internal/circuit"
	"github.com/wargames-arena/marketfeed/internal/providers"
	"github.com/wargames-arena/marketfeed/internal/quote"
	"github.com/wargames-arena/marketfeed/internal/ratelimit"
)

const defaultBaseURL = "https://eodhd.com/api"

// Adapter implements providers.Adapter for EODHD's REST surface.
type Adapter struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *ratelimit.Limiter
	breaker *circuit.Breaker
}

// New returns nil when apiKey is empty; see alpaca.New for the same
// self-disabling convention.
func New(apiKey string, limiter *ratelimit.Limiter, breaker *circuit.Breaker) *Adapter {
	if apiKey == "" {
		log.Info().Msg("eodhd adapter disabled: no api key configured")
		return nil
	}
	return &Adapter{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		breaker: breaker,
	}
}

func (a *Adapter) Name() quote.Source { return quote.SourceEODHD }

func (a *Adapter) doGet(ctx context.Context, path string, query url.Values) ([]byte, *providers.Error) {
	if a.limiter != nil && !a.limiter.ConsumeToken() {
		return nil, providers.NewError(string(quote.SourceEODHD), providers.KindRateLimit, "local token bucket depleted", nil)
	}
	query.Set("api_token", a.apiKey)
	query.Set("fmt", "json")
	fullURL := a.baseURL + path + "?" + query.Encode()

	var body []byte
	callErr := a.breaker.Call(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return err
		}
		resp, err := a.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("auth rejected: %s", string(data))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
		}
		body = data
		return nil
	})
	if callErr != nil {
		kind := providers.KindNetwork
		switch {
		case ctx.Err() != nil:
			kind = providers.KindTimeout
		case strings.Contains(callErr.Error(), "auth rejected"):
			kind = providers.KindAuth
		}
		return nil, providers.NewError(string(quote.SourceEODHD), kind, "GET "+path, callErr)
	}
	return body, nil
}

type realtimeResponse struct {
	Code          string  `json:"code"`
	Timestamp     int64   `json:"timestamp"`
	GmtOffset     int64   `json:"gmtoffset"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	Volume        float64 `json:"volume"`
	PreviousClose float64 `json:"previousClose"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_p"`
	Bid           float64 `json:"bid"`
	Ask           float64 `json:"ask"`
}

func (a *Adapter) GetQuote(ctx context.Context, symbol string) providers.Result[quote.Quote] {
	return providers.Timed(quote.SourceEODHD, func() (quote.Quote, *providers.Error) {
		body, err := a.doGet(ctx, "/real-time/"+strings.ToUpper(symbol), url.Values{})
		if err != nil {
			return quote.Quote{}, err
		}
		var r realtimeResponse
		if jsonErr := json.Unmarshal(body, &r); jsonErr != nil {
			return quote.Quote{}, providers.NewError(string(quote.SourceEODHD), providers.KindParse, "real-time shape", jsonErr)
		}
		bid, ask := r.Bid, r.Ask
		if bid == 0 {
			bid = r.Close
		}
		if ask == 0 {
			ask = r.Close
		}
		q := quote.Quote{
			Symbol:        symbol,
			Bid:           bid,
			Ask:           ask,
			Last:          r.Close,
			High:          r.High,
			Low:           r.Low,
			Open:          r.Open,
			PreviousClose: r.PreviousClose,
			Change:        r.Change,
			ChangePercent: r.ChangePercent,
			Volume:        r.Volume,
			Timestamp:     time.Unix(r.Timestamp, 0),
			Source:        quote.SourceEODHD,
		}
		return q, nil
	})
}

// intradayInterval maps the uniform Timeframe onto EODHD's interval
// vocabulary; EODHD has no 1d intraday interval, so TF1Day falls back to 1h.
func intradayInterval(tf providers.Timeframe) string {
	switch tf {
	case providers.TF1Min:
		return "1m"
	case providers.TF5Min:
		return "5m"
	case providers.TF15Min, providers.TF1Hour, providers.TF1Day:
		return "1h"
	default:
		return "1m"
	}
}

type intradayRow struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (a *Adapter) GetCandles(ctx context.Context, symbol string, tf providers.Timeframe, limit int) providers.Result[[]quote.Candle] {
	return providers.Timed(quote.SourceEODHD, func() ([]quote.Candle, *providers.Error) {
		q := url.Values{"interval": {intradayInterval(tf)}}
		body, err := a.doGet(ctx, "/intraday/"+strings.ToUpper(symbol), q)
		if err != nil {
			return nil, err
		}
		var rows []intradayRow
		if jsonErr := json.Unmarshal(body, &rows); jsonErr != nil {
			return nil, providers.NewError(string(quote.SourceEODHD), providers.KindParse, "intraday shape", jsonErr)
		}
		candles := make([]quote.Candle, 0, len(rows))
		for _, row := range rows {
			candles = append(candles, quote.Candle{
				Time: time.Unix(row.Timestamp, 0), Open: row.Open, High: row.High, Low: row.Low, Close: row.Close, Volume: row.Volume,
			})
		}
		if limit > 0 && len(candles) > limit {
			candles = candles[len(candles)-limit:]
		}
		return candles, nil
	})
}

// GetOrderBook always reports unsupported: EODHD REST carries no L2 depth.
func (a *Adapter) GetOrderBook(ctx context.Context, symbol string, levels int) providers.Result[quote.OrderBook] {
	return providers.Result[quote.OrderBook]{Success: false, Source: quote.SourceEODHD}
}

func (a *Adapter) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := a.doGet(ctx, "/real-time/AAPL.US", url.Values{})
	if err != nil {
		log.Debug().Err(err).Msg("eodhd health probe failed")
		return false
	}
	return true
}
