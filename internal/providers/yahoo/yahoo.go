// Package yahoo implements the providers.Adapter interface against Yahoo
// Finance's unofficial chart endpoint (spec.md §6 Yahoo endpoints). Yahoo
// never serves a real order book, so GetOrderBook always returns a
// Success:false, error-free Result — callers treat that as "not supported by
// this source" rather than a failure to be retried.
package yahoo

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

const defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// Adapter implements providers.Adapter for Yahoo Finance.
type Adapter struct {
	baseURL string
	http    *http.Client
	limiter *ratelimit.Limiter
	breaker *circuit.Breaker
}

func New(limiter *ratelimit.Limiter, breaker *circuit.Breaker) *Adapter {
	return &Adapter{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		breaker: breaker,
	}
}

func (a *Adapter) Name() quote.Source { return quote.SourceYahoo }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice     float64 `json:"regularMarketPrice"`
				PreviousClose          float64 `json:"previousClose"`
				RegularMarketDayHigh   float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow    float64 `json:"regularMarketDayLow"`
				RegularMarketVolume    float64 `json:"regularMarketVolume"`
				RegularMarketOpen      float64 `json:"regularMarketOpen"`
				RegularMarketTime      int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (a *Adapter) doGet(ctx context.Context, path string) (*chartResponse, *providers.Error) {
	if a.limiter != nil && !a.limiter.ConsumeToken() {
		return nil, providers.NewError(string(quote.SourceYahoo), providers.KindRateLimit, "local token bucket depleted", nil)
	}

	var parsed chartResponse
	callErr := a.breaker.Call(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0")
		resp, err := a.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
		}
		if err := json.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("chart response shape: %w", err)
		}
		return nil
	})
	if callErr != nil {
		kind := providers.KindNetwork
		if ctx.Err() != nil {
			kind = providers.KindTimeout
		}
		return nil, providers.NewError(string(quote.SourceYahoo), kind, "GET "+path, callErr)
	}
	if parsed.Chart.Error != nil {
		return nil, providers.NewError(string(quote.SourceYahoo), providers.KindParse, parsed.Chart.Error.Description, nil)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, providers.NewError(string(quote.SourceYahoo), providers.KindParse, "empty chart result", nil)
	}
	return &parsed, nil
}

func (a *Adapter) GetQuote(ctx context.Context, symbol string) providers.Result[quote.Quote] {
	return providers.Timed(quote.SourceYahoo, func() (quote.Quote, *providers.Error) {
		sym := strings.ToUpper(symbol)
		path := fmt.Sprintf("/%s?interval=1m&range=1d", sym)
		parsed, err := a.doGet(ctx, path)
		if err != nil {
			return quote.Quote{}, err
		}
		meta := parsed.Chart.Result[0].Meta
		q := quote.Quote{
			Symbol:        symbol,
			Last:          meta.RegularMarketPrice,
			Bid:           meta.RegularMarketPrice,
			Ask:           meta.RegularMarketPrice,
			High:          meta.RegularMarketDayHigh,
			Low:           meta.RegularMarketDayLow,
			Open:          meta.RegularMarketOpen,
			PreviousClose: meta.PreviousClose,
			Volume:        meta.RegularMarketVolume,
			Timestamp:     time.Unix(meta.RegularMarketTime, 0),
			Source:        quote.SourceYahoo,
		}
		if meta.PreviousClose > 0 {
			q.Change = q.Last - meta.PreviousClose
			q.ChangePercent = q.Change / meta.PreviousClose * 100
		}
		return q, nil
	})
}

// rangeAndInterval maps the uniform Timeframe onto Yahoo's range/interval
// query parameter pair; Yahoo needs both, not just an interval.
func rangeAndInterval(tf providers.Timeframe, limit int) (string, string) {
	switch tf {
	case providers.TF1Min:
		return "1d", "1m"
	case providers.TF5Min:
		return "5d", "5m"
	case providers.TF15Min:
		return "5d", "15m"
	case providers.TF1Hour:
		return "1mo", "1h"
	case providers.TF1Day:
		return "1y", "1d"
	default:
		return "1d", "1m"
	}
}

func (a *Adapter) GetCandles(ctx context.Context, symbol string, tf providers.Timeframe, limit int) providers.Result[[]quote.Candle] {
	return providers.Timed(quote.SourceYahoo, func() ([]quote.Candle, *providers.Error) {
		rng, interval := rangeAndInterval(tf, limit)
		sym := strings.ToUpper(symbol)
		path := fmt.Sprintf("/%s?interval=%s&range=%s", sym, interval, rng)
		parsed, err := a.doGet(ctx, path)
		if err != nil {
			return nil, err
		}
		result := parsed.Chart.Result[0]
		if len(result.Indicators.Quote) == 0 {
			return nil, providers.NewError(string(quote.SourceYahoo), providers.KindParse, "missing indicators.quote", nil)
		}
		iq := result.Indicators.Quote[0]
		n := len(result.Timestamp)
		candles := make([]quote.Candle, 0, n)
		for i := 0; i < n; i++ {
			if i >= len(iq.Close) || iq.Close[i] == 0 {
				continue // Yahoo pads gaps (pre-market, halts) with nulls/zeros
			}
			candles = append(candles, quote.Candle{
				Time:   time.Unix(result.Timestamp[i], 0),
				Open:   iq.Open[i],
				High:   iq.High[i],
				Low:    iq.Low[i],
				Close:  iq.Close[i],
				Volume: iq.Volume[i],
			})
		}
		if limit > 0 && len(candles) > limit {
			candles = candles[len(candles)-limit:]
		}
		return candles, nil
	})
}

// GetOrderBook always reports unsupported: Yahoo's public endpoints don't
// expose L2 depth for any asset class this pack routes to it.
func (a *Adapter) GetOrderBook(ctx context.Context, symbol string, levels int) providers.Result[quote.OrderBook] {
	return providers.Result[quote.OrderBook]{
		Success: false,
		Source:  quote.SourceYahoo,
	}
}

func (a *Adapter) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := a.doGet(ctx, "/AAPL?interval=1d&range=1d")
	if err != nil {
		log.Debug().Err(err).Msg("yahoo health probe failed")
		return false
	}
	return true
}
