// Package binance implements the providers.Adapter interface against
// Binance's public market-data REST API (spec.md §6 Binance endpoints).
// Candle intervals map 1:1 onto Binance's own interval vocabulary; real L2
// order books come from /depth — Binance is the one adapter in this pack
// that doesn't need to synthesize anything.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wargames-arena/marketfeed/internal/circuit"
	"github.com/wargames-arena/marketfeed/internal/providers"
	"github.com/wargames-arena/marketfeed/internal/quote"
	"github.com/wargames-arena/marketfeed/internal/ratelimit"
)

const defaultBaseURL = "https://api.binance.com/api/v3"

// Adapter implements providers.Adapter for Binance.
type Adapter struct {
	baseURL  string
	http     *http.Client
	limiter  *ratelimit.Limiter
	breaker  *circuit.Breaker
}

// New creates a Binance adapter. limiter and breaker are injected so the
// Provider (component D) can share a single Manager across adapters.
func New(limiter *ratelimit.Limiter, breaker *circuit.Breaker) *Adapter {
	return &Adapter{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		breaker: breaker,
	}
}

func (a *Adapter) Name() quote.Source { return quote.SourceBinance }

// normalizeSymbol strips the -USDT/-USD suffix conventions this pack's
// symbols use and produces Binance's bare concatenated pair form.
func normalizeSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	s = strings.TrimSuffix(s, "-USDT")
	s = strings.TrimSuffix(s, "-USD")
	if !strings.HasSuffix(s, "USDT") && !strings.HasSuffix(s, "USD") {
		s += "USDT"
	}
	return s
}

type ticker24h struct {
	Symbol             string `json:"symbol"`
	BidPrice           string `json:"bidPrice"`
	BidQty             string `json:"bidQty"`
	AskPrice           string `json:"askPrice"`
	AskQty             string `json:"askQty"`
	LastPrice          string `json:"lastPrice"`
	LastQty            string `json:"lastQty"`
	Volume             string `json:"volume"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	OpenPrice          string `json:"openPrice"`
	PrevClosePrice     string `json:"prevClosePrice"`
	CloseTime          int64  `json:"closeTime"`
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func (a *Adapter) doGet(ctx context.Context, path string) ([]byte, *providers.Error) {
	if a.limiter != nil && !a.limiter.ConsumeToken() {
		return nil, providers.NewError(string(quote.SourceBinance), providers.KindRateLimit, "local token bucket depleted", nil)
	}

	var body []byte
	callErr := a.breaker.Call(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
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
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
		}
		body = data
		return nil
	})
	if callErr != nil {
		kind := providers.KindNetwork
		if ctx.Err() != nil {
			kind = providers.KindTimeout
		}
		return nil, providers.NewError(string(quote.SourceBinance), kind, "GET "+path, callErr)
	}
	return body, nil
}

func (a *Adapter) GetQuote(ctx context.Context, symbol string) providers.Result[quote.Quote] {
	return providers.Timed(quote.SourceBinance, func() (quote.Quote, *providers.Error) {
		sym := normalizeSymbol(symbol)
		body, err := a.doGet(ctx, "/ticker/24hr?symbol="+sym)
		if err != nil {
			return quote.Quote{}, err
		}
		var t ticker24h
		if jsonErr := json.Unmarshal(body, &t); jsonErr != nil {
			return quote.Quote{}, providers.NewError(string(quote.SourceBinance), providers.KindParse, "ticker24h shape", jsonErr)
		}
		q := quote.Quote{
			Symbol:        symbol,
			Bid:           parseFloat(t.BidPrice),
			BidSize:       parseFloat(t.BidQty),
			Ask:           parseFloat(t.AskPrice),
			AskSize:       parseFloat(t.AskQty),
			Last:          parseFloat(t.LastPrice),
			LastSize:      parseFloat(t.LastQty),
			Volume:        parseFloat(t.Volume),
			Change:        parseFloat(t.PriceChange),
			ChangePercent: parseFloat(t.PriceChangePercent),
			High:          parseFloat(t.HighPrice),
			Low:           parseFloat(t.LowPrice),
			Open:          parseFloat(t.OpenPrice),
			PreviousClose: parseFloat(t.PrevClosePrice),
			Timestamp:     time.UnixMilli(t.CloseTime),
			Source:        quote.SourceBinance,
		}
		return q, nil
	})
}

// klineInterval maps the uniform Timeframe onto Binance's interval strings.
func klineInterval(tf providers.Timeframe) string {
	switch tf {
	case providers.TF1Min:
		return "1m"
	case providers.TF5Min:
		return "5m"
	case providers.TF15Min:
		return "15m"
	case providers.TF1Hour:
		return "1h"
	case providers.TF1Day:
		return "1d"
	default:
		return "1m"
	}
}

func (a *Adapter) GetCandles(ctx context.Context, symbol string, tf providers.Timeframe, limit int) providers.Result[[]quote.Candle] {
	return providers.Timed(quote.SourceBinance, func() ([]quote.Candle, *providers.Error) {
		if limit <= 0 || limit > 1000 {
			limit = 500
		}
		sym := normalizeSymbol(symbol)
		path := fmt.Sprintf("/klines?symbol=%s&interval=%s&limit=%d", sym, klineInterval(tf), limit)
		body, err := a.doGet(ctx, path)
		if err != nil {
			return nil, err
		}
		var raw [][]interface{}
		if jsonErr := json.Unmarshal(body, &raw); jsonErr != nil {
			return nil, providers.NewError(string(quote.SourceBinance), providers.KindParse, "klines shape", jsonErr)
		}
		candles := make([]quote.Candle, 0, len(raw))
		for _, row := range raw {
			if len(row) < 6 {
				continue
			}
			openTimeMs, _ := row[0].(float64)
			o, _ := strconv.ParseFloat(row[1].(string), 64)
			h, _ := strconv.ParseFloat(row[2].(string), 64)
			l, _ := strconv.ParseFloat(row[3].(string), 64)
			c, _ := strconv.ParseFloat(row[4].(string), 64)
			v, _ := strconv.ParseFloat(row[5].(string), 64)
			candles = append(candles, quote.Candle{
				Time: time.UnixMilli(int64(openTimeMs)), Open: o, High: h, Low: l, Close: c, Volume: v,
			})
		}
		return candles, nil
	})
}

type depthResponse struct {
	Bids [][2]string `json:"bids"`
	Asks [][2]string `json:"asks"`
}

func (a *Adapter) GetOrderBook(ctx context.Context, symbol string, levels int) providers.Result[quote.OrderBook] {
	return providers.Timed(quote.SourceBinance, func() (quote.OrderBook, *providers.Error) {
		if levels <= 0 {
			levels = 10
		}
		sym := normalizeSymbol(symbol)
		path := fmt.Sprintf("/depth?symbol=%s&limit=%d", sym, levels)
		body, err := a.doGet(ctx, path)
		if err != nil {
			return quote.OrderBook{}, err
		}
		var d depthResponse
		if jsonErr := json.Unmarshal(body, &d); jsonErr != nil {
			return quote.OrderBook{}, providers.NewError(string(quote.SourceBinance), providers.KindParse, "depth shape", jsonErr)
		}
		book := quote.OrderBook{Symbol: symbol, Timestamp: time.Now()}
		for _, lvl := range d.Bids {
			book.Bids = append(book.Bids, quote.PriceLevel{Price: parseFloat(lvl[0]), Size: parseFloat(lvl[1])})
		}
		for _, lvl := range d.Asks {
			book.Asks = append(book.Asks, quote.PriceLevel{Price: parseFloat(lvl[0]), Size: parseFloat(lvl[1])})
		}
		return book, nil
	})
}

func (a *Adapter) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := a.doGet(ctx, "/ping")
	if err != nil {
		log.Debug().Err(err).Msg("binance health probe failed")
		return false
	}
	return true
}
