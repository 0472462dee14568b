// Package stream implements the WebSocket Stream Manager (spec.md §4.C):
// one Manager per EODHD-WS endpoint (forex, us-quote, crypto), each holding
// at most one connection, subscribing its symbol set once on open, and
// running the DISCONNECTED → CONNECTING → SUBSCRIBED state machine with
// heartbeat timeout, exponential backoff reconnect, and session gating.
//
// This mirrors the teacher's gorilla/websocket client shape (one read-loop
// goroutine per connection, ReadDeadline-based heartbeat, explicit
// reconnect trigger) generalized from a single exchange socket to three
// session-gated endpoints sharing one state machine implementation.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/wargames-arena/marketfeed/internal/quote"
	"github.com/wargames-arena/marketfeed/internal/session"
)

// State is a node in the manager's connection state machine.
type State string

const (
	StateDisconnected   State = "disconnected"
	StateConnecting     State = "connecting"
	StateSubscribed      State = "subscribed"
	StateSessionPaused  State = "session_paused"
	StateAuthFailed     State = "auth_failed"
)

// Endpoint identifies one of EODHD-WS's three streams.
type Endpoint string

const (
	EndpointForex   Endpoint = "forex"
	EndpointUSQuote Endpoint = "us-quote"
	EndpointCrypto  Endpoint = "crypto"
)

const heartbeatTimeout = 60 * time.Second
const minBackoff = time.Second
const maxBackoff = 30 * time.Second

func (e Endpoint) sessionGroup() session.Group {
	switch e {
	case EndpointForex:
		return session.GroupForex
	case EndpointCrypto:
		return session.GroupCrypto
	default:
		return session.GroupEquity
	}
}

func (e Endpoint) wsURL(apiKey string) string {
	return fmt.Sprintf("wss://ws.eodhistoricaldata.com/ws/%s?api_token=%s", e, apiKey)
}

// Manager owns a single connection to one EODHD-WS endpoint.
type Manager struct {
	endpoint Endpoint
	apiKey   string
	symbols  []string
	dialer   *websocket.Dialer

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	backoff  time.Duration
	sessionOK bool

	quotes chan quote.Quote
	now    func() time.Time
}

// New creates a Manager for one endpoint. Call Run to start its lifecycle
// loop; quotes arrive on the channel returned by Quotes().
func New(endpoint Endpoint, apiKey string, symbols []string) *Manager {
	return &Manager{
		endpoint: endpoint,
		apiKey:   apiKey,
		symbols:  symbols,
		dialer:   &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		state:    StateDisconnected,
		backoff:  minBackoff,
		quotes:   make(chan quote.Quote, 256),
		now:      time.Now,
	}
}

// Quotes returns the channel normalized ticks are delivered on.
func (m *Manager) Quotes() <-chan quote.Quote { return m.quotes }

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// StateName and Endpoint satisfy statushttp's StreamStats interface.
func (m *Manager) StateName() string { return string(m.State()) }
func (m *Manager) Endpoint() string  { return string(m.endpoint) }

func (m *Manager) setState(s State) {
	m.mu.Lock()
	old := m.state
	m.state = s
	m.mu.Unlock()
	if old != s {
		log.Info().Str("endpoint", string(m.endpoint)).Str("from", string(old)).Str("to", string(s)).Msg("stream manager state change")
	}
}

// Run drives the manager's full lifecycle until ctx is canceled: session
// gating, connect, subscribe, read loop with heartbeat, reconnect with
// exponential backoff, forever — unless auth permanently fails.
func (m *Manager) Run(ctx context.Context) {
	sessionTicker := time.NewTicker(60 * time.Second)
	defer sessionTicker.Stop()

	m.evaluateSession()
	for {
		if m.State() == StateAuthFailed {
			log.Error().Str("endpoint", string(m.endpoint)).Msg("stream manager halted: permanent auth failure")
			return
		}

		if !m.sessionTradeable() {
			m.setState(StateSessionPaused)
			select {
			case <-ctx.Done():
				return
			case <-sessionTicker.C:
				m.evaluateSession()
				continue
			}
		}

		if err := m.connectAndSubscribe(ctx); err != nil {
			if isAuthFailure(err) {
				m.setState(StateAuthFailed)
				return
			}
			log.Warn().Err(err).Str("endpoint", string(m.endpoint)).Dur("backoff", m.backoff).Msg("stream connect failed, backing off")
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.backoff):
			}
			m.growBackoff()
			continue
		}
		m.backoff = minBackoff

		m.readLoop(ctx)

		select {
		case <-ctx.Done():
			return
		case <-sessionTicker.C:
			m.evaluateSession()
		default:
		}
	}
}

func (m *Manager) growBackoff() {
	m.backoff *= 2
	if m.backoff > maxBackoff {
		m.backoff = maxBackoff
	}
}

func (m *Manager) evaluateSession() {
	status := session.Evaluate(m.endpoint.sessionGroup(), m.now())
	m.mu.Lock()
	m.sessionOK = status.CanTrade
	m.mu.Unlock()
}

func (m *Manager) sessionTradeable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionOK
}

type authFailure struct{ msg string }

func (e authFailure) Error() string { return e.msg }

func isAuthFailure(err error) bool {
	_, ok := err.(authFailure)
	return ok
}

type subscribeMessage struct {
	Action  string `json:"action"`
	Symbols string `json:"symbols"`
}

func (m *Manager) connectAndSubscribe(ctx context.Context) error {
	m.setState(StateConnecting)
	conn, resp, err := m.dialer.DialContext(ctx, m.endpoint.wsURL(m.apiKey), nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == 401 || resp.StatusCode == 403) {
			return authFailure{msg: "eodhd-ws rejected api key"}
		}
		return fmt.Errorf("dial %s: %w", m.endpoint, err)
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	sub := subscribeMessage{Action: "subscribe", Symbols: strings.Join(m.symbols, ",")}
	data, _ := json.Marshal(sub)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe %s: %w", m.endpoint, err)
	}

	m.setState(StateSubscribed)
	return nil
}

func (m *Manager) readLoop(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		if m.conn != nil {
			m.conn.Close()
			m.conn = nil
		}
		m.mu.Unlock()
		m.setState(StateDisconnected)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		m.mu.Lock()
		conn := m.conn
		m.mu.Unlock()
		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(heartbeatTimeout))

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Str("endpoint", string(m.endpoint)).Msg("stream read error, will reconnect")
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if isAckMessage(data) {
			continue
		}
		q, ok := normalize(m.endpoint, data)
		if !ok {
			continue
		}
		select {
		case m.quotes <- q:
		case <-ctx.Done():
			return
		default:
			log.Warn().Str("endpoint", string(m.endpoint)).Msg("quote channel full, dropping tick")
		}
	}
}

// isAckMessage reports whether data is a subscribe ack/status frame rather
// than a tick, per spec.md §4.C: "skip status/ack messages by presence of a
// status_code or message field."
func isAckMessage(data []byte) bool {
	var probe struct {
		StatusCode *int    `json:"status_code"`
		Message    *string `json:"message"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.StatusCode != nil || probe.Message != nil
}

type fxTick struct {
	Symbol string  `json:"s"`
	Ask    float64 `json:"a"`
	Bid    float64 `json:"b"`
	Time   int64   `json:"t"`
	DayChg float64 `json:"dc"`
	DayDir float64 `json:"dd"`
}

type usQuoteTick struct {
	Symbol  string  `json:"s"`
	AskPrice float64 `json:"ap"`
	AskSize  float64 `json:"as"`
	BidPrice float64 `json:"bp"`
	BidSize  float64 `json:"bs"`
	Time     int64   `json:"t"`
}

type cryptoTick struct {
	Symbol string  `json:"s"`
	Price  float64 `json:"p"`
	Qty    float64 `json:"q"`
	Time   int64   `json:"t"`
	DayChg float64 `json:"dc"`
	DayDir float64 `json:"dd"`
}

// normalize parses one endpoint-specific tick shape into the common Quote
// type, tagging source=eodhd per spec.md §6.
func normalize(endpoint Endpoint, data []byte) (quote.Quote, bool) {
	switch endpoint {
	case EndpointForex:
		var t fxTick
		if err := json.Unmarshal(data, &t); err != nil || t.Symbol == "" {
			return quote.Quote{}, false
		}
		mid := (t.Bid + t.Ask) / 2
		return quote.Quote{
			Symbol: t.Symbol, Bid: t.Bid, Ask: t.Ask, Last: mid,
			Change: t.DayChg, Timestamp: time.UnixMilli(t.Time), Source: quote.SourceEODHD,
		}, true
	case EndpointUSQuote:
		var t usQuoteTick
		if err := json.Unmarshal(data, &t); err != nil || t.Symbol == "" {
			return quote.Quote{}, false
		}
		mid := (t.BidPrice + t.AskPrice) / 2
		return quote.Quote{
			Symbol: t.Symbol, Bid: t.BidPrice, BidSize: t.BidSize, Ask: t.AskPrice, AskSize: t.AskSize,
			Last: mid, Timestamp: time.UnixMilli(t.Time), Source: quote.SourceEODHD,
		}, true
	case EndpointCrypto:
		var t cryptoTick
		if err := json.Unmarshal(data, &t); err != nil || t.Symbol == "" {
			return quote.Quote{}, false
		}
		return quote.Quote{
			Symbol: t.Symbol, Bid: t.Price, Ask: t.Price, Last: t.Price, LastSize: t.Qty,
			Change: t.DayChg, Timestamp: time.UnixMilli(t.Time), Source: quote.SourceEODHD,
		}, true
	default:
		return quote.Quote{}, false
	}
}
