// wsStream is the concrete Stream implementation: a gorilla/websocket
// connection to the arena's event-stream endpoint, framed as
// {"event": "...", "data": ...} messages — the JSON subset of Socket.IO's
// wire protocol this system actually needs. Reconnection is unbounded with
// 1-5s jittered backoff (spec.md §4.M); handlers registered with On stay
// registered across reconnects, and no subscribe message is sent to the
// server on reconnect.
package arena

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type wsStream struct {
	url    string
	dialer *websocket.Dialer

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	handlers  map[EventName]Handler
}

// NewWebSocketStream creates a Stream backed by a single websocket
// connection to url.
func NewWebSocketStream(url string) Stream {
	return &wsStream{
		url:      url,
		dialer:   &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		handlers: make(map[EventName]Handler),
	}
}

func (s *wsStream) On(event EventName, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = handler
}

func (s *wsStream) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *wsStream) Emit(event EventName, payload interface{}) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return errNotConnected
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := envelope{Event: event, Data: data}
	out, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, out)
}

var errNotConnected = &notConnectedErr{}

type notConnectedErr struct{}

func (*notConnectedErr) Error() string { return "arena stream not connected" }

// Connect dials once. On success it starts the read loop and returns nil;
// on failure it starts the reconnect loop in the background and returns the
// dial error, so callers can tell immediately whether the initial dial
// worked; all subsequent reconnects happen in the background.
func (s *wsStream) Connect(ctx context.Context) error {
	if err := s.dial(ctx); err != nil {
		go s.reconnectLoop(ctx)
		return err
	}
	go s.readLoop(ctx)
	return nil
}

func (s *wsStream) dial(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *wsStream) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *wsStream) readLoop(ctx context.Context) {
	for {
		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("arena stream read error, reconnecting")
			s.mu.Lock()
			s.connected = false
			s.conn = nil
			s.mu.Unlock()
			go s.reconnectLoop(ctx)
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		s.dispatch(env)
	}
}

func (s *wsStream) dispatch(env envelope) {
	s.mu.RLock()
	handler, ok := s.handlers[env.Event]
	s.mu.RUnlock()
	if !ok {
		return
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return
	}
	handler(payload)
}

// reconnectLoop retries with jittered 1-5s backoff, unbounded, per spec.md
// §4.M's "Socket.IO-style unbounded reconnection with 1-5s backoff;
// re-subscribe on each reconnect." Re-subscription here is implicit: the
// handler map is never cleared on disconnect, so readLoop dispatches
// normally the instant the new connection starts delivering events.
func (s *wsStream) reconnectLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		delay := time.Duration(1000+rand.Intn(4000)) * time.Millisecond
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if err := s.dial(ctx); err != nil {
			log.Warn().Err(err).Msg("arena stream reconnect failed")
			continue
		}
		log.Info().Msg("arena stream reconnected")
		go s.readLoop(ctx)
		return
	}
}
