// Market Data Hub (spec.md §4.E): a single-instance distributor sitting
// between Provider and consumers, collapsing N subscribers per symbol into
// one upstream feed. Spec.md §5 models this as a single-threaded
// cooperative event loop; here that translates to one goroutine selecting
// over Provider events and separate subscribe and unsubscribe channels,
// ending when its ctx is cancelled, so there is never a data race on the
// subscriber map despite many goroutines calling Subscribe concurrently.
package hub

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/wargames-arena/marketfeed/internal/quote"
)

// Handler receives delivered quotes. Per spec.md §4.E, handlers must not
// block or perform I/O; a panicking handler is isolated so it cannot stall
// other subscribers.
type Handler func(q quote.Quote)

type subscriber struct {
	id               string
	arenaParticipant bool
	handler          Handler
}

type symbolState struct {
	current      quote.Quote
	hasCurrent   bool
	subscribers  map[string]subscriber
}

type subscribeCmd struct {
	symbol           string
	id               string
	arenaParticipant bool
	handler          Handler
}

type unsubscribeCmd struct {
	symbol string
	id     string
}

// Hub fans a single Provider event stream out to per-symbol subscribers.
type Hub struct {
	provider *Provider

	symbols map[string]*symbolState

	subscribeCh   chan subscribeCmd
	unsubscribeCh chan unsubscribeCmd
	rejections    atomic.Int64
}

// NewHub creates a Hub bound to a Provider. Call Run to start its command
// loop; Subscribe/Unsubscribe are safe to call from any goroutine before or
// after Run starts (they block on the command channel until the loop reads
// them, which spec.md §5 requires to "take effect before the next quote
// event").
func NewHub(provider *Provider) *Hub {
	return &Hub{
		provider:      provider,
		symbols:       make(map[string]*symbolState),
		subscribeCh:   make(chan subscribeCmd),
		unsubscribeCh: make(chan unsubscribeCmd),
	}
}

// Subscribe registers a handler for symbol. If a cached current quote
// exists, it's delivered immediately (the "late subscriber" snapshot from
// spec.md §4.E) before the subscription is live for future fan-out.
//
// A subscription to a symbol listed in Config.ArenaSymbols (spec.md §6) is
// always treated as arena-participant, regardless of the arenaParticipant
// argument — those symbols must never deliver a simulated quote to anyone.
func (h *Hub) Subscribe(symbol, id string, arenaParticipant bool, handler Handler) {
	h.provider.Subscribe(symbol)
	arenaParticipant = arenaParticipant || h.provider.IsArenaSymbol(symbol)
	h.subscribeCh <- subscribeCmd{symbol: symbol, id: id, arenaParticipant: arenaParticipant, handler: handler}
}

// Unsubscribe removes a subscriber. When it was the last subscriber for
// symbol, the Provider stops polling that symbol.
func (h *Hub) Unsubscribe(symbol, id string) {
	h.unsubscribeCh <- unsubscribeCmd{symbol: symbol, id: id}
}

// Run is the Hub's single command loop: it owns symbols exclusively and is
// the only goroutine that ever touches it, satisfying spec.md §3's
// ownership rule ("the Hub exclusively owns the current quote per symbol").
func (h *Hub) Run(ctx context.Context) {
	events := h.provider.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-h.subscribeCh:
			h.handleSubscribe(cmd)
		case cmd := <-h.unsubscribeCh:
			h.handleUnsubscribe(cmd)
		case evt := <-events:
			h.handleQuote(evt.Quote)
		}
	}
}

func (h *Hub) handleSubscribe(cmd subscribeCmd) {
	s, ok := h.symbols[cmd.symbol]
	if !ok {
		s = &symbolState{subscribers: make(map[string]subscriber)}
		h.symbols[cmd.symbol] = s
	}
	s.subscribers[cmd.id] = subscriber{id: cmd.id, arenaParticipant: cmd.arenaParticipant, handler: cmd.handler}

	if s.hasCurrent && allowed(s.current, cmd.arenaParticipant) {
		h.deliver(cmd.handler, s.current)
	}
}

func (h *Hub) handleUnsubscribe(cmd unsubscribeCmd) {
	s, ok := h.symbols[cmd.symbol]
	if !ok {
		return
	}
	delete(s.subscribers, cmd.id)
	if len(s.subscribers) == 0 {
		h.provider.Unsubscribe(cmd.symbol)
	}
}

func (h *Hub) handleQuote(q quote.Quote) {
	s, ok := h.symbols[q.Symbol]
	if !ok {
		return
	}
	s.current = q
	s.hasCurrent = true

	for _, sub := range s.subscribers {
		if !allowed(q, sub.arenaParticipant) {
			h.rejections.Add(1)
			log.Debug().Str("symbol", q.Symbol).Str("subscriber", sub.id).Msg("arena guard rejected simulated quote")
			continue
		}
		h.deliver(sub.handler, q)
	}
}

// deliver invokes a subscriber's handler with panic isolation, per spec.md
// §7's subscriber_handler error kind: "isolated via try/catch; other
// subscribers unaffected."
func (h *Hub) deliver(handler Handler, q quote.Quote) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("symbol", q.Symbol).Msg("subscriber handler panicked, isolating")
		}
	}()
	handler(q)
}

// RejectionCount reports how many simulated quotes the Arena Guard has
// dropped so far, for telemetry. Safe to call from any goroutine — e.g.
// internal/statushttp's HTTP handler goroutine, separate from Run's command
// loop goroutine that increments it.
func (h *Hub) RejectionCount() int64 { return h.rejections.Load() }
