// Arena Guard (spec.md §4.N): the distribution-edge invariant that no
// simulated quote ever reaches an arena-participant subscriber.
package hub

import "github.com/wargames-arena/marketfeed/internal/quote"

// allowed reports whether q may be delivered to a subscriber flagged
// arenaParticipant. Non-arena subscribers bypass this check entirely.
func allowed(q quote.Quote, arenaParticipant bool) bool {
	if !arenaParticipant {
		return true
	}
	return q.Source != quote.SourceSimulated
}
