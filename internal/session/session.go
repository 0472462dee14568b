// Package session implements the Session Clock (spec.md §4.F): a pure,
// stateless predicate over wall-clock UTC answering whether a given asset
// group's market is open, and how volatile that session typically is.
// Nothing here reads real-time data or blocks — it is pure enough to call
// from a hot path without a mutex.
package session

import "time"

// State is one of the four market phases a session predicate can report.
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
	StatePre    State = "pre"
	StatePost   State = "post"
)

// Group is the asset-class grouping a session predicate is evaluated for.
type Group string

const (
	GroupForex     Group = "forex"
	GroupEquity    Group = "equity"
	GroupCrypto    Group = "crypto"
	GroupCommodity Group = "commodity"
)

// Status is the full answer returned by Evaluate.
type Status struct {
	State                 State
	CanTrade              bool
	SessionName           string
	VolatilityMultiplier  float64
}

var est = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// Fall back to a fixed EST offset so a container without a tzdata
		// package still gets usable (if DST-naive) session gating.
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// Evaluate returns the current session Status for the given asset group at
// instant t (pass time.Now() in production; tests pass fixed instants).
func Evaluate(group Group, t time.Time) Status {
	switch group {
	case GroupCrypto:
		return Status{State: StateOpen, CanTrade: true, SessionName: "crypto-24-7", VolatilityMultiplier: 1.0}
	case GroupForex:
		return evaluateForex(t)
	case GroupCommodity:
		return evaluateCommodity(t)
	default:
		return evaluateEquity(t)
	}
}

// evaluateForex: open Sun 17:00 EST through Fri 17:00 EST.
func evaluateForex(t time.Time) Status {
	local := t.In(est)
	wd := local.Weekday()
	hour := local.Hour()

	open := true
	switch wd {
	case time.Saturday:
		open = false
	case time.Sunday:
		open = hour >= 17
	case time.Friday:
		open = hour < 17
	}
	if !open {
		return Status{State: StateClosed, CanTrade: false, SessionName: "forex-weekend", VolatilityMultiplier: 0}
	}

	switch {
	case hour >= 12 && hour < 16:
		return Status{State: StateOpen, CanTrade: true, SessionName: "london-ny-overlap", VolatilityMultiplier: 1.5}
	case hour >= 0 && hour < 8:
		return Status{State: StateOpen, CanTrade: true, SessionName: "asian", VolatilityMultiplier: 0.8}
	default:
		return Status{State: StateOpen, CanTrade: true, SessionName: "standard", VolatilityMultiplier: 1.0}
	}
}

// evaluateEquity: US equities Mon-Fri 04:00-20:00 EST, with pre/regular/post
// carved out of that window; core session is 09:30-16:00 EST.
func evaluateEquity(t time.Time) Status {
	local := t.In(est)
	wd := local.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return Status{State: StateClosed, CanTrade: false, SessionName: "equity-weekend", VolatilityMultiplier: 0}
	}

	minutesOfDay := local.Hour()*60 + local.Minute()
	switch {
	case minutesOfDay < 4*60 || minutesOfDay >= 20*60:
		return Status{State: StateClosed, CanTrade: false, SessionName: "equity-closed", VolatilityMultiplier: 0}
	case minutesOfDay < 9*60+30:
		return Status{State: StatePre, CanTrade: true, SessionName: "equity-premarket", VolatilityMultiplier: 0.9}
	case minutesOfDay >= 16*60:
		return Status{State: StatePost, CanTrade: true, SessionName: "equity-afterhours", VolatilityMultiplier: 0.9}
	default:
		return Status{State: StateOpen, CanTrade: true, SessionName: "equity-regular", VolatilityMultiplier: 1.0}
	}
}

// evaluateCommodity: closed from Saturday 00:00 through Sunday 18:00 EST and
// open at all other times, with no pre/post phases (commodity futures trade
// nearly continuously on their own exchange calendars, and the REST-only
// symbols this system routes to EODHD are daily-resolution).
func evaluateCommodity(t time.Time) Status {
	local := t.In(est)
	wd := local.Weekday()
	if wd == time.Saturday || (wd == time.Sunday && local.Hour() < 18) {
		return Status{State: StateClosed, CanTrade: false, SessionName: "commodity-weekend", VolatilityMultiplier: 0}
	}
	return Status{State: StateOpen, CanTrade: true, SessionName: "commodity-regular", VolatilityMultiplier: 1.0}
}
