package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wargames-arena/marketfeed/internal/session"
)

func TestEndpoint_SessionGroupMapping(t *testing.T) {
	assert.Equal(t, session.GroupForex, EndpointForex.sessionGroup())
	assert.Equal(t, session.GroupCrypto, EndpointCrypto.sessionGroup())
	assert.Equal(t, session.GroupEquity, EndpointUSQuote.sessionGroup())
}

func TestIsAckMessage_DetectsStatusCodeFrame(t *testing.T) {
	assert.True(t, isAckMessage([]byte(`{"status_code":200,"message":"Authorized"}`)))
}

func TestIsAckMessage_DetectsMessageOnlyFrame(t *testing.T) {
	assert.True(t, isAckMessage([]byte(`{"message":"subscribed"}`)))
}

func TestIsAckMessage_FalseForTickFrame(t *testing.T) {
	assert.False(t, isAckMessage([]byte(`{"s":"EURUSD","a":1.08,"b":1.079,"t":1690000000000}`)))
}

func TestNormalize_ForexTick(t *testing.T) {
	data := []byte(`{"s":"EURUSD","a":1.10,"b":1.08,"t":1690000000000,"dc":0.002,"dd":1}`)
	q, ok := normalize(EndpointForex, data)
	require.True(t, ok)
	assert.Equal(t, "EURUSD", q.Symbol)
	assert.InDelta(t, 1.09, q.Last, 0.0001)
	assert.Equal(t, "eodhd", string(q.Source))
}

func TestNormalize_USQuoteTick(t *testing.T) {
	data := []byte(`{"s":"AAPL","ap":151.0,"as":100,"bp":150.0,"bs":200,"t":1690000000000}`)
	q, ok := normalize(EndpointUSQuote, data)
	require.True(t, ok)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.InDelta(t, 150.5, q.Last, 0.0001)
}

func TestNormalize_CryptoTick(t *testing.T) {
	data := []byte(`{"s":"BTC-USD","p":65000.0,"q":0.5,"t":1690000000000,"dc":100,"dd":1}`)
	q, ok := normalize(EndpointCrypto, data)
	require.True(t, ok)
	assert.Equal(t, "BTC-USD", q.Symbol)
	assert.Equal(t, 65000.0, q.Last)
	assert.Equal(t, 0.5, q.LastSize)
}

func TestNormalize_RejectsMissingSymbol(t *testing.T) {
	_, ok := normalize(EndpointForex, []byte(`{"a":1.1,"b":1.09}`))
	assert.False(t, ok)
}

func TestNormalize_RejectsUnknownEndpoint(t *testing.T) {
	_, ok := normalize(Endpoint("bogus"), []byte(`{"s":"X"}`))
	assert.False(t, ok)
}

func TestGrowBackoff_DoublesUntilCapped(t *testing.T) {
	m := New(EndpointForex, "key", []string{"EURUSD"})
	assert.Equal(t, minBackoff, m.backoff)
	m.growBackoff()
	assert.Equal(t, 2*time.Second, m.backoff)
	for i := 0; i < 10; i++ {
		m.growBackoff()
	}
	assert.Equal(t, maxBackoff, m.backoff)
}

func TestEvaluateSession_ForexClosedOnWeekend(t *testing.T) {
	m := New(EndpointForex, "key", []string{"EURUSD"})
	m.now = func() time.Time {
		return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	}
	m.evaluateSession()
	assert.False(t, m.sessionTradeable())
}

func TestEvaluateSession_CryptoAlwaysTradeable(t *testing.T) {
	m := New(EndpointCrypto, "key", []string{"BTC-USD"})
	m.evaluateSession()
	assert.True(t, m.sessionTradeable())
}

func TestStateName_ReflectsCurrentState(t *testing.T) {
	m := New(EndpointForex, "key", []string{"EURUSD"})
	assert.Equal(t, "disconnected", m.StateName())
	m.setState(StateSubscribed)
	assert.Equal(t, "subscribed", m.StateName())
}

func TestEndpoint_Accessor(t *testing.T) {
	m := New(EndpointCrypto, "key", []string{"BTC-USD"})
	assert.Equal(t, "crypto", m.Endpoint())
}

func TestIsAuthFailure_DistinguishesErrorType(t *testing.T) {
	assert.True(t, isAuthFailure(authFailure{msg: "nope"}))
	assert.False(t, isAuthFailure(assert.AnError))
}
