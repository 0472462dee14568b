package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	b := New(Config{Name: "test", ConsecutiveFailures: 2, OpenTimeout: time.Minute})

	failing := func(ctx context.Context) error { return errors.New("boom") }

	require.Error(t, b.Call(context.Background(), failing))
	require.Error(t, b.Call(context.Background(), failing))

	err := b.Call(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, b.IsHealthy())
}

func TestBreaker_StaysClosedOnSuccess(t *testing.T) {
	b := New(Config{Name: "ok", ConsecutiveFailures: 2})
	for i := 0; i < 5; i++ {
		err := b.Call(context.Background(), func(ctx context.Context) error { return nil })
		require.NoError(t, err)
	}
	assert.True(t, b.IsHealthy())
}

func TestManager_CallRunsDirectlyWhenUnregistered(t *testing.T) {
	m := NewManager()
	called := false
	err := m.Call(context.Background(), "unregistered", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestManager_UnhealthyProviders(t *testing.T) {
	m := NewManager()
	m.AddProvider("flaky", Config{ConsecutiveFailures: 1})
	m.AddProvider("stable", Config{ConsecutiveFailures: 5})

	_ = m.Call(context.Background(), "flaky", func(ctx context.Context) error { return errors.New("down") })

	unhealthy := m.UnhealthyProviders()
	assert.Contains(t, unhealthy, "flaky")
	assert.NotContains(t, unhealthy, "stable")
}
