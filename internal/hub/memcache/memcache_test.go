package memcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetThenGetWithinTTL(t *testing.T) {
	c := New[int](time.Second)
	c.Set("a", 42)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestCache_GetMissingKeyReturnsFalse(t *testing.T) {
	c := New[int](time.Second)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := New[int](time.Minute)
	fakeNow := time.Now()
	c.now = func() time.Time { return fakeNow }
	c.Set("a", 1)

	fakeNow = fakeNow.Add(2 * time.Minute)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCache_InvalidateRemovesEntry(t *testing.T) {
	c := New[int](time.Minute)
	c.Set("a", 1)
	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCache_FlushClearsAllEntries(t *testing.T) {
	c := New[int](time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Flush()
	assert.Equal(t, 0, c.Len())
}

func TestCache_LenCountsStoredEntries(t *testing.T) {
	c := New[int](time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	assert.Equal(t, 2, c.Len())
}
