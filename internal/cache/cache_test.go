package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_SetGetExpire(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New[string](time.Minute)
	c.now = func() time.Time { return now }

	c.Set("india", "id-1")
	v, ok := c.Get("india")
	assert.True(t, ok)
	assert.Equal(t, "id-1", v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("india")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_CleanupAndDelete(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New[int](time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	now = now.Add(30 * time.Second)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Delete("c")

	now = now.Add(45 * time.Second)
	assert.Equal(t, 1, c.Cleanup())
	assert.Equal(t, 1, c.Len())
	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("a", "bc"), Key("a", "bc"))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	assert.Len(t, Key("x"), 64)
}
