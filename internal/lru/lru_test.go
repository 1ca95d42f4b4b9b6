package lru

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetPut(t *testing.T) {
	c := New[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // a is now most recently used; b is least
	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "expected b to be evicted")

	_, ok = c.Get("a")
	assert.True(t, ok, "expected a to survive eviction")

	_, ok = c.Get("c")
	assert.True(t, ok, "expected c present")
}

func TestCacheLen(t *testing.T) {
	c := New[int, int](5)
	for i := 0; i < 3; i++ {
		c.Put(i, i*i)
	}
	assert.Equal(t, 3, c.Len())
}

func TestSetAddContains(t *testing.T) {
	s := NewSet[int](3)
	s.Add(1)
	s.Add(2)
	assert.True(t, s.Contains(1))
	assert.True(t, s.Contains(2))
	assert.False(t, s.Contains(3))
}

func TestSetFIFOEviction(t *testing.T) {
	s := NewSet[int](2)
	s.Add(1)
	s.Add(2)
	s.Add(3) // evicts 1, the oldest
	assert.False(t, s.Contains(1))
	assert.True(t, s.Contains(2))
	assert.True(t, s.Contains(3))
}

func TestSetItemsInsertionOrder(t *testing.T) {
	s := NewSet[int](5)
	s.Add(3)
	s.Add(1)
	s.Add(2)
	assert.Equal(t, []int{3, 1, 2}, s.Items())
}
