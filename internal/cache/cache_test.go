package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetAdd(t *testing.T) {
	c := New[int](10)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Add("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestCache_GetOrCompute(t *testing.T) {
	c := New[string](10)

	calls := 0
	compute := func() (string, error) {
		calls++
		return "value", nil
	}

	v, err := c.GetOrCompute("k", compute)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	v, err = c.GetOrCompute("k", compute)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.Equal(t, 1, calls, "second lookup must hit the cache")
}

func TestCache_GetOrCompute_ErrorNotCached(t *testing.T) {
	c := New[string](10)
	boom := errors.New("boom")

	_, err := c.GetOrCompute("k", func() (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len(), "failed computations are not cached")
}

func TestCache_EvictsOldestHalf(t *testing.T) {
	c := New[int](4)
	for i := 0; i < 4; i++ {
		c.Add(fmt.Sprintf("k%d", i), i)
	}
	require.Equal(t, 4, c.Len())

	// Next insert triggers a one-pass sweep of the oldest half.
	c.Add("k4", 4)

	_, ok := c.Get("k0")
	assert.False(t, ok, "oldest entry must be evicted")
	_, ok = c.Get("k1")
	assert.False(t, ok, "second-oldest entry must be evicted")
	_, ok = c.Get("k3")
	assert.True(t, ok, "newer half survives")
	_, ok = c.Get("k4")
	assert.True(t, ok)
	assert.LessOrEqual(t, c.Len(), 4)
}

func TestCache_UpdateExistingKeyDoesNotGrow(t *testing.T) {
	c := New[int](4)
	c.Add("a", 1)
	c.Add("a", 2)

	assert.Equal(t, 1, c.Len())
	v, _ := c.Get("a")
	assert.Equal(t, 2, v, "last write wins")
}

func TestCache_ConcurrentReaders(t *testing.T) {
	c := New[int](100)
	for i := 0; i < 50; i++ {
		c.Add(fmt.Sprintf("k%d", i), i)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if v, ok := c.Get(fmt.Sprintf("k%d", i)); ok {
					assert.Equal(t, i, v)
				}
			}
		}()
	}
	wg.Wait()
}
