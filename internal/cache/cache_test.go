package cache_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/rpcproxy/internal/cache"
)

func TestCache_GetMissOnEmpty(t *testing.T) {
	t.Parallel()
	c := cache.New(time.Minute, 10)
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestCache_PutThenGet(t *testing.T) {
	t.Parallel()
	c := cache.New(time.Minute, 10)
	c.Put("getBlock[42]", []byte(`"X"`))

	v, ok := c.Get("getBlock[42]")
	require.True(t, ok)
	assert.Equal(t, `"X"`, string(v))
	assert.Equal(t, 1, c.Len())
}

func TestCache_ExpiredEntryIsAMiss(t *testing.T) {
	t.Parallel()
	c := cache.New(20*time.Millisecond, 10)
	c.Put("k", []byte(`1`))

	time.Sleep(60 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_CapacityEvictsOldestFirst(t *testing.T) {
	t.Parallel()
	c := cache.New(time.Hour, 3)

	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("k%d", i), []byte(`1`))
		time.Sleep(2 * time.Millisecond)
	}
	require.Equal(t, 3, c.Len())

	// k0 is the oldest insertion; inserting a 4th entry must evict it.
	c.Put("k3", []byte(`1`))
	assert.Equal(t, 3, c.Len())

	_, ok := c.Get("k0")
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok = c.Get("k3")
	assert.True(t, ok, "newest entry should survive")
}

func TestCache_LenNeverExceedsCap(t *testing.T) {
	t.Parallel()
	c := cache.New(time.Hour, 5)
	for i := 0; i < 50; i++ {
		c.Put(fmt.Sprintf("k%d", i), []byte(`1`))
		assert.LessOrEqual(t, c.Len(), c.Cap())
	}
}

func TestCache_DefaultsAppliedForNonPositiveInputs(t *testing.T) {
	t.Parallel()
	c := cache.New(0, 0)
	assert.Equal(t, cache.DefaultCapacity, c.Cap())
}
