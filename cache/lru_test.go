package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU(2)
	future := time.Now().Add(time.Hour)

	k1 := CacheKey{Name: "a.example.", Rdtype: 1, Rdclass: 1}
	k2 := CacheKey{Name: "b.example.", Rdtype: 1, Rdclass: 1}
	k3 := CacheKey{Name: "c.example.", Rdtype: 1, Rdclass: 1}

	c.Put(k1, &Answer{Expiration: future})
	c.Put(k2, &Answer{Expiration: future})
	c.Put(k3, &Answer{Expiration: future}) // evicts k1

	_, ok := c.Get(k1)
	assert.False(t, ok)
	_, ok = c.Get(k2)
	assert.True(t, ok)
	_, ok = c.Get(k3)
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLRU_GetRefreshesRecency(t *testing.T) {
	c := NewLRU(2)
	future := time.Now().Add(time.Hour)

	k1 := CacheKey{Name: "a.example.", Rdtype: 1, Rdclass: 1}
	k2 := CacheKey{Name: "b.example.", Rdtype: 1, Rdclass: 1}
	k3 := CacheKey{Name: "c.example.", Rdtype: 1, Rdclass: 1}

	c.Put(k1, &Answer{Expiration: future})
	c.Put(k2, &Answer{Expiration: future})

	_, ok := c.Get(k1) // k1 is now more recently used than k2
	require.True(t, ok)

	c.Put(k3, &Answer{Expiration: future}) // should evict k2, not k1

	_, ok = c.Get(k1)
	assert.True(t, ok)
	_, ok = c.Get(k2)
	assert.False(t, ok)
}

func TestLRU_OverwriteDoesNotGrow(t *testing.T) {
	c := NewLRU(2)
	future := time.Now().Add(time.Hour)
	k1 := CacheKey{Name: "a.example.", Rdtype: 1, Rdclass: 1}

	c.Put(k1, &Answer{Expiration: future})
	c.Put(k1, &Answer{Expiration: future.Add(time.Minute)})

	assert.Equal(t, 1, c.Len())
}

func TestLRU_ExpiredEntryRemovedOnGet(t *testing.T) {
	c := NewLRU(2)
	k1 := CacheKey{Name: "a.example.", Rdtype: 1, Rdclass: 1}
	c.Put(k1, &Answer{Expiration: time.Now().Add(-time.Second)})

	_, ok := c.Get(k1)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestNewLRU_panicsOnInvalidSize(t *testing.T) {
	assert.Panics(t, func() { NewLRU(0) })
}

func TestLRU_Flush(t *testing.T) {
	c := NewLRU(4)
	future := time.Now().Add(time.Hour)
	k1 := CacheKey{Name: "a.example.", Rdtype: 1, Rdclass: 1}
	k2 := CacheKey{Name: "b.example.", Rdtype: 1, Rdclass: 1}
	c.Put(k1, &Answer{Expiration: future})
	c.Put(k2, &Answer{Expiration: future})

	c.Flush(&k1)
	_, ok := c.Get(k1)
	assert.False(t, ok)

	c.Flush(nil)
	assert.Equal(t, 0, c.Len())
}
