package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// LRU is a bounded alternative to Cache: once maxSize entries are held,
// the least-recently-used one is evicted to make room for a new Put.
// Get also refreshes an entry's recency; both operations are amortized
// O(1), backed by a map plus a doubly-linked recency list, the same
// shape as the teacher's own LRU cache.
type LRU struct {
	maxSize int

	mu    sync.Mutex
	items map[CacheKey]*lruItem
	order *list.List // of CacheKey, front = least recently used
}

type lruItem struct {
	answer *Answer
	elem   *list.Element
}

// NewLRU returns an empty LRU cache that holds at most maxSize entries.
// maxSize must be at least 1.
func NewLRU(maxSize int) *LRU {
	if maxSize < 1 {
		panic("cache: NewLRU requires maxSize >= 1")
	}
	return &LRU{
		maxSize: maxSize,
		items:   map[CacheKey]*lruItem{},
		order:   list.New(),
	}
}

// Get returns the Answer stored for key if present and not expired,
// marking it as most-recently-used. An expired entry is deleted.
func (c *LRU) Get(key CacheKey) (*Answer, bool) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if !ok {
		return nil, false
	}

	if it.answer.Expired(now) {
		c.removeLocked(key, it)
		return nil, false
	}

	c.order.MoveToBack(it.elem)
	return it.answer, true
}

// Put stores answer under key, marking it most-recently-used. If key
// already exists its value is overwritten. If the cache exceeds maxSize
// as a result, the least-recently-used entry is evicted.
func (c *LRU) Put(key CacheKey, answer *Answer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if it, ok := c.items[key]; ok {
		it.answer = answer
		c.order.MoveToBack(it.elem)
		return
	}

	it := &lruItem{answer: answer}
	it.elem = c.order.PushBack(key)
	c.items[key] = it

	if len(c.items) > c.maxSize {
		front := c.order.Front()
		evictKey := front.Value.(CacheKey)
		c.removeLocked(evictKey, c.items[evictKey])
	}

	if c.order.Len() != len(c.items) {
		panic(fmt.Sprintf("cache: LRU list/map out of sync: list=%d map=%d", c.order.Len(), len(c.items)))
	}
}

// Flush removes key from the cache, or the entire cache if key is nil.
func (c *LRU) Flush(key *CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key == nil {
		c.items = map[CacheKey]*lruItem{}
		c.order.Init()
		return
	}

	if it, ok := c.items[*key]; ok {
		c.removeLocked(*key, it)
	}
}

// removeLocked removes key from both the map and the recency list.
// Callers must hold c.mu.
func (c *LRU) removeLocked(key CacheKey, it *lruItem) {
	c.order.Remove(it.elem)
	delete(c.items, key)
}

// Len returns the number of entries currently stored.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
