package embedding

import (
	"container/list"
	"sync"
)

// textCache is an LRU cache of embeddings keyed by the exact chunk text.
// Re-ingested documents share most of their chunks with the prior version,
// so hits are common even across document updates.
type textCache struct {
	capacity int

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
}

type textCacheEntry struct {
	text      string
	embedding []float32
}

func newTextCache(capacity int) *textCache {
	return &textCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *textCache) get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[text]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*textCacheEntry).embedding, true
}

func (c *textCache) set(text string, embedding []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[text]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*textCacheEntry).embedding = embedding
		return
	}

	c.entries[text] = c.order.PushFront(&textCacheEntry{text: text, embedding: embedding})

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*textCacheEntry).text)
	}
}

func (c *textCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
