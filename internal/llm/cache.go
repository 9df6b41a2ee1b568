package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type cacheEntry struct {
	expiry time.Time
	text   string
}

// ResponseCache keeps raw model responses keyed by prompt hash so that the
// same line on the same receipt is not sent twice.
type ResponseCache struct {
	entries map[string]cacheEntry
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
	once    sync.Once
}

// NewResponseCache creates a cache with the given TTL, 15 minutes when zero.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	cache := &ResponseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

// PromptKey hashes a prompt into a cache key.
func PromptKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached text for key if present and not expired.
func (c *ResponseCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || time.Now().After(entry.expiry) {
		return "", false
	}
	return entry.text, true
}

// Set stores text under key.
func (c *ResponseCache) Set(key, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		text:   text,
		expiry: time.Now().Add(c.ttl),
	}
}

// Len returns the number of entries, expired ones included until cleanup.
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ResponseCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (c *ResponseCache) Close() {
	c.once.Do(func() { close(c.stopCh) })
}
