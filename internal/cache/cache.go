package cache

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"NewsSentinel/internal/model"

	"github.com/cespare/xxhash/v2"
)

// DefaultTTL is how long a scoring result is reused.
const DefaultTTL = time.Hour

type entry struct {
	result  model.ScoreResult
	expires time.Time
}

// ArticleCache memoizes scoring results per (symbol, title) for a fixed TTL.
// Entries expire by time; Delete exists only for forced refresh.
type ArticleCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

type Option func(*ArticleCache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *ArticleCache) { c.now = now }
}

func New(ttl time.Duration, opts ...Option) *ArticleCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &ArticleCache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key hashes symbol and title into the cache key.
func Key(symbol, title string) string {
	return strconv.FormatUint(xxhash.Sum64String(symbol+":"+title), 16)
}

// Get returns a live entry. Expired entries are dropped on access.
func (c *ArticleCache) Get(symbol, title string) (model.ScoreResult, bool) {
	key := Key(symbol, title)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return model.ScoreResult{}, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return model.ScoreResult{}, false
	}
	return cloneResult(e.result), true
}

func (c *ArticleCache) Set(symbol, title string, res model.ScoreResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key(symbol, title)] = entry{
		result:  cloneResult(res),
		expires: c.now().Add(c.ttl),
	}
}

// Delete removes an entry so the next lookup rescores. Reports whether a live entry existed.
func (c *ArticleCache) Delete(symbol, title string) bool {
	key := Key(symbol, title)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	delete(c.entries, key)
	return c.now().Before(e.expires)
}

// Len counts live entries.
func (c *ArticleCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()
	return len(c.entries)
}

// Keys lists live keys in sorted order.
func (c *ArticleCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Purge drops every entry.
func (c *ArticleCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

func (c *ArticleCache) Stats() model.CacheStats {
	return model.CacheStats{Items: c.Len(), TTL: c.ttl}
}

func (c *ArticleCache) sweep() {
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
}

func cloneResult(r model.ScoreResult) model.ScoreResult {
	r.KeyDrivers = append([]string(nil), r.KeyDrivers...)
	r.Risks = append([]string(nil), r.Risks...)
	return r
}
