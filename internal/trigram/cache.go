package trigram

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of query strings kept by NewCache when no
// size is given.
const DefaultCacheSize = 1024

// Cache memoizes Extract for repeated query strings.
// It is safe for concurrent use.
type Cache struct {
	cache *lru.Cache[string, []Trigram]
}

// NewCache creates a cache holding up to size extractions.
// A size of zero or less uses DefaultCacheSize.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, []Trigram](size)
	if err != nil {
		return nil, err
	}
	return &Cache{cache: c}, nil
}

// Extract returns the trigrams of text, serving repeated inputs from the cache.
// The returned slice is a copy and may be modified by the caller.
func (c *Cache) Extract(text string) []Trigram {
	if c == nil {
		return Extract(text)
	}
	if cached, ok := c.cache.Get(text); ok {
		return clone(cached)
	}
	result := Extract(text)
	c.cache.Add(text, clone(result))
	return result
}

// Len returns the number of cached extractions.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}

// Purge clears the cache.
func (c *Cache) Purge() {
	if c != nil {
		c.cache.Purge()
	}
}

func clone(in []Trigram) []Trigram {
	out := make([]Trigram, len(in))
	copy(out, in)
	return out
}
