package batch

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Sumatoshi-tech/wasmprov/pkg/classify"
)

// Cache remembers verdicts by xxh3 content hash, so byte-identical modules
// (common in web crawls) are parsed once. It is safe for concurrent use.
//
// Verdicts depend on the rule chain, so a Cache belongs to the classifier of
// the first Runner it is given to. Runners over other classifiers ignore it.
type Cache struct {
	entries *lru.Cache[uint64, classify.Verdict]
	owner   atomic.Pointer[classify.Classifier]
}

// NewCache returns a cache holding at most size verdicts.
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[uint64, classify.Verdict](size)
	if err != nil {
		return nil, fmt.Errorf("create verdict cache: %w", err)
	}

	return &Cache{entries: entries}, nil
}

// Get returns the verdict stored for hash.
func (c *Cache) Get(hash uint64) (classify.Verdict, bool) {
	return c.entries.Get(hash)
}

// Add stores a verdict, evicting the least recently used one when full.
func (c *Cache) Add(hash uint64, v classify.Verdict) {
	c.entries.Add(hash, v)
}

// Len returns the number of cached verdicts.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// bind ties the cache to owner on first use and reports whether owner holds it.
func (c *Cache) bind(owner *classify.Classifier) bool {
	if c.owner.CompareAndSwap(nil, owner) {
		return true
	}

	return c.owner.Load() == owner
}
