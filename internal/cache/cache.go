// Package cache provides read-through caches for catalog lookups
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache stores JSON-encodable values by key
type Cache interface {
	// Get decodes the cached value for key into dst and reports whether it was present
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

// LRU is an in-process cache with a size bound and per-entry TTL.
// Values are stored encoded so callers never share memory with the cache.
type LRU struct {
	entries *expirable.LRU[string, []byte]
}

// NewLRU creates a new LRU cache
func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = 1000
	}
	return &LRU{entries: expirable.NewLRU[string, []byte](capacity, nil, ttl)}
}

func (c *LRU) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, ok := c.entries.Get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode cached value: %w", err)
	}
	return true, nil
}

func (c *LRU) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	c.entries.Add(key, data)
	return nil
}

func (c *LRU) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		c.entries.Remove(k)
	}
	return nil
}

// Len returns the number of live entries
func (c *LRU) Len() int {
	return c.entries.Len()
}

// Nop never stores anything
type Nop struct{}

func (Nop) Get(ctx context.Context, key string, dst interface{}) (bool, error) { return false, nil }
func (Nop) Set(ctx context.Context, key string, value interface{}) error        { return nil }
func (Nop) Delete(ctx context.Context, keys ...string) error                    { return nil }
