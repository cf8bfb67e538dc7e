package local

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("cache: key not found")

// Config holds LocalCache settings.
type Config struct {
	GCInterval time.Duration
}

// entry holds a cached string value with an optional expiry.
type entry struct {
	data     string
	expireAt time.Time
	noExpiry bool
}

func newEntry(value string, ttl time.Duration) *entry {
	e := &entry{data: value}
	if ttl > 0 {
		e.expireAt = time.Now().Add(ttl)
	} else {
		e.noExpiry = true
	}
	return e
}

func (e *entry) expired() bool {
	return !e.noExpiry && time.Now().After(e.expireAt)
}

// LocalCache is an in-process cache for single-node deployments and tests.
type LocalCache struct {
	mu         sync.Mutex // serialises SetNX and DelIfValue
	kv         sync.Map   // key → *entry
	gcInterval time.Duration
	stopGC     chan struct{}
	stopOnce   sync.Once
}

// NewCache creates a LocalCache and starts the background GC goroutine.
func NewCache(cfg Config) (*LocalCache, error) {
	interval := cfg.GCInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	c := &LocalCache{
		gcInterval: interval,
		stopGC:     make(chan struct{}),
	}
	go c.runGC()
	return c, nil
}

// Close stops the background GC goroutine.
func (c *LocalCache) Close() {
	c.stopOnce.Do(func() { close(c.stopGC) })
}

func (c *LocalCache) runGC() {
	ticker := time.NewTicker(c.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.kv.Range(func(k, v interface{}) bool {
				if e, ok := v.(*entry); ok && e.expired() {
					c.kv.Delete(k)
				}
				return true
			})
		case <-c.stopGC:
			return
		}
	}
}

func (c *LocalCache) load(key string) (*entry, bool) {
	v, ok := c.kv.Load(key)
	if !ok {
		return nil, false
	}
	e := v.(*entry)
	if e.expired() {
		c.kv.CompareAndDelete(key, v)
		return nil, false
	}
	return e, true
}

func (c *LocalCache) Get(_ context.Context, key string) (string, error) {
	e, ok := c.load(key)
	if !ok {
		return "", ErrNotFound
	}
	return e.data, nil
}

func (c *LocalCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.kv.Store(key, newEntry(value, ttl))
	return nil
}

func (c *LocalCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.kv.Delete(k)
	}
	return nil
}

func (c *LocalCache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := c.load(key)
	return ok, nil
}

func (c *LocalCache) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.load(key); ok {
		return false, nil
	}
	c.kv.Store(key, newEntry(value, ttl))
	return true, nil
}

func (c *LocalCache) DelIfValue(_ context.Context, key, value string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.load(key)
	if !ok || e.data != value {
		return false, nil
	}
	c.kv.Delete(key)
	return true, nil
}

func (c *LocalCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.load(key)
	if !ok {
		return ErrNotFound
	}
	c.kv.Store(key, newEntry(e.data, ttl))
	return nil
}
