package schema

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/koustreak/tablegate/internal/logger"
)

// SnapshotStore persists introspected schemas outside the process so a
// restart (or a sibling instance) can skip the catalog round trips.
// Load returns (nil, nil) on a miss.
type SnapshotStore interface {
	Load(ctx context.Context, connID string) (SchemaMap, error)
	Save(ctx context.Context, connID string, m SchemaMap) error
	Delete(ctx context.Context, connID string) error
}

// Cache holds one SchemaMap per connection id. Published maps are never
// mutated; a refresh swaps in a new map. Concurrent loads of the same
// connection share one introspection.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]SchemaMap
	// gens advances on Clear so an introspection that started before the
	// clear cannot publish its result afterwards.
	gens  map[string]uint64
	group singleflight.Group
	store SnapshotStore
	log   *logger.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithSnapshotStore adds a second-level store behind the in-memory map.
func WithSnapshotStore(s SnapshotStore) CacheOption {
	return func(c *Cache) { c.store = s }
}

// WithLogger sets the logger used for store failures.
func WithLogger(l *logger.Logger) CacheOption {
	return func(c *Cache) { c.log = l }
}

// NewCache returns an empty cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		entries: make(map[string]SchemaMap),
		gens:    make(map[string]uint64),
		log:     logger.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the cached map without touching the database.
func (c *Cache) Get(connID string) (SchemaMap, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.entries[connID]
	return m, ok
}

// Load returns the cached map, falling back to the snapshot store and then
// to a full introspection through r.
func (c *Cache) Load(ctx context.Context, connID string, r Reader) (SchemaMap, error) {
	if m, ok := c.Get(connID); ok {
		return m, nil
	}

	v, err, _ := c.group.Do("load:"+connID, func() (any, error) {
		if m, ok := c.Get(connID); ok {
			return m, nil
		}
		gen := c.generation(connID)

		if m := c.loadSnapshot(ctx, connID); m != nil {
			c.publish(connID, gen, m)
			return m, nil
		}
		return c.introspect(ctx, connID, gen, r)
	})
	if err != nil {
		return nil, err
	}
	return v.(SchemaMap), nil
}

// Refresh re-introspects unconditionally and replaces both the in-memory
// entry and the stored snapshot. On failure the previous entry stays.
func (c *Cache) Refresh(ctx context.Context, connID string, r Reader) (SchemaMap, error) {
	v, err, _ := c.group.Do("refresh:"+connID, func() (any, error) {
		return c.introspect(ctx, connID, c.generation(connID), r)
	})
	if err != nil {
		return nil, err
	}
	return v.(SchemaMap), nil
}

// Clear drops one connection's entry and its stored snapshot.
func (c *Cache) Clear(ctx context.Context, connID string) {
	c.mu.Lock()
	delete(c.entries, connID)
	c.gens[connID]++
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, connID); err != nil {
		c.log.ErrorWith("schema snapshot delete failed", err, map[string]any{"conn": connID})
	}
}

// ClearAll drops every in-memory entry. Stored snapshots are left alone.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.entries {
		c.gens[id]++
	}
	c.entries = make(map[string]SchemaMap)
}

func (c *Cache) introspect(ctx context.Context, connID string, gen uint64, r Reader) (SchemaMap, error) {
	m, err := Introspect(ctx, r)
	if err != nil {
		return nil, err
	}
	if !c.publish(connID, gen, m) {
		return m, nil
	}
	c.log.InfoWith("schema introspected", map[string]any{"conn": connID, "tables": len(m)})

	if c.store != nil {
		if err := c.store.Save(ctx, connID, m); err != nil {
			c.log.ErrorWith("schema snapshot save failed", err, map[string]any{"conn": connID})
		}
	}
	return m, nil
}

func (c *Cache) loadSnapshot(ctx context.Context, connID string) SchemaMap {
	if c.store == nil {
		return nil
	}
	m, err := c.store.Load(ctx, connID)
	if err != nil {
		c.log.ErrorWith("schema snapshot load failed", err, map[string]any{"conn": connID})
		return nil
	}
	if m != nil {
		c.log.Debugf("schema for %q restored from snapshot", connID)
	}
	return m
}

func (c *Cache) generation(connID string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[connID]
}

// publish installs m unless the entry was cleared since gen was read.
func (c *Cache) publish(connID string, gen uint64, m SchemaMap) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[connID] != gen {
		return false
	}
	c.entries[connID] = m
	return true
}
