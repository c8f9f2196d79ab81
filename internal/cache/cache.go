// Package cache implements the layered query-result cache that sits
// above the chunk store. It deduplicates and incrementally maintains the
// deserialized, join-ready results of repeated latest-at and range
// queries from interactive consumers, and invalidates itself by
// subscribing to store events.
//
// Lock order: the outer key-map lock is released before an inner cache
// lock is taken, and no cache lock is ever held across a store query —
// the store's subscriber callback runs synchronously inside store
// writes, so holding a cache lock while waiting on the store's read
// lock would deadlock against it.
package cache

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"chronolog/internal/data"
	"chronolog/internal/logging"
	"chronolog/internal/store"
)

// Key is the cache's top-level partition: one store, one entity, one
// timeline.
type Key struct {
	Store    string
	Entity   string
	Timeline string
}

func (k Key) String() string {
	return k.Store + "|" + k.Entity + "|" + k.Timeline
}

// latestAtCache caches latest-at outcomes for one (key, archetype).
//
// perQueryTime resolves repeat queries without touching the store;
// perDataTime shares one bucket between all query times that resolve to
// the same data time; static holds the bucket when the winning primary
// row is static.
type latestAtCache struct {
	perQueryTime map[data.TimeInt]*Bucket
	perDataTime  map[data.TimeInt]*Bucket
	static       *Bucket
}

func newLatestAtCache() *latestAtCache {
	return &latestAtCache{
		perQueryTime: make(map[data.TimeInt]*Bucket),
		perDataTime:  make(map[data.TimeInt]*Bucket),
	}
}

// rangeCache caches one contiguous stretch of range results for one
// (key, archetype). covered describes which [min, max] of data time has
// been materialized into the bucket; queries only go to the store for
// the parts in front of and behind it.
type rangeCache struct {
	bucket      *Bucket
	covered     data.TimeRange
	haveCovered bool
}

// keyCaches groups the per-archetype caches of one Key under one lock.
// epoch increments on every invalidation so in-flight populates that
// raced a store mutation can tell their data is stale.
type keyCaches struct {
	mu     sync.Mutex
	epoch  uint64
	latest map[string]*latestAtCache
	ranges map[string]*rangeCache
}

func newKeyCaches() *keyCaches {
	return &keyCaches{
		latest: make(map[string]*latestAtCache),
		ranges: make(map[string]*rangeCache),
	}
}

func (kc *keyCaches) latestLocked(archetype string) *latestAtCache {
	lac := kc.latest[archetype]
	if lac == nil {
		lac = newLatestAtCache()
		kc.latest[archetype] = lac
	}
	return lac
}

func (kc *keyCaches) rangeLocked(archetype string) *rangeCache {
	rc := kc.ranges[archetype]
	if rc == nil {
		rc = &rangeCache{}
		kc.ranges[archetype] = rc
	}
	return rc
}

func (kc *keyCaches) clearLocked() {
	kc.epoch++
	kc.latest = make(map[string]*latestAtCache)
	kc.ranges = make(map[string]*rangeCache)
}

// Config configures a Caches.
type Config struct {
	// Store is the chunk store to cache and subscribe to. Required.
	Store *store.Store

	// Registry resolves component codecs for deserialization. Required.
	Registry *data.Registry

	// Logger for structured logging. If nil, logging is disabled.
	// The cache scopes it with component="query-cache".
	Logger *slog.Logger
}

// Caches is the top-level query cache for one store. Create one per
// application and pass it explicitly to the consumers that need it.
type Caches struct {
	store  *store.Store
	reg    *data.Registry
	logger *slog.Logger

	mu     sync.RWMutex
	perKey map[Key]*keyCaches

	flights singleflight.Group

	subID store.SubscriberID
}

// New creates a cache over a store and registers it as a subscriber;
// every later mutation invalidates the affected buckets.
func New(cfg Config) (*Caches, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("cache: Config.Store is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("cache: Config.Registry is required")
	}
	c := &Caches{
		store:  cfg.Store,
		reg:    cfg.Registry,
		logger: logging.Default(cfg.Logger).With("component", "query-cache", "store", cfg.Store.ID()),
		perKey: make(map[Key]*keyCaches),
	}
	c.subID = cfg.Store.RegisterSubscriber(c)
	return c, nil
}

// Close unregisters the cache from its store. The cache must not be
// queried afterwards.
func (c *Caches) Close() {
	c.store.UnregisterSubscriber(c.subID)
}

// Clear drops every cached bucket.
func (c *Caches) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, kc := range c.perKey {
		kc.mu.Lock()
		kc.clearLocked()
		kc.mu.Unlock()
	}
}

// keyCaches returns the cache group for a key, creating it on first use.
// The outer lock is released before the group is handed back.
func (c *Caches) keyCaches(key Key) *keyCaches {
	c.mu.RLock()
	kc, ok := c.perKey[key]
	c.mu.RUnlock()
	if ok {
		return kc
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if kc, ok = c.perKey[key]; ok {
		return kc
	}
	kc = newKeyCaches()
	c.perKey[key] = kc
	return kc
}

// OnEvents implements store.Subscriber: invalidation driven by store
// mutations. Only buckets at or after the mutation point are dropped, so
// cached work for the unchanged past survives — the common case for
// monotonic recording.
func (c *Caches) OnEvents(events []store.Event) {
	for _, ev := range events {
		ch := ev.Chunk
		entity := ch.Entity().String()

		if ch.IsStatic() {
			// Static data applies at all times on every timeline:
			// invalidating it means invalidating everything for the
			// entity. Deletions poison identically.
			c.dropEntity(ev.StoreID, entity)
			continue
		}

		for _, tl := range ch.Timelines() {
			r, ok := ch.TimeRange(tl.Name)
			if !ok {
				continue
			}
			c.invalidateFrom(Key{Store: ev.StoreID, Entity: entity, Timeline: tl.Name}, r.Min)
		}
	}
}

func (c *Caches) dropEntity(storeID, entity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, kc := range c.perKey {
		if key.Store != storeID || key.Entity != entity {
			continue
		}
		kc.mu.Lock()
		kc.clearLocked()
		kc.mu.Unlock()
	}
}

// invalidateFrom drops every cached outcome at or after threshold under
// one key.
func (c *Caches) invalidateFrom(key Key, threshold data.TimeInt) {
	c.mu.RLock()
	kc, ok := c.perKey[key]
	c.mu.RUnlock()
	if !ok {
		return
	}

	kc.mu.Lock()
	defer kc.mu.Unlock()
	kc.epoch++

	for _, lac := range kc.latest {
		for q := range lac.perQueryTime {
			if q >= threshold {
				delete(lac.perQueryTime, q)
			}
		}
		for d := range lac.perDataTime {
			if d >= threshold {
				delete(lac.perDataTime, d)
			}
		}
	}
	for _, rc := range kc.ranges {
		if rc.bucket != nil {
			rc.bucket.truncateAt(threshold)
		}
		if rc.haveCovered && rc.covered.Max >= threshold {
			rc.covered.Max = threshold.SaturatingAdd(-1)
			if rc.covered.IsEmpty() {
				rc.bucket = nil
				rc.haveCovered = false
			}
		}
	}
}

var _ store.Subscriber = (*Caches)(nil)
