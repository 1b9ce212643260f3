// Package cache implements the freshness-aware response cache sitting in
// front of the query surface: bounded queries (an explicit end time) are
// cached until TTL expires outright, since historical data never changes;
// unbounded queries are additionally checked against MAX(time) across the
// involved sensors on every lookup, so a tick of fresh data invalidates
// the entry without waiting for TTL.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/epfl-river/river-backend/pkg/log"
	"github.com/epfl-river/river-backend/pkg/lrucache"
)

// freshnessChecker is the one thing the cache needs from the store: the
// latest reading time across a set of sensors. Kept as a narrow interface
// so this package does not import internal/store directly.
type freshnessChecker interface {
	MaxReadingTime(ctx context.Context, sensorIDs []string) (time.Time, error)
}

// entry is what is actually stored in the backing lrucache.Cache.
type entry struct {
	data    []byte
	maxTime time.Time // zero means "unknown", skip freshness comparison
}

// Cache is the freshness-protocol response cache.
type Cache struct {
	backing *lrucache.Cache
	store   freshnessChecker
	ttl     time.Duration
}

// New builds a Cache backed by an in-memory LRU of maxBytes capacity.
func New(store freshnessChecker, maxBytes int, ttl time.Duration) *Cache {
	return &Cache{
		backing: lrucache.New(maxBytes),
		store:   store,
		ttl:     ttl,
	}
}

// Key builds a cache key from a prefix and components, joined with ':'.
// Empty components are preserved rather than collapsed, so e.g. an absent
// "end" parameter still produces a distinct key from a present empty one.
func Key(prefix string, components ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, c := range components {
		b.WriteByte(':')
		b.WriteString(c)
	}
	return b.String()
}

// Get returns the cached bytes for key, or (nil, false) on a miss. When
// queryEnd is the zero time (an unbounded query), a fresh entry is only
// returned if MAX(time) across sensorIDs has not advanced past the
// entry's recorded max time; a stale entry is evicted and treated as a
// miss.
func (c *Cache) Get(ctx context.Context, key string, sensorIDs []string, queryEnd time.Time) ([]byte, bool) {
	cached := c.backing.Get(key, nil)
	if cached == nil {
		return nil, false
	}
	e := cached.(entry)

	if queryEnd.IsZero() && !e.maxTime.IsZero() {
		latest, err := c.store.MaxReadingTime(ctx, sensorIDs)
		if err != nil {
			log.Warnf("cache: freshness check for %s failed, serving cached value: %v", key, err)
			return e.data, true
		}
		if latest.After(e.maxTime) {
			log.Debugf("cache: %s stale (latest %s > cached %s)", key, latest, e.maxTime)
			c.backing.Del(key)
			return nil, false
		}
	}

	log.Debugf("cache: hit %s", key)
	return e.data, true
}

// Store records data under key, with maxTime used for future freshness
// checks on unbounded queries. A zero maxTime disables freshness
// comparisons entirely for this entry (it is cached purely for its TTL).
func (c *Cache) Store(key string, data []byte, maxTime time.Time) {
	c.backing.Put(key, entry{data: data, maxTime: maxTime}, len(data), c.ttl)
	log.Debugf("cache: stored %s (%d bytes)", key, len(data))
}

// Invalidate drops a single entry.
func (c *Cache) Invalidate(key string) {
	c.backing.Del(key)
}

// InvalidatePrefix drops every entry whose key starts with prefix. This is
// an administrative helper: the sync engine is expected to rely on the
// freshness protocol rather than call it on every tick.
func (c *Cache) InvalidatePrefix(prefix string) {
	var toDelete []string
	c.backing.Keys(func(key string, _ interface{}) {
		if strings.HasPrefix(key, prefix) {
			toDelete = append(toDelete, key)
		}
	})
	for _, key := range toDelete {
		c.backing.Del(key)
	}
}
