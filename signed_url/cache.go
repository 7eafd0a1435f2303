/***************************************************************
 *
 * Copyright (C) 2026, Pelican Project, Morgridge Institute for Research
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

package signed_url

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	log "github.com/sirupsen/logrus"

	"github.com/mediadeck/mediadeck/metrics"
	"github.com/mediadeck/mediadeck/server_structs"
)

type (
	// CacheEntry is a signed URL along with the instants that govern how it
	// is served.  Entries are replaced, never modified.
	CacheEntry struct {
		Key        server_structs.ObjectKey
		URL        string
		ExpiresAt  time.Time // the backend stops honoring the URL here
		CachedAt   time.Time
		ServeUntil time.Time // last instant the entry is handed out; always <= ExpiresAt - CacheBuffer
		StaleAt    time.Time // past this a background refresh is started
	}

	// Cache maps object keys to signed URLs.  Reads never perform I/O and
	// never change the cache.
	Cache struct {
		items *ttlcache.Cache[server_structs.ObjectKey, CacheEntry]
		now   func() time.Time
	}
)

// Fresh reports whether the entry may still be served at t.
func (e CacheEntry) Fresh(t time.Time) bool {
	return t.Before(e.ServeUntil)
}

// Stale reports whether the entry is due for a background refresh at t.
// An entry whose stale point is not strictly inside its serving window is
// never stale.
func (e CacheEntry) Stale(t time.Time) bool {
	if !e.StaleAt.After(e.CachedAt) || !e.StaleAt.Before(e.ServeUntil) {
		return false
	}
	return !t.Before(e.StaleAt)
}

func NewCache(now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	items := ttlcache.New[server_structs.ObjectKey, CacheEntry](
		ttlcache.WithDisableTouchOnHit[server_structs.ObjectKey, CacheEntry](),
	)
	items.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[server_structs.ObjectKey, CacheEntry]) {
		if reason == ttlcache.EvictionReasonExpired {
			log.Debugf("Evicted expired signed URL for %s", item.Key())
		}
	})
	return &Cache{items: items, now: now}
}

// Start runs the janitor that physically removes URLs the backend no
// longer honors.  It blocks until Stop is called.
func (c *Cache) Start() {
	c.items.Start()
}

func (c *Cache) Stop() {
	c.items.Stop()
}

// Get returns the entry for key if it is still within its serving window.
// An entry past ServeUntil behaves as absent even if it has not been
// evicted yet.  A read never changes what is cached or when it lapses; the
// only state it touches is ttlcache's hit and miss counters, which are
// exported through ReportMetrics and nothing else reads.
func (c *Cache) Get(key server_structs.ObjectKey) (CacheEntry, bool) {
	item := c.items.Get(key)
	if item == nil {
		return CacheEntry{}, false
	}
	entry := item.Value()
	if !entry.Fresh(c.now()) {
		return CacheEntry{}, false
	}
	return entry, true
}

// Put stores entry, replacing anything already cached under its key.
// Entries with an empty serving window are dropped.
func (c *Cache) Put(entry CacheEntry) {
	if !entry.ServeUntil.After(entry.CachedAt) {
		c.items.Delete(entry.Key)
		return
	}
	// The physical TTL is the time until the backend stops honoring the
	// URL, measured on the wall clock the janitor uses.
	ttl := entry.ExpiresAt.Sub(entry.CachedAt)
	if ttl <= 0 {
		return
	}
	c.items.Set(entry.Key, entry, ttl)
}

func (c *Cache) Invalidate(key server_structs.ObjectKey) {
	c.items.Delete(key)
}

func (c *Cache) Clear() {
	c.items.DeleteAll()
}

// Len counts physically present entries, including ones past their serving
// window that the janitor has not removed yet.
func (c *Cache) Len() int {
	return c.items.Len()
}

// ReportMetrics publishes the cache statistics as gauges.
func (c *Cache) ReportMetrics(name string) {
	m := c.items.Metrics()
	metrics.MediadeckTTLCache.WithLabelValues(name, "evictions").Set(float64(m.Evictions))
	metrics.MediadeckTTLCache.WithLabelValues(name, "insertions").Set(float64(m.Insertions))
	metrics.MediadeckTTLCache.WithLabelValues(name, "hits").Set(float64(m.Hits))
	metrics.MediadeckTTLCache.WithLabelValues(name, "misses").Set(float64(m.Misses))
	metrics.MediadeckTTLCache.WithLabelValues(name, "total").Set(float64(c.items.Len()))
}
