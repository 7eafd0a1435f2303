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
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mediadeck/mediadeck/metrics"
	"github.com/mediadeck/mediadeck/server_structs"
	"github.com/mediadeck/mediadeck/storage_client"
)

type (
	// Item names one object in a batch or prefetch request.  A zero TTL
	// uses the configured default.
	Item struct {
		Bucket string
		Path   string
		TTL    time.Duration
	}

	// BatchResult holds the outcome of every distinct key in a batch.  A
	// key appears in exactly one of the two maps.
	BatchResult struct {
		URLs   map[server_structs.ObjectKey]string
		Errors map[server_structs.ObjectKey]error
	}

	Option func(*Coordinator)

	// bulkClaim is a call registered by a bulk prefetch, together with the
	// cache generation it was claimed in.
	bulkClaim struct {
		cl  *call
		gen uint64
	}

	// call is one in-flight resolution that any number of lookups for the
	// same key may wait on.
	call struct {
		done chan struct{}
		url  string
		err  error
		// handedOff marks a call that ended without an outcome its waiters
		// may use; each of them resolves the key again on its own.
		handedOff bool
	}

	// Coordinator is the entry point for signed URL lookups.  It owns the
	// cache and the failure tracker and guarantees at most one remote
	// resolution in flight per key.
	Coordinator struct {
		cfg      Config
		resolver storage_client.Resolver
		retry    *RetryController
		cache    *Cache
		failures *failureTracker
		now      func() time.Time
		sleep    Sleeper
		bus      *InvalidationBus
		busName  string

		// sfMu protects inflight and generation, and is held while a
		// finished resolution is written to the cache.
		sfMu       sync.Mutex
		inflight   map[server_structs.ObjectKey]*call
		generation uint64

		// Tracks resolutions, refreshes and prefetches still running.
		background sync.WaitGroup
	}
)

// WithClock replaces the clock used for cache and cooldown decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithSleeper replaces the backoff delay between retries.
func WithSleeper(sleep Sleeper) Option {
	return func(c *Coordinator) {
		c.sleep = sleep
	}
}

// WithInvalidationBus makes the Coordinator clear all of its state
// whenever an invalidation is published on bus.
func WithInvalidationBus(bus *InvalidationBus) Option {
	return func(c *Coordinator) {
		c.bus = bus
	}
}

func NewCoordinator(cfg Config, resolver storage_client.Resolver, opts ...Option) (*Coordinator, error) {
	if resolver == nil {
		return nil, errors.New("a resolver is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid signed URL configuration")
	}
	cfg.AllowedBuckets = append([]server_structs.Bucket(nil), cfg.AllowedBuckets...)

	c := &Coordinator{
		cfg:      cfg,
		resolver: resolver,
		now:      time.Now,
		inflight: make(map[server_structs.ObjectKey]*call),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry = NewRetryController(resolver, cfg.MaxRetries, cfg.RetryBaseDelay, c.sleep)
	c.cache = NewCache(c.now)
	c.failures = newFailureTracker(cfg.MaxRetries, cfg.FailureCooldown, c.now)

	if c.bus != nil {
		c.busName = fmt.Sprintf("signed-url-coordinator-%p", c)
		c.bus.Subscribe(c.busName, func(reason string) {
			c.ClearCache()
		})
	}
	return c, nil
}

// Config returns a copy of the configuration the Coordinator runs with.
func (c *Coordinator) Config() Config {
	cfg := c.cfg
	cfg.AllowedBuckets = append([]server_structs.Bucket(nil), c.cfg.AllowedBuckets...)
	return cfg
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func validObjectPath(objectPath string) error {
	if !utf8.ValidString(objectPath) {
		return errors.New("is not valid UTF-8")
	}
	for _, r := range objectPath {
		if unicode.IsControl(r) {
			return errors.New("contains control characters")
		}
	}
	if strings.HasPrefix(objectPath, "/") || strings.HasSuffix(objectPath, "/") {
		return errors.New("must not start or end with '/'")
	}
	for _, segment := range strings.Split(objectPath, "/") {
		switch segment {
		case "":
			return errors.New("contains an empty segment")
		case ".", "..":
			return errors.Errorf("contains a %q segment", segment)
		}
	}
	return nil
}

// validate checks a caller-supplied request without touching the network.
func (c *Coordinator) validate(rawBucket, objectPath string, ttl time.Duration) (server_structs.ObjectKey, error) {
	if strings.TrimSpace(rawBucket) == "" {
		return server_structs.ObjectKey{}, invalid("bucket", "must not be empty")
	}
	bucket, err := server_structs.ParseBucket(rawBucket)
	if err != nil {
		return server_structs.ObjectKey{}, invalid("bucket", "unknown bucket %q", rawBucket)
	}
	if !c.cfg.bucketAllowed(bucket) {
		return server_structs.ObjectKey{}, invalid("bucket", "bucket %q is not allowed", bucket)
	}

	if objectPath == "" {
		return server_structs.ObjectKey{}, invalid("path", "must not be empty")
	}
	if len(objectPath) > c.cfg.MaxPathLength {
		return server_structs.ObjectKey{}, invalid("path", "longer than %d bytes", c.cfg.MaxPathLength)
	}
	if err := validObjectPath(objectPath); err != nil {
		return server_structs.ObjectKey{}, invalid("path", "%v", err)
	}

	switch {
	case ttl < 0:
		return server_structs.ObjectKey{}, invalid("ttl", "must not be negative")
	case ttl == 0:
	case ttl < time.Second:
		return server_structs.ObjectKey{}, invalid("ttl", "must be at least 1s")
	case ttl > c.cfg.MaxExpiry:
		return server_structs.ObjectKey{}, invalid("ttl", "%s exceeds the maximum of %s", ttl, c.cfg.MaxExpiry)
	case !wholeSeconds(ttl):
		return server_structs.ObjectKey{}, invalid("ttl", "must be a whole number of seconds")
	}
	return server_structs.NewObjectKey(bucket, objectPath), nil
}

func (c *Coordinator) cooldownError(key server_structs.ObjectKey) error {
	failures, retryAfter, blocked := c.failures.check(key)
	if !blocked {
		return nil
	}
	return &CooldownError{Bucket: key.Bucket, Path: key.Path, Failures: failures, RetryAfter: retryAfter}
}

// cached returns a servable URL for key, starting a background refresh if
// the entry has gone stale.
func (c *Coordinator) cached(key server_structs.ObjectKey) (string, metrics.LookupResult, bool) {
	entry, ok := c.cache.Get(key)
	if !ok {
		return "", metrics.LookupMiss, false
	}
	if entry.Stale(c.now()) {
		if _, _, blocked := c.failures.check(key); !blocked {
			c.refresh(key, entry.ExpiresAt.Sub(entry.CachedAt))
		}
		return entry.URL, metrics.LookupStaleHit, true
	}
	return entry.URL, metrics.LookupHit, true
}

// Lookup returns a signed URL for bucket/path valid for ttl (zero for the
// default).  Input is validated before anything else and a cached URL is
// returned without I/O.  Otherwise, unless the key is cooling down after
// repeated failures, the URL is resolved, sharing any resolution already
// in flight for the same object.
func (c *Coordinator) Lookup(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error) {
	key, err := c.validate(bucket, objectPath, ttl)
	if err != nil {
		metrics.MediadeckSignedUrlLookupsTotal.WithLabelValues(bucketLabel(bucket), string(metrics.LookupValidation)).Inc()
		return "", err
	}
	return c.lookupKey(ctx, key, ttl)
}

func bucketLabel(raw string) string {
	if bucket, err := server_structs.ParseBucket(raw); err == nil {
		return bucket.String()
	}
	return "invalid"
}

func (c *Coordinator) lookupKey(ctx context.Context, key server_structs.ObjectKey, ttl time.Duration) (string, error) {
	bucket := key.Bucket.String()
	if signed, result, ok := c.cached(key); ok {
		metrics.MediadeckSignedUrlLookupsTotal.WithLabelValues(bucket, string(result)).Inc()
		return signed, nil
	}
	if err := c.cooldownError(key); err != nil {
		metrics.MediadeckSignedUrlLookupsTotal.WithLabelValues(bucket, string(metrics.LookupCooldown)).Inc()
		metrics.MediadeckSignedUrlFailuresTotal.WithLabelValues(bucket, string(KindCooldown)).Inc()
		return "", err
	}

	eff := c.cfg.EffectiveExpiry(ttl, false)
	for attempt := 0; ; attempt++ {
		cl, leader := c.join(ctx, key, eff, true)
		if attempt == 0 {
			if leader {
				metrics.MediadeckSignedUrlLookupsTotal.WithLabelValues(bucket, string(metrics.LookupMiss)).Inc()
			} else {
				metrics.MediadeckSignedUrlLookupsTotal.WithLabelValues(bucket, string(metrics.LookupShared)).Inc()
			}
		}
		select {
		case <-cl.done:
		case <-ctx.Done():
			return "", errors.Wrapf(ctx.Err(), "signed URL lookup for %s abandoned", key)
		}
		if cl.handedOff {
			log.Debugf("Bulk signing of %s was rejected as unauthorized; resolving it individually", key)
			continue
		}
		if cl.err != nil {
			metrics.MediadeckSignedUrlFailuresTotal.WithLabelValues(bucket, string(ErrorKind(cl.err))).Inc()
		}
		return cl.url, cl.err
	}
}

// claim registers a new in-flight call for key unless one already exists.
func (c *Coordinator) claim(key server_structs.ObjectKey) (cl *call, gen uint64, leader bool) {
	c.sfMu.Lock()
	defer c.sfMu.Unlock()
	if existing, ok := c.inflight[key]; ok {
		return existing, c.generation, false
	}
	cl = &call{done: make(chan struct{})}
	c.inflight[key] = cl
	return cl, c.generation, true
}

// join returns the in-flight call for key, starting one with validity eff
// if there is none.  The resolution runs detached from ctx so that it
// completes, and fills the cache, even if every waiter gives up.  A failure
// of a call started here counts toward cooldown only if trackFailures.
func (c *Coordinator) join(ctx context.Context, key server_structs.ObjectKey, eff time.Duration, trackFailures bool) (*call, bool) {
	cl, gen, leader := c.claim(key)
	if !leader {
		return cl, false
	}
	loadCtx := context.WithoutCancel(ctx)
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		metrics.MediadeckSignedUrlInflight.Inc()
		defer metrics.MediadeckSignedUrlInflight.Dec()

		issued := c.now()
		start := time.Now()
		signed, state, err := c.retry.Resolve(loadCtx, storage_client.SignRequest{Bucket: key.Bucket, Path: key.Path, TTL: eff})
		metrics.MediadeckSignedUrlResolveSeconds.WithLabelValues(key.Bucket.String()).Observe(time.Since(start).Seconds())
		if err != nil {
			log.WithFields(log.Fields{
				"bucket":   key.Bucket,
				"path":     key.Path,
				"attempts": state.Attempt,
				"class":    state.LastError,
			}).Debugln("Failed to resolve signed URL:", err)
		}
		c.complete(key, cl, gen, signed, eff, issued, err, trackFailures)
	}()
	return cl, true
}

// complete publishes the outcome of cl to its waiters and, unless the
// cache was cleared since cl was claimed, records it in the cache and the
// failure tracker.
func (c *Coordinator) complete(key server_structs.ObjectKey, cl *call, gen uint64, signed string, eff time.Duration, issued time.Time, err error, trackFailures bool) {
	c.sfMu.Lock()
	defer c.sfMu.Unlock()
	if gen == c.generation {
		if err == nil {
			c.cache.Put(c.newEntry(key, signed, eff, issued))
			c.failures.recordSuccess(key)
		} else if trackFailures {
			if count := c.failures.recordFailure(key); count >= c.failures.threshold {
				log.Warningf("Signed URL for %s has failed %d times; pausing lookups for %s", key, count, c.cfg.FailureCooldown)
			}
		}
	}
	if c.inflight[key] == cl {
		delete(c.inflight, key)
	}
	cl.url, cl.err = signed, err
	close(cl.done)
}

// newEntry computes the serving window of a URL requested at issued with
// validity eff.  Measuring from the request time keeps ServeUntil on the
// safe side of the backend's own expiry.
func (c *Coordinator) newEntry(key server_structs.ObjectKey, signed string, eff time.Duration, issued time.Time) CacheEntry {
	return CacheEntry{
		Key:        key,
		URL:        signed,
		ExpiresAt:  issued.Add(eff),
		CachedAt:   issued,
		ServeUntil: issued.Add(c.cfg.CacheLifetime(eff)),
		StaleAt:    issued.Add(c.cfg.StaleAfter(eff)),
	}
}

// handOff ends cl without an outcome.  Lookups waiting on it go back
// through join, so the key gets a resolution of its own with the usual
// expired-class retries.
func (c *Coordinator) handOff(key server_structs.ObjectKey, cl *call) {
	c.sfMu.Lock()
	defer c.sfMu.Unlock()
	if c.inflight[key] == cl {
		delete(c.inflight, key)
	}
	cl.handedOff = true
	close(cl.done)
}

// refresh re-resolves a stale key in the background.  It is a no-op if a
// resolution for key is already running.
func (c *Coordinator) refresh(key server_structs.ObjectKey, eff time.Duration) {
	if eff <= 0 {
		eff = c.cfg.DefaultExpiry
	}
	if _, leader := c.join(context.Background(), key, eff, true); leader {
		log.Debugf("Refreshing stale signed URL for %s", key)
	}
}

// BatchLookup resolves every item, serving cached keys directly and
// resolving the rest grouped by bucket with bounded concurrency.  A
// failure for one key never affects the others.  Repeated keys are
// resolved once, with the TTL of their first occurrence.
func (c *Coordinator) BatchLookup(ctx context.Context, items []Item) BatchResult {
	result := BatchResult{
		URLs:   make(map[server_structs.ObjectKey]string),
		Errors: make(map[server_structs.ObjectKey]error),
	}
	pending := make(map[server_structs.Bucket][]Item)
	seen := make(map[server_structs.ObjectKey]bool, len(items))

	for _, item := range items {
		key, err := c.validate(item.Bucket, item.Path, item.TTL)
		if err != nil {
			metrics.MediadeckSignedUrlLookupsTotal.WithLabelValues(bucketLabel(item.Bucket), string(metrics.LookupValidation)).Inc()
			result.Errors[server_structs.NewObjectKey(server_structs.Bucket(item.Bucket), item.Path)] = err
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		if signed, lookupResult, ok := c.cached(key); ok {
			metrics.MediadeckSignedUrlLookupsTotal.WithLabelValues(key.Bucket.String(), string(lookupResult)).Inc()
			result.URLs[key] = signed
			continue
		}
		if err := c.cooldownError(key); err != nil {
			metrics.MediadeckSignedUrlLookupsTotal.WithLabelValues(key.Bucket.String(), string(metrics.LookupCooldown)).Inc()
			result.Errors[key] = err
			continue
		}
		item.Bucket = key.Bucket.String()
		pending[key.Bucket] = append(pending[key.Bucket], item)
	}

	var mu sync.Mutex
	var egrp errgroup.Group
	egrp.SetLimit(c.cfg.BatchConcurrency)
	for _, bucket := range sortedBuckets(pending) {
		for _, item := range pending[bucket] {
			item := item
			egrp.Go(func() error {
				key := server_structs.NewObjectKey(server_structs.Bucket(item.Bucket), item.Path)
				signed, err := c.lookupKey(ctx, key, item.TTL)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Errors[key] = err
				} else {
					result.URLs[key] = signed
				}
				return nil
			})
		}
	}
	_ = egrp.Wait()
	return result
}

func sortedBuckets[V any](groups map[server_structs.Bucket]V) []server_structs.Bucket {
	buckets := make([]server_structs.Bucket, 0, len(groups))
	for bucket := range groups {
		buckets = append(buckets, bucket)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })
	return buckets
}

// Prefetch warms the cache for items using the prefetch expiry and returns
// immediately.  Invalid items and failures are logged, never returned.
// Use Wait to block until the work is done.
func (c *Coordinator) Prefetch(ctx context.Context, items []Item) {
	groups := make(map[server_structs.Bucket][]server_structs.ObjectKey)
	ttls := make(map[server_structs.ObjectKey]time.Duration)
	for _, item := range items {
		key, err := c.validate(item.Bucket, item.Path, item.TTL)
		if err != nil {
			log.Warningf("Skipping invalid prefetch item %s/%s: %v", item.Bucket, item.Path, err)
			metrics.MediadeckSignedUrlPrefetchedTotal.WithLabelValues(bucketLabel(item.Bucket), "invalid").Inc()
			continue
		}
		if _, ok := ttls[key]; ok {
			continue
		}
		ttls[key] = c.cfg.EffectiveExpiry(item.TTL, true)
		groups[key.Bucket] = append(groups[key.Bucket], key)
	}
	if len(groups) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		var egrp errgroup.Group
		egrp.SetLimit(c.cfg.PrefetchConcurrency)
		batcher, canBatch := c.resolver.(storage_client.BatchResolver)
		for _, bucket := range sortedBuckets(groups) {
			keys := c.prefetchCandidates(groups[bucket])
			if canBatch {
				for _, chunk := range chunkKeys(keys, c.cfg.PrefetchBatchSize) {
					chunk := chunk
					egrp.Go(func() error {
						c.prefetchBulk(ctx, batcher, chunk, ttls)
						return nil
					})
				}
				continue
			}
			for _, key := range keys {
				key := key
				egrp.Go(func() error {
					c.prefetchOne(ctx, key, ttls[key])
					return nil
				})
			}
		}
		_ = egrp.Wait()
	}()
}

// prefetchCandidates drops keys that are already cached or cooling down.
func (c *Coordinator) prefetchCandidates(keys []server_structs.ObjectKey) []server_structs.ObjectKey {
	candidates := make([]server_structs.ObjectKey, 0, len(keys))
	for _, key := range keys {
		if _, ok := c.cache.Get(key); ok {
			metrics.MediadeckSignedUrlPrefetchedTotal.WithLabelValues(key.Bucket.String(), "cached").Inc()
			continue
		}
		if _, _, blocked := c.failures.check(key); blocked {
			metrics.MediadeckSignedUrlPrefetchedTotal.WithLabelValues(key.Bucket.String(), "skipped").Inc()
			continue
		}
		candidates = append(candidates, key)
	}
	return candidates
}

func chunkKeys(keys []server_structs.ObjectKey, size int) [][]server_structs.ObjectKey {
	var chunks [][]server_structs.ObjectKey
	for len(keys) > size {
		chunks = append(chunks, keys[:size])
		keys = keys[size:]
	}
	if len(keys) > 0 {
		chunks = append(chunks, keys)
	}
	return chunks
}

func (c *Coordinator) prefetchOne(ctx context.Context, key server_structs.ObjectKey, eff time.Duration) {
	cl, _ := c.join(ctx, key, eff, false)
	<-cl.done
	if cl.handedOff || cl.err != nil {
		log.Debugf("Prefetch of %s failed: %v", key, cl.err)
		metrics.MediadeckSignedUrlPrefetchedTotal.WithLabelValues(key.Bucket.String(), "failed").Inc()
		return
	}
	metrics.MediadeckSignedUrlPrefetchedTotal.WithLabelValues(key.Bucket.String(), "resolved").Inc()
}

// prefetchBulk signs every key of one bucket with a single backend call.
// Keys another lookup is already resolving are left to that lookup; the
// rest are registered as in flight so concurrent lookups wait for the bulk
// result instead of issuing their own call.
func (c *Coordinator) prefetchBulk(ctx context.Context, batcher storage_client.BatchResolver, keys []server_structs.ObjectKey, ttls map[server_structs.ObjectKey]time.Duration) {
	if len(keys) == 0 {
		return
	}
	bucket := keys[0].Bucket
	calls := make(map[string]bulkClaim, len(keys))
	paths := make([]string, 0, len(keys))
	// One call carries one expiry, so the chunk uses the shortest requested.
	var eff time.Duration
	for _, key := range keys {
		cl, gen, leader := c.claim(key)
		if !leader {
			metrics.MediadeckSignedUrlPrefetchedTotal.WithLabelValues(bucket.String(), "skipped").Inc()
			continue
		}
		calls[key.Path] = bulkClaim{cl, gen}
		paths = append(paths, key.Path)
		if eff == 0 || ttls[key] < eff {
			eff = ttls[key]
		}
	}
	if len(paths) == 0 {
		return
	}

	metrics.MediadeckSignedUrlInflight.Add(float64(len(paths)))
	defer metrics.MediadeckSignedUrlInflight.Sub(float64(len(paths)))
	issued := c.now()
	results, err := batcher.ResolveBatch(ctx, bucket, paths, eff)
	if err != nil {
		metrics.MediadeckSignedUrlRemoteCallsTotal.WithLabelValues(bucket.String(), storage_client.KindOf(err).String()).Inc()
		log.Warningf("Bulk prefetch of %d objects in bucket %s failed: %v", len(paths), bucket, err)
		for _, objectPath := range paths {
			claim := calls[objectPath]
			c.failPrefetch(server_structs.NewObjectKey(bucket, objectPath), claim, eff, issued, err)
		}
		return
	}
	metrics.MediadeckSignedUrlRemoteCallsTotal.WithLabelValues(bucket.String(), "success").Inc()

	for _, res := range results {
		claim, ok := calls[res.Path]
		if !ok {
			continue
		}
		delete(calls, res.Path)
		key := server_structs.NewObjectKey(bucket, res.Path)
		if res.Err != nil {
			log.Debugf("Prefetch of %s failed: %v", key, res.Err)
			c.failPrefetch(key, claim, eff, issued, res.Err)
			continue
		}
		c.complete(key, claim.cl, claim.gen, res.URL, eff, issued, nil, false)
		metrics.MediadeckSignedUrlPrefetchedTotal.WithLabelValues(bucket.String(), "resolved").Inc()
	}
	// Anything the resolver left out must still release its waiters.
	for objectPath, claim := range calls {
		missing := &storage_client.ResolveError{Kind: storage_client.KindUnknown, Message: "missing from bulk response", Bucket: bucket, Path: objectPath}
		c.failPrefetch(server_structs.NewObjectKey(bucket, objectPath), claim, eff, issued, missing)
	}
}

// failPrefetch ends a bulk-claimed call that did not produce a URL.  A bulk
// call is a single attempt, so an expired-class rejection is not final for
// lookups waiting on it: they are handed off to the retrying single-key
// path.  Any other failure reaches them as it would from a single call.
func (c *Coordinator) failPrefetch(key server_structs.ObjectKey, claim bulkClaim, eff time.Duration, issued time.Time, err error) {
	metrics.MediadeckSignedUrlPrefetchedTotal.WithLabelValues(key.Bucket.String(), "failed").Inc()
	if storage_client.IsExpiredClass(err) {
		c.handOff(key, claim.cl)
		return
	}
	c.complete(key, claim.cl, claim.gen, "", eff, issued, &TransientError{Bucket: key.Bucket, Path: key.Path, Err: err}, false)
}

// Wait blocks until every background resolution, refresh and prefetch
// started so far has finished.
func (c *Coordinator) Wait() {
	c.background.Wait()
}

// Invalidate drops the cached URL for one object.
func (c *Coordinator) Invalidate(bucket, objectPath string) error {
	key, err := c.validate(bucket, objectPath, 0)
	if err != nil {
		return err
	}
	c.cache.Invalidate(key)
	return nil
}

// ClearCache removes every cached URL and all failure tracking.  Results
// of resolutions already in flight are still delivered to their waiters
// but are not cached.
func (c *Coordinator) ClearCache() {
	c.sfMu.Lock()
	defer c.sfMu.Unlock()
	c.generation++
	c.inflight = make(map[server_structs.ObjectKey]*call)
	c.cache.Clear()
	c.failures.clear()
	log.Debugln("Cleared all cached signed URLs and failure history")
}

// PruneFailures forgets failure records whose cooldown has passed.
func (c *Coordinator) PruneFailures() int {
	return c.failures.prune()
}

func (c *Coordinator) CacheLen() int {
	return c.cache.Len()
}

// TrackedFailures is the number of keys with recent failed resolutions.
func (c *Coordinator) TrackedFailures() int {
	return c.failures.len()
}

// ReportCacheMetrics publishes cache statistics under name.
func (c *Coordinator) ReportCacheMetrics(name string) {
	c.cache.ReportMetrics(name)
}

// StartJanitor runs the cache's expired-entry eviction until StopJanitor
// is called.
func (c *Coordinator) StartJanitor() {
	c.cache.Start()
}

func (c *Coordinator) StopJanitor() {
	c.cache.Stop()
}

// Close detaches the Coordinator from its invalidation bus.
func (c *Coordinator) Close() {
	if c.bus != nil {
		c.bus.Unsubscribe(c.busName)
	}
}
