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
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediadeck/mediadeck/metrics"
	"github.com/mediadeck/mediadeck/server_structs"
	"github.com/mediadeck/mediadeck/storage_client"
	"github.com/mediadeck/mediadeck/test_utils"
)

func newTestCoordinator(t *testing.T, resolver storage_client.Resolver, mutate func(*Config), opts ...Option) (*Coordinator, *fakeClock, *delayRecorder) {
	t.Cleanup(test_utils.SetupTestLogging(t))
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	clock := newFakeClock()
	sleeper := &delayRecorder{}
	opts = append([]Option{WithClock(clock.Now), WithSleeper(sleeper.Sleep)}, opts...)
	c, err := NewCoordinator(cfg, resolver, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Wait)
	return c, clock, sleeper
}

var (
	mediaKey = server_structs.NewObjectKey(server_structs.MediaBucket, "clips/a.mp4")
	thumbKey = server_structs.NewObjectKey(server_structs.ThumbnailsBucket, "clips/a.jpg")
)

func failingFor(paths ...string) test_utils.ResolveFunc {
	return func(req storage_client.SignRequest, n int) (string, error) {
		for _, objectPath := range paths {
			if req.Path == objectPath {
				return "", statusError(req, 404)
			}
		}
		return test_utils.FakeURL(req, n), nil
	}
}

func TestNewCoordinatorRejectsBadInput(t *testing.T) {
	_, err := NewCoordinator(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.DefaultExpiry = 2 * cfg.MaxExpiry
	_, err = NewCoordinator(cfg, test_utils.NewFakeResolver())
	assert.Error(t, err)
}

func TestLookupCacheHitAvoidsNetwork(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	c, clock, _ := newTestCoordinator(t, resolver, nil)
	ctx := context.Background()

	first, err := c.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.Calls())
	assert.Equal(t, time.Hour, resolver.Requests()[0].TTL)

	clock.Advance(30 * time.Minute)
	second, err := c.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, resolver.Calls())
}

func TestLookupExpiryTriggersRefetch(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	c, clock, _ := newTestCoordinator(t, resolver, nil)
	ctx := context.Background()

	first, err := c.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)

	// Within the cache buffer of the URL's expiry
	clock.Advance(55 * time.Minute)
	second, err := c.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, resolver.Calls())

	// Past the URL's expiry altogether
	clock.Advance(2 * time.Hour)
	_, err = c.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, resolver.Calls())
}

func TestLookupRequestedTTL(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	c, _, _ := newTestCoordinator(t, resolver, nil)

	_, err := c.Lookup(context.Background(), "avatars", "u/1.png", 30*time.Minute)
	require.NoError(t, err)
	_, err = c.Lookup(context.Background(), "avatars", "u/2.png", 24*time.Hour)
	require.NoError(t, err)

	requests := resolver.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, 30*time.Minute, requests[0].TTL)
	assert.Equal(t, 24*time.Hour, requests[1].TTL)
}

func TestLookupWithoutCacheLifetime(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	c, _, _ := newTestCoordinator(t, resolver, nil)

	for i := 0; i < 3; i++ {
		_, err := c.Lookup(context.Background(), "media", "short.mp4", time.Minute)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, resolver.Calls(), "a TTL inside the cache buffer is never cached")
	assert.Equal(t, 0, c.CacheLen())
}

func TestLookupDeduplicates(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	c, _, _ := newTestCoordinator(t, resolver, nil)
	release := resolver.Hold()
	defer release()

	const waiters = 20
	urls := make([]string, waiters)
	errs := make([]error, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			urls[i], errs[i] = c.Lookup(context.Background(), "thumbnails", "clips/a.jpg", 0)
		}(i)
	}

	_, ok := resolver.AwaitStarted(5 * time.Second)
	require.True(t, ok)
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()

	assert.Equal(t, 1, resolver.Calls())
	for i := 0; i < waiters; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, urls[0], urls[i])
	}
}

func TestLookupDeduplicatesFailures(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	resolver.Respond(failingFor("missing.jpg"))
	c, _, _ := newTestCoordinator(t, resolver, func(cfg *Config) { cfg.FailureCooldown = 0 })
	release := resolver.Hold()
	defer release()

	const waiters = 5
	errs := make([]error, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Lookup(context.Background(), "thumbnails", "missing.jpg", 0)
		}(i)
	}
	_, ok := resolver.AwaitStarted(5 * time.Second)
	require.True(t, ok)
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()

	// Late arrivals may start a second call once the first has failed, but
	// everyone who shared the first call saw the same error
	assert.LessOrEqual(t, resolver.Calls(), waiters)
	for i := 0; i < waiters; i++ {
		require.Error(t, errs[i])
		assert.Equal(t, KindTransient, ErrorKind(errs[i]))
	}
}

func TestLookupRetriesExpired(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	resolver.Respond(func(req storage_client.SignRequest, n int) (string, error) {
		return "", statusError(req, 403)
	})
	c, _, sleeper := newTestCoordinator(t, resolver, nil)

	_, err := c.Lookup(context.Background(), "media", "clips/a.mp4", 0)
	require.Error(t, err)
	assert.Equal(t, 4, resolver.Calls())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeper.Delays())

	expired := &ExpiredUrlError{}
	require.ErrorAs(t, err, &expired)
	assert.Equal(t, server_structs.MediaBucket, expired.Bucket)
	assert.Equal(t, "clips/a.mp4", expired.Path)
}

func TestLookupNoRetryOnOtherFailure(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	resolver.Respond(failingFor("clips/a.mp4"))
	c, _, sleeper := newTestCoordinator(t, resolver, nil)

	_, err := c.Lookup(context.Background(), "media", "clips/a.mp4", 0)
	require.Error(t, err)
	assert.Equal(t, 1, resolver.Calls())
	assert.Empty(t, sleeper.Delays())
	assert.Equal(t, KindTransient, ErrorKind(err))
	assert.Equal(t, storage_client.KindNotFound, storage_client.KindOf(err))
}

func TestLookupValidationPrecedesIO(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	c, _, _ := newTestCoordinator(t, resolver, func(cfg *Config) {
		cfg.AllowedBuckets = []server_structs.Bucket{server_structs.MediaBucket, server_structs.ThumbnailsBucket}
		cfg.MaxPathLength = 64
	})

	tests := []struct {
		name   string
		bucket string
		path   string
		ttl    time.Duration
		field  string
	}{
		{"empty-bucket", "", "a.mp4", 0, "bucket"},
		{"blank-bucket", "  ", "a.mp4", 0, "bucket"},
		{"unknown-bucket", "secrets", "a.mp4", 0, "bucket"},
		{"bucket-not-allowed", "avatars", "a.png", 0, "bucket"},
		{"empty-path", "media", "", 0, "path"},
		{"leading-slash", "media", "/a.mp4", 0, "path"},
		{"trailing-slash", "media", "clips/", 0, "path"},
		{"empty-segment", "media", "clips//a.mp4", 0, "path"},
		{"dot-dot", "media", "clips/../a.mp4", 0, "path"},
		{"control-char", "media", "a\x00.mp4", 0, "path"},
		{"too-long", "media", strings.Repeat("a", 65), 0, "path"},
		{"negative-ttl", "media", "a.mp4", -time.Second, "ttl"},
		{"sub-second-ttl", "media", "a.mp4", 500 * time.Millisecond, "ttl"},
		{"ttl-above-max", "media", "a.mp4", 25 * time.Hour, "ttl"},
		{"fractional-ttl", "media", "a.mp4", 1500 * time.Millisecond, "ttl"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Lookup(context.Background(), tc.bucket, tc.path, tc.ttl)
			require.Error(t, err)
			validation := &ValidationError{}
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tc.field, validation.Field)
			assert.Equal(t, KindValidation, ErrorKind(err))
		})
	}
	assert.Equal(t, 0, resolver.Calls())

	_, err := c.Lookup(context.Background(), "media", "clips/a b/ünïcode.mp4", 24*time.Hour)
	assert.NoError(t, err)
}

func TestClearCacheWipesState(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	c, _, _ := newTestCoordinator(t, resolver, nil)
	ctx := context.Background()

	_, err := c.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)
	_, err = c.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.Calls())

	c.ClearCache()
	assert.Equal(t, 0, c.CacheLen())
	_, err = c.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, resolver.Calls())
}

func TestClearCacheDuringResolution(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	c, _, _ := newTestCoordinator(t, resolver, nil)
	release := resolver.Hold()
	defer release()

	done := make(chan error, 1)
	go func() {
		_, err := c.Lookup(context.Background(), "media", "clips/a.mp4", 0)
		done <- err
	}()
	_, ok := resolver.AwaitStarted(5 * time.Second)
	require.True(t, ok)

	c.ClearCache()
	release()
	require.NoError(t, <-done)
	c.Wait()

	// The result predates the clear, so it was delivered but not cached
	assert.Equal(t, 0, c.CacheLen())
	_, err := c.Lookup(context.Background(), "media", "clips/a.mp4", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, resolver.Calls())
}

func TestInvalidateSingleKey(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	c, _, _ := newTestCoordinator(t, resolver, nil)
	ctx := context.Background()

	_, err := c.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)
	_, err = c.Lookup(ctx, "thumbnails", "clips/a.jpg", 0)
	require.NoError(t, err)

	require.NoError(t, c.Invalidate("media", "clips/a.mp4"))
	_, err = c.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)
	_, err = c.Lookup(ctx, "thumbnails", "clips/a.jpg", 0)
	require.NoError(t, err)

	assert.Equal(t, 2, resolver.CallsFor(mediaKey))
	assert.Equal(t, 1, resolver.CallsFor(thumbKey))

	err = c.Invalidate("secrets", "clips/a.mp4")
	assert.Equal(t, KindValidation, ErrorKind(err))
}

func TestAbandonedLookupStillPopulatesCache(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	c, _, _ := newTestCoordinator(t, resolver, nil)
	release := resolver.Hold()
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Lookup(ctx, "media", "clips/a.mp4", 0)
		done <- err
	}()
	_, ok := resolver.AwaitStarted(5 * time.Second)
	require.True(t, ok)

	cancel()
	err := <-done
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindCanceled, ErrorKind(err))

	release()
	c.Wait()
	_, err = c.Lookup(context.Background(), "media", "clips/a.mp4", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.Calls())
}

func TestStaleHitRefreshesInBackground(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	c, clock, _ := newTestCoordinator(t, resolver, nil)
	ctx := context.Background()

	first, err := c.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)

	clock.Advance(51 * time.Minute)
	release := resolver.Hold()
	for i := 0; i < 5; i++ {
		stale, err := c.Lookup(ctx, "media", "clips/a.mp4", 0)
		require.NoError(t, err)
		assert.Equal(t, first, stale, "stale entries are still served")
	}
	release()
	c.Wait()
	assert.Equal(t, 2, resolver.Calls(), "stale hits trigger exactly one refresh")

	refreshed, err := c.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)
	assert.NotEqual(t, first, refreshed)
	assert.Equal(t, 2, resolver.Calls())
}

func TestShortTTLHitsNeverRefresh(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	c, clock, _ := newTestCoordinator(t, resolver, nil)
	ctx := context.Background()

	// Ten minutes equals the stale buffer, leaving no room for a refresh
	// before the five minute serving window ends
	first, err := c.Lookup(ctx, "media", "clips/a.mp4", 10*time.Minute)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		hit, err := c.Lookup(ctx, "media", "clips/a.mp4", 10*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, first, hit)
		c.Wait()
	}
	assert.Equal(t, 1, resolver.Calls())

	clock.Advance(5*time.Minute - time.Second)
	_, err = c.Lookup(ctx, "media", "clips/a.mp4", 10*time.Minute)
	require.NoError(t, err)
	c.Wait()
	assert.Equal(t, 1, resolver.Calls(), "hits near the end of the window do not refresh either")

	clock.Advance(time.Second)
	_, err = c.Lookup(ctx, "media", "clips/a.mp4", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, resolver.Calls(), "the lapsed entry is resolved again")
}

func TestFailureCooldown(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	resolver.Respond(failingFor("clips/a.mp4"))
	c, clock, _ := newTestCoordinator(t, resolver, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Lookup(ctx, "media", "clips/a.mp4", 0)
		assert.Equal(t, KindTransient, ErrorKind(err))
	}
	assert.Equal(t, 3, resolver.Calls())

	_, err := c.Lookup(ctx, "media", "clips/a.mp4", 0)
	cooldown := &CooldownError{}
	require.ErrorAs(t, err, &cooldown)
	assert.Equal(t, 3, cooldown.Failures)
	assert.Equal(t, time.Minute, cooldown.RetryAfter)
	assert.Equal(t, KindCooldown, ErrorKind(err))
	assert.Equal(t, 3, resolver.Calls(), "cooldown never reaches the backend")

	// Other keys are unaffected
	_, err = c.Lookup(ctx, "media", "clips/b.mp4", 0)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	resolver.Respond(failingFor())
	_, err = c.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)
	assert.Equal(t, 4, resolver.CallsFor(mediaKey))
}

func TestClearCacheResetsCooldown(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	resolver.Respond(failingFor("clips/a.mp4"))
	c, _, _ := newTestCoordinator(t, resolver, func(cfg *Config) { cfg.MaxRetries = 1 })
	ctx := context.Background()

	_, err := c.Lookup(ctx, "media", "clips/a.mp4", 0)
	assert.Equal(t, KindTransient, ErrorKind(err))
	_, err = c.Lookup(ctx, "media", "clips/a.mp4", 0)
	assert.Equal(t, KindCooldown, ErrorKind(err))

	c.ClearCache()
	_, err = c.Lookup(ctx, "media", "clips/a.mp4", 0)
	assert.Equal(t, KindTransient, ErrorKind(err))
	assert.Equal(t, 2, resolver.Calls())
}

func TestPruneFailures(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	resolver.Respond(failingFor("a.mp4", "b.mp4"))
	c, clock, _ := newTestCoordinator(t, resolver, nil)
	ctx := context.Background()

	_, _ = c.Lookup(ctx, "media", "a.mp4", 0)
	clock.Advance(30 * time.Second)
	_, _ = c.Lookup(ctx, "media", "b.mp4", 0)
	assert.Equal(t, 2, c.failures.len())

	clock.Advance(30 * time.Second)
	assert.Equal(t, 1, c.PruneFailures())
	assert.Equal(t, 1, c.failures.len())
}

func TestBatchLookupIsolatesFailures(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	resolver.Respond(failingFor("b.jpg"))
	c, _, _ := newTestCoordinator(t, resolver, nil)

	result := c.BatchLookup(context.Background(), []Item{
		{Bucket: "thumbnails", Path: "a.jpg"},
		{Bucket: "thumbnails", Path: "b.jpg"},
		{Bucket: "media", Path: "c.mp4"},
	})

	assert.Len(t, result.URLs, 2)
	assert.Contains(t, result.URLs, server_structs.NewObjectKey(server_structs.ThumbnailsBucket, "a.jpg"))
	assert.Contains(t, result.URLs, server_structs.NewObjectKey(server_structs.MediaBucket, "c.mp4"))
	require.Len(t, result.Errors, 1)
	assert.Equal(t, KindTransient, ErrorKind(result.Errors[server_structs.NewObjectKey(server_structs.ThumbnailsBucket, "b.jpg")]))
	assert.Equal(t, 3, resolver.Calls())
}

func TestBatchLookupPartitionsCached(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	c, _, _ := newTestCoordinator(t, resolver, nil)
	ctx := context.Background()

	cachedURL, err := c.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)

	result := c.BatchLookup(ctx, []Item{
		{Bucket: "media", Path: "clips/a.mp4"},
		{Bucket: "media", Path: "clips/b.mp4"},
		{Bucket: "media", Path: "clips/b.mp4", TTL: 5 * time.Minute},
		{Bucket: "secrets", Path: "x"},
	})

	assert.Equal(t, cachedURL, result.URLs[mediaKey])
	assert.Len(t, result.URLs, 2)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, KindValidation, ErrorKind(result.Errors[server_structs.NewObjectKey("secrets", "x")]))
	assert.Equal(t, 2, resolver.Calls(), "only the uncached key was resolved, once")
}

func TestPrefetchPerKey(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	c, _, _ := newTestCoordinator(t, resolver, nil)
	ctx := context.Background()

	c.Prefetch(ctx, []Item{
		{Bucket: "media", Path: "clips/a.mp4"},
		{Bucket: "thumbnails", Path: "clips/a.jpg"},
		{Bucket: "thumbnails", Path: "clips/a.jpg"},
		{Bucket: "nope", Path: "x"},
	})
	c.Wait()

	assert.Equal(t, 2, resolver.Calls())
	for _, req := range resolver.Requests() {
		assert.Equal(t, 2*time.Hour, req.TTL)
	}

	_, err := c.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)
	_, err = c.Lookup(ctx, "thumbnails", "clips/a.jpg", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, resolver.Calls())
}

func TestPrefetchFailuresAreNotSurfaced(t *testing.T) {
	resolver := test_utils.NewFakeResolver()
	resolver.Respond(failingFor("clips/a.mp4"))
	c, _, _ := newTestCoordinator(t, resolver, nil)

	c.Prefetch(context.Background(), []Item{{Bucket: "media", Path: "clips/a.mp4"}})
	c.Wait()
	assert.Equal(t, 1, resolver.Calls())
	assert.Equal(t, 0, c.CacheLen())
	assert.Zero(t, c.failures.len(), "prefetch failures do not feed the cooldown")
}

func TestPrefetchBulk(t *testing.T) {
	resolver := test_utils.NewFakeBatchResolver()
	c, _, _ := newTestCoordinator(t, resolver, func(cfg *Config) { cfg.PrefetchBatchSize = 2 })
	ctx := context.Background()

	_, err := c.Lookup(ctx, "media", "cached.mp4", 0)
	require.NoError(t, err)

	c.Prefetch(ctx, []Item{
		{Bucket: "media", Path: "a.mp4"},
		{Bucket: "thumbnails", Path: "a.jpg"},
		{Bucket: "media", Path: "b.mp4"},
		{Bucket: "media", Path: "cached.mp4"},
		{Bucket: "media", Path: "c.mp4"},
	})
	c.Wait()

	calls := resolver.BatchCalls()
	require.Len(t, calls, 3, "one bulk call per bucket chunk")
	var sizes []int
	for _, call := range calls {
		sizes = append(sizes, len(call))
		assert.NotContains(t, call, "cached.mp4")
	}
	assert.ElementsMatch(t, []int{2, 1, 1}, sizes)

	for _, objectPath := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		_, err := c.Lookup(ctx, "media", objectPath, 0)
		require.NoError(t, err)
	}
	_, err = c.Lookup(ctx, "thumbnails", "a.jpg", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.Calls(), "prefetched keys are served from the cache")
}

func TestPrefetchBulkSkipsInflight(t *testing.T) {
	resolver := test_utils.NewFakeBatchResolver()
	c, _, _ := newTestCoordinator(t, resolver, nil)
	release := resolver.Hold()
	defer release()

	done := make(chan error, 1)
	go func() {
		_, err := c.Lookup(context.Background(), "media", "a.mp4", 0)
		done <- err
	}()
	_, ok := resolver.AwaitStarted(5 * time.Second)
	require.True(t, ok)

	c.Prefetch(context.Background(), []Item{{Bucket: "media", Path: "a.mp4"}, {Bucket: "media", Path: "b.mp4"}})
	require.Eventually(t, func() bool { return len(resolver.BatchCalls()) == 1 }, 5*time.Second, 10*time.Millisecond)
	release()
	require.NoError(t, <-done)
	c.Wait()

	assert.Equal(t, [][]string{{"b.mp4"}}, resolver.BatchCalls())
	assert.Equal(t, 1, resolver.Calls())
}

func TestPrefetchBulkFailure(t *testing.T) {
	resolver := test_utils.NewFakeBatchResolver()
	resolver.FailBatch(&storage_client.ResolveError{Kind: storage_client.KindUnauthorized, StatusCode: 401})
	c, _, _ := newTestCoordinator(t, resolver, nil)

	c.Prefetch(context.Background(), []Item{{Bucket: "media", Path: "a.mp4"}})
	c.Wait()
	assert.Equal(t, 0, c.CacheLen())
	assert.Equal(t, 0, c.failures.len(), "prefetch failures do not count towards cooldown")

	_, err := c.Lookup(context.Background(), "media", "a.mp4", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.Calls())
}

// lookupJoiningBulk starts a Lookup for a key that a held bulk prefetch has
// already claimed and waits until the lookup is sharing that call.
func lookupJoiningBulk(t *testing.T, c *Coordinator, resolver *test_utils.FakeBatchResolver) <-chan error {
	shared := metrics.MediadeckSignedUrlLookupsTotal.WithLabelValues("media", string(metrics.LookupShared))
	before := testutil.ToFloat64(shared)

	c.Prefetch(context.Background(), []Item{{Bucket: "media", Path: "clips/a.mp4"}})
	paths, ok := resolver.AwaitBatchStarted(5 * time.Second)
	require.True(t, ok)
	require.Equal(t, []string{"clips/a.mp4"}, paths)

	done := make(chan error, 1)
	go func() {
		_, err := c.Lookup(context.Background(), "media", "clips/a.mp4", 0)
		done <- err
	}()
	require.Eventually(t, func() bool { return testutil.ToFloat64(shared) > before }, 5*time.Second, 5*time.Millisecond)
	return done
}

func TestLookupSharingBulkRetriesExpired(t *testing.T) {
	resolver := test_utils.NewFakeBatchResolver()
	resolver.Respond(func(req storage_client.SignRequest, n int) (string, error) {
		return "", statusError(req, 401)
	})
	c, _, sleeper := newTestCoordinator(t, resolver, nil)
	release := resolver.Hold()
	defer release()

	done := lookupJoiningBulk(t, c, resolver)
	release()
	err := <-done
	c.Wait()

	expired := &ExpiredUrlError{}
	require.ErrorAs(t, err, &expired)
	assert.Equal(t, 4, expired.Attempts, "the bulk rejection is not one of the lookup's attempts")
	assert.Equal(t, 4, resolver.Calls())
	assert.Len(t, resolver.BatchCalls(), 1)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeper.Delays())
}

func TestLookupSharingBulkRecoversAfterExpired(t *testing.T) {
	resolver := test_utils.NewFakeBatchResolver()
	var mu sync.Mutex
	answered := 0
	resolver.Respond(func(req storage_client.SignRequest, n int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		answered++
		if answered == 1 {
			return "", statusError(req, 403)
		}
		return test_utils.FakeURL(req, n), nil
	})
	c, _, _ := newTestCoordinator(t, resolver, nil)
	release := resolver.Hold()
	defer release()

	done := lookupJoiningBulk(t, c, resolver)
	release()
	require.NoError(t, <-done)
	c.Wait()

	assert.Equal(t, 1, resolver.Calls(), "one single-key resolution after the bulk rejection")
	assert.Equal(t, 1, c.CacheLen())
	assert.Zero(t, c.failures.len())
}

func TestLookupSharingBulkSeesTransientFailure(t *testing.T) {
	resolver := test_utils.NewFakeBatchResolver()
	resolver.Respond(func(req storage_client.SignRequest, n int) (string, error) {
		return "", statusError(req, 503)
	})
	c, _, sleeper := newTestCoordinator(t, resolver, nil)
	release := resolver.Hold()
	defer release()

	done := lookupJoiningBulk(t, c, resolver)
	release()
	err := <-done
	c.Wait()

	assert.Equal(t, KindTransient, ErrorKind(err))
	assert.Equal(t, 0, resolver.Calls())
	assert.Empty(t, sleeper.Delays())
}

func TestInvalidationBus(t *testing.T) {
	bus := NewInvalidationBus()
	resolver := test_utils.NewFakeResolver()
	c, _, _ := newTestCoordinator(t, resolver, nil, WithInvalidationBus(bus))
	ctx := context.Background()

	var reasons []string
	bus.Subscribe("recorder", func(reason string) { reasons = append(reasons, reason) })

	_, err := c.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)
	bus.Publish("sign-out")
	assert.Equal(t, []string{"sign-out"}, reasons)
	assert.Equal(t, 0, c.CacheLen())

	_, err = c.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, resolver.Calls())

	c.Close()
	bus.Unsubscribe("recorder")
	bus.Publish("")
	assert.Equal(t, 1, c.CacheLen())
	assert.Equal(t, []string{"sign-out"}, reasons)
}

func TestCoordinatorConfigIsACopy(t *testing.T) {
	c, _, _ := newTestCoordinator(t, test_utils.NewFakeResolver(), nil)
	cfg := c.Config()
	cfg.AllowedBuckets[0] = "changed"
	assert.Equal(t, server_structs.AllBuckets(), c.Config().AllowedBuckets)
	assert.Equal(t, DefaultConfig().View(), c.Config().View())
}
