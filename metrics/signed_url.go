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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type (
	LookupResult string
)

const (
	LookupHit        LookupResult = "hit"
	LookupStaleHit   LookupResult = "stale_hit"
	LookupMiss       LookupResult = "miss"
	LookupShared     LookupResult = "shared" // joined an in-flight resolution
	LookupValidation LookupResult = "validation_error"
	LookupCooldown   LookupResult = "cooldown"
)

var (
	MediadeckSignedUrlLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediadeck_signed_url_lookups_total",
		Help: "The total number of signed URL lookups, labelled by bucket and how the lookup was served",
	}, []string{"bucket", "result"})

	MediadeckSignedUrlRemoteCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediadeck_signed_url_remote_calls_total",
		Help: "The total number of calls to the storage backend to mint signed URLs. Outcome is success or the failure kind",
	}, []string{"bucket", "outcome"})

	MediadeckSignedUrlRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediadeck_signed_url_retries_total",
		Help: "The total number of retries scheduled after an expired-class (401/403) failure",
	}, []string{"bucket"})

	MediadeckSignedUrlFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediadeck_signed_url_failures_total",
		Help: "The total number of logical lookups that failed, by error kind: expired, transient, cooldown, validation",
	}, []string{"bucket", "kind"})

	MediadeckSignedUrlInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediadeck_signed_url_inflight",
		Help: "The number of signed URL resolutions currently in flight (after de-duplication)",
	})

	MediadeckSignedUrlResolveSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mediadeck_signed_url_resolve_seconds",
		Help:    "Wall time of a logical resolution, including retries and backoff",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"bucket"})

	MediadeckSignedUrlPrefetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediadeck_signed_url_prefetched_total",
		Help: "The total number of objects handled by prefetch, by status: resolved, cached, skipped, failed",
	}, []string{"bucket", "status"})

	MediadeckSignedUrlInvalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediadeck_signed_url_invalidations_total",
		Help: "The total number of whole-cache invalidations, by reason",
	}, []string{"reason"})

	MediadeckTTLCache = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mediadeck_ttl_cache",
		Help: "The statistics of various TTL caches",
	}, []string{"name", "type"}) // name: signedUrls; type: evictions, insertions, hits, misses, total
)
