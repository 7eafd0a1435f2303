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

package server_structs

type (
	// One requested object in a batch or prefetch call.  TTLSeconds of
	// zero means "use the configured default".
	SignedUrlItem struct {
		Bucket     Bucket `json:"bucket"`
		Path       string `json:"path"`
		TTLSeconds int64  `json:"ttl,omitempty"`
	}

	SignedUrlBatchReq struct {
		Items []SignedUrlItem `json:"items" binding:"required"`
	}

	SignedUrlResp struct {
		Bucket Bucket `json:"bucket"`
		Path   string `json:"path"`
		URL    string `json:"url"`
	}

	// Keys of both maps are ObjectKey.String() values.
	SignedUrlBatchResp struct {
		URLs   map[string]string        `json:"urls"`
		Errors map[string]SimpleApiResp `json:"errors,omitempty"`
	}

	// Entries counts URLs physically held, including lapsed ones the
	// janitor has not evicted yet.
	SignedUrlCacheStats struct {
		Entries         int `json:"entries"`
		TrackedFailures int `json:"trackedFailures"`
	}

	InvalidateReq struct {
		Reason string `json:"reason"`
	}

	// Read-only view of the signed-URL configuration, in seconds.
	SignedUrlConfig struct {
		DefaultExpiry  int64 `json:"defaultExpiry"`
		MaxExpiry      int64 `json:"maxExpiry"`
		PrefetchExpiry int64 `json:"prefetchExpiry"`
		CacheBuffer    int64 `json:"cacheBuffer"`
		StaleBuffer    int64 `json:"staleBuffer"`
	}
)
