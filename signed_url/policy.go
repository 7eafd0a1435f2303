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

import "time"

// EffectiveExpiry picks the validity to request from the backend.  A
// non-positive request means "use the default"; anything above MaxExpiry is
// silently clamped.  The result is always in (0, MaxExpiry].
func (c Config) EffectiveExpiry(requested time.Duration, isPrefetch bool) time.Duration {
	eff := requested
	if eff <= 0 {
		if isPrefetch {
			eff = c.PrefetchExpiry
		} else {
			eff = c.DefaultExpiry
		}
	}
	if eff > c.MaxExpiry {
		eff = c.MaxExpiry
	}
	return eff
}

// CacheLifetime is how long a URL minted with validity eff may be served
// from the cache.  Zero means it must not be cached at all.
func (c Config) CacheLifetime(eff time.Duration) time.Duration {
	lifetime := eff - c.CacheBuffer
	if lifetime < 0 {
		return 0
	}
	if lifetime > c.MaxCacheLifetime {
		return c.MaxCacheLifetime
	}
	return lifetime
}

// StaleAfter is the age past which a cached URL is still served but a
// background refresh is started.  It never exceeds CacheLifetime(eff); a
// result equal to CacheLifetime(eff) means the entry is never refreshed
// and simply lapses, which is the case whenever eff <= StaleBuffer.
func (c Config) StaleAfter(eff time.Duration) time.Duration {
	lifetime := c.CacheLifetime(eff)
	stale := eff - c.StaleBuffer
	if stale <= 0 || stale > lifetime {
		return lifetime
	}
	return stale
}
