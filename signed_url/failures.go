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
	"sync"
	"time"

	"github.com/mediadeck/mediadeck/server_structs"
)

type (
	failureRecord struct {
		count         int
		lastAttemptAt time.Time
	}

	// failureTracker counts recent failed resolutions per key so that keys
	// which keep failing stop hitting the backend for a while.
	failureTracker struct {
		mu        sync.Mutex
		entries   map[server_structs.ObjectKey]failureRecord
		threshold int
		window    time.Duration
		now       func() time.Time
	}
)

func newFailureTracker(threshold int, window time.Duration, now func() time.Time) *failureTracker {
	if threshold < 1 {
		threshold = 1
	}
	return &failureTracker{
		entries:   make(map[server_structs.ObjectKey]failureRecord),
		threshold: threshold,
		window:    window,
		now:       now,
	}
}

// check reports whether key is cooling down and, if so, for how much
// longer.  Records whose window has passed are dropped.
func (f *failureTracker) check(key server_structs.ObjectKey) (failures int, retryAfter time.Duration, blocked bool) {
	if f.window <= 0 {
		return 0, 0, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.entries[key]
	if !ok {
		return 0, 0, false
	}
	elapsed := f.now().Sub(record.lastAttemptAt)
	if elapsed >= f.window {
		delete(f.entries, key)
		return 0, 0, false
	}
	if record.count < f.threshold {
		return record.count, 0, false
	}
	return record.count, f.window - elapsed, true
}

func (f *failureTracker) recordFailure(key server_structs.ObjectKey) int {
	if f.window <= 0 {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	record := f.entries[key]
	if !record.lastAttemptAt.IsZero() && now.Sub(record.lastAttemptAt) >= f.window {
		record.count = 0
	}
	record.count++
	record.lastAttemptAt = now
	f.entries[key] = record
	return record.count
}

func (f *failureTracker) recordSuccess(key server_structs.ObjectKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
}

func (f *failureTracker) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = make(map[server_structs.ObjectKey]failureRecord)
}

// prune drops every record whose cooldown window has passed and returns
// how many were removed.
func (f *failureTracker) prune() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	removed := 0
	for key, record := range f.entries {
		if now.Sub(record.lastAttemptAt) >= f.window {
			delete(f.entries, key)
			removed++
		}
	}
	return removed
}

func (f *failureTracker) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}
