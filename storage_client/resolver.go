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

// Package storage_client talks to the object-storage backend that mints
// signed URLs.
package storage_client

import (
	"context"
	"time"

	"github.com/mediadeck/mediadeck/server_structs"
)

type (
	SignRequest struct {
		Bucket server_structs.Bucket
		Path   string
		TTL    time.Duration
	}

	// Resolver mints one signed URL.  Failures are *ResolveError.
	// Implementations must be safe for concurrent use.
	Resolver interface {
		Resolve(ctx context.Context, req SignRequest) (string, error)
	}

	// BatchItemResult is the per-path outcome of a bulk signing call.
	BatchItemResult struct {
		Path string
		URL  string
		Err  error
	}

	// BatchResolver is implemented by backends that can sign many paths in
	// one bucket with a single call.  A non-nil error fails the whole call;
	// otherwise each item carries its own result.
	BatchResolver interface {
		Resolver
		ResolveBatch(ctx context.Context, bucket server_structs.Bucket, paths []string, ttl time.Duration) ([]BatchItemResult, error)
	}
)

func (r SignRequest) Key() server_structs.ObjectKey {
	return server_structs.NewObjectKey(r.Bucket, r.Path)
}

// Seconds rounds the TTL down to whole seconds, the backend's granularity,
// and never returns less than one.
func (r SignRequest) Seconds() int64 {
	secs := int64(r.TTL / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
