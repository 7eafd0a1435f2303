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

package test_utils

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/mediadeck/mediadeck/server_structs"
	"github.com/mediadeck/mediadeck/storage_client"
)

type (
	// ResolveFunc scripts a FakeResolver.  n is the 1-based number of the
	// call across the resolver's lifetime.
	ResolveFunc func(req storage_client.SignRequest, n int) (string, error)

	// FakeResolver is a storage_client.Resolver that records every request
	// and answers from a script.  By default every call succeeds with a
	// URL unique to the call.
	FakeResolver struct {
		mu       sync.Mutex
		requests []storage_client.SignRequest
		respond  ResolveFunc
		gate     chan struct{}
		started  chan storage_client.SignRequest
	}

	// FakeBatchResolver adds bulk signing to FakeResolver.  Each bulk call
	// is recorded as one entry of BatchCalls; its items are answered by the
	// same script, without being counted as single calls.  Hold applies to
	// bulk calls too.
	FakeBatchResolver struct {
		*FakeResolver

		batchMu      sync.Mutex
		batchCalls   [][]string
		batchErr     error
		batchStarted chan []string
	}
)

var (
	_ storage_client.Resolver      = (*FakeResolver)(nil)
	_ storage_client.BatchResolver = (*FakeBatchResolver)(nil)
)

// FakeURL is the URL a FakeResolver hands out by default.
func FakeURL(req storage_client.SignRequest, n int) string {
	return fmt.Sprintf("https://storage.test/object/sign/%s/%s?token=t%d&expires=%d",
		req.Bucket, url.PathEscape(req.Path), n, req.Seconds())
}

func NewFakeResolver() *FakeResolver {
	return &FakeResolver{
		respond: func(req storage_client.SignRequest, n int) (string, error) {
			return FakeURL(req, n), nil
		},
		started: make(chan storage_client.SignRequest, 1024),
	}
}

func NewFakeBatchResolver() *FakeBatchResolver {
	return &FakeBatchResolver{FakeResolver: NewFakeResolver(), batchStarted: make(chan []string, 1024)}
}

// Respond replaces the script.
func (f *FakeResolver) Respond(fn ResolveFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.respond = fn
}

// Hold makes calls block until the returned release function is called.
func (f *FakeResolver) Hold() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gate == gate {
				f.gate = nil
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}

// Started yields each request as soon as it reaches the resolver.
func (f *FakeResolver) Started() <-chan storage_client.SignRequest {
	return f.started
}

// AwaitStarted waits for the next request to reach the resolver.
func (f *FakeResolver) AwaitStarted(timeout time.Duration) (storage_client.SignRequest, bool) {
	select {
	case req := <-f.started:
		return req, true
	case <-time.After(timeout):
		return storage_client.SignRequest{}, false
	}
}

func (f *FakeResolver) Resolve(ctx context.Context, req storage_client.SignRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	n := len(f.requests)
	respond := f.respond
	gate := f.gate
	f.mu.Unlock()

	select {
	case f.started <- req:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", &storage_client.ResolveError{Kind: storage_client.KindNetworkError, Bucket: req.Bucket, Path: req.Path, Err: ctx.Err()}
		}
	}
	return respond(req, n)
}

// Calls is the number of single resolutions made so far.
func (f *FakeResolver) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// CallsFor counts the single resolutions made for one key.
func (f *FakeResolver) CallsFor(key server_structs.ObjectKey) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, req := range f.requests {
		if req.Key() == key {
			count++
		}
	}
	return count
}

func (f *FakeResolver) Requests() []storage_client.SignRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storage_client.SignRequest(nil), f.requests...)
}

// FailBatch makes every following bulk call fail as a whole with err.
func (f *FakeBatchResolver) FailBatch(err error) {
	f.batchMu.Lock()
	defer f.batchMu.Unlock()
	f.batchErr = err
}

func (f *FakeBatchResolver) ResolveBatch(ctx context.Context, bucket server_structs.Bucket, paths []string, ttl time.Duration) ([]storage_client.BatchItemResult, error) {
	f.batchMu.Lock()
	f.batchCalls = append(f.batchCalls, append([]string(nil), paths...))
	n := len(f.batchCalls)
	batchErr := f.batchErr
	f.batchMu.Unlock()

	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	select {
	case f.batchStarted <- append([]string(nil), paths...):
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &storage_client.ResolveError{Kind: storage_client.KindNetworkError, Bucket: bucket, Err: ctx.Err()}
		}
	}

	if batchErr != nil {
		return nil, batchErr
	}

	f.mu.Lock()
	respond := f.respond
	f.mu.Unlock()

	results := make([]storage_client.BatchItemResult, 0, len(paths))
	for _, objectPath := range paths {
		signed, err := respond(storage_client.SignRequest{Bucket: bucket, Path: objectPath, TTL: ttl}, n)
		results = append(results, storage_client.BatchItemResult{Path: objectPath, URL: signed, Err: err})
	}
	return results, nil
}

// AwaitBatchStarted waits for the next bulk call to reach the resolver and
// returns its paths.
func (f *FakeBatchResolver) AwaitBatchStarted(timeout time.Duration) ([]string, bool) {
	select {
	case paths := <-f.batchStarted:
		return paths, true
	case <-time.After(timeout):
		return nil, false
	}
}

func (f *FakeBatchResolver) BatchCalls() [][]string {
	f.batchMu.Lock()
	defer f.batchMu.Unlock()
	return append([][]string(nil), f.batchCalls...)
}
