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
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/mediadeck/mediadeck/metrics"
)

type (
	// InvalidationHandler is called with the reason an invalidation was
	// raised.
	InvalidationHandler func(reason string)

	// InvalidationBus carries the process-wide "cached URLs are no longer
	// valid" signal, raised for instance on sign-out.
	InvalidationBus struct {
		mu       sync.RWMutex
		handlers map[string]InvalidationHandler
	}
)

func NewInvalidationBus() *InvalidationBus {
	return &InvalidationBus{handlers: make(map[string]InvalidationHandler)}
}

// Subscribe registers fn under name, replacing any previous handler with
// the same name.
func (b *InvalidationBus) Subscribe(name string, fn InvalidationHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = fn
}

func (b *InvalidationBus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, name)
}

// Publish calls every handler synchronously, in name order, and returns
// once all of them have finished.
func (b *InvalidationBus) Publish(reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	b.mu.RLock()
	names := make([]string, 0, len(b.handlers))
	for name := range b.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	handlers := make([]InvalidationHandler, 0, len(names))
	for _, name := range names {
		handlers = append(handlers, b.handlers[name])
	}
	b.mu.RUnlock()

	log.Infof("Signed URL invalidation raised (%s); notifying %d subscriber(s)", reason, len(handlers))
	metrics.MediadeckSignedUrlInvalidationsTotal.WithLabelValues(reason).Inc()
	for _, fn := range handlers {
		fn(reason)
	}
}
