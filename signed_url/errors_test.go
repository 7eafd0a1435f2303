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
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/mediadeck/mediadeck/storage_client"
)

func TestErrorKind(t *testing.T) {
	timeout := &storage_client.ResolveError{Kind: storage_client.KindNetworkError, Err: context.DeadlineExceeded}

	assert.Equal(t, KindNone, ErrorKind(nil))
	assert.Equal(t, KindValidation, ErrorKind(errors.Wrap(&ValidationError{Field: "path", Reason: "empty"}, "lookup")))
	assert.Equal(t, KindExpired, ErrorKind(&ExpiredUrlError{Attempts: 4}))
	assert.Equal(t, KindCooldown, ErrorKind(&CooldownError{Failures: 3, RetryAfter: time.Second}))
	assert.Equal(t, KindTransient, ErrorKind(&TransientError{Err: timeout}), "backend timeouts are transient, not cancellations")
	assert.Equal(t, KindCanceled, ErrorKind(errors.Wrap(context.Canceled, "abandoned")))
	assert.Equal(t, KindTransient, ErrorKind(errors.New("anything else")))
}

func TestClassifyFailure(t *testing.T) {
	assert.Equal(t, FailureNone, ClassifyFailure(nil))
	assert.Equal(t, FailureExpired, ClassifyFailure(&storage_client.ResolveError{Kind: storage_client.KindUnauthorized}))
	assert.Equal(t, FailureTransient, ClassifyFailure(&storage_client.ResolveError{Kind: storage_client.KindRateLimited}))
	assert.Equal(t, FailureFatal, ClassifyFailure(&storage_client.ResolveError{Kind: storage_client.KindNotFound}))
	assert.Equal(t, FailureFatal, ClassifyFailure(errors.New("403 expired")), "messages are never inspected")
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "invalid ttl: must not be negative", (&ValidationError{Field: "ttl", Reason: "must not be negative"}).Error())
	assert.Contains(t, (&ExpiredUrlError{Bucket: "media", Path: "a.mp4", Attempts: 4}).Error(), "media/a.mp4")
	assert.Contains(t, (&CooldownError{Bucket: "media", Path: "a.mp4", Failures: 3, RetryAfter: 42 * time.Second}).Error(), "42s")
}
