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
	"time"

	"github.com/pkg/errors"

	"github.com/mediadeck/mediadeck/server_structs"
)

type (
	// ValidationError is returned for malformed input before any remote
	// call is made.
	ValidationError struct {
		Field  string
		Reason string
	}

	// ExpiredUrlError means every attempt failed with an expired-class
	// error.  Callers should show a "refreshing" state and try again.
	ExpiredUrlError struct {
		Bucket   server_structs.Bucket
		Path     string
		Attempts int
		Err      error
	}

	// TransientError wraps a non-expired-class resolver failure.  It is
	// surfaced on first occurrence without retrying.
	TransientError struct {
		Bucket server_structs.Bucket
		Path   string
		Err    error
	}

	// CooldownError short-circuits a key that has failed too often recently.
	CooldownError struct {
		Bucket     server_structs.Bucket
		Path       string
		Failures   int
		RetryAfter time.Duration
	}

	// Kind is the coarse error class reported to API clients.
	Kind string
)

const (
	KindNone       Kind = ""
	KindValidation Kind = "validation"
	KindExpired    Kind = "expired"
	KindTransient  Kind = "transient"
	KindCooldown   Kind = "cooldown"
	KindCanceled   Kind = "canceled"
)

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ExpiredUrlError) Error() string {
	return fmt.Sprintf("signed URL for %s/%s kept expiring; gave up after %d attempts", e.Bucket, e.Path, e.Attempts)
}

func (e *ExpiredUrlError) Unwrap() error {
	return e.Err
}

func (e *TransientError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to sign %s/%s", e.Bucket, e.Path)
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("too many failed attempts for %s/%s (%d); retry in %s", e.Bucket, e.Path, e.Failures, e.RetryAfter.Round(time.Second))
}

// ErrorKind classifies err for API responses and metrics.
func ErrorKind(err error) Kind {
	if err == nil {
		return KindNone
	}
	var validation *ValidationError
	var expired *ExpiredUrlError
	var cooldown *CooldownError
	var transient *TransientError
	switch {
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &cooldown):
		return KindCooldown
	case errors.As(err, &expired):
		return KindExpired
	case errors.As(err, &transient):
		return KindTransient
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return KindTransient
}
