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

package storage_client

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/mediadeck/mediadeck/server_structs"
)

type (
	// Kind is the structured classification of a failed signing call.
	Kind int

	// ResolveError is the only error type a Resolver returns for backend
	// failures.  Retry decisions are made on Kind, never on Message.
	ResolveError struct {
		Kind       Kind
		StatusCode int // HTTP status, or the statusCode field of the error body; 0 if none
		Message    string
		Bucket     server_structs.Bucket
		Path       string
		Err        error
	}
)

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindNotFound
	KindRateLimited
	KindServerError
	KindNetworkError
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindServerError:
		return "server_error"
	case KindNetworkError:
		return "network_error"
	}
	return "unknown"
}

// KindFromStatus maps an HTTP-style status code onto a failure kind.
// Only 401 and 403 map to KindUnauthorized; those are the codes the
// storage backend uses for stale sessions and expired edge-cached tokens.
func KindFromStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return KindUnauthorized
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code >= 500 && code <= 599:
		return KindServerError
	}
	return KindUnknown
}

func (e *ResolveError) Error() string {
	msg := fmt.Sprintf("failed to sign %s/%s: %s", e.Bucket, e.Path, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// IsExpiredClass reports whether err is an authorization failure that
// usually means an expired URL or session and is therefore worth retrying.
func IsExpiredClass(err error) bool {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Kind == KindUnauthorized
	}
	return false
}

// KindOf returns the failure kind of err, or KindUnknown for errors that
// did not come from a resolver.
func KindOf(err error) Kind {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}
