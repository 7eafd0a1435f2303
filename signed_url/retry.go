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
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"github.com/mediadeck/mediadeck/metrics"
	"github.com/mediadeck/mediadeck/storage_client"
)

type (
	RetryPhase int

	// FailureClass is how the most recent failed attempt was classified.
	FailureClass string

	// RetryState tracks one logical resolution.  It is created per call to
	// RetryController.Resolve and never shared.
	RetryState struct {
		Phase     RetryPhase
		Attempt   int // attempts made so far
		LastError FailureClass
	}

	// Sleeper waits for d or until ctx is done, whichever is first.
	Sleeper func(ctx context.Context, d time.Duration) error

	// RetryController retries expired-class failures with exponential
	// backoff and surfaces every other failure immediately.
	RetryController struct {
		resolver   storage_client.Resolver
		maxRetries int
		baseDelay  time.Duration
		sleep      Sleeper
	}
)

const maxRetryInterval = time.Hour

const (
	PhaseAttempting RetryPhase = iota
	PhaseSucceeded
	PhaseFailedExpired
	PhaseFailedOther
)

const (
	FailureNone      FailureClass = ""
	FailureExpired   FailureClass = "expired"
	FailureTransient FailureClass = "transient"
	FailureFatal     FailureClass = "fatal"
)

func (p RetryPhase) String() string {
	switch p {
	case PhaseAttempting:
		return "attempting"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailedExpired:
		return "failed_expired"
	case PhaseFailedOther:
		return "failed_other"
	}
	return "unknown"
}

func (s RetryState) Terminal() bool {
	return s.Phase != PhaseAttempting
}

// ClassifyFailure sorts a resolver error into the three retry classes.
// Only authorization failures are expired-class.
func ClassifyFailure(err error) FailureClass {
	if err == nil {
		return FailureNone
	}
	if storage_client.IsExpiredClass(err) {
		return FailureExpired
	}
	switch storage_client.KindOf(err) {
	case storage_client.KindRateLimited, storage_client.KindServerError, storage_client.KindNetworkError:
		return FailureTransient
	}
	return FailureFatal
}

func contextSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewRetryController wraps resolver.  A nil sleep waits on a real timer.
func NewRetryController(resolver storage_client.Resolver, maxRetries int, baseDelay time.Duration, sleep Sleeper) *RetryController {
	if sleep == nil {
		sleep = contextSleeper
	}
	return &RetryController{
		resolver:   resolver,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		sleep:      sleep,
	}
}

// newBackOff returns the schedule baseDelay, 2*baseDelay, 4*baseDelay, ...
// with no jitter and no elapsed-time cap; maxRetries bounds it instead.
func (r *RetryController) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = maxRetryInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Delay is the wait before retry n (0-based): baseDelay * 2^n.
func (r *RetryController) Delay(n int) time.Duration {
	b := r.newBackOff()
	delay := b.NextBackOff()
	for i := 0; i < n; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

// next applies one attempt's outcome to state.
func (r *RetryController) next(state RetryState, err error) RetryState {
	state.Attempt++
	state.LastError = ClassifyFailure(err)
	switch {
	case err == nil:
		state.Phase = PhaseSucceeded
	case state.LastError != FailureExpired:
		state.Phase = PhaseFailedOther
	case state.Attempt > r.maxRetries:
		state.Phase = PhaseFailedExpired
	default:
		state.Phase = PhaseAttempting
	}
	return state
}

// Resolve runs the state machine for req to a terminal state.  The
// returned error is nil, an *ExpiredUrlError, a *TransientError, or the
// context's error if ctx ended during a backoff.
func (r *RetryController) Resolve(ctx context.Context, req storage_client.SignRequest) (string, RetryState, error) {
	state := RetryState{Phase: PhaseAttempting}
	bucket := req.Bucket.String()
	schedule := r.newBackOff()
	for {
		signed, err := r.resolver.Resolve(ctx, req)
		state = r.next(state, err)

		if err == nil {
			metrics.MediadeckSignedUrlRemoteCallsTotal.WithLabelValues(bucket, "success").Inc()
			metrics.SetComponentHealthStatus(metrics.Storage_Backend, metrics.StatusOK, "")
		} else {
			metrics.MediadeckSignedUrlRemoteCallsTotal.WithLabelValues(bucket, storage_client.KindOf(err).String()).Inc()
		}

		switch state.Phase {
		case PhaseSucceeded:
			return signed, state, nil
		case PhaseFailedOther:
			if state.LastError == FailureTransient {
				metrics.SetComponentHealthStatus(metrics.Storage_Backend, metrics.StatusWarning, err.Error())
			}
			return "", state, &TransientError{Bucket: req.Bucket, Path: req.Path, Err: err}
		case PhaseFailedExpired:
			metrics.SetComponentHealthStatus(metrics.Storage_Backend, metrics.StatusWarning, "signing requests keep being rejected as unauthorized")
			return "", state, &ExpiredUrlError{Bucket: req.Bucket, Path: req.Path, Attempts: state.Attempt, Err: err}
		}

		delay := schedule.NextBackOff()
		log.Debugf("Signing %s failed with an expired-class error (attempt %d of %d); retrying in %s",
			req.Key(), state.Attempt, r.maxRetries+1, delay)
		metrics.MediadeckSignedUrlRetriesTotal.WithLabelValues(bucket).Inc()
		if err := r.sleep(ctx, delay); err != nil {
			return "", state, err
		}
	}
}
