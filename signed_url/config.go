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

// Package signed_url resolves, caches and refreshes the short-lived signed
// URLs the storage backend issues for media objects.
package signed_url

import (
	"time"

	"github.com/pkg/errors"

	"github.com/mediadeck/mediadeck/param"
	"github.com/mediadeck/mediadeck/server_structs"
)

// Config is loaded once at startup and never modified afterwards; the
// Coordinator keeps its own copy.
type Config struct {
	DefaultExpiry    time.Duration
	MaxExpiry        time.Duration
	PrefetchExpiry   time.Duration
	CacheBuffer      time.Duration
	StaleBuffer      time.Duration
	MaxCacheLifetime time.Duration

	MaxRetries      int
	RetryBaseDelay  time.Duration
	FailureCooldown time.Duration

	BatchConcurrency    int
	PrefetchConcurrency int
	PrefetchBatchSize   int

	MaxPathLength  int
	AllowedBuckets []server_structs.Bucket
}

func DefaultConfig() Config {
	return Config{
		DefaultExpiry:       time.Hour,
		MaxExpiry:           24 * time.Hour,
		PrefetchExpiry:      2 * time.Hour,
		CacheBuffer:         5 * time.Minute,
		StaleBuffer:         10 * time.Minute,
		MaxCacheLifetime:    12 * time.Hour,
		MaxRetries:          3,
		RetryBaseDelay:      time.Second,
		FailureCooldown:     time.Minute,
		BatchConcurrency:    8,
		PrefetchConcurrency: 4,
		PrefetchBatchSize:   100,
		MaxPathLength:       1024,
		AllowedBuckets:      server_structs.AllBuckets(),
	}
}

// LoadConfig builds a Config from the current parameter snapshot and
// validates it.  An empty SignedUrl.AllowedBuckets allows every known
// bucket.
func LoadConfig() (Config, error) {
	cfg := Config{
		DefaultExpiry:       param.SignedUrl_DefaultExpiry.GetDuration(),
		MaxExpiry:           param.SignedUrl_MaxExpiry.GetDuration(),
		PrefetchExpiry:      param.SignedUrl_PrefetchExpiry.GetDuration(),
		CacheBuffer:         param.SignedUrl_CacheBuffer.GetDuration(),
		StaleBuffer:         param.SignedUrl_StaleBuffer.GetDuration(),
		MaxCacheLifetime:    param.SignedUrl_MaxCacheLifetime.GetDuration(),
		MaxRetries:          param.SignedUrl_MaxRetries.GetInt(),
		RetryBaseDelay:      param.SignedUrl_RetryBaseDelay.GetDuration(),
		FailureCooldown:     param.SignedUrl_FailureCooldown.GetDuration(),
		BatchConcurrency:    param.SignedUrl_BatchConcurrency.GetInt(),
		PrefetchConcurrency: param.SignedUrl_PrefetchConcurrency.GetInt(),
		PrefetchBatchSize:   param.SignedUrl_PrefetchBatchSize.GetInt(),
		MaxPathLength:       param.SignedUrl_MaxPathLength.GetInt(),
	}

	for _, raw := range param.SignedUrl_AllowedBuckets.GetStringSlice() {
		bucket, err := server_structs.ParseBucket(raw)
		if err != nil {
			return Config{}, errors.Wrapf(err, "invalid value for %s", param.SignedUrl_AllowedBuckets.GetName())
		}
		cfg.AllowedBuckets = append(cfg.AllowedBuckets, bucket)
	}
	if len(cfg.AllowedBuckets) == 0 {
		cfg.AllowedBuckets = server_structs.AllBuckets()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func wholeSeconds(d time.Duration) bool {
	return d%time.Second == 0
}

// Validate checks the relationships between the expiry settings along
// with the basic sanity of the tuning knobs.
func (c Config) Validate() error {
	durations := []struct {
		name  string
		value time.Duration
	}{
		{param.SignedUrl_DefaultExpiry.GetName(), c.DefaultExpiry},
		{param.SignedUrl_MaxExpiry.GetName(), c.MaxExpiry},
		{param.SignedUrl_PrefetchExpiry.GetName(), c.PrefetchExpiry},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return errors.Errorf("%s must be positive (got %s)", d.name, d.value)
		}
		if !wholeSeconds(d.value) {
			return errors.Errorf("%s must be a whole number of seconds (got %s)", d.name, d.value)
		}
	}
	if c.CacheBuffer < 0 || c.StaleBuffer < 0 {
		return errors.Errorf("%s and %s must not be negative", param.SignedUrl_CacheBuffer.GetName(), param.SignedUrl_StaleBuffer.GetName())
	}
	if c.DefaultExpiry > c.MaxExpiry {
		return errors.Errorf("%s (%s) must not exceed %s (%s)",
			param.SignedUrl_DefaultExpiry.GetName(), c.DefaultExpiry, param.SignedUrl_MaxExpiry.GetName(), c.MaxExpiry)
	}
	if c.CacheBuffer >= c.MaxExpiry {
		return errors.Errorf("%s (%s) must be less than %s (%s)",
			param.SignedUrl_CacheBuffer.GetName(), c.CacheBuffer, param.SignedUrl_MaxExpiry.GetName(), c.MaxExpiry)
	}
	if c.StaleBuffer >= c.MaxExpiry {
		return errors.Errorf("%s (%s) must be less than %s (%s)",
			param.SignedUrl_StaleBuffer.GetName(), c.StaleBuffer, param.SignedUrl_MaxExpiry.GetName(), c.MaxExpiry)
	}
	if c.MaxCacheLifetime <= 0 {
		return errors.Errorf("%s must be positive", param.SignedUrl_MaxCacheLifetime.GetName())
	}
	if c.MaxRetries < 0 {
		return errors.Errorf("%s must not be negative", param.SignedUrl_MaxRetries.GetName())
	}
	if c.RetryBaseDelay < 0 || c.FailureCooldown < 0 {
		return errors.Errorf("%s and %s must not be negative", param.SignedUrl_RetryBaseDelay.GetName(), param.SignedUrl_FailureCooldown.GetName())
	}
	if c.BatchConcurrency < 1 || c.PrefetchConcurrency < 1 || c.PrefetchBatchSize < 1 {
		return errors.New("batch and prefetch concurrency and batch size must be at least 1")
	}
	if c.MaxPathLength < 1 {
		return errors.Errorf("%s must be at least 1", param.SignedUrl_MaxPathLength.GetName())
	}
	for _, bucket := range c.AllowedBuckets {
		if !bucket.IsKnown() {
			return errors.Wrapf(server_structs.ErrUnknownBucket, "%q in the allow-list", bucket)
		}
	}
	return nil
}

func (c Config) bucketAllowed(bucket server_structs.Bucket) bool {
	for _, allowed := range c.AllowedBuckets {
		if allowed == bucket {
			return true
		}
	}
	return false
}

// View is the read-only JSON form handed to the UI.
func (c Config) View() server_structs.SignedUrlConfig {
	return server_structs.SignedUrlConfig{
		DefaultExpiry:  int64(c.DefaultExpiry / time.Second),
		MaxExpiry:      int64(c.MaxExpiry / time.Second),
		PrefetchExpiry: int64(c.PrefetchExpiry / time.Second),
		CacheBuffer:    int64(c.CacheBuffer / time.Second),
		StaleBuffer:    int64(c.StaleBuffer / time.Second),
	}
}
