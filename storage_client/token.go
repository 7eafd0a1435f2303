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
	"os"
	"strings"
	"sync"
	"time"

	jwt "github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mediadeck/mediadeck/metrics"
)

type (
	// TokenProvider returns the bearer credential for storage calls.
	// Implementations must be safe for concurrent use.
	TokenProvider interface {
		Get() (string, error)
	}

	staticTokenProvider struct {
		token string
	}

	// FileTokenProvider re-reads a credential file on every call so a
	// session refreshed by another process is picked up without a restart.
	FileTokenProvider struct {
		location string
		onChange func()
		now      func() time.Time

		mu   sync.Mutex
		last string
	}
)

var (
	ErrNoToken      = errors.New("no storage credential available")
	ErrTokenExpired = errors.New("storage credential has expired")
)

// StaticTokenProvider returns a TokenProvider that always yields the given
// token, still refusing it once its JWT expiry (if any) has passed.
func StaticTokenProvider(token string) TokenProvider {
	return &staticTokenProvider{token: strings.TrimSpace(token)}
}

func (s *staticTokenProvider) Get() (string, error) {
	if s.token == "" {
		return "", ErrNoToken
	}
	if err := checkTokenExpiry(s.token, time.Now()); err != nil {
		return "", err
	}
	return s.token, nil
}

// NewFileTokenProvider reads the credential from location.  onChange, if
// non-nil, is invoked whenever the file's contents differ from the token
// returned last time (a sign-out or a new session).
func NewFileTokenProvider(location string, onChange func()) *FileTokenProvider {
	return &FileTokenProvider{
		location: location,
		onChange: onChange,
		now:      time.Now,
	}
}

func (f *FileTokenProvider) Get() (string, error) {
	contents, err := os.ReadFile(f.location)
	if err != nil {
		metrics.SetComponentHealthStatus(metrics.Storage_Credential, metrics.StatusCritical, "credential file is not readable")
		return "", errors.Wrapf(ErrNoToken, "failed to read token file %s: %v", f.location, err)
	}
	token := strings.TrimSpace(string(contents))
	if token == "" {
		metrics.SetComponentHealthStatus(metrics.Storage_Credential, metrics.StatusCritical, "credential file is empty")
		return "", errors.Wrapf(ErrNoToken, "token file %s is empty", f.location)
	}

	f.mu.Lock()
	changed := f.last != "" && f.last != token
	f.last = token
	f.mu.Unlock()
	if changed {
		log.Infoln("Storage credential changed on disk; invalidating signed URLs")
		if f.onChange != nil {
			f.onChange()
		}
	}

	if err := checkTokenExpiry(token, f.now()); err != nil {
		metrics.SetComponentHealthStatus(metrics.Storage_Credential, metrics.StatusCritical, "credential has expired")
		return "", err
	}
	metrics.SetComponentHealthStatus(metrics.Storage_Credential, metrics.StatusOK, "")
	return token, nil
}

// checkTokenExpiry inspects the exp claim of a JWT credential without
// verifying its signature; the backend does the verifying.  Opaque
// (non-JWT) credentials are assumed not to expire.
func checkTokenExpiry(serialized string, now time.Time) error {
	if strings.Count(serialized, ".") != 2 {
		return nil
	}
	tok, err := jwt.Parse([]byte(serialized), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		log.Debugln("Storage credential looks like a JWT but failed to parse; sending it as-is:", err)
		return nil
	}
	if exp := tok.Expiration(); !exp.IsZero() && !now.Before(exp) {
		return errors.Wrapf(ErrTokenExpired, "expired at %s", exp.Format(time.RFC3339))
	}
	return nil
}
