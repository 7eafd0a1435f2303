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

package launchers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediadeck/mediadeck/config"
	"github.com/mediadeck/mediadeck/param"
	"github.com/mediadeck/mediadeck/test_utils"
)

type storageStub struct {
	mu    sync.Mutex
	calls int
	auth  []string
}

func (s *storageStub) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.auth = append(s.auth, req.Header.Get("Authorization"))
	s.mu.Unlock()

	objectPath := strings.TrimPrefix(req.URL.Path, "/storage/v1")
	_, _ = fmt.Fprintf(w, `{"signedURL": "%s?token=%d"}`, objectPath, n)
}

func (s *storageStub) snapshot() (int, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, append([]string(nil), s.auth...)
}

func TestSignedUrlServe(t *testing.T) {
	t.Cleanup(test_utils.SetupTestLogging(t))
	require.NoError(t, config.InitTestConfig())
	t.Cleanup(config.ResetConfig)

	stub := &storageStub{}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	tokenFile := filepath.Join(t.TempDir(), "storage-token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("token-a\n"), 0600))

	require.NoError(t, param.Set(param.Storage_Url.GetName(), srv.URL+"/storage/v1"))
	require.NoError(t, param.Set(param.Storage_TokenLocation.GetName(), tokenFile))
	require.NoError(t, param.Set(param.SignedUrl_MaintenanceInterval.GetName(), 10*time.Millisecond))

	ctx, cancel, egrp := test_utils.TestContext(context.Background(), t)
	coordinator, bus, err := SignedUrlServe(ctx, egrp)
	require.NoError(t, err)
	require.NotNil(t, bus)

	first, err := coordinator.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, srv.URL+"/storage/v1/object/sign/media/clips/a.mp4?token="), first)

	again, err := coordinator.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	calls, _ := stub.snapshot()
	assert.Equal(t, 1, calls)

	// Replacing the credential drops everything signed with the old one
	require.NoError(t, os.WriteFile(tokenFile, []byte("token-b\n"), 0600))
	_, err = coordinator.Lookup(ctx, "thumbnails", "b.jpg", 0)
	require.NoError(t, err)

	refreshed, err := coordinator.Lookup(ctx, "media", "clips/a.mp4", 0)
	require.NoError(t, err)
	assert.NotEqual(t, first, refreshed)

	calls, auth := stub.snapshot()
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"Bearer token-a", "Bearer token-b", "Bearer token-b"}, auth)

	cancel()
	require.NoError(t, egrp.Wait())
}

func TestSignedUrlServeRequiresStorage(t *testing.T) {
	t.Cleanup(test_utils.SetupTestLogging(t))
	require.NoError(t, config.InitTestConfig())
	t.Cleanup(config.ResetConfig)

	ctx, cancel, egrp := test_utils.TestContext(context.Background(), t)
	defer cancel()

	_, _, err := SignedUrlServe(ctx, egrp)
	assert.Error(t, err)

	require.NoError(t, param.Set(param.Storage_Url.GetName(), "https://storage.example.com/storage/v1"))
	require.NoError(t, param.Set(param.Storage_Token.GetName(), "opaque"))
	require.NoError(t, param.Set(param.SignedUrl_DefaultExpiry.GetName(), 48*time.Hour))
	_, _, err = SignedUrlServe(ctx, egrp)
	assert.Error(t, err)
}
