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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediadeck/mediadeck/param"
)

func TestInitConfigReadsFile(t *testing.T) {
	ResetConfig()
	t.Cleanup(ResetConfig)

	cfgFile := filepath.Join(t.TempDir(), "mediadeck.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
SignedUrl:
  DefaultExpiry: 30m
  MaxRetries: 2
Storage:
  Url: https://project.example.com/storage/v1
`), 0600))
	viper.Set("config", cfgFile)

	require.NoError(t, initConfig(viper.GetViper()))

	assert.Equal(t, 30*time.Minute, param.SignedUrl_DefaultExpiry.GetDuration())
	assert.Equal(t, 2, param.SignedUrl_MaxRetries.GetInt())
	assert.Equal(t, "https://project.example.com/storage/v1", param.Storage_Url.GetString())
	// Untouched keys keep their defaults
	assert.Equal(t, 24*time.Hour, param.SignedUrl_MaxExpiry.GetDuration())
}

func TestInitConfigEnvOverride(t *testing.T) {
	ResetConfig()
	t.Cleanup(ResetConfig)
	t.Setenv("MEDIADECK_SIGNEDURL_PREFETCHEXPIRY", "3h")

	require.NoError(t, initConfig(viper.GetViper()))
	assert.Equal(t, 3*time.Hour, param.SignedUrl_PrefetchExpiry.GetDuration())
}

func TestValidateConfigKeys(t *testing.T) {
	v := viper.New()
	v.Set("SignedUrl.DefaultExpiry", "1h")
	v.Set("SignedUrl.NotARealKey", true)
	v.Set("Bogus", 1)

	unknown := validateConfigKeys(v)
	assert.ElementsMatch(t, []string{"signedurl.notarealkey", "bogus"}, unknown)
}

func TestValidateStorage(t *testing.T) {
	ResetConfig()
	t.Cleanup(ResetConfig)

	require.NoError(t, InitTestConfig())
	assert.Error(t, ValidateStorage(), "missing URL must be rejected")

	require.NoError(t, param.Set("Storage.Url", "ftp://example.com"))
	assert.Error(t, ValidateStorage())

	require.NoError(t, param.Set("Storage.Url", "https://example.com/storage/v1"))
	assert.Error(t, ValidateStorage(), "a credential source is required")

	require.NoError(t, param.Set("Storage.Token", "abc"))
	assert.NoError(t, ValidateStorage())
}

func TestSetLogLevel(t *testing.T) {
	ResetConfig()
	oldLevel := log.GetLevel()
	t.Cleanup(func() {
		ResetConfig()
		log.SetLevel(oldLevel)
	})

	require.NoError(t, param.Set("Logging.Level", "warning"))
	setLogLevel()
	assert.Equal(t, log.WarnLevel, log.GetLevel())

	require.NoError(t, param.Set("Debug", true))
	setLogLevel()
	assert.Equal(t, log.DebugLevel, log.GetLevel())
}

func TestGetTransportIsShared(t *testing.T) {
	ResetConfig()
	t.Cleanup(ResetConfig)
	require.NoError(t, InitTestConfig())

	first := GetTransport()
	require.NotNil(t, first)
	assert.Same(t, first, GetTransport())
	assert.Equal(t, 30, first.MaxIdleConns)
}
