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

// Package config owns process-wide configuration: viper initialization,
// defaults, logging level, and the shared HTTP transport.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/mediadeck/mediadeck/param"
)

type (
	ContextKey string
)

const (
	// Context key under which the process-wide errgroup is stored.
	EgrpKey ContextKey = "egrp"

	envPrefix = "MEDIADECK"
)

// SetDefaults registers the default value of every configuration key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("Logging.Level", "Error")
	v.SetDefault("Monitoring.EnablePrometheus", true)

	v.SetDefault("Server.WebHost", "0.0.0.0")
	v.SetDefault("Server.WebPort", 8444)

	v.SetDefault("SignedUrl.DefaultExpiry", time.Hour)
	v.SetDefault("SignedUrl.MaxExpiry", 24*time.Hour)
	v.SetDefault("SignedUrl.PrefetchExpiry", 2*time.Hour)
	v.SetDefault("SignedUrl.CacheBuffer", 5*time.Minute)
	v.SetDefault("SignedUrl.StaleBuffer", 10*time.Minute)
	v.SetDefault("SignedUrl.MaxCacheLifetime", 12*time.Hour)
	v.SetDefault("SignedUrl.MaxRetries", 3)
	v.SetDefault("SignedUrl.RetryBaseDelay", time.Second)
	v.SetDefault("SignedUrl.FailureCooldown", time.Minute)
	v.SetDefault("SignedUrl.BatchConcurrency", 8)
	v.SetDefault("SignedUrl.PrefetchConcurrency", 4)
	v.SetDefault("SignedUrl.PrefetchBatchSize", 100)
	v.SetDefault("SignedUrl.MaxPathLength", 1024)
	v.SetDefault("SignedUrl.MaintenanceInterval", time.Minute)

	v.SetDefault("Storage.RateLimit", 0)
	v.SetDefault("Storage.RequestTimeout", 10*time.Second)

	v.SetDefault("Transport.MaxIdleConns", 30)
	v.SetDefault("Transport.IdleConnTimeout", 90*time.Second)
	v.SetDefault("Transport.TLSHandshakeTimeout", 15*time.Second)
	v.SetDefault("Transport.ExpectContinueTimeout", time.Second)
	v.SetDefault("Transport.ResponseHeaderTimeout", 10*time.Second)
	v.SetDefault("Transport.DialerTimeout", 10*time.Second)
	v.SetDefault("Transport.DialerKeepAlive", 30*time.Second)
}

// InitConfig sets up the global viper instance: defaults, environment
// overrides (MEDIADECK_*), and the optional YAML config file. It is
// registered with cobra.OnInitialize and must be safe to call repeatedly.
func InitConfig() {
	if err := initConfig(viper.GetViper()); err != nil {
		log.Errorln("Failed to initialize configuration:", err)
		os.Exit(1)
	}
}

func initConfig(v *viper.Viper) error {
	SetDefaults(v)

	v.SetEnvPrefix(strings.ToLower(envPrefix))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	param.BindAllParameters(v)

	if configFile := v.GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("mediadeck")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "mediadeck"))
		}
		v.AddConfigPath("/etc/mediadeck")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.Wrap(err, "failed to read config file")
		}
		// Do not fail if the config file is missing
	}

	if _, err := param.Refresh(); err != nil {
		return err
	}

	setLogLevel()

	for _, key := range validateConfigKeys(v) {
		log.Warningf("Unknown configuration key %q will be ignored", key)
	}
	return nil
}

func setLogLevel() {
	if param.Debug.GetBool() {
		log.SetLevel(log.DebugLevel)
		return
	}
	levelStr := param.Logging_Level.GetString()
	if levelStr == "" {
		return
	}
	level, err := log.ParseLevel(levelStr)
	if err != nil {
		log.Warningf("Invalid Logging.Level %q; keeping %s", levelStr, log.GetLevel())
		return
	}
	log.SetLevel(level)
}

// ValidateStorage checks the settings needed to reach the storage backend.
func ValidateStorage() error {
	raw := param.Storage_Url.GetString()
	if raw == "" {
		return errors.New("Storage.Url must be set to the storage API endpoint")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return errors.Errorf("Storage.Url %q must be an http(s) URL", raw)
	}
	if param.Storage_Token.GetString() == "" && param.Storage_TokenLocation.GetString() == "" {
		return errors.New("one of Storage.Token or Storage.TokenLocation must be set")
	}
	return nil
}

// ResetConfig wipes all configuration; intended for unit tests.
func ResetConfig() {
	param.Reset()
	transportMu.Lock()
	transport = nil
	transportMu.Unlock()
}

// InitTestConfig loads defaults into a freshly reset global viper.
func InitTestConfig() error {
	ResetConfig()
	SetDefaults(viper.GetViper())
	_, err := param.Refresh()
	return err
}

// Logs the effective settings at debug level when the server starts.
func PrintConfig() {
	if log.GetLevel() < log.DebugLevel {
		return
	}
	for _, key := range viper.AllKeys() {
		if strings.Contains(strings.ToLower(key), "token") || strings.Contains(strings.ToLower(key), "apikey") {
			continue
		}
		log.Debugln(fmt.Sprintf("%s: %v", key, viper.Get(key)))
	}
}
