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

// Package param holds the typed accessors for every configuration key the
// mediadeck binary understands.
//
// The accessors read from an atomic snapshot decoded out of viper's global
// instance; code that mutates viper directly must call Refresh afterwards.
package param

import (
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var (
	viperConfig atomic.Pointer[Config]
	configMutex sync.Mutex
)

// Refresh reloads the atomic cached configuration from viper's *global* instance.
func Refresh() (*Config, error) {
	return decodeAndStoreConfig(viper.GetViper())
}

// BindAllParameters binds all known configuration keys to environment variables.
//
// Viper's AllSettings() does not include env-only values unless the key is
// explicitly bound, so without this the snapshot would miss them.
func BindAllParameters(v *viper.Viper) {
	if v == nil {
		return
	}

	for _, key := range allParameterNames {
		_ = v.BindEnv(key)
	}
}

// stringToSliceHookFunc returns a DecodeHookFunc that converts strings to slices
// by splitting on commas or whitespace. Surrounding quotes are trimmed from the
// whole string and then from each element; empty elements are dropped.
func stringToSliceHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Kind, t reflect.Kind, data interface{}) (interface{}, error) {
		if f != reflect.String || t != reflect.Slice {
			return data, nil
		}

		raw := data.(string)
		if raw == "" {
			return []string{}, nil
		}
		raw = strings.Trim(raw, `"'`)

		var parts []string
		if strings.Contains(raw, ",") {
			parts = strings.Split(raw, ",")
		} else {
			parts = strings.Fields(raw)
		}

		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.Trim(strings.TrimSpace(part), `"'`)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result, nil
	}
}

// DecodeConfig decodes the provided viper instance into a new Config struct.
//
// Unlike Refresh, this does NOT update the global atomic cache.
func DecodeConfig(v *viper.Viper) (*Config, error) {
	if v == nil {
		return nil, errors.New("nil viper instance")
	}
	BindAllParameters(v)
	settings := v.AllSettings()
	mergeKnownKeyOverrides(settings, v)

	newConfig := new(Config)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToSliceHookFunc(),
		),
		MatchName: func(mapKey, fieldName string) bool {
			return strings.EqualFold(mapKey, fieldName)
		},
		Result: newConfig,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(settings); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}
	return newConfig, nil
}

// Viper's AllSettings() may omit values coming exclusively from bindings
// (for example, keys bound to cobra flags); overlay every known key so the
// snapshot agrees with viper.Get().
func mergeKnownKeyOverrides(settings map[string]any, v *viper.Viper) {
	for _, key := range allParameterNames {
		val := v.Get(key)
		if val == nil {
			continue
		}
		setLowercasePath(settings, strings.Split(key, "."), val)
	}
}

func setLowercasePath(root map[string]any, path []string, val any) {
	if len(path) == 0 {
		return
	}

	m := root
	for _, segment := range path[:len(path)-1] {
		k := strings.ToLower(segment)
		if nextAny, ok := m[k]; ok {
			if nextMap, ok := nextAny.(map[string]any); ok {
				m = nextMap
				continue
			}
		}
		next := make(map[string]any)
		m[k] = next
		m = next
	}
	m[strings.ToLower(path[len(path)-1])] = val
}

func decodeAndStoreConfig(v *viper.Viper) (*Config, error) {
	configMutex.Lock()
	defer configMutex.Unlock()
	newConfig, err := DecodeConfig(v)
	if err != nil {
		return nil, err
	}
	viperConfig.Store(newConfig)
	return newConfig, nil
}

// getOrCreateConfig returns the current snapshot, decoding one from the
// global viper instance if nothing has been stored yet.
func getOrCreateConfig() *Config {
	if config := viperConfig.Load(); config != nil {
		return config
	}
	config, err := decodeAndStoreConfig(viper.GetViper())
	if err != nil {
		return new(Config)
	}
	return config
}

// Set sets a parameter value in viper and refreshes the snapshot.
func Set(key string, value interface{}) error {
	viper.Set(key, value)
	_, err := Refresh()
	return err
}

// Reset wipes the global viper instance and the cached snapshot.
func Reset() {
	configMutex.Lock()
	defer configMutex.Unlock()
	viper.Reset()
	viperConfig.Store(nil)
}
