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
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/mediadeck/mediadeck/param"
)

// findFieldByTag searches for a field in a struct by the value of a tag. This is used to
// check our Config struct against viper keys so we can warn users about keys we don't know.
func findFieldByTag(t reflect.Type, tagKey, tagValue string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Tag.Get(tagKey) == tagValue {
			return field, true
		}
	}
	return reflect.StructField{}, false
}

// validateConfigKeys checks keys in the Viper config against fields in the Config struct
func validateConfigKeys(v *viper.Viper) []string {
	unknownKeys := []string{}
	keys := v.AllKeys()

	// viper.AllKeys() doesn't see env-only values; pick them up by prefix.
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if strings.HasPrefix(parts[0], envPrefix+"_") {
			key := strings.SplitN(parts[0], "_", 2)[1]
			keys = append(keys, strings.ReplaceAll(strings.ToLower(key), "_", "."))
		}
	}

	configType := reflect.TypeOf(param.Config{})
	for _, key := range keys {
		currentType := configType
		for idx, part := range strings.Split(key, ".") {
			// The --config flag is bound under this name
			if idx == 0 && part == "config" {
				break
			}
			field, present := findFieldByTag(currentType, "mapstructure", part)
			if !present {
				unknownKeys = append(unknownKeys, key)
				break
			}
			if field.Type.Kind() != reflect.Struct {
				break
			}
			currentType = field.Type
		}
	}
	return unknownKeys
}
