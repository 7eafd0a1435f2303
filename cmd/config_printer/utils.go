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

package config_printer

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mediadeck/mediadeck/config"
	"github.com/mediadeck/mediadeck/param"
)

const redacted = "<redacted>"

// loadConfig decodes the given viper instance into a config struct with
// credentials masked.  The global instance already carries defaults; any
// other instance gets them here.
func loadConfig(v *viper.Viper) (*param.Config, error) {
	if v != viper.GetViper() {
		config.SetDefaults(v)
	}
	cfg, err := param.DecodeConfig(v)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Token != "" {
		cfg.Storage.Token = redacted
	}
	if cfg.Storage.ApiKey != "" {
		cfg.Storage.ApiKey = redacted
	}
	return cfg, nil
}

// printConfig writes configData in the requested format, either "yaml"
// or "json".
func printConfig(out io.Writer, configData interface{}, format string) error {
	switch format {
	case "yaml":
		yamlData, err := yaml.Marshal(configData)
		if err != nil {
			return errors.Wrap(err, "error marshaling config to YAML")
		}
		_, err = fmt.Fprintln(out, string(yamlData))
		return err
	case "json":
		jsonData, err := json.MarshalIndent(configData, "", "  ")
		if err != nil {
			return errors.Wrap(err, "error marshaling config to JSON")
		}
		_, err = fmt.Fprintln(out, string(jsonData))
		return err
	}
	return errors.Errorf("unsupported format: %s. Use 'yaml' or 'json'", format)
}

// formatValue renders a leaf value for the flattened listing; slices come
// out as "[a, b]" and strings are quoted.
func formatValue(value interface{}) string {
	if value == nil {
		return "none"
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		elements := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elements = append(elements, formatValue(rv.Index(i).Interface()))
		}
		return "[" + strings.Join(elements, ", ") + "]"
	case reflect.String:
		return fmt.Sprintf("%q", value)
	default:
		return fmt.Sprintf("%v", value)
	}
}
