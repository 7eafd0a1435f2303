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
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func configGet(cmd *cobra.Command, args []string) error {
	currentConfig, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	configValues := make(map[string]string)
	flattenConfig(currentConfig, "", configValues)

	var matches []string
	for key, valueStr := range configValues {
		if len(args) == 0 {
			matches = append(matches, key)
			continue
		}
		for _, arg := range args {
			argLower := strings.ToLower(arg)
			if strings.Contains(key, argLower) || strings.Contains(strings.ToLower(valueStr), argLower) {
				matches = append(matches, key)
				break
			}
		}
	}

	out := cmd.OutOrStdout()
	if len(matches) == 0 && len(args) > 0 {
		fmt.Fprintln(out, "No matching configuration parameters found.")
		return nil
	}

	sort.Strings(matches)
	for _, key := range matches {
		fmt.Fprintf(out, "%s: %s\n", key, configValues[key])
	}
	return nil
}

// flattenConfig recursively flattens the config structure into a map of
// lowercase dotted keys.
func flattenConfig(config interface{}, parentKey string, result map[string]string) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		key := strings.ToLower(field.Name)
		if parentKey != "" {
			key = parentKey + "." + key
		}

		switch fieldValue.Kind() {
		case reflect.Struct:
			flattenConfig(fieldValue.Interface(), key, result)
		case reflect.Ptr:
			if !fieldValue.IsNil() {
				flattenConfig(fieldValue.Interface(), key, result)
			}
		default:
			result[key] = formatValue(fieldValue.Interface())
		}
	}
}
