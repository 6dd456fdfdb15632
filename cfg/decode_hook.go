// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cfg

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// severityDecodeHook lets viper accept case-insensitive severity strings
// ("debug", "DEBUG") from flags, env vars, or YAML alike.
func severityDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(Severity("")) {
			return data, nil
		}
		s, ok := data.(string)
		if !ok {
			return data, nil
		}
		sev := Severity(strings.ToUpper(s))
		if !isValidSeverity(sev) {
			return nil, fmt.Errorf("unrecognized severity %q", s)
		}
		return sev, nil
	}
}

// DecodeHooks returns the full set of mapstructure decode hooks used when
// unmarshaling viper config into a Config.
func DecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		severityDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}
