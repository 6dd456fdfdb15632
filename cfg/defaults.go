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

// Default returns a Config populated with the values used when a flag or
// env var is left unset.
func Default() Config {
	return Config{
		Filesystem: DeviceConfig{
			Path:    "gopager-fs.img",
			Sectors: MaxFileSectors + 64,
		},
		Swap: DeviceConfig{
			Path:    "gopager-swap.img",
			Sectors: 8 * 512,
		},
		PhysicalPages:         32,
		StackGrowthSlackBytes: 32,
		UserStackBytes:        8 * 1024 * 1024,
		Log: LogConfig{
			Format:   "text",
			Severity: INFO,
		},
		MetricsAddr: "",
	}
}
