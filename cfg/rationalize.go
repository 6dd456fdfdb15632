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

// Rationalize fills in cross-field defaults that can't be expressed as flat
// flag defaults: an unset swap path derives from the filesystem path, and a
// zero stack size falls back to the package default.
func Rationalize(c *Config) {
	if c.Swap.Path == "" {
		c.Swap.Path = c.Filesystem.Path + ".swap"
	}
	if c.UserStackBytes == 0 {
		c.UserStackBytes = Default().UserStackBytes
	}
	if c.StackGrowthSlackBytes == 0 {
		c.StackGrowthSlackBytes = Default().StackGrowthSlackBytes
	}
}
