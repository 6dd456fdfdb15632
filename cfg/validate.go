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

import "fmt"

func isValidSeverity(s Severity) bool {
	switch s {
	case OFF, ERROR, WARNING, INFO, DEBUG, TRACE:
		return true
	default:
		return false
	}
}

func isValidFormat(f string) bool {
	return f == "text" || f == "json"
}

// Validate returns a non-nil error if the config is structurally invalid.
func Validate(c *Config) error {
	if c.Swap.Sectors%SectorsPerPage != 0 {
		return fmt.Errorf("swap.sectors (%d) must be a multiple of %d (spec §3: swap slots are 8-sector aligned)", c.Swap.Sectors, SectorsPerPage)
	}
	if c.Filesystem.Sectors == 0 {
		return fmt.Errorf("filesystem.sectors must be positive")
	}
	if c.PhysicalPages == 0 {
		return fmt.Errorf("physical-pages must be positive")
	}
	if !isValidSeverity(c.Log.Severity) {
		return fmt.Errorf("invalid log.severity %q", c.Log.Severity)
	}
	if !isValidFormat(c.Log.Format) {
		return fmt.Errorf("invalid log.format %q, must be \"text\" or \"json\"", c.Log.Format)
	}
	if c.ThrottleBytesPerSec < 0 {
		return fmt.Errorf("throttle-bytes-per-sec must not be negative")
	}
	return nil
}
