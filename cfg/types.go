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

// Package cfg holds the configuration surface for the gopager simulator:
// device paths and sizes, physical memory pool size, and logging.
package cfg

// LogConfig controls where and how the logger package writes.
type LogConfig struct {
	// FilePath, if non-empty, rotates logs through lumberjack instead of
	// writing to stderr.
	FilePath string `mapstructure:"file-path" yaml:"file-path"`

	Format   string   `mapstructure:"format" yaml:"format"`
	Severity Severity `mapstructure:"severity" yaml:"severity"`
}

// DeviceConfig describes a single simulated block device.
type DeviceConfig struct {
	Path    string `mapstructure:"path" yaml:"path"`
	Sectors uint32 `mapstructure:"sectors" yaml:"sectors"`
}

// Config is the fully parsed, validated, rationalized configuration for a
// gopager run.
type Config struct {
	Filesystem DeviceConfig `mapstructure:"filesystem" yaml:"filesystem"`
	Swap       DeviceConfig `mapstructure:"swap" yaml:"swap"`

	// PhysicalPages bounds the simulated physical page allocator
	// (internal/physmem). Small values make eviction trivially reachable
	// in tests and in the `bench` CLI.
	PhysicalPages uint32 `mapstructure:"physical-pages" yaml:"physical-pages"`

	// StackGrowthSlackBytes is how far below the reported stack pointer a
	// fault address may land and still be treated as stack growth (spec §4.6).
	StackGrowthSlackBytes uint32 `mapstructure:"stack-growth-slack-bytes" yaml:"stack-growth-slack-bytes"`

	// UserStackBytes bounds how large the simulated stack region may grow.
	UserStackBytes uint32 `mapstructure:"user-stack-bytes" yaml:"user-stack-bytes"`

	// ThrottleBytesPerSec, if non-zero, wraps both devices in an
	// internal/iothrottle rate limiter.
	ThrottleBytesPerSec int64 `mapstructure:"throttle-bytes-per-sec" yaml:"throttle-bytes-per-sec"`

	Log LogConfig `mapstructure:"log" yaml:"log"`

	MetricsAddr string `mapstructure:"metrics-addr" yaml:"metrics-addr"`
}
