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

// EnvPrefix is the prefix viper uses when binding environment variables,
// e.g. GOPAGER_PHYSICAL-PAGES (the key upper-cased, hyphen kept).
const EnvPrefix = "GOPAGER"

// Severity is a log severity level, ordered from least to most verbose.
type Severity string

const (
	OFF     Severity = "OFF"
	ERROR   Severity = "ERROR"
	WARNING Severity = "WARNING"
	INFO    Severity = "INFO"
	DEBUG   Severity = "DEBUG"
	TRACE   Severity = "TRACE"
)

// Filesystem constants fixed by the on-disk format (spec §6). These are not
// configurable: changing them breaks on-disk compatibility.
const (
	SectorSize         = 512
	SectorsPerPage     = 8
	PageSize           = SectorSize * SectorsPerPage
	CacheSlots         = 64
	DirectBlocks       = 10
	IndirectEntries    = 128
	MaxFileSectors     = 16522
	InodeMagic         = 0x494e4f44
	DoubleIndirectUnit = SectorSize // spec §4.2 open question #1: fan-out is computed mod 512, not 128.

	// RootSector is the fixed inumber of the filesystem root directory.
	// Sector 0 is the free-map's unallocated sentinel, so the root is the
	// first sector a fresh free-map will ever hand out.
	RootSector = 1
)
