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

// Package freemap tracks which sectors of the filesystem device are in
// use, the allocator that backs inode_create's block_to_sector growth path
// (spec §4.2). Sector 0 is reserved as the "unallocated" sentinel and is
// never handed out.
package freemap

import "github.com/shimmeros/gopager/common"

// Map is a single-sector allocator over a fixed-size device.
type Map struct {
	bitmap *common.Bitmap
}

// New creates a Map for a device of the given sector count. Sector 0 is
// marked in-use up front so it can never be allocated.
func New(sectors uint32) *Map {
	b := common.NewBitmap(sectors)
	if sectors > 0 {
		b.ScanAndFlip(1) // claims sector 0, the sentinel
	}
	return &Map{bitmap: b}
}

// Allocate reserves and returns one free sector, or (0, false) if the
// device is full.
func (m *Map) Allocate() (uint32, bool) {
	return m.bitmap.ScanAndFlip(1)
}

// Release frees sector, making it available for reuse.
func (m *Map) Release(sector uint32) {
	m.bitmap.SetFree(sector, 1)
}

// InUse reports how many sectors (including the sector-0 sentinel) are
// currently allocated.
func (m *Map) InUse() uint32 {
	return m.bitmap.SetCount()
}
