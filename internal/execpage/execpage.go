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

// Package execpage is the side table of lazy-load descriptors populated
// at process load time from an executable's segments (spec §4.5). Unlike
// the supplemental page table, entries here are immutable and are never
// written back: a clean executable page is always recoverable by
// re-reading the image.
package execpage

import (
	"sync"

	"github.com/shimmeros/gopager/internal/pagetable"
)

// Descriptor is one lazily-loaded executable page: read ReadBytes from
// the image at Offset, zero-fill the remainder of the page, and install
// with Writable.
type Descriptor struct {
	Offset    int64
	ReadBytes int64
	Writable  bool
}

// Table is one process's executable page table, populated once at load
// and read-only thereafter.
type Table struct {
	mu      sync.RWMutex
	entries map[pagetable.UserPage]Descriptor
}

// New creates an empty Table.
func New() *Table {
	return &Table{entries: make(map[pagetable.UserPage]Descriptor)}
}

// Insert records d for upage. Called only during process load.
func (t *Table) Insert(upage pagetable.UserPage, d Descriptor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[upage] = d
}

// Lookup returns upage's descriptor, if any. Used only during fault
// handling (spec §4.5): there is no other reader.
func (t *Table) Lookup(upage pagetable.UserPage) (Descriptor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.entries[upage]
	return d, ok
}
