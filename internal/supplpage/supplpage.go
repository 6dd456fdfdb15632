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

// Package supplpage implements the supplemental page table (spec §4.5): a
// per-process record of logical page ownership distinct from the hardware
// page table, resolving a fault to one of resident / swapped / lazily
// loaded from a memory-mapped file.
package supplpage

import (
	"sync"

	"github.com/shimmeros/gopager/internal/pagetable"
)

// State tags which of Entry's fields are meaningful.
type State int

const (
	// Resident means the page currently occupies a frame.
	Resident State = iota
	// Swapped means the page was evicted to the swap device.
	Swapped
	// LazyMmap means the page has never been faulted in; it will be
	// populated from a memory-mapped file's bytes on first access.
	LazyMmap
)

// Entry is one supplemental page table record. Only the fields relevant
// to State are meaningful; the others are left zero.
type Entry struct {
	State State

	Writable bool

	// Valid when State == Resident.
	Frame uint32

	// Valid when State == Swapped.
	SwapSlot uint32

	// Valid when IsMmap is set (the page is backed by a
	// file and must be written back on eviction/munmap if dirty).
	IsMmap      bool
	MmapFile    mmapFile
	MmapOffset  int64
	MmapReadLen int64
}

// mmapFile is the narrow file interface munmap's write-back and the fault
// handler's lazy-load need; internal/fault supplies the concrete type
// (normally an *inode.File) to avoid an import cycle back
// into internal/inode.
type mmapFile interface {
	ReadAt(buf []byte, offset int64) (int, error)
	WriteAt(buf []byte, offset int64) (int, error)
}

// Table is one process's supplemental page table.
type Table struct {
	mu      sync.Mutex
	entries map[pagetable.UserPage]*Entry
}

// New creates an empty Table.
func New() *Table {
	return &Table{entries: make(map[pagetable.UserPage]*Entry)}
}

// Insert records a fresh entry for upage, overwriting any existing one.
func (t *Table) Insert(upage pagetable.UserPage, e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := e
	t.entries[upage] = &cp
}

// Lookup returns upage's entry, if any.
func (t *Table) Lookup(upage pagetable.UserPage) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[upage]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Update replaces upage's entry in place (e.g. reclaim_page flipping
// Swapped back to Resident).
func (t *Table) Update(upage pagetable.UserPage, e Entry) {
	t.Insert(upage, e)
}

// Remove unlinks upage's entry.
func (t *Table) Remove(upage pagetable.UserPage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, upage)
}

// SwapDeleter is the narrow interface Destroy needs to free swapped-out
// slots; internal/swap.Manager satisfies it.
type SwapDeleter interface {
	Delete(slot uint32)
}

// FrameRemover is the narrow interface Destroy needs to tear down
// resident, non-mmap frames; internal/frame.Table satisfies it.
type FrameRemover interface {
	RemoveByFrame(frame uint32)
}

// Destroy tears down every entry in t at process exit: swapped pages
// release their slot; resident non-mmap pages have their frame removed
// with no write-back, since any dirty page would already have been
// swapped out by the eviction path before this point, or this entry
// belongs to a process being torn down whose mapping is gone anyway
// (spec §4.5, §9).
func (t *Table) Destroy(swapMgr SwapDeleter, frames FrameRemover) {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[pagetable.UserPage]*Entry)
	t.mu.Unlock()

	for _, e := range entries {
		switch e.State {
		case Swapped:
			swapMgr.Delete(e.SwapSlot)
		case Resident:
			if !e.IsMmap {
				frames.RemoveByFrame(e.Frame)
			}
		}
	}
}
