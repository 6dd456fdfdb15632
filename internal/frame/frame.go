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

// Package frame implements the global frame table and its clock eviction
// policy (spec §4.4): a process-wide map keyed by physical frame, each
// entry carrying a per-frame lock that pins the page against eviction
// during I/O.
package frame

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/shimmeros/gopager/internal/logger"
	"github.com/shimmeros/gopager/internal/metrics"
	"github.com/shimmeros/gopager/internal/pagetable"
	"github.com/shimmeros/gopager/internal/physmem"
	"github.com/shimmeros/gopager/internal/supplpage"
)

// Owner is the per-process state the frame table needs to resolve a
// victim: its hardware page table (for accessed/dirty bits) and its
// supplemental page table (for swap/mmap bookkeeping).
type Owner interface {
	PageTable() *pagetable.Table
	SupplPage() *supplpage.Table
}

// SwapOuter is the narrow interface resolveVictim needs to evict a dirty,
// non-mmap page; internal/swap.Manager satisfies it.
type SwapOuter interface {
	Out(frame []byte) (uint32, error)
}

// Entry is one occupied frame.
type Entry struct {
	mu sync.Mutex // per-frame lock: held during I/O to pin the page

	frame physmem.FrameID
	owner Owner
	upage pagetable.UserPage
}

// Unlock releases the per-frame lock. Callers of Alloc must call this
// once mappings are installed (spec §4.4: "callers release the lock after
// installing mappings").
func (e *Entry) Unlock() { e.mu.Unlock() }

// Frame returns the entry's physical frame id.
func (e *Entry) Frame() physmem.FrameID { return e.frame }

// Table is the global frame table.
type Table struct {
	pool *physmem.Pool
	swap SwapOuter

	mu      sync.Mutex
	entries map[physmem.FrameID]*Entry
	order   []physmem.FrameID
	cursor  int
}

// New creates a Table backed by pool for physical pages and swap for
// evicting dirty, non-mmap pages.
func New(pool *physmem.Pool, swap SwapOuter) *Table {
	return &Table{
		pool:    pool,
		swap:    swap,
		entries: make(map[physmem.FrameID]*Entry),
	}
}

// Alloc reserves a physical frame for (owner, upage), evicting a victim
// via the clock policy if the pool is exhausted. The returned entry's
// per-frame lock is held; callers release it via Entry.Unlock once the
// page table mapping is installed.
func (t *Table) Alloc(owner Owner, upage pagetable.UserPage, writable bool) (*Entry, []byte, error) {
	for {
		id, buf, ok := t.pool.Alloc()
		if ok {
			e := &Entry{frame: id, owner: owner, upage: upage}
			e.mu.Lock()

			t.mu.Lock()
			t.entries[id] = e
			t.order = append(t.order, id)
			t.mu.Unlock()

			owner.PageTable().SetPage(upage, uint32(id), writable)
			return e, buf, nil
		}

		victim := t.chooseVictim()
		if victim == nil {
			return nil, nil, fmt.Errorf("frame: physical pool exhausted and the frame table holds no frames to evict")
		}
		if err := t.resolveVictim(victim); err != nil {
			return nil, nil, fmt.Errorf("frame: resolve victim: %w", err)
		}
	}
}

// chooseVictim runs the clock scan of spec §4.4: accessed entries get a
// second chance and are cleared; the first candidate whose per-frame
// lock can be taken without waiting is selected and the cursor advances
// past it. The scan yields and restarts if nothing is evictable yet.
func (t *Table) chooseVictim() *Entry {
	for {
		t.mu.Lock()
		n := len(t.order)
		for i := 0; i < n; i++ {
			idx := (t.cursor + i) % n
			id := t.order[idx]
			e := t.entries[id]

			if e.owner.PageTable().IsAccessed(e.upage) {
				e.owner.PageTable().ClearAccessed(e.upage)
				continue
			}
			if e.mu.TryLock() {
				t.cursor = (idx + 1) % n
				t.mu.Unlock()
				return e
			}
		}
		t.mu.Unlock()
		if n == 0 {
			return nil
		}
		runtime.Gosched()
	}
}

// resolveVictim applies spec §4.4's three-way branch to a locked victim
// and removes it from the table. e.mu is held on entry and released
// before return (by removeLocked).
func (t *Table) resolveVictim(e *Entry) error {
	spt := e.owner.SupplPage()
	entry, ok := spt.Lookup(e.upage)
	if !ok {
		// No SPT bookkeeping (shouldn't happen for a resident page); drop
		// it as a clean page.
		t.removeLocked(e)
		return nil
	}

	dirty := e.owner.PageTable().IsDirty(e.upage)

	switch {
	case entry.IsMmap && dirty:
		buf := t.pool.Bytes(e.frame)[:entry.MmapReadLen]
		if _, err := entry.MmapFile.WriteAt(buf, entry.MmapOffset); err != nil {
			t.removeLocked(e)
			return fmt.Errorf("write back mmap page: %w", err)
		}
		entry.State = supplpage.LazyMmap
		entry.Frame = 0
		spt.Update(e.upage, entry)
		metrics.FrameEvictions.WithLabelValues(metrics.ResolutionMmapWriteback).Inc()
		t.removeLocked(e)

	case dirty:
		slot, err := t.swap.Out(t.pool.Bytes(e.frame))
		if err != nil {
			t.removeLocked(e)
			return fmt.Errorf("swap out: %w", err)
		}
		entry.State = supplpage.Swapped
		entry.SwapSlot = slot
		entry.Frame = 0
		spt.Update(e.upage, entry)
		metrics.FrameEvictions.WithLabelValues(metrics.ResolutionSwap).Inc()
		t.removeLocked(e)

	default:
		spt.Remove(e.upage)
		metrics.FrameEvictions.WithLabelValues(metrics.ResolutionCleanDrop).Inc()
		t.removeLocked(e)
	}
	return nil
}

// removeLocked clears the owning page table mapping, removes e from the
// frame table, frees the physical page, and releases the per-frame lock.
// e.mu must be held on entry.
func (t *Table) removeLocked(e *Entry) {
	e.owner.PageTable().ClearPage(e.upage)

	t.mu.Lock()
	delete(t.entries, e.frame)
	for i, id := range t.order {
		if id == e.frame {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.mu.Unlock()

	t.pool.Free(e.frame)
	e.mu.Unlock()
}

// Remove tears down e explicitly (not via eviction), e.g. when a
// supplemental page table entry for a resident page is destroyed at
// process exit. Acquires e's per-frame lock itself.
func (t *Table) Remove(e *Entry) {
	e.mu.Lock()
	t.removeLocked(e)
}

// PinByFrame locks and returns the entry for a raw frame id, for callers
// (munmap write-back) that need to hold a specific page against eviction
// by its frame id rather than by (owner, upage).
func (t *Table) PinByFrame(frame physmem.FrameID) (*Entry, bool) {
	t.mu.Lock()
	e, ok := t.entries[frame]
	t.mu.Unlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	return e, true
}

// ReleasePinned tears down e, which must already be locked (typically via
// PinByFrame or as returned from Alloc).
func (t *Table) ReleasePinned(e *Entry) {
	t.removeLocked(e)
}

// Bytes returns the backing buffer for e's frame, for callers that need
// to read or write its contents while it is pinned.
func (t *Table) Bytes(e *Entry) []byte {
	return t.pool.Bytes(e.frame)
}

// RemoveByFrame looks up the entry for a raw frame id and tears it down,
// satisfying supplpage.FrameRemover for process teardown (spec §4.5).
func (t *Table) RemoveByFrame(frame uint32) {
	t.mu.Lock()
	e, ok := t.entries[physmem.FrameID(frame)]
	t.mu.Unlock()
	if !ok {
		logger.Warnf("frame: RemoveByFrame: frame %d not found", frame)
		return
	}
	t.Remove(e)
}
