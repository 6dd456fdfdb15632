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

// Package fault resolves page faults and implements mmap/munmap (spec
// §4.6, §4.7), tying the supplemental page table, executable page table,
// frame table, and swap manager together.
package fault

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shimmeros/gopager/cfg"
	"github.com/shimmeros/gopager/internal/execpage"
	"github.com/shimmeros/gopager/internal/frame"
	"github.com/shimmeros/gopager/internal/logger"
	"github.com/shimmeros/gopager/internal/metrics"
	"github.com/shimmeros/gopager/internal/pagetable"
	"github.com/shimmeros/gopager/internal/physmem"
	"github.com/shimmeros/gopager/internal/supplpage"
)

// ErrSpuriousFault is returned when a fault lands on an address the SPT
// already reports resident: the trap fired without cause and the caller
// should kill the faulting process (spec §4.6 step 3).
var ErrSpuriousFault = errors.New("fault: address is already resident")

// ErrKilled is returned when no resolution step succeeds: the fault was
// on an address with no mapping, no lazy descriptor, and no valid stack
// growth shape (spec §4.6 step 8).
var ErrKilled = errors.New("fault: unresolvable address, process killed")

// fileBacking is the interface mmap'd files and the executable image
// must satisfy; internal/inode's (*Table, *Inode) pair is adapted to it
// by inode.File.
type fileBacking interface {
	ReadAt(buf []byte, offset int64) (int, error)
	WriteAt(buf []byte, offset int64) (int, error)
	Close() error
}

// Process bundles one simulated process's memory-management state: its
// hardware page table, supplemental page table, executable page table,
// and the reopened file backing its code image.
type Process struct {
	pt  *pagetable.Table
	spt *supplpage.Table
	ep  *execpage.Table

	execImage fileBacking

	stackTop   uint64
	stackBytes uint32
	stackSlack uint32

	mmaps map[uuid.UUID]*mmapRegion
}

type mmapRegion struct {
	file  fileBacking
	pages []pagetable.UserPage
}

// NewProcess creates a Process. stackTop is the highest user address the
// stack may occupy; stackBytes bounds how far it may grow down from
// there; stackSlack is the allowed distance below the trap frame's stack
// pointer a fault address may land and still count as stack growth.
func NewProcess(execImage fileBacking, stackTop uint64, c cfg.Config) *Process {
	return &Process{
		pt:         pagetable.New(),
		spt:        supplpage.New(),
		ep:         execpage.New(),
		execImage:  execImage,
		stackTop:   stackTop,
		stackBytes: c.UserStackBytes,
		stackSlack: c.StackGrowthSlackBytes,
		mmaps:      make(map[uuid.UUID]*mmapRegion),
	}
}

func (p *Process) PageTable() *pagetable.Table { return p.pt }
func (p *Process) SupplPage() *supplpage.Table { return p.spt }
func (p *Process) ExecPage() *execpage.Table   { return p.ep }

// InsertExecPage registers a lazy-load descriptor at process load time.
func (p *Process) InsertExecPage(upage pagetable.UserPage, d execpage.Descriptor) {
	p.ep.Insert(upage, d)
}

func pageOf(addr uint64) pagetable.UserPage {
	return pagetable.UserPage(addr / cfg.PageSize)
}

func pageAligned(addr uint64) uint64 {
	return addr - addr%cfg.PageSize
}

// markIfWrite sets upage's hardware dirty bit when the fault that
// resolved it was itself a write access, the same way real hardware
// would stamp the page table entry on the retried instruction.
func markIfWrite(proc *Process, upage pagetable.UserPage, write bool) {
	if write {
		proc.pt.SetDirty(upage)
	}
}

// Handler resolves faults against the shared frame table and swap
// manager, on behalf of any number of Processes.
type Handler struct {
	frames *frame.Table
	pool   *physmem.Pool
	swap   swapInner
}

type swapInner interface {
	In(frame []byte, slot uint32) error
}

// NewHandler creates a Handler. swap must also satisfy frame.SwapOuter;
// internal/swap.Manager does.
func NewHandler(frames *frame.Table, pool *physmem.Pool, swap swapInner) *Handler {
	return &Handler{frames: frames, pool: pool, swap: swap}
}

// Fault resolves a page fault at addr for proc, given the trap frame's
// saved stack pointer and whether the access was a write. On success it
// returns the newly (or re-)installed frame-table entry, PINNED: the
// caller must call entry.Unlock() once it has finished installing or
// using the mapping (spec §4.6: "return the pinned frame-table entry to
// the caller", consumed directly by read/write syscalls that must hold
// the pin across a kernel copy).
func (h *Handler) Fault(proc *Process, addr, espAtFault uint64, write bool) (*frame.Entry, error) {
	if addr >= proc.stackTop {
		metrics.PageFaults.WithLabelValues(metrics.ResolutionKilledInvalid).Inc()
		return nil, ErrKilled
	}

	upage := pageOf(pageAligned(addr))

	if entry, ok := proc.spt.Lookup(upage); ok {
		switch entry.State {
		case supplpage.Resident:
			return nil, ErrSpuriousFault

		case supplpage.Swapped:
			e, buf, err := h.frames.Alloc(proc, upage, entry.Writable)
			if err != nil {
				return nil, fmt.Errorf("fault: alloc for swap-in: %w", err)
			}
			if err := h.swap.In(buf, entry.SwapSlot); err != nil {
				return nil, fmt.Errorf("fault: swap in: %w", err)
			}
			entry.State = supplpage.Resident
			entry.Frame = uint32(e.Frame())
			entry.SwapSlot = 0
			proc.spt.Update(upage, entry)
			metrics.PageFaults.WithLabelValues(metrics.ResolutionSwapIn).Inc()
			markIfWrite(proc, upage, write)
			return e, nil
		}

		// LazyMmap
		e, buf, err := h.frames.Alloc(proc, upage, true)
		if err != nil {
			return nil, fmt.Errorf("fault: alloc for lazy mmap: %w", err)
		}
		n, err := entry.MmapFile.ReadAt(buf[:entry.MmapReadLen], entry.MmapOffset)
		if err != nil {
			return nil, fmt.Errorf("fault: read mmap page: %w", err)
		}
		clear(buf[n:])
		entry.State = supplpage.Resident
		entry.Frame = uint32(e.Frame())
		proc.spt.Update(upage, entry)
		metrics.PageFaults.WithLabelValues(metrics.ResolutionLazyMmap).Inc()
		markIfWrite(proc, upage, write)
		return e, nil
	}

	if desc, ok := proc.ep.Lookup(upage); ok {
		e, buf, err := h.frames.Alloc(proc, upage, desc.Writable)
		if err != nil {
			return nil, fmt.Errorf("fault: alloc for exec page: %w", err)
		}
		n, err := proc.execImage.ReadAt(buf[:desc.ReadBytes], desc.Offset)
		if err != nil {
			return nil, fmt.Errorf("fault: read exec page: %w", err)
		}
		clear(buf[n:])
		proc.spt.Insert(upage, supplpage.Entry{State: supplpage.Resident, Frame: uint32(e.Frame()), Writable: desc.Writable})
		metrics.PageFaults.WithLabelValues(metrics.ResolutionExecutable).Inc()
		markIfWrite(proc, upage, write)
		return e, nil
	}

	if h.validStackReach(proc, addr, espAtFault) {
		e, buf, err := h.frames.Alloc(proc, upage, true)
		if err != nil {
			return nil, fmt.Errorf("fault: alloc for stack growth: %w", err)
		}
		clear(buf)
		proc.spt.Insert(upage, supplpage.Entry{State: supplpage.Resident, Frame: uint32(e.Frame()), Writable: true})
		metrics.PageFaults.WithLabelValues(metrics.ResolutionStackGrowth).Inc()
		markIfWrite(proc, upage, write)
		return e, nil
	}

	metrics.PageFaults.WithLabelValues(metrics.ResolutionKilledInvalid).Inc()
	return nil, ErrKilled
}

// validStackReach reports whether addr is within the allowed stack
// growth window: no further below the faulting stack pointer than
// stackSlack, and within the process's maximum stack extent.
func (h *Handler) validStackReach(proc *Process, addr, espAtFault uint64) bool {
	if addr > proc.stackTop {
		return false
	}
	if addr+uint64(proc.stackSlack) < espAtFault {
		return false
	}
	floor := uint64(0)
	if proc.stackTop > uint64(proc.stackBytes) {
		floor = proc.stackTop - uint64(proc.stackBytes)
	}
	return addr >= floor
}

// PinRange resolves and pins every page touched by [addr, addr+length),
// for a read/write syscall that must hold its user buffer's pages
// against eviction during a kernel-side I/O copy. Already-resident pages
// are pinned directly; others are faulted in. Call UnpinRange when done.
func (h *Handler) PinRange(proc *Process, addr uint64, length int, espAtFault uint64, write bool) ([]*frame.Entry, error) {
	if length <= 0 {
		return nil, nil
	}
	start := pageAligned(addr)
	end := pageAligned(addr+uint64(length)-1) + cfg.PageSize

	var pinned []*frame.Entry
	for a := start; a < end; a += cfg.PageSize {
		upage := pageOf(a)
		if _, ok := proc.pt.GetPage(upage); ok {
			e, ok := h.frames.PinByFrame(frameIDOf(proc, upage))
			if ok {
				pinned = append(pinned, e)
				continue
			}
		}
		e, err := h.Fault(proc, a, espAtFault, write)
		if err != nil {
			h.UnpinRange(pinned)
			return nil, err
		}
		pinned = append(pinned, e)
	}
	return pinned, nil
}

func frameIDOf(proc *Process, upage pagetable.UserPage) physmem.FrameID {
	m, _ := proc.pt.GetPage(upage)
	return physmem.FrameID(m.Frame)
}

// UnpinRange releases every entry obtained from PinRange.
func (h *Handler) UnpinRange(entries []*frame.Entry) {
	for _, e := range entries {
		e.Unlock()
	}
}

// Mmap maps file into proc's address space starting at addr, one SPT
// entry per page, each lazily backed by the file until first fault
// (spec §4.7). Preconditions (page alignment, non-overlap, non-empty
// file) are the caller's responsibility to have already checked; Mmap
// itself only refuses a zero-length mapping.
func (h *Handler) Mmap(proc *Process, file fileBacking, addr uint64, length int64) (uuid.UUID, error) {
	if length <= 0 {
		return uuid.UUID{}, fmt.Errorf("mmap: length must be positive")
	}

	id := uuid.New()
	var pages []pagetable.UserPage

	for off := int64(0); off < length; off += cfg.PageSize {
		upage := pageOf(addr + uint64(off))
		readLen := int64(cfg.PageSize)
		if length-off < readLen {
			readLen = length - off
		}
		proc.spt.Insert(upage, supplpage.Entry{
			State:       supplpage.LazyMmap,
			Writable:    true,
			IsMmap:      true,
			MmapFile:    file,
			MmapOffset:  off,
			MmapReadLen: readLen,
		})
		pages = append(pages, upage)
	}

	proc.mmaps[id] = &mmapRegion{file: file, pages: pages}
	return id, nil
}

// Munmap tears down a mapping created by Mmap: dirty resident pages are
// written back to the file before their frame is removed; every page's
// SPT entry is removed regardless of residency; the reopened file is
// closed last.
func (h *Handler) Munmap(proc *Process, id uuid.UUID) error {
	region, ok := proc.mmaps[id]
	if !ok {
		return fmt.Errorf("munmap: unknown mapping %s", id)
	}

	for _, upage := range region.pages {
		entry, ok := proc.spt.Lookup(upage)
		if ok && entry.State == supplpage.Resident && proc.pt.IsDirty(upage) {
			if pinned, found := h.frames.PinByFrame(physmem.FrameID(entry.Frame)); found {
				buf := h.frames.Bytes(pinned)[:entry.MmapReadLen]
				if _, err := entry.MmapFile.WriteAt(buf, entry.MmapOffset); err != nil {
					logger.Errorf("munmap: write back page at offset %d: %v", entry.MmapOffset, err)
				}
				h.frames.ReleasePinned(pinned)
			}
		}
		proc.spt.Remove(upage)
	}

	delete(proc.mmaps, id)
	return region.file.Close()
}
