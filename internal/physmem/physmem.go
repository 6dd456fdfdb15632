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

// Package physmem simulates the physical page allocator (spec §5, §9
// glossary "page_alloc/page_free"): a fixed pool of cfg.PageSize-byte
// frames, deliberately small so the frame table's clock eviction is
// reachable from a handful of faults rather than needing gigabytes of
// simulated address space.
package physmem

import (
	"sync"

	"github.com/shimmeros/gopager/cfg"
	"github.com/shimmeros/gopager/common"
)

// FrameID identifies one slot in the pool.
type FrameID uint32

// Pool is a fixed-capacity set of page-sized buffers.
type Pool struct {
	mu     sync.Mutex
	bitmap *common.Bitmap
	pages  [][cfg.PageSize]byte
}

// New creates a Pool of n physical pages.
func New(n uint32) *Pool {
	return &Pool{
		bitmap: common.NewBitmap(n),
		pages:  make([][cfg.PageSize]byte, n),
	}
}

// Capacity returns the pool's total page count.
func (p *Pool) Capacity() uint32 {
	return p.bitmap.Len()
}

// Alloc reserves one free frame and returns its id and backing buffer.
// Returns ok=false if the pool is full; the caller (internal/frame) is
// responsible for running eviction and retrying.
func (p *Pool) Alloc() (FrameID, []byte, bool) {
	id, ok := p.bitmap.ScanAndFlip(1)
	if !ok {
		return 0, nil, false
	}
	return FrameID(id), p.pages[id][:], true
}

// Free releases id back to the pool, zeroing its contents so a later
// Alloc never hands out stale data.
func (p *Pool) Free(id FrameID) {
	p.mu.Lock()
	clear(p.pages[id][:])
	p.mu.Unlock()
	p.bitmap.SetFree(uint32(id), 1)
}

// Bytes returns id's backing buffer without allocating or freeing it.
func (p *Pool) Bytes(id FrameID) []byte {
	return p.pages[id][:]
}

// InUse reports how many frames are currently allocated, for `bench`
// reporting.
func (p *Pool) InUse() uint32 {
	return p.bitmap.SetCount()
}
