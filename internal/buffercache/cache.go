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

// Package buffercache implements the 64-slot buffer cache of spec §4.1: a
// clock-evicted, write-behind cache of device sectors sitting in front of
// internal/block, with a background read-ahead worker.
package buffercache

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/shimmeros/gopager/cfg"
	"github.com/shimmeros/gopager/common"
	"github.com/shimmeros/gopager/internal/block"
	"github.com/shimmeros/gopager/internal/logger"
	"github.com/shimmeros/gopager/internal/metrics"
)

// entry is one cache slot. The slot's own lock guards its contents; cache's
// mu guards membership (which sector, if any, a slot holds). Lock ordering
// is cache.mu before entry.mu, never the reverse: acquire can block on a
// slot lock while holding cache.mu, and clock eviction only TryLocks a slot
// so it never waits on one.
type entry struct {
	mu sync.Mutex

	sector uint32
	valid  bool
	loaded bool
	dirty  bool

	accessed bool

	buf [cfg.SectorSize]byte
}

// Cache is a fixed-capacity, clock-evicted cache of device sectors.
type Cache struct {
	dev block.Interface

	mu       sync.Mutex
	slots    [cfg.CacheSlots]*entry
	clockPos int

	readAheadQueue common.Queue[int]
	readAheadWake  chan struct{} // non-empty signal, capacity 1: coalesces wakeups
	done           chan struct{}
}

// New creates a Cache over dev and starts its background read-ahead
// worker. Callers must call Done before dropping the last reference, to
// flush dirty slots and stop the worker.
func New(dev block.Interface) *Cache {
	c := &Cache{
		dev:            dev,
		readAheadQueue: common.NewLinkedListQueue[int](),
		readAheadWake:  make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
	for i := range c.slots {
		c.slots[i] = &entry{}
	}
	go c.readAheadLoop()
	return c
}

// acquire returns the locked entry for sector, allocating and evicting as
// necessary. The returned entry's lock is held; callers must unlock it.
func (c *Cache) acquire(sector uint32) *entry {
	c.mu.Lock()

	freeIdx := -1
	for i, e := range c.slots {
		if e.valid && e.sector == sector {
			e.mu.Lock()
			c.mu.Unlock()
			return e
		}
		if !e.valid && freeIdx == -1 {
			freeIdx = i
		}
	}

	idx := freeIdx
	if idx == -1 {
		idx = c.evictLocked()
	}

	e := c.slots[idx]
	e.mu.Lock()
	e.sector = sector
	e.valid = true
	e.loaded = false
	e.dirty = false
	e.accessed = false
	c.mu.Unlock()
	return e
}

// evictLocked runs the clock (second-chance) scan and returns the index of
// a slot ready for reuse. c.mu must be held on entry and remains held on
// return; the chosen slot is NOT locked by this call.
func (c *Cache) evictLocked() int {
	for {
		for i := 0; i < cfg.CacheSlots; i++ {
			idx := (c.clockPos + i) % cfg.CacheSlots
			e := c.slots[idx]

			if e.accessed {
				e.accessed = false
				continue
			}
			if !e.loaded {
				continue
			}
			if !e.mu.TryLock() {
				continue
			}

			c.clockPos = (idx + 1) % cfg.CacheSlots
			if e.dirty {
				if err := c.dev.WriteSector(e.sector, e.buf[:]); err != nil {
					logger.Errorf("buffercache: write back sector %d during eviction: %v", e.sector, err)
				}
			}
			e.mu.Unlock()
			metrics.CacheEvictions.Inc()
			return idx
		}

		// Every loaded slot is either accessed or currently locked by an
		// in-flight I/O: give whoever holds a slot lock a chance to finish
		// and clear it rather than spinning on this core.
		runtime.Gosched()
	}
}

func loadLocked(dev block.Interface, e *entry) error {
	clear(e.buf[:])
	if err := dev.ReadSector(e.sector, e.buf[:]); err != nil {
		return fmt.Errorf("load sector %d: %w", e.sector, err)
	}
	e.loaded = true
	return nil
}

// ReadAt copies size bytes starting at offset ofs within sector into dst.
func (c *Cache) ReadAt(sector uint32, dst []byte, ofs, size int) error {
	e := c.acquire(sector)
	wasLoaded := e.loaded
	if !e.loaded {
		if err := loadLocked(c.dev, e); err != nil {
			e.mu.Unlock()
			return err
		}
	}
	copy(dst, e.buf[ofs:ofs+size])
	e.accessed = true
	e.mu.Unlock()

	if wasLoaded {
		metrics.CacheHits.Inc()
	} else {
		metrics.CacheMisses.Inc()
	}

	c.scheduleReadAhead(sector)
	return nil
}

// WriteAt writes size bytes from src into sector at offset ofs, marking the
// slot dirty for later write-back.
func (c *Cache) WriteAt(sector uint32, src []byte, ofs, size int) error {
	e := c.acquire(sector)
	if !e.loaded {
		if err := loadLocked(c.dev, e); err != nil {
			e.mu.Unlock()
			return err
		}
	}
	copy(e.buf[ofs:ofs+size], src)
	e.dirty = true
	e.accessed = true
	e.mu.Unlock()
	return nil
}

// scheduleReadAhead enqueues sector+1 for background loading if it is not
// already resident, mirroring the original driver's one-sector lookahead.
func (c *Cache) scheduleReadAhead(sector uint32) {
	next := sector + 1
	if next >= c.dev.Size() {
		return
	}

	c.mu.Lock()
	for _, e := range c.slots {
		if e.valid && e.sector == next {
			c.mu.Unlock()
			return
		}
	}
	c.mu.Unlock()

	c.readAheadQueue.Push(int(next))
	select {
	case c.readAheadWake <- struct{}{}:
	default:
	}
}

func (c *Cache) readAheadLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.readAheadWake:
		}

		for {
			c.mu.Lock()
			if c.readAheadQueue.IsEmpty() {
				c.mu.Unlock()
				break
			}
			sector := uint32(c.readAheadQueue.Pop())
			c.mu.Unlock()

			e := c.acquire(sector)
			if !e.loaded {
				if err := loadLocked(c.dev, e); err != nil {
					logger.Warnf("buffercache: read-ahead sector %d: %v", sector, err)
				} else {
					metrics.CacheReadAheadHits.Inc()
				}
			}
			e.mu.Unlock()
		}
	}
}

// Remove zeroes sector's slot if resident, writes the zeros back to the
// device, and invalidates the slot. Used when a block is freed and its stale
// contents must not survive a future reuse of the sector number.
func (c *Cache) Remove(sector uint32) error {
	c.mu.Lock()
	for _, e := range c.slots {
		if e.valid && e.sector == sector {
			e.mu.Lock()
			c.mu.Unlock()

			clear(e.buf[:])
			err := c.dev.WriteSector(sector, e.buf[:])
			e.valid = false
			e.loaded = false
			e.dirty = false
			e.mu.Unlock()
			return err
		}
	}
	c.mu.Unlock()
	return nil
}

// Done flushes every dirty slot to the device and stops the read-ahead
// worker. The cache must not be used afterward.
func (c *Cache) Done() error {
	close(c.done)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.slots {
		e.mu.Lock()
		if e.dirty && e.valid && e.loaded {
			if err := c.dev.WriteSector(e.sector, e.buf[:]); err != nil {
				e.mu.Unlock()
				return fmt.Errorf("flush sector %d: %w", e.sector, err)
			}
			e.dirty = false
		}
		e.mu.Unlock()
	}
	return nil
}

// Stats reports occupancy, useful for `gopagerctl bench` output.
type Stats struct {
	Slots  int
	Valid  int
	Dirty  int
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{Slots: cfg.CacheSlots}
	for _, e := range c.slots {
		e.mu.Lock()
		if e.valid {
			s.Valid++
		}
		if e.dirty {
			s.Dirty++
		}
		e.mu.Unlock()
	}
	return s
}
