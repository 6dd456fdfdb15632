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

package inode

import (
	"fmt"
	"sync"

	"github.com/shimmeros/gopager/cfg"
	"github.com/shimmeros/gopager/internal/buffercache"
	"github.com/shimmeros/gopager/internal/freemap"
	"github.com/shimmeros/gopager/internal/logger"
)

// Inode is the in-memory representation of an open file or directory. At
// most one Inode exists per sector at a time; repeated Opens of the same
// sector share it and bump a reference count (spec §4.2).
type Inode struct {
	sector uint32

	mu            sync.Mutex // guards openCnt, removed, denyWriteCnt
	openCnt       int
	removed       bool
	denyWriteCnt  int

	lengthMu sync.Mutex // guards length, entryCnt (protected separately from extensionLock: readers of length don't need to exclude concurrent non-extending writers)
	length   int32
	entryCnt int32
	isDir    bool

	extensionLock sync.Mutex
}

// Table owns the open-inode list and the resources (cache, free-map)
// every Inode resolves blocks through. One Table exists per mounted
// filesystem device.
type Table struct {
	cache *buffercache.Cache
	fm    *freemap.Map

	mu    sync.Mutex
	open  map[uint32]*Inode
}

// NewTable creates a Table backed by cache and fm.
func NewTable(cache *buffercache.Cache, fm *freemap.Map) *Table {
	return &Table{
		cache: cache,
		fm:    fm,
		open:  make(map[uint32]*Inode),
	}
}

func (t *Table) newWalker() *Walker {
	return NewWalker(t.cache, t.fm)
}

func (t *Table) readDiskInode(sector uint32) (*DiskInode, error) {
	var raw [cfg.SectorSize]byte
	if err := t.cache.ReadAt(sector, raw[:], 0, cfg.SectorSize); err != nil {
		return nil, err
	}
	return DeserializeDiskInode(raw[:])
}

func (t *Table) writeDiskInode(sector uint32, d *DiskInode) error {
	return t.cache.WriteAt(sector, d.Serialize(), 0, cfg.SectorSize)
}

// Create initializes a new inode of length bytes at sector, allocating and
// zeroing one data sector per logical block so that reads of a newly
// created file see zeros rather than disk hygiene.
func (t *Table) Create(sector uint32, length int32, isDir bool) error {
	if length < 0 {
		return fmt.Errorf("inode.Create: negative length %d", length)
	}

	d := &DiskInode{
		Length:   length,
		Magic:    cfg.InodeMagic,
		IsDir:    boolToByte(isDir),
		EntryCnt: 0,
	}

	w := t.newWalker()
	sectors := bytesToSectors(length)
	for i := uint32(0); i < sectors; i++ {
		res, err := w.BlockToSector(d, i, true)
		if err != nil {
			return fmt.Errorf("inode.Create: allocate block %d: %w", i, err)
		}
		if res == 0 {
			return fmt.Errorf("inode.Create: no sector for block %d of %d (device full or block position unreachable)", i, sectors)
		}
	}

	return t.writeDiskInode(sector, d)
}

// Open returns the shared in-memory Inode for sector, loading it from disk
// on first open and bumping openCnt on every subsequent one.
func (t *Table) Open(sector uint32) (*Inode, error) {
	t.mu.Lock()
	if in, ok := t.open[sector]; ok {
		in.mu.Lock()
		in.openCnt++
		in.mu.Unlock()
		t.mu.Unlock()
		return in, nil
	}
	t.mu.Unlock()

	d, err := t.readDiskInode(sector)
	if err != nil {
		return nil, fmt.Errorf("inode.Open: read sector %d: %w", sector, err)
	}

	in := &Inode{
		sector:   sector,
		openCnt:  1,
		length:   d.Length,
		entryCnt: d.EntryCnt,
		isDir:    d.isDirBool(),
	}

	t.mu.Lock()
	if existing, ok := t.open[sector]; ok {
		// Lost the race against a concurrent Open of the same sector.
		existing.mu.Lock()
		existing.openCnt++
		existing.mu.Unlock()
		t.mu.Unlock()
		return existing, nil
	}
	t.open[sector] = in
	t.mu.Unlock()
	return in, nil
}

// Close decrements in's reference count. On the last close it persists
// in-memory length/entryCnt to disk, or (if Remove was called) reclaims
// every block the inode owned.
func (t *Table) Close(in *Inode) error {
	in.mu.Lock()
	in.openCnt--
	last := in.openCnt == 0
	removed := in.removed
	in.mu.Unlock()

	if !last {
		return nil
	}

	t.mu.Lock()
	delete(t.open, in.sector)
	t.mu.Unlock()

	if removed {
		return t.reclaim(in)
	}

	d, err := t.readDiskInode(in.sector)
	if err != nil {
		return fmt.Errorf("inode.Close: read sector %d: %w", in.sector, err)
	}
	in.lengthMu.Lock()
	d.Length = in.length
	d.EntryCnt = in.entryCnt
	d.IsDir = boolToByte(in.isDir)
	in.lengthMu.Unlock()
	return t.writeDiskInode(in.sector, d)
}

// reclaim walks every data block the removed inode owned, releasing each
// non-zero sector through the cache and free-map, then the index blocks,
// then the inode sector itself.
func (t *Table) reclaim(in *Inode) error {
	d, err := t.readDiskInode(in.sector)
	if err != nil {
		return fmt.Errorf("inode.reclaim: read sector %d: %w", in.sector, err)
	}

	w := t.newWalker()
	in.lengthMu.Lock()
	sectors := bytesToSectors(in.length)
	in.lengthMu.Unlock()

	for i := uint32(0); i < sectors; i++ {
		sector, err := w.BlockToSector(d, i, false)
		if err != nil {
			return fmt.Errorf("inode.reclaim: resolve block %d: %w", i, err)
		}
		if sector == 0 {
			continue
		}
		if err := t.cache.Remove(sector); err != nil {
			logger.Warnf("inode: remove cached sector %d during reclaim: %v", sector, err)
		}
		t.fm.Release(sector)
	}

	if d.Indirect != 0 {
		_ = t.cache.Remove(d.Indirect)
		t.fm.Release(d.Indirect)
	}

	if d.DoubleIndirect != 0 {
		var outer indirectBlock
		if err := w.readIndirect(d.DoubleIndirect, &outer); err == nil {
			for _, inner := range outer.Entries {
				if inner == 0 {
					continue
				}
				_ = t.cache.Remove(inner)
				t.fm.Release(inner)
			}
		}
		_ = t.cache.Remove(d.DoubleIndirect)
		t.fm.Release(d.DoubleIndirect)
	}

	_ = t.cache.Remove(in.sector)
	t.fm.Release(in.sector)
	return nil
}

// Remove marks in for deletion: its blocks are reclaimed when the last
// opener calls Close.
func (t *Table) Remove(in *Inode) {
	in.mu.Lock()
	in.removed = true
	in.mu.Unlock()
}

// ReadAt reads up to len(buf) bytes from in starting at offset, returning
// the number of bytes actually read. A logical block with no backing
// sector reads as zeros (a hole) while still within the inode's length.
func (t *Table) ReadAt(in *Inode, buf []byte, offset int64) (int, error) {
	w := t.newWalker()
	d, err := t.readDiskInode(in.sector)
	if err != nil {
		return 0, fmt.Errorf("inode.ReadAt: read sector %d: %w", in.sector, err)
	}

	var read int
	size := len(buf)
	for size > 0 {
		blockIdx := uint32(offset / cfg.SectorSize)
		sectorOfs := int(offset % cfg.SectorSize)

		if !in.isDir {
			in.extensionLock.Lock()
		}
		in.lengthMu.Lock()
		length := in.length
		in.lengthMu.Unlock()

		inodeLeft := int64(length) - offset
		sectorLeft := cfg.SectorSize - sectorOfs
		minLeft := sectorLeft
		if inodeLeft < int64(sectorLeft) {
			minLeft = int(inodeLeft)
		}
		chunk := size
		if minLeft < chunk {
			chunk = minLeft
		}
		if chunk <= 0 {
			if !in.isDir {
				in.extensionLock.Unlock()
			}
			break
		}

		sector, err := w.BlockToSector(d, blockIdx, false)
		if err != nil {
			if !in.isDir {
				in.extensionLock.Unlock()
			}
			return read, err
		}

		if sector == 0 {
			clear(buf[read : read+chunk])
			if !in.isDir {
				in.extensionLock.Unlock()
			}
			size -= chunk
			offset += int64(chunk)
			read += chunk
			continue
		}

		if err := t.cache.ReadAt(sector, buf[read:read+chunk], sectorOfs, chunk); err != nil {
			if !in.isDir {
				in.extensionLock.Unlock()
			}
			return read, err
		}
		if !in.isDir {
			in.extensionLock.Unlock()
		}

		size -= chunk
		offset += int64(chunk)
		read += chunk
	}
	return read, nil
}

// WriteAt writes buf to in starting at offset, growing the file if the
// write extends past the current length. Blocks a write skips over are not
// allocated: they stay holes and read as zeros. Returns the number of bytes
// actually written, which is short if the device runs out of free sectors
// or a block position cannot be mapped (an unreachable double-indirect
// slot), and zero while writes are denied.
func (t *Table) WriteAt(in *Inode, buf []byte, offset int64) (int, error) {
	in.mu.Lock()
	denied := in.denyWriteCnt > 0
	in.mu.Unlock()
	if denied {
		return 0, nil
	}

	w := t.newWalker()
	d, err := t.readDiskInode(in.sector)
	if err != nil {
		return 0, fmt.Errorf("inode.WriteAt: read sector %d: %w", in.sector, err)
	}

	var written int
	size := len(buf)
	for size > 0 {
		blockIdx := uint32(offset / cfg.SectorSize)
		sectorOfs := int(offset % cfg.SectorSize)
		sectorLeft := cfg.SectorSize - sectorOfs

		chunk := size
		if sectorLeft < chunk {
			chunk = sectorLeft
		}
		if chunk <= 0 {
			break
		}

		in.lengthMu.Lock()
		length := in.length
		in.lengthMu.Unlock()
		extending := offset+int64(chunk) > int64(length)

		if extending && !in.isDir {
			in.extensionLock.Lock()
		}

		// Re-check under the lock: another writer may have already
		// extended past this offset.
		in.lengthMu.Lock()
		length = in.length
		in.lengthMu.Unlock()
		extending = offset+int64(chunk) > int64(length)

		sector, err := w.BlockToSector(d, blockIdx, extending)
		if err != nil || sector == 0 {
			if extending && !in.isDir {
				in.extensionLock.Unlock()
			}
			if err != nil {
				return written, err
			}
			break
		}

		if extending {
			in.lengthMu.Lock()
			in.length = int32(offset + int64(chunk))
			in.lengthMu.Unlock()
		}

		werr := t.cache.WriteAt(sector, buf[written:written+chunk], sectorOfs, chunk)
		if extending && !in.isDir {
			in.extensionLock.Unlock()
		}
		if werr != nil {
			return written, werr
		}

		size -= chunk
		offset += int64(chunk)
		written += chunk
	}

	// The walk above may have allocated new direct/indirect/double-indirect
	// pointers into d in place (Walker.BlockToSector and friends). Persist
	// those, along with the current length, back to the inode's own disk
	// sector — otherwise a newly allocated block is written through the
	// cache but its pointer is never recorded, and a future fresh
	// readDiskInode (ReadAt, Open, Close) sees it as unallocated.
	in.lengthMu.Lock()
	d.Length = in.length
	d.EntryCnt = in.entryCnt
	d.IsDir = boolToByte(in.isDir)
	in.lengthMu.Unlock()
	if err := t.writeDiskInode(in.sector, d); err != nil {
		return written, fmt.Errorf("inode.WriteAt: write sector %d: %w", in.sector, err)
	}

	return written, nil
}

// DenyWrite disables writes to in; must be balanced by AllowWrite before
// the opener closes it.
func (in *Inode) DenyWrite() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.denyWriteCnt++
	if in.denyWriteCnt > in.openCnt {
		panic("inode: deny_write_cnt exceeds open_cnt")
	}
}

// AllowWrite re-enables writes disabled by a matching DenyWrite.
func (in *Inode) AllowWrite() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.denyWriteCnt <= 0 {
		panic("inode: allow_write without a matching deny_write")
	}
	in.denyWriteCnt--
}

// Sector returns the inode's own disk sector, used as its inumber.
func (in *Inode) Sector() uint32 { return in.sector }

// Length returns the inode's current length in bytes.
func (in *Inode) Length() int32 {
	in.lengthMu.Lock()
	defer in.lengthMu.Unlock()
	return in.length
}

// IsDir reports whether in represents a directory.
func (in *Inode) IsDir() bool { return in.isDir }

// EntryCntInc increments the directory entry count (directory layer only).
func (in *Inode) EntryCntInc() {
	in.lengthMu.Lock()
	in.entryCnt++
	in.lengthMu.Unlock()
}

// EntryCntDec decrements the directory entry count (directory layer only).
func (in *Inode) EntryCntDec() {
	in.lengthMu.Lock()
	in.entryCnt--
	in.lengthMu.Unlock()
}

// IsEmptyDir reports whether a directory inode has zero entries.
func (in *Inode) IsEmptyDir() bool {
	in.lengthMu.Lock()
	defer in.lengthMu.Unlock()
	return in.entryCnt == 0
}

// VerifyMagic reads sector's on-disk inode and reports an error if its
// magic number doesn't match cfg.InodeMagic, the corruption check `fsck`
// runs over every reachable inode.
func (t *Table) VerifyMagic(sector uint32) error {
	d, err := t.readDiskInode(sector)
	if err != nil {
		return err
	}
	if d.Magic != cfg.InodeMagic {
		return fmt.Errorf("inode.VerifyMagic: sector %d has magic 0x%x, want 0x%x", sector, d.Magic, cfg.InodeMagic)
	}
	return nil
}

// Done flushes every open inode's in-memory length/entryCnt back to disk,
// for orderly shutdown.
func (t *Table) Done() error {
	t.mu.Lock()
	open := make(map[uint32]*Inode, len(t.open))
	for sector, in := range t.open {
		open[sector] = in
	}
	t.mu.Unlock()
	for sector, in := range open {
		d, err := t.readDiskInode(sector)
		if err != nil {
			return err
		}
		in.lengthMu.Lock()
		d.Length = in.length
		d.EntryCnt = in.entryCnt
		d.IsDir = boolToByte(in.isDir)
		in.lengthMu.Unlock()
		if err := t.writeDiskInode(sector, d); err != nil {
			return err
		}
	}
	return nil
}
