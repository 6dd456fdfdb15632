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

// Package inode implements the indexed inode layer of spec §4.2: the
// on-disk inode format, direct/indirect/double-indirect block resolution,
// file growth, and directory-entry-count bookkeeping, all layered on top
// of internal/buffercache.
package inode

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/shimmeros/gopager/cfg"
)

// DiskInode is the exact on-disk inode layout (spec §3, §6): 512 bytes,
// little-endian, in field order length / direct / indirect /
// double_indirect / isdir / entry_cnt / magic / padding. Field sizes and
// order must not change: they are the on-disk compatibility contract.
type DiskInode struct {
	Length         int32
	Direct         [cfg.DirectBlocks]uint32
	Indirect       uint32
	DoubleIndirect uint32
	IsDir          uint8
	_              [3]uint8 // pad isdir out to a 4-byte boundary before entry_cnt
	EntryCnt       int32
	Magic          uint32
	_              [112]uint32
}

// diskInodeSize is asserted against cfg.SectorSize in init: the on-disk
// format requires sizeof(DiskInode) == 512 exactly.
const diskInodeSize = 4 + 10*4 + 4 + 4 + 1 + 3 + 4 + 4 + 112*4

func init() {
	if diskInodeSize != cfg.SectorSize {
		panic(fmt.Sprintf("DiskInode layout is %d bytes, want %d", diskInodeSize, cfg.SectorSize))
	}
}

// Serialize encodes d into exactly cfg.SectorSize bytes.
func (d *DiskInode) Serialize() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(cfg.SectorSize)
	_ = binary.Write(buf, binary.LittleEndian, d)
	out := buf.Bytes()
	if len(out) != cfg.SectorSize {
		panic(fmt.Sprintf("serialized DiskInode is %d bytes, want %d", len(out), cfg.SectorSize))
	}
	return out
}

// DeserializeDiskInode decodes exactly cfg.SectorSize bytes into a DiskInode.
func DeserializeDiskInode(buf []byte) (*DiskInode, error) {
	if len(buf) != cfg.SectorSize {
		return nil, fmt.Errorf("DeserializeDiskInode: need %d bytes, got %d", cfg.SectorSize, len(buf))
	}
	d := new(DiskInode)
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, d); err != nil {
		return nil, fmt.Errorf("decode disk inode: %w", err)
	}
	return d, nil
}

func (d *DiskInode) isDirBool() bool  { return d.IsDir != 0 }
func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// indirectBlock is 128 consecutive sector addresses (spec §6).
type indirectBlock struct {
	Entries [cfg.IndirectEntries]uint32
}

func (ib *indirectBlock) serialize() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(cfg.SectorSize)
	_ = binary.Write(buf, binary.LittleEndian, ib)
	return buf.Bytes()
}

func deserializeIndirectBlock(buf []byte) (*indirectBlock, error) {
	if len(buf) != cfg.SectorSize {
		return nil, fmt.Errorf("deserializeIndirectBlock: need %d bytes, got %d", cfg.SectorSize, len(buf))
	}
	ib := new(indirectBlock)
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, ib); err != nil {
		return nil, fmt.Errorf("decode indirect block: %w", err)
	}
	return ib, nil
}

func bytesToSectors(size int32) uint32 {
	if size <= 0 {
		return 0
	}
	return (uint32(size) + cfg.SectorSize - 1) / cfg.SectorSize
}
