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

// Package directory layers fixed-size directory entries on top of a
// directory inode's ReadAt/WriteAt, the directory layer spec.md's inode
// section folds into entry_cnt bookkeeping (spec §4.2, §2).
package directory

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/shimmeros/gopager/internal/inode"
)

// NameMax bounds a directory entry's name, matching the on-disk record
// size below.
const NameMax = 60

// entrySize is NameMax bytes of name, one sector number, one in-use flag,
// packed with no padding (65 bytes); entries are stored back to back.
const entrySize = NameMax + 4 + 1

type rawEntry struct {
	Name  [NameMax]byte
	Sector uint32
	InUse  uint8
}

func (e *rawEntry) serialize() []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, e)
	return buf.Bytes()
}

func deserializeEntry(b []byte) (*rawEntry, error) {
	if len(b) != entrySize {
		return nil, fmt.Errorf("directory: entry must be %d bytes, got %d", entrySize, len(b))
	}
	e := new(rawEntry)
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, e); err != nil {
		return nil, err
	}
	return e, nil
}

func nameBytes(name string) ([NameMax]byte, error) {
	var out [NameMax]byte
	if len(name) > NameMax {
		return out, fmt.Errorf("directory: name %q exceeds %d bytes", name, NameMax)
	}
	copy(out[:], name)
	return out, nil
}

func nameString(b [NameMax]byte) string {
	i := bytes.IndexByte(b[:], 0)
	if i < 0 {
		return string(b[:])
	}
	return string(b[:i])
}

// Dir wraps a directory inode, reading and writing fixed-size entry
// records through the inode layer.
type Dir struct {
	table *inode.Table
	in    *inode.Inode
}

// Open wraps an already-open directory inode.
func Open(table *inode.Table, in *inode.Inode) *Dir {
	return &Dir{table: table, in: in}
}

// Entry is one resolved directory record.
type Entry struct {
	Name   string
	Sector uint32
}

func (d *Dir) readEntryAt(pos int64) (*rawEntry, error) {
	buf := make([]byte, entrySize)
	n, err := d.table.ReadAt(d.in, buf, pos)
	if err != nil {
		return nil, err
	}
	if n != entrySize {
		return nil, nil // past end of directory
	}
	return deserializeEntry(buf)
}

// Lookup scans the directory for name, returning its sector and true if
// found.
func (d *Dir) Lookup(name string) (uint32, bool, error) {
	length := d.in.Length()
	for pos := int64(0); pos+int64(entrySize) <= int64(length); pos += int64(entrySize) {
		e, err := d.readEntryAt(pos)
		if err != nil {
			return 0, false, err
		}
		if e == nil {
			break
		}
		if e.InUse != 0 && nameString(e.Name) == name {
			return e.Sector, true, nil
		}
	}
	return 0, false, nil
}

// Add inserts a (name, sector) record, reusing the first free slot if one
// exists, otherwise appending. Fails if name already exists.
func (d *Dir) Add(name string, sector uint32) error {
	if _, found, err := d.Lookup(name); err != nil {
		return err
	} else if found {
		return fmt.Errorf("directory: %q already exists", name)
	}

	nb, err := nameBytes(name)
	if err != nil {
		return err
	}
	rec := &rawEntry{Name: nb, Sector: sector, InUse: 1}

	length := d.in.Length()
	writePos := int64(length)
	for pos := int64(0); pos+int64(entrySize) <= int64(length); pos += int64(entrySize) {
		e, err := d.readEntryAt(pos)
		if err != nil {
			return err
		}
		if e != nil && e.InUse == 0 {
			writePos = pos
			break
		}
	}

	n, err := d.table.WriteAt(d.in, rec.serialize(), writePos)
	if err != nil {
		return err
	}
	if n != entrySize {
		return fmt.Errorf("directory: short write adding %q", name)
	}
	d.in.EntryCntInc()
	return nil
}

// Remove clears the entry for name, if present.
func (d *Dir) Remove(name string) error {
	length := d.in.Length()
	for pos := int64(0); pos+int64(entrySize) <= int64(length); pos += int64(entrySize) {
		e, err := d.readEntryAt(pos)
		if err != nil {
			return err
		}
		if e == nil {
			break
		}
		if e.InUse != 0 && nameString(e.Name) == name {
			e.InUse = 0
			n, err := d.table.WriteAt(d.in, e.serialize(), pos)
			if err != nil {
				return err
			}
			if n != entrySize {
				return fmt.Errorf("directory: short write removing %q", name)
			}
			d.in.EntryCntDec()
			return nil
		}
	}
	return fmt.Errorf("directory: %q not found", name)
}

// ReadDir returns every in-use entry.
func (d *Dir) ReadDir() ([]Entry, error) {
	var out []Entry
	length := d.in.Length()
	for pos := int64(0); pos+int64(entrySize) <= int64(length); pos += int64(entrySize) {
		e, err := d.readEntryAt(pos)
		if err != nil {
			return nil, err
		}
		if e == nil {
			break
		}
		if e.InUse != 0 {
			out = append(out, Entry{Name: nameString(e.Name), Sector: e.Sector})
		}
	}
	return out, nil
}

// IsEmpty reports whether the directory has zero live entries, backed by
// the inode's entry_cnt rather than a full scan.
func (d *Dir) IsEmpty() bool {
	return d.in.IsEmptyDir()
}
