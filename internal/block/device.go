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

// Package block provides the raw sector I/O primitives the buffer cache
// and swap manager are layered on: sector_read / sector_write / dev_size
// (spec §6). A Device is a fixed-size, 512-byte-sectored file; the
// filesystem and swap devices are each one instance.
package block

import (
	"fmt"
	"os"
	"sync"

	"github.com/shimmeros/gopager/cfg"
)

// SectorSize is the fixed unit of device I/O (spec §3).
const SectorSize = cfg.SectorSize

// Device is a single-writer-at-a-time (spec §5) fixed-size block device
// backed by a regular file.
type Device struct {
	f       *os.File
	sectors uint32

	// mu serializes I/O the way the real driver is single-writer-at-a-time;
	// the cache above us is the real arbiter of concurrency (spec §5), but
	// the device itself must not interleave partial sector writes.
	mu sync.Mutex
}

// NewFileDevice opens (creating and zero-extending if necessary) path as a
// Device of the given sector count.
func NewFileDevice(path string, sectors uint32) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open device %s: %w", path, err)
	}

	size := int64(sectors) * SectorSize
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat device %s: %w", path, err)
	}
	if info.Size() < size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("truncate device %s to %d bytes: %w", path, size, err)
		}
	}

	return &Device{f: f, sectors: sectors}, nil
}

// Size returns the device's capacity in sectors.
func (d *Device) Size() uint32 {
	return d.sectors
}

// ReadSector reads exactly SectorSize bytes from sector into buf.
func (d *Device) ReadSector(sector uint32, buf []byte) error {
	if len(buf) != SectorSize {
		return fmt.Errorf("ReadSector: buffer must be %d bytes, got %d", SectorSize, len(buf))
	}
	if sector >= d.sectors {
		return fmt.Errorf("ReadSector: sector %d out of range [0, %d)", sector, d.sectors)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.f.ReadAt(buf, int64(sector)*SectorSize)
	if err != nil {
		return fmt.Errorf("read sector %d: %w", sector, err)
	}
	return nil
}

// WriteSector writes exactly SectorSize bytes from buf to sector.
func (d *Device) WriteSector(sector uint32, buf []byte) error {
	if len(buf) != SectorSize {
		return fmt.Errorf("WriteSector: buffer must be %d bytes, got %d", SectorSize, len(buf))
	}
	if sector >= d.sectors {
		return fmt.Errorf("WriteSector: sector %d out of range [0, %d)", sector, d.sectors)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.f.WriteAt(buf, int64(sector)*SectorSize)
	if err != nil {
		return fmt.Errorf("write sector %d: %w", sector, err)
	}
	return nil
}

// Close closes the backing file.
func (d *Device) Close() error {
	return d.f.Close()
}
