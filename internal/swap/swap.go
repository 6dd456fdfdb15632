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

// Package swap manages the swap device as a sequence of 8-sector
// (page-sized) slots (spec §4.3): a bitmap tracks sector-level allocation
// state but every operation acts on a full slot.
package swap

import (
	"fmt"

	"github.com/shimmeros/gopager/cfg"
	"github.com/shimmeros/gopager/common"
	"github.com/shimmeros/gopager/internal/block"
	"github.com/shimmeros/gopager/internal/metrics"
)

// Manager allocates and transfers page-sized slots on a swap device.
type Manager struct {
	dev    block.Interface
	bitmap *common.Bitmap
}

// New creates a Manager over dev, whose sector count need not be a
// multiple of cfg.SectorsPerPage; any short trailing sectors are simply
// never part of a full slot and stay permanently unreachable.
func New(dev block.Interface) *Manager {
	return &Manager{dev: dev, bitmap: common.NewBitmap(dev.Size())}
}

// Out allocates the first free 8-sector run and writes frame (exactly
// cfg.PageSize bytes) into it, returning the slot index (the run's first
// sector). Out-of-swap is unrecoverable: the simulator treats swap
// exhaustion as fatal, mirroring the original driver's infallible-I/O
// assumption for the swap device (spec §4.3, §7).
func (m *Manager) Out(frame []byte) (uint32, error) {
	if len(frame) != cfg.PageSize {
		return 0, fmt.Errorf("swap.Out: frame must be %d bytes, got %d", cfg.PageSize, len(frame))
	}

	slot, ok := m.bitmap.ScanAndFlip(cfg.SectorsPerPage)
	if !ok {
		panic("swap: out of swap space")
	}

	for i := uint32(0); i < cfg.SectorsPerPage; i++ {
		off := i * cfg.SectorSize
		if err := m.dev.WriteSector(slot+i, frame[off:off+cfg.SectorSize]); err != nil {
			return 0, fmt.Errorf("swap.Out: write sector %d: %w", slot+i, err)
		}
	}
	metrics.SwapSlotsInUse.Set(float64(m.bitmap.SetCount() / cfg.SectorsPerPage))
	return slot, nil
}

// In reads slot's 8 sectors into frame and frees the slot (swap slots are
// single-use: a page read back in must be written out again to occupy
// swap a second time).
func (m *Manager) In(frame []byte, slot uint32) error {
	if len(frame) != cfg.PageSize {
		return fmt.Errorf("swap.In: frame must be %d bytes, got %d", cfg.PageSize, len(frame))
	}

	for i := uint32(0); i < cfg.SectorsPerPage; i++ {
		off := i * cfg.SectorSize
		if err := m.dev.ReadSector(slot+i, frame[off:off+cfg.SectorSize]); err != nil {
			return fmt.Errorf("swap.In: read sector %d: %w", slot+i, err)
		}
	}
	m.bitmap.SetFree(slot, cfg.SectorsPerPage)
	metrics.SwapSlotsInUse.Set(float64(m.bitmap.SetCount() / cfg.SectorsPerPage))
	return nil
}

// Delete frees slot without reading it back, used when a process exits
// while one of its pages is swapped out.
func (m *Manager) Delete(slot uint32) {
	m.bitmap.SetFree(slot, cfg.SectorsPerPage)
	metrics.SwapSlotsInUse.Set(float64(m.bitmap.SetCount() / cfg.SectorsPerPage))
}
