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

package cmd

import (
	"fmt"

	"github.com/shimmeros/gopager/cfg"
	"github.com/shimmeros/gopager/internal/block"
	"github.com/shimmeros/gopager/internal/buffercache"
	"github.com/shimmeros/gopager/internal/directory"
	"github.com/shimmeros/gopager/internal/fault"
	"github.com/shimmeros/gopager/internal/frame"
	"github.com/shimmeros/gopager/internal/freemap"
	"github.com/shimmeros/gopager/internal/inode"
	"github.com/shimmeros/gopager/internal/iothrottle"
	"github.com/shimmeros/gopager/internal/physmem"
	"github.com/shimmeros/gopager/internal/swap"
)

// runtime bundles every subsystem a subcommand needs, wired together from
// a loaded Config: the two simulated block devices, the buffer cache and
// free-map layered on the filesystem device, the inode table and root
// directory above those, and the physical page pool, swap manager, frame
// table, and fault handler for the virtual memory side.
type runtime struct {
	fsDev   block.Interface
	swapDev block.Interface

	cache   *buffercache.Cache
	freemap *freemap.Map
	inodes  *inode.Table
	root    *directory.Dir

	pool    *physmem.Pool
	swapMgr *swap.Manager
	frames  *frame.Table
	faults  *fault.Handler
}

// newRuntime opens both devices and assembles every layer above them. It
// does not require the filesystem to already be formatted; callers that
// need a valid root directory must run `format` first.
func newRuntime(c cfg.Config) (*runtime, error) {
	fsDev, err := block.NewFileDevice(c.Filesystem.Path, c.Filesystem.Sectors)
	if err != nil {
		return nil, fmt.Errorf("open filesystem device: %w", err)
	}
	swapDev, err := block.NewFileDevice(c.Swap.Path, c.Swap.Sectors)
	if err != nil {
		fsDev.Close()
		return nil, fmt.Errorf("open swap device: %w", err)
	}

	var fsIface, swapIface block.Interface = fsDev, swapDev
	if c.ThrottleBytesPerSec > 0 {
		fsIface = iothrottle.New(fsDev, c.ThrottleBytesPerSec)
		swapIface = iothrottle.New(swapDev, c.ThrottleBytesPerSec)
	}

	cache := buffercache.New(fsIface)
	fm := freemap.New(c.Filesystem.Sectors)
	// Claim cfg.RootSector, the first sector a fresh free-map hands out, so
	// no file or index block is ever allocated over the root directory inode.
	fm.Allocate()
	inodes := inode.NewTable(cache, fm)

	pool := physmem.New(c.PhysicalPages)
	swapMgr := swap.New(swapIface)
	frames := frame.New(pool, swapMgr)
	faults := fault.NewHandler(frames, pool, swapMgr)

	return &runtime{
		fsDev:   fsDev,
		swapDev: swapDev,
		cache:   cache,
		freemap: fm,
		inodes:  inodes,
		pool:    pool,
		swapMgr: swapMgr,
		frames:  frames,
		faults:  faults,
	}, nil
}

// openRoot opens the root directory inode, which `format` must already
// have created at cfg.RootSector.
func (r *runtime) openRoot() error {
	in, err := r.inodes.Open(cfg.RootSector)
	if err != nil {
		return fmt.Errorf("open root directory (did you run `gopagerctl format`?): %w", err)
	}
	if !in.IsDir() {
		return fmt.Errorf("sector %d is not a directory", cfg.RootSector)
	}
	r.root = directory.Open(r.inodes, in)
	return nil
}

// Close flushes the buffer cache and closes both devices, in that order.
func (r *runtime) Close() error {
	if err := r.inodes.Done(); err != nil {
		return fmt.Errorf("flush inode table: %w", err)
	}
	if err := r.cache.Done(); err != nil {
		return fmt.Errorf("flush buffer cache: %w", err)
	}
	if err := r.swapDev.Close(); err != nil {
		return fmt.Errorf("close swap device: %w", err)
	}
	return r.fsDev.Close()
}
