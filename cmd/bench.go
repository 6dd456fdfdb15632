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
	"bytes"
	"fmt"
	"math/rand"

	"github.com/shimmeros/gopager/cfg"
	"github.com/shimmeros/gopager/internal/execpage"
	"github.com/shimmeros/gopager/internal/fault"
	"github.com/shimmeros/gopager/internal/inode"
	"github.com/shimmeros/gopager/internal/pagetable"
	"github.com/spf13/cobra"
)

var benchPages int

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Drive a synthetic read/write/page-fault workload and report subsystem occupancy",
	Long: `bench writes a pseudo-random file spanning benchPages pages
through the inode layer, reads it back to verify round-trip integrity,
then loads it as a read-only executable image and faults in every page
in order, which (with the default 32-frame physical pool) forces the
frame table's clock eviction to run. It prints buffer cache, physical
page, and free-map occupancy once finished.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(Config)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.inodes.VerifyMagic(cfg.RootSector); err != nil {
			if err := rt.inodes.Create(cfg.RootSector, 0, true); err != nil {
				return fmt.Errorf("create root directory: %w", err)
			}
		}
		if err := rt.openRoot(); err != nil {
			return err
		}

		size := int32(benchPages) * cfg.PageSize
		want := make([]byte, size)
		rand.New(rand.NewSource(1)).Read(want)

		sector, found, err := rt.root.Lookup("bench")
		if err != nil {
			return fmt.Errorf("lookup bench file: %w", err)
		}
		if !found {
			sector, found = rt.freemap.Allocate()
			if !found {
				return fmt.Errorf("filesystem device full, cannot allocate bench file inode")
			}
			if err := rt.inodes.Create(sector, size, false); err != nil {
				return fmt.Errorf("create bench file: %w", err)
			}
			if err := rt.root.Add("bench", sector); err != nil {
				return fmt.Errorf("add bench file to root: %w", err)
			}
		}

		f, err := inode.OpenFile(rt.inodes, sector)
		if err != nil {
			return fmt.Errorf("open bench file: %w", err)
		}
		if _, err := f.WriteAt(want, 0); err != nil {
			f.Close()
			return fmt.Errorf("write bench file: %w", err)
		}

		got := make([]byte, size)
		if _, err := f.ReadAt(got, 0); err != nil {
			f.Close()
			return fmt.Errorf("read back bench file: %w", err)
		}
		if !bytes.Equal(want, got) {
			f.Close()
			return fmt.Errorf("bench file round-trip mismatch")
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close bench file: %w", err)
		}

		image, err := inode.OpenFile(rt.inodes, sector)
		if err != nil {
			return fmt.Errorf("reopen bench file as exec image: %w", err)
		}
		proc := fault.NewProcess(image, uint64(size)+2*cfg.PageSize, Config)
		for i := 0; i < benchPages; i++ {
			off := int64(i) * cfg.PageSize
			readLen := int64(cfg.PageSize)
			if remaining := int64(size) - off; remaining < readLen {
				readLen = remaining
			}
			proc.InsertExecPage(pagetable.UserPage(i), execpage.Descriptor{Offset: off, ReadBytes: readLen, Writable: false})
		}

		for i := 0; i < benchPages; i++ {
			entry, err := rt.faults.Fault(proc, uint64(i)*cfg.PageSize, 0, false)
			if err != nil {
				image.Close()
				return fmt.Errorf("fault in page %d: %w", i, err)
			}
			entry.Unlock()
		}
		if err := image.Close(); err != nil {
			return err
		}

		cs := rt.cache.Stats()
		fmt.Printf("buffer cache: %d/%d slots resident, %d dirty\n", cs.Valid, cs.Slots, cs.Dirty)
		fmt.Printf("physical pages: %d/%d in use\n", rt.pool.InUse(), rt.pool.Capacity())
		fmt.Printf("filesystem sectors: %d/%d in use\n", rt.freemap.InUse(), Config.Filesystem.Sectors)
		return nil
	},
}

func init() {
	benchCmd.Flags().IntVar(&benchPages, "pages", 33, "number of pages to write, read back, and fault through")
}
