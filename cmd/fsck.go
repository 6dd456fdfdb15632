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
	"sync"

	"github.com/shimmeros/gopager/internal/directory"
	"github.com/shimmeros/gopager/internal/inode"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var fsckCmd = &cobra.Command{
	Use:   "fsck",
	Short: "Walk the directory tree and verify every reachable inode's magic number",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(Config)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.openRoot(); err != nil {
			return err
		}

		w := &fsckWalk{table: rt.inodes, visited: map[uint32]bool{}}
		if err := w.walk(rt.root); err != nil {
			return err
		}

		fmt.Printf("fsck: checked %d inodes, %d corrupt\n", w.checked, w.bad)
		if w.bad > 0 {
			return fmt.Errorf("fsck: found %d corrupt inode(s)", w.bad)
		}
		return nil
	},
}

// fsckWalk holds the state shared by the directory tree's concurrent
// subtree checks: each directory's entries are verified in parallel via
// errgroup, with mu guarding the cross-goroutine visited set and counters.
type fsckWalk struct {
	table *inode.Table

	mu      sync.Mutex
	visited map[uint32]bool
	checked int
	bad     int
}

func (w *fsckWalk) walk(dir *directory.Dir) error {
	entries, err := dir.ReadDir()
	if err != nil {
		return fmt.Errorf("read directory: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(8)
	for _, e := range entries {
		e := e
		g.Go(func() error {
			return w.visit(e)
		})
	}
	return g.Wait()
}

func (w *fsckWalk) visit(e directory.Entry) error {
	w.mu.Lock()
	if w.visited[e.Sector] {
		w.mu.Unlock()
		return nil
	}
	w.visited[e.Sector] = true
	w.checked++
	w.mu.Unlock()

	if err := w.table.VerifyMagic(e.Sector); err != nil {
		fmt.Printf("fsck: %s (sector %d): %v\n", e.Name, e.Sector, err)
		w.mu.Lock()
		w.bad++
		w.mu.Unlock()
		return nil
	}

	child, err := w.table.Open(e.Sector)
	if err != nil {
		fmt.Printf("fsck: %s (sector %d): open failed: %v\n", e.Name, e.Sector, err)
		w.mu.Lock()
		w.bad++
		w.mu.Unlock()
		return nil
	}
	defer w.table.Close(child)

	if child.IsDir() {
		return w.walk(directory.Open(w.table, child))
	}
	return nil
}
