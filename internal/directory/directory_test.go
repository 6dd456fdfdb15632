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

package directory

import (
	"path/filepath"
	"testing"

	"github.com/shimmeros/gopager/internal/block"
	"github.com/shimmeros/gopager/internal/buffercache"
	"github.com/shimmeros/gopager/internal/freemap"
	"github.com/shimmeros/gopager/internal/inode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDir(t *testing.T) *Dir {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fs.img")
	dev, err := block.NewFileDevice(path, 64)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })

	cache := buffercache.New(dev)
	t.Cleanup(func() { cache.Done() })
	fm := freemap.New(64)
	fm.Allocate() // claim sector 1 for the directory inode created below

	table := inode.NewTable(cache, fm)
	require.NoError(t, table.Create(1, 0, true))
	in, err := table.Open(1)
	require.NoError(t, err)

	return Open(table, in)
}

func TestLookupMissingEntry(t *testing.T) {
	d := newTestDir(t)
	_, found, err := d.Lookup("nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAddThenLookup(t *testing.T) {
	d := newTestDir(t)
	require.NoError(t, d.Add("hello.txt", 5))

	sector, found, err := d.Lookup("hello.txt")
	require.NoError(t, err)
	assert.True(t, found)
	assert.EqualValues(t, 5, sector)
}

func TestAddRejectsDuplicateName(t *testing.T) {
	d := newTestDir(t)
	require.NoError(t, d.Add("dup", 1))
	assert.Error(t, d.Add("dup", 2))
}

func TestRemoveThenLookupMisses(t *testing.T) {
	d := newTestDir(t)
	require.NoError(t, d.Add("gone", 3))
	require.NoError(t, d.Remove("gone"))

	_, found, err := d.Lookup("gone")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRemoveMissingNameErrors(t *testing.T) {
	d := newTestDir(t)
	assert.Error(t, d.Remove("never-added"))
}

func TestAddReusesFreedSlot(t *testing.T) {
	d := newTestDir(t)
	require.NoError(t, d.Add("a", 1))
	require.NoError(t, d.Remove("a"))
	require.NoError(t, d.Add("b", 2))

	entries, err := d.ReadDir()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Name)
}

func TestReadDirListsOnlyLiveEntries(t *testing.T) {
	d := newTestDir(t)
	require.NoError(t, d.Add("one", 1))
	require.NoError(t, d.Add("two", 2))
	require.NoError(t, d.Remove("one"))

	entries, err := d.ReadDir()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "two", entries[0].Name)
}

func TestIsEmptyTracksEntryCount(t *testing.T) {
	d := newTestDir(t)
	assert.True(t, d.IsEmpty())

	require.NoError(t, d.Add("x", 9))
	assert.False(t, d.IsEmpty())

	require.NoError(t, d.Remove("x"))
	assert.True(t, d.IsEmpty())
}
