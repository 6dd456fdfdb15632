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

package block

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDevice(t *testing.T, sectors uint32) *Device {
	t.Helper()
	path := filepath.Join(t.TempDir(), "device.img")
	d, err := NewFileDevice(path, sectors)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestNewFileDeviceZeroExtends(t *testing.T) {
	d := newTestDevice(t, 4)
	assert.EqualValues(t, 4, d.Size())

	buf := make([]byte, SectorSize)
	require.NoError(t, d.ReadSector(3, buf))
	assert.Equal(t, make([]byte, SectorSize), buf)
}

func TestWriteThenReadSectorRoundTrips(t *testing.T) {
	d := newTestDevice(t, 4)

	want := bytes.Repeat([]byte{0xAB}, SectorSize)
	require.NoError(t, d.WriteSector(2, want))

	got := make([]byte, SectorSize)
	require.NoError(t, d.ReadSector(2, got))
	assert.Equal(t, want, got)
}

func TestReadSectorRejectsOutOfRange(t *testing.T) {
	d := newTestDevice(t, 4)
	buf := make([]byte, SectorSize)
	assert.Error(t, d.ReadSector(4, buf))
}

func TestReadSectorRejectsWrongBufferSize(t *testing.T) {
	d := newTestDevice(t, 4)
	assert.Error(t, d.ReadSector(0, make([]byte, SectorSize-1)))
}

func TestReopenSameFilePreservesContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.img")
	d1, err := NewFileDevice(path, 2)
	require.NoError(t, err)
	want := bytes.Repeat([]byte{0x5A}, SectorSize)
	require.NoError(t, d1.WriteSector(0, want))
	require.NoError(t, d1.Close())

	d2, err := NewFileDevice(path, 2)
	require.NoError(t, err)
	defer d2.Close()

	got := make([]byte, SectorSize)
	require.NoError(t, d2.ReadSector(0, got))
	assert.Equal(t, want, got)
}
