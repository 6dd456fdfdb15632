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

package iothrottle

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shimmeros/gopager/internal/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDevice(t *testing.T, sectors uint32) *block.Device {
	t.Helper()
	path := filepath.Join(t.TempDir(), "device.img")
	d, err := block.NewFileDevice(path, sectors)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestThrottleDelegatesReadsAndWrites(t *testing.T) {
	inner := newTestDevice(t, 4)
	d := New(inner, 1<<30) // effectively unthrottled

	want := make([]byte, block.SectorSize)
	for i := range want {
		want[i] = byte(i)
	}
	require.NoError(t, d.WriteSector(1, want))

	got := make([]byte, block.SectorSize)
	require.NoError(t, d.ReadSector(1, got))
	assert.Equal(t, want, got)
	assert.EqualValues(t, 4, d.Size())
}

func TestThrottleLimitsSustainedThroughput(t *testing.T) {
	inner := newTestDevice(t, 4)
	// One sector's worth of tokens per second forces the second write to
	// wait for the bucket to refill.
	d := New(inner, block.SectorSize)

	buf := make([]byte, block.SectorSize)
	start := time.Now()
	require.NoError(t, d.WriteSector(0, buf))
	require.NoError(t, d.WriteSector(1, buf))
	elapsed := time.Since(start)

	assert.Greater(t, elapsed, 200*time.Millisecond, "second write should have waited for the token bucket to refill")
}
