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

package freemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReservesSectorZero(t *testing.T) {
	m := New(4)
	assert.EqualValues(t, 1, m.InUse())
}

func TestAllocateNeverHandsOutSectorZero(t *testing.T) {
	m := New(4)
	for i := 0; i < 3; i++ {
		sector, ok := m.Allocate()
		require.True(t, ok)
		assert.NotZero(t, sector)
	}
}

func TestAllocateExhaustion(t *testing.T) {
	m := New(2)
	_, ok := m.Allocate() // the only non-sentinel sector
	require.True(t, ok)

	_, ok = m.Allocate()
	assert.False(t, ok)
}

func TestReleaseMakesSectorAvailableAgain(t *testing.T) {
	m := New(2)
	sector, ok := m.Allocate()
	require.True(t, ok)

	m.Release(sector)
	assert.EqualValues(t, 1, m.InUse())

	again, ok := m.Allocate()
	require.True(t, ok)
	assert.Equal(t, sector, again)
}
