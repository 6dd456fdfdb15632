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

package inode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFileReadWriteClose(t *testing.T) {
	tbl := newTestTable(t, 16)
	require.NoError(t, tbl.Create(1, 0, false))

	f, err := OpenFile(tbl, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.Sector())

	want := bytes.Repeat([]byte{0x11}, 100)
	n, err := f.WriteAt(want, 0)
	require.NoError(t, err)
	assert.Equal(t, len(want), n)

	got := make([]byte, len(want))
	n, err = f.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, len(want), n)
	assert.Equal(t, want, got)

	assert.NoError(t, f.Close())
}
