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

package fault

import (
	"fmt"
	"sync"
	"testing"

	"github.com/shimmeros/gopager/cfg"
	"github.com/shimmeros/gopager/internal/execpage"
	"github.com/shimmeros/gopager/internal/frame"
	"github.com/shimmeros/gopager/internal/physmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFile is an in-memory fileBacking used to stand in for both an
// executable image and an mmap'd file.
type memFile struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

func newMemFile(data []byte) *memFile {
	return &memFile{data: append([]byte(nil), data...)}
}

func (f *memFile) ReadAt(buf []byte, offset int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if offset >= int64(len(f.data)) {
		return 0, nil
	}
	n := copy(buf, f.data[offset:])
	return n, nil
}

func (f *memFile) WriteAt(buf []byte, offset int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	end := offset + int64(len(buf))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	return copy(f.data[offset:], buf), nil
}

func (f *memFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeSwap is a minimal in-memory stand-in for internal/swap.Manager,
// satisfying both swapInner (In) and frame.SwapOuter (Out).
type fakeSwap struct {
	mu    sync.Mutex
	slots map[uint32][]byte
	next  uint32
}

func newFakeSwap() *fakeSwap { return &fakeSwap{slots: make(map[uint32][]byte)} }

func (s *fakeSwap) Out(frame []byte) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.slots[s.next] = append([]byte(nil), frame...)
	return s.next, nil
}

func (s *fakeSwap) In(buf []byte, slot uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.slots[slot]
	if !ok {
		return fmt.Errorf("fakeSwap: unknown slot %d", slot)
	}
	copy(buf, data)
	delete(s.slots, slot)
	return nil
}

func newTestHandler(pages uint32) (*Handler, *frame.Table) {
	pool := physmem.New(pages)
	swap := newFakeSwap()
	frames := frame.New(pool, swap)
	return NewHandler(frames, pool, swap), frames
}

func testConfig() cfg.Config {
	c := cfg.Default()
	return c
}

func TestFaultLoadsExecutablePageLazily(t *testing.T) {
	h, _ := newTestHandler(4)
	image := newMemFile(append([]byte("hello world"), make([]byte, cfg.PageSize)...))
	proc := NewProcess(image, 4*cfg.PageSize, testConfig())
	proc.InsertExecPage(0, execpage.Descriptor{Offset: 0, ReadBytes: 11, Writable: false})

	e, err := h.Fault(proc, 0, 0, false)
	require.NoError(t, err)
	defer e.Unlock()

	buf := h.frames.Bytes(e)
	assert.Equal(t, "hello world", string(buf[:11]))
	for _, b := range buf[11:20] {
		assert.Zero(t, b)
	}
}

func TestFaultOnResidentPageIsSpurious(t *testing.T) {
	h, _ := newTestHandler(4)
	image := newMemFile(make([]byte, cfg.PageSize))
	proc := NewProcess(image, 4*cfg.PageSize, testConfig())
	proc.InsertExecPage(0, execpage.Descriptor{Offset: 0, ReadBytes: 0})

	e, err := h.Fault(proc, 0, 0, false)
	require.NoError(t, err)
	e.Unlock()

	_, err = h.Fault(proc, 0, 0, false)
	assert.ErrorIs(t, err, ErrSpuriousFault)
}

func TestFaultGrowsStackWithinSlack(t *testing.T) {
	h, _ := newTestHandler(4)
	image := newMemFile(nil)
	c := testConfig()
	c.UserStackBytes = 2 * cfg.PageSize
	stackTop := uint64(4 * cfg.PageSize)
	proc := NewProcess(image, stackTop, c)

	addr := stackTop - cfg.PageSize
	e, err := h.Fault(proc, addr, addr, true)
	require.NoError(t, err)
	defer e.Unlock()

	_, ok := proc.spt.Lookup(pageOf(addr))
	assert.True(t, ok)
}

func TestFaultKillsOnAddressBeyondStackSlack(t *testing.T) {
	h, _ := newTestHandler(4)
	image := newMemFile(nil)
	c := testConfig()
	c.UserStackBytes = 2 * cfg.PageSize
	c.StackGrowthSlackBytes = 0
	stackTop := uint64(8 * cfg.PageSize)
	proc := NewProcess(image, stackTop, c)

	// Way below the current stack pointer: not a valid growth pattern.
	addr := stackTop - 6*cfg.PageSize
	esp := stackTop - cfg.PageSize
	_, err := h.Fault(proc, addr, esp, true)
	assert.ErrorIs(t, err, ErrKilled)
}

func TestFaultKillsOnAddressBeyondStackTop(t *testing.T) {
	h, _ := newTestHandler(4)
	image := newMemFile(nil)
	proc := NewProcess(image, cfg.PageSize, testConfig())

	_, err := h.Fault(proc, 10*cfg.PageSize, 0, false)
	assert.ErrorIs(t, err, ErrKilled)
}

func TestFaultEvictsAndSwapsOutThenBackIn(t *testing.T) {
	h, _ := newTestHandler(1) // one physical page forces eviction on the second fault
	image := newMemFile(nil)
	proc := NewProcess(image, 16*cfg.PageSize, testConfig())
	proc.InsertExecPage(0, execpage.Descriptor{Offset: 0, ReadBytes: 0, Writable: true})
	proc.InsertExecPage(1, execpage.Descriptor{Offset: 0, ReadBytes: 0, Writable: true})

	e0, err := h.Fault(proc, 0, 0, true)
	require.NoError(t, err)
	buf := h.frames.Bytes(e0)
	buf[0] = 0x42
	proc.pt.ClearAccessed(pageOf(0))
	e0.Unlock()

	// Faulting in page 1 forces page 0 (dirty, not accessed) to be
	// evicted via swap.
	e1, err := h.Fault(proc, cfg.PageSize, 0, true)
	require.NoError(t, err)
	e1.Unlock()

	entry, ok := proc.spt.Lookup(pageOf(0))
	require.True(t, ok)
	assert.Equal(t, "Swapped", stateName(int(entry.State)))

	// Faulting page 0 back in must swap it in and recover its contents.
	e0b, err := h.Fault(proc, 0, 0, false)
	require.NoError(t, err)
	defer e0b.Unlock()
	assert.Equal(t, byte(0x42), h.frames.Bytes(e0b)[0])
}

func stateName(s int) string {
	switch s {
	case 0:
		return "Resident"
	case 1:
		return "Swapped"
	default:
		return "LazyMmap"
	}
}

func TestMmapThenFaultLoadsFileContentsLazily(t *testing.T) {
	h, _ := newTestHandler(4)
	image := newMemFile(nil)
	proc := NewProcess(image, 16*cfg.PageSize, testConfig())

	file := newMemFile([]byte("mmap contents"))
	id, err := h.Mmap(proc, file, cfg.PageSize, int64(len("mmap contents")))
	require.NoError(t, err)

	e, err := h.Fault(proc, cfg.PageSize, 0, false)
	require.NoError(t, err)
	defer e.Unlock()

	assert.Equal(t, "mmap contents", string(h.frames.Bytes(e)[:len("mmap contents")]))

	require.NoError(t, h.Munmap(proc, id))
	assert.True(t, file.closed)
}

func TestMunmapWritesBackDirtyPage(t *testing.T) {
	h, _ := newTestHandler(4)
	image := newMemFile(nil)
	proc := NewProcess(image, 16*cfg.PageSize, testConfig())

	file := newMemFile(make([]byte, 16))
	id, err := h.Mmap(proc, file, 0, 16)
	require.NoError(t, err)

	e, err := h.Fault(proc, 0, 0, true) // write fault sets the dirty bit
	require.NoError(t, err)
	h.frames.Bytes(e)[0] = 0x7
	e.Unlock()

	require.NoError(t, h.Munmap(proc, id))
	assert.Equal(t, byte(0x7), file.data[0])
}

func TestMunmapUnknownMappingErrors(t *testing.T) {
	h, _ := newTestHandler(4)
	proc := NewProcess(newMemFile(nil), cfg.PageSize, testConfig())
	err := h.Munmap(proc, [16]byte{})
	assert.Error(t, err)
}

func TestPinRangeThenUnpinRange(t *testing.T) {
	h, _ := newTestHandler(4)
	image := newMemFile(nil)
	proc := NewProcess(image, 16*cfg.PageSize, testConfig())
	proc.InsertExecPage(0, execpage.Descriptor{Offset: 0, ReadBytes: 0, Writable: true})
	proc.InsertExecPage(1, execpage.Descriptor{Offset: 0, ReadBytes: 0, Writable: true})

	entries, err := h.PinRange(proc, 10, cfg.PageSize+20, 0, false)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	h.UnpinRange(entries)
}
